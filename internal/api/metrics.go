package api

import (
	"database/sql"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"
)

// ingestCounters tracks device traffic since start. Rejected covers every
// ingest request that did not store a row, whatever the reason.
type ingestCounters struct {
	readings atomic.Uint64
	light    atomic.Uint64
	rejected atomic.Uint64
}

// SystemMetrics is the body of GET /api/v1/metrics.
type SystemMetrics struct {
	Timestamp     time.Time        `json:"timestamp"`
	Version       string           `json:"version"`
	UptimeSeconds int64            `json:"uptime_seconds"`
	Ingest        IngestMetrics    `json:"ingest"`
	Runtime       RuntimeMetrics   `json:"runtime"`
	Database      *DatabaseMetrics `json:"database,omitempty"`
	MQTT          *MQTTMetrics     `json:"mqtt,omitempty"`
	RateLimited   bool             `json:"rate_limiting"`
}

// IngestMetrics counts HTTP ingestion requests.
type IngestMetrics struct {
	SensorReadings uint64 `json:"sensor_readings"`
	LightReadings  uint64 `json:"light_readings"`
	Rejected       uint64 `json:"rejected"`
}

// RuntimeMetrics is a small slice of runtime.MemStats.
type RuntimeMetrics struct {
	Goroutines  int     `json:"goroutines"`
	HeapAllocMB float64 `json:"heap_alloc_mb"`
	NumGC       uint32  `json:"num_gc"`
}

// DatabaseMetrics mirrors the sql.DBStats pool counters.
type DatabaseMetrics struct {
	OpenConnections int   `json:"open_connections"`
	InUse           int   `json:"in_use"`
	Idle            int   `json:"idle"`
	WaitCount       int64 `json:"wait_count"`
}

// MQTTMetrics reports the broker link.
type MQTTMetrics struct {
	Connected bool `json:"connected"`
}

const bytesPerMB = 1 << 20

func (s *Server) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	m := SystemMetrics{
		Timestamp:     time.Now().UTC(),
		Version:       s.version,
		UptimeSeconds: int64(time.Since(s.startTime).Seconds()),
		Ingest: IngestMetrics{
			SensorReadings: s.ingest.readings.Load(),
			LightReadings:  s.ingest.light.Load(),
			Rejected:       s.ingest.rejected.Load(),
		},
		Runtime: RuntimeMetrics{
			Goroutines:  runtime.NumGoroutine(),
			HeapAllocMB: float64(mem.HeapAlloc) / bytesPerMB,
			NumGC:       mem.NumGC,
		},
		RateLimited: s.rateLimiter != nil,
	}

	if pool, ok := s.database.(interface{ Stats() sql.DBStats }); ok {
		st := pool.Stats()
		m.Database = &DatabaseMetrics{
			OpenConnections: st.OpenConnections,
			InUse:           st.InUse,
			Idle:            st.Idle,
			WaitCount:       st.WaitCount,
		}
	}
	if s.mqtt != nil {
		m.MQTT = &MQTTMetrics{Connected: s.mqtt.IsConnected()}
	}

	writeJSON(w, http.StatusOK, m)
}
