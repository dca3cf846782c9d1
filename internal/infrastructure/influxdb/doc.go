// Package influxdb mirrors SenseGrid readings into InfluxDB v2.
//
// The relational store remains the source of truth for the HTTP API;
// InfluxDB holds a copy of every accepted sensor and light reading for
// dashboards and long-range queries. Writes are batched per config
// (batch_size, flush_interval) and never block ingestion.
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	client.SetOnError(func(err error) { logger.Warn("influx write", "error", err) })
//	client.WritePointWithTime("sensor_reading", tags, fields, ts)
package influxdb
