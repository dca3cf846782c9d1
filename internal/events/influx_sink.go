package events

import (
	"context"
	"time"
)

// Measurement names written by InfluxSink.
const (
	MeasurementSensorReading = "sensor_reading"
	MeasurementLightReading  = "light_reading"
	MeasurementDeviceOutput  = "device_output"
)

// pointWriter is the subset of *influxdb.Client the sink needs.
type pointWriter interface {
	WritePointWithTime(measurement string, tags map[string]string, fields map[string]any, ts time.Time)
}

// InfluxSink mirrors events as time-series points. Writes are batched by
// the client, so Publish never blocks on the network and never fails.
type InfluxSink struct {
	writer pointWriter
}

// NewInfluxSink creates an InfluxDB sink.
func NewInfluxSink(w pointWriter) *InfluxSink {
	return &InfluxSink{writer: w}
}

// Publish implements Publisher.
func (s *InfluxSink) Publish(_ context.Context, e Event) error {
	var measurement string
	switch e.Kind {
	case KindReadingIngested:
		measurement = MeasurementSensorReading
	case KindLightIngested:
		measurement = MeasurementLightReading
	case KindOutputChanged:
		measurement = MeasurementDeviceOutput
	default:
		return nil
	}

	// An Influx point needs at least one field.
	if len(e.Fields) == 0 {
		return nil
	}

	tags := make(map[string]string, len(e.Tags)+1)
	for k, v := range e.Tags {
		tags[k] = v
	}
	tags["device_id"] = e.DeviceID

	s.writer.WritePointWithTime(measurement, tags, e.Fields, e.Time)
	return nil
}
