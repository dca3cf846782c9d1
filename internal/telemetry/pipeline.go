package telemetry

import (
	"context"
	"fmt"
	"time"

	"github.com/tronix365/sensegrid/internal/device"
	"github.com/tronix365/sensegrid/internal/events"
	"github.com/tronix365/sensegrid/internal/infrastructure/logging"
)

// DeviceAuthenticator checks a device's shared token.
// *device.Authenticator implements it.
type DeviceAuthenticator interface {
	Authenticate(ctx context.Context, deviceID, token string) (*device.Device, error)
}

// OutputLister lists a device's outputs. *device.SQLOutputRepository
// implements it.
type OutputLister interface {
	ListByDevice(ctx context.Context, deviceID string) ([]device.Output, error)
}

// Pipeline authenticates, classifies and stores device readings.
type Pipeline struct {
	auth     DeviceAuthenticator
	readings Repository
	outputs  OutputLister
	events   events.Publisher
	logger   *logging.Logger
	now      func() time.Time
}

// PipelineOption configures a Pipeline.
type PipelineOption func(*Pipeline)

// WithClock overrides the clock used to stamp readings.
func WithClock(now func() time.Time) PipelineOption {
	return func(p *Pipeline) { p.now = now }
}

// WithPublisher sets the publisher notified after each stored reading.
func WithPublisher(pub events.Publisher) PipelineOption {
	return func(p *Pipeline) { p.events = pub }
}

// NewPipeline wires an ingestion pipeline.
func NewPipeline(auth DeviceAuthenticator, readings Repository, outputs OutputLister, logger *logging.Logger, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		auth:     auth,
		readings: readings,
		outputs:  outputs,
		logger:   logger.With("component", "telemetry"),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Ingest stores a sensor sample for deviceID after checking token.
// Authentication errors from the device package are returned unchanged.
// Each call appends a new row; there is no deduplication.
func (p *Pipeline) Ingest(ctx context.Context, deviceID, token string, s Sample) (*SensorReading, error) {
	dev, err := p.auth.Authenticate(ctx, deviceID, token)
	if err != nil {
		return nil, err
	}

	reading := &SensorReading{
		DeviceID:    dev.DeviceID,
		Timestamp:   p.now().UTC(),
		Gas:         s.Gas,
		Temperature: s.Temperature,
		Humidity:    s.Humidity,
		Distance:    s.Distance,
		Status:      Classify(s),
	}
	if err := p.readings.CreateSensorReading(ctx, reading); err != nil {
		return nil, fmt.Errorf("storing reading for %s: %w", dev.DeviceID, err)
	}

	if reading.Status != StatusSafe {
		p.logger.Warn("reading above safe threshold",
			"device_id", dev.DeviceID,
			"status", reading.Status,
			"reading_id", reading.ID,
		)
	}

	p.publish(ctx, events.Event{
		Kind:     events.KindReadingIngested,
		DeviceID: dev.DeviceID,
		OwnerID:  dev.OwnerID,
		Time:     reading.Timestamp,
		Data:     reading,
		Tags:     map[string]string{"status": string(reading.Status)},
		Fields:   s.fields(),
	})
	return reading, nil
}

// IngestLight stores a light sample for deviceID after checking token.
func (p *Pipeline) IngestLight(ctx context.Context, deviceID, token string, s LightSample) (*LightReading, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}

	dev, err := p.auth.Authenticate(ctx, deviceID, token)
	if err != nil {
		return nil, err
	}

	reading := &LightReading{
		DeviceID:     dev.DeviceID,
		Timestamp:    p.now().UTC(),
		DigitalValue: s.DigitalValue,
		AnalogValue:  s.AnalogValue,
	}
	if err := p.readings.CreateLightReading(ctx, reading); err != nil {
		return nil, fmt.Errorf("storing light reading for %s: %w", dev.DeviceID, err)
	}

	p.publish(ctx, events.Event{
		Kind:     events.KindLightIngested,
		DeviceID: dev.DeviceID,
		OwnerID:  dev.OwnerID,
		Time:     reading.Timestamp,
		Data:     reading,
		Fields: map[string]any{
			"digital_value": reading.DigitalValue,
			"analog_value":  int64(reading.AnalogValue),
		},
	})
	return reading, nil
}

// ListOutputStates returns a device's outputs for firmware polling.
func (p *Pipeline) ListOutputStates(ctx context.Context, deviceID, token string) ([]device.Output, error) {
	dev, err := p.auth.Authenticate(ctx, deviceID, token)
	if err != nil {
		return nil, err
	}
	outputs, err := p.outputs.ListByDevice(ctx, dev.DeviceID)
	if err != nil {
		return nil, fmt.Errorf("listing outputs for %s: %w", dev.DeviceID, err)
	}
	return outputs, nil
}

// publish notifies subscribers. The reading is already stored, so sink
// failures are logged and never returned.
func (p *Pipeline) publish(ctx context.Context, e events.Event) {
	if p.events == nil {
		return
	}
	if err := p.events.Publish(ctx, e); err != nil {
		p.logger.Warn("event publish failed",
			"kind", e.Kind,
			"device_id", e.DeviceID,
			"error", err,
		)
	}
}
