package telemetry

import (
	"context"
	"fmt"
	"time"

	"github.com/tronix365/sensegrid/internal/infrastructure/logging"
	"github.com/tronix365/sensegrid/internal/infrastructure/mqtt"
)

const messageTimeout = 10 * time.Second

// Subscriber is the part of *mqtt.Client the listener uses.
type Subscriber interface {
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Topics() mqtt.Topics
}

// Ingester is the part of *Pipeline the listener uses.
type Ingester interface {
	Ingest(ctx context.Context, deviceID, token string, s Sample) (*SensorReading, error)
	IngestLight(ctx context.Context, deviceID, token string, s LightSample) (*LightReading, error)
}

// Listener feeds readings published on the ingest topics into the pipeline.
// MQTT has no reply channel, so rejected messages are logged and dropped.
type Listener struct {
	sub      Subscriber
	parser   *PayloadParser
	pipeline Ingester
	logger   *logging.Logger
	qos      byte

	ctx context.Context //nolint:containedctx // base for per-message contexts
}

// NewListener creates a listener subscribing at qos.
func NewListener(sub Subscriber, parser *PayloadParser, pipeline Ingester, logger *logging.Logger, qos byte) *Listener {
	return &Listener{
		sub:      sub,
		parser:   parser,
		pipeline: pipeline,
		logger:   logger.With("component", "mqtt-ingest"),
		qos:      qos,
		ctx:      context.Background(),
	}
}

// Start subscribes to the readings and light ingest topics of every
// device. Messages are processed until ctx is cancelled or the client
// closes.
func (l *Listener) Start(ctx context.Context) error {
	l.ctx = ctx
	topics := l.sub.Topics()
	for _, topic := range []string{topics.AllIngestReadings(), topics.AllIngestLight()} {
		if err := l.sub.Subscribe(topic, l.qos, l.handle); err != nil {
			return fmt.Errorf("subscribing to %s: %w", topic, err)
		}
	}
	l.logger.Info("mqtt ingestion started", "prefix", topics.Prefix())
	return nil
}

func (l *Listener) handle(topic string, payload []byte) error {
	if l.ctx.Err() != nil {
		return nil
	}

	deviceID, channel, ok := l.sub.Topics().ParseIngest(topic)
	if !ok {
		return fmt.Errorf("unrecognised ingest topic %q", topic)
	}

	ctx, cancel := context.WithTimeout(l.ctx, messageTimeout)
	defer cancel()

	switch channel {
	case mqtt.IngestChannelReadings:
		p, err := l.parser.ParseReading(payload, deviceID)
		if err != nil {
			return fmt.Errorf("device %s: %w", deviceID, err)
		}
		if _, err := l.pipeline.Ingest(ctx, p.DeviceID, p.DeviceToken, p.Sample); err != nil {
			return fmt.Errorf("device %s: %w", deviceID, err)
		}
	case mqtt.IngestChannelLight:
		p, err := l.parser.ParseLight(payload, deviceID)
		if err != nil {
			return fmt.Errorf("device %s: %w", deviceID, err)
		}
		if _, err := l.pipeline.IngestLight(ctx, p.DeviceID, p.DeviceToken, p.LightSample); err != nil {
			return fmt.Errorf("device %s: %w", deviceID, err)
		}
	}
	return nil
}
