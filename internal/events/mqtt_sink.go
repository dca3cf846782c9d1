package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/tronix365/sensegrid/internal/infrastructure/mqtt"
)

// mqttPublisher is the subset of *mqtt.Client the sink needs.
type mqttPublisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
}

// MQTTSink publishes events to per-device topics. Output state is retained
// so firmware that reconnects picks up the last commanded value.
type MQTTSink struct {
	client mqttPublisher
	topics mqtt.Topics
	qos    byte
}

// NewMQTTSink creates a sink publishing under topics at qos.
func NewMQTTSink(client mqttPublisher, topics mqtt.Topics, qos byte) *MQTTSink {
	return &MQTTSink{client: client, topics: topics, qos: qos}
}

// Publish implements Publisher.
func (s *MQTTSink) Publish(_ context.Context, e Event) error {
	var (
		topic    string
		retained bool
	)
	switch e.Kind {
	case KindReadingIngested:
		topic = s.topics.DeviceReadings(e.DeviceID)
	case KindLightIngested:
		topic = s.topics.DeviceLight(e.DeviceID)
	case KindOutputChanged:
		topic = s.topics.DeviceOutputState(e.DeviceID, e.OutputID)
		retained = true
	default:
		return nil
	}

	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("mqtt sink: encoding %s: %w", e.Kind, err)
	}
	if err := s.client.Publish(topic, payload, s.qos, retained); err != nil {
		return fmt.Errorf("mqtt sink: %w", err)
	}
	return nil
}
