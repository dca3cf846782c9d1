package mqtt

import (
	"fmt"
	"strings"
)

// DefaultTopicPrefix roots every SenseGrid topic.
const DefaultTopicPrefix = "sensegrid"

// Topics builds SenseGrid MQTT topics under a configurable prefix.
//
//	topics := mqtt.NewTopics("sensegrid")
//	topics.DeviceReadings("esp32-01")    // sensegrid/devices/esp32-01/readings
//	topics.IngestReadings("esp32-01")    // sensegrid/ingest/esp32-01/readings
type Topics struct {
	prefix string
}

// NewTopics returns a builder rooted at prefix, or DefaultTopicPrefix when
// prefix is empty. Trailing slashes are dropped.
func NewTopics(prefix string) Topics {
	prefix = strings.TrimRight(prefix, "/")
	if prefix == "" {
		prefix = DefaultTopicPrefix
	}
	return Topics{prefix: prefix}
}

// Prefix returns the topic root.
func (t Topics) Prefix() string {
	if t.prefix == "" {
		return DefaultTopicPrefix
	}
	return t.prefix
}

// =============================================================================
// Outbound (published by Core)
// =============================================================================

// DeviceReadings carries each stored sensor reading.
func (t Topics) DeviceReadings(deviceID string) string {
	return fmt.Sprintf("%s/devices/%s/readings", t.Prefix(), deviceID)
}

// DeviceLight carries each stored light reading.
func (t Topics) DeviceLight(deviceID string) string {
	return fmt.Sprintf("%s/devices/%s/light", t.Prefix(), deviceID)
}

// DeviceOutputState carries the retained on/off state of one output.
func (t Topics) DeviceOutputState(deviceID string, outputID int64) string {
	return fmt.Sprintf("%s/devices/%s/outputs/%d/state", t.Prefix(), deviceID, outputID)
}

// SystemStatus carries Core's retained online/offline status (and LWT).
func (t Topics) SystemStatus() string {
	return t.Prefix() + "/system/status"
}

// =============================================================================
// Inbound (published by devices)
// =============================================================================

// Ingest channel names, the last topic level.
const (
	IngestChannelReadings = "readings"
	IngestChannelLight    = "light"
)

// IngestReadings is where a device publishes sensor readings.
func (t Topics) IngestReadings(deviceID string) string {
	return fmt.Sprintf("%s/ingest/%s/%s", t.Prefix(), deviceID, IngestChannelReadings)
}

// IngestLight is where a device publishes light readings.
func (t Topics) IngestLight(deviceID string) string {
	return fmt.Sprintf("%s/ingest/%s/%s", t.Prefix(), deviceID, IngestChannelLight)
}

// AllIngestReadings matches sensor readings from every device.
func (t Topics) AllIngestReadings() string {
	return t.IngestReadings("+")
}

// AllIngestLight matches light readings from every device.
func (t Topics) AllIngestLight() string {
	return t.IngestLight("+")
}

// ParseIngest splits an ingest topic into device ID and channel.
func (t Topics) ParseIngest(topic string) (deviceID, channel string, ok bool) {
	rest, found := strings.CutPrefix(topic, t.Prefix()+"/ingest/")
	if !found {
		return "", "", false
	}
	parts := strings.Split(rest, "/")
	if len(parts) != 2 || parts[0] == "" { //nolint:mnd // {device}/{channel}
		return "", "", false
	}
	switch parts[1] {
	case IngestChannelReadings, IngestChannelLight:
		return parts[0], parts[1], true
	}
	return "", "", false
}
