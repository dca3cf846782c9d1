package telemetry

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/tronix365/sensegrid/internal/validate"
)

// Status is the safety classification of a sensor reading.
type Status string

const (
	StatusSafe    Status = "SAFE"
	StatusWarning Status = "WARNING"
	StatusDanger  Status = "DANGER"
)

// Optional is a channel value that may be absent. JSON null and a missing
// key both decode to absent; absent encodes as null and stores as NULL.
type Optional struct {
	Float   float64
	Present bool
}

// Some returns a present Optional.
func Some(v float64) Optional {
	return Optional{Float: v, Present: true}
}

// Above reports whether the value is present and greater than limit.
func (o Optional) Above(limit float64) bool {
	return o.Present && o.Float > limit
}

// Below reports whether the value is present and less than limit.
func (o Optional) Below(limit float64) bool {
	return o.Present && o.Float < limit
}

// MarshalJSON implements json.Marshaler.
func (o Optional) MarshalJSON() ([]byte, error) {
	if !o.Present {
		return []byte("null"), nil
	}
	return json.Marshal(o.Float)
}

// UnmarshalJSON implements json.Unmarshaler.
func (o *Optional) UnmarshalJSON(b []byte) error {
	if bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		*o = Optional{}
		return nil
	}
	var v float64
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*o = Some(v)
	return nil
}

// Value implements driver.Valuer.
func (o Optional) Value() (driver.Value, error) {
	if !o.Present {
		return nil, nil
	}
	return o.Float, nil
}

// Scan implements sql.Scanner.
func (o *Optional) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*o = Optional{}
	case float64:
		*o = Some(v)
	case int64:
		*o = Some(float64(v))
	case []byte:
		f, err := strconv.ParseFloat(string(v), 64)
		if err != nil {
			return fmt.Errorf("scanning optional: %w", err)
		}
		*o = Some(f)
	default:
		return fmt.Errorf("scanning optional: unsupported type %T", src)
	}
	return nil
}

// Sample is one set of sensor channel values as sent by a device.
type Sample struct {
	Gas         Optional `json:"gas"`
	Temperature Optional `json:"temperature"`
	Humidity    Optional `json:"humidity"`
	Distance    Optional `json:"distance"`
}

// fields returns the present channels keyed by name.
func (s Sample) fields() map[string]any {
	out := make(map[string]any, 4) //nolint:mnd // four channels
	for name, o := range map[string]Optional{
		"gas":         s.Gas,
		"temperature": s.Temperature,
		"humidity":    s.Humidity,
		"distance":    s.Distance,
	} {
		if o.Present {
			out[name] = o.Float
		}
	}
	return out
}

// SensorReading is a stored, classified sample.
type SensorReading struct {
	ID          int64     `json:"id"`
	DeviceID    string    `json:"device_id"`
	Timestamp   time.Time `json:"timestamp"`
	Gas         Optional  `json:"gas"`
	Temperature Optional  `json:"temperature"`
	Humidity    Optional  `json:"humidity"`
	Distance    Optional  `json:"distance"`
	Status      Status    `json:"status"`
}

// MaxAnalogValue is the top of the 12-bit ADC range.
const MaxAnalogValue = 4095

// LightSample is one LDR reading as sent by a device.
type LightSample struct {
	DigitalValue bool `json:"digital_value"`
	AnalogValue  int  `json:"analog_value"`
}

// Validate checks the analog range.
func (s LightSample) Validate() error {
	if s.AnalogValue < 0 || s.AnalogValue > MaxAnalogValue {
		return validate.Field("analog_value", "must be between 0 and %d", MaxAnalogValue)
	}
	return nil
}

// LightReading is a stored light sample.
type LightReading struct {
	ID           int64     `json:"id"`
	DeviceID     string    `json:"device_id"`
	Timestamp    time.Time `json:"timestamp"`
	DigitalValue bool      `json:"digital_value"`
	AnalogValue  int       `json:"analog_value"`
}

// Bit decodes a digital pin value sent either as a JSON boolean or as 0/1.
type Bit bool

// UnmarshalJSON implements json.Unmarshaler.
func (b *Bit) UnmarshalJSON(data []byte) error {
	switch string(bytes.TrimSpace(data)) {
	case "true", "1":
		*b = true
	case "false", "0":
		*b = false
	default:
		return fmt.Errorf("digital value must be true, false, 0 or 1, got %s", data)
	}
	return nil
}
