package device

import "time"

// Type tags what kind of hardware a device is.
type Type string

const (
	// TypeSensor reports gas, temperature, humidity and distance.
	TypeSensor Type = "sensor"

	// TypeLDR reports light levels and drives outputs.
	TypeLDR Type = "ldr"
)

// AllTypes returns every accepted device type.
func AllTypes() []Type {
	return []Type{TypeSensor, TypeLDR}
}

// Device is a registered piece of field hardware.
type Device struct {
	DeviceID  string    `json:"device_id"`
	OwnerID   string    `json:"owner_id"`
	Token     string    `json:"device_token"`
	Type      Type      `json:"device_type"`
	CreatedAt time.Time `json:"created_at"`
}

// Output is a GPIO-driven actuator on a device.
type Output struct {
	ID        int64     `json:"id"`
	DeviceID  string    `json:"device_id"`
	Name      string    `json:"output_name"`
	GPIOPin   int       `json:"gpio_pin"`
	IsActive  bool      `json:"is_active"`
	UpdatedAt time.Time `json:"updated_at"`
}
