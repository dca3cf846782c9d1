package device

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/tronix365/sensegrid/internal/validate"
)

// Validation constants.
const (
	maxDeviceIDLength   = 64
	maxOutputNameLength = 100
	maxGPIOPin          = 255
)

var deviceIDRegex = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)

// ValidateID checks a caller-chosen device identifier.
func ValidateID(id string) error {
	switch {
	case id == "":
		return validate.Field("device_id", "is required")
	case len(id) > maxDeviceIDLength:
		return validate.Field("device_id", "must be at most %d characters", maxDeviceIDLength)
	case !deviceIDRegex.MatchString(id):
		return validate.Field("device_id", "may only contain letters, digits, '.', '_' and '-'")
	}
	return nil
}

// ParseType maps a request value to a Type. Empty means TypeSensor.
func ParseType(s string) (Type, error) {
	if s == "" {
		return TypeSensor, nil
	}
	t := Type(strings.ToLower(s))
	for _, valid := range AllTypes() {
		if t == valid {
			return t, nil
		}
	}
	return "", validate.Field("device_type", "must be one of sensor, ldr")
}

// ValidateOutput checks the fields of a new output.
func ValidateOutput(name string, pin int) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return validate.Field("output_name", "is required")
	}
	if utf8.RuneCountInString(name) > maxOutputNameLength {
		return validate.Field("output_name", "must be at most %d characters", maxOutputNameLength)
	}
	if pin < 0 || pin > maxGPIOPin {
		return validate.Field("gpio_pin", "must be between 0 and %d", maxGPIOPin)
	}
	return nil
}
