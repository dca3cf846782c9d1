package device

import "errors"

// Domain errors for the device package.
//
// These errors can be checked using errors.Is():
//
//	if errors.Is(err, device.ErrDeviceNotFound) {
//	    // handle not found case
//	}
var (
	// ErrDeviceNotFound is returned when a device ID does not exist.
	ErrDeviceNotFound = errors.New("device: not found")

	// ErrDeviceExists is returned when creating a device with an ID that already exists.
	ErrDeviceExists = errors.New("device: already exists")

	// ErrUnknownDevice is returned by Authenticate for an unregistered device ID.
	ErrUnknownDevice = errors.New("device: unknown device")

	// ErrInvalidDeviceToken is returned by Authenticate when the token does not match.
	ErrInvalidDeviceToken = errors.New("device: invalid token")

	// ErrOutputNotFound is returned when an output ID does not exist.
	ErrOutputNotFound = errors.New("device: output not found")

	// ErrOutputExists is returned when a GPIO pin is already assigned on the device.
	ErrOutputExists = errors.New("device: output pin already assigned")
)
