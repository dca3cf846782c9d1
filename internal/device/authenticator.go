package device

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
)

// Authenticator verifies the shared secret a device presents.
type Authenticator struct {
	devices Repository
}

// NewAuthenticator creates an Authenticator over the device repository.
func NewAuthenticator(devices Repository) *Authenticator {
	return &Authenticator{devices: devices}
}

// Authenticate returns the device if token matches its stored secret.
// An unregistered ID yields ErrUnknownDevice; a wrong or empty token
// yields ErrInvalidDeviceToken.
func (a *Authenticator) Authenticate(ctx context.Context, deviceID, token string) (*Device, error) {
	dev, err := a.devices.GetByID(ctx, deviceID)
	if err != nil {
		if errors.Is(err, ErrDeviceNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrUnknownDevice, deviceID)
		}
		return nil, fmt.Errorf("looking up device: %w", err)
	}

	if token == "" || subtle.ConstantTimeCompare([]byte(token), []byte(dev.Token)) != 1 {
		return nil, ErrInvalidDeviceToken
	}
	return dev, nil
}
