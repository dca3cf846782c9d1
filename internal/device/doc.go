// Package device manages SenseGrid field devices and their digital outputs.
//
// A Device is identified by a caller-chosen device_id, belongs to exactly
// one user and holds a shared secret (device token) that firmware presents
// on every ingestion request. Outputs are the GPIO-driven actuators of a
// device and are the only mutable device-scoped records.
//
// # Key Types
//
//   - Device: registered hardware, its owner and its token
//   - Output: a named GPIO pin with an on/off state
//   - Authenticator: checks a presented token against the stored one
//
// # Usage
//
//	repo := device.NewRepository(db)
//	authn := device.NewAuthenticator(repo)
//
//	dev, err := authn.Authenticate(ctx, "esp32-kitchen", r.Header.Get("Device-Token"))
//	if errors.Is(err, device.ErrUnknownDevice) {
//	    // 404
//	}
//
// Tokens are compared in constant time. There is no per-device lockout.
package device
