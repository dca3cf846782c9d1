package telemetry

import "errors"

// ErrMalformedPayload is returned when a device payload is not valid JSON.
// Well-formed JSON that breaks the payload schema yields a validate.Error.
var ErrMalformedPayload = errors.New("telemetry: malformed payload")
