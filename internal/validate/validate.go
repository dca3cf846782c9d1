// Package validate holds the field-level validation error shared by every
// SenseGrid component, plus the handful of format checks they have in common.
package validate

import (
	"errors"
	"fmt"
	"regexp"
)

// ErrInvalid is the sentinel every *Error unwraps to.
var ErrInvalid = errors.New("validation failed")

// Error reports a single rejected input field.
type Error struct {
	Field   string
	Message string
}

func (e *Error) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

// Unwrap lets errors.Is(err, ErrInvalid) match.
func (e *Error) Unwrap() error { return ErrInvalid }

// Field returns an *Error for field with a formatted message.
func Field(field, format string, args ...any) error {
	return &Error{Field: field, Message: fmt.Sprintf(format, args...)}
}

// As extracts the *Error from err's chain.
func As(err error) (*Error, bool) {
	var ve *Error
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}

var emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// maxEmailLength is the RFC 5321 path limit.
const maxEmailLength = 254

// Email checks the rough shape of an address. Deliverability is not checked.
func Email(field, email string) error {
	if email == "" {
		return Field(field, "is required")
	}
	if len(email) > maxEmailLength || !emailPattern.MatchString(email) {
		return Field(field, "must be a valid email address")
	}
	return nil
}

// Required rejects an empty value.
func Required(field, value string) error {
	if value == "" {
		return Field(field, "is required")
	}
	return nil
}
