package ownership

import "errors"

var (
	// ErrNotFound covers both missing and foreign resources.
	ErrNotFound = errors.New("ownership: not found")

	// ErrConflict is returned when an identifier is already taken.
	ErrConflict = errors.New("ownership: conflict")
)
