package auth

import (
	"fmt"
	"unicode/utf8"

	"golang.org/x/crypto/bcrypt"

	"github.com/tronix365/sensegrid/internal/validate"
)

// MaxPasswordLength is the longest accepted plaintext, in characters.
const MaxPasswordLength = 64

// bcryptMaxBytes is the input limit of the bcrypt algorithm.
const bcryptMaxBytes = 72

// PasswordHasher hashes and verifies passwords with bcrypt. The salt is
// embedded in the hash string.
type PasswordHasher struct {
	cost int
}

// NewPasswordHasher returns a hasher using cost, or bcrypt.DefaultCost when
// cost is zero.
func NewPasswordHasher(cost int) *PasswordHasher {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	return &PasswordHasher{cost: cost}
}

// Hash returns the bcrypt hash of plaintext. Empty and over-long inputs are
// rejected with a *validate.Error on field "password".
func (h *PasswordHasher) Hash(plaintext string) (string, error) {
	if err := checkPassword(plaintext); err != nil {
		return "", err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(plaintext), h.cost)
	if err != nil {
		return "", fmt.Errorf("hashing password: %w", err)
	}
	return string(hash), nil
}

// Verify reports whether plaintext matches hash.
func (h *PasswordHasher) Verify(plaintext, hash string) bool {
	if checkPassword(plaintext) != nil {
		return false
	}
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext))
	return err == nil
}

func checkPassword(plaintext string) error {
	switch {
	case plaintext == "":
		return validate.Field("password", "is required")
	case utf8.RuneCountInString(plaintext) > MaxPasswordLength:
		return validate.Field("password", "must be at most %d characters", MaxPasswordLength)
	case len(plaintext) > bcryptMaxBytes:
		return validate.Field("password", "must be at most %d bytes", bcryptMaxBytes)
	}
	return nil
}
