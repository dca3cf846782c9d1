package auth

import (
	"strings"
	"time"
)

// User is a human account. Users own devices.
type User struct {
	ID           string         `json:"id"`
	Email        string         `json:"email"`
	PasswordHash string         `json:"-"` // never serialised
	FullName     *string        `json:"full_name"`
	PhoneNumber  *string        `json:"phone_number"`
	Preferences  map[string]any `json:"preferences"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// ProfilePatch is a partial profile update. Nil fields are left unchanged;
// a non-nil Preferences replaces the whole map.
type ProfilePatch struct {
	FullName    *string        `json:"full_name"`
	PhoneNumber *string        `json:"phone_number"`
	Preferences map[string]any `json:"preferences"`
}

// FieldNames lists the JSON names of the fields present in p.
func (p ProfilePatch) FieldNames() []string {
	names := make([]string, 0, 3)
	if p.FullName != nil {
		names = append(names, "full_name")
	}
	if p.PhoneNumber != nil {
		names = append(names, "phone_number")
	}
	if p.Preferences != nil {
		names = append(names, "preferences")
	}
	return names
}

// RegisterInput carries a registration request.
type RegisterInput struct {
	Email       string  `json:"email"`
	Password    string  `json:"password"`
	FullName    *string `json:"full_name"`
	PhoneNumber *string `json:"phone_number"`
}

// TokenResponse is returned by login and registration.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

// NormaliseEmail trims and lower-cases an address for storage and lookup.
func NormaliseEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
