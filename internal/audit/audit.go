// Package audit records the account-level changes a user makes (devices
// registered, tokens rotated, outputs switched, profile edits) and lets
// the user read back their own trail.
package audit

import (
	"context"
	"time"
)

// Actions.
const (
	ActionDeviceRegistered  = "device.registered"
	ActionDeviceTokenRotate = "device.token_rotated"
	ActionOutputCreated     = "output.created"
	ActionOutputChanged     = "output.changed"
	ActionProfileUpdated    = "profile.updated"
)

// Entity types.
const (
	EntityDevice = "device"
	EntityOutput = "output"
	EntityUser   = "user"
)

// SourceAPI marks entries produced by HTTP requests.
const SourceAPI = "api"

// Page size limits for List.
const (
	DefaultLimit = 50
	MaxLimit     = 200
)

// Entry is a single audit trail record.
type Entry struct {
	ID         string         `json:"id"`
	UserID     string         `json:"user_id"`
	Action     string         `json:"action"`
	EntityType string         `json:"entity_type"`
	EntityID   string         `json:"entity_id,omitempty"`
	Source     string         `json:"source"`
	Details    map[string]any `json:"details,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}

// Filter selects one user's entries. UserID is mandatory.
type Filter struct {
	UserID     string
	Action     string
	EntityType string
	EntityID   string
	Limit      int
	Offset     int
}

// ListResult is one page of entries, newest first.
type ListResult struct {
	Entries []Entry `json:"entries"`
	Total   int     `json:"total"`
	Limit   int     `json:"limit"`
	Offset  int     `json:"offset"`
}

// Repository stores audit entries.
type Repository interface {
	Create(ctx context.Context, e *Entry) error
	List(ctx context.Context, filter Filter) (*ListResult, error)
}
