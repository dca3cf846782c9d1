package auth

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tronix365/sensegrid/internal/infrastructure/database"
)

// UserRepository defines the interface for user account persistence.
type UserRepository interface {
	Create(ctx context.Context, user *User) error
	GetByID(ctx context.Context, id string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)

	// Patch overwrites only the fields present in p. Concurrent patches
	// touching different fields both survive.
	Patch(ctx context.Context, id string, p ProfilePatch) error
}

// SQLUserRepository implements UserRepository on database.DB.
type SQLUserRepository struct {
	db *database.DB
}

// NewUserRepository creates a new SQL-backed user repository.
func NewUserRepository(db *database.DB) *SQLUserRepository {
	return &SQLUserRepository{db: db}
}

const userColumns = "id, email, password_hash, full_name, phone_number, preferences, created_at, updated_at"

// Create inserts a new user account. The ID is generated if empty and the
// email is normalised. A duplicate email returns ErrEmailExists.
func (r *SQLUserRepository) Create(ctx context.Context, user *User) error {
	if user.ID == "" {
		user.ID = "usr-" + uuid.NewString()
	}
	user.Email = NormaliseEmail(user.Email)
	if user.Preferences == nil {
		user.Preferences = map[string]any{}
	}

	prefs, err := json.Marshal(user.Preferences)
	if err != nil {
		return fmt.Errorf("encoding preferences: %w", err)
	}

	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO users (`+userColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		user.ID, user.Email, user.PasswordHash,
		nullString(user.FullName), nullString(user.PhoneNumber), string(prefs),
		database.FormatTime(now), database.FormatTime(now),
	)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return ErrEmailExists
		}
		return fmt.Errorf("creating user: %w", err)
	}
	return nil
}

// GetByID retrieves a user by their unique ID.
func (r *SQLUserRepository) GetByID(ctx context.Context, id string) (*User, error) {
	return r.getUser(ctx, "SELECT "+userColumns+" FROM users WHERE id = ?", id)
}

// GetByEmail retrieves a user by email, case-insensitively.
func (r *SQLUserRepository) GetByEmail(ctx context.Context, email string) (*User, error) {
	return r.getUser(ctx, "SELECT "+userColumns+" FROM users WHERE email = ?", NormaliseEmail(email))
}

// Patch applies p with one UPDATE; absent fields keep their stored value.
func (r *SQLUserRepository) Patch(ctx context.Context, id string, p ProfilePatch) error {
	var prefs sql.NullString
	if p.Preferences != nil {
		b, err := json.Marshal(p.Preferences)
		if err != nil {
			return fmt.Errorf("encoding preferences: %w", err)
		}
		prefs = sql.NullString{String: string(b), Valid: true}
	}

	result, err := r.db.ExecContext(ctx,
		`UPDATE users SET
			full_name = COALESCE(?, full_name),
			phone_number = COALESCE(?, phone_number),
			preferences = COALESCE(?, preferences),
			updated_at = ?
		 WHERE id = ?`,
		nullString(p.FullName), nullString(p.PhoneNumber), prefs,
		database.FormatTime(time.Now().UTC()), id,
	)
	if err != nil {
		return fmt.Errorf("patching user: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("patching user: %w", err)
	}
	if rows == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (r *SQLUserRepository) getUser(ctx context.Context, query string, args ...any) (*User, error) {
	var (
		u                    User
		fullName, phone      sql.NullString
		prefs                []byte
		createdAt, updatedAt string
	)

	err := r.db.QueryRowContext(ctx, query, args...).Scan(
		&u.ID, &u.Email, &u.PasswordHash, &fullName, &phone, &prefs, &createdAt, &updatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("scanning user: %w", err)
	}

	if fullName.Valid {
		u.FullName = &fullName.String
	}
	if phone.Valid {
		u.PhoneNumber = &phone.String
	}
	u.Preferences = map[string]any{}
	if len(prefs) > 0 {
		if err := json.Unmarshal(prefs, &u.Preferences); err != nil {
			return nil, fmt.Errorf("decoding preferences for %s: %w", u.ID, err)
		}
	}
	if u.CreatedAt, err = database.ParseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	if u.UpdatedAt, err = database.ParseTime(updatedAt); err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}

	return &u, nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}
