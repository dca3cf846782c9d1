package device

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/tronix365/sensegrid/internal/infrastructure/database"
)

// Repository defines the interface for device persistence operations.
type Repository interface {
	// Create inserts a new device.
	// Returns ErrDeviceExists if the device_id is taken under any owner.
	Create(ctx context.Context, d *Device) error

	// GetByID retrieves a device by its identifier.
	// Returns ErrDeviceNotFound if the device does not exist.
	GetByID(ctx context.Context, id string) (*Device, error)

	// ListByOwner returns the owner's devices, oldest first.
	ListByOwner(ctx context.Context, ownerID string) ([]Device, error)

	// UpdateToken replaces the device's shared secret.
	UpdateToken(ctx context.Context, id, token string) error
}

// SQLRepository implements Repository on database.DB.
type SQLRepository struct {
	db *database.DB
}

// NewRepository creates a new SQL-backed device repository.
func NewRepository(db *database.DB) *SQLRepository {
	return &SQLRepository{db: db}
}

const deviceColumns = "device_id, owner_id, device_token, device_type, created_at"

// Create inserts d, stamping CreatedAt.
func (r *SQLRepository) Create(ctx context.Context, d *Device) error {
	d.CreatedAt = time.Now().UTC()

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO devices (`+deviceColumns+`) VALUES (?, ?, ?, ?, ?)`,
		d.DeviceID, d.OwnerID, d.Token, string(d.Type), database.FormatTime(d.CreatedAt),
	)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return ErrDeviceExists
		}
		return fmt.Errorf("inserting device: %w", err)
	}
	return nil
}

// GetByID retrieves a device by its identifier.
func (r *SQLRepository) GetByID(ctx context.Context, id string) (*Device, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+deviceColumns+` FROM devices WHERE device_id = ?`, id)
	d, err := scanDevice(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrDeviceNotFound
		}
		return nil, fmt.Errorf("querying device by id: %w", err)
	}
	return d, nil
}

// ListByOwner returns the owner's devices ordered by creation time.
func (r *SQLRepository) ListByOwner(ctx context.Context, ownerID string) ([]Device, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+deviceColumns+` FROM devices WHERE owner_id = ? ORDER BY created_at ASC, device_id ASC`,
		ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("querying devices by owner: %w", err)
	}
	defer rows.Close()

	devices := []Device{}
	for rows.Next() {
		d, err := scanDevice(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning device: %w", err)
		}
		devices = append(devices, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating devices: %w", err)
	}
	return devices, nil
}

// UpdateToken replaces the stored token. The old token stops matching
// as soon as the statement commits.
func (r *SQLRepository) UpdateToken(ctx context.Context, id, token string) error {
	result, err := r.db.ExecContext(ctx, `UPDATE devices SET device_token = ? WHERE device_id = ?`, token, id)
	if err != nil {
		return fmt.Errorf("updating device token: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("updating device token: %w", err)
	}
	if n == 0 {
		return ErrDeviceNotFound
	}
	return nil
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanDevice(s scanner) (*Device, error) {
	var (
		d         Device
		devType   string
		createdAt string
	)
	if err := s.Scan(&d.DeviceID, &d.OwnerID, &d.Token, &devType, &createdAt); err != nil {
		return nil, err
	}
	d.Type = Type(devType)

	var err error
	if d.CreatedAt, err = database.ParseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	return &d, nil
}
