package device

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/tronix365/sensegrid/internal/infrastructure/database"
)

// OutputRepository defines persistence for device outputs.
type OutputRepository interface {
	// Create inserts o and assigns its ID.
	// Returns ErrOutputExists if the GPIO pin is already used on the device.
	Create(ctx context.Context, o *Output) error

	// GetByID returns ErrOutputNotFound if the output does not exist.
	GetByID(ctx context.Context, id int64) (*Output, error)

	// ListByDevice returns the device's outputs in creation order.
	ListByDevice(ctx context.Context, deviceID string) ([]Output, error)

	// SetActive switches an output and returns its new state.
	SetActive(ctx context.Context, id int64, active bool) (*Output, error)
}

// SQLOutputRepository implements OutputRepository on database.DB.
type SQLOutputRepository struct {
	db *database.DB
}

// NewOutputRepository creates a new SQL-backed output repository.
func NewOutputRepository(db *database.DB) *SQLOutputRepository {
	return &SQLOutputRepository{db: db}
}

const outputColumns = "id, device_id, output_name, gpio_pin, is_active, updated_at"

// Create inserts o using INSERT ... RETURNING id.
func (r *SQLOutputRepository) Create(ctx context.Context, o *Output) error {
	o.UpdatedAt = time.Now().UTC()

	err := r.db.QueryRowContext(ctx,
		`INSERT INTO device_outputs (device_id, output_name, gpio_pin, is_active, updated_at)
		 VALUES (?, ?, ?, ?, ?) RETURNING id`,
		o.DeviceID, o.Name, o.GPIOPin, o.IsActive, database.FormatTime(o.UpdatedAt),
	).Scan(&o.ID)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return ErrOutputExists
		}
		return fmt.Errorf("inserting output: %w", err)
	}
	return nil
}

// GetByID retrieves one output.
func (r *SQLOutputRepository) GetByID(ctx context.Context, id int64) (*Output, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+outputColumns+` FROM device_outputs WHERE id = ?`, id)
	o, err := scanOutput(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrOutputNotFound
		}
		return nil, fmt.Errorf("querying output: %w", err)
	}
	return o, nil
}

// ListByDevice returns every output on the device, ordered by ID.
func (r *SQLOutputRepository) ListByDevice(ctx context.Context, deviceID string) ([]Output, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+outputColumns+` FROM device_outputs WHERE device_id = ? ORDER BY id ASC`, deviceID)
	if err != nil {
		return nil, fmt.Errorf("querying outputs: %w", err)
	}
	defer rows.Close()

	outputs := []Output{}
	for rows.Next() {
		o, err := scanOutput(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning output: %w", err)
		}
		outputs = append(outputs, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating outputs: %w", err)
	}
	return outputs, nil
}

// SetActive updates is_active in a single UPDATE ... RETURNING statement.
func (r *SQLOutputRepository) SetActive(ctx context.Context, id int64, active bool) (*Output, error) {
	row := r.db.QueryRowContext(ctx,
		`UPDATE device_outputs SET is_active = ?, updated_at = ? WHERE id = ? RETURNING `+outputColumns,
		active, database.FormatTime(time.Now().UTC()), id,
	)
	o, err := scanOutput(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrOutputNotFound
		}
		return nil, fmt.Errorf("updating output state: %w", err)
	}
	return o, nil
}

func scanOutput(s scanner) (*Output, error) {
	var (
		o         Output
		updatedAt string
	)
	if err := s.Scan(&o.ID, &o.DeviceID, &o.Name, &o.GPIOPin, &o.IsActive, &updatedAt); err != nil {
		return nil, err
	}

	var err error
	if o.UpdatedAt, err = database.ParseTime(updatedAt); err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}
	return &o, nil
}
