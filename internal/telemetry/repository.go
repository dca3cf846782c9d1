package telemetry

import (
	"context"
	"fmt"

	"github.com/tronix365/sensegrid/internal/infrastructure/database"
)

// Repository stores readings. Readings are append-only: there is no update
// or delete.
type Repository interface {
	// CreateSensorReading inserts r and sets its ID.
	CreateSensorReading(ctx context.Context, r *SensorReading) error

	// ListSensorReadings returns up to limit readings for a device, newest first.
	ListSensorReadings(ctx context.Context, deviceID string, limit int) ([]SensorReading, error)

	// CreateLightReading inserts r and sets its ID.
	CreateLightReading(ctx context.Context, r *LightReading) error

	// ListLightReadings returns up to limit light readings, newest first.
	ListLightReadings(ctx context.Context, deviceID string, limit int) ([]LightReading, error)
}

// SQLRepository implements Repository on database.DB.
type SQLRepository struct {
	db *database.DB
}

// NewRepository creates a SQL-backed reading repository.
func NewRepository(db *database.DB) *SQLRepository {
	return &SQLRepository{db: db}
}

const sensorColumns = "id, device_id, recorded_at, gas, temperature, humidity, distance, status"

// CreateSensorReading inserts r in a single INSERT ... RETURNING statement.
func (r *SQLRepository) CreateSensorReading(ctx context.Context, reading *SensorReading) error {
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO sensor_readings (device_id, recorded_at, gas, temperature, humidity, distance, status)
		 VALUES (?, ?, ?, ?, ?, ?, ?) RETURNING id`,
		reading.DeviceID, database.FormatTime(reading.Timestamp),
		reading.Gas, reading.Temperature, reading.Humidity, reading.Distance,
		string(reading.Status),
	).Scan(&reading.ID)
	if err != nil {
		return fmt.Errorf("inserting sensor reading: %w", err)
	}
	return nil
}

// ListSensorReadings orders by recorded_at then id, both descending.
func (r *SQLRepository) ListSensorReadings(ctx context.Context, deviceID string, limit int) ([]SensorReading, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+sensorColumns+` FROM sensor_readings
		 WHERE device_id = ? ORDER BY recorded_at DESC, id DESC LIMIT ?`,
		deviceID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying sensor readings: %w", err)
	}
	defer rows.Close()

	readings := []SensorReading{}
	for rows.Next() {
		var (
			s          SensorReading
			recordedAt string
			status     string
		)
		if err := rows.Scan(&s.ID, &s.DeviceID, &recordedAt,
			&s.Gas, &s.Temperature, &s.Humidity, &s.Distance, &status); err != nil {
			return nil, fmt.Errorf("scanning sensor reading: %w", err)
		}
		if s.Timestamp, err = database.ParseTime(recordedAt); err != nil {
			return nil, fmt.Errorf("parsing recorded_at: %w", err)
		}
		s.Status = Status(status)
		readings = append(readings, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating sensor readings: %w", err)
	}
	return readings, nil
}

// CreateLightReading inserts a light reading.
func (r *SQLRepository) CreateLightReading(ctx context.Context, reading *LightReading) error {
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO light_readings (device_id, recorded_at, digital_value, analog_value)
		 VALUES (?, ?, ?, ?) RETURNING id`,
		reading.DeviceID, database.FormatTime(reading.Timestamp),
		reading.DigitalValue, reading.AnalogValue,
	).Scan(&reading.ID)
	if err != nil {
		return fmt.Errorf("inserting light reading: %w", err)
	}
	return nil
}

// ListLightReadings orders by recorded_at then id, both descending.
func (r *SQLRepository) ListLightReadings(ctx context.Context, deviceID string, limit int) ([]LightReading, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, device_id, recorded_at, digital_value, analog_value FROM light_readings
		 WHERE device_id = ? ORDER BY recorded_at DESC, id DESC LIMIT ?`,
		deviceID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying light readings: %w", err)
	}
	defer rows.Close()

	readings := []LightReading{}
	for rows.Next() {
		var (
			l          LightReading
			recordedAt string
		)
		if err := rows.Scan(&l.ID, &l.DeviceID, &recordedAt, &l.DigitalValue, &l.AnalogValue); err != nil {
			return nil, fmt.Errorf("scanning light reading: %w", err)
		}
		if l.Timestamp, err = database.ParseTime(recordedAt); err != nil {
			return nil, fmt.Errorf("parsing recorded_at: %w", err)
		}
		readings = append(readings, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating light readings: %w", err)
	}
	return readings, nil
}
