package ownership

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/tronix365/sensegrid/internal/auth"
	"github.com/tronix365/sensegrid/internal/device"
	"github.com/tronix365/sensegrid/internal/events"
	"github.com/tronix365/sensegrid/internal/infrastructure/database"
	"github.com/tronix365/sensegrid/internal/infrastructure/logging"
	"github.com/tronix365/sensegrid/internal/telemetry"
	_ "github.com/tronix365/sensegrid/migrations" // registers the schema
)

var fixedTime = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

type fixture struct {
	svc       *Service
	db        *database.DB
	users     *auth.SQLUserRepository
	devices   *device.SQLRepository
	outputs   *device.SQLOutputRepository
	readings  *telemetry.SQLRepository
	publisher *recordingPublisher

	alice, bob string
}

// newFixture wires a Service over a fresh database with two users.
func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()

	db, err := database.Open(database.Config{
		Path:        filepath.Join(t.TempDir(), "ownership-test.db"),
		WALMode:     true,
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // test cleanup
	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}

	f := &fixture{
		db:        db,
		users:     auth.NewUserRepository(db),
		devices:   device.NewRepository(db),
		outputs:   device.NewOutputRepository(db),
		readings:  telemetry.NewRepository(db),
		publisher: &recordingPublisher{},
	}
	f.alice = f.seedUser(t, "alice@example.com")
	f.bob = f.seedUser(t, "bob@example.com")

	opts = append([]Option{WithPublisher(f.publisher)}, opts...)
	f.svc = NewService(f.users, f.devices, f.outputs, f.readings, logging.Discard(), opts...)
	return f
}

func (f *fixture) seedUser(t *testing.T, email string) string {
	t.Helper()
	u := &auth.User{Email: email, PasswordHash: "x"}
	if err := f.users.Create(context.Background(), u); err != nil {
		t.Fatalf("seeding user %s: %v", email, err)
	}
	return u.ID
}

func (f *fixture) registerDevice(t *testing.T, owner, id string) *device.Device {
	t.Helper()
	d, err := f.svc.RegisterDevice(context.Background(), owner, id, "sensor")
	if err != nil {
		t.Fatalf("RegisterDevice(%s) error = %v", id, err)
	}
	return d
}

func (f *fixture) addReading(t *testing.T, deviceID string, at time.Time, gas float64) {
	t.Helper()
	r := &telemetry.SensorReading{
		DeviceID:  deviceID,
		Timestamp: at,
		Gas:       telemetry.Some(gas),
		Status:    telemetry.StatusSafe,
	}
	if err := f.readings.CreateSensorReading(context.Background(), r); err != nil {
		t.Fatalf("CreateSensorReading() error = %v", err)
	}
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(_ context.Context, e events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) published() []events.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]events.Event(nil), p.events...)
}

func strPtr(s string) *string { return &s }
