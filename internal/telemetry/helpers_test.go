package telemetry

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/tronix365/sensegrid/internal/device"
	"github.com/tronix365/sensegrid/internal/events"
	"github.com/tronix365/sensegrid/internal/infrastructure/database"
	"github.com/tronix365/sensegrid/internal/infrastructure/logging"
	_ "github.com/tronix365/sensegrid/migrations" // registers the schema
)

var fixedTime = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

const testToken = "0123456789abcdef0123456789abcdef"

// setupTestDB creates a migrated SQLite database in a temp directory.
func setupTestDB(t *testing.T) *database.DB {
	t.Helper()

	db, err := database.Open(database.Config{
		Path:        filepath.Join(t.TempDir(), "telemetry-test.db"),
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
	return db
}

// seedDevice inserts an owner and a device with testToken.
func seedDevice(t *testing.T, db *database.DB, deviceID, ownerID string) {
	t.Helper()
	ctx := context.Background()

	now := database.FormatTime(fixedTime)
	if _, err := db.ExecContext(ctx,
		`INSERT INTO users (id, email, password_hash, preferences, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?) ON CONFLICT (id) DO NOTHING`,
		ownerID, ownerID+"@example.com", "x", "{}", now, now,
	); err != nil {
		t.Fatalf("seeding user %s: %v", ownerID, err)
	}

	d := &device.Device{DeviceID: deviceID, OwnerID: ownerID, Token: testToken, Type: device.TypeSensor}
	if err := device.NewRepository(db).Create(ctx, d); err != nil {
		t.Fatalf("seeding device %s: %v", deviceID, err)
	}
}

// recordingPublisher captures published events.
type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, e events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return p.err
}

func (p *recordingPublisher) published() []events.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]events.Event(nil), p.events...)
}

type testPipeline struct {
	*Pipeline
	db        *database.DB
	readings  *SQLRepository
	outputs   *device.SQLOutputRepository
	publisher *recordingPublisher
}

// newTestPipeline wires a pipeline over a fresh database with device
// "esp32-01" owned by "usr-owner".
func newTestPipeline(t *testing.T) *testPipeline {
	t.Helper()

	db := setupTestDB(t)
	seedDevice(t, db, "esp32-01", "usr-owner")

	readings := NewRepository(db)
	outputs := device.NewOutputRepository(db)
	pub := &recordingPublisher{}
	p := NewPipeline(
		device.NewAuthenticator(device.NewRepository(db)),
		readings,
		outputs,
		logging.Discard(),
		WithClock(func() time.Time { return fixedTime }),
		WithPublisher(pub),
	)
	return &testPipeline{Pipeline: p, db: db, readings: readings, outputs: outputs, publisher: pub}
}
