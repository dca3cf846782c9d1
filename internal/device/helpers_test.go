package device

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/tronix365/sensegrid/internal/infrastructure/database"
	_ "github.com/tronix365/sensegrid/migrations" // registers the schema
)

// setupTestDB creates a migrated SQLite database in a temp directory.
func setupTestDB(t *testing.T) *database.DB {
	t.Helper()

	db, err := database.Open(database.Config{
		Path:        filepath.Join(t.TempDir(), "device-test.db"),
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

// seedUser inserts a bare user row so device foreign keys resolve.
func seedUser(t *testing.T, db *database.DB, id string) {
	t.Helper()

	now := database.FormatTime(fixedTime)
	if _, err := db.ExecContext(context.Background(),
		`INSERT INTO users (id, email, password_hash, preferences, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		id, id+"@example.com", "x", "{}", now, now,
	); err != nil {
		t.Fatalf("seeding user %s: %v", id, err)
	}
}

// seedDevice registers a device for owner with a known token.
func seedDevice(t *testing.T, repo Repository, id, owner, token string) *Device {
	t.Helper()

	d := &Device{DeviceID: id, OwnerID: owner, Token: token, Type: TypeSensor}
	if err := repo.Create(context.Background(), d); err != nil {
		t.Fatalf("seeding device %s: %v", id, err)
	}
	return d
}
