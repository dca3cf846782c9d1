package auth

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/tronix365/sensegrid/internal/infrastructure/database"
	"github.com/tronix365/sensegrid/internal/infrastructure/logging"
	_ "github.com/tronix365/sensegrid/migrations" // registers the schema
)

// testSecret meets the 32-character minimum.
const testSecret = "test-secret-key-for-jwt-signing-32+"

// testDB creates a temporary SQLite database with the full schema applied.
func testDB(t *testing.T) *database.DB {
	t.Helper()

	db, err := database.Open(database.Config{
		Path:        filepath.Join(t.TempDir(), "auth-test.db"),
		WALMode:     true,
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // test cleanup

	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("applying migrations: %v", err)
	}
	return db
}

// testHasher uses the minimum bcrypt cost so tests stay fast.
func testHasher() *PasswordHasher {
	return NewPasswordHasher(bcrypt.MinCost)
}

// testService wires a Service over a fresh database with a controllable clock.
func testService(t *testing.T, now *time.Time) (*Service, *SQLUserRepository) {
	t.Helper()

	repo := NewUserRepository(testDB(t))
	tokens := NewTokenService(testSecret, time.Hour, WithClock(func() time.Time { return *now }))
	return NewService(repo, testHasher(), tokens, logging.Discard()), repo
}

// seedTestUser inserts a user with password "test-password" and returns it.
func seedTestUser(t *testing.T, repo UserRepository, email string) *User {
	t.Helper()

	hash, err := testHasher().Hash("test-password")
	if err != nil {
		t.Fatalf("hashing password: %v", err)
	}

	user := &User{Email: email, PasswordHash: hash}
	if err := repo.Create(context.Background(), user); err != nil {
		t.Fatalf("creating test user %s: %v", email, err)
	}
	return user
}

func strPtr(s string) *string { return &s }
