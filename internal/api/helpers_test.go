package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/tronix365/sensegrid/internal/audit"
	"github.com/tronix365/sensegrid/internal/auth"
	"github.com/tronix365/sensegrid/internal/device"
	"github.com/tronix365/sensegrid/internal/infrastructure/config"
	"github.com/tronix365/sensegrid/internal/infrastructure/database"
	"github.com/tronix365/sensegrid/internal/infrastructure/logging"
	"github.com/tronix365/sensegrid/internal/ownership"
	"github.com/tronix365/sensegrid/internal/telemetry"
	_ "github.com/tronix365/sensegrid/migrations" // registers the schema
)

const testSecret = "test-secret-key-for-jwt-signing-32+"

type testServer struct {
	*Server
	db *database.DB
}

// newTestServer wires a Server over a fresh migrated SQLite database.
// mutate may adjust Deps before New is called.
func newTestServer(t *testing.T, mutate ...func(*Deps)) *testServer {
	t.Helper()

	db, err := database.Open(database.Config{
		Path:        filepath.Join(t.TempDir(), "api-test.db"),
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

	log := logging.Discard()
	users := auth.NewUserRepository(db)
	devices := device.NewRepository(db)
	outputs := device.NewOutputRepository(db)
	readings := telemetry.NewRepository(db)

	authSvc := auth.NewService(users, auth.NewPasswordHasher(bcrypt.MinCost),
		auth.NewTokenService(testSecret, time.Hour), log)
	parser, err := telemetry.NewPayloadParser()
	if err != nil {
		t.Fatalf("NewPayloadParser() error = %v", err)
	}

	deps := Deps{
		Config: config.APIConfig{
			Host:     "127.0.0.1",
			Timeouts: config.APITimeoutConfig{Read: 5, Write: 5, Idle: 5},
		},
		Logger:   log,
		Auth:     authSvc,
		Owner: ownership.NewService(users, devices, outputs, readings, log,
			ownership.WithAuditLog(audit.NewRepository(db))),
		Pipeline: telemetry.NewPipeline(device.NewAuthenticator(devices), readings, outputs, log),
		Parser:   parser,
		Database: db,
		Version:  "test",
	}
	for _, m := range mutate {
		m(&deps)
	}

	srv, err := New(deps)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return &testServer{Server: srv, db: db}
}

type request struct {
	method  string
	path    string
	body    any
	token   string
	headers map[string]string
}

// do sends req through the router. A string body is sent verbatim; any
// other non-nil body is JSON-encoded.
func (ts *testServer) do(t *testing.T, req request) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	switch b := req.body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	case []byte:
		reader = bytes.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		if err != nil {
			t.Fatalf("encoding request body: %v", err)
		}
		reader = bytes.NewReader(raw)
	}

	r := httptest.NewRequest(req.method, req.path, reader)
	if req.body != nil {
		r.Header.Set("Content-Type", "application/json")
	}
	if req.token != "" {
		r.Header.Set("Authorization", "Bearer "+req.token)
	}
	for k, v := range req.headers {
		r.Header.Set(k, v)
	}

	rec := httptest.NewRecorder()
	ts.Handler().ServeHTTP(rec, r)
	return rec
}

// signUp registers email and returns its access token.
func (ts *testServer) signUp(t *testing.T, email string) string {
	t.Helper()
	rec := ts.do(t, request{
		method: http.MethodPost,
		path:   "/auth/register",
		body:   map[string]any{"email": email, "password": "correct-horse"},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("register %s: status %d body %s", email, rec.Code, rec.Body)
	}
	var resp struct {
		AccessToken string `json:"access_token"`
	}
	decode(t, rec, &resp)
	return resp.AccessToken
}

// registerDevice registers id for the holder of token and returns the
// device token.
func (ts *testServer) registerDevice(t *testing.T, token, id, typ string) string {
	t.Helper()
	rec := ts.do(t, request{
		method: http.MethodPost,
		path:   "/api/v1/devices",
		token:  token,
		body:   map[string]any{"device_id": id, "device_type": typ},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("register device %s: status %d body %s", id, rec.Code, rec.Body)
	}
	var d device.Device
	decode(t, rec, &d)
	return d.Token
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decoding response %q: %v", rec.Body.String(), err)
	}
}

// expectError checks status and error code.
func expectError(t *testing.T, rec *httptest.ResponseRecorder, status int, code string) Error {
	t.Helper()
	if rec.Code != status {
		t.Fatalf("status = %d, want %d (body %s)", rec.Code, status, strings.TrimSpace(rec.Body.String()))
	}
	var e Error
	decode(t, rec, &e)
	if e.Code != code {
		t.Errorf("code = %q, want %q", e.Code, code)
	}
	return e
}
