package ownership

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tronix365/sensegrid/internal/auth"
	"github.com/tronix365/sensegrid/internal/device"
	"github.com/tronix365/sensegrid/internal/events"
	"github.com/tronix365/sensegrid/internal/infrastructure/logging"
	"github.com/tronix365/sensegrid/internal/validate"
)

func TestService_RegisterDevice(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	d, err := f.svc.RegisterDevice(ctx, f.alice, "esp32-01", "")
	if err != nil {
		t.Fatalf("RegisterDevice() error = %v", err)
	}
	if d.OwnerID != f.alice {
		t.Errorf("OwnerID = %q, want %q", d.OwnerID, f.alice)
	}
	if d.Type != "sensor" {
		t.Errorf("Type = %q, want sensor", d.Type)
	}
	if len(d.Token) != 32 {
		t.Errorf("Token length = %d, want 32", len(d.Token))
	}

	stored, err := f.devices.GetByID(ctx, "esp32-01")
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if stored.Token != d.Token {
		t.Error("stored token differs from returned token")
	}
}

func TestService_RegisterDeviceConflictAcrossOwners(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	original := f.registerDevice(t, f.alice, "esp32-01")

	_, err := f.svc.RegisterDevice(ctx, f.bob, "esp32-01", "ldr")
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("RegisterDevice() error = %v, want ErrConflict", err)
	}

	stored, err := f.devices.GetByID(ctx, "esp32-01")
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if stored.OwnerID != f.alice || stored.Token != original.Token || stored.Type != "sensor" {
		t.Errorf("existing device modified: %+v", stored)
	}
}

func TestService_RegisterDeviceValidation(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name      string
		id, typ   string
		wantField string
	}{
		{"empty id", "", "sensor", "device_id"},
		{"bad characters", "esp 32", "sensor", "device_id"},
		{"unknown type", "esp32-01", "thermostat", "device_type"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.RegisterDevice(context.Background(), f.alice, tt.id, tt.typ)
			verr, ok := validate.As(err)
			if !ok {
				t.Fatalf("RegisterDevice() error = %v, want validation error", err)
			}
			if verr.Field != tt.wantField {
				t.Errorf("Field = %q, want %q", verr.Field, tt.wantField)
			}
		})
	}
}

func TestService_DeviceIsolation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.registerDevice(t, f.alice, "alice-dev")
	f.addReading(t, "alice-dev", fixedTime, 120)

	checks := map[string]func() error{
		"GetDevice": func() error {
			_, err := f.svc.GetDevice(ctx, f.bob, "alice-dev")
			return err
		},
		"ListReadings": func() error {
			_, err := f.svc.ListReadings(ctx, f.bob, "alice-dev", 10)
			return err
		},
		"ListLightReadings": func() error {
			_, err := f.svc.ListLightReadings(ctx, f.bob, "alice-dev", 10)
			return err
		},
		"RotateDeviceToken": func() error {
			_, err := f.svc.RotateDeviceToken(ctx, f.bob, "alice-dev")
			return err
		},
		"ListOutputs": func() error {
			_, err := f.svc.ListOutputs(ctx, f.bob, "alice-dev")
			return err
		},
		"CreateOutput": func() error {
			_, err := f.svc.CreateOutput(ctx, f.bob, "alice-dev", "Relay", 4, false)
			return err
		},
		"unknown device": func() error {
			_, err := f.svc.GetDevice(ctx, f.alice, "missing")
			return err
		},
	}
	for name, call := range checks {
		t.Run(name, func(t *testing.T) {
			if err := call(); !errors.Is(err, ErrNotFound) {
				t.Errorf("error = %v, want ErrNotFound", err)
			}
		})
	}

	list, err := f.svc.ListDevices(ctx, f.bob)
	if err != nil {
		t.Fatalf("ListDevices() error = %v", err)
	}
	if len(list) != 0 {
		t.Errorf("ListDevices(bob) = %d devices, want 0", len(list))
	}
}

func TestService_RotateDeviceToken(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	before := f.registerDevice(t, f.alice, "esp32-01")

	after, err := f.svc.RotateDeviceToken(ctx, f.alice, "esp32-01")
	if err != nil {
		t.Fatalf("RotateDeviceToken() error = %v", err)
	}
	if after.Token == before.Token {
		t.Error("token was not rotated")
	}

	stored, err := f.devices.GetByID(ctx, "esp32-01")
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if stored.Token != after.Token {
		t.Errorf("stored token = %q, want %q", stored.Token, after.Token)
	}
}

func TestService_ListReadingsLimit(t *testing.T) {
	f := newFixture(t, WithMaxReadingsLimit(25))
	ctx := context.Background()
	f.registerDevice(t, f.alice, "esp32-01")
	for i := range 30 {
		f.addReading(t, "esp32-01", fixedTime.Add(time.Duration(i)*time.Second), float64(i))
	}

	tests := []struct {
		limit int
		want  int
	}{
		{0, DefaultReadingsLimit},
		{-5, DefaultReadingsLimit},
		{3, 3},
		{1000, 25},
	}
	for _, tt := range tests {
		got, err := f.svc.ListReadings(ctx, f.alice, "esp32-01", tt.limit)
		if err != nil {
			t.Fatalf("ListReadings(%d) error = %v", tt.limit, err)
		}
		if len(got) != tt.want {
			t.Errorf("ListReadings(%d) = %d rows, want %d", tt.limit, len(got), tt.want)
		}
	}

	newest, err := f.svc.ListReadings(ctx, f.alice, "esp32-01", 1)
	if err != nil {
		t.Fatalf("ListReadings() error = %v", err)
	}
	if newest[0].Gas.Float != 29 {
		t.Errorf("newest gas = %v, want 29", newest[0].Gas.Float)
	}
}

func TestService_Outputs(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.registerDevice(t, f.alice, "esp32-01")

	o, err := f.svc.CreateOutput(ctx, f.alice, "esp32-01", "Pump", 5, false)
	if err != nil {
		t.Fatalf("CreateOutput() error = %v", err)
	}

	if _, err := f.svc.CreateOutput(ctx, f.alice, "esp32-01", "Other", 5, true); !errors.Is(err, ErrConflict) {
		t.Errorf("CreateOutput() duplicate pin error = %v, want ErrConflict", err)
	}
	if _, err := f.svc.CreateOutput(ctx, f.alice, "esp32-01", "Bad", 300, false); err == nil {
		t.Error("CreateOutput() accepted pin 300")
	}

	updated, err := f.svc.SetOutputState(ctx, f.alice, o.ID, true)
	if err != nil {
		t.Fatalf("SetOutputState() error = %v", err)
	}
	if !updated.IsActive {
		t.Error("IsActive = false after SetOutputState(true)")
	}

	got := f.publisher.published()
	if len(got) != 1 {
		t.Fatalf("published %d events, want 1", len(got))
	}
	if got[0].Kind != events.KindOutputChanged || got[0].OutputID != o.ID || got[0].OwnerID != f.alice {
		t.Errorf("event = %+v", got[0])
	}

	// Setting the same state again is not a change.
	if _, err := f.svc.SetOutputState(ctx, f.alice, o.ID, true); err != nil {
		t.Fatalf("SetOutputState() repeat error = %v", err)
	}
	if n := len(f.publisher.published()); n != 1 {
		t.Errorf("published %d events after no-op, want 1", n)
	}

	list, err := f.svc.ListOutputs(ctx, f.alice, "esp32-01")
	if err != nil {
		t.Fatalf("ListOutputs() error = %v", err)
	}
	if len(list) != 1 || !list[0].IsActive {
		t.Errorf("ListOutputs() = %+v", list)
	}
}

func TestService_SetOutputStateIsolation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.registerDevice(t, f.alice, "esp32-01")
	o, err := f.svc.CreateOutput(ctx, f.alice, "esp32-01", "Pump", 5, false)
	if err != nil {
		t.Fatalf("CreateOutput() error = %v", err)
	}

	if _, err := f.svc.SetOutputState(ctx, f.bob, o.ID, true); !errors.Is(err, ErrNotFound) {
		t.Errorf("SetOutputState(bob) error = %v, want ErrNotFound", err)
	}
	if _, err := f.svc.SetOutputState(ctx, f.alice, 9999, true); !errors.Is(err, ErrNotFound) {
		t.Errorf("SetOutputState(missing) error = %v, want ErrNotFound", err)
	}

	stored, err := f.outputs.GetByID(ctx, o.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if stored.IsActive {
		t.Error("foreign caller changed output state")
	}
	if n := len(f.publisher.published()); n != 0 {
		t.Errorf("published %d events, want 0", n)
	}
}

func TestService_Profile(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.svc.UpdateProfile(ctx, f.alice, auth.ProfilePatch{
		FullName:    strPtr("Alice"),
		Preferences: map[string]any{"units": "metric"},
	}); err != nil {
		t.Fatalf("UpdateProfile() error = %v", err)
	}

	got, err := f.svc.UpdateProfile(ctx, f.alice, auth.ProfilePatch{PhoneNumber: strPtr("+15550100")})
	if err != nil {
		t.Fatalf("UpdateProfile() error = %v", err)
	}
	if got.FullName == nil || *got.FullName != "Alice" {
		t.Errorf("FullName = %v, want Alice kept", got.FullName)
	}
	if got.PhoneNumber == nil || *got.PhoneNumber != "+15550100" {
		t.Errorf("PhoneNumber = %v", got.PhoneNumber)
	}
	if got.Preferences["units"] != "metric" {
		t.Errorf("Preferences = %v, want units kept", got.Preferences)
	}

	long := make([]byte, maxFullNameLength+1)
	for i := range long {
		long[i] = 'a'
	}
	if _, err := f.svc.UpdateProfile(ctx, f.alice, auth.ProfilePatch{FullName: strPtr(string(long))}); !errors.Is(err, validate.ErrInvalid) {
		t.Errorf("UpdateProfile() long name error = %v, want ErrInvalid", err)
	}

	if _, err := f.svc.GetProfile(ctx, "usr-missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetProfile(missing) error = %v, want ErrNotFound", err)
	}
	if _, err := f.svc.UpdateProfile(ctx, "usr-missing", auth.ProfilePatch{FullName: strPtr("x")}); !errors.Is(err, ErrNotFound) {
		t.Errorf("UpdateProfile(missing) error = %v, want ErrNotFound", err)
	}
}

// brokenDevices fails every lookup the way a dropped connection would.
type brokenDevices struct {
	device.Repository
	err error
}

func (b brokenDevices) GetByID(context.Context, string) (*device.Device, error) {
	return nil, b.err
}

func TestService_SetOutputStatePropagatesStorageFaults(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.registerDevice(t, f.alice, "ldr-01")
	out, err := f.svc.CreateOutput(ctx, f.alice, "ldr-01", "lamp", 4, false)
	if err != nil {
		t.Fatalf("CreateOutput() error = %v", err)
	}

	dbErr := errors.New("database is locked")
	svc := NewService(f.users, brokenDevices{Repository: f.devices, err: dbErr}, f.outputs, f.readings, logging.Discard())

	_, err = svc.SetOutputState(ctx, f.alice, out.ID, true)
	if !errors.Is(err, dbErr) {
		t.Errorf("SetOutputState() error = %v, want the storage error", err)
	}
	if errors.Is(err, ErrNotFound) {
		t.Errorf("SetOutputState() reported a storage fault as not found: %v", err)
	}
}
