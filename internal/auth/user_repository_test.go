package auth

import (
	"context"
	"errors"
	"testing"
)

func TestUserRepository_CreateAndGet(t *testing.T) {
	repo := NewUserRepository(testDB(t))
	ctx := context.Background()

	user := &User{
		Email:        "  Ops@SenseGrid.IO ",
		PasswordHash: "$2a$04$hash",
		FullName:     strPtr("Grid Operator"),
	}
	if err := repo.Create(ctx, user); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if len(user.ID) < 5 || user.ID[:4] != "usr-" {
		t.Fatalf("Create() ID = %q, want usr- prefix", user.ID)
	}

	got, err := repo.GetByID(ctx, user.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.Email != "ops@sensegrid.io" {
		t.Errorf("Email = %q, want normalised", got.Email)
	}
	if got.FullName == nil || *got.FullName != "Grid Operator" {
		t.Errorf("FullName = %v", got.FullName)
	}
	if got.PhoneNumber != nil {
		t.Errorf("PhoneNumber = %v, want nil", *got.PhoneNumber)
	}
	if got.Preferences == nil || len(got.Preferences) != 0 {
		t.Errorf("Preferences = %v, want empty map", got.Preferences)
	}
	if got.CreatedAt.IsZero() {
		t.Error("CreatedAt should be set")
	}

	byEmail, err := repo.GetByEmail(ctx, "OPS@sensegrid.io")
	if err != nil {
		t.Fatalf("GetByEmail() error = %v", err)
	}
	if byEmail.ID != user.ID {
		t.Errorf("GetByEmail() ID = %q, want %q", byEmail.ID, user.ID)
	}
}

func TestUserRepository_DuplicateEmail(t *testing.T) {
	repo := NewUserRepository(testDB(t))
	seedTestUser(t, repo, "dup@example.com")

	err := repo.Create(context.Background(), &User{Email: "DUP@example.com", PasswordHash: "x"})
	if !errors.Is(err, ErrEmailExists) {
		t.Errorf("Create() duplicate error = %v, want ErrEmailExists", err)
	}
}

func TestUserRepository_NotFound(t *testing.T) {
	repo := NewUserRepository(testDB(t))
	ctx := context.Background()

	if _, err := repo.GetByID(ctx, "usr-missing"); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("GetByID() error = %v, want ErrUserNotFound", err)
	}
	if _, err := repo.GetByEmail(ctx, "nobody@example.com"); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("GetByEmail() error = %v, want ErrUserNotFound", err)
	}
}

func TestUserRepository_PatchKeepsAbsentFields(t *testing.T) {
	repo := NewUserRepository(testDB(t))
	ctx := context.Background()
	user := seedTestUser(t, repo, "profile@example.com")

	if err := repo.Patch(ctx, user.ID, ProfilePatch{
		FullName:    strPtr("Before"),
		Preferences: map[string]any{"icon_gas": "flame", "theme": "dark"},
	}); err != nil {
		t.Fatalf("Patch() error = %v", err)
	}
	if err := repo.Patch(ctx, user.ID, ProfilePatch{PhoneNumber: strPtr("+44 7700 900000")}); err != nil {
		t.Fatalf("Patch() error = %v", err)
	}

	got, err := repo.GetByID(ctx, user.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.PhoneNumber == nil || *got.PhoneNumber != "+44 7700 900000" {
		t.Errorf("PhoneNumber = %v", got.PhoneNumber)
	}
	if got.FullName == nil || *got.FullName != "Before" {
		t.Errorf("FullName changed by phone-only patch: %v", got.FullName)
	}
	if got.Preferences["icon_gas"] != "flame" || got.Preferences["theme"] != "dark" {
		t.Errorf("Preferences changed by phone-only patch: %v", got.Preferences)
	}
}

func TestUserRepository_PatchReplacesPreferences(t *testing.T) {
	repo := NewUserRepository(testDB(t))
	ctx := context.Background()
	user := seedTestUser(t, repo, "prefs@example.com")

	for _, p := range []ProfilePatch{
		{Preferences: map[string]any{"icon_gas": "flame", "theme": "dark"}},
		{Preferences: map[string]any{"icon_temperature": "thermo"}},
		{},
	} {
		if err := repo.Patch(ctx, user.ID, p); err != nil {
			t.Fatalf("Patch(%+v) error = %v", p, err)
		}
	}

	got, err := repo.GetByID(ctx, user.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if len(got.Preferences) != 1 || got.Preferences["icon_temperature"] != "thermo" {
		t.Errorf("Preferences = %v, want only icon_temperature", got.Preferences)
	}
}

func TestProfilePatch_FieldNames(t *testing.T) {
	name := "Ada"
	got := ProfilePatch{FullName: &name, Preferences: map[string]any{}}.FieldNames()
	if len(got) != 2 || got[0] != "full_name" || got[1] != "preferences" {
		t.Errorf("FieldNames() = %v, want [full_name preferences]", got)
	}
	if got := (ProfilePatch{}).FieldNames(); len(got) != 0 {
		t.Errorf("FieldNames() on empty patch = %v", got)
	}
}

func TestUserRepository_Patch(t *testing.T) {
	repo := NewUserRepository(testDB(t))
	ctx := context.Background()
	user := seedTestUser(t, repo, "patch@example.com")

	if err := repo.Patch(ctx, user.ID, ProfilePatch{
		FullName:    strPtr("Ada"),
		Preferences: map[string]any{"icon_gas": "flame"},
	}); err != nil {
		t.Fatalf("Patch() error = %v", err)
	}
	if err := repo.Patch(ctx, user.ID, ProfilePatch{PhoneNumber: strPtr("555-0100")}); err != nil {
		t.Fatalf("Patch() error = %v", err)
	}

	got, err := repo.GetByID(ctx, user.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.FullName == nil || *got.FullName != "Ada" {
		t.Errorf("FullName = %v, want Ada", got.FullName)
	}
	if got.PhoneNumber == nil || *got.PhoneNumber != "555-0100" {
		t.Errorf("PhoneNumber = %v", got.PhoneNumber)
	}
	if got.Preferences["icon_gas"] != "flame" {
		t.Errorf("Preferences = %v", got.Preferences)
	}
	if !got.UpdatedAt.After(got.CreatedAt) && !got.UpdatedAt.Equal(got.CreatedAt) {
		t.Errorf("UpdatedAt %v before CreatedAt %v", got.UpdatedAt, got.CreatedAt)
	}

	if err := repo.Patch(ctx, "usr-missing", ProfilePatch{}); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("Patch() missing user error = %v, want ErrUserNotFound", err)
	}
}
