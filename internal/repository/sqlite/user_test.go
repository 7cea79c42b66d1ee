package sqlite

import (
	"context"
	"errors"
	"testing"

	"github.com/waterette/waterette/internal/apperror"
	"github.com/waterette/waterette/internal/model"
)

// newTestUserDB is a helper that returns a *UserDB backed by the same
// in-memory DB. It mirrors newTestDB from event_test.go.
func newTestUserDB(t *testing.T) (*DB, *UserDB) {
	t.Helper()
	db := newTestDB(t)
	return db, db.Users()
}

// createTestUser is a test helper that creates a user and fails the test if it errors.
func createTestUser(t *testing.T, u *UserDB, name, email string) *model.User {
	t.Helper()
	user := &model.User{
		Name:         name,
		Email:        email,
		PasswordHash: "$2a$04$notarealhashbutitdoesntmatter",
	}
	if err := u.Create(context.Background(), user); err != nil {
		t.Fatalf("failed to create test user: %v", err)
	}
	return user
}

func TestUserCreate(t *testing.T) {
	_, u := newTestUserDB(t)

	user := &model.User{
		Name:         "Test User",
		Email:        "test@example.com",
		PasswordHash: "$2a$04$notarealhash",
	}

	err := u.Create(context.Background(), user)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	// Verify the user was modified in-place (pointer receiver)
	if user.ID == "" {
		t.Error("Create() did not set user.ID")
	}
	if user.CreatedAt.IsZero() {
		t.Error("Create() did not set user.CreatedAt")
	}
	if user.UpdatedAt.IsZero() {
		t.Error("Create() did not set user.UpdatedAt")
	}
}

func TestUserCreate_DuplicateEmail(t *testing.T) {
	_, u := newTestUserDB(t)

	// Same email — second create should fail (UNIQUE constraint)
	createTestUser(t, u, "First", "taken@example.com")

	duplicate := &model.User{
		Name:  "Second",
		Email: "taken@example.com",
	}
	err := u.Create(context.Background(), duplicate)
	if !errors.Is(err, apperror.ErrConflict) {
		t.Fatalf("Create() with duplicate email error = %v, want ErrConflict", err)
	}
}

func TestUserGetByID(t *testing.T) {
	_, u := newTestUserDB(t)
	created := createTestUser(t, u, "Lookup User", "lookup@example.com")

	found, err := u.GetByID(context.Background(), created.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}

	if found.ID != created.ID {
		t.Errorf("ID = %q, want %q", found.ID, created.ID)
	}
	if found.Email != "lookup@example.com" {
		t.Errorf("Email = %q, want %q", found.Email, "lookup@example.com")
	}
	if found.PasswordHash == "" {
		t.Error("GetByID() should load the password hash for credential checks")
	}
}

func TestUserGetByID_NotFound(t *testing.T) {
	_, u := newTestUserDB(t)

	_, err := u.GetByID(context.Background(), "nonexistent-id")
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("GetByID() error = %v, want ErrNotFound", err)
	}
}

func TestUserGetByEmail(t *testing.T) {
	_, u := newTestUserDB(t)
	created := createTestUser(t, u, "Mail User", "mail@example.com")

	found, err := u.GetByEmail(context.Background(), "mail@example.com")
	if err != nil {
		t.Fatalf("GetByEmail() error = %v", err)
	}
	if found.ID != created.ID {
		t.Errorf("ID = %q, want %q", found.ID, created.ID)
	}

	if _, err := u.GetByEmail(context.Background(), "missing@example.com"); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("GetByEmail() for unknown address error = %v, want ErrNotFound", err)
	}
}

func TestUserUpsertGoogle_NewUser(t *testing.T) {
	_, u := newTestUserDB(t)

	user := &model.User{
		Name:      "Google User",
		Email:     "google@example.com",
		AvatarURL: "https://example.com/new.png",
		GoogleID:  "sub-123",
	}

	if err := u.UpsertGoogle(context.Background(), user); err != nil {
		t.Fatalf("UpsertGoogle() (new) error = %v", err)
	}

	if user.ID == "" {
		t.Error("UpsertGoogle() did not set user.ID for new user")
	}
	if user.CreatedAt.IsZero() {
		t.Error("UpsertGoogle() did not set user.CreatedAt for new user")
	}

	found, err := u.GetByEmail(context.Background(), "google@example.com")
	if err != nil {
		t.Fatalf("GetByEmail() after UpsertGoogle: %v", err)
	}
	if found.GoogleID != "sub-123" {
		t.Errorf("GoogleID = %q, want %q", found.GoogleID, "sub-123")
	}
}

func TestUserUpsertGoogle_ExistingUser_UpdatesProfile(t *testing.T) {
	_, u := newTestUserDB(t)

	// First sign-in — inserts the user
	first := &model.User{
		Name:      "Original Name",
		Email:     "upsert@example.com",
		AvatarURL: "https://example.com/old.png",
		GoogleID:  "sub-777",
	}
	if err := u.UpsertGoogle(context.Background(), first); err != nil {
		t.Fatalf("UpsertGoogle() first sign-in: %v", err)
	}
	originalID := first.ID

	// Second sign-in — same email but updated profile
	second := &model.User{
		Name:      "Updated Name",
		Email:     "upsert@example.com",
		AvatarURL: "https://example.com/new.png",
		GoogleID:  "sub-777",
	}
	if err := u.UpsertGoogle(context.Background(), second); err != nil {
		t.Fatalf("UpsertGoogle() second sign-in: %v", err)
	}

	// The internal ID must NOT have changed — same user, same ID
	if second.ID != originalID {
		t.Errorf("UpsertGoogle() changed user ID: got %q, want %q", second.ID, originalID)
	}

	found, err := u.GetByEmail(context.Background(), "upsert@example.com")
	if err != nil {
		t.Fatalf("GetByEmail() after second UpsertGoogle: %v", err)
	}
	if found.Name != "Updated Name" {
		t.Errorf("Name after upsert = %q, want %q", found.Name, "Updated Name")
	}
	if found.AvatarURL != "https://example.com/new.png" {
		t.Errorf("AvatarURL after upsert = %q, want %q", found.AvatarURL, "https://example.com/new.png")
	}
	if found.ID != originalID {
		t.Errorf("ID after upsert = %q, want %q", found.ID, originalID)
	}
}

func TestUserUpsertGoogle_LinksPasswordAccount(t *testing.T) {
	_, u := newTestUserDB(t)

	// An account registered with email/password...
	registered := createTestUser(t, u, "Linked User", "linked@example.com")

	// ...later signs in with Google using the same address.
	google := &model.User{
		Name:     "Linked User",
		Email:    "linked@example.com",
		GoogleID: "sub-999",
	}
	if err := u.UpsertGoogle(context.Background(), google); err != nil {
		t.Fatalf("UpsertGoogle() error = %v", err)
	}

	if google.ID != registered.ID {
		t.Errorf("UpsertGoogle() created a second account: %q != %q", google.ID, registered.ID)
	}

	// The password hash must survive the link.
	found, err := u.GetByID(context.Background(), registered.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if found.PasswordHash == "" {
		t.Error("UpsertGoogle() wiped the password hash")
	}
	if found.GoogleID != "sub-999" {
		t.Errorf("GoogleID = %q, want %q", found.GoogleID, "sub-999")
	}
}
