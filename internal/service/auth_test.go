package service

import (
	"context"
	"errors"
	"testing"

	"github.com/waterette/waterette/internal/apperror"
	"github.com/waterette/waterette/internal/auth"
	"github.com/waterette/waterette/internal/model"
	"github.com/waterette/waterette/internal/repository/memory"
)

func newAuthEnv(t *testing.T) (*AuthService, *MembershipService, *EventService) {
	t.Helper()
	store := memory.New()
	logger := testLogger()

	tokens, err := auth.NewTokenService("test-secret-at-least-32-bytes-long!!")
	if err != nil {
		t.Fatalf("NewTokenService() error = %v", err)
	}
	// bcrypt cost 4 keeps the hashing under a millisecond per call.
	passwords := auth.NewPasswordServiceForTest(4)

	return NewAuthService(store.Users(), store, tokens, passwords, logger),
		NewMembershipService(store, Policy{DeleteOrphanedEvents: true}, logger),
		NewEventService(store, logger)
}

func TestRegister_Success(t *testing.T) {
	svc, _, _ := newAuthEnv(t)

	result, err := svc.Register(context.Background(), model.RegisterRequest{
		Name:     "Ada",
		Email:    "Ada@Example.com",
		Password: "correct horse battery",
	})
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	if result.User.ID == "" {
		t.Error("expected user to have an ID")
	}
	if result.User.Email != "ada@example.com" {
		t.Errorf("Email = %q, want lowercased %q", result.User.Email, "ada@example.com")
	}
	if result.Token == "" {
		t.Error("expected a session token")
	}

	// The issued token must round-trip back to this user.
	userID, err := svc.ValidateToken(result.Token)
	if err != nil {
		t.Fatalf("ValidateToken() error = %v", err)
	}
	if userID != result.User.ID {
		t.Errorf("token userID = %q, want %q", userID, result.User.ID)
	}
}

func TestRegister_DuplicateEmail(t *testing.T) {
	svc, _, _ := newAuthEnv(t)

	req := model.RegisterRequest{Name: "Ada", Email: "ada@example.com", Password: "long enough pw"}
	if _, err := svc.Register(context.Background(), req); err != nil {
		t.Fatalf("first Register() error = %v", err)
	}

	_, err := svc.Register(context.Background(), req)
	if !errors.Is(err, apperror.ErrConflict) {
		t.Fatalf("second Register() error = %v, want ErrConflict", err)
	}
}

func TestRegister_Validation(t *testing.T) {
	svc, _, _ := newAuthEnv(t)

	tests := []struct {
		name string
		req  model.RegisterRequest
	}{
		{"empty name", model.RegisterRequest{Email: "a@b.com", Password: "long enough pw"}},
		{"empty email", model.RegisterRequest{Name: "Ada", Password: "long enough pw"}},
		{"malformed email", model.RegisterRequest{Name: "Ada", Email: "not-an-email", Password: "long enough pw"}},
		{"short password", model.RegisterRequest{Name: "Ada", Email: "a@b.com", Password: "short"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.Register(context.Background(), tt.req); !errors.Is(err, apperror.ErrValidation) {
				t.Errorf("Register() error = %v, want ErrValidation", err)
			}
		})
	}
}

func TestLogin_Success(t *testing.T) {
	svc, _, _ := newAuthEnv(t)

	if _, err := svc.Register(context.Background(), model.RegisterRequest{
		Name: "Ada", Email: "ada@example.com", Password: "correct horse battery",
	}); err != nil {
		t.Fatalf("setup: Register() error = %v", err)
	}

	result, err := svc.Login(context.Background(), model.LoginRequest{
		Email:    "ADA@example.com",
		Password: "correct horse battery",
	})
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if result.Token == "" {
		t.Error("expected a session token")
	}
}

func TestLogin_WrongPassword(t *testing.T) {
	svc, _, _ := newAuthEnv(t)

	if _, err := svc.Register(context.Background(), model.RegisterRequest{
		Name: "Ada", Email: "ada@example.com", Password: "correct horse battery",
	}); err != nil {
		t.Fatalf("setup: Register() error = %v", err)
	}

	_, err := svc.Login(context.Background(), model.LoginRequest{
		Email:    "ada@example.com",
		Password: "wrong password!!",
	})
	if !errors.Is(err, apperror.ErrUnauthorized) {
		t.Fatalf("Login() error = %v, want ErrUnauthorized", err)
	}
}

func TestLogin_UnknownEmail(t *testing.T) {
	svc, _, _ := newAuthEnv(t)

	_, err := svc.Login(context.Background(), model.LoginRequest{
		Email:    "nobody@example.com",
		Password: "whatever it was",
	})
	// Same error as a wrong password — must not leak which emails exist.
	if !errors.Is(err, apperror.ErrUnauthorized) {
		t.Fatalf("Login() error = %v, want ErrUnauthorized", err)
	}
}

func TestLoginWithGoogle_CreatesAndUpdates(t *testing.T) {
	svc, _, _ := newAuthEnv(t)

	first, err := svc.LoginWithGoogle(context.Background(), &auth.GoogleUser{
		Sub: "g-123", Email: "ada@example.com", Name: "Ada", Picture: "http://img/1.png",
	})
	if err != nil {
		t.Fatalf("first LoginWithGoogle() error = %v", err)
	}

	second, err := svc.LoginWithGoogle(context.Background(), &auth.GoogleUser{
		Sub: "g-123", Email: "ada@example.com", Name: "Ada L.", Picture: "http://img/2.png",
	})
	if err != nil {
		t.Fatalf("second LoginWithGoogle() error = %v", err)
	}

	if second.User.ID != first.User.ID {
		t.Errorf("repeat sign-in produced a new account: %q != %q", second.User.ID, first.User.ID)
	}
	if second.User.Name != "Ada L." {
		t.Errorf("Name = %q, want refreshed %q", second.User.Name, "Ada L.")
	}
	if second.User.AvatarURL != "http://img/2.png" {
		t.Errorf("AvatarURL = %q, want refreshed %q", second.User.AvatarURL, "http://img/2.png")
	}
}

func TestLoginWithGoogle_LinksPasswordAccount(t *testing.T) {
	svc, _, _ := newAuthEnv(t)

	registered, err := svc.Register(context.Background(), model.RegisterRequest{
		Name: "Ada", Email: "ada@example.com", Password: "correct horse battery",
	})
	if err != nil {
		t.Fatalf("setup: Register() error = %v", err)
	}

	google, err := svc.LoginWithGoogle(context.Background(), &auth.GoogleUser{
		Sub: "g-123", Email: "ada@example.com", Name: "Ada",
	})
	if err != nil {
		t.Fatalf("LoginWithGoogle() error = %v", err)
	}
	if google.User.ID != registered.User.ID {
		t.Errorf("Google sign-in created a second account: %q != %q", google.User.ID, registered.User.ID)
	}

	// The password must still work after linking.
	if _, err := svc.Login(context.Background(), model.LoginRequest{
		Email: "ada@example.com", Password: "correct horse battery",
	}); err != nil {
		t.Errorf("Login() after Google link error = %v", err)
	}
}

func TestMe_IncludesJoinedEvents(t *testing.T) {
	svc, members, events := newAuthEnv(t)

	host, err := svc.Register(context.Background(), model.RegisterRequest{
		Name: "Hana", Email: "hana@example.com", Password: "long enough pw",
	})
	if err != nil {
		t.Fatalf("setup: Register() error = %v", err)
	}
	guest, err := svc.Register(context.Background(), model.RegisterRequest{
		Name: "Aki", Email: "aki@example.com", Password: "long enough pw",
	})
	if err != nil {
		t.Fatalf("setup: Register() error = %v", err)
	}

	event, err := events.Create(context.Background(), host.User, validRequest())
	if err != nil {
		t.Fatalf("setup: Create() error = %v", err)
	}
	if _, err := members.Join(context.Background(), event.ID, guest.User); err != nil {
		t.Fatalf("setup: Join() error = %v", err)
	}

	session, err := svc.Me(context.Background(), guest.User.ID)
	if err != nil {
		t.Fatalf("Me() error = %v", err)
	}
	if session.User.Email != "aki@example.com" {
		t.Errorf("Email = %q, want %q", session.User.Email, "aki@example.com")
	}
	if len(session.JoinedEventIDs) != 1 || session.JoinedEventIDs[0] != event.ID {
		t.Errorf("JoinedEventIDs = %v, want [%s]", session.JoinedEventIDs, event.ID)
	}

	// Leaving must drop the event from the derived set.
	if err := members.Leave(context.Background(), event.ID, guest.User.ID); err != nil {
		t.Fatalf("Leave() error = %v", err)
	}
	session, err = svc.Me(context.Background(), guest.User.ID)
	if err != nil {
		t.Fatalf("Me() after leave error = %v", err)
	}
	if len(session.JoinedEventIDs) != 0 {
		t.Errorf("JoinedEventIDs after leave = %v, want empty", session.JoinedEventIDs)
	}
}
