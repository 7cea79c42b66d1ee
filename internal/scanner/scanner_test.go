package scanner

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/waterette/waterette/internal/model"
	"github.com/waterette/waterette/internal/repository/memory"
	"github.com/waterette/waterette/internal/service"
)

func TestParseCredential(t *testing.T) {
	tests := []struct {
		raw     string
		want    Credential
		wantErr bool
	}{
		{"c1-alice@test.com", Credential{EventID: "c1", UserID: "alice@test.com"}, false},
		// Only the FIRST dash splits; the user part may contain more.
		{"c1-user-with-dashes", Credential{EventID: "c1", UserID: "user-with-dashes"}, false},
		{"d2h3kqvjjv0cq6vvb8og-9m4e2mr0ui3e8a215n4g", Credential{EventID: "d2h3kqvjjv0cq6vvb8og", UserID: "9m4e2mr0ui3e8a215n4g"}, false},
		{"nodata", Credential{}, true},
		{"", Credential{}, true},
		{"-missingevent", Credential{}, true},
		{"missinguser-", Credential{}, true},
	}

	for _, tt := range tests {
		got, err := ParseCredential(tt.raw)
		if tt.wantErr {
			if !errors.Is(err, ErrMalformedCredential) {
				t.Errorf("ParseCredential(%q) error = %v, want ErrMalformedCredential", tt.raw, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseCredential(%q) error = %v", tt.raw, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseCredential(%q) = %+v, want %+v", tt.raw, got, tt.want)
		}
	}
}

// newDoorEnv builds a validator over real services and an in-memory store,
// with one event hosted by "host" and one joined guest "guest".
func newDoorEnv(t *testing.T) (*Validator, *service.EventService, string) {
	t.Helper()
	store := memory.New()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	events := service.NewEventService(store, logger)
	members := service.NewMembershipService(store, service.Policy{}, logger)

	event, err := events.Create(context.Background(),
		&model.User{ID: "host", Name: "Hana", Email: "hana@example.com"},
		model.CreateEventRequest{
			Title:    "Door Test Night",
			Date:     "2026-12-01",
			Time:     "21:00",
			Location: "Daikanyama",
		})
	if err != nil {
		t.Fatalf("setup: Create() error = %v", err)
	}
	if _, err := members.Join(context.Background(), event.ID,
		&model.User{ID: "guest", Name: "Aki", Email: "aki@example.com"}); err != nil {
		t.Fatalf("setup: Join() error = %v", err)
	}

	return NewValidator(members), events, event.ID
}

func TestValidate_Granted(t *testing.T) {
	v, events, eventID := newDoorEnv(t)

	result, err := v.Validate(context.Background(), "host", eventID+"-guest")
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if result.Outcome != OutcomeGranted {
		t.Fatalf("Outcome = %q, want %q (reason %q)", result.Outcome, OutcomeGranted, result.Reason)
	}
	if result.Attendee == nil || result.Attendee.UserID != "guest" {
		t.Errorf("Attendee = %+v, want guest", result.Attendee)
	}

	event, _ := events.Get(context.Background(), eventID)
	if !event.Member("guest").Verified {
		t.Error("granted scan did not persist verification")
	}
}

func TestValidate_AlreadyEntered(t *testing.T) {
	v, _, eventID := newDoorEnv(t)

	if _, err := v.Validate(context.Background(), "host", eventID+"-guest"); err != nil {
		t.Fatalf("first Validate() error = %v", err)
	}

	result, err := v.Validate(context.Background(), "host", eventID+"-guest")
	if err != nil {
		t.Fatalf("second Validate() error = %v", err)
	}
	if result.Outcome != OutcomeAlreadyEntered {
		t.Errorf("Outcome = %q, want %q", result.Outcome, OutcomeAlreadyEntered)
	}
}

func TestValidate_DeniedReasons(t *testing.T) {
	v, events, eventID := newDoorEnv(t)

	tests := []struct {
		name     string
		callerID string
		raw      string
	}{
		{"malformed payload", "host", "nodata"},
		{"unknown event", "host", "nosuchevent-guest"},
		{"caller not host", "guest", eventID + "-guest"},
		{"scanned user not a member", "host", eventID + "-stranger"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := v.Validate(context.Background(), tt.callerID, tt.raw)
			if err != nil {
				t.Fatalf("Validate() error = %v", err)
			}
			if result.Outcome != OutcomeDenied {
				t.Errorf("Outcome = %q, want %q", result.Outcome, OutcomeDenied)
			}
			if result.Reason == "" {
				t.Error("denied result should carry a reason")
			}
		})
	}

	// None of the denied scans may have altered the guest's ticket.
	event, _ := events.Get(context.Background(), eventID)
	if event.Member("guest").Verified {
		t.Error("denied scans must not verify anyone")
	}
	if event.Member("stranger") != nil {
		t.Error("denied scan created a membership")
	}
}

func TestSession_Lifecycle(t *testing.T) {
	v, _, eventID := newDoorEnv(t)

	now := time.Date(2026, 12, 1, 21, 0, 0, 0, time.UTC)
	session := NewSession(v, 3*time.Second)
	session.now = func() time.Time { return now }

	if got := session.State(); got != StateIdle {
		t.Fatalf("initial State() = %q, want %q", got, StateIdle)
	}

	// An idle station ignores scans.
	result, err := session.Scan(context.Background(), "host", eventID+"-guest")
	if err != nil || result != nil {
		t.Fatalf("Scan() while idle = (%v, %v), want (nil, nil)", result, err)
	}

	session.Start()
	if got := session.State(); got != StateScanning {
		t.Fatalf("State() after Start = %q, want %q", got, StateScanning)
	}

	result, err = session.Scan(context.Background(), "host", eventID+"-guest")
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	if result.Outcome != OutcomeGranted {
		t.Fatalf("Outcome = %q, want %q", result.Outcome, OutcomeGranted)
	}
	if got := session.State(); got != StateResult {
		t.Fatalf("State() after scan = %q, want %q", got, StateResult)
	}

	// During the dwell the same code in front of the camera is dropped.
	result, err = session.Scan(context.Background(), "host", eventID+"-guest")
	if err != nil || result != nil {
		t.Fatalf("Scan() during dwell = (%v, %v), want (nil, nil)", result, err)
	}

	// Two seconds in: still showing the result.
	now = now.Add(2 * time.Second)
	if got := session.State(); got != StateResult {
		t.Fatalf("State() at 2s = %q, want %q", got, StateResult)
	}

	// Past the dwell: back to scanning, last result still readable.
	now = now.Add(2 * time.Second)
	if got := session.State(); got != StateScanning {
		t.Fatalf("State() at 4s = %q, want %q", got, StateScanning)
	}
	if last := session.LastResult(); last == nil || last.Outcome != OutcomeGranted {
		t.Errorf("LastResult() = %+v, want the granted result", last)
	}

	// The next scan of the same ticket reports already entered.
	result, err = session.Scan(context.Background(), "host", eventID+"-guest")
	if err != nil {
		t.Fatalf("Scan() after dwell error = %v", err)
	}
	if result.Outcome != OutcomeAlreadyEntered {
		t.Errorf("Outcome = %q, want %q", result.Outcome, OutcomeAlreadyEntered)
	}

	session.Stop()
	if got := session.State(); got != StateIdle {
		t.Fatalf("State() after Stop = %q, want %q", got, StateIdle)
	}
	if session.LastResult() != nil {
		t.Error("Stop() should clear the last result")
	}
}
