// Package scanner implements the door side of an event: decoding ticket QR
// credentials, deciding whether the guest gets in, and the small state
// machine that drives a scanning station's display.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/waterette/waterette/internal/apperror"
	"github.com/waterette/waterette/internal/model"
)

// Credential is the decoded payload of a ticket QR code.
type Credential struct {
	EventID string
	UserID  string
}

// ErrMalformedCredential is returned for QR payloads that don't carry an
// event/user pair.
var ErrMalformedCredential = errors.New("scanner: malformed credential")

// ParseCredential decodes a raw QR payload of the form "<eventID>-<userID>".
//
// The split happens at the FIRST dash: event IDs never contain one (xid
// alphabet is lowercase letters and digits), while the user part may — it
// can be an email or another dashed identifier.
func ParseCredential(raw string) (Credential, error) {
	eventID, userID, found := strings.Cut(raw, "-")
	if !found || eventID == "" || userID == "" {
		return Credential{}, fmt.Errorf("%w: %q", ErrMalformedCredential, raw)
	}
	return Credential{EventID: eventID, UserID: userID}, nil
}

// Outcome is the door decision for a single scan.
type Outcome string

const (
	// OutcomeGranted admits the guest and marks their ticket verified.
	OutcomeGranted Outcome = "granted"
	// OutcomeAlreadyEntered means the ticket was already verified. The
	// guest is through the door; scanning again changed nothing.
	OutcomeAlreadyEntered Outcome = "already_entered"
	// OutcomeDenied refuses entry. Result.Reason says why.
	OutcomeDenied Outcome = "denied"
)

// Result is what the scanning station shows after a scan.
type Result struct {
	Outcome  Outcome         `json:"outcome"`
	Reason   string          `json:"reason,omitempty"`
	Attendee *model.Attendee `json:"attendee,omitempty"`
}

// CheckIner is the slice of the membership service the validator needs.
type CheckIner interface {
	CheckIn(ctx context.Context, eventID, callerID, userID string) (*model.Attendee, bool, error)
}

// Validator turns raw scans into door decisions.
//
// Refusals come back as an OutcomeDenied Result, not an error — a bad scan
// is a normal day at the door, and the station displays it rather than
// failing. The error return is reserved for infrastructure faults (storage
// down), which the caller surfaces as a 5xx.
type Validator struct {
	members CheckIner
}

func NewValidator(members CheckIner) *Validator {
	return &Validator{members: members}
}

// Validate decides a scan performed by callerID. The checks run in order
// and stop at the first failure:
//
//  1. the payload must decode to an event/user pair
//  2. the event must exist
//  3. the caller must be the event's host
//  4. the scanned user must be a member of the event
//
// A passing scan verifies the membership (first time → granted, repeat →
// already entered). A denied scan never changes stored state.
func (v *Validator) Validate(ctx context.Context, callerID, raw string) (*Result, error) {
	cred, err := ParseCredential(raw)
	if err != nil {
		return &Result{Outcome: OutcomeDenied, Reason: "malformed ticket code"}, nil
	}

	attendee, already, err := v.members.CheckIn(ctx, cred.EventID, callerID, cred.UserID)
	switch {
	case err == nil:
		if already {
			return &Result{Outcome: OutcomeAlreadyEntered, Attendee: attendee}, nil
		}
		return &Result{Outcome: OutcomeGranted, Attendee: attendee}, nil
	case errors.Is(err, apperror.ErrNotFound):
		return &Result{Outcome: OutcomeDenied, Reason: "event not found"}, nil
	case errors.Is(err, apperror.ErrForbidden):
		return &Result{Outcome: OutcomeDenied, Reason: "only the event host may scan tickets"}, nil
	case errors.Is(err, apperror.ErrNotAMember):
		return &Result{Outcome: OutcomeDenied, Reason: "no ticket for this event"}, nil
	default:
		return nil, fmt.Errorf("scanner: validating scan: %w", err)
	}
}

// State is the scanning station's display mode.
type State string

const (
	// StateIdle — the station isn't running.
	StateIdle State = "idle"
	// StateScanning — the camera is live, waiting for a code.
	StateScanning State = "scanning"
	// StateResult — a decision is on screen for the dwell period.
	StateResult State = "result"
)

// DefaultResultDwell is how long a decision stays on screen before the
// station returns to scanning.
const DefaultResultDwell = 3 * time.Second

// Session models one scanning station. After each scan the decision is
// shown for a dwell period during which further scans are ignored — this
// is what stops one QR code held in front of the camera from registering
// dozens of times.
//
// Safe for concurrent use.
type Session struct {
	mu        sync.Mutex
	state     State
	last      *Result
	shownAt   time.Time
	dwell     time.Duration
	validator *Validator

	// now is replaceable in tests.
	now func() time.Time
}

func NewSession(validator *Validator, dwell time.Duration) *Session {
	if dwell <= 0 {
		dwell = DefaultResultDwell
	}
	return &Session{
		state:     StateIdle,
		dwell:     dwell,
		validator: validator,
		now:       time.Now,
	}
}

// Start switches the station from idle to scanning. Starting an already
// running session is a no-op.
func (s *Session) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateIdle {
		s.state = StateScanning
	}
}

// Stop returns the station to idle and clears the last result.
func (s *Session) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = StateIdle
	s.last = nil
}

// Scan processes a raw QR payload on behalf of callerID.
//
// Scans are only accepted in the scanning state: an idle station ignores
// input, and during the result dwell the code in front of the camera is
// dropped. Ignored scans return (nil, nil).
func (s *Session) Scan(ctx context.Context, callerID, raw string) (*Result, error) {
	s.mu.Lock()
	s.advance()
	if s.state != StateScanning {
		s.mu.Unlock()
		return nil, nil
	}
	s.mu.Unlock()

	// The validator call happens outside the lock — it may hit storage.
	result, err := s.validator.Validate(ctx, callerID, raw)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.state = StateResult
	s.last = result
	s.shownAt = s.now()
	s.mu.Unlock()

	return result, nil
}

// State reports the station's current display mode, moving result back to
// scanning once the dwell period has passed.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.advance()
	return s.state
}

// LastResult returns the decision currently or most recently displayed,
// or nil if none.
func (s *Session) LastResult() *Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

// advance expires the result display. Callers must hold s.mu.
func (s *Session) advance() {
	if s.state == StateResult && s.now().Sub(s.shownAt) >= s.dwell {
		s.state = StateScanning
	}
}
