package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/waterette/waterette/internal/apperror"
	"github.com/waterette/waterette/internal/model"
	"github.com/waterette/waterette/internal/repository"
)

// Policy holds the tunable membership rules.
type Policy struct {
	// DeleteOrphanedEvents removes an event when its creator leaves and no
	// attendees remain. Without it, empty host-less events linger in the
	// feed with nobody left who can manage them.
	DeleteOrphanedEvents bool
}

// MembershipService enforces the membership rules for events: joining,
// leaving, and check-in at the door.
//
// The rules it guards:
//   - a user holds at most one membership per event
//   - a join never pushes attendance past a finite capacity
//   - only the event host can check guests in
//   - check-in requires an existing membership; it never creates one
type MembershipService struct {
	events repository.EventRepository
	policy Policy
	logger *slog.Logger
}

func NewMembershipService(events repository.EventRepository, policy Policy, logger *slog.Logger) *MembershipService {
	return &MembershipService{
		events: events,
		policy: policy,
		logger: logger,
	}
}

// Join adds the user to an event's attendee list.
//
// Returns the created membership record, or:
//   - apperror.ErrNotFound if the event doesn't exist
//   - apperror.ErrAlreadyMember if the user already joined
//   - apperror.ErrCapacityExceeded if the event is full
//
// New memberships always start unverified — verification happens at the
// door, not at signup. That also means leave-then-rejoin resets the
// verified flag: a fresh membership is a fresh ticket.
func (s *MembershipService) Join(ctx context.Context, eventID string, user *model.User) (*model.Attendee, error) {
	eventID = strings.TrimSpace(eventID)
	if eventID == "" {
		return nil, apperror.ValidationFailed("eventId", "event ID is required")
	}
	if user == nil {
		return nil, fmt.Errorf("service/membership: user must not be nil")
	}

	event, err := s.events.GetByID(ctx, eventID)
	if err != nil {
		return nil, err
	}

	// Fail fast on the readable errors. The repository re-checks both
	// uniqueness and capacity atomically inside AddAttendee, so a racing
	// double-join or a last-seat race still can't slip through; these
	// checks just produce the error before we build the record.
	if event.Member(user.ID) != nil {
		return nil, apperror.AlreadyMember(eventID, user.ID)
	}
	if event.IsFull() {
		return nil, apperror.CapacityExceeded(eventID, event.Capacity)
	}

	attendee := &model.Attendee{
		UserID:   user.ID,
		Name:     user.Name,
		Email:    user.Email,
		JoinedAt: time.Now().UTC(),
		Verified: false,
	}

	if err := s.events.AddAttendee(ctx, eventID, attendee); err != nil {
		if !errors.Is(err, apperror.ErrAlreadyMember) {
			s.logger.Error("failed to add attendee",
				slog.String("eventID", eventID),
				slog.String("userID", user.ID),
				slog.String("error", err.Error()),
			)
		}
		return nil, err
	}

	s.logger.Info("user joined event",
		slog.String("eventID", eventID),
		slog.String("userID", user.ID),
	)

	return attendee, nil
}

// Leave removes the user's membership from an event.
//
// Returns apperror.ErrNotFound if the event doesn't exist and
// apperror.ErrNotAMember if the user never joined — leaving twice is
// harmless but reported.
//
// When the departing user is the event's creator and nobody else remains,
// the orphan policy decides whether the event is deleted outright.
func (s *MembershipService) Leave(ctx context.Context, eventID, userID string) error {
	eventID = strings.TrimSpace(eventID)
	if eventID == "" {
		return apperror.ValidationFailed("eventId", "event ID is required")
	}

	event, err := s.events.GetByID(ctx, eventID)
	if err != nil {
		return err
	}

	if err := s.events.RemoveAttendee(ctx, eventID, userID); err != nil {
		return err
	}

	s.logger.Info("user left event",
		slog.String("eventID", eventID),
		slog.String("userID", userID),
	)

	if s.policy.DeleteOrphanedEvents && event.HostID == userID && event.AttendeeCount-1 <= 0 {
		if err := s.events.Delete(ctx, eventID); err != nil && !errors.Is(err, apperror.ErrNotFound) {
			s.logger.Error("failed to delete orphaned event",
				slog.String("eventID", eventID),
				slog.String("error", err.Error()),
			)
			return fmt.Errorf("deleting orphaned event: %w", err)
		}
		s.logger.Info("orphaned event deleted", slog.String("eventID", eventID))
	}

	return nil
}

// CheckIn marks a guest's membership verified on behalf of the event host.
//
// callerID is the authenticated user operating the door; userID is the
// guest being admitted. The checks run in order:
//
//  1. the event must exist            → apperror.ErrNotFound
//  2. the caller must be the host     → apperror.ErrForbidden
//  3. the guest must be a member      → apperror.ErrNotAMember
//
// The returned bool reports whether the guest was ALREADY verified —
// checking in twice is not an error, but the door display shows it
// differently ("already entered" vs "granted"). Repeating a check-in
// never changes stored state.
func (s *MembershipService) CheckIn(ctx context.Context, eventID, callerID, userID string) (*model.Attendee, bool, error) {
	eventID = strings.TrimSpace(eventID)
	if eventID == "" {
		return nil, false, apperror.ValidationFailed("eventId", "event ID is required")
	}
	if userID == "" {
		return nil, false, apperror.ValidationFailed("userId", "user ID is required")
	}

	event, err := s.events.GetByID(ctx, eventID)
	if err != nil {
		return nil, false, err
	}

	if event.HostID != callerID {
		return nil, false, apperror.Forbidden("only the event host may check guests in")
	}

	attendee := event.Member(userID)
	if attendee == nil {
		return nil, false, apperror.NotAMember(eventID, userID)
	}

	if attendee.Verified {
		// Idempotent: already through the door, nothing to write.
		return attendee, true, nil
	}

	if err := s.events.MarkVerified(ctx, eventID, userID); err != nil {
		s.logger.Error("failed to mark attendee verified",
			slog.String("eventID", eventID),
			slog.String("userID", userID),
			slog.String("error", err.Error()),
		)
		return nil, false, err
	}

	attendee.Verified = true
	s.logger.Info("attendee checked in",
		slog.String("eventID", eventID),
		slog.String("userID", userID),
	)

	return attendee, false, nil
}
