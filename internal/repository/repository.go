// Package repository declares the storage contracts the rest of the app is
// written against.
//
// The product ran in two flavours: a local-only prototype that kept
// everything in browser storage, and a backend-connected one where the server
// is the source of truth. Both are one interface here with two
// implementations (repository/memory and repository/sqlite), so the
// membership rules in the service layer are written and tested exactly once.
package repository

import (
	"context"

	"github.com/waterette/waterette/internal/model"
)

// EventRepository owns event records and their embedded attendee sequences.
//
// Attendee mutations are atomic pairs: AddAttendee and RemoveAttendee must
// change the attendee sequence and the denormalized attendee count together
// or not at all. Implementations guarantee this (a transaction in sqlite, a
// mutex in memory).
type EventRepository interface {
	// Create persists a new event, assigning ID and CreatedAt, along with
	// any initial attendees already on the record (the auto-joined host).
	Create(ctx context.Context, event *model.Event) error

	// GetByID returns the event with its full attendee sequence, in join
	// order. Returns apperror.ErrNotFound for an unknown id.
	GetByID(ctx context.Context, id string) (*model.Event, error)

	// List returns all events, most recently created first, without
	// attendee sequences (AttendeeCount is populated).
	List(ctx context.Context) ([]model.Event, error)

	// Delete removes an event and its attendee records.
	Delete(ctx context.Context, id string) error

	// AddAttendee appends a membership record and increments the count.
	// Returns apperror.ErrAlreadyMember if the user already has a record.
	AddAttendee(ctx context.Context, eventID string, attendee *model.Attendee) error

	// RemoveAttendee removes the user's record and decrements the count.
	// Returns apperror.ErrNotAMember if no record exists.
	RemoveAttendee(ctx context.Context, eventID, userID string) error

	// MarkVerified sets the verified flag on an existing membership record.
	MarkVerified(ctx context.Context, eventID, userID string) error

	// JoinedEventIDs returns the ids of every event the user is currently a
	// member of. This is how the session's "my events" set is derived — it
	// is never maintained independently of the attendee records.
	JoinedEventIDs(ctx context.Context, userID string) ([]string, error)
}

// UserRepository owns user accounts.
type UserRepository interface {
	// Create inserts a new user, assigning ID and timestamps.
	// Returns apperror.ErrConflict if the email is already claimed.
	Create(ctx context.Context, user *model.User) error

	// GetByID returns a user by internal id.
	GetByID(ctx context.Context, id string) (*model.User, error)

	// GetByEmail returns a user by lowercased email.
	GetByEmail(ctx context.Context, email string) (*model.User, error)

	// UpsertGoogle inserts or updates a user from a Google sign-in, keyed
	// by email: first sign-in creates the account, later ones refresh name,
	// avatar, and Google subject id. The internal ID never changes.
	UpsertGoogle(ctx context.Context, user *model.User) error
}
