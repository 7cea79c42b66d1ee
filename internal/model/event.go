// Package model defines the data structures used throughout the application.
// In Go, we use structs to represent our data — similar to classes in other languages,
// but without inheritance. Go favours composition over inheritance.
package model

import "time"

// Event represents one scheduled gathering that users can join.
//
// The attendee list is embedded in the event rather than modelled as a
// standalone aggregate: every read path in the product (feed cards, detail
// views, the host dashboard) needs the count or the list alongside the event,
// and no path needs an attendee without its event.
//
// WHY BOTH AttendeeCount AND Attendees?
// AttendeeCount is a denormalized copy of len(Attendees) so list endpoints can
// skip loading every guest row. The repository updates both in the same
// transaction — at no observable point do they disagree.
//
// Capacity <= 0 means unlimited. The product shipped in two flavours (one with
// a hard cap, one without); a single optional field covers both.
type Event struct {
	ID            string     `json:"id"`
	Title         string     `json:"title"`
	Description   string     `json:"description"`
	Date          string     `json:"date"` // YYYY-MM-DD
	Time          string     `json:"time"` // HH:MM, 24-hour
	Location      string     `json:"location"`
	Price         string     `json:"price"`
	ImageURL      string     `json:"imageUrl,omitempty"`
	Capacity      int        `json:"capacity"`
	HostID        string     `json:"hostId"`
	AttendeeCount int        `json:"attendeeCount"`
	Attendees     []Attendee `json:"attendees,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
}

// HasCapacity reports whether this event enforces a seat limit.
func (e *Event) HasCapacity() bool {
	return e.Capacity > 0
}

// IsFull returns true when a capacity is configured and no seats remain.
func (e *Event) IsFull() bool {
	return e.HasCapacity() && e.AttendeeCount >= e.Capacity
}

// Remaining returns the number of open seats, or -1 for unlimited events.
func (e *Event) Remaining() int {
	if !e.HasCapacity() {
		return -1
	}
	return e.Capacity - e.AttendeeCount
}

// Member returns the attendee record for the given user, or nil if the
// user has not joined this event.
func (e *Event) Member(userID string) *Attendee {
	for i := range e.Attendees {
		if e.Attendees[i].UserID == userID {
			return &e.Attendees[i]
		}
	}
	return nil
}

// Attendee is one user's membership record for one event.
//
// Verified starts false and flips to true exactly once, when the host checks
// the guest in (by scanning their pass or from the guest list). The host is
// the only exception: they are appended pre-verified at event creation.
//
// Name and email are denormalized from the user record at join time so the
// host's guest list renders without a join against the users table.
type Attendee struct {
	UserID   string    `json:"userId"`
	Name     string    `json:"name"`
	Email    string    `json:"email"`
	JoinedAt time.Time `json:"joinedAt"`
	Verified bool      `json:"verified"`
}

// CreateEventRequest is the payload for POST /events.
type CreateEventRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Date        string `json:"date"`
	Time        string `json:"time"`
	Location    string `json:"location"`
	Price       string `json:"price"`
	ImageURL    string `json:"imageUrl"`
	Capacity    int    `json:"capacity"`
}
