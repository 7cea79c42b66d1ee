// Package memory implements the repository interfaces with in-process maps.
//
// This is the "local-only" flavour of the product made into a real backend
// mode: run the server with no database path and state lives (and dies) with
// the process. It is also what the service tests run against, so the
// membership rules get exercised without any disk I/O.
//
// All methods return copies, never internal pointers — callers mutate state
// only through the repository, the same contract the sqlite implementation
// enforces by construction.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rs/xid"
	"github.com/waterette/waterette/internal/apperror"
	"github.com/waterette/waterette/internal/model"
	"github.com/waterette/waterette/internal/repository"
)

// Store holds all records behind one mutex. A plain sync.Mutex is enough:
// every mutating operation is a short critical section, and the product's
// concurrency model is one request at a time per session anyway.
type Store struct {
	mu           sync.Mutex
	events       map[string]*model.Event
	users        map[string]*model.User
	usersByEmail map[string]string // email → user id
	seq          int               // creation order tiebreaker for List
	order        map[string]int    // event id → seq
}

var (
	_ repository.EventRepository = (*Store)(nil)
	_ repository.UserRepository  = (*UserStore)(nil)
)

// New creates an empty in-memory store.
func New() *Store {
	return &Store{
		events:       make(map[string]*model.Event),
		users:        make(map[string]*model.User),
		usersByEmail: make(map[string]string),
		order:        make(map[string]int),
	}
}

// --- EventRepository ---

func (s *Store) Create(_ context.Context, event *model.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	event.ID = xid.New().String()
	event.CreatedAt = time.Now()
	event.AttendeeCount = len(event.Attendees)
	for i := range event.Attendees {
		if event.Attendees[i].JoinedAt.IsZero() {
			event.Attendees[i].JoinedAt = event.CreatedAt
		}
	}

	stored := copyEvent(event)
	s.events[event.ID] = stored
	s.seq++
	s.order[event.ID] = s.seq
	return nil
}

func (s *Store) GetByID(_ context.Context, id string) (*model.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	event, ok := s.events[id]
	if !ok {
		return nil, apperror.NotFound("event", id)
	}
	return copyEvent(event), nil
}

func (s *Store) List(_ context.Context) ([]model.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	events := make([]model.Event, 0, len(s.events))
	for _, e := range s.events {
		c := copyEvent(e)
		c.Attendees = nil // List leaves sequences unloaded, like sqlite
		events = append(events, *c)
	}
	// Newest first; the insertion sequence resolves identical timestamps.
	sort.Slice(events, func(i, j int) bool {
		return s.order[events[i].ID] > s.order[events[j].ID]
	})
	return events, nil
}

func (s *Store) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.events[id]; !ok {
		return apperror.NotFound("event", id)
	}
	delete(s.events, id)
	delete(s.order, id)
	return nil
}

func (s *Store) AddAttendee(_ context.Context, eventID string, attendee *model.Attendee) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	event, ok := s.events[eventID]
	if !ok {
		return apperror.NotFound("event", eventID)
	}
	if event.Member(attendee.UserID) != nil {
		return apperror.AlreadyMember(eventID, attendee.UserID)
	}
	// Capacity is re-checked here, under the lock, so racing joins that both
	// saw a free seat in the service's snapshot can't overfill the event.
	if event.IsFull() {
		return apperror.CapacityExceeded(eventID, event.Capacity)
	}
	if attendee.JoinedAt.IsZero() {
		attendee.JoinedAt = time.Now()
	}

	// Append and counter move together under the lock — the atomic pair.
	event.Attendees = append(event.Attendees, *attendee)
	event.AttendeeCount++
	return nil
}

func (s *Store) RemoveAttendee(_ context.Context, eventID, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	event, ok := s.events[eventID]
	if !ok {
		return apperror.NotFound("event", eventID)
	}

	for i := range event.Attendees {
		if event.Attendees[i].UserID == userID {
			event.Attendees = append(event.Attendees[:i], event.Attendees[i+1:]...)
			event.AttendeeCount--
			return nil
		}
	}
	return apperror.NotAMember(eventID, userID)
}

func (s *Store) MarkVerified(_ context.Context, eventID, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	event, ok := s.events[eventID]
	if !ok {
		return apperror.NotFound("event", eventID)
	}
	member := event.Member(userID)
	if member == nil {
		return apperror.NotAMember(eventID, userID)
	}
	member.Verified = true
	return nil
}

func (s *Store) JoinedEventIDs(_ context.Context, userID string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]string, 0, 8)
	for id, e := range s.events {
		if e.Member(userID) != nil {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool {
		return s.order[ids[i]] > s.order[ids[j]]
	})
	return ids, nil
}

// --- UserRepository ---

// UserStore is the users view of the store. Event Create(event) already
// claims the method name on *Store, so user operations get their own
// receiver, mirroring the sqlite Users() split.
type UserStore struct {
	s *Store
}

// Users returns the repository.UserRepository view of this store.
func (s *Store) Users() *UserStore {
	return &UserStore{s: s}
}

func (u *UserStore) Create(_ context.Context, user *model.User) error {
	s := u.s
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, claimed := s.usersByEmail[user.Email]; claimed {
		return apperror.Conflict("user", user.Email)
	}

	now := time.Now()
	user.ID = xid.New().String()
	user.CreatedAt = now
	user.UpdatedAt = now

	stored := *user
	s.users[user.ID] = &stored
	s.usersByEmail[user.Email] = user.ID
	return nil
}

func (u *UserStore) GetByID(_ context.Context, id string) (*model.User, error) {
	s := u.s
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[id]
	if !ok {
		return nil, apperror.NotFound("user", id)
	}
	result := *user
	return &result, nil
}

func (u *UserStore) GetByEmail(_ context.Context, email string) (*model.User, error) {
	s := u.s
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.usersByEmail[email]
	if !ok {
		return nil, apperror.NotFound("user", email)
	}
	result := *s.users[id]
	return &result, nil
}

func (u *UserStore) UpsertGoogle(_ context.Context, user *model.User) error {
	s := u.s
	s.mu.Lock()
	defer s.mu.Unlock()

	if id, ok := s.usersByEmail[user.Email]; ok {
		existing := s.users[id]
		user.ID = existing.ID
		user.PasswordHash = existing.PasswordHash
		user.CreatedAt = existing.CreatedAt
		user.UpdatedAt = time.Now()
		if user.Name == "" {
			user.Name = existing.Name
		}
		if user.AvatarURL == "" {
			user.AvatarURL = existing.AvatarURL
		}
		stored := *user
		s.users[id] = &stored
		return nil
	}

	now := time.Now()
	user.ID = xid.New().String()
	user.CreatedAt = now
	user.UpdatedAt = now
	stored := *user
	s.users[user.ID] = &stored
	s.usersByEmail[user.Email] = user.ID
	return nil
}

func copyEvent(e *model.Event) *model.Event {
	c := *e
	c.Attendees = append([]model.Attendee(nil), e.Attendees...)
	return &c
}
