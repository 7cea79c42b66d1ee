// Package service contains the business logic layer of the application.
//
// THE THREE-LAYER ARCHITECTURE:
// In a well-structured Go web app, code is organised into three layers:
//
//   Handler (HTTP layer)    → parses requests, writes responses
//   Service (Business layer) → validates, enforces rules, orchestrates
//   Repository (Data layer) → reads/writes to the database
//
// WHY A SEPARATE SERVICE LAYER?
// Without a service layer, handlers do everything: parse HTTP, validate data,
// call the database, format responses. That makes the membership rules —
// who may join an event, when a guest counts as checked in, what happens
// when the last attendee leaves — impossible to test without spinning up
// HTTP. With a service layer they're plain Go function calls.
//
// THE DEPENDENCY CHAIN:
//   main.go creates:  DB → Repository → Service → Handler
//   At runtime:       Handler calls Service calls Repository calls DB
//
// DEPENDENCY INJECTION:
// Services take repository interfaces, NOT concrete types. That's why the
// same MembershipService runs unchanged against the SQLite store and the
// in-memory store (see internal/repository/memory) — the tests in this
// package exercise it against the latter.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/waterette/waterette/internal/apperror"
	"github.com/waterette/waterette/internal/model"
	"github.com/waterette/waterette/internal/repository"
)

// Validation constants.
const (
	MaxTitleLength       = 200
	MaxDescriptionLength = 5000
	MaxLocationLength    = 200
)

// EventService handles business logic for the event catalogue: creating
// events, listing and filtering the feed, and reading a single event.
// Membership changes (join/leave/check-in) live on MembershipService.
type EventService struct {
	events repository.EventRepository
	logger *slog.Logger
}

func NewEventService(events repository.EventRepository, logger *slog.Logger) *EventService {
	return &EventService{
		events: events,
		logger: logger,
	}
}

// Create validates and saves a new event hosted by the given user.
//
// The host is enrolled as the event's first attendee, already verified —
// nobody needs to scan the host's ticket at the door of their own event.
// This happens in the same repository call as the insert, so an event is
// never observable with zero attendees at birth.
func (s *EventService) Create(ctx context.Context, host *model.User, req model.CreateEventRequest) (*model.Event, error) {
	if host == nil {
		return nil, fmt.Errorf("service/event: host must not be nil")
	}

	title := strings.TrimSpace(req.Title)
	if title == "" {
		return nil, apperror.ValidationFailed("title", "event title is required")
	}
	if len(title) > MaxTitleLength {
		return nil, apperror.ValidationFailed("title",
			fmt.Sprintf("event title must be %d characters or less", MaxTitleLength))
	}
	if len(req.Description) > MaxDescriptionLength {
		return nil, apperror.ValidationFailed("description",
			fmt.Sprintf("description must be %d characters or less", MaxDescriptionLength))
	}

	if req.Date == "" {
		return nil, apperror.ValidationFailed("date", "event date is required")
	}
	if _, err := time.Parse("2006-01-02", req.Date); err != nil {
		return nil, apperror.ValidationFailed("date", "event date must be in YYYY-MM-DD format")
	}
	if req.Time == "" {
		return nil, apperror.ValidationFailed("time", "event time is required")
	}
	if _, err := time.Parse("15:04", req.Time); err != nil {
		return nil, apperror.ValidationFailed("time", "event time must be in HH:MM format")
	}

	location := strings.TrimSpace(req.Location)
	if location == "" {
		return nil, apperror.ValidationFailed("location", "event location is required")
	}
	if len(location) > MaxLocationLength {
		return nil, apperror.ValidationFailed("location",
			fmt.Sprintf("location must be %d characters or less", MaxLocationLength))
	}

	if req.Capacity < 0 {
		return nil, apperror.ValidationFailed("capacity", "capacity must not be negative")
	}

	price := strings.TrimSpace(req.Price)
	if price == "" {
		price = "Free"
	}

	event := &model.Event{
		Title:       title,
		Description: strings.TrimSpace(req.Description),
		Date:        req.Date,
		Time:        req.Time,
		Location:    location,
		Price:       price,
		ImageURL:    strings.TrimSpace(req.ImageURL),
		Capacity:    req.Capacity,
		HostID:      host.ID,
		Attendees: []model.Attendee{
			{
				UserID:   host.ID,
				Name:     host.Name,
				Email:    host.Email,
				JoinedAt: time.Now().UTC(),
				Verified: true,
			},
		},
	}

	if err := s.events.Create(ctx, event); err != nil {
		s.logger.Error("failed to create event",
			slog.String("title", title),
			slog.String("hostID", host.ID),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("creating event: %w", err)
	}

	s.logger.Info("event created",
		slog.String("id", event.ID),
		slog.String("title", event.Title),
		slog.String("hostID", event.HostID),
	)

	return event, nil
}

// List returns the event feed, newest first, narrowed by the query and
// filter mode. viewerID is the requesting user's ID, or "" for anonymous
// browsers — the "available" and "mine" modes need it to know which events
// the viewer already belongs to.
func (s *EventService) List(ctx context.Context, viewerID, query string, mode FilterMode) ([]model.Event, error) {
	events, err := s.events.List(ctx)
	if err != nil {
		s.logger.Error("failed to list events", slog.String("error", err.Error()))
		return nil, fmt.Errorf("listing events: %w", err)
	}

	var joined map[string]bool
	if mode != FilterAll && viewerID != "" {
		ids, err := s.events.JoinedEventIDs(ctx, viewerID)
		if err != nil {
			s.logger.Error("failed to load joined events",
				slog.String("userID", viewerID),
				slog.String("error", err.Error()),
			)
			return nil, fmt.Errorf("listing events: %w", err)
		}
		joined = make(map[string]bool, len(ids))
		for _, id := range ids {
			joined[id] = true
		}
	}

	return Filter(events, query, mode, joined), nil
}

// Get returns a single event with its full attendee list.
// Returns apperror.ErrNotFound if the event doesn't exist.
func (s *EventService) Get(ctx context.Context, id string) (*model.Event, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, apperror.ValidationFailed("id", "event ID is required")
	}
	return s.events.GetByID(ctx, id)
}

// Attendees returns the attendee list for an event, host only.
//
// The guest list carries names and emails, so it's restricted to the user
// running the door — everyone else gets Forbidden.
func (s *EventService) Attendees(ctx context.Context, eventID, callerID string) ([]model.Attendee, error) {
	event, err := s.Get(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if event.HostID != callerID {
		return nil, apperror.Forbidden("only the event host may view the attendee list")
	}
	return event.Attendees, nil
}
