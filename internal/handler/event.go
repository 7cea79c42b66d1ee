package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/waterette/waterette/internal/auth"
	"github.com/waterette/waterette/internal/model"
	"github.com/waterette/waterette/internal/scanner"
	"github.com/waterette/waterette/internal/service"
)

// EventHandler manages the event feed and membership endpoints.
//
// Each handler is thin: parse the request, pull the caller's identity from
// the context, delegate to a service, translate the result to JSON. All
// business rules (capacity, host privileges, verification) live in the
// service layer.
type EventHandler struct {
	events  *service.EventService
	members *service.MembershipService
	auths   *service.AuthService
	scans   *scanner.Validator
	logger  *slog.Logger
}

func NewEventHandler(
	events *service.EventService,
	members *service.MembershipService,
	auths *service.AuthService,
	scans *scanner.Validator,
	logger *slog.Logger,
) *EventHandler {
	return &EventHandler{
		events:  events,
		members: members,
		auths:   auths,
		scans:   scans,
		logger:  logger,
	}
}

// HandleList returns the event feed.
//
// HTTP: GET /events?q=<search>&filter=<all|available|mine>
// Auth: Optional — anonymous viewers get the full feed; the "available"
// and "mine" filters only make sense signed in.
func (h *EventHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	viewerID, _ := auth.UserIDFromContext(r.Context())
	query := r.URL.Query().Get("q")
	mode := service.ParseFilterMode(r.URL.Query().Get("filter"))

	events, err := h.events.List(r.Context(), viewerID, query, mode)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, events)
}

// HandleCreate creates a new event hosted by the caller.
//
// HTTP: POST /events
// Auth: Required
// REQUEST BODY: {"title": "...", "date": "YYYY-MM-DD", "time": "HH:MM",
// "location": "...", "description": "...", "price": "...", "imageUrl": "...",
// "capacity": 0}
func (h *EventHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}

	var req model.CreateEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"bad_request","message":"invalid JSON body"}`, http.StatusBadRequest)
		return
	}

	host, err := h.auths.GetUserByID(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}

	event, err := h.events.Create(r.Context(), host, req)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, event)
}

// HandleGet returns a single event.
//
// HTTP: GET /events/{id}
// Auth: Optional — the attendee list carries names and emails, so it is
// included only when the viewer is the host. Everyone else gets the event
// with the count alone.
func (h *EventHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	event, err := h.events.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}

	if viewerID, _ := auth.UserIDFromContext(r.Context()); viewerID != event.HostID {
		event.Attendees = nil
	}

	writeJSON(w, http.StatusOK, event)
}

// membershipRequest is the body for join/leave.
type membershipRequest struct {
	EventID string `json:"eventId"`
}

// HandleJoin adds the caller to an event's attendee list.
//
// HTTP: POST /events/join
// Auth: Required
// REQUEST BODY: {"eventId": "..."}
func (h *EventHandler) HandleJoin(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}

	var req membershipRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"bad_request","message":"invalid JSON body"}`, http.StatusBadRequest)
		return
	}

	user, err := h.auths.GetUserByID(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}

	if _, err := h.members.Join(r.Context(), req.EventID, user); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// HandleLeave removes the caller from an event's attendee list.
//
// HTTP: POST /events/leave
// Auth: Required
// REQUEST BODY: {"eventId": "..."}
func (h *EventHandler) HandleLeave(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}

	var req membershipRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"bad_request","message":"invalid JSON body"}`, http.StatusBadRequest)
		return
	}

	if err := h.members.Leave(r.Context(), req.EventID, userID); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// HandleAttendees returns the guest list for an event.
//
// HTTP: GET /events/{id}/attendees
// Auth: Required — and the service only allows the event host through.
func (h *EventHandler) HandleAttendees(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}

	attendees, err := h.events.Attendees(r.Context(), r.PathValue("id"), userID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, attendees)
}

// checkInRequest is the body for a direct check-in.
type checkInRequest struct {
	UserID string `json:"userId"`
}

// checkInResponse reports a direct check-in. AlreadyVerified distinguishes
// a fresh admit from a repeat — the client shows them differently.
type checkInResponse struct {
	Attendee        *model.Attendee `json:"attendee"`
	AlreadyVerified bool            `json:"alreadyVerified"`
}

// HandleCheckIn verifies a guest's membership without going through the
// QR scanner — the host taps a name on the attendee list instead.
//
// HTTP: POST /events/{id}/checkin
// Auth: Required (host only)
// REQUEST BODY: {"userId": "..."}
func (h *EventHandler) HandleCheckIn(w http.ResponseWriter, r *http.Request) {
	callerID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}

	var req checkInRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"bad_request","message":"invalid JSON body"}`, http.StatusBadRequest)
		return
	}

	attendee, already, err := h.members.CheckIn(r.Context(), r.PathValue("id"), callerID, req.UserID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, checkInResponse{Attendee: attendee, AlreadyVerified: already})
}

// scanRequest is the body for a QR scan.
type scanRequest struct {
	Data string `json:"data"`
}

// HandleScan decides a raw QR scan performed at the door.
//
// HTTP: POST /scan
// Auth: Required
// REQUEST BODY: {"data": "<eventId>-<userId>"}
//
// A denied scan is still a 200 — the decision is the payload, and the
// scanning station renders it. Errors are reserved for infrastructure
// failures.
func (h *EventHandler) HandleScan(w http.ResponseWriter, r *http.Request) {
	callerID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}

	var req scanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"bad_request","message":"invalid JSON body"}`, http.StatusBadRequest)
		return
	}

	result, err := h.scans.Validate(r.Context(), callerID, req.Data)
	if err != nil {
		h.logger.Error("scan validation failed", slog.String("error", err.Error()))
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}
