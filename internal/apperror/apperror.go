package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrValidation   = errors.New("Validation Error")
	ErrConflict     = errors.New("conflict")
	ErrForbidden    = errors.New("forbidden")
	ErrUnauthorized = errors.New("unauthorized")

	// Membership sentinels. AlreadyMember and NotAMember are benign
	// idempotence signals — the caller surfaces them as a notice, not a
	// failure — but they still travel as errors so repeated joins can never
	// silently duplicate a record.
	ErrAlreadyMember    = errors.New("already a member")
	ErrNotAMember       = errors.New("not a member")
	ErrCapacityExceeded = errors.New("capacity exceeded")
)

type AppError struct {
	Err     error  // actual error
	Message string // Human-readable error message
	Field   string // Optional: field causing the error
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func NotFound(resource, id string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s not found with id %s", resource, id),
	}
}

func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Field:   field,
	}
}

func Conflict(resource, id string) *AppError {
	return &AppError{
		Err:     ErrConflict,
		Message: fmt.Sprintf("%s conflict with id %s", resource, id),
	}
}

// Forbidden returns an AppError indicating the caller lacks permission.
// HTTP handlers map this to 403 Forbidden.
func Forbidden(message string) *AppError {
	return &AppError{
		Err:     ErrForbidden,
		Message: message,
	}
}

// Unauthorized returns an AppError for missing or invalid credentials.
// HTTP handlers map this to 401 Unauthorized.
func Unauthorized(message string) *AppError {
	return &AppError{
		Err:     ErrUnauthorized,
		Message: message,
	}
}

// AlreadyMember reports that the user is already on the event's guest list.
func AlreadyMember(eventID, userID string) *AppError {
	return &AppError{
		Err:     ErrAlreadyMember,
		Message: fmt.Sprintf("user %s is already a member of event %s", userID, eventID),
	}
}

// NotAMember reports that the user has no membership record for the event.
func NotAMember(eventID, userID string) *AppError {
	return &AppError{
		Err:     ErrNotAMember,
		Message: fmt.Sprintf("user %s is not a member of event %s", userID, eventID),
	}
}

// CapacityExceeded reports that the event has no seats left.
func CapacityExceeded(eventID string, capacity int) *AppError {
	return &AppError{
		Err:     ErrCapacityExceeded,
		Message: fmt.Sprintf("event %s is full (capacity %d)", eventID, capacity),
	}
}
