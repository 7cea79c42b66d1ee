// Package model defines the data structures used throughout the application.
package model

import "time"

// User represents a registered account.
//
// Two ways in:
//   - Local email/password registration. PasswordHash holds the bcrypt hash;
//     the plaintext is never stored or logged.
//   - Google sign-in. GoogleID holds Google's stable subject identifier and
//     PasswordHash stays empty. Such accounts cannot log in with a password.
//
// Email is the cross-provider key (stored lowercased, UNIQUE in the DB): a
// user who registered locally and later signs in with Google for the same
// address lands on the same account.
//
// We still mint our own internal string ID (xid) rather than keying on the
// email or Google's numbering — primary keys shouldn't be re-assignable
// contact details or a third party's scheme.
type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	AvatarURL    string    `json:"avatarUrl,omitempty"`
	PasswordHash string    `json:"-"` // never serialized
	GoogleID     string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// RegisterRequest is the payload for POST /auth/register.
type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginRequest is the payload for POST /auth/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}
