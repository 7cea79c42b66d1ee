// Package auth — password hashing for local accounts.
//
// Only email/password registrations get a hash; accounts created through
// Google sign-in keep an empty PasswordHash and can never log in with a
// password (the login service treats an empty hash as "wrong password").
//
// WHY BCRYPT?
// bcrypt is deliberately slow, and that slowness is the security feature:
// it makes offline brute-forcing a leaked users table expensive. It also
// generates and embeds a random salt per hash, so two users with the same
// password store different values and rainbow tables are useless.
//
// NEVER store passwords in plain text or with fast hashes (MD5, SHA-256).
//
// Hash format (the full output of bcrypt.GenerateFromPassword):
//
//	$2a$12$<22-char salt><31-char hash>
//	 ^   ^
//	 |   cost (12 rounds → 2^12 = 4096 iterations)
//	 version
package auth

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// defaultCost is the bcrypt work factor.
//
// Cost 12 puts one hash at roughly ~250ms on a modern server — negligible
// on the register/login endpoints, brutal for an attacker grinding through
// a password list. Tune it so hashing stays in the ~200–300ms band on
// production hardware; much higher and a burst of logins becomes a bcrypt
// denial-of-service against ourselves.
const defaultCost = 12

// PasswordService provides bcrypt hashing and verification.
//
// It's a struct (not free functions) so the cost can be injected in tests —
// the auth service tests hash on every registered fixture user, and cost 12
// would dominate their runtime.
type PasswordService struct {
	cost int
}

// NewPasswordService creates a PasswordService with the default cost (12).
func NewPasswordService() *PasswordService {
	return &PasswordService{cost: defaultCost}
}

// NewPasswordServiceForTest creates a PasswordService with a reduced cost
// (bcrypt's minimum is 4). Use it in tests to keep each Hash call in the
// milliseconds.
//
// Do NOT use in production — low costs are far too weak.
func NewPasswordServiceForTest(cost int) *PasswordService {
	return &PasswordService{cost: cost}
}

// Hash hashes the given plaintext password with bcrypt.
//
// The output is a self-contained string like:
//
//	$2a$12$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy
//
// It goes straight into users.password_hash; the salt and cost ride along
// inside it, so Verify needs nothing else.
//
// Returns an error if the plaintext is too long (>72 bytes — a bcrypt limit).
func (p *PasswordService) Hash(plaintext string) (string, error) {
	if len(plaintext) > 72 {
		// bcrypt silently truncates passwords longer than 72 bytes.
		// We reject them explicitly so callers aren't surprised.
		return "", fmt.Errorf("auth: password must be 72 bytes or fewer")
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(plaintext), p.cost)
	if err != nil {
		return "", fmt.Errorf("auth: hashing password: %w", err)
	}

	return string(hashed), nil
}

// Verify checks whether a plaintext password matches a stored bcrypt hash.
//
// Returns nil if they match, a non-nil error if they don't. The login
// service folds any error here into its single "invalid email or password"
// response, so nothing about the failure mode leaks to the client.
//
// TIMING SAFETY:
// bcrypt.CompareHashAndPassword compares in constant time internally, so an
// attacker can't tell from response latency how close a guess was.
func (p *PasswordService) Verify(hash, plaintext string) error {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext))
	if err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return fmt.Errorf("auth: invalid password")
		}
		return fmt.Errorf("auth: comparing password hash: %w", err)
	}
	return nil
}
