package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/xid"
	"github.com/waterette/waterette/internal/apperror"
	"github.com/waterette/waterette/internal/model"
	"github.com/waterette/waterette/internal/repository"
)

// UserDB is the users view over the same connection pool.
//
// EventRepository's Create(event) already claims the method name on *DB, so
// user operations live on their own receiver, obtained via db.Users().
type UserDB struct {
	conn *sql.DB
}

// Users returns the repository.UserRepository view of this database.
func (db *DB) Users() *UserDB {
	return &UserDB{conn: db.conn}
}

// compile-time check that *UserDB implements repository.UserRepository
var _ repository.UserRepository = (*UserDB)(nil)

// Create inserts a new locally-registered user.
// Returns apperror.ErrConflict when the email is already claimed — duplicate
// identity is a user-facing condition, not a database failure.
func (u *UserDB) Create(ctx context.Context, user *model.User) error {
	now := time.Now()
	user.ID = xid.New().String()
	user.CreatedAt = now
	user.UpdatedAt = now

	_, err := u.conn.ExecContext(ctx,
		`INSERT INTO users (id, name, email, avatar_url, password_hash, google_id, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		user.ID,
		user.Name,
		user.Email,
		user.AvatarURL,
		user.PasswordHash,
		user.GoogleID,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("user", user.Email)
		}
		return fmt.Errorf("sqlite: inserting user (email=%s): %w", user.Email, err)
	}

	return nil
}

// GetByID retrieves a user by their internal ID.
// Returns apperror.ErrNotFound if no user exists with that ID.
func (u *UserDB) GetByID(ctx context.Context, id string) (*model.User, error) {
	return u.getUser(ctx, `id = ?`, id)
}

// GetByEmail retrieves a user by lowercased email.
func (u *UserDB) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	return u.getUser(ctx, `email = ?`, email)
}

func (u *UserDB) getUser(ctx context.Context, where string, arg string) (*model.User, error) {
	var usr model.User

	err := u.conn.QueryRowContext(ctx,
		`SELECT id, name, email, avatar_url, password_hash, google_id, created_at, updated_at
		 FROM users WHERE `+where,
		arg,
	).Scan(
		&usr.ID,
		&usr.Name,
		&usr.Email,
		&usr.AvatarURL,
		&usr.PasswordHash,
		&usr.GoogleID,
		&usr.CreatedAt,
		&usr.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("user", arg)
		}
		return nil, fmt.Errorf("sqlite: getting user %s: %w", arg, err)
	}

	return &usr, nil
}

// UpsertGoogle inserts or updates a user from a Google sign-in, keyed by email.
//
// We look the row up first rather than using INSERT OR REPLACE: an existing
// account must KEEP its internal ID (attendee rows reference it), and a local
// account linking Google for the first time must keep its password hash.
func (u *UserDB) UpsertGoogle(ctx context.Context, user *model.User) error {
	existing, err := u.GetByEmail(ctx, user.Email)
	if err != nil {
		if !errors.Is(err, apperror.ErrNotFound) {
			return fmt.Errorf("sqlite: looking up user by email %s: %w", user.Email, err)
		}
		// First sign-in — a fresh account.
		return u.Create(ctx, user)
	}

	// Account exists — refresh profile fields from Google, keep identity.
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

	_, err = u.conn.ExecContext(ctx,
		`UPDATE users SET name = ?, avatar_url = ?, google_id = ?, updated_at = ?
		 WHERE id = ?`,
		user.Name,
		user.AvatarURL,
		user.GoogleID,
		user.UpdatedAt,
		user.ID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating user %s: %w", user.ID, err)
	}

	return nil
}
