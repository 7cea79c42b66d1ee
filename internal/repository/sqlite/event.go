package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/rs/xid"
	"github.com/waterette/waterette/internal/apperror"
	"github.com/waterette/waterette/internal/model"
	"github.com/waterette/waterette/internal/repository"
)

// compile-time check that *DB implements repository.EventRepository
var _ repository.EventRepository = (*DB)(nil)

// Create inserts a new event plus its initial attendees in one transaction.
//
// The service layer passes the host already on the attendee list (pre-verified),
// so an event is never observable without its creator as the first member.
//
// ID GENERATION WITH xid:
// xid ids are 20 chars, URL-safe, and sortable by creation time, e.g.
// "cv37rs3pp9olc6atsptg". They contain no '-', which matters for the entry
// pass format "<eventId>-<userId>" parsed at the first '-'.
func (db *DB) Create(ctx context.Context, event *model.Event) error {
	event.ID = xid.New().String()
	event.CreatedAt = time.Now()
	event.AttendeeCount = len(event.Attendees)

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: beginning event create: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO events (id, title, description, event_date, event_time, location,
		                     price, image_url, capacity, host_id, attendee_count, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		event.ID,
		event.Title,
		event.Description,
		event.Date,
		event.Time,
		event.Location,
		event.Price,
		event.ImageURL,
		event.Capacity,
		event.HostID,
		event.AttendeeCount,
		event.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: creating event: %w", err)
	}

	for i := range event.Attendees {
		a := &event.Attendees[i]
		if a.JoinedAt.IsZero() {
			a.JoinedAt = event.CreatedAt
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO attendees (event_id, user_id, name, email, joined_at, verified)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			event.ID, a.UserID, a.Name, a.Email, a.JoinedAt, a.Verified,
		); err != nil {
			return fmt.Errorf("sqlite: creating initial attendee: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: committing event create: %w", err)
	}

	return nil
}

// GetByID retrieves a single event with its full guest list in join order.
func (db *DB) GetByID(ctx context.Context, id string) (*model.Event, error) {
	var e model.Event

	err := db.conn.QueryRowContext(ctx,
		`SELECT id, title, description, event_date, event_time, location,
		        price, image_url, capacity, host_id, attendee_count, created_at
		 FROM events
		 WHERE id = ?`,
		id,
	).Scan(
		&e.ID,
		&e.Title,
		&e.Description,
		&e.Date,
		&e.Time,
		&e.Location,
		&e.Price,
		&e.ImageURL,
		&e.Capacity,
		&e.HostID,
		&e.AttendeeCount,
		&e.CreatedAt,
	)
	if err != nil {
		// sql.ErrNoRows just means "no matching row" — translate it to our
		// domain's NotFound so the handler knows to return 404.
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("event", id)
		}
		return nil, fmt.Errorf("sqlite: getting event %s: %w", id, err)
	}

	rows, err := db.conn.QueryContext(ctx,
		`SELECT user_id, name, email, joined_at, verified
		 FROM attendees
		 WHERE event_id = ?
		 ORDER BY joined_at, user_id`,
		id,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing attendees for event %s: %w", id, err)
	}
	defer rows.Close()

	for rows.Next() {
		var a model.Attendee
		if err := rows.Scan(&a.UserID, &a.Name, &a.Email, &a.JoinedAt, &a.Verified); err != nil {
			return nil, fmt.Errorf("sqlite: scanning attendee row: %w", err)
		}
		e.Attendees = append(e.Attendees, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating attendees: %w", err)
	}

	return &e, nil
}

// List retrieves all events, most recently created first. Attendee sequences
// are not loaded — the feed only needs the denormalized count.
func (db *DB) List(ctx context.Context) ([]model.Event, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, title, description, event_date, event_time, location,
		        price, image_url, capacity, host_id, attendee_count, created_at
		 FROM events
		 ORDER BY created_at DESC, id DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing events: %w", err)
	}
	defer rows.Close()

	events := make([]model.Event, 0, 32)
	for rows.Next() {
		var e model.Event
		if err := rows.Scan(
			&e.ID, &e.Title, &e.Description, &e.Date, &e.Time, &e.Location,
			&e.Price, &e.ImageURL, &e.Capacity, &e.HostID, &e.AttendeeCount, &e.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("sqlite: scanning event row: %w", err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating events: %w", err)
	}

	return events, nil
}

// Delete removes an event; attendee rows cascade via the foreign key.
func (db *DB) Delete(ctx context.Context, id string) error {
	result, err := db.conn.ExecContext(ctx, `DELETE FROM events WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlite: deleting event %s: %w", id, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperror.NotFound("event", id)
	}

	return nil
}

// AddAttendee appends a membership record and bumps the denormalized counter.
//
// ATOMIC PAIR:
// The INSERT into attendees and the UPDATE of events.attendee_count happen in
// one transaction. There is no observable state where the count and the
// sequence length disagree.
//
// The transaction is also where the membership invariants are enforced, not
// just reported: the composite primary key on (event_id, user_id) backstops
// uniqueness, and the guarded UPDATE backstops capacity. Two writers racing
// past the service's snapshot checks cannot seat a duplicate or a guest
// beyond the configured capacity.
func (db *DB) AddAttendee(ctx context.Context, eventID string, attendee *model.Attendee) error {
	if attendee.JoinedAt.IsZero() {
		attendee.JoinedAt = time.Now()
	}

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: beginning join: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO attendees (event_id, user_id, name, email, joined_at, verified)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		eventID, attendee.UserID, attendee.Name, attendee.Email, attendee.JoinedAt, attendee.Verified,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.AlreadyMember(eventID, attendee.UserID)
		}
		if isForeignKeyViolation(err) {
			return apperror.NotFound("event", eventID)
		}
		return fmt.Errorf("sqlite: adding attendee to event %s: %w", eventID, err)
	}

	// capacity <= 0 means unlimited. When the event is already full the
	// UPDATE matches no row and the whole transaction rolls back, taking
	// the INSERT above with it.
	result, err := tx.ExecContext(ctx,
		`UPDATE events SET attendee_count = attendee_count + 1
		 WHERE id = ? AND (capacity <= 0 OR attendee_count < capacity)`, eventID)
	if err != nil {
		return fmt.Errorf("sqlite: incrementing attendee count: %w", err)
	}
	if n, err := result.RowsAffected(); err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	} else if n == 0 {
		var capacity int
		if err := tx.QueryRowContext(ctx,
			`SELECT capacity FROM events WHERE id = ?`, eventID).Scan(&capacity); err != nil {
			if err == sql.ErrNoRows {
				return apperror.NotFound("event", eventID)
			}
			return fmt.Errorf("sqlite: reading event capacity: %w", err)
		}
		return apperror.CapacityExceeded(eventID, capacity)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: committing join: %w", err)
	}

	return nil
}

// RemoveAttendee removes exactly one membership record and decrements the
// counter in the same transaction.
func (db *DB) RemoveAttendee(ctx context.Context, eventID, userID string) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: beginning leave: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx,
		`DELETE FROM attendees WHERE event_id = ? AND user_id = ?`, eventID, userID)
	if err != nil {
		return fmt.Errorf("sqlite: removing attendee from event %s: %w", eventID, err)
	}
	if n, err := result.RowsAffected(); err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	} else if n == 0 {
		return apperror.NotAMember(eventID, userID)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE events SET attendee_count = attendee_count - 1 WHERE id = ?`, eventID); err != nil {
		return fmt.Errorf("sqlite: decrementing attendee count: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: committing leave: %w", err)
	}

	return nil
}

// MarkVerified flips the verified flag on a membership record.
func (db *DB) MarkVerified(ctx context.Context, eventID, userID string) error {
	result, err := db.conn.ExecContext(ctx,
		`UPDATE attendees SET verified = 1 WHERE event_id = ? AND user_id = ?`,
		eventID, userID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: marking attendee verified: %w", err)
	}
	if n, err := result.RowsAffected(); err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	} else if n == 0 {
		return apperror.NotAMember(eventID, userID)
	}

	return nil
}

// JoinedEventIDs returns the ids of every event the user belongs to, newest
// event first to match the feed order.
func (db *DB) JoinedEventIDs(ctx context.Context, userID string) ([]string, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT a.event_id
		 FROM attendees a
		 JOIN events e ON e.id = a.event_id
		 WHERE a.user_id = ?
		 ORDER BY e.created_at DESC, e.id DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing joined events for user %s: %w", userID, err)
	}
	defer rows.Close()

	ids := make([]string, 0, 8)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("sqlite: scanning joined event id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating joined event ids: %w", err)
	}

	return ids, nil
}

// isUniqueViolation detects SQLite's UNIQUE/PRIMARY KEY constraint errors.
// modernc.org/sqlite does not export a typed error for this, so we match the
// message the same way its own tests do.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// isForeignKeyViolation detects an INSERT referencing a missing parent row,
// which for attendees means the event does not exist.
func isForeignKeyViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "FOREIGN KEY constraint failed")
}
