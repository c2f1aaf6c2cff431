package events

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"campusevents/internal/store"
)

// Repository persists events and registrations in Postgres or SQLite.
type Repository struct {
	db *store.DB
}

// NewRepository creates a repo.
func NewRepository(db *store.DB) *Repository {
	return &Repository{db: db}
}

var _ Store = (*Repository)(nil)

const eventColumns = `id, title, description, starts_at, ends_at, venue, category, registration_link, max_capacity, image_url, responses_link`

const newestFirst = ` ORDER BY starts_at DESC NULLS LAST, id DESC`

func scanEvent(row interface{ Scan(...any) error }) (Event, error) {
	var (
		e        Event
		start    sql.NullTime
		end      sql.NullTime
		capacity sql.NullInt64
	)
	err := row.Scan(&e.ID, &e.Title, &e.Description, &start, &end, &e.Venue, &e.Category,
		&e.RegistrationLink, &capacity, &e.ImageURL, &e.ResponsesLink)
	if err != nil {
		return Event{}, err
	}
	if start.Valid {
		t := start.Time.UTC()
		e.StartsAt = &t
	}
	if end.Valid {
		t := end.Time.UTC()
		e.EndsAt = &t
	}
	if capacity.Valid {
		c := int(capacity.Int64)
		e.MaxCapacity = &c
	}
	return e, nil
}

func (r *Repository) queryEvents(ctx context.Context, query string, args ...any) ([]Event, error) {
	rows, err := r.db.Client.QueryContext(ctx, r.db.Rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, e)
	}
	return res, rows.Err()
}

// ListEvents returns every event, newest start first.
func (r *Repository) ListEvents(ctx context.Context) ([]Event, error) {
	return r.queryEvents(ctx, `SELECT `+eventColumns+` FROM events`+newestFirst)
}

// SearchEvents matches title or venue containing q, ignoring case.
func (r *Repository) SearchEvents(ctx context.Context, q string) ([]Event, error) {
	pattern := "%" + escapeLike(strings.ToLower(q)) + "%"
	return r.queryEvents(ctx, `SELECT `+eventColumns+` FROM events
		WHERE `+r.db.Lower("title")+` LIKE ? ESCAPE '\' OR `+r.db.Lower("venue")+` LIKE ? ESCAPE '\'`+newestFirst, pattern, pattern)
}

// ListEventsByCategory returns events whose category equals category exactly.
func (r *Repository) ListEventsByCategory(ctx context.Context, category string) ([]Event, error) {
	return r.queryEvents(ctx, `SELECT `+eventColumns+` FROM events WHERE category = ?`+newestFirst, category)
}

// GetEvent returns a single event or nil when absent.
func (r *Repository) GetEvent(ctx context.Context, id int64) (*Event, error) {
	row := r.db.Client.QueryRowContext(ctx, r.db.Rebind(`SELECT `+eventColumns+` FROM events WHERE id = ?`), id)
	e, err := scanEvent(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &e, nil
}

// InsertEvent writes a new event and assigns its ID.
func (r *Repository) InsertEvent(ctx context.Context, e *Event) error {
	row := r.db.Client.QueryRowContext(ctx, r.db.Rebind(`
		INSERT INTO events (title, description, starts_at, ends_at, venue, category, registration_link, max_capacity, image_url, responses_link)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id
	`), e.Title, e.Description, utc(e.StartsAt), utc(e.EndsAt), e.Venue, e.Category,
		e.RegistrationLink, capacityArg(e.MaxCapacity), e.ImageURL, e.ResponsesLink)
	return row.Scan(&e.ID)
}

// UpdateEvent overwrites an existing event. It reports false when no row matched.
func (r *Repository) UpdateEvent(ctx context.Context, e *Event) (bool, error) {
	res, err := r.db.Client.ExecContext(ctx, r.db.Rebind(`
		UPDATE events
		SET title = ?, description = ?, starts_at = ?, ends_at = ?, venue = ?, category = ?,
			registration_link = ?, max_capacity = ?, image_url = ?, responses_link = ?
		WHERE id = ?
	`), e.Title, e.Description, utc(e.StartsAt), utc(e.EndsAt), e.Venue, e.Category,
		e.RegistrationLink, capacityArg(e.MaxCapacity), e.ImageURL, e.ResponsesLink, e.ID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// DeleteEvent removes the event and its registrations in one transaction and
// returns the image URL the event referenced. found is false when no event
// had that id.
func (r *Repository) DeleteEvent(ctx context.Context, id int64) (imageURL string, found bool, err error) {
	tx, err := r.db.Client.BeginTx(ctx, nil)
	if err != nil {
		return "", false, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	err = tx.QueryRowContext(ctx, r.db.Rebind(`SELECT image_url FROM events WHERE id = ?`), id).Scan(&imageURL)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, err
	}
	if _, err := tx.ExecContext(ctx, r.db.Rebind(`DELETE FROM registrations WHERE event_id = ?`), id); err != nil {
		return "", false, fmt.Errorf("delete registrations: %w", err)
	}
	if _, err := tx.ExecContext(ctx, r.db.Rebind(`DELETE FROM events WHERE id = ?`), id); err != nil {
		return "", false, fmt.Errorf("delete event: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return "", false, fmt.Errorf("commit tx: %w", err)
	}
	return imageURL, true, nil
}

// CountEvents returns the number of events.
func (r *Repository) CountEvents(ctx context.Context) (int64, error) {
	return r.count(ctx, `SELECT COUNT(*) FROM events`)
}

// CountEventsAfter counts events starting strictly after t.
func (r *Repository) CountEventsAfter(ctx context.Context, t time.Time) (int64, error) {
	return r.count(ctx, `SELECT COUNT(*) FROM events WHERE starts_at > ?`, t.UTC())
}

// CountEventsByCategory groups events by category, ordered by category name.
func (r *Repository) CountEventsByCategory(ctx context.Context) ([]CategoryCount, error) {
	rows, err := r.db.Client.QueryContext(ctx, `SELECT category, COUNT(*) FROM events GROUP BY category ORDER BY category`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []CategoryCount
	for rows.Next() {
		var cc CategoryCount
		if err := rows.Scan(&cc.Category, &cc.Count); err != nil {
			return nil, err
		}
		res = append(res, cc)
	}
	return res, rows.Err()
}

// EventImageURLs lists the non-empty image URLs referenced by events.
func (r *Repository) EventImageURLs(ctx context.Context) ([]string, error) {
	rows, err := r.db.Client.QueryContext(ctx, `SELECT image_url FROM events WHERE image_url <> ''`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []string
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, err
		}
		res = append(res, u)
	}
	return res, rows.Err()
}

// UserExists reports whether a user row with id exists.
func (r *Repository) UserExists(ctx context.Context, id int64) (bool, error) {
	n, err := r.count(ctx, `SELECT COUNT(*) FROM users WHERE id = ?`, id)
	return n > 0, err
}

// RegistrationExists reports whether the (user, event) pair is registered.
func (r *Repository) RegistrationExists(ctx context.Context, userID, eventID int64) (bool, error) {
	n, err := r.count(ctx, `SELECT COUNT(*) FROM registrations WHERE user_id = ? AND event_id = ?`, userID, eventID)
	return n > 0, err
}

// InsertRegistration writes a registration unless the pair already exists.
// The unique (user_id, event_id) constraint decides races; the loser gets false.
func (r *Repository) InsertRegistration(ctx context.Context, reg *Registration) (bool, error) {
	row := r.db.Client.QueryRowContext(ctx, r.db.Rebind(`
		INSERT INTO registrations (user_id, event_id, registered_at, status)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (user_id, event_id) DO NOTHING
		RETURNING id
	`), reg.UserID, reg.EventID, reg.RegisteredAt.UTC(), reg.Status)
	if err := row.Scan(&reg.ID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// CountRegistrations returns the total number of registrations.
func (r *Repository) CountRegistrations(ctx context.Context) (int64, error) {
	return r.count(ctx, `SELECT COUNT(*) FROM registrations`)
}

// CountRegistrationsForEvent returns the registrations of one event.
func (r *Repository) CountRegistrationsForEvent(ctx context.Context, eventID int64) (int64, error) {
	return r.count(ctx, `SELECT COUNT(*) FROM registrations WHERE event_id = ?`, eventID)
}

// CountRegistrationsByEvent groups registrations by event id in one query.
func (r *Repository) CountRegistrationsByEvent(ctx context.Context) (map[int64]int64, error) {
	rows, err := r.db.Client.QueryContext(ctx, `SELECT event_id, COUNT(*) FROM registrations GROUP BY event_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := make(map[int64]int64)
	for rows.Next() {
		var id, n int64
		if err := rows.Scan(&id, &n); err != nil {
			return nil, err
		}
		res[id] = n
	}
	return res, rows.Err()
}

// ListRegistrations returns every registration, most recent first.
func (r *Repository) ListRegistrations(ctx context.Context) ([]Registration, error) {
	rows, err := r.db.Client.QueryContext(ctx, `
		SELECT id, user_id, event_id, registered_at, status
		FROM registrations
		ORDER BY registered_at DESC, id DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []Registration
	for rows.Next() {
		var reg Registration
		if err := rows.Scan(&reg.ID, &reg.UserID, &reg.EventID, &reg.RegisteredAt, &reg.Status); err != nil {
			return nil, err
		}
		reg.RegisteredAt = reg.RegisteredAt.UTC()
		res = append(res, reg)
	}
	return res, rows.Err()
}

func (r *Repository) count(ctx context.Context, query string, args ...any) (int64, error) {
	var n int64
	if err := r.db.Client.QueryRowContext(ctx, r.db.Rebind(query), args...).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func utc(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}

func capacityArg(c *int) any {
	if c == nil {
		return nil
	}
	return *c
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
