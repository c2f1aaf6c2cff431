package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"campusevents/internal/store"
)

// User is a stored account.
type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
}

// Repository persists users.
type Repository struct {
	db *store.DB
}

// NewRepository creates a repo.
func NewRepository(db *store.DB) *Repository {
	return &Repository{db: db}
}

const userColumns = `id, username, password_hash, role, created_at`

func scanUser(row interface{ Scan(...any) error }) (*User, error) {
	var (
		u    User
		role string
	)
	if err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &role, &u.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	r, err := ParseRole(role)
	if err != nil {
		return nil, fmt.Errorf("user %d: %w", u.ID, err)
	}
	u.Role = r
	return &u, nil
}

// FindByUsername returns the user or nil when absent.
func (r *Repository) FindByUsername(ctx context.Context, username string) (*User, error) {
	row := r.db.Client.QueryRowContext(ctx, r.db.Rebind(`SELECT `+userColumns+` FROM users WHERE username = ?`), username)
	return scanUser(row)
}

// FindByID returns the user or nil when absent.
func (r *Repository) FindByID(ctx context.Context, id int64) (*User, error) {
	row := r.db.Client.QueryRowContext(ctx, r.db.Rebind(`SELECT `+userColumns+` FROM users WHERE id = ?`), id)
	return scanUser(row)
}

// CreateIfMissing inserts the user unless the username is taken. It reports
// whether a row was created and fills u.ID in that case.
func (r *Repository) CreateIfMissing(ctx context.Context, u *User) (bool, error) {
	if u.Username == "" || u.PasswordHash == "" {
		return false, errors.New("username and password hash required")
	}
	if _, err := ParseRole(string(u.Role)); err != nil {
		return false, err
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	row := r.db.Client.QueryRowContext(ctx, r.db.Rebind(`
		INSERT INTO users (username, password_hash, role, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (username) DO NOTHING
		RETURNING id
	`), u.Username, u.PasswordHash, string(u.Role), u.CreatedAt)
	if err := row.Scan(&u.ID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// UpdatePassword replaces the stored hash.
func (r *Repository) UpdatePassword(ctx context.Context, username, hash string) error {
	_, err := r.db.Client.ExecContext(ctx, r.db.Rebind(`UPDATE users SET password_hash = ? WHERE username = ?`), hash, username)
	return err
}
