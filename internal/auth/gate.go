package auth

import (
	"context"
	"log/slog"
)

// GuestUsername is the pre-provisioned student account used for auto-login.
const GuestUsername = "guest"

// UserFinder is the lookup the gate needs from persistence.
type UserFinder interface {
	FindByUsername(ctx context.Context, username string) (*User, error)
}

// Gate verifies credentials and resolves the guest identity. It never writes.
type Gate struct {
	users UserFinder
	log   *slog.Logger
}

// NewGate creates a gate backed by a user lookup.
func NewGate(users UserFinder, logger *slog.Logger) *Gate {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gate{users: users, log: logger}
}

// Authenticate returns the user when the username exists and the password
// matches its stored hash. Any mismatch yields nil without an error; errors
// are reserved for lookup failures.
func (g *Gate) Authenticate(ctx context.Context, username, password string) (*User, error) {
	u, err := g.users.FindByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if u == nil {
		burnCompare(password)
		return nil, nil
	}
	if !CheckPassword(u.PasswordHash, password) {
		g.log.Info("login rejected", "username", username)
		return nil, nil
	}
	return u, nil
}

// GuestUser returns the guest account, or nil when it has not been provisioned.
func (g *Gate) GuestUser(ctx context.Context) (*User, error) {
	return g.users.FindByUsername(ctx, GuestUsername)
}
