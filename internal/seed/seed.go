package seed

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"campusevents/internal/auth"
	"campusevents/internal/events"
)

// AdminUsername is the account provisioned with the configured admin password.
const AdminUsername = "admin"

// Users is the account persistence seeding needs.
type Users interface {
	FindByUsername(ctx context.Context, username string) (*auth.User, error)
	CreateIfMissing(ctx context.Context, u *auth.User) (bool, error)
}

// Events is the event access seeding needs.
type Events interface {
	EventCount(ctx context.Context) (int64, error)
	SaveEvent(ctx context.Context, who auth.Identity, e *events.Event) error
}

// Run provisions the guest and admin accounts and, on an empty catalogue, a
// welcome event. Running it again changes nothing.
func Run(ctx context.Context, users Users, evts Events, adminPassword string, now time.Time, log *slog.Logger) error {
	if err := ensureUser(ctx, users, auth.GuestUsername, "guest", auth.RoleStudent, log); err != nil {
		return err
	}
	if err := ensureUser(ctx, users, AdminUsername, adminPassword, auth.RoleAdmin, log); err != nil {
		return err
	}

	n, err := evts.EventCount(ctx)
	if err != nil {
		return fmt.Errorf("count events: %w", err)
	}
	if n > 0 {
		return nil
	}
	admin, err := users.FindByUsername(ctx, AdminUsername)
	if err != nil {
		return fmt.Errorf("load admin: %w", err)
	}
	if admin == nil || admin.Role != auth.RoleAdmin {
		return fmt.Errorf("user %q is not an admin", AdminUsername)
	}

	e := WelcomeEvent(now)
	if err := evts.SaveEvent(ctx, auth.IdentityOf(admin), &e); err != nil {
		return fmt.Errorf("create welcome event: %w", err)
	}
	log.Info("sample welcome event created", "event_id", e.ID)
	return nil
}

// WelcomeEvent is the sample event shown on a fresh install.
func WelcomeEvent(now time.Time) events.Event {
	start := now.UTC().AddDate(0, 0, 7)
	end := start.Add(2 * time.Hour)
	capacity := 100
	return events.Event{
		Title:       "Welcome to CampusConnect!",
		Description: "This is a sample event to show you around. You can register for events, view details, and more! Admins can delete this event from the admin dashboard.",
		StartsAt:    &start,
		EndsAt:      &end,
		Venue:       "Virtual Campus",
		Category:    "Technical",
		MaxCapacity: &capacity,
	}
}

func ensureUser(ctx context.Context, users Users, username, password string, role auth.Role, log *slog.Logger) error {
	existing, err := users.FindByUsername(ctx, username)
	if err != nil {
		return fmt.Errorf("load user %s: %w", username, err)
	}
	if existing != nil {
		return nil
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return fmt.Errorf("hash password for %s: %w", username, err)
	}
	created, err := users.CreateIfMissing(ctx, &auth.User{Username: username, PasswordHash: hash, Role: role})
	if err != nil {
		return fmt.Errorf("create user %s: %w", username, err)
	}
	if created {
		log.Info("user created", "username", username, "role", role)
	}
	return nil
}
