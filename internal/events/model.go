package events

import (
	"errors"
	"time"
)

// StatusInterested is the only registration status current flows produce.
const StatusInterested = "INTERESTED"

// Conventional categories offered by the admin form; any non-blank value is accepted.
var Categories = []string{"Technical", "Cultural", "Sports", "Workshop", "Seminar"}

var (
	// ErrForbidden is returned when the caller's identity lacks the capability.
	ErrForbidden = errors.New("forbidden")
	// ErrNotFound is returned by updates that target a missing row.
	ErrNotFound = errors.New("not found")
)

// Event is a campus event. ID 0 means not yet persisted.
type Event struct {
	ID               int64      `json:"id"`
	Title            string     `json:"title" validate:"required,notblank"`
	Description      string     `json:"description" validate:"required,notblank,max=2000"`
	StartsAt         *time.Time `json:"starts_at" validate:"required"`
	EndsAt           *time.Time `json:"ends_at,omitempty"`
	Venue            string     `json:"venue" validate:"required,notblank"`
	Category         string     `json:"category" validate:"required,notblank"`
	RegistrationLink string     `json:"registration_link,omitempty" validate:"max=1000"`
	MaxCapacity      *int       `json:"max_capacity,omitempty" validate:"omitempty,min=1"`
	ImageURL         string     `json:"image_url,omitempty" validate:"max=1000"`
	ResponsesLink    string     `json:"responses_link,omitempty" validate:"max=1000"`
}

// Upcoming reports whether the event starts strictly after now. Derived on
// every read; never stored.
func (e Event) Upcoming(now time.Time) bool {
	return e.StartsAt != nil && e.StartsAt.After(now)
}

// Registration records a student's interest in an event.
type Registration struct {
	ID           int64     `json:"id"`
	UserID       int64     `json:"user_id"`
	EventID      int64     `json:"event_id"`
	RegisteredAt time.Time `json:"registered_at"`
	Status       string    `json:"status"`
}

// CategoryCount is one row of the per-category aggregate.
type CategoryCount struct {
	Category string `json:"category"`
	Count    int64  `json:"count"`
}
