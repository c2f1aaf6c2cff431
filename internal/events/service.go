package events

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"campusevents/internal/auth"
	"campusevents/internal/metrics"
)

// Store is the persistence the service needs. Repository implements it.
type Store interface {
	ListEvents(ctx context.Context) ([]Event, error)
	SearchEvents(ctx context.Context, q string) ([]Event, error)
	ListEventsByCategory(ctx context.Context, category string) ([]Event, error)
	GetEvent(ctx context.Context, id int64) (*Event, error)
	InsertEvent(ctx context.Context, e *Event) error
	UpdateEvent(ctx context.Context, e *Event) (bool, error)
	DeleteEvent(ctx context.Context, id int64) (imageURL string, found bool, err error)
	CountEvents(ctx context.Context) (int64, error)
	CountEventsAfter(ctx context.Context, t time.Time) (int64, error)
	CountEventsByCategory(ctx context.Context) ([]CategoryCount, error)
	UserExists(ctx context.Context, id int64) (bool, error)
	RegistrationExists(ctx context.Context, userID, eventID int64) (bool, error)
	InsertRegistration(ctx context.Context, reg *Registration) (bool, error)
	CountRegistrations(ctx context.Context) (int64, error)
	CountRegistrationsForEvent(ctx context.Context, eventID int64) (int64, error)
	CountRegistrationsByEvent(ctx context.Context) (map[int64]int64, error)
	ListRegistrations(ctx context.Context) ([]Registration, error)
}

// ImageCleaner disposes of an uploaded image once nothing references it.
type ImageCleaner interface {
	RemoveImage(ctx context.Context, url string) error
}

// Service holds the business rules over events and registrations.
type Service struct {
	store   Store
	cleaner ImageCleaner
	log     *slog.Logger
	now     func() time.Time
}

// Option customizes a Service.
type Option func(*Service)

// WithClock overrides the time source used for upcoming/past decisions.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.log = l }
}

// NewService creates a service backed by a store. cleaner may be nil, in
// which case image files are left in place.
func NewService(store Store, cleaner ImageCleaner, opts ...Option) *Service {
	s := &Service{store: store, cleaner: cleaner, log: slog.Default(), now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Now returns the service clock's current time.
func (s *Service) Now() time.Time { return s.now() }

// FindAllEvents returns every event ordered by start time, newest first.
func (s *Service) FindAllEvents(ctx context.Context) ([]Event, error) {
	return s.store.ListEvents(ctx)
}

// SearchEvents returns events whose title or venue contains query, ignoring
// case. A blank query returns all events.
func (s *Service) SearchEvents(ctx context.Context, query string) ([]Event, error) {
	q := strings.TrimSpace(query)
	if q == "" {
		return s.FindAllEvents(ctx)
	}
	return s.store.SearchEvents(ctx, q)
}

// FindEventsByCategory filters by exact category. Blank or "all" (any case)
// returns all events.
func (s *Service) FindEventsByCategory(ctx context.Context, category string) ([]Event, error) {
	if strings.TrimSpace(category) == "" || strings.EqualFold(category, "all") {
		return s.FindAllEvents(ctx)
	}
	return s.store.ListEventsByCategory(ctx, category)
}

// FindEventByID returns the event or nil when absent.
func (s *Service) FindEventByID(ctx context.Context, id int64) (*Event, error) {
	return s.store.GetEvent(ctx, id)
}

// SaveEvent inserts the event when it has no ID and updates it otherwise.
// Callers validate first; this only persists.
func (s *Service) SaveEvent(ctx context.Context, who auth.Identity, e *Event) error {
	if !who.Can(auth.CapManageEvents) {
		return ErrForbidden
	}
	if e.ID == 0 {
		if err := s.store.InsertEvent(ctx, e); err != nil {
			return fmt.Errorf("insert event: %w", err)
		}
		metrics.EventMutations.WithLabelValues("create").Inc()
		s.log.Info("AUDIT: event created", "title", e.Title, "event_id", e.ID, "by", who.Username)
		return nil
	}
	ok, err := s.store.UpdateEvent(ctx, e)
	if err != nil {
		return fmt.Errorf("update event %d: %w", e.ID, err)
	}
	if !ok {
		return ErrNotFound
	}
	metrics.EventMutations.WithLabelValues("update").Inc()
	s.log.Info("AUDIT: event updated", "title", e.Title, "event_id", e.ID, "by", who.Username)
	return nil
}

// RegisterStudent records the user's interest in the event. It returns false
// without side effects when the pair is already registered or when either
// the event or the user does not exist.
func (s *Service) RegisterStudent(ctx context.Context, eventID, userID int64) (bool, error) {
	exists, err := s.store.RegistrationExists(ctx, userID, eventID)
	if err != nil {
		return false, err
	}
	if exists {
		metrics.Registrations.WithLabelValues("duplicate").Inc()
		return false, nil
	}
	evt, err := s.store.GetEvent(ctx, eventID)
	if err != nil {
		return false, err
	}
	userOK, err := s.store.UserExists(ctx, userID)
	if err != nil {
		return false, err
	}
	if evt == nil || !userOK {
		metrics.Registrations.WithLabelValues("missing").Inc()
		return false, nil
	}

	reg := &Registration{
		UserID:       userID,
		EventID:      eventID,
		RegisteredAt: s.now().UTC(),
		Status:       StatusInterested,
	}
	created, err := s.store.InsertRegistration(ctx, reg)
	if err != nil {
		return false, fmt.Errorf("insert registration: %w", err)
	}
	if !created {
		// lost a race with a concurrent identical request
		metrics.Registrations.WithLabelValues("duplicate").Inc()
		return false, nil
	}
	metrics.Registrations.WithLabelValues("created").Inc()
	return true, nil
}

// DeleteEvent removes the event and its registrations, then disposes of its
// uploaded image. The data deletion is transactional; the image cleanup runs
// afterwards and its failure is only logged.
func (s *Service) DeleteEvent(ctx context.Context, who auth.Identity, id int64) error {
	if !who.Can(auth.CapManageEvents) {
		return ErrForbidden
	}
	imageURL, found, err := s.store.DeleteEvent(ctx, id)
	if err != nil {
		return fmt.Errorf("delete event %d: %w", id, err)
	}
	if !found {
		return nil
	}
	metrics.EventMutations.WithLabelValues("delete").Inc()
	s.log.Warn("AUDIT: event deleted", "event_id", id, "by", who.Username)

	s.cleanupImage(ctx, id, imageURL)
	return nil
}

// ReplaceImage disposes of an image an edit has just replaced.
func (s *Service) ReplaceImage(ctx context.Context, eventID int64, oldURL string) {
	s.cleanupImage(ctx, eventID, oldURL)
}

func (s *Service) cleanupImage(ctx context.Context, eventID int64, url string) {
	if url == "" || s.cleaner == nil {
		return
	}
	if err := s.cleaner.RemoveImage(ctx, url); err != nil {
		s.log.Error("failed to delete image file", "event_id", eventID, "image_url", url, "error", err)
	}
}

// EventCount returns the number of stored events.
func (s *Service) EventCount(ctx context.Context) (int64, error) {
	return s.store.CountEvents(ctx)
}

// TotalRegistrations counts registrations across all events.
func (s *Service) TotalRegistrations(ctx context.Context) (int64, error) {
	return s.store.CountRegistrations(ctx)
}

// AllRegistrations lists every registration.
func (s *Service) AllRegistrations(ctx context.Context) ([]Registration, error) {
	return s.store.ListRegistrations(ctx)
}

// UpcomingEventsCount counts events starting strictly after now.
func (s *Service) UpcomingEventsCount(ctx context.Context) (int64, error) {
	return s.store.CountEventsAfter(ctx, s.now())
}

// PastEventsCount is total minus upcoming. Events without a start time are
// therefore counted as past.
func (s *Service) PastEventsCount(ctx context.Context) (int64, error) {
	total, err := s.store.CountEvents(ctx)
	if err != nil {
		return 0, err
	}
	upcoming, err := s.UpcomingEventsCount(ctx)
	if err != nil {
		return 0, err
	}
	return total - upcoming, nil
}

// RegistrationCount counts registrations for one event.
func (s *Service) RegistrationCount(ctx context.Context, eventID int64) (int64, error) {
	return s.store.CountRegistrationsForEvent(ctx, eventID)
}

// RegistrationCounts maps every supplied event id to its registration count,
// using a single grouped query. Events without registrations map to 0.
func (s *Service) RegistrationCounts(ctx context.Context, events []Event) (map[int64]int64, error) {
	counts := make(map[int64]int64, len(events))
	for _, e := range events {
		counts[e.ID] = 0
	}
	grouped, err := s.store.CountRegistrationsByEvent(ctx)
	if err != nil {
		return nil, err
	}
	for id, n := range grouped {
		counts[id] = n
	}
	return counts, nil
}

// CategoryCounts returns the number of events per category, in query order.
func (s *Service) CategoryCounts(ctx context.Context) ([]CategoryCount, error) {
	return s.store.CountEventsByCategory(ctx)
}

// Dashboard is the admin analytics snapshot.
type Dashboard struct {
	Events             []Event         `json:"events"`
	TotalEvents        int             `json:"total_events"`
	CategoryCounts     []CategoryCount `json:"category_counts"`
	UpcomingEvents     int64           `json:"upcoming_events"`
	PastEvents         int64           `json:"past_events"`
	TotalRegistrations int64           `json:"total_registrations"`
	RegistrationCounts map[int64]int64 `json:"registration_counts"`
	Now                time.Time       `json:"now"`
}

// Dashboard gathers the admin analytics in one call.
func (s *Service) Dashboard(ctx context.Context, who auth.Identity) (*Dashboard, error) {
	if !who.Can(auth.CapViewAnalytics) {
		return nil, ErrForbidden
	}
	evts, err := s.FindAllEvents(ctx)
	if err != nil {
		return nil, err
	}
	d := &Dashboard{Events: evts, TotalEvents: len(evts), Now: s.now()}
	if d.CategoryCounts, err = s.CategoryCounts(ctx); err != nil {
		return nil, err
	}
	if d.UpcomingEvents, err = s.UpcomingEventsCount(ctx); err != nil {
		return nil, err
	}
	if d.PastEvents, err = s.PastEventsCount(ctx); err != nil {
		return nil, err
	}
	if d.TotalRegistrations, err = s.TotalRegistrations(ctx); err != nil {
		return nil, err
	}
	if d.RegistrationCounts, err = s.RegistrationCounts(ctx, evts); err != nil {
		return nil, err
	}
	return d, nil
}
