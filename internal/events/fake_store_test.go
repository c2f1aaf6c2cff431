package events

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"
)

// memStore is an in-memory Store used by the service tests.
type memStore struct {
	mu       sync.Mutex
	events   map[int64]Event
	regs     []Registration
	users    map[int64]bool
	nextID   int64
	failList bool
}

func newMemStore(userIDs ...int64) *memStore {
	m := &memStore{events: map[int64]Event{}, users: map[int64]bool{}}
	for _, id := range userIDs {
		m.users[id] = true
	}
	return m
}

func (m *memStore) sorted(keep func(Event) bool) []Event {
	var out []Event
	for _, e := range m.events {
		if keep(e) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		switch {
		case a.StartsAt == nil && b.StartsAt == nil:
			return a.ID > b.ID
		case a.StartsAt == nil:
			return false
		case b.StartsAt == nil:
			return true
		case a.StartsAt.Equal(*b.StartsAt):
			return a.ID > b.ID
		}
		return a.StartsAt.After(*b.StartsAt)
	})
	return out
}

func (m *memStore) ListEvents(ctx context.Context) ([]Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failList {
		return nil, errors.New("list failed")
	}
	return m.sorted(func(Event) bool { return true }), nil
}

func (m *memStore) SearchEvents(ctx context.Context, q string) ([]Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	q = strings.ToLower(q)
	return m.sorted(func(e Event) bool {
		return strings.Contains(strings.ToLower(e.Title), q) || strings.Contains(strings.ToLower(e.Venue), q)
	}), nil
}

func (m *memStore) ListEventsByCategory(ctx context.Context, category string) ([]Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sorted(func(e Event) bool { return e.Category == category }), nil
}

func (m *memStore) GetEvent(ctx context.Context, id int64) (*Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.events[id]
	if !ok {
		return nil, nil
	}
	return &e, nil
}

func (m *memStore) InsertEvent(ctx context.Context, e *Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	e.ID = m.nextID
	m.events[e.ID] = *e
	return nil
}

func (m *memStore) UpdateEvent(ctx context.Context, e *Event) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.events[e.ID]; !ok {
		return false, nil
	}
	m.events[e.ID] = *e
	return true, nil
}

func (m *memStore) DeleteEvent(ctx context.Context, id int64) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.events[id]
	if !ok {
		return "", false, nil
	}
	kept := m.regs[:0]
	for _, r := range m.regs {
		if r.EventID != id {
			kept = append(kept, r)
		}
	}
	m.regs = kept
	delete(m.events, id)
	return e.ImageURL, true, nil
}

func (m *memStore) CountEvents(ctx context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.events)), nil
}

func (m *memStore) CountEventsAfter(ctx context.Context, t time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, e := range m.events {
		if e.StartsAt != nil && e.StartsAt.After(t) {
			n++
		}
	}
	return n, nil
}

func (m *memStore) CountEventsByCategory(ctx context.Context) ([]CategoryCount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	byCat := map[string]int64{}
	for _, e := range m.events {
		byCat[e.Category]++
	}
	var out []CategoryCount
	for c, n := range byCat {
		out = append(out, CategoryCount{Category: c, Count: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Category < out[j].Category })
	return out, nil
}

func (m *memStore) UserExists(ctx context.Context, id int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.users[id], nil
}

func (m *memStore) RegistrationExists(ctx context.Context, userID, eventID int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.regs {
		if r.UserID == userID && r.EventID == eventID {
			return true, nil
		}
	}
	return false, nil
}

func (m *memStore) InsertRegistration(ctx context.Context, reg *Registration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.regs {
		if r.UserID == reg.UserID && r.EventID == reg.EventID {
			return false, nil
		}
	}
	reg.ID = int64(len(m.regs) + 1)
	m.regs = append(m.regs, *reg)
	return true, nil
}

func (m *memStore) CountRegistrations(ctx context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.regs)), nil
}

func (m *memStore) CountRegistrationsForEvent(ctx context.Context, eventID int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, r := range m.regs {
		if r.EventID == eventID {
			n++
		}
	}
	return n, nil
}

func (m *memStore) CountRegistrationsByEvent(ctx context.Context) (map[int64]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := map[int64]int64{}
	for _, r := range m.regs {
		out[r.EventID]++
	}
	return out, nil
}

func (m *memStore) ListRegistrations(ctx context.Context) ([]Registration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Registration(nil), m.regs...), nil
}

// recordingCleaner remembers removal requests and can be told to fail.
type recordingCleaner struct {
	mu      sync.Mutex
	removed []string
	err     error
}

func (c *recordingCleaner) RemoveImage(ctx context.Context, url string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.removed = append(c.removed, url)
	return c.err
}
