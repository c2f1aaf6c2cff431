package events

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"campusevents/internal/auth"
	"campusevents/internal/store"
)

func newSQLiteRepo(t *testing.T) (*Repository, *store.DB) {
	t.Helper()
	db, err := store.NewDB(store.DriverSQLite, filepath.Join(t.TempDir(), "campus.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, db.Migrate())
	return NewRepository(db), db
}

func addUser(t *testing.T, db *store.DB, name string) int64 {
	t.Helper()
	u := &auth.User{Username: name, PasswordHash: "x", Role: auth.RoleStudent}
	created, err := auth.NewRepository(db).CreateIfMissing(context.Background(), u)
	require.NoError(t, err)
	require.True(t, created)
	return u.ID
}

func TestRepositoryRoundTrip(t *testing.T) {
	repo, _ := newSQLiteRepo(t)
	ctx := context.Background()

	capacity := 40
	e := &Event{
		Title: "Hackathon", Description: "24h build", StartsAt: at(time.Hour), EndsAt: at(25 * time.Hour),
		Venue: "Lab", Category: "Technical", RegistrationLink: "https://forms.example/h",
		MaxCapacity: &capacity, ImageURL: "/uploads/a_h.png",
	}
	require.NoError(t, repo.InsertEvent(ctx, e))
	require.NotZero(t, e.ID)

	got, err := repo.GetEvent(ctx, e.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, e.Title, got.Title)
	require.True(t, e.StartsAt.Equal(*got.StartsAt))
	require.True(t, e.EndsAt.Equal(*got.EndsAt))
	require.Equal(t, 40, *got.MaxCapacity)
	require.Equal(t, "/uploads/a_h.png", got.ImageURL)

	got.MaxCapacity = nil
	got.EndsAt = nil
	ok, err := repo.UpdateEvent(ctx, got)
	require.NoError(t, err)
	require.True(t, ok)

	again, err := repo.GetEvent(ctx, e.ID)
	require.NoError(t, err)
	require.Nil(t, again.MaxCapacity)
	require.Nil(t, again.EndsAt)

	ok, err = repo.UpdateEvent(ctx, &Event{ID: 999, Title: "ghost"})
	require.NoError(t, err)
	require.False(t, ok)

	missing, err := repo.GetEvent(ctx, 999)
	require.NoError(t, err)
	require.Nil(t, missing)
}

func TestRepositoryOrderingAndFilters(t *testing.T) {
	repo, _ := newSQLiteRepo(t)
	ctx := context.Background()

	insert := func(title, venue, category string, start *time.Time) int64 {
		e := &Event{Title: title, Description: "d", Venue: venue, Category: category, StartsAt: start}
		require.NoError(t, repo.InsertEvent(ctx, e))
		return e.ID
	}
	undated := insert("Undated", "Somewhere", "Seminar", nil)
	old := insert("Old Fair", "Quad", "Cultural", at(-48*time.Hour))
	next := insert("Hack Night", "Lab", "Technical", at(48*time.Hour))
	soon := insert("100% Fun_Run", "Track", "Sports", at(time.Hour))

	all, err := repo.ListEvents(ctx)
	require.NoError(t, err)
	require.Equal(t, []int64{next, soon, old, undated}, ids(all))

	got, err := repo.SearchEvents(ctx, "hack")
	require.NoError(t, err)
	require.Equal(t, []int64{next}, ids(got))

	got, err = repo.SearchEvents(ctx, "QUAD")
	require.NoError(t, err)
	require.Equal(t, []int64{old}, ids(got))

	got, err = repo.SearchEvents(ctx, "%")
	require.NoError(t, err)
	require.Equal(t, []int64{soon}, ids(got), "wildcards in the query match literally")

	got, err = repo.SearchEvents(ctx, "n_r")
	require.NoError(t, err)
	require.Equal(t, []int64{soon}, ids(got))

	got, err = repo.ListEventsByCategory(ctx, "Cultural")
	require.NoError(t, err)
	require.Equal(t, []int64{old}, ids(got))

	got, err = repo.ListEventsByCategory(ctx, "cultural")
	require.NoError(t, err)
	require.Empty(t, got)

	n, err := repo.CountEventsAfter(ctx, testNow)
	require.NoError(t, err)
	require.Equal(t, int64(2), n)

	total, err := repo.CountEvents(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(4), total)

	cats, err := repo.CountEventsByCategory(ctx)
	require.NoError(t, err)
	require.Equal(t, []CategoryCount{{"Cultural", 1}, {"Seminar", 1}, {"Sports", 1}, {"Technical", 1}}, cats)
}

func TestRepositoryConcurrentRegistration(t *testing.T) {
	repo, db := newSQLiteRepo(t)
	ctx := context.Background()
	uid := addUser(t, db, "alice")
	e := &Event{Title: "Talk", Description: "d", Venue: "v", Category: "c", StartsAt: at(time.Hour)}
	require.NoError(t, repo.InsertEvent(ctx, e))

	var (
		wg      sync.WaitGroup
		created atomic.Int32
	)
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := repo.InsertRegistration(ctx, &Registration{UserID: uid, EventID: e.ID, RegisteredAt: testNow, Status: StatusInterested})
			if err == nil && ok {
				created.Add(1)
			}
		}()
	}
	wg.Wait()

	require.Equal(t, int32(1), created.Load())
	n, err := repo.CountRegistrationsForEvent(ctx, e.ID)
	require.NoError(t, err)
	require.Equal(t, int64(1), n)

	exists, err := repo.RegistrationExists(ctx, uid, e.ID)
	require.NoError(t, err)
	require.True(t, exists)
}

func TestRepositoryDeleteCascades(t *testing.T) {
	repo, db := newSQLiteRepo(t)
	ctx := context.Background()
	u1 := addUser(t, db, "u1")
	u2 := addUser(t, db, "u2")

	gone := &Event{Title: "Gone", Description: "d", Venue: "v", Category: "c", StartsAt: at(time.Hour), ImageURL: "/uploads/g.png"}
	kept := &Event{Title: "Kept", Description: "d", Venue: "v", Category: "c", StartsAt: at(time.Hour), ImageURL: "/uploads/k.png"}
	require.NoError(t, repo.InsertEvent(ctx, gone))
	require.NoError(t, repo.InsertEvent(ctx, kept))
	for _, r := range []Registration{
		{UserID: u1, EventID: gone.ID}, {UserID: u2, EventID: gone.ID}, {UserID: u1, EventID: kept.ID},
	} {
		r.RegisteredAt, r.Status = testNow, StatusInterested
		ok, err := repo.InsertRegistration(ctx, &r)
		require.NoError(t, err)
		require.True(t, ok)
	}

	byEvent, err := repo.CountRegistrationsByEvent(ctx)
	require.NoError(t, err)
	require.Equal(t, map[int64]int64{gone.ID: 2, kept.ID: 1}, byEvent)

	img, found, err := repo.DeleteEvent(ctx, gone.ID)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "/uploads/g.png", img)

	regs, err := repo.ListRegistrations(ctx)
	require.NoError(t, err)
	require.Len(t, regs, 1)
	require.Equal(t, kept.ID, regs[0].EventID)
	require.Equal(t, testNow, regs[0].RegisteredAt)

	_, found, err = repo.DeleteEvent(ctx, gone.ID)
	require.NoError(t, err)
	require.False(t, found)

	urls, err := repo.EventImageURLs(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"/uploads/k.png"}, urls)

	exists, err := repo.UserExists(ctx, u2)
	require.NoError(t, err)
	require.True(t, exists)
	exists, err = repo.UserExists(ctx, 999)
	require.NoError(t, err)
	require.False(t, exists)
}

func TestServiceOnSQLite(t *testing.T) {
	repo, db := newSQLiteRepo(t)
	uid := addUser(t, db, "guest")
	cl := &recordingCleaner{}
	s := NewService(repo, cl, WithClock(func() time.Time { return testNow }))
	ctx := context.Background()

	e := &Event{Title: "Expo", Description: "d", Venue: "Hall", Category: "Technical", StartsAt: at(time.Hour), ImageURL: "/uploads/x.png"}
	require.NoError(t, s.SaveEvent(ctx, admin, e))

	ok, err := s.RegisterStudent(ctx, e.ID, uid)
	require.NoError(t, err)
	require.True(t, ok)
	ok, err = s.RegisterStudent(ctx, e.ID, uid)
	require.NoError(t, err)
	require.False(t, ok)

	d, err := s.Dashboard(ctx, admin)
	require.NoError(t, err)
	require.Equal(t, int64(1), d.UpcomingEvents)
	require.Equal(t, int64(1), d.TotalRegistrations)

	require.NoError(t, s.DeleteEvent(ctx, admin, e.ID))
	require.Equal(t, []string{"/uploads/x.png"}, cl.removed)
	total, err := s.TotalRegistrations(ctx)
	require.NoError(t, err)
	require.Zero(t, total)
}

func TestRepositorySearchFoldsUnicode(t *testing.T) {
	repo, _ := newSQLiteRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.InsertEvent(ctx, &Event{Title: "ÉCOLE Fair", Venue: "Straße Hall", Category: "Cultural", StartsAt: at(time.Hour)}))

	for _, q := range []string{"ÉCOLE", "école", "Fair", "straße", "STRAẞE"} {
		got, err := repo.SearchEvents(ctx, q)
		require.NoError(t, err)
		require.Len(t, got, 1, "query %q", q)
	}
}

func TestRepositorySearchProperty(t *testing.T) {
	repo, db := newSQLiteRepo(t)
	ctx := context.Background()

	rapid.Check(t, func(rt *rapid.T) {
		if _, err := db.Client.ExecContext(ctx, `DELETE FROM events`); err != nil {
			rt.Fatalf("reset: %v", err)
		}
		word := rapid.StringMatching(`[a-zA-ZÉéÜüÖöß%_ ]{0,12}`)
		n := rapid.IntRange(0, 8).Draw(rt, "n")
		var all []Event
		for i := 0; i < n; i++ {
			e := Event{
				Title:    word.Draw(rt, "title"),
				Venue:    word.Draw(rt, "venue"),
				Category: "Technical",
				StartsAt: at(time.Duration(i) * time.Hour),
			}
			if err := repo.InsertEvent(ctx, &e); err != nil {
				rt.Fatalf("insert: %v", err)
			}
			all = append(all, e)
		}
		q := rapid.StringMatching(`[a-zA-ZÉéÜüÖö%_]{1,3}`).Draw(rt, "query")

		got, err := repo.SearchEvents(ctx, q)
		if err != nil {
			rt.Fatalf("search: %v", err)
		}
		lq := strings.ToLower(q)
		want := map[int64]bool{}
		for _, e := range all {
			if strings.Contains(strings.ToLower(e.Title), lq) || strings.Contains(strings.ToLower(e.Venue), lq) {
				want[e.ID] = true
			}
		}
		if len(got) != len(want) {
			rt.Fatalf("query %q: got %d events, want %d", q, len(got), len(want))
		}
		for _, e := range got {
			if !want[e.ID] {
				rt.Fatalf("query %q returned non-matching event %q/%q", q, e.Title, e.Venue)
			}
		}
	})
}
