package services

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"hisaab/internal/amqp"
	"hisaab/internal/core"
	"hisaab/internal/guard"
	"hisaab/internal/log"
	"hisaab/internal/storage"
	"hisaab/internal/storage/memory"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []amqp.HisaabEvent
	err    error
}

func (p *recordingPublisher) PublishHisaabEvent(_ context.Context, evt *amqp.HisaabEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, *evt)
	return p.err
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []string
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

type fixture struct {
	store     *memory.Store
	hisaabs   *HisaabService
	dashboard *DashboardService
	rooms     *RoomService
	events    *recordingPublisher
	logs      *bytes.Buffer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.New()
	g := guard.New(guard.NewBcryptHasher(bcrypt.MinCost))
	logs := &bytes.Buffer{}
	logger := log.NewText(logs, slog.LevelDebug, log.ComponentApp)
	events := &recordingPublisher{}
	dash := NewDashboardService(store, time.Minute)
	return &fixture{
		store:     store,
		hisaabs:   NewHisaabService(store, g, events, dash, logger),
		dashboard: dash,
		rooms:     NewRoomService(store, g, logger),
		events:    events,
		logs:      logs,
	}
}

func strPtr(s string) *string { return &s }
func boolPtr(b bool) *bool    { return &b }

func TestCreateLockedHisaab(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	h, err := f.hisaabs.Create(ctx, "u1", CreateHisaabInput{
		Title:     "  Rent  ",
		Label:     "Home",
		Encrypted: true,
		Password:  "s3cret",
		Content:   []core.LineItem{{Key: "march", Value: "1000"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "Rent", h.Title)
	assert.True(t, h.Encrypted)
	assert.NotEmpty(t, h.SecretHash)
	assert.NotEqual(t, "s3cret", h.SecretHash)
	assert.NotContains(t, f.logs.String(), "s3cret")
	assert.Equal(t, []string{amqp.EventHisaabCreated}, f.events.types())

	got, err := f.hisaabs.Get(ctx, h.ID)
	require.NoError(t, err)
	assert.Nil(t, got.Content)
}

func TestCreateValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tests := []struct {
		name string
		in   CreateHisaabInput
	}{
		{"missing title", CreateHisaabInput{Label: "x"}},
		{"missing label", CreateHisaabInput{Title: "x"}},
		{"locked without password", CreateHisaabInput{Title: "x", Label: "y", Encrypted: true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.hisaabs.Create(ctx, "u1", tt.in)
			assert.True(t, errors.Is(err, core.ErrValidation), "got %v", err)
		})
	}
	assert.Empty(t, f.events.types())
}

func TestPublishFailureDoesNotFailCreate(t *testing.T) {
	f := newFixture(t)
	f.events.err = errors.New("broker down")

	_, err := f.hisaabs.Create(context.Background(), "u1", CreateHisaabInput{Title: "t", Label: "l"})
	require.NoError(t, err)
	assert.Contains(t, f.logs.String(), "broker down")
}

func TestUnlock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	h, err := f.hisaabs.Create(ctx, "owner", CreateHisaabInput{
		Title: "Rent", Label: "Home", Encrypted: true, Password: "pw",
		Content: []core.LineItem{{Key: "march", Value: "1000"}},
	})
	require.NoError(t, err)

	got, err := f.hisaabs.Unlock(ctx, "someone-else", h.ID, "pw")
	require.NoError(t, err)
	assert.Equal(t, h.Content, got.Content)

	_, err = f.hisaabs.Unlock(ctx, "owner", h.ID, "wrong")
	assert.True(t, errors.Is(err, core.ErrAccessDenied))

	_, errMissing := f.hisaabs.Unlock(ctx, "owner", "no-such-id", "pw")
	assert.True(t, errors.Is(errMissing, core.ErrAccessDenied))
	assert.Equal(t, err.Error(), errMissing.Error())
	assert.Contains(t, f.logs.String(), "Access denied")
	assert.NotContains(t, f.logs.String(), "wrong")
}

func TestUpdateKeepsSecretWhenNoneSupplied(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	h, err := f.hisaabs.Create(ctx, "u1", CreateHisaabInput{Title: "Rent", Label: "Home", Encrypted: true, Password: "abc"})
	require.NoError(t, err)

	updated, err := f.hisaabs.Update(ctx, "u1", h.ID, UpdateHisaabInput{Title: strPtr("Rent 2025"), Encrypted: boolPtr(true)})
	require.NoError(t, err)
	assert.Equal(t, "Rent 2025", updated.Title)

	_, err = f.hisaabs.Unlock(ctx, "u1", h.ID, "abc")
	assert.NoError(t, err)
}

func TestUpdateRotatesAndClearsSecret(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	h, err := f.hisaabs.Create(ctx, "u1", CreateHisaabInput{Title: "Rent", Label: "Home", Encrypted: true, Password: "old"})
	require.NoError(t, err)

	_, err = f.hisaabs.Update(ctx, "u1", h.ID, UpdateHisaabInput{Encrypted: boolPtr(true), Password: strPtr("new")})
	require.NoError(t, err)
	_, err = f.hisaabs.Unlock(ctx, "u1", h.ID, "old")
	assert.True(t, errors.Is(err, core.ErrAccessDenied))
	_, err = f.hisaabs.Unlock(ctx, "u1", h.ID, "new")
	assert.NoError(t, err)

	opened, err := f.hisaabs.Update(ctx, "u1", h.ID, UpdateHisaabInput{Encrypted: boolPtr(false)})
	require.NoError(t, err)
	assert.False(t, opened.Encrypted)
	stored, err := f.store.FindByID(ctx, h.ID)
	require.NoError(t, err)
	assert.Empty(t, stored.SecretHash)
}

func TestUpdateLockingRequiresSecret(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	h, err := f.hisaabs.Create(ctx, "u1", CreateHisaabInput{Title: "Open", Label: "x"})
	require.NoError(t, err)

	_, err = f.hisaabs.Update(ctx, "u1", h.ID, UpdateHisaabInput{Encrypted: boolPtr(true)})
	assert.True(t, errors.Is(err, core.ErrValidation))

	stored, err := f.store.FindByID(ctx, h.ID)
	require.NoError(t, err)
	assert.False(t, stored.Encrypted)
}

func TestUpdateAndDeleteAreOwnerOnly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	h, err := f.hisaabs.Create(ctx, "u1", CreateHisaabInput{Title: "Mine", Label: "x"})
	require.NoError(t, err)

	_, err = f.hisaabs.Update(ctx, "u2", h.ID, UpdateHisaabInput{Title: strPtr("Theirs")})
	assert.True(t, errors.Is(err, storage.ErrNotFound))
	assert.True(t, errors.Is(f.hisaabs.Delete(ctx, "u2", h.ID), storage.ErrNotFound))

	require.NoError(t, f.hisaabs.Delete(ctx, "u1", h.ID))
	assert.Equal(t, []string{amqp.EventHisaabCreated, amqp.EventHisaabDeleted}, f.events.types())
}

func TestListAndSearch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.store.SetClock(func() time.Time { return time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC) })

	for _, in := range []CreateHisaabInput{
		{Title: "Groceries", Label: "Food", Content: []core.LineItem{{Key: "milk", Value: "2"}}},
		{Title: "Secret groceries", Label: "Food", Encrypted: true, Password: "pw", Content: []core.LineItem{{Key: "caviar", Value: "200"}}},
	} {
		_, err := f.hisaabs.Create(ctx, "u1", in)
		require.NoError(t, err)
	}

	list, err := f.hisaabs.List(ctx, "u1", storage.SortTitleAsc)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.NotNil(t, list[0].Content)
	assert.Nil(t, list[1].Content)

	_, err = f.hisaabs.List(ctx, "u1", "price")
	assert.True(t, errors.Is(err, core.ErrValidation))

	found, err := f.hisaabs.Search(ctx, "u1", "secret", "2025-06-01", "")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Nil(t, found[0].Content)

	found, err = f.hisaabs.Search(ctx, "u1", "", "2025-06-02", "")
	require.NoError(t, err)
	assert.Empty(t, found)

	_, err = f.hisaabs.Search(ctx, "u1", "", "01/06/2025", "")
	assert.True(t, errors.Is(err, core.ErrValidation))
}

func TestDashboardCachedUntilChange(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.hisaabs.Create(ctx, "u1", CreateHisaabInput{Title: "Week", Label: "Food", Content: []core.LineItem{{Key: "tea", Value: "10"}, {Key: "lunch", Value: "40"}}})
	require.NoError(t, err)
	_, err = f.hisaabs.Create(ctx, "u1", CreateHisaabInput{Title: "Snack", Label: "Food", Content: []core.LineItem{{Key: "chips", Value: "5"}}})
	require.NoError(t, err)
	_, err = f.hisaabs.Create(ctx, "u1", CreateHisaabInput{Title: "Rent", Label: "Rent", Encrypted: true, Password: "pw", Content: []core.LineItem{{Key: "m", Value: "900"}}})
	require.NoError(t, err)

	d, err := f.dashboard.Dashboard(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, d.ExpensesByCategory, 1)
	assert.Equal(t, "Food", d.ExpensesByCategory[0].Label)
	assert.Equal(t, "55.00", d.ExpensesByCategory[0].Total.String())
	assert.Equal(t, 2, d.HisaabCount)

	// A write straight to the store bypasses invalidation, so the cached
	// value is still served.
	_, err = f.store.Save(ctx, core.Hisaab{Title: "Direct", Label: "Food", OwnerID: "u1", Content: []core.LineItem{{Key: "x", Value: "1"}}})
	require.NoError(t, err)
	d, err = f.dashboard.Dashboard(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 2, d.HisaabCount)

	_, err = f.hisaabs.Create(ctx, "u1", CreateHisaabInput{Title: "More", Label: "Food", Content: []core.LineItem{{Key: "y", Value: "abc"}}})
	require.NoError(t, err)
	d, err = f.dashboard.Dashboard(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 4, d.HisaabCount)
	assert.Equal(t, "56.00", d.GrandTotal.String())
}

// pausingStore blocks the next Find after it has read the store until
// release is closed.
type pausingStore struct {
	storage.HisaabStore
	once    sync.Once
	read    chan struct{}
	release chan struct{}
}

func (s *pausingStore) Find(ctx context.Context, f storage.Filter) ([]core.Hisaab, error) {
	hs, err := s.HisaabStore.Find(ctx, f)
	s.once.Do(func() {
		close(s.read)
		<-s.release
	})
	return hs, err
}

func TestDashboardNotCachedAcrossConcurrentUpdate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	h, err := f.hisaabs.Create(ctx, "u1", CreateHisaabInput{Title: "Week", Label: "Food", Content: []core.LineItem{{Key: "tea", Value: "10"}}})
	require.NoError(t, err)

	slow := &pausingStore{HisaabStore: f.store, read: make(chan struct{}), release: make(chan struct{})}
	dash := NewDashboardService(slow, time.Minute)
	svc := NewHisaabService(f.store, guard.New(guard.NewBcryptHasher(bcrypt.MinCost)), nil, dash, log.NewText(&bytes.Buffer{}, slog.LevelInfo, log.ComponentApp))

	done := make(chan core.Dashboard)
	go func() {
		d, err := dash.Dashboard(ctx, "u1")
		assert.NoError(t, err)
		done <- d
	}()

	<-slow.read
	content := []core.LineItem{{Key: "tea", Value: "99"}}
	_, err = svc.Update(ctx, "u1", h.ID, UpdateHisaabInput{Content: &content})
	require.NoError(t, err)
	close(slow.release)

	stale := <-done
	assert.Equal(t, "10.00", stale.GrandTotal.String())

	d, err := dash.Dashboard(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "99.00", d.GrandTotal.String())
}

func TestRooms(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.rooms.Create(ctx, "u1", "Flat", "shared bills", "")
	assert.True(t, errors.Is(err, core.ErrValidation))

	room, err := f.rooms.Create(ctx, "u1", "Flat", "shared bills", "door")
	require.NoError(t, err)
	assert.Equal(t, []string{"u1"}, room.Members)

	_, err = f.rooms.Join(ctx, "u2", room.ID, "window")
	assert.True(t, errors.Is(err, core.ErrAccessDenied))
	_, err = f.rooms.Join(ctx, "u2", "missing", "door")
	assert.True(t, errors.Is(err, core.ErrAccessDenied))

	joined, err := f.rooms.Join(ctx, "u2", room.ID, "door")
	require.NoError(t, err)
	assert.Equal(t, []string{"u1", "u2"}, joined.Members)

	all, mine, err := f.rooms.List(ctx, "u3")
	require.NoError(t, err)
	assert.Len(t, all, 1)
	assert.Empty(t, mine)
}

type fakeIssuer struct{}

func (fakeIssuer) GenerateToken(userID string) (string, error) { return "token-" + userID, nil }

func TestUsers(t *testing.T) {
	store := memory.New()
	users := NewUserService(store, guard.New(guard.NewBcryptHasher(bcrypt.MinCost)), fakeIssuer{})
	ctx := context.Background()

	u, err := users.Register(ctx, "asha", " Asha@Example.com ", "pw123")
	require.NoError(t, err)
	assert.Equal(t, "asha@example.com", u.Email)
	assert.NotEqual(t, "pw123", u.PasswordHash)

	_, err = users.Register(ctx, "again", "asha@example.com", "pw")
	assert.True(t, errors.Is(err, core.ErrConflict))
	_, err = users.Register(ctx, "nopw", "x@example.com", "")
	assert.True(t, errors.Is(err, core.ErrValidation))
	_, err = users.Register(ctx, "bad", "not-an-email", "pw")
	assert.True(t, errors.Is(err, core.ErrValidation))

	got, token, err := users.Login(ctx, "ASHA@example.com", "pw123")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)
	assert.Equal(t, "token-"+u.ID, token)

	_, _, err = users.Login(ctx, "asha@example.com", "nope")
	assert.True(t, errors.Is(err, ErrInvalidCredentials))
	_, _, errUnknown := users.Login(ctx, "ghost@example.com", "pw123")
	assert.Equal(t, err, errUnknown)

	me, err := users.Get(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "asha", me.Username)
}
