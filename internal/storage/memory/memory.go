// Package memory is an in-process storage backend. Data is lost on restart.
package memory

import (
	"cmp"
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"hisaab/internal/core"
	"hisaab/internal/storage"
)

type Store struct {
	mu      sync.Mutex
	hisaabs map[string]core.Hisaab
	// seq records insertion order. It breaks ties between equal sort keys
	// the way rowid does in the sqlite store.
	seq     map[string]uint64
	nextSeq uint64
	rooms   map[string]core.Room
	users   map[string]core.User
	emails  map[string]string

	// now is replaceable in tests.
	now func() time.Time
}

func New() *Store {
	return &Store{
		hisaabs: map[string]core.Hisaab{},
		seq:     map[string]uint64{},
		rooms:   map[string]core.Room{},
		users:   map[string]core.User{},
		emails:  map[string]string{},
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (s *Store) Ping(context.Context) error { return nil }
func (s *Store) Close() error               { return nil }

func cloneHisaab(h core.Hisaab) core.Hisaab {
	h.Content = slices.Clone(h.Content)
	return h
}

func cloneRoom(r core.Room) core.Room {
	r.Members = slices.Clone(r.Members)
	return r
}

func (s *Store) Find(_ context.Context, f storage.Filter) ([]core.Hisaab, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Hisaab, 0)
	for _, h := range s.hisaabs {
		if f.Matches(h) {
			out = append(out, cloneHisaab(h))
		}
	}
	slices.SortFunc(out, func(a, b core.Hisaab) int { return cmp.Compare(s.seq[a.ID], s.seq[b.ID]) })
	storage.SortHisaabs(out, f.Sort)
	return out, nil
}

func (s *Store) OwnerIDs(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	seen := make(map[string]bool)
	out := make([]string, 0)
	for _, h := range s.hisaabs {
		if !seen[h.OwnerID] {
			seen[h.OwnerID] = true
			out = append(out, h.OwnerID)
		}
	}
	slices.Sort(out)
	return out, nil
}

func (s *Store) FindByID(_ context.Context, id string) (core.Hisaab, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.hisaabs[id]
	if !ok {
		return core.Hisaab{}, storage.ErrNotFound
	}
	return cloneHisaab(h), nil
}

func (s *Store) Save(_ context.Context, h core.Hisaab) (core.Hisaab, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h.ID = uuid.NewString()
	h.CreatedAt = s.now()
	h.UpdatedAt = h.CreatedAt
	h = cloneHisaab(h)
	s.hisaabs[h.ID] = h
	s.nextSeq++
	s.seq[h.ID] = s.nextSeq
	return cloneHisaab(h), nil
}

func (s *Store) Update(_ context.Context, id string, p storage.Patch) (core.Hisaab, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.hisaabs[id]
	if !ok || h.OwnerID != p.OwnerID {
		return core.Hisaab{}, storage.ErrNotFound
	}
	h = p.Apply(h)
	h.UpdatedAt = s.now()
	s.hisaabs[id] = h
	return cloneHisaab(h), nil
}

func (s *Store) Delete(_ context.Context, id string, ownerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.hisaabs[id]
	if !ok || h.OwnerID != ownerID {
		return storage.ErrNotFound
	}
	delete(s.hisaabs, id)
	delete(s.seq, id)
	return nil
}

func (s *Store) ListRooms(context.Context) ([]core.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Room, 0, len(s.rooms))
	for _, r := range s.rooms {
		out = append(out, cloneRoom(r))
	}
	slices.SortFunc(out, func(a, b core.Room) int { return b.CreatedAt.Compare(a.CreatedAt) })
	return out, nil
}

func (s *Store) FindRoom(_ context.Context, id string) (core.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rooms[id]
	if !ok {
		return core.Room{}, storage.ErrNotFound
	}
	return cloneRoom(r), nil
}

func (s *Store) SaveRoom(_ context.Context, r core.Room) (core.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r.ID = uuid.NewString()
	r.CreatedAt = s.now()
	r = cloneRoom(r)
	s.rooms[r.ID] = r
	return cloneRoom(r), nil
}

func (s *Store) AddMember(_ context.Context, roomID, userID string) (core.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rooms[roomID]
	if !ok {
		return core.Room{}, storage.ErrNotFound
	}
	if !r.IsMember(userID) {
		r.Members = append(r.Members, userID)
		s.rooms[roomID] = r
	}
	return cloneRoom(r), nil
}

func (s *Store) SaveUser(_ context.Context, u core.User) (core.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	email := strings.ToLower(u.Email)
	if _, taken := s.emails[email]; taken {
		return core.User{}, core.ErrConflict
	}
	u.ID = uuid.NewString()
	u.Email = email
	u.CreatedAt = s.now()
	s.users[u.ID] = u
	s.emails[email] = u.ID
	return u, nil
}

func (s *Store) FindUserByEmail(_ context.Context, email string) (core.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.emails[strings.ToLower(email)]
	if !ok {
		return core.User{}, storage.ErrNotFound
	}
	return s.users[id], nil
}

func (s *Store) FindUser(_ context.Context, id string) (core.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return core.User{}, storage.ErrNotFound
	}
	return u, nil
}

var _ storage.Store = (*Store)(nil)

// SetClock replaces the time source used for created and updated stamps.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}
