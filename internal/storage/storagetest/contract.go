// Package storagetest holds behaviour every storage.Store must share.
package storagetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hisaab/internal/core"
	"hisaab/internal/storage"
)

// Clocked stores accept a fake time source.
type Clocked interface {
	SetClock(now func() time.Time)
}

// Ticker returns a clock starting at start that advances by step per call.
func Ticker(start time.Time, step time.Duration) func() time.Time {
	next := start
	return func() time.Time {
		t := next
		next = next.Add(step)
		return t
	}
}

func strPtr(s string) *string { return &s }
func boolPtr(b bool) *bool    { return &b }

// Run exercises newStore against the storage contract.
func Run(t *testing.T, newStore func(t *testing.T) storage.Store) {
	ctx := context.Background()
	base := time.Date(2025, 3, 14, 22, 0, 0, 0, time.UTC)

	fresh := func(t *testing.T) storage.Store {
		s := newStore(t)
		if c, ok := s.(Clocked); ok {
			c.SetClock(Ticker(base, time.Hour))
		}
		return s
	}

	t.Run("save and find by id", func(t *testing.T) {
		s := fresh(t)
		saved, err := s.Save(ctx, core.Hisaab{
			Title:   "Groceries",
			Label:   "Food",
			OwnerID: "u1",
			Content: []core.LineItem{{Key: "milk", Value: "2.50"}, {Key: "bread", Value: "abc"}},
		})
		require.NoError(t, err)
		require.NotEmpty(t, saved.ID)
		assert.False(t, saved.CreatedAt.IsZero())

		got, err := s.FindByID(ctx, saved.ID)
		require.NoError(t, err)
		assert.Equal(t, saved.Title, got.Title)
		assert.Equal(t, saved.Content, got.Content)
		assert.True(t, saved.CreatedAt.Equal(got.CreatedAt))
	})

	t.Run("secret hash persisted", func(t *testing.T) {
		s := fresh(t)
		saved, err := s.Save(ctx, core.Hisaab{Title: "Rent", Label: "Home", OwnerID: "u1", Encrypted: true, SecretHash: "$2a$hash"})
		require.NoError(t, err)
		got, err := s.FindByID(ctx, saved.ID)
		require.NoError(t, err)
		assert.True(t, got.Encrypted)
		assert.Equal(t, "$2a$hash", got.SecretHash)
	})

	t.Run("missing id", func(t *testing.T) {
		s := fresh(t)
		_, err := s.FindByID(ctx, "nope")
		assert.True(t, errors.Is(err, storage.ErrNotFound))
	})

	t.Run("find is owner scoped and sorted", func(t *testing.T) {
		s := fresh(t)
		for _, title := range []string{"banana", "Apple", "cherry"} {
			_, err := s.Save(ctx, core.Hisaab{Title: title, Label: "x", OwnerID: "u1"})
			require.NoError(t, err)
		}
		_, err := s.Save(ctx, core.Hisaab{Title: "other", Label: "x", OwnerID: "u2"})
		require.NoError(t, err)

		owners, err := s.OwnerIDs(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"u1", "u2"}, owners)

		titles := func(sort string) []string {
			hs, err := s.Find(ctx, storage.Filter{OwnerID: "u1", Sort: sort})
			require.NoError(t, err)
			var out []string
			for _, h := range hs {
				out = append(out, h.Title)
			}
			return out
		}
		assert.Equal(t, []string{"cherry", "Apple", "banana"}, titles(""))
		assert.Equal(t, []string{"cherry", "Apple", "banana"}, titles(storage.SortDateDesc))
		assert.Equal(t, []string{"banana", "Apple", "cherry"}, titles(storage.SortDateAsc))
		assert.Equal(t, []string{"Apple", "banana", "cherry"}, titles(storage.SortTitleAsc))
		assert.Equal(t, []string{"cherry", "banana", "Apple"}, titles(storage.SortTitleDesc))
	})

	t.Run("search by title and day", func(t *testing.T) {
		s := fresh(t)
		// base is 22:00, so the third save lands on the next UTC day.
		for _, title := range []string{"Weekly groceries", "Fuel", "grocery run"} {
			_, err := s.Save(ctx, core.Hisaab{Title: title, Label: "x", OwnerID: "u1"})
			require.NoError(t, err)
		}

		hs, err := s.Find(ctx, storage.Filter{OwnerID: "u1", TitleContains: "GROCER"})
		require.NoError(t, err)
		assert.Len(t, hs, 2)

		day := base
		hs, err = s.Find(ctx, storage.Filter{OwnerID: "u1", CreatedOn: &day})
		require.NoError(t, err)
		assert.Len(t, hs, 2)

		next := base.AddDate(0, 0, 1)
		hs, err = s.Find(ctx, storage.Filter{OwnerID: "u1", TitleContains: "grocer", CreatedOn: &next})
		require.NoError(t, err)
		require.Len(t, hs, 1)
		assert.Equal(t, "grocery run", hs[0].Title)
	})

	t.Run("update applies patch for owner only", func(t *testing.T) {
		s := fresh(t)
		saved, err := s.Save(ctx, core.Hisaab{Title: "Trip", Label: "Travel", OwnerID: "u1", Encrypted: true, SecretHash: "h1"})
		require.NoError(t, err)

		_, err = s.Update(ctx, saved.ID, storage.Patch{OwnerID: "u2", Title: strPtr("stolen")})
		assert.True(t, errors.Is(err, storage.ErrNotFound))

		content := []core.LineItem{{Key: "bus", Value: "5"}}
		got, err := s.Update(ctx, saved.ID, storage.Patch{
			OwnerID:    "u1",
			Title:      strPtr("Road trip"),
			Content:    &content,
			Encrypted:  boolPtr(false),
			SecretHash: strPtr(""),
		})
		require.NoError(t, err)
		assert.Equal(t, "Road trip", got.Title)
		assert.Equal(t, "Travel", got.Label)
		assert.False(t, got.Encrypted)
		assert.Empty(t, got.SecretHash)
		assert.True(t, got.UpdatedAt.After(got.CreatedAt))

		reloaded, err := s.FindByID(ctx, saved.ID)
		require.NoError(t, err)
		assert.Equal(t, content, reloaded.Content)
		assert.Empty(t, reloaded.SecretHash)
	})

	t.Run("delete for owner only", func(t *testing.T) {
		s := fresh(t)
		saved, err := s.Save(ctx, core.Hisaab{Title: "Gym", Label: "Health", OwnerID: "u1"})
		require.NoError(t, err)

		assert.True(t, errors.Is(s.Delete(ctx, saved.ID, "u2"), storage.ErrNotFound))
		require.NoError(t, s.Delete(ctx, saved.ID, "u1"))
		assert.True(t, errors.Is(s.Delete(ctx, saved.ID, "u1"), storage.ErrNotFound))
	})

	t.Run("rooms and members", func(t *testing.T) {
		s := fresh(t)
		room, err := s.SaveRoom(ctx, core.Room{Name: "Flat", SecretHash: "h", Members: []string{"u1"}})
		require.NoError(t, err)
		require.NotEmpty(t, room.ID)

		room, err = s.AddMember(ctx, room.ID, "u2")
		require.NoError(t, err)
		room, err = s.AddMember(ctx, room.ID, "u2")
		require.NoError(t, err)
		assert.Equal(t, []string{"u1", "u2"}, room.Members)

		got, err := s.FindRoom(ctx, room.ID)
		require.NoError(t, err)
		assert.Equal(t, []string{"u1", "u2"}, got.Members)
		assert.Equal(t, "h", got.SecretHash)

		_, err = s.SaveRoom(ctx, core.Room{Name: "Office", SecretHash: "h", Members: []string{"u3"}})
		require.NoError(t, err)
		rooms, err := s.ListRooms(ctx)
		require.NoError(t, err)
		require.Len(t, rooms, 2)
		assert.Equal(t, "Office", rooms[0].Name)

		_, err = s.AddMember(ctx, "missing", "u1")
		assert.True(t, errors.Is(err, storage.ErrNotFound))
	})

	t.Run("users unique by email", func(t *testing.T) {
		s := fresh(t)
		u, err := s.SaveUser(ctx, core.User{Username: "asha", Email: "Asha@Example.com", PasswordHash: "h"})
		require.NoError(t, err)
		assert.Equal(t, "asha@example.com", u.Email)

		_, err = s.SaveUser(ctx, core.User{Username: "other", Email: "asha@example.com", PasswordHash: "h"})
		assert.True(t, errors.Is(err, core.ErrConflict))

		got, err := s.FindUserByEmail(ctx, "ASHA@example.com")
		require.NoError(t, err)
		assert.Equal(t, u.ID, got.ID)

		got, err = s.FindUser(ctx, u.ID)
		require.NoError(t, err)
		assert.Equal(t, "asha", got.Username)

		_, err = s.FindUser(ctx, "missing")
		assert.True(t, errors.Is(err, storage.ErrNotFound))
	})
}
