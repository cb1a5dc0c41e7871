// Package storage persists hisaabs, rooms and users.
//
// Every failure of the underlying store is wrapped with core.ErrStorage. A
// missing document, or one that belongs to someone else on an owner scoped
// call, is reported as ErrNotFound.
package storage

import (
	"context"
	"time"

	"hisaab/internal/core"
)

var ErrNotFound = core.ErrNotFound

// Sort orders for hisaab listings.
const (
	SortDateDesc  = "date_desc"
	SortDateAsc   = "date_asc"
	SortTitleAsc  = "title_asc"
	SortTitleDesc = "title_desc"
)

// ValidSort reports whether s is a known sort order. The empty string means
// SortDateDesc.
func ValidSort(s string) bool {
	switch s {
	case "", SortDateDesc, SortDateAsc, SortTitleAsc, SortTitleDesc:
		return true
	}
	return false
}

// Filter selects hisaabs. OwnerID is required.
type Filter struct {
	OwnerID       string
	TitleContains string
	// CreatedOn restricts results to the UTC calendar day containing it.
	CreatedOn *time.Time
	Sort      string
}

// DayRange returns the UTC bounds [start, end) of the day containing t.
func DayRange(t time.Time) (time.Time, time.Time) {
	t = t.UTC()
	start := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 0, 1)
}

// Patch is a partial update of a hisaab. Nil fields are left untouched.
type Patch struct {
	OwnerID    string
	Title      *string
	Label      *string
	Content    *[]core.LineItem
	Encrypted  *bool
	SecretHash *string
	RoomID     *string
}

// Apply returns a copy of h with the patch applied.
func (p Patch) Apply(h core.Hisaab) core.Hisaab {
	if p.Title != nil {
		h.Title = *p.Title
	}
	if p.Label != nil {
		h.Label = *p.Label
	}
	if p.Content != nil {
		h.Content = append([]core.LineItem(nil), (*p.Content)...)
	}
	if p.Encrypted != nil {
		h.Encrypted = *p.Encrypted
	}
	if p.SecretHash != nil {
		h.SecretHash = *p.SecretHash
	}
	if p.RoomID != nil {
		h.RoomID = *p.RoomID
	}
	return h
}

type (
	HisaabStore interface {
		Find(ctx context.Context, f Filter) ([]core.Hisaab, error)
		FindByID(ctx context.Context, id string) (core.Hisaab, error)
		// Save inserts h, assigning ID and timestamps, and returns the stored copy.
		Save(ctx context.Context, h core.Hisaab) (core.Hisaab, error)
		// Update applies p to the hisaab id owned by p.OwnerID.
		Update(ctx context.Context, id string, p Patch) (core.Hisaab, error)
		Delete(ctx context.Context, id string, ownerID string) error
		// OwnerIDs lists every owner with at least one hisaab, ascending.
		OwnerIDs(ctx context.Context) ([]string, error)
	}

	RoomStore interface {
		ListRooms(ctx context.Context) ([]core.Room, error)
		FindRoom(ctx context.Context, id string) (core.Room, error)
		SaveRoom(ctx context.Context, r core.Room) (core.Room, error)
		// AddMember is idempotent.
		AddMember(ctx context.Context, roomID, userID string) (core.Room, error)
	}

	UserStore interface {
		// SaveUser returns core.ErrConflict when the email is taken.
		SaveUser(ctx context.Context, u core.User) (core.User, error)
		FindUserByEmail(ctx context.Context, email string) (core.User, error)
		FindUser(ctx context.Context, id string) (core.User, error)
	}

	// Store is everything the application needs from a backend.
	Store interface {
		HisaabStore
		RoomStore
		UserStore
		Ping(ctx context.Context) error
		Close() error
	}
)
