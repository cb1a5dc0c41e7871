package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"hisaab/internal/amqp"
	"hisaab/internal/core"
	"hisaab/internal/guard"
	"hisaab/internal/log"
	"hisaab/internal/storage"
)

// DateLayout is the format of the search date filter.
const DateLayout = "2006-01-02"

// Invalidator drops cached data derived from an owner's hisaabs.
type Invalidator interface {
	Invalidate(ownerID string)
}

type (
	CreateHisaabInput struct {
		Title     string
		Label     string
		Content   []core.LineItem
		Encrypted bool
		Password  string
		RoomID    string
	}

	// UpdateHisaabInput leaves nil fields unchanged. Password only matters
	// when the result is encrypted.
	UpdateHisaabInput struct {
		Title     *string
		Label     *string
		Content   *[]core.LineItem
		Encrypted *bool
		Password  *string
		RoomID    *string
	}
)

// HisaabService orchestrates hisaab operations across the store, the access
// guard and the event publisher.
type HisaabService struct {
	store       storage.HisaabStore
	guard       *guard.Guard
	events      EventPublisher
	invalidator Invalidator
	log         *log.StructuredLogger
}

func NewHisaabService(store storage.HisaabStore, g *guard.Guard, events EventPublisher, invalidator Invalidator, logger *log.Logger) *HisaabService {
	if g == nil {
		g = guard.New(nil)
	}
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &HisaabService{
		store:       store,
		guard:       g,
		events:      events,
		invalidator: invalidator,
		log:         log.NewStructuredLogger(logger.WithComponent(log.ComponentHisaab)),
	}
}

func redactAll(hs []core.Hisaab) []core.Hisaab {
	for i := range hs {
		hs[i] = hs[i].Redacted()
	}
	return hs
}

// List returns the caller's hisaabs, locked contents removed.
func (s *HisaabService) List(ctx context.Context, ownerID, sort string) ([]core.Hisaab, error) {
	if !storage.ValidSort(sort) {
		return nil, fmt.Errorf("%w: unknown sort %q", core.ErrValidation, sort)
	}
	hs, err := s.store.Find(ctx, storage.Filter{OwnerID: ownerID, Sort: sort})
	if err != nil {
		return nil, err
	}
	return redactAll(hs), nil
}

// Search filters the caller's hisaabs by a title substring and an optional
// YYYY-MM-DD creation day.
func (s *HisaabService) Search(ctx context.Context, ownerID, query, date, sort string) ([]core.Hisaab, error) {
	if !storage.ValidSort(sort) {
		return nil, fmt.Errorf("%w: unknown sort %q", core.ErrValidation, sort)
	}
	f := storage.Filter{
		OwnerID:       ownerID,
		TitleContains: strings.TrimSpace(query),
		Sort:          sort,
	}
	if date = strings.TrimSpace(date); date != "" {
		day, err := time.Parse(DateLayout, date)
		if err != nil {
			return nil, fmt.Errorf("%w: date must be YYYY-MM-DD", core.ErrValidation)
		}
		f.CreatedOn = &day
	}
	hs, err := s.store.Find(ctx, f)
	if err != nil {
		return nil, err
	}
	return redactAll(hs), nil
}

func (s *HisaabService) Create(ctx context.Context, ownerID string, in CreateHisaabInput) (core.Hisaab, error) {
	h := core.Hisaab{
		Title:     strings.TrimSpace(in.Title),
		Label:     strings.TrimSpace(in.Label),
		Content:   in.Content,
		Encrypted: in.Encrypted,
		OwnerID:   ownerID,
		RoomID:    strings.TrimSpace(in.RoomID),
	}
	// Validate the plain fields first so a bad title never costs a hash.
	probe := h
	probe.Encrypted = false
	if err := probe.Validate(); err != nil {
		return core.Hisaab{}, err
	}
	if err := s.guard.Protect(&h, in.Password); err != nil {
		return core.Hisaab{}, err
	}
	if err := h.Validate(); err != nil {
		return core.Hisaab{}, err
	}

	saved, err := s.store.Save(ctx, h)
	if err != nil {
		return core.Hisaab{}, fmt.Errorf("save hisaab: %w", err)
	}

	s.log.LogHisaabChanged(ctx, log.OpCreate, saved.ID, ownerID, saved.Label, saved.Encrypted, len(saved.Content))
	s.changed(ctx, amqp.EventHisaabCreated, saved.ID, ownerID)
	return saved, nil
}

// Get returns any hisaab by id. Locked contents are removed; Unlock is the
// only way to read them.
func (s *HisaabService) Get(ctx context.Context, id string) (core.Hisaab, error) {
	h, err := s.store.FindByID(ctx, id)
	if err != nil {
		return core.Hisaab{}, err
	}
	return h.Redacted(), nil
}

// Update changes a hisaab owned by ownerID. Someone else's hisaab is
// reported as not found.
func (s *HisaabService) Update(ctx context.Context, ownerID, id string, in UpdateHisaabInput) (core.Hisaab, error) {
	current, err := s.store.FindByID(ctx, id)
	if err != nil {
		return core.Hisaab{}, err
	}
	if current.OwnerID != ownerID {
		return core.Hisaab{}, storage.ErrNotFound
	}

	patch := storage.Patch{
		OwnerID: ownerID,
		Content: in.Content,
	}
	if in.Title != nil {
		t := strings.TrimSpace(*in.Title)
		patch.Title = &t
	}
	if in.Label != nil {
		l := strings.TrimSpace(*in.Label)
		patch.Label = &l
	}
	if in.RoomID != nil {
		r := strings.TrimSpace(*in.RoomID)
		patch.RoomID = &r
	}

	next := patch.Apply(current)
	encrypted := current.Encrypted
	if in.Encrypted != nil {
		encrypted = *in.Encrypted
	}
	if err := s.guard.UpdateProtection(&next, encrypted, in.Password); err != nil {
		return core.Hisaab{}, err
	}
	if err := next.Validate(); err != nil {
		return core.Hisaab{}, err
	}
	patch.Encrypted = &next.Encrypted
	patch.SecretHash = &next.SecretHash

	updated, err := s.store.Update(ctx, id, patch)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return core.Hisaab{}, err
		}
		return core.Hisaab{}, fmt.Errorf("update hisaab: %w", err)
	}

	s.log.LogHisaabChanged(ctx, log.OpUpdate, id, ownerID, updated.Label, updated.Encrypted, len(updated.Content))
	s.changed(ctx, amqp.EventHisaabUpdated, id, ownerID)
	return updated.Redacted(), nil
}

func (s *HisaabService) Delete(ctx context.Context, ownerID, id string) error {
	if err := s.store.Delete(ctx, id, ownerID); err != nil {
		return err
	}
	s.log.LogHisaabChanged(ctx, log.OpDelete, id, ownerID, "", false, 0)
	s.changed(ctx, amqp.EventHisaabDeleted, id, ownerID)
	return nil
}

// Unlock returns the full hisaab when secret matches. A missing hisaab and
// a wrong secret both yield core.ErrAccessDenied. Ownership is not checked.
func (s *HisaabService) Unlock(ctx context.Context, userID, id, secret string) (core.Hisaab, error) {
	var target *core.Hisaab
	h, err := s.store.FindByID(ctx, id)
	switch {
	case err == nil:
		target = &h
	case !errors.Is(err, storage.ErrNotFound):
		return core.Hisaab{}, err
	}

	unlocked, err := s.guard.Verify(target, secret)
	if err != nil {
		s.log.LogAccessDenied(ctx, log.OpUnlock, id, userID)
		return core.Hisaab{}, err
	}
	return *unlocked, nil
}

func (s *HisaabService) changed(ctx context.Context, eventType, id, ownerID string) {
	if s.invalidator != nil {
		s.invalidator.Invalidate(ownerID)
	}
	s.publish(ctx, eventType, id, ownerID)
}
