package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"hisaab/internal/core"
	"hisaab/internal/guard"
	"hisaab/internal/log"
	"hisaab/internal/storage"
)

type RoomService struct {
	store storage.RoomStore
	guard *guard.Guard
	log   *log.StructuredLogger
}

func NewRoomService(store storage.RoomStore, g *guard.Guard, logger *log.Logger) *RoomService {
	if g == nil {
		g = guard.New(nil)
	}
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &RoomService{
		store: store,
		guard: g,
		log:   log.NewStructuredLogger(logger.WithComponent(log.ComponentRoom)),
	}
}

// List returns every room and the subset userID belongs to.
func (s *RoomService) List(ctx context.Context, userID string) (all, mine []core.Room, err error) {
	all, err = s.store.ListRooms(ctx)
	if err != nil {
		return nil, nil, err
	}
	mine = make([]core.Room, 0)
	for _, r := range all {
		if r.IsMember(userID) {
			mine = append(mine, r)
		}
	}
	return all, mine, nil
}

// Create makes a room with userID as its first member.
func (s *RoomService) Create(ctx context.Context, userID, name, description, password string) (core.Room, error) {
	r := core.Room{
		Name:        strings.TrimSpace(name),
		Description: strings.TrimSpace(description),
		Members:     []string{userID},
	}
	if strings.TrimSpace(r.Name) == "" {
		return core.Room{}, fmt.Errorf("%w: room name is required", core.ErrValidation)
	}
	if err := s.guard.ProtectRoom(&r, password); err != nil {
		return core.Room{}, err
	}
	if err := r.Validate(); err != nil {
		return core.Room{}, err
	}
	saved, err := s.store.SaveRoom(ctx, r)
	if err != nil {
		return core.Room{}, fmt.Errorf("save room: %w", err)
	}
	return saved, nil
}

// Join adds userID to the room when password matches. A missing room and a
// wrong password both yield core.ErrAccessDenied.
func (s *RoomService) Join(ctx context.Context, userID, roomID, password string) (core.Room, error) {
	var target *core.Room
	r, err := s.store.FindRoom(ctx, roomID)
	switch {
	case err == nil:
		target = &r
	case !errors.Is(err, storage.ErrNotFound):
		return core.Room{}, err
	}

	if _, err := s.guard.VerifyRoom(target, password); err != nil {
		s.log.LogAccessDenied(ctx, log.OpJoin, roomID, userID)
		return core.Room{}, err
	}
	return s.store.AddMember(ctx, roomID, userID)
}
