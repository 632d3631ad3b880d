// Package roommeta is the boundary to the persisted room metadata store.
// The coordinator only ever reads the room owner, once, at join time.
package roommeta

import (
	"context"
	"errors"
	"sync"

	"github.com/voxhall/voxhall/internal/domain"
)

var ErrNotFound = errors.New("roommeta: room not found")

type Owner struct {
	ParticipantID domain.ParticipantID `json:"userId"`
}

type Room struct {
	ID    domain.RoomID `json:"room"`
	Owner *Owner        `json:"owner"`
}

type Service interface {
	// GetRoom returns the persisted metadata for a room, or ErrNotFound.
	GetRoom(ctx context.Context, id domain.RoomID) (*Room, error)
}

// Static serves metadata from memory; used in dev mode and tests.
type Static struct {
	mu    sync.RWMutex
	rooms map[domain.RoomID]*Room
}

func NewStatic() *Static {
	return &Static{rooms: make(map[domain.RoomID]*Room)}
}

func (s *Static) Put(room *Room) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rooms[room.ID] = room
}

func (s *Static) GetRoom(_ context.Context, id domain.RoomID) (*Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	room, ok := s.rooms[id]
	if !ok {
		return nil, ErrNotFound
	}
	return room, nil
}
