package core

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/voxhall/voxhall/internal/domain"
)

// RoomInfo is a read-only room summary for the HTTP surface.
type RoomInfo struct {
	ID               domain.RoomID `json:"room"`
	ParticipantCount int           `json:"participantCount"`
}

// Registry maps room ids to their actors and keeps a connection→room index so
// the disconnect path can find a connection without scanning every room.
type Registry struct {
	mu    sync.RWMutex
	rooms map[domain.RoomID]*Room
	index map[domain.ConnectionID]domain.RoomID
}

func NewRegistry() *Registry {
	return &Registry{
		rooms: make(map[domain.RoomID]*Room),
		index: make(map[domain.ConnectionID]domain.RoomID),
	}
}

func (g *Registry) GetOrCreate(id domain.RoomID) *Room {
	g.mu.RLock()
	room, ok := g.rooms[id]
	g.mu.RUnlock()
	if ok {
		return room
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if room, ok = g.rooms[id]; ok {
		return room
	}
	room = newRoom(id)
	g.rooms[id] = room
	log.Info().Str("module", "core.registry").Str("room", string(id)).Msg("room created")
	return room
}

func (g *Registry) Get(id domain.RoomID) (*Room, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	room, ok := g.rooms[id]
	return room, ok
}

// Bind records which room a connection joined.
func (g *Registry) Bind(conn domain.ConnectionID, room domain.RoomID) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.index[conn] = room
}

func (g *Registry) Unbind(conn domain.ConnectionID) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.index, conn)
}

// RoomOf resolves the room a connection belongs to, if any.
func (g *Registry) RoomOf(conn domain.ConnectionID) (*Room, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	id, ok := g.index[conn]
	if !ok {
		return nil, false
	}
	room, ok := g.rooms[id]
	return room, ok
}

func (g *Registry) List() []RoomInfo {
	g.mu.RLock()
	rooms := make([]*Room, 0, len(g.rooms))
	for _, r := range g.rooms {
		rooms = append(rooms, r)
	}
	g.mu.RUnlock()

	out := make([]RoomInfo, 0, len(rooms))
	for _, r := range rooms {
		out = append(out, RoomInfo{ID: r.ID(), ParticipantCount: r.ParticipantCount()})
	}
	return out
}
