package app

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/voxhall/voxhall/internal/core"
	"github.com/voxhall/voxhall/internal/domain"
	"github.com/voxhall/voxhall/internal/media"
	"github.com/voxhall/voxhall/internal/protocol"
	"github.com/voxhall/voxhall/internal/roommeta"
)

var (
	ErrRoomNotFound    = errors.New("app: room not found")
	ErrNoRouter        = errors.New("app: no router for room")
	ErrNoTransport     = errors.New("app: no transport found")
	ErrNoAdmin         = errors.New("app: no admin is connected yet")
	ErrAlreadyDecided  = errors.New("app: join request already decided")
	ErrNoPendingJoin   = errors.New("app: no pending join request")
	ErrNotAdmin        = errors.New("app: requester is not an admin")
	ErrUnknownReaction = errors.New("app: unknown reaction")
)

// Orchestrator coordinates rooms, connections and the media engine. All
// signaling handlers land here; state lives in the room actors.
type Orchestrator struct {
	Worker media.Worker
	Rooms  *core.Registry
	Meta   roommeta.Service
}

func New(worker media.Worker, rooms *core.Registry, meta roommeta.Service) *Orchestrator {
	return &Orchestrator{Worker: worker, Rooms: rooms, Meta: meta}
}

// Join enters a room, lazily creating its router, and records the new
// participant. The owner flags are derived from the persisted room owner.
func (o *Orchestrator) Join(ctx context.Context, connID domain.ConnectionID, sig core.SignalConnection, p protocol.JoinRoom) (core.ParticipantView, error) {
	// A connection carries at most one room. Re-joining elsewhere reaps the
	// old record first, so the previous room never keeps a stale signal.
	if prev, ok := o.Rooms.RoomOf(connID); ok && prev.ID() != p.Room {
		log.Info().Str("module", "app.call").Str("conn", string(connID)).Str("from", string(prev.ID())).Str("to", string(p.Room)).Msg("rejoining into another room, reaping previous record")
		o.OnDisconnect(connID)
	}

	room := o.Rooms.GetOrCreate(p.Room)
	if _, err := room.EnsureRouter(func() (media.Router, error) {
		return o.Worker.CreateRouter(media.DefaultCodecs())
	}); err != nil {
		return core.ParticipantView{}, err
	}

	isOwner := false
	meta, err := o.Meta.GetRoom(ctx, p.Room)
	if err != nil && !errors.Is(err, roommeta.ErrNotFound) {
		log.Error().Str("module", "app.call").Str("room", string(p.Room)).Err(err).Msg("room metadata lookup failed")
	}
	if meta != nil && meta.Owner != nil {
		isOwner = meta.Owner.ParticipantID == p.UserID
	}

	view := room.Upsert(connID,
		core.SetProfile{Profile: domain.Profile{ParticipantID: p.UserID, Name: p.UserName, Avatar: p.Avatar}},
		core.SetRole{Owner: &isOwner, Admin: &isOwner},
		core.SetSignal{Conn: sig},
	)
	o.Rooms.Bind(connID, p.Room)
	log.Info().Str("module", "app.call").Str("room", string(p.Room)).Str("conn", string(connID)).Bool("owner", isOwner).Msg("joined room")
	return view, nil
}

func (o *Orchestrator) RouterCapabilities(roomID domain.RoomID) (media.RTPCapabilities, error) {
	router, err := o.router(roomID)
	if err != nil {
		return media.RTPCapabilities{}, err
	}
	return router.Capabilities(), nil
}

// RoomProducers snapshots every other participant currently producing,
// keyed by connection id.
func (o *Orchestrator) RoomProducers(roomID domain.RoomID, except domain.ConnectionID) (map[domain.ConnectionID]core.ParticipantView, error) {
	room, ok := o.Rooms.Get(roomID)
	if !ok {
		return nil, ErrRoomNotFound
	}
	out := make(map[domain.ConnectionID]core.ParticipantView)
	for _, v := range room.Participants() {
		if v.SocketID == except {
			continue
		}
		if v.AudioProducerID == "" && v.VideoProducerID == "" && v.DataProducerID == "" {
			continue
		}
		out[v.SocketID] = v
	}
	return out, nil
}

func (o *Orchestrator) RoomAdmins(roomID domain.RoomID) (map[domain.ConnectionID]core.ParticipantView, error) {
	room, ok := o.Rooms.Get(roomID)
	if !ok {
		return nil, ErrRoomNotFound
	}
	out := make(map[domain.ConnectionID]core.ParticipantView)
	for _, v := range room.Admins() {
		out[v.SocketID] = v
	}
	return out, nil
}

func (o *Orchestrator) RoomContext(roomID domain.RoomID) (core.Context, error) {
	room, ok := o.Rooms.Get(roomID)
	if !ok {
		return core.Context{}, ErrRoomNotFound
	}
	return room.Context(), nil
}

func (o *Orchestrator) room(roomID domain.RoomID) (*core.Room, error) {
	room, ok := o.Rooms.Get(roomID)
	if !ok {
		return nil, ErrRoomNotFound
	}
	return room, nil
}

func (o *Orchestrator) router(roomID domain.RoomID) (media.Router, error) {
	room, err := o.room(roomID)
	if err != nil {
		return nil, err
	}
	router := room.Router()
	if router == nil {
		return nil, ErrNoRouter
	}
	return router, nil
}

// broadcast marshals a push and fans it out through the room actor. Failures
// are logged only; broadcasts have no caller-visible error path.
func (o *Orchestrator) broadcast(room *core.Room, from domain.ConnectionID, includeSender bool, event string, data any) {
	f, err := (protocol.Push{Event: event, Data: data}).Marshal()
	if err != nil {
		log.Error().Str("module", "app.call").Str("event", event).Err(err).Msg("marshal broadcast")
		return
	}
	room.Broadcast(from, includeSender, core.Frame(f))
}

// sendTo delivers a push to one connection; stale targets are dropped.
func (o *Orchestrator) sendTo(room *core.Room, target domain.ConnectionID, event string, data any) bool {
	f, err := (protocol.Push{Event: event, Data: data}).Marshal()
	if err != nil {
		log.Error().Str("module", "app.call").Str("event", event).Err(err).Msg("marshal push")
		return false
	}
	ok := room.SendTo(target, core.Frame(f))
	if !ok {
		log.Debug().Str("module", "app.call").Str("event", event).Str("target", string(target)).Msg("push target gone, dropped")
	}
	return ok
}
