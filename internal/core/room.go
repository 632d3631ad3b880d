package core

import (
	"github.com/rs/zerolog/log"

	"github.com/voxhall/voxhall/internal/domain"
	"github.com/voxhall/voxhall/internal/media"
)

// Room is a single-goroutine actor owning everything mutable for one room:
// the router handle, the connection registry, the room context and the
// admission states. Every method funnels through the mailbox, so room context
// transitions, admission decisions and broadcasts are observed in the order
// they were applied.
type Room struct {
	id    domain.RoomID
	tasks chan func()
	stop  chan struct{}

	// Actor-owned state below; touched only from the run loop.
	router        media.Router
	conns         map[domain.ConnectionID]*ConnectionState
	ctx           Context
	shareProducer media.Producer
	admissions    map[domain.ConnectionID]AdmissionState
}

func newRoom(id domain.RoomID) *Room {
	r := &Room{
		id:         id,
		tasks:      make(chan func(), 64),
		stop:       make(chan struct{}),
		conns:      make(map[domain.ConnectionID]*ConnectionState),
		ctx:        Context{Room: id},
		admissions: make(map[domain.ConnectionID]AdmissionState),
	}
	go r.run()
	return r
}

func (r *Room) run() {
	for {
		select {
		case <-r.stop:
			return
		case fn := <-r.tasks:
			fn()
		}
	}
}

// do runs fn on the actor goroutine and waits for it. Callbacks passed in
// must not call back into the same Room.
func (r *Room) do(fn func()) {
	done := make(chan struct{})
	select {
	case r.tasks <- func() { fn(); close(done) }:
		<-done
	case <-r.stop:
	}
}

func (r *Room) ID() domain.RoomID { return r.id }

func (r *Room) Stop() { close(r.stop) }

// EnsureRouter returns the room's router, invoking create at most once for
// the room's lifetime. Concurrent first joins serialize here, so the second
// caller reuses the router the first one created.
func (r *Room) EnsureRouter(create func() (media.Router, error)) (media.Router, error) {
	var (
		router media.Router
		err    error
	)
	r.do(func() {
		if r.router != nil {
			router = r.router
			return
		}
		router, err = create()
		if err == nil {
			r.router = router
			log.Info().Str("module", "core.room").Str("room", string(r.id)).Str("router", router.ID()).Msg("router created")
		}
	})
	return router, err
}

func (r *Room) Router() media.Router {
	var router media.Router
	r.do(func() { router = r.router })
	return router
}

// Upsert merges the given updates into the connection record, creating it if
// absent, and returns the resulting public view.
func (r *Room) Upsert(id domain.ConnectionID, updates ...Update) ParticipantView {
	var view ParticipantView
	r.do(func() {
		cs, ok := r.conns[id]
		if !ok {
			cs = newConnectionState(r.id, id)
			r.conns[id] = cs
		}
		for _, u := range updates {
			u.apply(cs)
		}
		view = cs.View()
	})
	return view
}

// View returns the public view of a connection; absent connections yield a
// default record so late events never error on read.
func (r *Room) View(id domain.ConnectionID) (ParticipantView, bool) {
	var (
		view ParticipantView
		ok   bool
	)
	r.do(func() {
		if cs, found := r.conns[id]; found {
			view = cs.View()
			ok = true
			return
		}
		view = newConnectionState(r.id, id).View()
	})
	return view, ok
}

// WithConnection runs fn on the actor with the stored record, or with an
// unregistered default when absent. fn must not call back into the Room.
func (r *Room) WithConnection(id domain.ConnectionID, fn func(cs *ConnectionState) error) error {
	var err error
	r.do(func() {
		cs, ok := r.conns[id]
		if !ok {
			cs = newConnectionState(r.id, id)
		}
		err = fn(cs)
	})
	return err
}

// WithConnections runs fn on the actor with the full connection map, for
// operations that span participants (e.g. resuming the producer a consumer
// just became ready for). fn must not call back into the Room.
func (r *Room) WithConnections(fn func(conns map[domain.ConnectionID]*ConnectionState) error) error {
	var err error
	r.do(func() { err = fn(r.conns) })
	return err
}

func (r *Room) Remove(id domain.ConnectionID) (ParticipantView, bool) {
	var (
		view ParticipantView
		ok   bool
	)
	r.do(func() {
		cs, found := r.conns[id]
		if !found {
			return
		}
		view = cs.View()
		ok = true
		delete(r.conns, id)
		delete(r.admissions, id)
		log.Info().Str("module", "core.room").Str("room", string(r.id)).Str("conn", string(id)).Msg("connection removed")
	})
	return view, ok
}

func (r *Room) Participants() []ParticipantView {
	var out []ParticipantView
	r.do(func() {
		out = make([]ParticipantView, 0, len(r.conns))
		for _, cs := range r.conns {
			out = append(out, cs.View())
		}
	})
	return out
}

func (r *Room) Admins() []ParticipantView {
	var out []ParticipantView
	r.do(func() {
		for _, cs := range r.conns {
			if cs.IsAdmin {
				out = append(out, cs.View())
			}
		}
	})
	return out
}

func (r *Room) ParticipantCount() int {
	var n int
	r.do(func() { n = len(r.conns) })
	return n
}

func (r *Room) Context() Context {
	var ctx Context
	r.do(func() { ctx = r.ctx })
	return ctx
}

func (r *Room) MergeContext(u ContextUpdate) Context {
	var ctx Context
	r.do(func() {
		u.apply(&r.ctx)
		ctx = r.ctx
	})
	return ctx
}

// StartScreenShare installs p as the room's single screen-share producer.
// A previous share, if any, is closed before the new one becomes visible, so
// at most one share producer is ever active per room.
func (r *Room) StartScreenShare(id domain.ConnectionID, name string, p media.Producer) Context {
	var ctx Context
	r.do(func() {
		if r.shareProducer != nil {
			if err := r.shareProducer.Close(); err != nil {
				log.Error().Str("module", "core.room").Str("room", string(r.id)).Err(err).Msg("closing previous share producer")
			}
		}
		r.shareProducer = p
		r.ctx.IsSharing = true
		r.ctx.SharerConnID = id
		r.ctx.SharerName = name
		r.ctx.ScreenShareProducerID = p.ID()
		ctx = r.ctx
		log.Info().Str("module", "core.room").Str("room", string(r.id)).Str("conn", string(id)).Msg("screen share started")
	})
	return ctx
}

// StopScreenShare tears the share down only when requested by the recorded
// sharer; any other caller leaves the context unchanged. The returned Context
// is the snapshot from before the clear, so callers can announce who stopped.
func (r *Room) StopScreenShare(id domain.ConnectionID) (Context, bool) {
	var (
		prev Context
		ok   bool
	)
	r.do(func() {
		prev = r.ctx
		if r.ctx.SharerConnID != id {
			return
		}
		if r.shareProducer != nil {
			if err := r.shareProducer.Close(); err != nil {
				log.Error().Str("module", "core.room").Str("room", string(r.id)).Err(err).Msg("closing share producer")
			}
			r.shareProducer = nil
		}
		r.ctx.IsSharing = false
		r.ctx.SharerConnID = ""
		r.ctx.SharerName = ""
		r.ctx.ScreenShareProducerID = ""
		ok = true
		log.Info().Str("module", "core.room").Str("room", string(r.id)).Str("conn", string(id)).Msg("screen share stopped")
	})
	return prev, ok
}

// RequestAdmission records a pending join request. Re-requesting while
// pending is allowed; a decided request stays terminal.
func (r *Room) RequestAdmission(id domain.ConnectionID) bool {
	var ok bool
	r.do(func() {
		state, exists := r.admissions[id]
		if exists && state != AdmissionPending {
			return
		}
		r.admissions[id] = AdmissionPending
		ok = true
	})
	return ok
}

// DecideAdmission transitions a pending request to its terminal state.
// Returns false when there is no pending request or it was already decided.
func (r *Room) DecideAdmission(id domain.ConnectionID, accept bool) bool {
	var ok bool
	r.do(func() {
		state, exists := r.admissions[id]
		if !exists || state != AdmissionPending {
			return
		}
		if accept {
			r.admissions[id] = AdmissionAccepted
		} else {
			r.admissions[id] = AdmissionRejected
		}
		ok = true
	})
	return ok
}

// Broadcast fans a frame out to the room through the actor, preserving the
// order in which state changes were applied. Send failures are logged, never
// returned; delivery is best effort.
func (r *Room) Broadcast(from domain.ConnectionID, includeSender bool, f Frame) int {
	var sent int
	r.do(func() {
		for id, cs := range r.conns {
			if id == from && !includeSender {
				continue
			}
			if cs.Signal == nil {
				continue
			}
			if err := cs.Signal.TrySend(f); err != nil {
				log.Debug().Str("module", "core.room").Str("room", string(r.id)).Str("conn", string(id)).Err(err).Msg("broadcast drop")
				continue
			}
			sent++
		}
	})
	return sent
}

// SendTo delivers to one connection; unknown or signal-less targets are
// dropped silently (best-effort, e.g. an admission decision for a departed
// admin).
func (r *Room) SendTo(id domain.ConnectionID, f Frame) bool {
	var ok bool
	r.do(func() {
		cs, found := r.conns[id]
		if !found || cs.Signal == nil {
			return
		}
		if err := cs.Signal.TrySend(f); err != nil {
			log.Debug().Str("module", "core.room").Str("room", string(r.id)).Str("conn", string(id)).Err(err).Msg("send drop")
			return
		}
		ok = true
	})
	return ok
}
