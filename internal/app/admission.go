package app

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/voxhall/voxhall/internal/core"
	"github.com/voxhall/voxhall/internal/domain"
	"github.com/voxhall/voxhall/internal/protocol"
	"github.com/voxhall/voxhall/internal/roommeta"
)

// RequestToJoin forwards a join request to the first connected admin. With no
// admin connection registered the persisted owner is consulted only to report
// a precise failure; the request is never auto-accepted.
func (o *Orchestrator) RequestToJoin(ctx context.Context, connID domain.ConnectionID, p protocol.AdmissionRequest) error {
	room := o.Rooms.GetOrCreate(p.Room)
	admins := room.Admins()
	if len(admins) == 0 {
		if meta, err := o.Meta.GetRoom(ctx, p.Room); err != nil && !errors.Is(err, roommeta.ErrNotFound) {
			log.Error().Str("module", "app.admission").Str("room", string(p.Room)).Err(err).Msg("owner lookup failed")
		} else if meta != nil && meta.Owner != nil {
			log.Info().Str("module", "app.admission").Str("room", string(p.Room)).Str("owner", string(meta.Owner.ParticipantID)).Msg("owner known but not connected")
		}
		return ErrNoAdmin
	}
	if !room.RequestAdmission(connID) {
		return ErrAlreadyDecided
	}
	o.sendTo(room, admins[0].SocketID, protocol.EvRequestToJoin, struct {
		protocol.AdmissionRequest
		SocketID domain.ConnectionID `json:"socketId"`
	}{AdmissionRequest: p, SocketID: connID})
	return nil
}

// AcceptJoinRequest relays an admin's accept verbatim to the requester. The
// decision is terminal; a second decision for the same request fails. Role
// flags are not touched here: elevation is the separate grant_role event.
func (o *Orchestrator) AcceptJoinRequest(connID domain.ConnectionID, p protocol.AdmissionDecision) error {
	return o.decideJoin(connID, p, true, protocol.EvJoinRequestAccepted)
}

// RejectJoinRequest relays an admin's reject verbatim to the requester.
func (o *Orchestrator) RejectJoinRequest(connID domain.ConnectionID, p protocol.AdmissionDecision) error {
	return o.decideJoin(connID, p, false, protocol.EvJoinRequestRejected)
}

func (o *Orchestrator) decideJoin(connID domain.ConnectionID, p protocol.AdmissionDecision, accept bool, event string) error {
	room, err := o.room(p.Room)
	if err != nil {
		return err
	}
	if !room.DecideAdmission(p.SocketID, accept) {
		return ErrNoPendingJoin
	}
	// Delivery is best effort: a requester that already left is dropped.
	o.sendTo(room, p.SocketID, event, p)
	log.Info().Str("module", "app.admission").Str("room", string(p.Room)).Str("requester", string(p.SocketID)).Str("admin", string(connID)).Bool("accepted", accept).Msg("join request decided")
	return nil
}

// GrantRole elevates (or demotes) a participant's admin flag. Only an admin
// may grant roles.
func (o *Orchestrator) GrantRole(connID domain.ConnectionID, p protocol.GrantRole) (core.ParticipantView, error) {
	room, err := o.room(p.Room)
	if err != nil {
		return core.ParticipantView{}, err
	}
	requester, ok := room.View(connID)
	if !ok || !requester.IsAdmin {
		return core.ParticipantView{}, ErrNotAdmin
	}
	view := room.Upsert(p.SocketID, core.SetRole{Admin: &p.Admin})
	o.sendTo(room, p.SocketID, protocol.EvGrantRole, view)
	return view, nil
}
