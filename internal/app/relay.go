package app

import (
	"github.com/voxhall/voxhall/internal/core"
	"github.com/voxhall/voxhall/internal/domain"
	"github.com/voxhall/voxhall/internal/protocol"
)

// Reaction sets or clears one live reaction flag and fans the updated view
// out to the rest of the room.
func (o *Orchestrator) Reaction(connID domain.ConnectionID, p protocol.UserReaction) (core.ParticipantView, error) {
	if !p.Action.Valid() {
		return core.ParticipantView{}, ErrUnknownReaction
	}
	room := o.Rooms.GetOrCreate(p.Room)
	target := p.SocketID
	if target == "" {
		target = connID
	}
	view := room.Upsert(target, core.SetReaction{Reaction: p.Action, Active: p.ActionState})
	o.broadcast(room, connID, false, protocol.EvUserReaction, struct {
		core.ParticipantView
		Action      domain.Reaction `json:"action"`
		ActionState bool            `json:"actionState"`
	}{ParticipantView: view, Action: p.Action, ActionState: p.ActionState})
	return view, nil
}

// Chat relays a text message to the whole room, sender included, decorated
// with the sender's public view and textual-communication preference.
func (o *Orchestrator) Chat(connID domain.ConnectionID, p protocol.ChatMessage) (protocol.ChatMessage, error) {
	room, err := o.room(p.Room)
	if err != nil {
		return protocol.ChatMessage{}, err
	}
	if p.SocketID == "" {
		p.SocketID = connID
	}
	view, _ := room.View(p.SocketID)
	p.UsesTextualCommunication = view.UsesTextualCommunication
	o.broadcast(room, connID, true, protocol.EvChatMessage, struct {
		core.ParticipantView
		Payload protocol.ChatMessage `json:"payload"`
	}{ParticipantView: view, Payload: p})
	return p, nil
}

// ModifyRoomContext merges the given fields into the room context and
// broadcasts the result to everyone, sender included.
func (o *Orchestrator) ModifyRoomContext(connID domain.ConnectionID, p protocol.RoomContextModification) (core.Context, error) {
	room := o.Rooms.GetOrCreate(p.Room)
	ctx := room.MergeContext(core.ContextUpdate{
		IsSharing:              p.IsSharing,
		HasSpecialPresenter:    p.HasSpecialPresenter,
		SpecialPresenterConnID: p.SpecialPresenterSocketID,
		Flags:                  p.Flags,
	})
	o.broadcast(room, connID, true, protocol.EvRoomContextModified, ctx)
	return ctx, nil
}

// RequestAccessibility forwards an accessibility negotiation request to a
// connected admin.
func (o *Orchestrator) RequestAccessibility(connID domain.ConnectionID, p protocol.AccessibilityPreference) (core.ParticipantView, error) {
	room, err := o.room(p.Room)
	if err != nil {
		return core.ParticipantView{}, err
	}
	if p.SocketID == "" {
		p.SocketID = connID
	}
	admins := room.Admins()
	if len(admins) == 0 {
		return core.ParticipantView{}, ErrNoAdmin
	}
	view, _ := room.View(p.SocketID)
	o.sendTo(room, admins[0].SocketID, protocol.EvRequestAccessibility, struct {
		core.ParticipantView
		Payload protocol.AccessibilityPreference `json:"payload"`
	}{ParticipantView: view, Payload: p})
	return view, nil
}

// AcceptAccessibility applies the requested preferences to the requester's
// record, then relays the acceptance to them.
func (o *Orchestrator) AcceptAccessibility(connID domain.ConnectionID, p protocol.AccessibilityPreference) (core.ParticipantView, error) {
	room, err := o.room(p.Room)
	if err != nil {
		return core.ParticipantView{}, err
	}
	target := p.SocketID
	if target == "" {
		target = connID
	}
	room.Upsert(target, core.SetAccessibility{
		UsesTextualCommunication: p.Preferences.UsesTextualCommunication,
	})
	deciding, _ := room.View(connID)
	o.sendTo(room, target, protocol.EvAccessibilityAccepted, struct {
		core.ParticipantView
		Payload protocol.AccessibilityPreference `json:"payload"`
	}{ParticipantView: deciding, Payload: p})
	return deciding, nil
}

// RejectAccessibility relays a rejection without touching any state.
func (o *Orchestrator) RejectAccessibility(connID domain.ConnectionID, p protocol.AccessibilityPreference) (core.ParticipantView, error) {
	room, err := o.room(p.Room)
	if err != nil {
		return core.ParticipantView{}, err
	}
	target := p.SocketID
	if target == "" {
		target = connID
	}
	deciding, _ := room.View(connID)
	o.sendTo(room, target, protocol.EvAccessibilityRejected, struct {
		core.ParticipantView
		Payload protocol.AccessibilityPreference `json:"payload"`
	}{ParticipantView: deciding, Payload: p})
	return deciding, nil
}

// LeaveRoom relays a departure notice to one target connection.
func (o *Orchestrator) LeaveRoom(connID domain.ConnectionID, p protocol.LeaveRoom) error {
	room, err := o.room(p.Room)
	if err != nil {
		return err
	}
	o.sendTo(room, p.SocketID, protocol.EvLeaveRoom, struct {
		protocol.LeaveRoom
		From domain.ConnectionID `json:"from"`
	}{LeaveRoom: p, From: connID})
	return nil
}
