package core

import (
	"github.com/voxhall/voxhall/internal/domain"
	"github.com/voxhall/voxhall/internal/media"
)

// Slot tracks one producer handle per media kind. A zero Slot means the
// connection never produced that kind; Closed distinguishes teardown from
// never-produced for diagnostics.
type Slot struct {
	Producer media.Producer
	ID       string
	Closed   bool
}

func (s Slot) Active() bool { return s.Producer != nil && !s.Closed }

// DataSlot is the data-channel counterpart of Slot.
type DataSlot struct {
	Producer media.DataProducer
	ID       string
	Closed   bool
}

func (s DataSlot) Active() bool { return s.Producer != nil && !s.Closed }

// ConnectionState is the authoritative per-participant record. It is owned by
// the room actor; nothing outside the actor mutates it.
type ConnectionState struct {
	ConnID  domain.ConnectionID
	Room    domain.RoomID
	Profile domain.Profile

	IsOwner bool
	IsAdmin bool

	Audio Slot
	Video Slot
	Data  DataSlot

	AudioOff bool
	VideoOff bool

	Reactions                map[domain.Reaction]bool
	UsesTextualCommunication bool

	ProducerTransport media.Transport
	ConsumerTransport media.Transport

	Consumers     map[string]media.Consumer
	DataConsumers map[string]media.DataConsumer

	Signal SignalConnection
}

func newConnectionState(room domain.RoomID, id domain.ConnectionID) *ConnectionState {
	return &ConnectionState{
		ConnID:        id,
		Room:          room,
		Reactions:     make(map[domain.Reaction]bool),
		Consumers:     make(map[string]media.Consumer),
		DataConsumers: make(map[string]media.DataConsumer),
	}
}

// ParticipantView is the public projection of a ConnectionState, safe to
// broadcast (no handles, no transports).
type ParticipantView struct {
	SocketID                 domain.ConnectionID      `json:"socketId"`
	UserID                   domain.ParticipantID     `json:"userId"`
	UserName                 string                   `json:"userName,omitempty"`
	Avatar                   string                   `json:"avatar,omitempty"`
	Room                     domain.RoomID            `json:"room"`
	IsOwner                  bool                     `json:"isOwner"`
	IsAdmin                  bool                     `json:"isAdmin"`
	AudioProducerID          string                   `json:"audioProducerId,omitempty"`
	VideoProducerID          string                   `json:"videoProducerId,omitempty"`
	DataProducerID           string                   `json:"dataProducerId,omitempty"`
	IsAudioTurnedOff         bool                     `json:"isAudioTurnedOff"`
	IsVideoTurnedOff         bool                     `json:"isVideoTurnedOff"`
	Reactions                map[domain.Reaction]bool `json:"reactions,omitempty"`
	UsesTextualCommunication bool                     `json:"usesTextualCommunication"`
}

func (cs *ConnectionState) View() ParticipantView {
	v := ParticipantView{
		SocketID:                 cs.ConnID,
		UserID:                   cs.Profile.ParticipantID,
		UserName:                 cs.Profile.Name,
		Avatar:                   cs.Profile.Avatar,
		Room:                     cs.Room,
		IsOwner:                  cs.IsOwner,
		IsAdmin:                  cs.IsAdmin,
		IsAudioTurnedOff:         cs.AudioOff,
		IsVideoTurnedOff:         cs.VideoOff,
		UsesTextualCommunication: cs.UsesTextualCommunication,
	}
	if cs.Audio.Active() {
		v.AudioProducerID = cs.Audio.ID
	}
	if cs.Video.Active() {
		v.VideoProducerID = cs.Video.ID
	}
	if cs.Data.Active() {
		v.DataProducerID = cs.Data.ID
	}
	if len(cs.Reactions) > 0 {
		v.Reactions = make(map[domain.Reaction]bool, len(cs.Reactions))
		for k, val := range cs.Reactions {
			v.Reactions[k] = val
		}
	}
	return v
}
