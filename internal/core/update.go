package core

import (
	"github.com/voxhall/voxhall/internal/domain"
	"github.com/voxhall/voxhall/internal/media"
)

// Update is one targeted change to a ConnectionState. Updates are applied as
// field-level merges: fields an intent does not name are left untouched, so
// two concurrent partial updates to the same record cannot clobber each other.
type Update interface {
	apply(*ConnectionState)
}

type SetProfile struct {
	Profile domain.Profile
}

func (u SetProfile) apply(cs *ConnectionState) { cs.Profile = u.Profile }

// SetRole flips role flags; nil means leave unchanged.
type SetRole struct {
	Owner *bool
	Admin *bool
}

func (u SetRole) apply(cs *ConnectionState) {
	if u.Owner != nil {
		cs.IsOwner = *u.Owner
	}
	if u.Admin != nil {
		cs.IsAdmin = *u.Admin
	}
}

type SetSignal struct {
	Conn SignalConnection
}

func (u SetSignal) apply(cs *ConnectionState) { cs.Signal = u.Conn }

type SetTransport struct {
	Producer  bool
	Transport media.Transport
}

func (u SetTransport) apply(cs *ConnectionState) {
	if u.Producer {
		cs.ProducerTransport = u.Transport
	} else {
		cs.ConsumerTransport = u.Transport
	}
}

// SetProducer installs a producer handle for audio or video.
type SetProducer struct {
	Kind     domain.MediaKind
	Producer media.Producer
	ID       string
}

func (u SetProducer) apply(cs *ConnectionState) {
	slot := Slot{Producer: u.Producer, ID: u.ID}
	switch u.Kind {
	case domain.MediaAudio:
		cs.Audio = slot
	case domain.MediaVideo:
		cs.Video = slot
	}
}

type SetDataProducer struct {
	Producer media.DataProducer
	ID       string
}

func (u SetDataProducer) apply(cs *ConnectionState) {
	cs.Data = DataSlot{Producer: u.Producer, ID: u.ID}
}

// ClearProducer marks the slot closed, keeping the last id for diagnostics.
type ClearProducer struct {
	Kind domain.MediaKind
}

func (u ClearProducer) apply(cs *ConnectionState) {
	switch u.Kind {
	case domain.MediaAudio:
		cs.Audio.Producer = nil
		cs.Audio.Closed = true
	case domain.MediaVideo:
		cs.Video.Producer = nil
		cs.Video.Closed = true
	case domain.MediaData:
		cs.Data.Producer = nil
		cs.Data.Closed = true
	}
}

// SetMediaOff sets the per-kind "turned off" flag.
type SetMediaOff struct {
	Kind domain.MediaKind
	Off  bool
}

func (u SetMediaOff) apply(cs *ConnectionState) {
	switch u.Kind {
	case domain.MediaAudio:
		cs.AudioOff = u.Off
	case domain.MediaVideo:
		cs.VideoOff = u.Off
	}
}

type SetReaction struct {
	Reaction domain.Reaction
	Active   bool
}

func (u SetReaction) apply(cs *ConnectionState) {
	if cs.Reactions == nil {
		cs.Reactions = make(map[domain.Reaction]bool)
	}
	if u.Active {
		cs.Reactions[u.Reaction] = true
	} else {
		delete(cs.Reactions, u.Reaction)
	}
}

type SetAccessibility struct {
	UsesTextualCommunication bool
}

func (u SetAccessibility) apply(cs *ConnectionState) {
	cs.UsesTextualCommunication = u.UsesTextualCommunication
}

type AddConsumer struct {
	Consumer media.Consumer
}

func (u AddConsumer) apply(cs *ConnectionState) {
	if cs.Consumers == nil {
		cs.Consumers = make(map[string]media.Consumer)
	}
	cs.Consumers[u.Consumer.ID()] = u.Consumer
}

type AddDataConsumer struct {
	Consumer media.DataConsumer
}

func (u AddDataConsumer) apply(cs *ConnectionState) {
	if cs.DataConsumers == nil {
		cs.DataConsumers = make(map[string]media.DataConsumer)
	}
	cs.DataConsumers[u.Consumer.ID()] = u.Consumer
}
