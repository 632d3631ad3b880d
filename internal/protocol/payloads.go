package protocol

import (
	"github.com/voxhall/voxhall/internal/domain"
	"github.com/voxhall/voxhall/internal/media"
)

type JoinRoom struct {
	Room     domain.RoomID        `json:"room" validate:"required"`
	UserID   domain.ParticipantID `json:"userId" validate:"required"`
	UserName string               `json:"userName"`
	Avatar   string               `json:"avatar"`
}

type RoomOnly struct {
	Room domain.RoomID `json:"room" validate:"required"`
}

type CreateTransport struct {
	Room       domain.RoomID `json:"room" validate:"required"`
	IsProducer bool          `json:"isProducer"`
}

type ConnectTransport struct {
	Room           domain.RoomID        `json:"room" validate:"required"`
	IsProducer     bool                 `json:"isProducer"`
	DTLSParameters media.DTLSParameters `json:"dtlsParameters" validate:"required"`
	ICEParameters  *media.ICEParameters `json:"iceParameters,omitempty"`
}

type Produce struct {
	Room             domain.RoomID       `json:"room" validate:"required"`
	Kind             string              `json:"kind" validate:"required,oneof=audio video"`
	RTPParameters    media.RTPParameters `json:"rtpParameters" validate:"required"`
	MediaKind        domain.MediaKind    `json:"mediaKind"`
	IsScreenShare    bool                `json:"isScreenShare"`
	IsAudioTurnedOff bool                `json:"isAudioTurnedOff"`
	IsVideoTurnedOff bool                `json:"isVideoTurnedOff"`
}

type ProduceData struct {
	Room     domain.RoomID `json:"room" validate:"required"`
	Label    string        `json:"label" validate:"required"`
	Protocol string        `json:"protocol"`
	StreamID uint16        `json:"streamId"`
}

type Consume struct {
	Room            domain.RoomID         `json:"room" validate:"required"`
	ProducerID      string                `json:"producerId" validate:"required"`
	RTPCapabilities media.RTPCapabilities `json:"rtpCapabilities" validate:"required"`
}

type ConsumeData struct {
	Room       domain.RoomID `json:"room" validate:"required"`
	ProducerID string        `json:"producerId" validate:"required"`
}

type ConsumerReady struct {
	Room       domain.RoomID       `json:"room" validate:"required"`
	ProducerID string              `json:"producerId" validate:"required"`
	ConsumerID string              `json:"consumerId"`
	SocketID   domain.ConnectionID `json:"socketId"`
}

const (
	ActionMute         = "mute"
	ActionUnmute       = "unMute"
	ActionTurnOffVideo = "turnOffVideo"
	ActionTurnOnVideo  = "turnOnVideo"
)

type ToggleProducerState struct {
	Room     domain.RoomID       `json:"room" validate:"required"`
	Action   string              `json:"action" validate:"required,oneof=mute unMute turnOffVideo turnOnVideo"`
	SocketID domain.ConnectionID `json:"socketId"`
}

type UserReaction struct {
	Room        domain.RoomID       `json:"room" validate:"required"`
	Action      domain.Reaction     `json:"action" validate:"required"`
	ActionState bool                `json:"actionState"`
	SocketID    domain.ConnectionID `json:"socketId"`
}

type ChatMessage struct {
	Room     domain.RoomID       `json:"room" validate:"required"`
	Message  string              `json:"message" validate:"required"`
	SocketID domain.ConnectionID `json:"socketId"`

	// Filled in by the coordinator before fan-out.
	UsesTextualCommunication bool `json:"usesTextualCommunication,omitempty"`
}

type RoomContextModification struct {
	Room                     domain.RoomID        `json:"room" validate:"required"`
	IsSharing                *bool                `json:"isSharing,omitempty"`
	HasSpecialPresenter      *bool                `json:"hasSpecialPresenter,omitempty"`
	SpecialPresenterSocketID *domain.ConnectionID `json:"specialPresenterSocketId,omitempty"`
	Flags                    map[string]bool      `json:"flags,omitempty"`
}

type AccessibilityPreferences struct {
	UsesTextualCommunication bool `json:"usesTextualCommunication"`
}

type AccessibilityPreference struct {
	Room        domain.RoomID            `json:"room" validate:"required"`
	SocketID    domain.ConnectionID      `json:"socketId"`
	Preferences AccessibilityPreferences `json:"accessibilityPreferences"`
}

type AdmissionRequest struct {
	Room     domain.RoomID        `json:"room" validate:"required"`
	UserID   domain.ParticipantID `json:"userId"`
	UserName string               `json:"userName"`
}

type AdmissionDecision struct {
	Room     domain.RoomID       `json:"room" validate:"required"`
	SocketID domain.ConnectionID `json:"socketId" validate:"required"`
}

type GrantRole struct {
	Room     domain.RoomID       `json:"room" validate:"required"`
	SocketID domain.ConnectionID `json:"socketId" validate:"required"`
	Admin    bool                `json:"admin"`
}

type CloseMedia struct {
	Room      domain.RoomID       `json:"room" validate:"required"`
	SocketID  domain.ConnectionID `json:"socketId"`
	MediaKind domain.MediaKind    `json:"mediaKind"`
}

type LeaveRoom struct {
	Room     domain.RoomID       `json:"room" validate:"required"`
	SocketID domain.ConnectionID `json:"socketId" validate:"required"`
}

// Responses.

type ProducerCreated struct {
	ID string `json:"id"`
}

type ConsumerCreated struct {
	ID            string              `json:"id"`
	ProducerID    string              `json:"producerId"`
	Kind          string              `json:"kind"`
	RTPParameters media.RTPParameters `json:"rtpParameters"`
}

type DataConsumerCreated struct {
	ID             string `json:"id"`
	DataProducerID string `json:"dataProducerId"`
	Label          string `json:"label"`
}
