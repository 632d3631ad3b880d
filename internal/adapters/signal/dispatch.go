package signal

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"

	"github.com/voxhall/voxhall/internal/core"
	"github.com/voxhall/voxhall/internal/domain"
	"github.com/voxhall/voxhall/internal/protocol"
)

// dispatch maps one inbound envelope to its handler. Handler errors are
// converted to failure results here; they never tear the connection down.
func (ctl *Controller) dispatch(ctx context.Context, connID domain.ConnectionID, conn *Conn, data []byte) {
	var env protocol.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		log.Warn().Str("module", "adapters.signal").Str("conn", string(connID)).Err(err).Msg("bad envelope")
		ctl.reply(conn, protocol.Failure("", "malformed message"))
		return
	}

	switch env.Event {
	case protocol.EvJoinRoom:
		handle(ctl, conn, env, func(p protocol.JoinRoom) (any, error) {
			return ctl.orch.Join(ctx, connID, conn, p)
		})
	case protocol.EvRouterCapabilities:
		handle(ctl, conn, env, func(p protocol.RoomOnly) (any, error) {
			return ctl.orch.RouterCapabilities(p.Room)
		})
	case protocol.EvCreateTransport:
		handle(ctl, conn, env, func(p protocol.CreateTransport) (any, error) {
			return ctl.orch.CreateTransport(ctx, connID, p)
		})
	case protocol.EvConnectTransport:
		handle(ctl, conn, env, func(p protocol.ConnectTransport) (any, error) {
			return p, ctl.orch.ConnectTransport(ctx, connID, p)
		})
	case protocol.EvProduce:
		handle(ctl, conn, env, func(p protocol.Produce) (any, error) {
			return ctl.orch.Produce(ctx, connID, p)
		})
	case protocol.EvProduceData:
		handle(ctl, conn, env, func(p protocol.ProduceData) (any, error) {
			return ctl.orch.ProduceData(ctx, connID, p)
		})
	case protocol.EvConsume:
		handle(ctl, conn, env, func(p protocol.Consume) (any, error) {
			return ctl.orch.Consume(ctx, connID, p)
		})
	case protocol.EvConsumeData:
		handle(ctl, conn, env, func(p protocol.ConsumeData) (any, error) {
			return ctl.orch.ConsumeData(ctx, connID, p)
		})
	case protocol.EvConsumerReady:
		handle(ctl, conn, env, func(p protocol.ConsumerReady) (any, error) {
			return p, ctl.orch.ConsumerReady(connID, p)
		})
	case protocol.EvGetRoomProducers:
		handle(ctl, conn, env, func(p protocol.RoomOnly) (any, error) {
			return ctl.orch.RoomProducers(p.Room, connID)
		})
	case protocol.EvGetRoomAdmins:
		handle(ctl, conn, env, func(p protocol.RoomOnly) (any, error) {
			return ctl.orch.RoomAdmins(p.Room)
		})
	case protocol.EvGetRoomContext:
		handle(ctl, conn, env, func(p protocol.RoomOnly) (any, error) {
			return ctl.orch.RoomContext(p.Room)
		})
	case protocol.EvRequestToJoin:
		handle(ctl, conn, env, func(p protocol.AdmissionRequest) (any, error) {
			return true, ctl.orch.RequestToJoin(ctx, connID, p)
		})
	case protocol.EvJoinRequestAccepted:
		handle(ctl, conn, env, func(p protocol.AdmissionDecision) (any, error) {
			return p, ctl.orch.AcceptJoinRequest(connID, p)
		})
	case protocol.EvJoinRequestRejected:
		handle(ctl, conn, env, func(p protocol.AdmissionDecision) (any, error) {
			return p, ctl.orch.RejectJoinRequest(connID, p)
		})
	case protocol.EvGrantRole:
		handle(ctl, conn, env, func(p protocol.GrantRole) (any, error) {
			return ctl.orch.GrantRole(connID, p)
		})
	case protocol.EvToggleProducerState:
		handle(ctl, conn, env, func(p protocol.ToggleProducerState) (any, error) {
			return ctl.orch.ToggleProducerState(connID, p)
		})
	case protocol.EvUserReaction:
		handle(ctl, conn, env, func(p protocol.UserReaction) (any, error) {
			return ctl.orch.Reaction(connID, p)
		})
	case protocol.EvChatMessage:
		handle(ctl, conn, env, func(p protocol.ChatMessage) (any, error) {
			return ctl.orch.Chat(connID, p)
		})
	case protocol.EvRoomContextModified:
		handle(ctl, conn, env, func(p protocol.RoomContextModification) (any, error) {
			return ctl.orch.ModifyRoomContext(connID, p)
		})
	case protocol.EvRequestAccessibility:
		handle(ctl, conn, env, func(p protocol.AccessibilityPreference) (any, error) {
			return ctl.orch.RequestAccessibility(connID, p)
		})
	case protocol.EvAccessibilityAccepted:
		handle(ctl, conn, env, func(p protocol.AccessibilityPreference) (any, error) {
			return ctl.orch.AcceptAccessibility(connID, p)
		})
	case protocol.EvAccessibilityRejected:
		handle(ctl, conn, env, func(p protocol.AccessibilityPreference) (any, error) {
			return ctl.orch.RejectAccessibility(connID, p)
		})
	case protocol.EvScreenShareStopped:
		handle(ctl, conn, env, func(p protocol.CloseMedia) (any, error) {
			return p, ctl.orch.StopScreenShare(connID, p)
		})
	case protocol.EvProducerClosed:
		handle(ctl, conn, env, func(p protocol.CloseMedia) (any, error) {
			return p, ctl.orch.ProducerClosed(connID, p)
		})
	case protocol.EvLeaveRoom:
		handle(ctl, conn, env, func(p protocol.LeaveRoom) (any, error) {
			return p, ctl.orch.LeaveRoom(connID, p)
		})
	default:
		log.Warn().Str("module", "adapters.signal").Str("event", env.Event).Msg("unknown event")
		ctl.reply(conn, protocol.Failure(env.Event, "unknown event"))
	}
}

// handle decodes and validates the payload, invokes fn, and replies with a
// tagged success or failure result. Validation failures mutate no state.
func handle[T any](ctl *Controller, conn *Conn, env protocol.Envelope, fn func(p T) (any, error)) {
	p, err := decodePayload[T](ctl.validate, env.Data)
	if err != nil {
		ctl.reply(conn, protocol.Failure(env.Event, err.Error()))
		return
	}
	data, err := fn(p)
	if err != nil {
		ctl.reply(conn, protocol.Failure(env.Event, err.Error()))
		return
	}
	ctl.reply(conn, protocol.Success(env.Event, "ok", data))
}

func decodePayload[T any](v *validator.Validate, data json.RawMessage) (T, error) {
	var p T
	if len(data) > 0 {
		if err := json.Unmarshal(data, &p); err != nil {
			return p, fmt.Errorf("invalid payload: %w", err)
		}
	}
	if err := v.Struct(&p); err != nil {
		return p, fmt.Errorf("invalid payload: %w", err)
	}
	return p, nil
}

func (ctl *Controller) reply(conn *Conn, res protocol.Result) {
	b, err := json.Marshal(res)
	if err != nil {
		log.Error().Str("module", "adapters.signal").Err(err).Msg("marshal reply")
		return
	}
	if err := conn.TrySend(core.Frame(b)); err != nil {
		log.Debug().Str("module", "adapters.signal").Err(err).Msg("reply dropped")
	}
}
