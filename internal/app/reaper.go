package app

import (
	"github.com/rs/zerolog/log"

	"github.com/voxhall/voxhall/internal/core"
	"github.com/voxhall/voxhall/internal/domain"
	"github.com/voxhall/voxhall/internal/protocol"
)

// OnDisconnect reaps a lost connection: producers and consumers are closed,
// room-scoped ownership (screen share, special presenter) is released, peers
// are notified, and the record is removed. Each step is guarded on its own so
// one failure never blocks the registry removal. Reaping an unknown id is a
// no-op, so a double disconnect is harmless.
func (o *Orchestrator) OnDisconnect(connID domain.ConnectionID) {
	room, ok := o.Rooms.RoomOf(connID)
	if !ok {
		log.Debug().Str("module", "app.reaper").Str("conn", string(connID)).Msg("disconnect for unknown connection, nothing to reap")
		return
	}
	logger := log.With().Str("module", "app.reaper").Str("room", string(room.ID())).Str("conn", string(connID)).Logger()

	if err := room.WithConnection(connID, func(cs *core.ConnectionState) error {
		if cs.Audio.Active() {
			if err := cs.Audio.Producer.Close(); err != nil {
				logger.Error().Err(err).Msg("closing audio producer")
			}
			cs.Audio.Producer = nil
			cs.Audio.Closed = true
		}
		if cs.Video.Active() {
			if err := cs.Video.Producer.Close(); err != nil {
				logger.Error().Err(err).Msg("closing video producer")
			}
			cs.Video.Producer = nil
			cs.Video.Closed = true
		}
		if cs.Data.Active() {
			if err := cs.Data.Producer.Close(); err != nil {
				logger.Error().Err(err).Msg("closing data producer")
			}
			cs.Data.Producer = nil
			cs.Data.Closed = true
		}
		for id, consumer := range cs.Consumers {
			if err := consumer.Close(); err != nil {
				logger.Error().Err(err).Str("consumer", id).Msg("closing consumer")
			}
		}
		for id, dc := range cs.DataConsumers {
			if err := dc.Close(); err != nil {
				logger.Error().Err(err).Str("dataConsumer", id).Msg("closing data consumer")
			}
		}
		if cs.ProducerTransport != nil {
			if err := cs.ProducerTransport.Close(); err != nil {
				logger.Error().Err(err).Msg("closing producer transport")
			}
		}
		if cs.ConsumerTransport != nil {
			if err := cs.ConsumerTransport.Close(); err != nil {
				logger.Error().Err(err).Msg("closing consumer transport")
			}
		}
		return nil
	}); err != nil {
		logger.Error().Err(err).Msg("producer cleanup failed")
	}

	if ctx := room.Context(); ctx.SharerConnID == connID {
		prev, ok := room.StopScreenShare(connID)
		if ok {
			o.broadcast(room, connID, false, protocol.EvScreenShareStopped, core.Context{
				Room:         room.ID(),
				SharerConnID: connID,
				SharerName:   prev.SharerName,
				IsSharing:    false,
			})
		}
	}

	if ctx := room.Context(); ctx.SpecialPresenterConnID == connID {
		off := false
		var nobody domain.ConnectionID
		updated := room.MergeContext(core.ContextUpdate{
			HasSpecialPresenter:    &off,
			SpecialPresenterConnID: &nobody,
		})
		o.broadcast(room, connID, false, protocol.EvRoomContextModified, updated)
	}

	view, removed := room.Remove(connID)
	if removed {
		o.broadcast(room, connID, false, protocol.EvProducerClosed, view)
		logger.Info().Msg("connection reaped")
	}
	o.Rooms.Unbind(connID)
}
