package app

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/voxhall/voxhall/internal/core"
	"github.com/voxhall/voxhall/internal/domain"
	"github.com/voxhall/voxhall/internal/media"
	"github.com/voxhall/voxhall/internal/protocol"
)

// Produce starts sending media. Producers are created paused and resumed only
// once a peer signals consumer_ready, so nothing is forwarded before the
// receiving side is wired up.
func (o *Orchestrator) Produce(ctx context.Context, connID domain.ConnectionID, p protocol.Produce) (protocol.ProducerCreated, error) {
	room, err := o.room(p.Room)
	if err != nil {
		return protocol.ProducerCreated{}, err
	}

	var transport media.Transport
	if err := room.WithConnection(connID, func(cs *core.ConnectionState) error {
		transport = cs.ProducerTransport
		if transport == nil {
			return ErrNoTransport
		}
		return nil
	}); err != nil {
		return protocol.ProducerCreated{}, err
	}

	producer, err := transport.Produce(ctx, p.Kind, p.RTPParameters)
	if err != nil {
		return protocol.ProducerCreated{}, err
	}

	if p.IsScreenShare {
		view, _ := room.View(connID)
		roomCtx := room.StartScreenShare(connID, view.UserName, producer)
		o.broadcast(room, connID, false, protocol.EvScreenSharing, roomCtx)
		return protocol.ProducerCreated{ID: producer.ID()}, nil
	}

	switch p.MediaKind {
	case domain.MediaAudio:
		view := room.Upsert(connID,
			core.SetProducer{Kind: domain.MediaAudio, Producer: producer, ID: producer.ID()},
			core.SetMediaOff{Kind: domain.MediaAudio, Off: p.IsAudioTurnedOff},
		)
		o.broadcast(room, connID, false, protocol.EvProducerProducing, view)
	case domain.MediaVideo:
		view := room.Upsert(connID,
			core.SetProducer{Kind: domain.MediaVideo, Producer: producer, ID: producer.ID()},
			core.SetMediaOff{Kind: domain.MediaVideo, Off: p.IsVideoTurnedOff},
		)
		o.broadcast(room, connID, false, protocol.EvProducerProducing, view)
	default:
		log.Warn().Str("module", "app.call").Str("mediaKind", string(p.MediaKind)).Msg("produce with unrecognized media kind")
	}
	return protocol.ProducerCreated{ID: producer.ID()}, nil
}

// ProduceData registers a data-channel producer on the connection.
func (o *Orchestrator) ProduceData(ctx context.Context, connID domain.ConnectionID, p protocol.ProduceData) (protocol.ProducerCreated, error) {
	room, err := o.room(p.Room)
	if err != nil {
		return protocol.ProducerCreated{}, err
	}
	var transport media.Transport
	if err := room.WithConnection(connID, func(cs *core.ConnectionState) error {
		transport = cs.ProducerTransport
		if transport == nil {
			return ErrNoTransport
		}
		return nil
	}); err != nil {
		return protocol.ProducerCreated{}, err
	}

	dp, err := transport.ProduceData(ctx, media.DataProducerOptions{
		Label:    p.Label,
		Protocol: p.Protocol,
		StreamID: p.StreamID,
	})
	if err != nil {
		return protocol.ProducerCreated{}, err
	}
	view := room.Upsert(connID, core.SetDataProducer{Producer: dp, ID: dp.ID()})
	o.broadcast(room, connID, false, protocol.EvProducingData, view)
	return protocol.ProducerCreated{ID: dp.ID()}, nil
}

// Consume subscribes the caller to a peer's producer.
func (o *Orchestrator) Consume(ctx context.Context, connID domain.ConnectionID, p protocol.Consume) (protocol.ConsumerCreated, error) {
	router, err := o.router(p.Room)
	if err != nil {
		return protocol.ConsumerCreated{}, err
	}
	if !router.CanConsume(p.ProducerID, p.RTPCapabilities) {
		return protocol.ConsumerCreated{}, media.ErrCannotConsume
	}
	room, err := o.room(p.Room)
	if err != nil {
		return protocol.ConsumerCreated{}, err
	}
	var transport media.Transport
	if err := room.WithConnection(connID, func(cs *core.ConnectionState) error {
		transport = cs.ConsumerTransport
		if transport == nil {
			return ErrNoTransport
		}
		return nil
	}); err != nil {
		return protocol.ConsumerCreated{}, err
	}

	consumer, err := transport.Consume(ctx, p.ProducerID, p.RTPCapabilities)
	if err != nil {
		return protocol.ConsumerCreated{}, err
	}
	room.Upsert(connID, core.AddConsumer{Consumer: consumer})
	return protocol.ConsumerCreated{
		ID:            consumer.ID(),
		ProducerID:    p.ProducerID,
		Kind:          consumer.Kind(),
		RTPParameters: consumer.RTPParameters(),
	}, nil
}

func (o *Orchestrator) ConsumeData(ctx context.Context, connID domain.ConnectionID, p protocol.ConsumeData) (protocol.DataConsumerCreated, error) {
	room, err := o.room(p.Room)
	if err != nil {
		return protocol.DataConsumerCreated{}, err
	}
	var transport media.Transport
	if err := room.WithConnection(connID, func(cs *core.ConnectionState) error {
		transport = cs.ConsumerTransport
		if transport == nil {
			return ErrNoTransport
		}
		return nil
	}); err != nil {
		return protocol.DataConsumerCreated{}, err
	}

	dc, err := transport.ConsumeData(ctx, p.ProducerID)
	if err != nil {
		return protocol.DataConsumerCreated{}, err
	}
	room.Upsert(connID, core.AddDataConsumer{Consumer: dc})
	return protocol.DataConsumerCreated{
		ID:             dc.ID(),
		DataProducerID: dc.DataProducerID(),
		Label:          dc.Label(),
	}, nil
}

// ConsumerReady resumes the producing side once a consumer is wired up, gated
// on the producer owner's own off-flags: media the owner muted stays paused.
// It also resumes the caller's consumer.
func (o *Orchestrator) ConsumerReady(connID domain.ConnectionID, p protocol.ConsumerReady) error {
	room, err := o.room(p.Room)
	if err != nil {
		return err
	}
	target := p.SocketID
	if target == "" {
		target = connID
	}
	return room.WithConnections(func(conns map[domain.ConnectionID]*core.ConnectionState) error {
		for _, cs := range conns {
			if cs.Audio.ID != p.ProducerID && cs.Video.ID != p.ProducerID {
				continue
			}
			if cs.Audio.Active() && !cs.AudioOff && cs.Audio.Producer.Paused() {
				if err := cs.Audio.Producer.Resume(); err != nil {
					return err
				}
			}
			if cs.Video.Active() && !cs.VideoOff && cs.Video.Producer.Paused() {
				if err := cs.Video.Producer.Resume(); err != nil {
					return err
				}
			}
			break
		}
		if consuming, ok := conns[target]; ok {
			if consumer, ok := consuming.Consumers[p.ConsumerID]; ok {
				return consumer.Resume()
			}
		}
		return nil
	})
}

// ToggleProducerState pauses/resumes a producer in place; the handle is kept
// so re-enabling needs no renegotiation.
func (o *Orchestrator) ToggleProducerState(connID domain.ConnectionID, p protocol.ToggleProducerState) (core.ParticipantView, error) {
	room, err := o.room(p.Room)
	if err != nil {
		return core.ParticipantView{}, err
	}
	target := p.SocketID
	if target == "" {
		target = connID
	}
	var view core.ParticipantView
	if err := room.WithConnection(target, func(cs *core.ConnectionState) error {
		switch p.Action {
		case protocol.ActionMute:
			if cs.Audio.Active() {
				if err := cs.Audio.Producer.Pause(); err != nil {
					return err
				}
			}
			cs.AudioOff = true
		case protocol.ActionUnmute:
			if cs.Audio.Active() {
				if err := cs.Audio.Producer.Resume(); err != nil {
					return err
				}
			}
			cs.AudioOff = false
		case protocol.ActionTurnOffVideo:
			if cs.Video.Active() {
				if err := cs.Video.Producer.Pause(); err != nil {
					return err
				}
			}
			cs.VideoOff = true
		case protocol.ActionTurnOnVideo:
			if cs.Video.Active() {
				if err := cs.Video.Producer.Resume(); err != nil {
					return err
				}
			}
			cs.VideoOff = false
		}
		view = cs.View()
		return nil
	}); err != nil {
		return core.ParticipantView{}, err
	}
	o.broadcast(room, connID, false, protocol.EvToggleProducerState, view)
	return view, nil
}

// ProducerClosed tears down one producer explicitly and announces it so peers
// drop their consumers.
func (o *Orchestrator) ProducerClosed(connID domain.ConnectionID, p protocol.CloseMedia) error {
	room, err := o.room(p.Room)
	if err != nil {
		return err
	}
	target := p.SocketID
	if target == "" {
		target = connID
	}
	var view core.ParticipantView
	if err := room.WithConnection(target, func(cs *core.ConnectionState) error {
		switch p.MediaKind {
		case domain.MediaAudio:
			if cs.Audio.Active() {
				if err := cs.Audio.Producer.Close(); err != nil {
					log.Error().Str("module", "app.call").Err(err).Msg("closing audio producer")
				}
			}
			cs.Audio.Producer = nil
			cs.Audio.Closed = true
			cs.AudioOff = false
		case domain.MediaVideo:
			if cs.Video.Active() {
				if err := cs.Video.Producer.Close(); err != nil {
					log.Error().Str("module", "app.call").Err(err).Msg("closing video producer")
				}
			}
			cs.Video.Producer = nil
			cs.Video.Closed = true
			cs.VideoOff = false
		case domain.MediaData:
			if cs.Data.Active() {
				if err := cs.Data.Producer.Close(); err != nil {
					log.Error().Str("module", "app.call").Err(err).Msg("closing data producer")
				}
			}
			cs.Data.Producer = nil
			cs.Data.Closed = true
		default:
			log.Warn().Str("module", "app.call").Str("mediaKind", string(p.MediaKind)).Msg("producer close with unrecognized media kind")
		}
		view = cs.View()
		return nil
	}); err != nil {
		return err
	}
	o.broadcast(room, connID, false, protocol.EvProducerClosed, view)
	return nil
}

// StopScreenShare honors a stop only from the recorded sharer; anyone else's
// request leaves the room context untouched.
func (o *Orchestrator) StopScreenShare(connID domain.ConnectionID, p protocol.CloseMedia) error {
	room, err := o.room(p.Room)
	if err != nil {
		return err
	}
	target := p.SocketID
	if target == "" {
		target = connID
	}
	prev, ok := room.StopScreenShare(target)
	if !ok {
		log.Debug().Str("module", "app.call").Str("room", string(p.Room)).Str("conn", string(target)).Msg("screen share stop ignored: not the sharer")
		return nil
	}
	o.broadcast(room, connID, false, protocol.EvScreenShareStopped, core.Context{
		Room:         p.Room,
		SharerConnID: target,
		SharerName:   prev.SharerName,
		IsSharing:    false,
	})
	return nil
}
