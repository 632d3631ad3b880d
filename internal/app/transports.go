package app

import (
	"context"

	"github.com/voxhall/voxhall/internal/core"
	"github.com/voxhall/voxhall/internal/domain"
	"github.com/voxhall/voxhall/internal/media"
	"github.com/voxhall/voxhall/internal/protocol"
)

// CreateTransport allocates a send or receive transport on the room's router
// and records it on the connection.
func (o *Orchestrator) CreateTransport(ctx context.Context, connID domain.ConnectionID, p protocol.CreateTransport) (media.TransportInfo, error) {
	router, err := o.router(p.Room)
	if err != nil {
		return media.TransportInfo{}, err
	}
	transport, err := router.CreateTransport(ctx)
	if err != nil {
		return media.TransportInfo{}, err
	}
	room, err := o.room(p.Room)
	if err != nil {
		return media.TransportInfo{}, err
	}
	room.Upsert(connID, core.SetTransport{Producer: p.IsProducer, Transport: transport})
	return transport.Info(), nil
}

// ConnectTransport completes the DTLS handshake on the matching transport.
func (o *Orchestrator) ConnectTransport(ctx context.Context, connID domain.ConnectionID, p protocol.ConnectTransport) error {
	room, err := o.room(p.Room)
	if err != nil {
		return err
	}
	var transport media.Transport
	if err := room.WithConnection(connID, func(cs *core.ConnectionState) error {
		if p.IsProducer {
			transport = cs.ProducerTransport
		} else {
			transport = cs.ConsumerTransport
		}
		if transport == nil {
			return ErrNoTransport
		}
		return nil
	}); err != nil {
		return err
	}
	return transport.Connect(ctx, p.DTLSParameters, p.ICEParameters)
}
