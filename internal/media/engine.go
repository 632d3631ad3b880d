package media

import (
	"context"
	"errors"
)

var (
	ErrProducerNotFound = errors.New("media: producer not found")
	ErrCannotConsume    = errors.New("media: cannot consume producer with given capabilities")
	ErrTransportClosed  = errors.New("media: transport closed")
	ErrProducerClosed   = errors.New("media: producer closed")
)

// Worker is the process-wide media engine handle. Its death is fatal to the
// coordinator; callers register OnDied and terminate.
type Worker interface {
	CreateRouter(codecs []CodecCapability) (Router, error)
	OnDied(fn func(err error))
	Close()
}

// Router scopes producers and consumers to one room.
type Router interface {
	ID() string
	Capabilities() RTPCapabilities
	CreateTransport(ctx context.Context) (Transport, error)
	// CanConsume reports whether the given producer can be received with the
	// subscriber's capabilities.
	CanConsume(producerID string, caps RTPCapabilities) bool
}

// Transport is one negotiated ICE/DTLS channel belonging to a single
// connection, used either for producing or consuming.
type Transport interface {
	ID() string
	Info() TransportInfo
	// Connect completes the handshake. Remote ICE parameters are optional;
	// ORTC-style clients send them alongside the DTLS parameters.
	Connect(ctx context.Context, dtls DTLSParameters, ice *ICEParameters) error
	// Produce registers an inbound stream. Producers start paused.
	Produce(ctx context.Context, kind string, params RTPParameters) (Producer, error)
	ProduceData(ctx context.Context, opts DataProducerOptions) (DataProducer, error)
	// Consume subscribes to a producer on this router. Consumers start paused.
	Consume(ctx context.Context, producerID string, caps RTPCapabilities) (Consumer, error)
	ConsumeData(ctx context.Context, dataProducerID string) (DataConsumer, error)
	Close() error
}

type Producer interface {
	ID() string
	Kind() string
	Paused() bool
	Pause() error
	Resume() error
	Close() error
}

type Consumer interface {
	ID() string
	ProducerID() string
	Kind() string
	RTPParameters() RTPParameters
	Resume() error
	Close() error
}

type DataProducer interface {
	ID() string
	Label() string
	Close() error
}

type DataConsumer interface {
	ID() string
	DataProducerID() string
	Label() string
	Close() error
}

// DefaultCodecs is the fixed capability set routers are created with.
func DefaultCodecs() []CodecCapability {
	return []CodecCapability{
		{MimeType: "audio/opus", ClockRate: 48000, Channels: 2},
		{MimeType: "video/VP8", ClockRate: 90000, RTCPFeedback: []string{"nack", "nack pli", "ccm fir"}},
	}
}
