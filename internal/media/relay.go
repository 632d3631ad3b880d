package media

import (
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
)

type trackState int32

const (
	trackStatePaused trackState = iota
	trackStateActive
	trackStateDelete
)

// pionProducer owns the inbound RTP receiver and fans packets out to each
// consumer's local track. The relay loop drains the source even while paused
// so jitter buffers on the sending side do not back up.
type pionProducer struct {
	id     string
	kind   string
	params RTPParameters
	router *pionRouter

	receiver *webrtc.RTPReceiver
	track    *webrtc.TrackRemote

	paused atomic.Bool
	closed atomic.Bool

	mu        sync.RWMutex
	consumers map[string]*pionConsumer
}

func newPionProducer(router *pionRouter, kind string, params RTPParameters, receiver *webrtc.RTPReceiver) *pionProducer {
	p := &pionProducer{
		id:        uuid.NewString(),
		kind:      kind,
		params:    params,
		router:    router,
		receiver:  receiver,
		track:     receiver.Track(),
		consumers: make(map[string]*pionConsumer),
	}
	p.paused.Store(true)
	return p
}

func (p *pionProducer) ID() string   { return p.id }
func (p *pionProducer) Kind() string { return p.kind }
func (p *pionProducer) Paused() bool { return p.paused.Load() }

func (p *pionProducer) Pause() error {
	if p.closed.Load() {
		return ErrProducerClosed
	}
	p.paused.Store(true)
	return nil
}

func (p *pionProducer) Resume() error {
	if p.closed.Load() {
		return ErrProducerClosed
	}
	p.paused.Store(false)
	return nil
}

func (p *pionProducer) Close() error {
	if !p.closed.CompareAndSwap(false, true) {
		return nil
	}
	p.router.unregisterProducer(p.id)
	p.mu.Lock()
	for _, c := range p.consumers {
		c.state.Store(int32(trackStateDelete))
	}
	p.consumers = make(map[string]*pionConsumer)
	p.mu.Unlock()
	return p.receiver.Stop()
}

func (p *pionProducer) relayLoop() {
	for {
		pkt, _, err := p.track.ReadRTP()
		if err != nil {
			if !p.closed.Load() {
				log.Debug().Str("module", "media.relay").Str("producer", p.id).Err(err).Msg("read rtp, stopping relay")
			}
			return
		}
		if p.paused.Load() {
			continue
		}
		p.forward(pkt)
	}
}

func (p *pionProducer) forward(pkt *rtp.Packet) {
	p.mu.RLock()
	snapshot := make([]*pionConsumer, 0, len(p.consumers))
	for _, c := range p.consumers {
		snapshot = append(snapshot, c)
	}
	p.mu.RUnlock()

	var dirty []string
	for _, c := range snapshot {
		switch trackState(c.state.Load()) {
		case trackStateDelete:
			dirty = append(dirty, c.id)
		case trackStatePaused:
		case trackStateActive:
			if err := c.local.WriteRTP(pkt); err != nil {
				c.state.Store(int32(trackStateDelete))
				dirty = append(dirty, c.id)
			}
		}
	}
	if len(dirty) > 0 {
		p.mu.Lock()
		for _, id := range dirty {
			delete(p.consumers, id)
		}
		p.mu.Unlock()
	}
}

func (p *pionProducer) addConsumer(t *pionTransport) (*pionConsumer, error) {
	if p.closed.Load() {
		return nil, ErrProducerClosed
	}
	local, err := webrtc.NewTrackLocalStaticRTP(webrtc.RTPCodecCapability{
		MimeType:  p.params.MimeType,
		ClockRate: p.params.ClockRate,
		Channels:  p.params.Channels,
	}, uuid.NewString(), p.id)
	if err != nil {
		return nil, err
	}
	sender, err := p.router.api.NewRTPSender(local, t.dtls)
	if err != nil {
		return nil, err
	}
	if err := sender.Send(sender.GetParameters()); err != nil {
		return nil, err
	}

	c := &pionConsumer{
		id:       uuid.NewString(),
		producer: p,
		local:    local,
		sender:   sender,
	}
	p.mu.Lock()
	p.consumers[c.id] = c
	p.mu.Unlock()
	return c, nil
}

// pionConsumer is one subscriber leg: a local static track plus the RTP
// sender on the subscriber's transport. Created paused.
type pionConsumer struct {
	id       string
	producer *pionProducer
	local    *webrtc.TrackLocalStaticRTP
	sender   *webrtc.RTPSender
	state    atomic.Int32 // trackStatePaused by default
}

func (c *pionConsumer) ID() string         { return c.id }
func (c *pionConsumer) ProducerID() string { return c.producer.id }
func (c *pionConsumer) Kind() string       { return c.producer.kind }

func (c *pionConsumer) RTPParameters() RTPParameters {
	return c.producer.params
}

func (c *pionConsumer) Resume() error {
	c.state.Store(int32(trackStateActive))
	return nil
}

func (c *pionConsumer) Close() error {
	c.state.Store(int32(trackStateDelete))
	return c.sender.Stop()
}

// pionDataProducer relays data-channel messages from the producing client to
// every data consumer subscribed to it.
type pionDataProducer struct {
	id    string
	label string

	mu      sync.RWMutex
	channel *webrtc.DataChannel
	subs    map[string]*pionDataConsumer
}

func (dp *pionDataProducer) ID() string    { return dp.id }
func (dp *pionDataProducer) Label() string { return dp.label }

func (dp *pionDataProducer) attach(dc *webrtc.DataChannel) {
	dp.mu.Lock()
	dp.channel = dc
	dp.mu.Unlock()

	dc.OnMessage(func(msg webrtc.DataChannelMessage) {
		dp.mu.RLock()
		defer dp.mu.RUnlock()
		for _, sub := range dp.subs {
			if msg.IsString {
				_ = sub.channel.SendText(string(msg.Data))
			} else {
				_ = sub.channel.Send(msg.Data)
			}
		}
	})
}

func (dp *pionDataProducer) addSubscriber(sub *pionDataConsumer) {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	if dp.subs == nil {
		dp.subs = make(map[string]*pionDataConsumer)
	}
	dp.subs[sub.id] = sub
}

func (dp *pionDataProducer) removeSubscriber(id string) {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	delete(dp.subs, id)
}

func (dp *pionDataProducer) Close() error {
	dp.mu.Lock()
	ch := dp.channel
	dp.channel = nil
	dp.subs = nil
	dp.mu.Unlock()
	if ch != nil {
		return ch.Close()
	}
	return nil
}

type pionDataConsumer struct {
	id       string
	producer *pionDataProducer
	channel  *webrtc.DataChannel
}

func (dc *pionDataConsumer) ID() string             { return dc.id }
func (dc *pionDataConsumer) DataProducerID() string { return dc.producer.id }
func (dc *pionDataConsumer) Label() string          { return dc.producer.label }

func (dc *pionDataConsumer) Close() error {
	dc.producer.removeSubscriber(dc.id)
	return dc.channel.Close()
}
