// Package mediatest provides an in-memory media engine for tests.
package mediatest

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/voxhall/voxhall/internal/media"
)

type Worker struct {
	mu      sync.Mutex
	onDied  func(error)
	Routers []*Router
}

func NewWorker() *Worker { return &Worker{} }

func (w *Worker) CreateRouter(codecs []media.CodecCapability) (media.Router, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	r := &Router{
		id:        fmt.Sprintf("router-%d", len(w.Routers)+1),
		codecs:    codecs,
		producers: make(map[string]*Producer),
		dataProds: make(map[string]*DataProducer),
	}
	w.Routers = append(w.Routers, r)
	return r, nil
}

func (w *Worker) OnDied(fn func(error)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onDied = fn
}

// Die triggers the registered died hook, simulating engine loss.
func (w *Worker) Die(err error) {
	w.mu.Lock()
	fn := w.onDied
	w.mu.Unlock()
	if fn != nil {
		fn(err)
	}
}

func (w *Worker) Close() {}

// RouterCount reports how many routers were ever created.
func (w *Worker) RouterCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.Routers)
}

type Router struct {
	id     string
	codecs []media.CodecCapability

	mu         sync.Mutex
	seq        int
	producers  map[string]*Producer
	dataProds  map[string]*DataProducer
	Transports []*Transport
}

func (r *Router) ID() string { return r.id }

func (r *Router) Capabilities() media.RTPCapabilities {
	return media.RTPCapabilities{Codecs: r.codecs}
}

func (r *Router) CanConsume(producerID string, caps media.RTPCapabilities) bool {
	r.mu.Lock()
	p, ok := r.producers[producerID]
	r.mu.Unlock()
	return ok && caps.Supports(p.params.MimeType)
}

func (r *Router) CreateTransport(context.Context) (media.Transport, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	t := &Transport{id: fmt.Sprintf("%s-transport-%d", r.id, r.seq), router: r}
	r.Transports = append(r.Transports, t)
	return t, nil
}

// Producer returns a producer handle by id for assertions.
func (r *Router) Producer(id string) *Producer {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.producers[id]
}

func (r *Router) next(prefix string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	return fmt.Sprintf("%s-%d", prefix, r.seq)
}

type Transport struct {
	id     string
	router *Router

	Connected atomic.Bool
	Closed    atomic.Bool
}

func (t *Transport) ID() string { return t.id }

func (t *Transport) Info() media.TransportInfo {
	return media.TransportInfo{
		ID:             t.id,
		ICEParameters:  media.ICEParameters{UsernameFragment: "ufrag", Password: "pwd"},
		DTLSParameters: media.DTLSParameters{Role: "auto"},
	}
}

func (t *Transport) Connect(_ context.Context, _ media.DTLSParameters, _ *media.ICEParameters) error {
	if t.Closed.Load() {
		return media.ErrTransportClosed
	}
	t.Connected.Store(true)
	return nil
}

func (t *Transport) Produce(_ context.Context, kind string, params media.RTPParameters) (media.Producer, error) {
	if t.Closed.Load() {
		return nil, media.ErrTransportClosed
	}
	p := &Producer{id: t.router.next("producer"), kind: kind, params: params}
	p.paused.Store(true)
	t.router.mu.Lock()
	t.router.producers[p.id] = p
	t.router.mu.Unlock()
	return p, nil
}

func (t *Transport) ProduceData(_ context.Context, opts media.DataProducerOptions) (media.DataProducer, error) {
	dp := &DataProducer{id: t.router.next("data-producer"), label: opts.Label}
	t.router.mu.Lock()
	t.router.dataProds[dp.id] = dp
	t.router.mu.Unlock()
	return dp, nil
}

func (t *Transport) Consume(_ context.Context, producerID string, caps media.RTPCapabilities) (media.Consumer, error) {
	t.router.mu.Lock()
	p, ok := t.router.producers[producerID]
	t.router.mu.Unlock()
	if !ok {
		return nil, media.ErrProducerNotFound
	}
	if !caps.Supports(p.params.MimeType) {
		return nil, media.ErrCannotConsume
	}
	return &Consumer{id: t.router.next("consumer"), producer: p}, nil
}

func (t *Transport) ConsumeData(_ context.Context, dataProducerID string) (media.DataConsumer, error) {
	t.router.mu.Lock()
	dp, ok := t.router.dataProds[dataProducerID]
	t.router.mu.Unlock()
	if !ok {
		return nil, media.ErrProducerNotFound
	}
	return &DataConsumer{id: t.router.next("data-consumer"), producer: dp}, nil
}

func (t *Transport) Close() error {
	t.Closed.Store(true)
	return nil
}

type Producer struct {
	id     string
	kind   string
	params media.RTPParameters

	paused      atomic.Bool
	closed      atomic.Bool
	CloseCalls  atomic.Int32
	ResumeCalls atomic.Int32
}

func (p *Producer) ID() string   { return p.id }
func (p *Producer) Kind() string { return p.kind }
func (p *Producer) Paused() bool { return p.paused.Load() }

func (p *Producer) Pause() error {
	if p.closed.Load() {
		return media.ErrProducerClosed
	}
	p.paused.Store(true)
	return nil
}

func (p *Producer) Resume() error {
	if p.closed.Load() {
		return media.ErrProducerClosed
	}
	p.ResumeCalls.Add(1)
	p.paused.Store(false)
	return nil
}

func (p *Producer) Close() error {
	p.CloseCalls.Add(1)
	p.closed.Store(true)
	return nil
}

func (p *Producer) IsClosed() bool { return p.closed.Load() }

type Consumer struct {
	id       string
	producer *Producer

	Resumed atomic.Bool
	Closed  atomic.Bool
}

func (c *Consumer) ID() string         { return c.id }
func (c *Consumer) ProducerID() string { return c.producer.id }
func (c *Consumer) Kind() string       { return c.producer.kind }

func (c *Consumer) RTPParameters() media.RTPParameters { return c.producer.params }

func (c *Consumer) Resume() error {
	c.Resumed.Store(true)
	return nil
}

func (c *Consumer) Close() error {
	c.Closed.Store(true)
	return nil
}

type DataProducer struct {
	id     string
	label  string
	Closed atomic.Bool
}

func (dp *DataProducer) ID() string    { return dp.id }
func (dp *DataProducer) Label() string { return dp.label }
func (dp *DataProducer) Close() error {
	dp.Closed.Store(true)
	return nil
}

type DataConsumer struct {
	id       string
	producer *DataProducer
	Closed   atomic.Bool
}

func (dc *DataConsumer) ID() string             { return dc.id }
func (dc *DataConsumer) DataProducerID() string { return dc.producer.id }
func (dc *DataConsumer) Label() string          { return dc.producer.label }
func (dc *DataConsumer) Close() error {
	dc.Closed.Store(true)
	return nil
}
