package media

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
)

// WorkerConfig carries the network knobs the engine needs. AnnouncedIP is what
// candidates advertise when the server sits behind NAT.
type WorkerConfig struct {
	ICEServers  []string
	AnnouncedIP string
}

// pionWorker implements Worker on top of pion/webrtc ORTC primitives running
// in-process. There is no separate worker process to lose, but the died hook
// is kept so callers treat engine failure as fatal either way.
type pionWorker struct {
	cfg    WorkerConfig
	mu     sync.Mutex
	onDied func(error)
	closed bool
}

func NewWorker(cfg WorkerConfig) (Worker, error) {
	return &pionWorker{cfg: cfg}, nil
}

func (w *pionWorker) OnDied(fn func(error)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onDied = fn
}

func (w *pionWorker) died(err error) {
	w.mu.Lock()
	fn := w.onDied
	w.mu.Unlock()
	if fn != nil {
		fn(err)
	}
}

func (w *pionWorker) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
}

func (w *pionWorker) CreateRouter(codecs []CodecCapability) (Router, error) {
	me := &webrtc.MediaEngine{}
	payloadType := uint8(96)
	for _, c := range codecs {
		kind := webrtc.RTPCodecTypeAudio
		if strings.HasPrefix(c.MimeType, "video/") {
			kind = webrtc.RTPCodecTypeVideo
		}
		feedback := make([]webrtc.RTCPFeedback, 0, len(c.RTCPFeedback))
		for _, fb := range c.RTCPFeedback {
			parts := strings.SplitN(fb, " ", 2)
			f := webrtc.RTCPFeedback{Type: parts[0]}
			if len(parts) == 2 {
				f.Parameter = parts[1]
			}
			feedback = append(feedback, f)
		}
		if err := me.RegisterCodec(webrtc.RTPCodecParameters{
			RTPCodecCapability: webrtc.RTPCodecCapability{
				MimeType:     c.MimeType,
				ClockRate:    c.ClockRate,
				Channels:     c.Channels,
				SDPFmtpLine:  c.SDPFmtpLine,
				RTCPFeedback: feedback,
			},
			PayloadType: webrtc.PayloadType(payloadType),
		}, kind); err != nil {
			return nil, err
		}
		payloadType++
	}

	se := webrtc.SettingEngine{}
	if w.cfg.AnnouncedIP != "" {
		se.SetNAT1To1IPs([]string{w.cfg.AnnouncedIP}, webrtc.ICECandidateTypeHost)
	}

	api := webrtc.NewAPI(webrtc.WithMediaEngine(me), webrtc.WithSettingEngine(se))
	return &pionRouter{
		id:        uuid.NewString(),
		worker:    w,
		api:       api,
		codecs:    codecs,
		producers: make(map[string]*pionProducer),
		dataProds: make(map[string]*pionDataProducer),
	}, nil
}

type pionRouter struct {
	id     string
	worker *pionWorker
	api    *webrtc.API
	codecs []CodecCapability

	mu        sync.RWMutex
	producers map[string]*pionProducer
	dataProds map[string]*pionDataProducer
}

func (r *pionRouter) ID() string { return r.id }

func (r *pionRouter) Capabilities() RTPCapabilities {
	return RTPCapabilities{Codecs: r.codecs}
}

func (r *pionRouter) CanConsume(producerID string, caps RTPCapabilities) bool {
	r.mu.RLock()
	p, ok := r.producers[producerID]
	r.mu.RUnlock()
	if !ok {
		return false
	}
	return caps.Supports(p.params.MimeType)
}

func (r *pionRouter) producer(id string) (*pionProducer, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.producers[id]
	return p, ok
}

func (r *pionRouter) registerProducer(p *pionProducer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.producers[p.id] = p
}

func (r *pionRouter) unregisterProducer(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.producers, id)
}

func (r *pionRouter) CreateTransport(_ context.Context) (Transport, error) {
	gatherer, err := r.api.NewICEGatherer(webrtc.ICEGatherOptions{
		ICEServers: iceServers(r.worker.cfg.ICEServers),
	})
	if err != nil {
		return nil, err
	}

	ice := r.api.NewICETransport(gatherer)
	dtls, err := r.api.NewDTLSTransport(ice, nil)
	if err != nil {
		return nil, err
	}
	sctp := r.api.NewSCTPTransport(dtls)

	gatherDone := make(chan struct{})
	gatherer.OnLocalCandidate(func(c *webrtc.ICECandidate) {
		if c == nil {
			close(gatherDone)
		}
	})
	if err := gatherer.Gather(); err != nil {
		return nil, err
	}
	<-gatherDone

	iceParams, err := gatherer.GetLocalParameters()
	if err != nil {
		return nil, err
	}
	candidates, err := gatherer.GetLocalCandidates()
	if err != nil {
		return nil, err
	}
	dtlsParams, err := dtls.GetLocalParameters()
	if err != nil {
		return nil, err
	}

	t := &pionTransport{
		id:       uuid.NewString(),
		router:   r,
		gatherer: gatherer,
		ice:      ice,
		dtls:     dtls,
		sctp:     sctp,
	}
	t.info = TransportInfo{
		ID:             t.id,
		ICEParameters:  fromICEParams(iceParams),
		ICECandidates:  fromICECandidates(candidates),
		DTLSParameters: fromDTLSParams(dtlsParams),
		SCTPParameters: SCTPCapabilities{MaxMessageSize: sctp.GetCapabilities().MaxMessageSize},
	}
	return t, nil
}

type pionTransport struct {
	id       string
	router   *pionRouter
	gatherer *webrtc.ICEGatherer
	ice      *webrtc.ICETransport
	dtls     *webrtc.DTLSTransport
	sctp     *webrtc.SCTPTransport
	info     TransportInfo

	mu       sync.Mutex
	closed   bool
	channels []*webrtc.DataChannel
}

func (t *pionTransport) ID() string          { return t.id }
func (t *pionTransport) Info() TransportInfo { return t.info }

func (t *pionTransport) Connect(_ context.Context, dtls DTLSParameters, ice *ICEParameters) error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return ErrTransportClosed
	}
	t.mu.Unlock()

	if ice != nil {
		role := webrtc.ICERoleControlled
		if err := t.ice.Start(nil, toICEParams(*ice), &role); err != nil {
			return err
		}
	}
	if err := t.dtls.Start(toDTLSParams(dtls)); err != nil {
		return err
	}
	if err := t.sctp.Start(t.sctp.GetCapabilities()); err != nil {
		// SCTP is only needed for data channels; media transports carry on.
		log.Debug().Str("module", "media.pion").Err(err).Msg("sctp start failed")
	}
	return nil
}

func (t *pionTransport) Produce(_ context.Context, kind string, params RTPParameters) (Producer, error) {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil, ErrTransportClosed
	}
	t.mu.Unlock()

	codecType := webrtc.RTPCodecTypeAudio
	if kind == "video" {
		codecType = webrtc.RTPCodecTypeVideo
	}
	receiver, err := t.router.api.NewRTPReceiver(codecType, t.dtls)
	if err != nil {
		return nil, err
	}
	encodings := make([]webrtc.RTPDecodingParameters, 0, len(params.Encodings))
	for _, e := range params.Encodings {
		encodings = append(encodings, webrtc.RTPDecodingParameters{
			RTPCodingParameters: webrtc.RTPCodingParameters{
				SSRC: webrtc.SSRC(e.SSRC),
				RID:  e.RID,
			},
		})
	}
	if err := receiver.Receive(webrtc.RTPReceiveParameters{Encodings: encodings}); err != nil {
		return nil, err
	}

	p := newPionProducer(t.router, kind, params, receiver)
	t.router.registerProducer(p)
	go p.relayLoop()
	return p, nil
}

func (t *pionTransport) ProduceData(_ context.Context, opts DataProducerOptions) (DataProducer, error) {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil, ErrTransportClosed
	}
	t.mu.Unlock()

	dp := &pionDataProducer{
		id:    uuid.NewString(),
		label: opts.Label,
	}
	// The producing client opens the channel; capture it by label when it
	// arrives and fan messages out to subscribers.
	t.sctp.OnDataChannel(func(dc *webrtc.DataChannel) {
		if dc.Label() != opts.Label {
			return
		}
		dp.attach(dc)
	})
	t.router.mu.Lock()
	t.router.dataProds[dp.id] = dp
	t.router.mu.Unlock()
	return dp, nil
}

func (t *pionTransport) Consume(_ context.Context, producerID string, caps RTPCapabilities) (Consumer, error) {
	p, ok := t.router.producer(producerID)
	if !ok {
		return nil, ErrProducerNotFound
	}
	if !caps.Supports(p.params.MimeType) {
		return nil, ErrCannotConsume
	}
	return p.addConsumer(t)
}

func (t *pionTransport) ConsumeData(_ context.Context, dataProducerID string) (DataConsumer, error) {
	t.router.mu.RLock()
	dp, ok := t.router.dataProds[dataProducerID]
	t.router.mu.RUnlock()
	if !ok {
		return nil, ErrProducerNotFound
	}

	dc, err := t.router.api.NewDataChannel(t.sctp, &webrtc.DataChannelParameters{Label: dp.label})
	if err != nil {
		return nil, err
	}
	t.mu.Lock()
	t.channels = append(t.channels, dc)
	t.mu.Unlock()

	dcon := &pionDataConsumer{
		id:       uuid.NewString(),
		producer: dp,
		channel:  dc,
	}
	dp.addSubscriber(dcon)
	return dcon, nil
}

func (t *pionTransport) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	channels := t.channels
	t.mu.Unlock()

	for _, dc := range channels {
		_ = dc.Close()
	}
	_ = t.sctp.Stop()
	_ = t.dtls.Stop()
	return t.ice.Stop()
}

func iceServers(urls []string) []webrtc.ICEServer {
	out := make([]webrtc.ICEServer, 0, len(urls))
	for _, u := range urls {
		out = append(out, webrtc.ICEServer{URLs: []string{u}})
	}
	return out
}

func fromICEParams(p webrtc.ICEParameters) ICEParameters {
	return ICEParameters{
		UsernameFragment: p.UsernameFragment,
		Password:         p.Password,
		ICELite:          p.ICELite,
	}
}

func toICEParams(p ICEParameters) webrtc.ICEParameters {
	return webrtc.ICEParameters{
		UsernameFragment: p.UsernameFragment,
		Password:         p.Password,
		ICELite:          p.ICELite,
	}
}

func fromICECandidates(cands []webrtc.ICECandidate) []ICECandidate {
	out := make([]ICECandidate, 0, len(cands))
	for _, c := range cands {
		out = append(out, ICECandidate{
			Foundation: c.Foundation,
			Priority:   c.Priority,
			Address:    c.Address,
			Protocol:   c.Protocol.String(),
			Port:       c.Port,
			Type:       c.Typ.String(),
		})
	}
	return out
}

func fromDTLSParams(p webrtc.DTLSParameters) DTLSParameters {
	fps := make([]DTLSFingerprint, 0, len(p.Fingerprints))
	for _, f := range p.Fingerprints {
		fps = append(fps, DTLSFingerprint{Algorithm: f.Algorithm, Value: f.Value})
	}
	return DTLSParameters{Role: p.Role.String(), Fingerprints: fps}
}

func toDTLSParams(p DTLSParameters) webrtc.DTLSParameters {
	fps := make([]webrtc.DTLSFingerprint, 0, len(p.Fingerprints))
	for _, f := range p.Fingerprints {
		fps = append(fps, webrtc.DTLSFingerprint{Algorithm: f.Algorithm, Value: f.Value})
	}
	role := webrtc.DTLSRoleAuto
	switch p.Role {
	case "client":
		role = webrtc.DTLSRoleClient
	case "server":
		role = webrtc.DTLSRoleServer
	}
	return webrtc.DTLSParameters{Role: role, Fingerprints: fps}
}
