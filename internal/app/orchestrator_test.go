package app

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/voxhall/voxhall/internal/core"
	"github.com/voxhall/voxhall/internal/domain"
	"github.com/voxhall/voxhall/internal/media"
	"github.com/voxhall/voxhall/internal/media/mediatest"
	"github.com/voxhall/voxhall/internal/protocol"
	"github.com/voxhall/voxhall/internal/roommeta"
)

type recordingSignal struct {
	mu     sync.Mutex
	frames []core.Frame
}

func (s *recordingSignal) TrySend(f core.Frame) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames = append(s.frames, f)
	return nil
}

func (s *recordingSignal) Close() {}

// events decodes the event tag of every frame received so far.
func (s *recordingSignal) events() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.frames))
	for _, f := range s.frames {
		var push protocol.Push
		if err := json.Unmarshal(f, &push); err == nil {
			out = append(out, push.Event)
		}
	}
	return out
}

func (s *recordingSignal) countOf(event string) int {
	n := 0
	for _, e := range s.events() {
		if e == event {
			n++
		}
	}
	return n
}

func newTestOrch() (*Orchestrator, *mediatest.Worker, *roommeta.Static) {
	worker := mediatest.NewWorker()
	meta := roommeta.NewStatic()
	return New(worker, core.NewRegistry(), meta), worker, meta
}

func join(t *testing.T, o *Orchestrator, room domain.RoomID, conn domain.ConnectionID, user domain.ParticipantID) *recordingSignal {
	t.Helper()
	sig := &recordingSignal{}
	_, err := o.Join(context.Background(), conn, sig, protocol.JoinRoom{
		Room:     room,
		UserID:   user,
		UserName: string(user),
	})
	require.NoError(t, err)
	return sig
}

func produceAudio(t *testing.T, o *Orchestrator, room domain.RoomID, conn domain.ConnectionID, off bool) protocol.ProducerCreated {
	t.Helper()
	_, err := o.CreateTransport(context.Background(), conn, protocol.CreateTransport{Room: room, IsProducer: true})
	require.NoError(t, err)
	created, err := o.Produce(context.Background(), conn, protocol.Produce{
		Room:             room,
		Kind:             "audio",
		RTPParameters:    media.RTPParameters{MimeType: "audio/opus"},
		MediaKind:        domain.MediaAudio,
		IsAudioTurnedOff: off,
	})
	require.NoError(t, err)
	return created
}

// audioProducer digs the fake producer handle back out of the room state.
func audioProducer(t *testing.T, o *Orchestrator, room domain.RoomID, conn domain.ConnectionID) *mediatest.Producer {
	t.Helper()
	r, ok := o.Rooms.Get(room)
	require.True(t, ok)
	var p *mediatest.Producer
	require.NoError(t, r.WithConnection(conn, func(cs *core.ConnectionState) error {
		if cs.Audio.Producer != nil {
			p = cs.Audio.Producer.(*mediatest.Producer)
		}
		return nil
	}))
	require.NotNil(t, p)
	return p
}

func TestJoinSharesOneRouterPerRoom(t *testing.T) {
	o, worker, _ := newTestOrch()

	join(t, o, "r1", "c1", "u1")
	join(t, o, "r1", "c2", "u2")
	require.Equal(t, 1, worker.RouterCount())

	join(t, o, "r2", "c3", "u3")
	require.Equal(t, 2, worker.RouterCount())
}

func TestJoinMarksPersistedOwner(t *testing.T) {
	o, _, meta := newTestOrch()
	meta.Put(&roommeta.Room{ID: "r1", Owner: &roommeta.Owner{ParticipantID: "u1"}})

	sigOwner := &recordingSignal{}
	view, err := o.Join(context.Background(), "c1", sigOwner, protocol.JoinRoom{Room: "r1", UserID: "u1", UserName: "alice"})
	require.NoError(t, err)
	require.True(t, view.IsOwner)
	require.True(t, view.IsAdmin)

	sigGuest := &recordingSignal{}
	view, err = o.Join(context.Background(), "c2", sigGuest, protocol.JoinRoom{Room: "r1", UserID: "u2", UserName: "bob"})
	require.NoError(t, err)
	require.False(t, view.IsOwner)
	require.False(t, view.IsAdmin)
}

func TestProduceStartsPausedAndAnnounces(t *testing.T) {
	o, _, _ := newTestOrch()
	join(t, o, "r1", "c1", "u1")
	peer := join(t, o, "r1", "c2", "u2")

	produceAudio(t, o, "r1", "c1", false)

	p := audioProducer(t, o, "r1", "c1")
	require.True(t, p.Paused())
	require.Equal(t, 1, peer.countOf(protocol.EvProducerProducing))
}

func TestConsumerReadyResumesProducerOnce(t *testing.T) {
	o, _, _ := newTestOrch()
	join(t, o, "r1", "c1", "u1")
	join(t, o, "r1", "c2", "u2")

	created := produceAudio(t, o, "r1", "c1", false)
	p := audioProducer(t, o, "r1", "c1")

	_, err := o.CreateTransport(context.Background(), "c2", protocol.CreateTransport{Room: "r1", IsProducer: false})
	require.NoError(t, err)
	caps := media.RTPCapabilities{Codecs: []media.CodecCapability{{MimeType: "audio/opus"}}}
	consumer, err := o.Consume(context.Background(), "c2", protocol.Consume{
		Room:            "r1",
		ProducerID:      created.ID,
		RTPCapabilities: caps,
	})
	require.NoError(t, err)
	require.True(t, p.Paused())

	require.NoError(t, o.ConsumerReady("c2", protocol.ConsumerReady{
		Room:       "r1",
		ProducerID: created.ID,
		ConsumerID: consumer.ID,
	}))
	require.False(t, p.Paused())
	require.Equal(t, int32(1), p.ResumeCalls.Load())

	// A second ready for an already running producer resumes nothing more.
	require.NoError(t, o.ConsumerReady("c2", protocol.ConsumerReady{
		Room:       "r1",
		ProducerID: created.ID,
		ConsumerID: consumer.ID,
	}))
	require.Equal(t, int32(1), p.ResumeCalls.Load())
}

func TestConsumerReadyRespectsOwnerMute(t *testing.T) {
	o, _, _ := newTestOrch()
	join(t, o, "r1", "c1", "u1")
	join(t, o, "r1", "c2", "u2")

	created := produceAudio(t, o, "r1", "c1", true)
	p := audioProducer(t, o, "r1", "c1")

	_, err := o.CreateTransport(context.Background(), "c2", protocol.CreateTransport{Room: "r1", IsProducer: false})
	require.NoError(t, err)
	caps := media.RTPCapabilities{Codecs: []media.CodecCapability{{MimeType: "audio/opus"}}}
	consumer, err := o.Consume(context.Background(), "c2", protocol.Consume{
		Room:            "r1",
		ProducerID:      created.ID,
		RTPCapabilities: caps,
	})
	require.NoError(t, err)

	require.NoError(t, o.ConsumerReady("c2", protocol.ConsumerReady{
		Room:       "r1",
		ProducerID: created.ID,
		ConsumerID: consumer.ID,
	}))
	// The owner muted before producing; readiness must not unmute them.
	require.True(t, p.Paused())
	require.Equal(t, int32(0), p.ResumeCalls.Load())
}

func TestConsumeRejectsIncompatibleCapabilities(t *testing.T) {
	o, _, _ := newTestOrch()
	join(t, o, "r1", "c1", "u1")
	join(t, o, "r1", "c2", "u2")
	created := produceAudio(t, o, "r1", "c1", false)

	_, err := o.CreateTransport(context.Background(), "c2", protocol.CreateTransport{Room: "r1", IsProducer: false})
	require.NoError(t, err)
	_, err = o.Consume(context.Background(), "c2", protocol.Consume{
		Room:            "r1",
		ProducerID:      created.ID,
		RTPCapabilities: media.RTPCapabilities{Codecs: []media.CodecCapability{{MimeType: "video/VP8"}}},
	})
	require.ErrorIs(t, err, media.ErrCannotConsume)
}

func produceScreen(t *testing.T, o *Orchestrator, room domain.RoomID, conn domain.ConnectionID) protocol.ProducerCreated {
	t.Helper()
	_, err := o.CreateTransport(context.Background(), conn, protocol.CreateTransport{Room: room, IsProducer: true})
	require.NoError(t, err)
	created, err := o.Produce(context.Background(), conn, protocol.Produce{
		Room:          room,
		Kind:          "video",
		RTPParameters: media.RTPParameters{MimeType: "video/VP8"},
		MediaKind:     domain.MediaScreen,
		IsScreenShare: true,
	})
	require.NoError(t, err)
	return created
}

func TestSecondScreenShareDisplacesFirst(t *testing.T) {
	o, worker, _ := newTestOrch()
	sigA := join(t, o, "r1", "c1", "u1")
	join(t, o, "r1", "c2", "u2")

	first := produceScreen(t, o, "r1", "c1")
	second := produceScreen(t, o, "r1", "c2")

	room, _ := o.Rooms.Get("r1")
	ctx := room.Context()
	require.True(t, ctx.IsSharing)
	require.Equal(t, domain.ConnectionID("c2"), ctx.SharerConnID)
	require.Equal(t, second.ID, ctx.ScreenShareProducerID)

	// The displaced producer was closed exactly once.
	firstProducer := worker.Routers[0].Producer(first.ID)
	require.NotNil(t, firstProducer)
	require.Equal(t, int32(1), firstProducer.CloseCalls.Load())

	// The first sharer heard about the takeover.
	require.Equal(t, 1, sigA.countOf(protocol.EvScreenSharing))
}

func TestStopScreenShareIgnoredForNonSharer(t *testing.T) {
	o, _, _ := newTestOrch()
	join(t, o, "r1", "c1", "u1")
	join(t, o, "r1", "c2", "u2")
	produceScreen(t, o, "r1", "c1")

	require.NoError(t, o.StopScreenShare("c2", protocol.CloseMedia{Room: "r1"}))
	room, _ := o.Rooms.Get("r1")
	require.True(t, room.Context().IsSharing)

	require.NoError(t, o.StopScreenShare("c1", protocol.CloseMedia{Room: "r1"}))
	require.False(t, room.Context().IsSharing)
}

func TestToggleProducerStateMute(t *testing.T) {
	o, _, _ := newTestOrch()
	join(t, o, "r1", "c1", "u1")
	peer := join(t, o, "r1", "c2", "u2")
	produceAudio(t, o, "r1", "c1", false)
	p := audioProducer(t, o, "r1", "c1")
	require.NoError(t, p.Resume())

	view, err := o.ToggleProducerState("c1", protocol.ToggleProducerState{Room: "r1", Action: protocol.ActionMute})
	require.NoError(t, err)
	require.True(t, view.IsAudioTurnedOff)
	require.True(t, p.Paused())
	require.Equal(t, 1, peer.countOf(protocol.EvToggleProducerState))

	view, err = o.ToggleProducerState("c1", protocol.ToggleProducerState{Room: "r1", Action: protocol.ActionUnmute})
	require.NoError(t, err)
	require.False(t, view.IsAudioTurnedOff)
	require.False(t, p.Paused())
}

func TestProducerClosedClearsSlot(t *testing.T) {
	o, _, _ := newTestOrch()
	join(t, o, "r1", "c1", "u1")
	peer := join(t, o, "r1", "c2", "u2")
	produceAudio(t, o, "r1", "c1", false)
	p := audioProducer(t, o, "r1", "c1")

	require.NoError(t, o.ProducerClosed("c1", protocol.CloseMedia{Room: "r1", MediaKind: domain.MediaAudio}))
	require.Equal(t, int32(1), p.CloseCalls.Load())
	require.Equal(t, 1, peer.countOf(protocol.EvProducerClosed))

	room, _ := o.Rooms.Get("r1")
	view, ok := room.View("c1")
	require.True(t, ok)
	require.Empty(t, view.AudioProducerID)
	require.False(t, view.IsAudioTurnedOff)
}

func TestDisconnectReapsEverything(t *testing.T) {
	o, _, _ := newTestOrch()
	join(t, o, "r1", "c1", "u1")
	peer := join(t, o, "r1", "c2", "u2")
	produceAudio(t, o, "r1", "c1", false)
	p := audioProducer(t, o, "r1", "c1")
	produceScreen(t, o, "r1", "c1")

	o.OnDisconnect("c1")

	require.Equal(t, int32(1), p.CloseCalls.Load())
	room, _ := o.Rooms.Get("r1")
	require.False(t, room.Context().IsSharing)
	require.Equal(t, 1, room.ParticipantCount())
	require.Equal(t, 1, peer.countOf(protocol.EvScreenShareStopped))
	require.Equal(t, 1, peer.countOf(protocol.EvProducerClosed))

	// Reaping again is a no-op.
	o.OnDisconnect("c1")
	require.Equal(t, int32(1), p.CloseCalls.Load())
}

func TestRejoinOtherRoomReapsPrevious(t *testing.T) {
	o, _, _ := newTestOrch()
	sig := &recordingSignal{}
	_, err := o.Join(context.Background(), "c1", sig, protocol.JoinRoom{Room: "rA", UserID: "u1", UserName: "alice"})
	require.NoError(t, err)
	peer := join(t, o, "rA", "c2", "u2")
	produceAudio(t, o, "rA", "c1", false)
	p := audioProducer(t, o, "rA", "c1")

	_, err = o.Join(context.Background(), "c1", sig, protocol.JoinRoom{Room: "rB", UserID: "u1", UserName: "alice"})
	require.NoError(t, err)

	// The first room released the record, closed its producers and told the
	// remaining members.
	roomA, _ := o.Rooms.Get("rA")
	require.Equal(t, 1, roomA.ParticipantCount())
	require.Equal(t, int32(1), p.CloseCalls.Load())
	require.Equal(t, 1, peer.countOf(protocol.EvProducerClosed))

	// A later broadcast in the first room no longer reaches the moved
	// connection.
	before := len(sig.events())
	roomA.Broadcast("c2", false, core.Frame(`{"event":"noop"}`))
	require.Equal(t, before, len(sig.events()))

	// Disconnect reaps only the current room.
	o.OnDisconnect("c1")
	roomB, _ := o.Rooms.Get("rB")
	require.Equal(t, 0, roomB.ParticipantCount())
	require.Equal(t, 1, roomA.ParticipantCount())
}

func TestRejoinSameRoomKeepsRecord(t *testing.T) {
	o, _, _ := newTestOrch()
	join(t, o, "r1", "c1", "u1")
	produceAudio(t, o, "r1", "c1", false)
	p := audioProducer(t, o, "r1", "c1")

	// Re-announcing the same room refreshes the profile without reaping.
	join(t, o, "r1", "c1", "u1")
	require.Equal(t, int32(0), p.CloseCalls.Load())

	room, _ := o.Rooms.Get("r1")
	view, ok := room.View("c1")
	require.True(t, ok)
	require.NotEmpty(t, view.AudioProducerID)
}

func TestDataChannelLifecycle(t *testing.T) {
	o, _, _ := newTestOrch()
	join(t, o, "r1", "c1", "u1")
	peer := join(t, o, "r1", "c2", "u2")

	_, err := o.CreateTransport(context.Background(), "c1", protocol.CreateTransport{Room: "r1", IsProducer: true})
	require.NoError(t, err)
	created, err := o.ProduceData(context.Background(), "c1", protocol.ProduceData{Room: "r1", Label: "chat"})
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)
	require.Equal(t, 1, peer.countOf(protocol.EvProducingData))

	room, _ := o.Rooms.Get("r1")
	view, ok := room.View("c1")
	require.True(t, ok)
	require.Equal(t, created.ID, view.DataProducerID)

	_, err = o.CreateTransport(context.Background(), "c2", protocol.CreateTransport{Room: "r1", IsProducer: false})
	require.NoError(t, err)
	dc, err := o.ConsumeData(context.Background(), "c2", protocol.ConsumeData{Room: "r1", ProducerID: created.ID})
	require.NoError(t, err)
	require.Equal(t, created.ID, dc.DataProducerID)
	require.Equal(t, "chat", dc.Label)

	var dp *mediatest.DataProducer
	require.NoError(t, room.WithConnection("c1", func(cs *core.ConnectionState) error {
		dp = cs.Data.Producer.(*mediatest.DataProducer)
		return nil
	}))
	var dcon *mediatest.DataConsumer
	require.NoError(t, room.WithConnection("c2", func(cs *core.ConnectionState) error {
		for _, c := range cs.DataConsumers {
			dcon = c.(*mediatest.DataConsumer)
		}
		return nil
	}))
	require.NotNil(t, dp)
	require.NotNil(t, dcon)

	// Reaping each side closes its data handles.
	o.OnDisconnect("c1")
	require.True(t, dp.Closed.Load())
	o.OnDisconnect("c2")
	require.True(t, dcon.Closed.Load())
}

func TestConsumeDataUnknownProducer(t *testing.T) {
	o, _, _ := newTestOrch()
	join(t, o, "r1", "c1", "u1")
	_, err := o.CreateTransport(context.Background(), "c1", protocol.CreateTransport{Room: "r1", IsProducer: false})
	require.NoError(t, err)

	_, err = o.ConsumeData(context.Background(), "c1", protocol.ConsumeData{Room: "r1", ProducerID: "ghost"})
	require.ErrorIs(t, err, media.ErrProducerNotFound)
}

func TestProducerClosedUnknownKindLeavesSlots(t *testing.T) {
	o, _, _ := newTestOrch()
	join(t, o, "r1", "c1", "u1")
	produceAudio(t, o, "r1", "c1", false)
	p := audioProducer(t, o, "r1", "c1")

	require.NoError(t, o.ProducerClosed("c1", protocol.CloseMedia{Room: "r1"}))
	require.Equal(t, int32(0), p.CloseCalls.Load())

	room, _ := o.Rooms.Get("r1")
	view, ok := room.View("c1")
	require.True(t, ok)
	require.NotEmpty(t, view.AudioProducerID)
}

func TestDisconnectClearsSpecialPresenter(t *testing.T) {
	o, _, _ := newTestOrch()
	join(t, o, "r1", "c1", "u1")
	peer := join(t, o, "r1", "c2", "u2")

	on := true
	presenter := domain.ConnectionID("c1")
	_, err := o.ModifyRoomContext("c1", protocol.RoomContextModification{
		Room:                     "r1",
		HasSpecialPresenter:      &on,
		SpecialPresenterSocketID: &presenter,
	})
	require.NoError(t, err)

	o.OnDisconnect("c1")

	room, _ := o.Rooms.Get("r1")
	ctx := room.Context()
	require.False(t, ctx.HasSpecialPresenter)
	require.Empty(t, ctx.SpecialPresenterConnID)
	require.GreaterOrEqual(t, peer.countOf(protocol.EvRoomContextModified), 1)
}

func TestRequestToJoinNeedsConnectedAdmin(t *testing.T) {
	o, _, meta := newTestOrch()
	meta.Put(&roommeta.Room{ID: "r1", Owner: &roommeta.Owner{ParticipantID: "u1"}})

	err := o.RequestToJoin(context.Background(), "guest", protocol.AdmissionRequest{Room: "r1", UserID: "u9"})
	require.ErrorIs(t, err, ErrNoAdmin)
}

func TestAdmissionDecisionIsTerminal(t *testing.T) {
	o, _, meta := newTestOrch()
	meta.Put(&roommeta.Room{ID: "r1", Owner: &roommeta.Owner{ParticipantID: "u1"}})
	adminSig := join(t, o, "r1", "admin", "u1")

	require.NoError(t, o.RequestToJoin(context.Background(), "guest", protocol.AdmissionRequest{Room: "r1", UserID: "u9", UserName: "guest"}))
	require.Equal(t, 1, adminSig.countOf(protocol.EvRequestToJoin))

	require.NoError(t, o.AcceptJoinRequest("admin", protocol.AdmissionDecision{Room: "r1", SocketID: "guest"}))
	require.ErrorIs(t, o.AcceptJoinRequest("admin", protocol.AdmissionDecision{Room: "r1", SocketID: "guest"}), ErrNoPendingJoin)
	require.ErrorIs(t, o.RejectJoinRequest("admin", protocol.AdmissionDecision{Room: "r1", SocketID: "guest"}), ErrNoPendingJoin)

	// A decided request cannot be re-requested either.
	require.ErrorIs(t, o.RequestToJoin(context.Background(), "guest", protocol.AdmissionRequest{Room: "r1", UserID: "u9"}), ErrAlreadyDecided)
}

func TestGrantRoleRequiresAdmin(t *testing.T) {
	o, _, meta := newTestOrch()
	meta.Put(&roommeta.Room{ID: "r1", Owner: &roommeta.Owner{ParticipantID: "u1"}})
	join(t, o, "r1", "admin", "u1")
	join(t, o, "r1", "member", "u2")

	_, err := o.GrantRole("member", protocol.GrantRole{Room: "r1", SocketID: "member", Admin: true})
	require.ErrorIs(t, err, ErrNotAdmin)

	view, err := o.GrantRole("admin", protocol.GrantRole{Room: "r1", SocketID: "member", Admin: true})
	require.NoError(t, err)
	require.True(t, view.IsAdmin)
}

func TestReactionValidationAndFanout(t *testing.T) {
	o, _, _ := newTestOrch()
	join(t, o, "r1", "c1", "u1")
	peer := join(t, o, "r1", "c2", "u2")

	_, err := o.Reaction("c1", protocol.UserReaction{Room: "r1", Action: "explodingHead", ActionState: true})
	require.ErrorIs(t, err, ErrUnknownReaction)

	view, err := o.Reaction("c1", protocol.UserReaction{Room: "r1", Action: domain.ReactionRaisedHand, ActionState: true})
	require.NoError(t, err)
	require.True(t, view.Reactions[domain.ReactionRaisedHand])
	require.Equal(t, 1, peer.countOf(protocol.EvUserReaction))

	view, err = o.Reaction("c1", protocol.UserReaction{Room: "r1", Action: domain.ReactionRaisedHand, ActionState: false})
	require.NoError(t, err)
	require.NotContains(t, view.Reactions, domain.ReactionRaisedHand)
}

func TestChatDecoratesTextualPreference(t *testing.T) {
	o, _, meta := newTestOrch()
	meta.Put(&roommeta.Room{ID: "r1", Owner: &roommeta.Owner{ParticipantID: "u1"}})
	selfSig := join(t, o, "r1", "admin", "u1")
	join(t, o, "r1", "member", "u2")

	_, err := o.AcceptAccessibility("admin", protocol.AccessibilityPreference{
		Room:        "r1",
		SocketID:    "member",
		Preferences: protocol.AccessibilityPreferences{UsesTextualCommunication: true},
	})
	require.NoError(t, err)

	msg, err := o.Chat("member", protocol.ChatMessage{Room: "r1", Message: "hello"})
	require.NoError(t, err)
	require.True(t, msg.UsesTextualCommunication)
	// Chat fan-out includes the sender.
	require.Equal(t, 1, selfSig.countOf(protocol.EvChatMessage))
}

func TestRequestAccessibilityNeedsAdmin(t *testing.T) {
	o, _, _ := newTestOrch()
	join(t, o, "r1", "member", "u2")

	_, err := o.RequestAccessibility("member", protocol.AccessibilityPreference{Room: "r1"})
	require.ErrorIs(t, err, ErrNoAdmin)
}

func TestRoomProducersExcludesCallerAndIdle(t *testing.T) {
	o, _, _ := newTestOrch()
	join(t, o, "r1", "c1", "u1")
	join(t, o, "r1", "c2", "u2")
	join(t, o, "r1", "c3", "u3")
	produceAudio(t, o, "r1", "c1", false)
	produceAudio(t, o, "r1", "c2", false)

	views, err := o.RoomProducers("r1", "c1")
	require.NoError(t, err)
	require.Len(t, views, 1)
	require.Contains(t, views, domain.ConnectionID("c2"))
}

func TestRouterCapabilitiesUnknownRoom(t *testing.T) {
	o, _, _ := newTestOrch()
	_, err := o.RouterCapabilities("nope")
	require.ErrorIs(t, err, ErrRoomNotFound)
}
