package signal

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/voxhall/voxhall/internal/app"
	"github.com/voxhall/voxhall/internal/core"
	"github.com/voxhall/voxhall/internal/media/mediatest"
	"github.com/voxhall/voxhall/internal/protocol"
	"github.com/voxhall/voxhall/internal/roommeta"
)

type stubWS struct{}

func (stubWS) ReadMessage() (int, []byte, error) { return 0, nil, nil }
func (stubWS) WriteMessage(int, []byte) error    { return nil }
func (stubWS) SetWriteDeadline(time.Time) error  { return nil }
func (stubWS) Close() error                      { return nil }

func newTestController() *Controller {
	orch := app.New(mediatest.NewWorker(), core.NewRegistry(), roommeta.NewStatic())
	return NewController(orch, NewRateLimiter(100, time.Second), 0, time.Minute)
}

// nextResult pops the reply the dispatcher queued on the connection.
func nextResult(t *testing.T, conn *Conn) protocol.Result {
	t.Helper()
	select {
	case f := <-conn.send:
		var res protocol.Result
		require.NoError(t, json.Unmarshal(f, &res))
		return res
	default:
		t.Fatal("no reply queued")
		return protocol.Result{}
	}
}

func TestDispatchJoinRoom(t *testing.T) {
	ctl := newTestController()
	conn := NewConn(stubWS{})

	ctl.dispatch(context.Background(), "c1", conn, []byte(`{"event":"join_room","data":{"room":"r1","userId":"u1","userName":"alice"}}`))

	res := nextResult(t, conn)
	require.Equal(t, protocol.EvJoinRoom, res.Event)
	require.Equal(t, protocol.StatusSuccess, res.Status)
}

func TestDispatchValidationFailure(t *testing.T) {
	ctl := newTestController()
	conn := NewConn(stubWS{})

	// join_room without a room id must fail before touching any state.
	ctl.dispatch(context.Background(), "c1", conn, []byte(`{"event":"join_room","data":{"userId":"u1"}}`))

	res := nextResult(t, conn)
	require.Equal(t, protocol.EvJoinRoom, res.Event)
	require.Equal(t, protocol.StatusFailure, res.Status)
	require.NotEmpty(t, res.Message)
}

func TestDispatchMalformedEnvelope(t *testing.T) {
	ctl := newTestController()
	conn := NewConn(stubWS{})

	ctl.dispatch(context.Background(), "c1", conn, []byte(`{not json`))

	res := nextResult(t, conn)
	require.Equal(t, protocol.StatusFailure, res.Status)
}

func TestDispatchUnknownEvent(t *testing.T) {
	ctl := newTestController()
	conn := NewConn(stubWS{})

	ctl.dispatch(context.Background(), "c1", conn, []byte(`{"event":"warp_drive","data":{}}`))

	res := nextResult(t, conn)
	require.Equal(t, "warp_drive", res.Event)
	require.Equal(t, protocol.StatusFailure, res.Status)
	require.Equal(t, "unknown event", res.Message)
}

func TestDispatchHandlerErrorBecomesFailure(t *testing.T) {
	ctl := newTestController()
	conn := NewConn(stubWS{})

	// Capabilities for a room nobody joined.
	ctl.dispatch(context.Background(), "c1", conn, []byte(`{"event":"get_router_rtc_capabilities","data":{"room":"ghost"}}`))

	res := nextResult(t, conn)
	require.Equal(t, protocol.EvRouterCapabilities, res.Event)
	require.Equal(t, protocol.StatusFailure, res.Status)
}

func TestDispatchReaction(t *testing.T) {
	ctl := newTestController()
	conn := NewConn(stubWS{})

	ctl.dispatch(context.Background(), "c1", conn, []byte(`{"event":"join_room","data":{"room":"r1","userId":"u1"}}`))
	_ = nextResult(t, conn)

	ctl.dispatch(context.Background(), "c1", conn, []byte(`{"event":"user_reaction","data":{"room":"r1","action":"raisedHand","actionState":true}}`))
	res := nextResult(t, conn)
	require.Equal(t, protocol.StatusSuccess, res.Status)

	ctl.dispatch(context.Background(), "c1", conn, []byte(`{"event":"user_reaction","data":{"room":"r1","action":"notAReaction","actionState":true}}`))
	res = nextResult(t, conn)
	require.Equal(t, protocol.StatusFailure, res.Status)
}

func TestRateLimiterWindow(t *testing.T) {
	rl := NewRateLimiter(2, 50*time.Millisecond)

	require.True(t, rl.Allow("c1"))
	require.True(t, rl.Allow("c1"))
	require.False(t, rl.Allow("c1"))
	// Another connection has its own budget.
	require.True(t, rl.Allow("c2"))

	time.Sleep(60 * time.Millisecond)
	require.True(t, rl.Allow("c1"))

	rl.Forget("c1")
	require.True(t, rl.Allow("c1"))
}

func TestConnTrySendBackpressure(t *testing.T) {
	conn := NewConn(stubWS{})
	for i := 0; i < cap(conn.send); i++ {
		require.NoError(t, conn.TrySend(core.Frame("x")))
	}
	require.ErrorIs(t, conn.TrySend(core.Frame("x")), ErrBackpressure)
}

func TestConnTrySendAfterCloseDropsFrame(t *testing.T) {
	conn := NewConn(stubWS{})
	require.NoError(t, conn.TrySend(core.Frame("x")))

	conn.Close()
	// A stale room record may still hold this signal; sending must degrade
	// to an error, never reach the closed channel.
	require.ErrorIs(t, conn.TrySend(core.Frame("x")), ErrClosed)
	require.NotPanics(t, conn.Close)
	require.ErrorIs(t, conn.TrySend(core.Frame("x")), ErrClosed)
}
