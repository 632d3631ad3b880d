package signal

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc"

	"github.com/voxhall/voxhall/internal/app"
	"github.com/voxhall/voxhall/internal/domain"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

type Controller struct {
	orch       *app.Orchestrator
	limiter    *RateLimiter
	validate   *validator.Validate
	readLimit  int64
	pingPeriod time.Duration
}

func NewController(orch *app.Orchestrator, limiter *RateLimiter, readLimit int64, pingPeriod time.Duration) *Controller {
	return &Controller{
		orch:       orch,
		limiter:    limiter,
		validate:   validator.New(),
		readLimit:  readLimit,
		pingPeriod: pingPeriod,
	}
}

// HandleCall upgrades the request and runs the connection's pumps until it
// drops; the read pump hands every inbound event to the dispatcher in
// arrival order.
func (ctl *Controller) HandleCall(ctx context.Context, c *gin.Context) {
	connID := domain.ConnectionID(c.GetString("client_token"))
	log.Info().Str("module", "adapters.signal").Str("conn", string(connID)).Msg("new signaling connection")

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Str("module", "adapters.signal").Err(err).Msg("ws upgrade")
		return
	}
	if ctl.readLimit > 0 {
		ws.SetReadLimit(ctl.readLimit)
	}

	conn := NewConn(ws)
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg conc.WaitGroup
	wg.Go(func() { conn.writePump(ctx, ctl.pingPeriod) })
	wg.Go(func() { ctl.readPump(ctx, connID, conn, ws) })
	wg.Wait()
}

func (ctl *Controller) readPump(ctx context.Context, connID domain.ConnectionID, conn *Conn, ws WSConn) {
	defer func() {
		log.Info().Str("module", "adapters.signal").Str("conn", string(connID)).Msg("read pump closing")
		ctl.orch.OnDisconnect(connID)
		ctl.limiter.Forget(connID)
		conn.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			return
		default:
			_, data, err := ws.ReadMessage()
			if err != nil {
				log.Debug().Str("module", "adapters.signal").Str("conn", string(connID)).Err(err).Msg("read pump exit")
				return
			}
			if !ctl.limiter.Allow(connID) {
				log.Warn().Str("module", "adapters.signal").Str("conn", string(connID)).Msg("event rate limit exceeded, dropping")
				continue
			}
			ctl.dispatch(ctx, connID, conn, data)
		}
	}
}
