// Package signal is the connection gateway: it upgrades authenticated
// requests to websockets, owns the read/write pumps and dispatches inbound
// events to the coordinator, relay and media broadcaster.
package signal

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/maxklim/huddle/internal/app"
	"github.com/maxklim/huddle/internal/auth"
	"github.com/maxklim/huddle/internal/config"
	"github.com/maxklim/huddle/internal/core"
	"github.com/maxklim/huddle/internal/domain"
)

var ErrBackpressure = errors.New("backpressure")

type Controller struct {
	Cfg     *config.Config
	Coord   *app.Coordinator
	Relay   *app.Relay
	Media   *app.Broadcaster
	limiter *JoinRateLimiter
}

func NewController(cfg *config.Config, coord *app.Coordinator, relay *app.Relay, media *app.Broadcaster) *Controller {
	return &Controller{
		Cfg:     cfg,
		Coord:   coord,
		Relay:   relay,
		Media:   media,
		limiter: NewJoinRateLimiter(10, time.Minute),
	}
}

// wsConn is the SignalConnection over one websocket. Writes go through a
// buffered channel drained by the write pump; a full buffer is backpressure,
// never a block.
type wsConn struct {
	conn *websocket.Conn
	send chan core.Frame

	mu     sync.RWMutex
	closed bool
}

func (c *wsConn) TrySend(f core.Frame) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return errors.New("connection closed")
	}
	select {
	case c.send <- f:
	default:
		return ErrBackpressure
	}
	return nil
}

func (c *wsConn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	_ = c.conn.Close()
	c.mu.Unlock()
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// HandleSignal upgrades an authenticated request. The identity placed in the
// gin context by the auth middleware becomes part of a fixed connection
// context; the connection id is fresh per transport connection.
func (ctl *Controller) HandleSignal(ctx context.Context, c *gin.Context) {
	v, ok := c.Get("identity")
	identity, isID := v.(auth.Identity)
	if !ok || !isID {
		c.AbortWithStatus(http.StatusUnauthorized)
		return
	}

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("ws upgrade")
		return
	}

	conn := &wsConn{
		conn: ws,
		send: make(chan core.Frame, 32),
	}
	cc := &app.ConnContext{
		ConnID:      domain.ConnID(uuid.NewString()),
		UserID:      identity.UserID,
		DisplayName: identity.DisplayName,
		Signal:      conn,
	}
	log.Info().Str("module", "signal").Str("conn", string(cc.ConnID)).
		Str("user", string(cc.UserID)).Msg("new WS connection")

	ctx, cancel := context.WithCancel(ctx)
	go ctl.writePump(ctx, cancel, conn)
	go ctl.readPump(ctx, cancel, cc, conn)
}
