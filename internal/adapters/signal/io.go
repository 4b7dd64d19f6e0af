package signal

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/maxklim/huddle/internal/app"
	"github.com/maxklim/huddle/internal/domain"
)

const writeWait = 5 * time.Second

func (ctl *Controller) writePump(ctx context.Context, cancel context.CancelFunc, c *wsConn) {
	ticker := time.NewTicker(ctl.Cfg.PingPeriod)
	defer ticker.Stop()
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return
		case data, ok := <-c.send:
			if !ok {
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump set deadline")
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump write error")
				return
			}
		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Warn().Err(err).Str("module", "signal").Msg("writePump ping failed")
				return
			}
		}
	}
}

// readPump drives the connection's whole lifetime. Any transport-level exit,
// clean or not, runs the leave protocol unconditionally.
func (ctl *Controller) readPump(ctx context.Context, cancel context.CancelFunc, cc *app.ConnContext, c *wsConn) {
	defer func() {
		cancel()
		c.Close()
		ctl.Coord.Leave(context.Background(), cc.ConnID)
		log.Info().Str("module", "signal").Str("conn", string(cc.ConnID)).Msg("readPump closed")
	}()

	c.conn.SetReadLimit(ctl.Cfg.ReadLimit)
	_ = c.conn.SetReadDeadline(time.Now().Add(ctl.Cfg.PongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(ctl.Cfg.PongWait))
	})

	for {
		select {
		case <-ctx.Done():
			return
		default:
			_, data, err := c.conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					log.Warn().Err(err).Str("module", "signal").Str("conn", string(cc.ConnID)).Msg("readPump read error")
				}
				return
			}
			ctl.dispatch(cc, c, data)
		}
	}
}

func (ctl *Controller) dispatch(cc *app.ConnContext, c *wsConn, data []byte) {
	var env struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad json")
		ctl.sendError(c, "bad_payload")
		return
	}

	switch env.Type {
	case "join":
		ctl.handleJoin(cc, c, data)
	case "leave":
		ctl.handleLeave(cc, c)
	case "offer", "answer", "candidate":
		ctl.handleSignalRelay(cc, c, env.Type, data)
	case "toggle_audio", "toggle_video", "toggle_screen_share":
		ctl.handleToggle(cc, c, env.Type, data)
	case "ping":
		ctl.sendJSON(c, struct {
			Type string `json:"type"`
		}{app.EventPong})
	default:
		log.Warn().Str("module", "signal").Str("type", env.Type).Msg("unknown signal")
		ctl.sendError(c, "unknown_type")
	}
}

func (ctl *Controller) sendJSON(c *wsConn, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("sendJSON marshal")
		return
	}
	_ = c.TrySend(b)
}

func (ctl *Controller) sendError(c *wsConn, code string) {
	ctl.sendJSON(c, app.ErrorEvent{Type: app.EventError, Error: code})
}

// wireCode maps the error taxonomy onto wire error codes; everything here is
// recoverable at the connection level and reported to the origin only.
func wireCode(err error) string {
	switch {
	case errors.Is(err, domain.ErrRoomNotFound):
		return "room_not_found"
	case errors.Is(err, domain.ErrNotInRoom):
		return "not_in_room"
	case errors.Is(err, domain.ErrInvalidMessage):
		return "invalid_message"
	case errors.Is(err, domain.ErrPersistenceFailure):
		return "persistence_failure"
	default:
		return "internal_error"
	}
}
