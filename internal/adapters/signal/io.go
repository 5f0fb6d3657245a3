package signal

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/codesketch/hub/internal/core"
)

func (ctl *Controller) writePump(ctx context.Context, c *WsSignalConn) {
	ticker := time.NewTicker(ctl.pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Debug().Str("module", "signal").Msg("writePump ctx done")
			return
		case data, ok := <-c.send:
			if !ok {
				log.Debug().Str("module", "signal").Msg("writePump channel closed")
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second)); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump set deadline")
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump write error")
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Debug().Err(err).Str("module", "signal").Msg("writePump ping failed")
				return
			}
		}
	}
}

func (ctl *Controller) readPump(ctx context.Context, sid core.SessionID, clientID string, c *WsSignalConn) {
	defer func() {
		log.Info().Str("module", "signal").Str("sid", string(sid)).Msg("readPump closing")
		ctl.Orch.Registry.Cancel(sid)
		ctl.handleDisconnect(sid)
		c.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			log.Debug().Str("module", "signal").Str("sid", string(sid)).Msg("readPump ctx done")
			return
		default:
			_, data, err := c.conn.ReadMessage()
			if err != nil {
				log.Info().Err(err).Str("module", "signal").Str("sid", string(sid)).Msg("readPump read error")
				return
			}
			ctl.handleSignal(sid, clientID, c, data)
		}
	}
}

// handleSignal dispatches one inbound operation. A panic in a handler
// is converted into a generic error reply; it never takes down the
// connection or the process.
func (ctl *Controller) handleSignal(sid core.SessionID, clientID string, c core.SignalConnection, data []byte) {
	var env struct {
		Type Op `json:"type"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		log.Warn().Err(err).Str("module", "signal").Msg("bad json")
		ctl.fail(c, "", fmt.Errorf("%w: malformed message", ErrValidation))
		return
	}

	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Str("module", "signal").Str("sid", string(sid)).Str("op", string(env.Type)).Msg("handler panic")
			ctl.fail(c, env.Type, errInternal)
		}
	}()

	switch env.Type {
	case OpJoin:
		ctl.handleJoin(sid, clientID, c, data)
	case OpCodeChange:
		ctl.handleCodeChange(sid, clientID, c, data)
	case OpLanguageChange:
		ctl.handleLanguageChange(sid, clientID, c, data)
	case OpInputChange:
		ctl.handleInputChange(sid, clientID, c, data)
	case OpExecuteCode:
		ctl.handleExecuteCode(sid, clientID, c, data)
	case OpExecutionResult:
		ctl.handleExecutionResult(sid, c, data)
	case OpPing:
		ctl.handlePing(c)
	default:
		log.Warn().Str("module", "signal").Str("type", string(env.Type)).Msg("unknown signal")
	}
}

func (ctl *Controller) sendJSON(c core.SignalConnection, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("sendJSON marshal")
		return
	}
	if err := c.TrySend(b); err != nil {
		log.Warn().Err(err).Str("module", "signal").Msg("sendJSON dropped")
	}
}

// fail reports an operation failure privately to the originating
// connection. Hardened mode substitutes the fixed safe messages.
func (ctl *Controller) fail(c core.SignalConnection, op Op, err error) {
	log.Warn().Err(err).Str("module", "signal").Str("op", string(op)).Msg("operation rejected")
	msg := err.Error()
	if ctl.hardened {
		msg = safeMessage(err)
	}
	ctl.sendJSON(c, errorMsg{
		Type:      "error",
		Message:   msg,
		Event:     op,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}
