// Package signal is the websocket adapter: it owns the transport,
// decodes inbound operations, and fans results out to room members.
package signal

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/codesketch/hub/internal/app/orch"
	"github.com/codesketch/hub/internal/auth"
	"github.com/codesketch/hub/internal/config"
	"github.com/codesketch/hub/internal/core"
	"github.com/codesketch/hub/internal/domain"
	"github.com/codesketch/hub/internal/exec"
)

type Controller struct {
	Orch    *orch.Orchestrator
	Limiter *OpLimiter
	Exec    *exec.Client // nil: execution is delegated to clients

	hardened   bool
	readLimit  int64
	pingPeriod time.Duration
}

func NewController(o *orch.Orchestrator, limiter *OpLimiter, execClient *exec.Client, cfg *config.Config) *Controller {
	return &Controller{
		Orch:       o,
		Limiter:    limiter,
		Exec:       execClient,
		hardened:   cfg.Hardened(),
		readLimit:  cfg.ReadLimit,
		pingPeriod: cfg.PingPeriod,
	}
}

type WsSignalConn struct {
	conn *websocket.Conn
	send chan core.Frame

	mu     sync.RWMutex
	closed bool
}

func (c *WsSignalConn) TrySend(f core.Frame) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return ErrConnClosed
	}
	select {
	case c.send <- f:
	default:
		return ErrBackpressure
	}
	return nil
}

func (c *WsSignalConn) Close() {
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

// clientIdentifier resolves who to throttle: forwarded client address
// first, then the transport peer address, then the session id.
func clientIdentifier(c *gin.Context, sid core.SessionID) string {
	if xf := c.GetHeader("X-Forwarded-For"); xf != "" {
		if i := strings.IndexByte(xf, ','); i >= 0 {
			xf = xf[:i]
		}
		if s := strings.TrimSpace(xf); s != "" {
			return s
		}
	}
	if ip := c.ClientIP(); ip != "" {
		return ip
	}
	return string(sid)
}

// HandleSignal upgrades the request and runs the connection's pump
// pair until disconnect.
func (ctl *Controller) HandleSignal(ctx context.Context, c *gin.Context) {
	sid := core.SessionID(uuid.NewString())

	var identity *domain.Identity
	if v, ok := c.Get(auth.IdentityKey); ok {
		identity, _ = v.(*domain.Identity)
	}
	clientID := clientIdentifier(c, sid)

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("ws upgrade")
		return
	}
	ws.SetReadLimit(ctl.readLimit)
	log.Info().Str("module", "signal").Str("sid", string(sid)).Msg("new WS connection")

	conn := &WsSignalConn{
		conn: ws,
		send: make(chan core.Frame, 32),
	}

	ctx, cancel := context.WithCancel(ctx)
	ctl.Orch.Registry.Bind(sid, conn, identity, cancel)

	go ctl.writePump(ctx, conn)
	go ctl.readPump(ctx, sid, clientID, conn)
}

// BroadcastRoom delivers v to every member of the room, sender
// included.
func (ctl *Controller) BroadcastRoom(roomID domain.RoomID, v any) {
	for _, m := range ctl.Orch.Rooms.Members(roomID) {
		if conn, ok := ctl.Orch.Registry.Conn(m.SessionID); ok {
			ctl.sendJSON(conn, v)
		}
	}
}

// BroadcastFrom delivers v to every member except the originator,
// which already holds the authoritative value locally.
func (ctl *Controller) BroadcastFrom(from core.SessionID, roomID domain.RoomID, v any) {
	for _, m := range ctl.Orch.Rooms.Members(roomID) {
		if m.SessionID == from {
			continue
		}
		if conn, ok := ctl.Orch.Registry.Conn(m.SessionID); ok {
			ctl.sendJSON(conn, v)
		}
	}
}
