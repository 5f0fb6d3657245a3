package signal

import "github.com/codesketch/hub/internal/core"

func (ctl *Controller) handlePing(conn core.SignalConnection) {
	ctl.sendJSON(conn, pongMsg{Type: "pong"})
}
