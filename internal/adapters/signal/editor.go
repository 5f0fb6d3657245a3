package signal

import (
	"github.com/codesketch/hub/internal/core"
)

// Document mutations share one template: validate, consume the
// operation's budget, resolve the room from session state (never from
// the payload), mutate, broadcast to everyone but the sender.

func (ctl *Controller) handleCodeChange(sid core.SessionID, clientID string, conn core.SignalConnection, data []byte) {
	var p codeChangePayload
	if err := decodePayload(data, &p); err != nil {
		ctl.fail(conn, OpCodeChange, err)
		return
	}
	if err := ctl.Limiter.Consume(clientID, OpCodeChange); err != nil {
		ctl.fail(conn, OpCodeChange, err)
		return
	}
	roomID, ok := ctl.Orch.RoomOf(sid)
	if !ok {
		ctl.fail(conn, OpCodeChange, ErrNotInRoom)
		return
	}

	ctl.Orch.Rooms.UpdateCode(roomID, p.Code)
	ctl.BroadcastFrom(sid, roomID, codeChangedMsg{Type: "codeChanged", Code: p.Code})
}

func (ctl *Controller) handleLanguageChange(sid core.SessionID, clientID string, conn core.SignalConnection, data []byte) {
	var p languageChangePayload
	if err := decodePayload(data, &p); err != nil {
		ctl.fail(conn, OpLanguageChange, err)
		return
	}
	if err := ctl.Limiter.Consume(clientID, OpLanguageChange); err != nil {
		ctl.fail(conn, OpLanguageChange, err)
		return
	}
	roomID, ok := ctl.Orch.RoomOf(sid)
	if !ok {
		ctl.fail(conn, OpLanguageChange, ErrNotInRoom)
		return
	}

	ctl.Orch.Rooms.UpdateLanguage(roomID, p.Language)
	ctl.BroadcastFrom(sid, roomID, languageChangedMsg{Type: "languageChanged", Language: p.Language})
}

func (ctl *Controller) handleInputChange(sid core.SessionID, clientID string, conn core.SignalConnection, data []byte) {
	var p inputChangePayload
	if err := decodePayload(data, &p); err != nil {
		ctl.fail(conn, OpInputChange, err)
		return
	}
	if err := ctl.Limiter.Consume(clientID, OpInputChange); err != nil {
		ctl.fail(conn, OpInputChange, err)
		return
	}
	roomID, ok := ctl.Orch.RoomOf(sid)
	if !ok {
		ctl.fail(conn, OpInputChange, ErrNotInRoom)
		return
	}

	ctl.Orch.Rooms.UpdateInput(roomID, p.Stdin)
	ctl.BroadcastFrom(sid, roomID, inputChangedMsg{Type: "inputChanged", Stdin: p.Stdin})
}
