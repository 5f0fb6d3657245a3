package signal

import (
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/codesketch/hub/internal/core"
	"github.com/codesketch/hub/internal/domain"
)

// handleJoin runs the join protocol: validate, admit, implicit leave,
// insert, arrival notice to the whole room, private document sync to
// the joiner only.
func (ctl *Controller) handleJoin(sid core.SessionID, clientID string, conn core.SignalConnection, data []byte) {
	var p joinPayload
	if err := decodePayload(data, &p); err != nil {
		ctl.fail(conn, OpJoin, err)
		return
	}
	if err := ctl.Limiter.Consume(clientID, OpJoin); err != nil {
		ctl.fail(conn, OpJoin, err)
		return
	}

	roomID := domain.RoomID(p.RoomID)
	username := strings.TrimSpace(p.Username)

	res, err := ctl.Orch.Join(sid, roomID, username)

	// The implicit leave has already happened even if admission into
	// the new room failed, so the old room is told either way.
	if res.Departed != nil {
		ctl.BroadcastRoom(res.Departed.RoomID, userLeftMsg{
			Type:     "userLeft",
			SocketID: sid,
			Username: res.Departed.Username,
		})
	}
	if err != nil {
		ctl.fail(conn, OpJoin, err)
		return
	}

	ctl.BroadcastRoom(roomID, userJoinedMsg{
		Type:     "userJoined",
		Clients:  res.Members,
		Username: username,
		SocketID: sid,
	})

	// Unicast: only the joiner converges from this.
	ctl.sendJSON(conn, syncCodeMsg{
		Type:     "syncCode",
		Code:     res.Room.Code,
		Language: res.Room.Language,
		Stdin:    res.Room.Stdin,
		Output:   res.Room.Output,
		IsError:  res.Room.IsError,
	})

	log.Info().Str("module", "signal").Str("sid", string(sid)).Str("room", p.RoomID).Str("username", username).Msg("join complete")
}

// handleDisconnect tears the session down and notifies whoever is
// left. Safe to call even if the connection never joined a room.
func (ctl *Controller) handleDisconnect(sid core.SessionID) {
	dep := ctl.Orch.Disconnect(sid)
	if dep == nil {
		return
	}
	ctl.BroadcastRoom(dep.RoomID, userLeftMsg{
		Type:     "userLeft",
		SocketID: sid,
		Username: dep.Username,
	})
}
