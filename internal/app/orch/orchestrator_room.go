package orch

import (
	"github.com/rs/zerolog/log"

	"github.com/codesketch/hub/internal/core"
	"github.com/codesketch/hub/internal/domain"
)

// DepartureNotice tells the caller who left which room so the
// remaining members can be notified. Nil when nobody is left.
type DepartureNotice struct {
	RoomID   domain.RoomID
	Username string
}

// JoinResult is everything the transport needs after a join attempt:
// the document snapshot for the private sync, the roster for the
// arrival notice, and the implicit departure from the previous room.
// The implicit leave happens before admission into the new room, so
// Departed is populated even when the join itself fails and the old
// room must still be notified.
type JoinResult struct {
	Room     domain.Room
	Members  []core.MemberView
	Departed *DepartureNotice
}

// Join moves the connection into roomID, leaving its previous room
// first if it had one. The result is non-nil even on error.
func (o *Orchestrator) Join(sid core.SessionID, roomID domain.RoomID, username string) (*JoinResult, error) {
	res := &JoinResult{}

	if oldRoom, ok := o.Registry.RoomOf(sid); ok {
		if dep := o.Rooms.RemoveMember(oldRoom, sid); dep != nil {
			res.Departed = &DepartureNotice{RoomID: oldRoom, Username: dep.Username}
		}
		o.Registry.ClearRoom(sid)
		log.Info().Str("module", "app.orch").Str("sid", string(sid)).Str("from_room", string(oldRoom)).Msg("implicit leave")
	}

	identity := o.Registry.Identity(sid)
	room, err := o.Rooms.AddMember(roomID, sid, domain.NewMember(username, identity))
	if err != nil {
		return res, err
	}
	o.Registry.SetRoom(sid, roomID, username)
	log.Info().Str("module", "app.orch").Str("sid", string(sid)).Str("room", string(roomID)).Str("username", username).Msg("joined room")

	res.Room = room
	res.Members = o.Rooms.Members(roomID)
	return res, nil
}

// Disconnect tears the session down. Always safe, even if the
// connection never joined a room.
func (o *Orchestrator) Disconnect(sid core.SessionID) *DepartureNotice {
	roomID, ok := o.Registry.RoomOf(sid)
	o.Registry.Unbind(sid)
	if !ok {
		return nil
	}
	dep := o.Rooms.RemoveMember(roomID, sid)
	if dep == nil {
		return nil
	}
	return &DepartureNotice{RoomID: roomID, Username: dep.Username}
}
