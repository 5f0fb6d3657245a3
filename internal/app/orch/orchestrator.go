// Package orch sequences the join/leave protocol between the
// connection registry and the room store.
package orch

import (
	"github.com/codesketch/hub/internal/app"
	"github.com/codesketch/hub/internal/core"
	"github.com/codesketch/hub/internal/domain"
)

type Orchestrator struct {
	Registry *app.Registry
	Rooms    *core.RoomStore
}

// RoomOf resolves the room a connection currently occupies. Mutating
// operations trust this, never a room id supplied in a payload.
func (o *Orchestrator) RoomOf(sid core.SessionID) (domain.RoomID, bool) {
	return o.Registry.RoomOf(sid)
}
