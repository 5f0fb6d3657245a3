package signal

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/codesketch/hub/internal/core"
	"github.com/codesketch/hub/internal/domain"
	"github.com/codesketch/hub/internal/exec"
)

// handleExecuteCode does not mutate document state. It announces the
// run to the whole room (sender included, so everyone sees who is
// running code) and, when a server-side execution backend is
// configured, dispatches the run itself.
func (ctl *Controller) handleExecuteCode(sid core.SessionID, clientID string, conn core.SignalConnection, data []byte) {
	var p executeCodePayload
	if err := decodePayload(data, &p); err != nil {
		ctl.fail(conn, OpExecuteCode, err)
		return
	}
	if err := ctl.Limiter.Consume(clientID, OpExecuteCode); err != nil {
		ctl.fail(conn, OpExecuteCode, err)
		return
	}

	username := ctl.Orch.Registry.Username(sid)
	roomID := domain.RoomID(p.RoomID)

	ctl.BroadcastRoom(roomID, executionStartedMsg{Type: "executionStarted", Username: username})

	if ctl.Exec != nil {
		go ctl.runServerSide(roomID, username, p)
	}
}

func (ctl *Controller) runServerSide(roomID domain.RoomID, username string, p executeCodePayload) {
	res, err := ctl.Exec.Run(context.Background(), exec.Request{
		Language:   string(p.Language),
		SourceCode: p.Code,
		Stdin:      p.Stdin,
	})

	var output string
	var isError bool
	switch {
	case err != nil:
		isError = true
		output = err.Error()
		if ctl.hardened {
			output = safeMessage(err)
		}
		log.Warn().Err(err).Str("module", "signal").Str("room", string(roomID)).Msg("server-side execution failed")
	case res.ExitCode != 0 || res.Stderr != "":
		isError = true
		output = res.Stderr
		if output == "" {
			output = res.Stdout
		}
	default:
		output = res.Stdout
	}

	ctl.Orch.Rooms.UpdateOutput(roomID, output, isError)
	ctl.BroadcastRoom(roomID, executionResultMsg{
		Type:     "executionResult",
		Output:   output,
		IsError:  isError,
		Username: username,
	})
}

// handleExecutionResult persists an outcome reported back by the
// connection that ran the code, then rebroadcasts it so every observer
// matches the stored state on next sync.
func (ctl *Controller) handleExecutionResult(sid core.SessionID, conn core.SignalConnection, data []byte) {
	var p executionResultPayload
	if err := decodePayload(data, &p); err != nil {
		ctl.fail(conn, OpExecutionResult, err)
		return
	}
	roomID, ok := ctl.Orch.RoomOf(sid)
	if !ok {
		ctl.fail(conn, OpExecutionResult, ErrNotInRoom)
		return
	}

	ctl.Orch.Rooms.UpdateOutput(roomID, *p.Output, p.IsError)
	ctl.BroadcastRoom(roomID, executionResultMsg{
		Type:     "executionResult",
		Output:   *p.Output,
		IsError:  p.IsError,
		Username: ctl.Orch.Registry.Username(sid),
	})
}
