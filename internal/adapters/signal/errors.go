package signal

import (
	"errors"

	"github.com/codesketch/hub/internal/core"
	"github.com/codesketch/hub/internal/exec"
)

var (
	ErrBackpressure = errors.New("backpressure")
	ErrConnClosed   = errors.New("connection closed")
	ErrValidation   = errors.New("validation failed")
	ErrRateLimited  = errors.New("rate limit exceeded")
	ErrNotInRoom    = errors.New("not in a room")

	errInternal = errors.New("internal error")
)

// safeMessage maps the error taxonomy onto a fixed set of user-facing
// strings for hardened deployments. Raw text never leaves the process
// in that mode.
func safeMessage(err error) string {
	switch {
	case errors.Is(err, ErrValidation):
		return "Invalid request. Please check your input and try again."
	case errors.Is(err, ErrRateLimited):
		return "You are sending requests too quickly. Please slow down."
	case errors.Is(err, ErrNotInRoom):
		return "Join a room before editing."
	case errors.Is(err, core.ErrRoomFull):
		return "This room is full. Please try another room."
	case errors.Is(err, core.ErrCapacityExceeded):
		return "Server is at capacity. Please try again later."
	case errors.Is(err, exec.ErrExecutionTimeout):
		return "Code execution timed out."
	default:
		return "An error occurred. Please try again."
	}
}
