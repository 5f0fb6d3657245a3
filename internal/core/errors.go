package core

import "errors"

var (
	ErrCapacityExceeded = errors.New("maximum number of rooms reached")
	ErrRoomFull         = errors.New("room is full")
)
