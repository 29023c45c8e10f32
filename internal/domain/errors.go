package domain

import "errors"

var (
	ErrRoomNotFound    = errors.New("room not found")
	ErrInvalidRoomCode = errors.New("room code must be 4 to 8 letters or digits")
	ErrInvalidStroke   = errors.New("invalid stroke data")
	ErrInvalidCommand  = errors.New("invalid drawing command")
	ErrStore           = errors.New("drawing store failure")
)
