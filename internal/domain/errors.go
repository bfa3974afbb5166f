package domain

import "errors"

var (
	ErrRoomNotFound      = errors.New("room not found")
	ErrRoomAlreadyExists = errors.New("room already exists")
	ErrRoomExpired       = errors.New("room has expired")
	ErrRoomFull          = errors.New("room is full")
	ErrNameTaken         = errors.New("name already taken in room")
	ErrMemberNotFound    = errors.New("member not found")
	ErrNotAdmin          = errors.New("only the admin may do that")

	ErrDuplicateTrack = errors.New("song already exists in room")
	ErrQuotaExceeded  = errors.New("room song limit reached")
	ErrTrackNotFound  = errors.New("song not found in room")

	ErrPlayerNotReady = errors.New("player did not become ready in time")

	ErrInvalidInput = errors.New("invalid input")
)
