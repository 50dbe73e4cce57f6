package core

import "errors"

// Error codes for domain errors.
const (
	ErrCodeRoomNotFound = "room_not_found"
	ErrCodeNotInRoom    = "not_in_room"
	ErrCodeBadRequest   = "bad_request"
	ErrCodeNameTaken    = "name_taken"
)

var (
	ErrRoomNotFound = errors.New("room not found")
	ErrNotInRoom    = errors.New("not in room")
	// ErrNameTaken rejects a registration while another live client
	// holds the same username.
	ErrNameTaken = errors.New("username already connected")
	// ErrHubClosed reports that the hub stopped processing.
	ErrHubClosed = errors.New("hub stopped")
)

// CoreError wraps a code and human-readable message.
type CoreError struct {
	Code    string
	Message string
}

func (e *CoreError) Error() string {
	return e.Message
}

func coreError(code, msg string) *CoreError {
	return &CoreError{Code: code, Message: msg}
}
