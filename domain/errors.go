package domain

import "errors"

var (
	UnexpectedDatabaseError = errors.New("unexpected-database-error")
	ErrRoomNotFound         = errors.New("room-not-found")
	ErrPlayerNotFound       = errors.New("player-not-found")
	ErrAnswerNotFound       = errors.New("answer-not-found")
	ErrDuplicateRoomCode    = errors.New("duplicate-room-code")
)

// Errors surfaced to the offending connection as an error packet.
var (
	ErrGameInProgress  = errors.New("Game already in progress")
	ErrNotHost         = errors.New("Only the host can start the game")
	ErrNoQuestions     = errors.New("No questions available")
	ErrMalformedPacket = errors.New("Malformed message")
	ErrAlreadyInRoom   = errors.New("Already in a room")
)
