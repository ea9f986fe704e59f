package game

import (
	"errors"
	"trivia/domain"
)

var (
	ErrSendBufferFull   = errors.New("send-buffer-full")
	ErrConnectionClosed = errors.New("connection-closed")
	ErrRoomClosed       = errors.New("room-closed")
)

// publicMessage turns an error into the text sent back in an error packet.
// Anything that is not a user error is reported as unknown.
func publicMessage(err error) string {
	for _, userErr := range []error{
		domain.ErrGameInProgress,
		domain.ErrNotHost,
		domain.ErrNoQuestions,
		domain.ErrMalformedPacket,
		domain.ErrAlreadyInRoom,
	} {
		if errors.Is(err, userErr) {
			return userErr.Error()
		}
	}
	return "unknown-error"
}

var ErrLobbyClosed = errors.New("lobby-closed")
