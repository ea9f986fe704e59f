package game

import (
	"time"
	"trivia/domain"
	"trivia/protocol"
)

type RoomConfigs struct {
	QuestionsPerGame int
	FeedbackDelay    time.Duration
	DeadlineBuffer   time.Duration
}

func DefaultRoomConfigs() RoomConfigs {
	return RoomConfigs{
		QuestionsPerGame: 10,
		FeedbackDelay:    2 * time.Second,
		DeadlineBuffer:   2 * time.Second,
	}
}

type ClientPacketEnvelope struct {
	packet protocol.ClientPacket
	from   Connection
}

func NewClientPacketEnvelope(packet protocol.ClientPacket, from Connection) ClientPacketEnvelope {
	return ClientPacketEnvelope{packet: packet, from: from}
}

type roomJoinRequest struct {
	conn   Connection
	name   string
	isHost bool
	result chan joinResult
}

type joinResult struct {
	player domain.Player
	err    error
}

func newRoomJoinRequest(conn Connection, req protocol.JoinRoom) roomJoinRequest {
	return roomJoinRequest{
		conn:   conn,
		name:   req.PlayerName,
		isHost: req.IsHost,
		result: make(chan joinResult, 1),
	}
}

type RoomSnapshot struct {
	Code    string            `json:"code"`
	Status  domain.RoomStatus `json:"status"`
	Players []domain.Player   `json:"players"`
}

type roomReleaser interface {
	release(code string, r *Room)
}
