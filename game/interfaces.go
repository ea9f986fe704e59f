package game

import (
	"context"
	"time"
	"trivia/domain"
	"trivia/protocol"
)

type WebsocketConnection interface {
	Close()
	Write(data []byte) error
	Read() ([]byte, error)
	Ping() error
}

// Connection is the room side view of a connected player.
type Connection interface {
	Send(data []byte) error
	Release()
}

// RoomHandle is what a connected player talks to once it has joined.
type RoomHandle interface {
	Send(ctx context.Context, e ClientPacketEnvelope)
	RemoveMe(conn Connection)
}

type Joiner interface {
	Join(ctx context.Context, conn Connection, req protocol.JoinRoom) (RoomHandle, domain.Player, error)
}

type Store interface {
	CreateRoom(ctx context.Context, code string) (domain.Room, error)
	GetRoom(ctx context.Context, id string) (domain.Room, error)
	GetRoomByCode(ctx context.Context, code string) (domain.Room, error)
	UpdateRoom(ctx context.Context, room domain.Room) error
	DeleteRoom(ctx context.Context, id string) error

	CreatePlayer(ctx context.Context, player domain.Player) (domain.Player, error)
	GetPlayer(ctx context.Context, id string) (domain.Player, error)
	GetPlayersByRoom(ctx context.Context, roomId string) ([]domain.Player, error)
	UpdatePlayer(ctx context.Context, player domain.Player) error
	DeletePlayer(ctx context.Context, id string) error
	DeletePlayersByRoom(ctx context.Context, roomId string) error

	SaveAnswer(ctx context.Context, roomId string, answer domain.Answer) error
	GetAnswer(ctx context.Context, roomId, playerId string, questionId int) (domain.Answer, error)
	GetAnswersByQuestion(ctx context.Context, roomId string, questionId int) ([]domain.Answer, error)
	ClearAnswers(ctx context.Context, roomId string) error

	AddChatMessage(ctx context.Context, roomId string, msg domain.ChatMessage) error
	GetChatMessages(ctx context.Context, roomId string) ([]domain.ChatMessage, error)
	ClearChatMessages(ctx context.Context, roomId string) error
}

type QuestionPicker interface {
	Pick(count int) []domain.Question
}

type ResultRecorder interface {
	RecordGame(ctx context.Context, result domain.GameResult) error
}

type ResultReader interface {
	RecentResults(ctx context.Context, limit int) ([]domain.GameResult, error)
}

type Timer interface {
	Stop() bool
}

type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}
