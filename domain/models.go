package domain

import "time"

type RoomStatus string

const (
	StatusLobby    RoomStatus = "lobby"
	StatusPlaying  RoomStatus = "playing"
	StatusFinished RoomStatus = "finished"
)

// CanTransitionTo reports whether a room may move from s to next.
// Rooms only ever move forward: lobby, playing, finished.
func (s RoomStatus) CanTransitionTo(next RoomStatus) bool {
	switch s {
	case StatusLobby:
		return next == StatusPlaying
	case StatusPlaying:
		return next == StatusFinished
	default:
		return false
	}
}

type Room struct {
	Id                   string     `json:"id"`
	Code                 string     `json:"code"`
	Status               RoomStatus `json:"status"`
	CurrentQuestionIndex int        `json:"currentQuestion"`
	CreatedAt            time.Time  `json:"createdAt"`
}

type Player struct {
	Id       string    `json:"id"`
	Name     string    `json:"name"`
	RoomId   string    `json:"roomId"`
	Score    int       `json:"score"`
	Streak   int       `json:"streak"`
	Ready    bool      `json:"ready"`
	IsHost   bool      `json:"isHost"`
	JoinedAt time.Time `json:"joinedAt"`
}

type Question struct {
	Id            int      `json:"id"`
	Text          string   `json:"text"`
	Options       []string `json:"options"`
	CorrectAnswer int      `json:"correctAnswer"`
	TimeLimit     int      `json:"timeLimit"` // seconds
	Category      string   `json:"category,omitempty"`
}

func (q Question) Duration() time.Duration {
	return time.Duration(q.TimeLimit) * time.Second
}

// NoAnswer is the selected index a client reports when its countdown ran out.
const NoAnswer = -1

type Answer struct {
	PlayerId       string `json:"playerId"`
	QuestionId     int    `json:"questionId"`
	SelectedAnswer int    `json:"selectedAnswer"`
	TimeTaken      int64  `json:"timeTaken"` // milliseconds
	IsCorrect      bool   `json:"isCorrect"`
	PointsEarned   int    `json:"pointsEarned"`
}

type ChatMessage struct {
	Id         string `json:"id"`
	PlayerId   string `json:"playerId"`
	PlayerName string `json:"playerName"`
	Message    string `json:"message,omitempty"`
	Emoji      string `json:"emoji,omitempty"`
	Timestamp  int64  `json:"timestamp"`
}

// GameResult is what gets archived when a room reaches the finished state.
type GameResult struct {
	RoomCode   string         `json:"roomCode"`
	FinishedAt time.Time      `json:"finishedAt"`
	Questions  int            `json:"questions"`
	Standings  []StandingLine `json:"standings"`
}

type StandingLine struct {
	Rank   int    `json:"rank"`
	Name   string `json:"name"`
	Score  int    `json:"score"`
	Streak int    `json:"streak"`
}
