package protocol

import (
	"encoding/json"
	"trivia/domain"
)

const (
	TypeJoined         = "joined"
	TypePlayersUpdated = "players_updated"
	TypeSendQuestion   = "send_question"
	TypeAnswerResult   = "answer_result"
	TypeUpdateScores   = "update_scores"
	TypeChatMessage    = "chat_message"
	TypeGameFinished   = "game_finished"
	TypeError          = "error"
)

type ServerPacket struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

func (p *ServerPacket) Marshal() ([]byte, error) {
	return json.Marshal(p)
}

type JoinedPayload struct {
	Player domain.Player `json:"player"`
	Room   domain.Room   `json:"room"`
}

type PlayersPayload struct {
	Players []domain.Player `json:"players"`
}

// PublicQuestion is a question as players see it, without the answer.
type PublicQuestion struct {
	Id        int      `json:"id"`
	Text      string   `json:"text"`
	Options   []string `json:"options"`
	TimeLimit int      `json:"timeLimit"`
	Category  string   `json:"category,omitempty"`
}

type SendQuestionPayload struct {
	Question       PublicQuestion `json:"question"`
	QuestionNumber int            `json:"questionNumber"`
	TotalQuestions int            `json:"totalQuestions"`
}

type AnswerResultPayload struct {
	IsCorrect     bool `json:"isCorrect"`
	CorrectAnswer int  `json:"correctAnswer"`
	PointsEarned  int  `json:"pointsEarned"`
	NewScore      int  `json:"newScore"`
}

type ChatMessagePayload struct {
	Message domain.ChatMessage `json:"message"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}

func MakePacketJoined(player domain.Player, room domain.Room) *ServerPacket {
	return &ServerPacket{Type: TypeJoined, Payload: JoinedPayload{Player: player, Room: room}}
}

func MakePacketPlayersUpdated(players []domain.Player) *ServerPacket {
	return &ServerPacket{Type: TypePlayersUpdated, Payload: PlayersPayload{Players: nonNil(players)}}
}

func MakePacketSendQuestion(q domain.Question, questionNumber, totalQuestions int) *ServerPacket {
	return &ServerPacket{
		Type: TypeSendQuestion,
		Payload: SendQuestionPayload{
			Question: PublicQuestion{
				Id:        q.Id,
				Text:      q.Text,
				Options:   q.Options,
				TimeLimit: q.TimeLimit,
				Category:  q.Category,
			},
			QuestionNumber: questionNumber,
			TotalQuestions: totalQuestions,
		},
	}
}

func MakePacketAnswerResult(isCorrect bool, correctAnswer, pointsEarned, newScore int) *ServerPacket {
	return &ServerPacket{
		Type: TypeAnswerResult,
		Payload: AnswerResultPayload{
			IsCorrect:     isCorrect,
			CorrectAnswer: correctAnswer,
			PointsEarned:  pointsEarned,
			NewScore:      newScore,
		},
	}
}

func MakePacketUpdateScores(players []domain.Player) *ServerPacket {
	return &ServerPacket{Type: TypeUpdateScores, Payload: PlayersPayload{Players: nonNil(players)}}
}

func MakePacketChatMessage(msg domain.ChatMessage) *ServerPacket {
	return &ServerPacket{Type: TypeChatMessage, Payload: ChatMessagePayload{Message: msg}}
}

func MakePacketGameFinished(players []domain.Player) *ServerPacket {
	return &ServerPacket{Type: TypeGameFinished, Payload: PlayersPayload{Players: nonNil(players)}}
}

func MakePacketError(message string) *ServerPacket {
	return &ServerPacket{Type: TypeError, Payload: ErrorPayload{Message: message}}
}

func nonNil(players []domain.Player) []domain.Player {
	if players == nil {
		return []domain.Player{}
	}
	return players
}
