package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

const (
	TypeJoinRoom     = "join_room"
	TypePlayerReady  = "player_ready"
	TypeStartGame    = "start_game"
	TypeSubmitAnswer = "submit_answer"
	TypeSendEmoji    = "send_emoji"
	TypeSendChat     = "send_chat"
	TypeLeaveRoom    = "leave_room"
)

var (
	ErrUnknownType    = errors.New("unknown-packet-type")
	ErrInvalidFrame   = errors.New("invalid-frame")
	ErrInvalidPayload = errors.New("invalid-payload")
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// ClientPacket is the closed set of messages a client may send.
type ClientPacket interface {
	Type() string
}

type JoinRoom struct {
	RoomCode   string `json:"roomCode" validate:"len=6,alphanum,uppercase"`
	PlayerName string `json:"playerName" validate:"min=1,max=20"`
	IsHost     bool   `json:"isHost"`
}

type PlayerReady struct{}

type StartGame struct{}

type SubmitAnswer struct {
	QuestionId     int   `json:"questionId"`
	SelectedAnswer int   `json:"selectedAnswer" validate:"min=-1,max=3"`
	TimeTaken      int64 `json:"timeTaken" validate:"min=0"`
}

type SendEmoji struct {
	Emoji string `json:"emoji" validate:"required,max=16"`
}

type SendChat struct {
	Message string `json:"message" validate:"min=1,max=200"`
}

type LeaveRoom struct{}

func (JoinRoom) Type() string     { return TypeJoinRoom }
func (PlayerReady) Type() string  { return TypePlayerReady }
func (StartGame) Type() string    { return TypeStartGame }
func (SubmitAnswer) Type() string { return TypeSubmitAnswer }
func (SendEmoji) Type() string    { return TypeSendEmoji }
func (SendChat) Type() string     { return TypeSendChat }
func (LeaveRoom) Type() string    { return TypeLeaveRoom }

type frame struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// DecodeClientPacket parses one text frame into its concrete packet and
// validates the payload.
func DecodeClientPacket(data []byte) (ClientPacket, error) {
	var f frame
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidFrame, err)
	}

	var packet ClientPacket
	switch f.Type {
	case TypeJoinRoom:
		p := JoinRoom{}
		if err := decodePayload(f.Payload, &p); err != nil {
			return nil, err
		}
		p.PlayerName = strings.TrimSpace(p.PlayerName)
		packet = p
	case TypePlayerReady:
		packet = PlayerReady{}
	case TypeStartGame:
		packet = StartGame{}
	case TypeSubmitAnswer:
		p := SubmitAnswer{}
		if err := decodePayload(f.Payload, &p); err != nil {
			return nil, err
		}
		packet = p
	case TypeSendEmoji:
		p := SendEmoji{}
		if err := decodePayload(f.Payload, &p); err != nil {
			return nil, err
		}
		packet = p
	case TypeSendChat:
		p := SendChat{}
		if err := decodePayload(f.Payload, &p); err != nil {
			return nil, err
		}
		p.Message = strings.TrimSpace(p.Message)
		packet = p
	case TypeLeaveRoom:
		packet = LeaveRoom{}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, f.Type)
	}

	if err := validate.Struct(packet); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidPayload, err)
	}
	return packet, nil
}

func decodePayload(raw json.RawMessage, dst any) error {
	if len(bytes.TrimSpace(raw)) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return fmt.Errorf("%w: missing payload", ErrInvalidPayload)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidPayload, err)
	}
	return nil
}

// EncodeClientPacket is the inverse of DecodeClientPacket. The server never
// sends client packets; clients written in Go and tests do.
func EncodeClientPacket(p ClientPacket) ([]byte, error) {
	payload, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	return json.Marshal(frame{Type: p.Type(), Payload: payload})
}
