package storage

import (
	"context"
	"slices"
	"sync"
	"time"
	"trivia/domain"

	"github.com/google/uuid"
)

type answerKey struct {
	playerId   string
	questionId int
}

// MemoryStore keeps live room state in process memory. Everything handed
// out is a copy.
type MemoryStore struct {
	mu          sync.RWMutex
	rooms       map[string]domain.Room
	codes       map[string]string
	players     map[string]domain.Player
	roomPlayers map[string][]string
	answers     map[string]map[answerKey]domain.Answer
	chat        map[string][]domain.ChatMessage
	now         func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		rooms:       make(map[string]domain.Room),
		codes:       make(map[string]string),
		players:     make(map[string]domain.Player),
		roomPlayers: make(map[string][]string),
		answers:     make(map[string]map[answerKey]domain.Answer),
		chat:        make(map[string][]domain.ChatMessage),
		now:         time.Now,
	}
}

func (s *MemoryStore) CreateRoom(ctx context.Context, code string) (domain.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.codes[code]; exists {
		return domain.Room{}, domain.ErrDuplicateRoomCode
	}

	room := domain.Room{
		Id:        uuid.NewString(),
		Code:      code,
		Status:    domain.StatusLobby,
		CreatedAt: s.now(),
	}
	s.rooms[room.Id] = room
	s.codes[code] = room.Id
	return room, nil
}

func (s *MemoryStore) GetRoom(ctx context.Context, id string) (domain.Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	room, ok := s.rooms[id]
	if !ok {
		return domain.Room{}, domain.ErrRoomNotFound
	}
	return room, nil
}

func (s *MemoryStore) GetRoomByCode(ctx context.Context, code string) (domain.Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.codes[code]
	if !ok {
		return domain.Room{}, domain.ErrRoomNotFound
	}
	return s.rooms[id], nil
}

func (s *MemoryStore) UpdateRoom(ctx context.Context, room domain.Room) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.rooms[room.Id]; !ok {
		return domain.ErrRoomNotFound
	}
	s.rooms[room.Id] = room
	return nil
}

func (s *MemoryStore) DeleteRoom(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	room, ok := s.rooms[id]
	if !ok {
		return nil
	}
	delete(s.rooms, id)
	delete(s.codes, room.Code)
	return nil
}

func (s *MemoryStore) CreatePlayer(ctx context.Context, player domain.Player) (domain.Player, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.rooms[player.RoomId]; !ok {
		return domain.Player{}, domain.ErrRoomNotFound
	}

	player.Id = uuid.NewString()
	player.JoinedAt = s.now()
	s.players[player.Id] = player
	s.roomPlayers[player.RoomId] = append(s.roomPlayers[player.RoomId], player.Id)
	return player, nil
}

func (s *MemoryStore) GetPlayer(ctx context.Context, id string) (domain.Player, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	player, ok := s.players[id]
	if !ok {
		return domain.Player{}, domain.ErrPlayerNotFound
	}
	return player, nil
}

// GetPlayersByRoom returns the players of a room in join order.
func (s *MemoryStore) GetPlayersByRoom(ctx context.Context, roomId string) ([]domain.Player, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.roomPlayers[roomId]
	players := make([]domain.Player, 0, len(ids))
	for _, id := range ids {
		players = append(players, s.players[id])
	}
	return players, nil
}

func (s *MemoryStore) UpdatePlayer(ctx context.Context, player domain.Player) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.players[player.Id]; !ok {
		return domain.ErrPlayerNotFound
	}
	s.players[player.Id] = player
	return nil
}

func (s *MemoryStore) DeletePlayer(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	player, ok := s.players[id]
	if !ok {
		return nil
	}
	delete(s.players, id)
	s.roomPlayers[player.RoomId] = slices.DeleteFunc(s.roomPlayers[player.RoomId], func(pid string) bool { return pid == id })
	if len(s.roomPlayers[player.RoomId]) == 0 {
		delete(s.roomPlayers, player.RoomId)
	}
	return nil
}

func (s *MemoryStore) DeletePlayersByRoom(ctx context.Context, roomId string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range s.roomPlayers[roomId] {
		delete(s.players, id)
	}
	delete(s.roomPlayers, roomId)
	return nil
}

func (s *MemoryStore) SaveAnswer(ctx context.Context, roomId string, answer domain.Answer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.rooms[roomId]; !ok {
		return domain.ErrRoomNotFound
	}
	if s.answers[roomId] == nil {
		s.answers[roomId] = make(map[answerKey]domain.Answer)
	}
	s.answers[roomId][answerKey{answer.PlayerId, answer.QuestionId}] = answer
	return nil
}

func (s *MemoryStore) GetAnswer(ctx context.Context, roomId, playerId string, questionId int) (domain.Answer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	answer, ok := s.answers[roomId][answerKey{playerId, questionId}]
	if !ok {
		return domain.Answer{}, domain.ErrAnswerNotFound
	}
	return answer, nil
}

func (s *MemoryStore) GetAnswersByQuestion(ctx context.Context, roomId string, questionId int) ([]domain.Answer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	answers := make([]domain.Answer, 0)
	for key, answer := range s.answers[roomId] {
		if key.questionId == questionId {
			answers = append(answers, answer)
		}
	}
	return answers, nil
}

func (s *MemoryStore) ClearAnswers(ctx context.Context, roomId string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.answers, roomId)
	return nil
}

func (s *MemoryStore) AddChatMessage(ctx context.Context, roomId string, msg domain.ChatMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.rooms[roomId]; !ok {
		return domain.ErrRoomNotFound
	}
	s.chat[roomId] = append(s.chat[roomId], msg)
	return nil
}

func (s *MemoryStore) GetChatMessages(ctx context.Context, roomId string) ([]domain.ChatMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.chat[roomId]), nil
}

func (s *MemoryStore) ClearChatMessages(ctx context.Context, roomId string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.chat, roomId)
	return nil
}
