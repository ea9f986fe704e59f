package game

import (
	"context"
	"errors"
	"sync"
	"time"
	"trivia/domain"
	"trivia/logger"
	"trivia/protocol"
)

const (
	reasonIdle     = "Room closed due to inactivity"
	reasonShutdown = "Server is shutting down"
)

// Lobby routes players to rooms by code. The mutex only guards the map;
// talking to a room always happens outside of it.
type Lobby struct {
	mu       sync.Mutex
	rooms    map[string]*Room
	closing  bool
	wg       sync.WaitGroup
	store    Store
	picker   QuestionPicker
	recorder ResultRecorder
	clock    Clock
	configs  RoomConfigs
}

func NewLobby(store Store, picker QuestionPicker, recorder ResultRecorder, clock Clock, configs RoomConfigs) *Lobby {
	return &Lobby{
		rooms:    make(map[string]*Room),
		store:    store,
		picker:   picker,
		recorder: recorder,
		clock:    clock,
		configs:  configs,
	}
}

// Join hands conn to the room registered under req.RoomCode, creating it
// when needed. A room that shuts down while the request is in flight is
// replaced by a fresh one under the same code.
func (l *Lobby) Join(ctx context.Context, conn Connection, req protocol.JoinRoom) (RoomHandle, domain.Player, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, domain.Player{}, err
		}

		room, err := l.roomFor(ctx, req.RoomCode)
		if err != nil {
			return nil, domain.Player{}, err
		}

		player, err := room.requestJoin(ctx, newRoomJoinRequest(conn, req))
		if errors.Is(err, ErrRoomClosed) {
			logger.Debugf("[Lobby] Room %s closed during join, retrying", req.RoomCode)
			continue
		}
		if err != nil {
			room.closeIfEmpty()
			return nil, domain.Player{}, err
		}
		return room, player, nil
	}
}

func (l *Lobby) roomFor(ctx context.Context, code string) (*Room, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closing {
		return nil, ErrLobbyClosed
	}
	if r, ok := l.rooms[code]; ok {
		return r, nil
	}

	stored, err := l.store.CreateRoom(ctx, code)
	if err != nil {
		return nil, err
	}

	r := NewRoom(stored, l.store, l.picker, l.recorder, l.clock, l.configs)
	r.SetParentLobby(l)
	l.rooms[code] = r

	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		r.GameLoop()
	}()

	logger.Infof("[Lobby] Room %s created. Rooms: %d", code, len(l.rooms))
	return r, nil
}

// release drops r from the map unless the code already points to a newer room.
func (l *Lobby) release(code string, r *Room) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if current, ok := l.rooms[code]; ok && current == r {
		delete(l.rooms, code)
		logger.Infof("[Lobby] Room %s removed. Rooms: %d", code, len(l.rooms))
	}
}

func (l *Lobby) lookup(code string) (*Room, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	r, ok := l.rooms[code]
	return r, ok
}

func (l *Lobby) Snapshot(ctx context.Context, code string) (RoomSnapshot, error) {
	r, ok := l.lookup(code)
	if !ok {
		return RoomSnapshot{}, domain.ErrRoomNotFound
	}

	room, err := l.store.GetRoom(ctx, r.Id())
	if err != nil {
		return RoomSnapshot{}, err
	}
	players, err := l.store.GetPlayersByRoom(ctx, r.Id())
	if err != nil {
		return RoomSnapshot{}, err
	}
	if players == nil {
		players = []domain.Player{}
	}

	return RoomSnapshot{Code: room.Code, Status: room.Status, Players: players}, nil
}

func (l *Lobby) RoomCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.rooms)
}

// ReapIdle closes every room without player activity for longer than ttl
// and returns how many were asked to close.
func (l *Lobby) ReapIdle(ttl time.Duration) int {
	now := l.clock.Now()

	l.mu.Lock()
	idle := make([]*Room, 0)
	for _, r := range l.rooms {
		if r.IdleFor(now) > ttl {
			idle = append(idle, r)
		}
	}
	l.mu.Unlock()

	for _, r := range idle {
		logger.Infof("[Lobby] Room %s idle for %s, closing", r.Code(), r.IdleFor(now).Round(time.Second))
		r.RequestClose(reasonIdle)
	}
	return len(idle)
}

// Shutdown stops accepting joins, closes every room and waits for their
// loops to exit or ctx to expire.
func (l *Lobby) Shutdown(ctx context.Context) error {
	l.mu.Lock()
	l.closing = true
	rooms := make([]*Room, 0, len(l.rooms))
	for _, r := range l.rooms {
		rooms = append(rooms, r)
	}
	l.mu.Unlock()

	for _, r := range rooms {
		r.RequestClose(reasonShutdown)
	}

	stopped := make(chan struct{})
	go func() {
		l.wg.Wait()
		close(stopped)
	}()

	select {
	case <-stopped:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
