package game

import (
	"context"
	"sync/atomic"
	"time"
	"trivia/domain"
)

// Room is the session controller of one game. Everything that changes the
// room goes through GameLoop, one event at a time.
type Room struct {
	id     string
	code   string
	ctx    context.Context
	cancel context.CancelFunc

	store    Store
	picker   QuestionPicker
	recorder ResultRecorder
	clock    Clock
	configs  RoomConfigs
	lobby    roomReleaser

	members      *registry
	questions    []domain.Question
	questionOpen bool
	timer        *roundTimer
	closed       bool
	lastActivity atomic.Int64

	inbox         chan ClientPacketEnvelope
	joinRequests  chan roomJoinRequest
	removals      chan Connection
	timerEvents   chan timerEvent
	closeRequests chan string
	vacancyChecks chan struct{}
	done          chan struct{}
}

func NewRoom(room domain.Room, store Store, picker QuestionPicker, recorder ResultRecorder, clock Clock, configs RoomConfigs) *Room {
	ctx, cancel := context.WithCancel(context.Background())
	r := &Room{
		id:            room.Id,
		code:          room.Code,
		ctx:           ctx,
		cancel:        cancel,
		store:         store,
		picker:        picker,
		recorder:      recorder,
		clock:         clock,
		configs:       configs,
		members:       newRegistry(room.Code),
		inbox:         make(chan ClientPacketEnvelope, 1024),
		joinRequests:  make(chan roomJoinRequest),
		removals:      make(chan Connection, 64),
		timerEvents:   make(chan timerEvent, 8),
		closeRequests: make(chan string, 1),
		vacancyChecks: make(chan struct{}, 1),
		done:          make(chan struct{}),
	}
	r.timer = newRoundTimer(clock, r.deliverTimerEvent)
	r.touch()
	return r
}

func (r *Room) Id() string {
	return r.id
}

func (r *Room) Code() string {
	return r.code
}

func (r *Room) SetParentLobby(l roomReleaser) {
	r.lobby = l
}

func (r *Room) touch() {
	r.lastActivity.Store(r.clock.Now().UnixNano())
}

// IdleFor reports how long the room has gone without player activity.
func (r *Room) IdleFor(now time.Time) time.Duration {
	return now.Sub(time.Unix(0, r.lastActivity.Load()))
}

func (r *Room) Done() <-chan struct{} {
	return r.done
}

func (r *Room) Send(ctx context.Context, e ClientPacketEnvelope) {
	select {
	case r.inbox <- e:
	case <-r.done:
	case <-ctx.Done():
	}
}

func (r *Room) RemoveMe(conn Connection) {
	select {
	case r.removals <- conn:
	case <-r.done:
	}
}

// RequestClose asks the room to disconnect everybody and tear itself down.
func (r *Room) RequestClose(reason string) {
	select {
	case r.closeRequests <- reason:
	case <-r.done:
	default:
	}
}

// closeIfEmpty asks the room to tear itself down if nobody is in it. A
// pending check already covers a second one.
func (r *Room) closeIfEmpty() {
	select {
	case r.vacancyChecks <- struct{}{}:
	case <-r.done:
	default:
	}
}

func (r *Room) requestJoin(ctx context.Context, req roomJoinRequest) (domain.Player, error) {
	select {
	case r.joinRequests <- req:
		res := <-req.result
		return res.player, res.err
	case <-r.done:
		return domain.Player{}, ErrRoomClosed
	case <-ctx.Done():
		return domain.Player{}, ctx.Err()
	}
}

func (r *Room) deliverTimerEvent(ev timerEvent) {
	select {
	case r.timerEvents <- ev:
	case <-r.done:
	}
}
