package game

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"testing"
	"time"
	"trivia/domain"
	"trivia/protocol"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// --- WebsocketConnection ---

type MockWebsocketConnection struct {
	mock.Mock
}

func (m *MockWebsocketConnection) Close() {
	m.Called()
}

func (m *MockWebsocketConnection) Write(data []byte) error {
	args := m.Called(data)
	return args.Error(0)
}

func (m *MockWebsocketConnection) Read() ([]byte, error) {
	args := m.Called()
	return args.Get(0).([]byte), args.Error(1)
}

func (m *MockWebsocketConnection) Ping() error {
	args := m.Called()
	return args.Error(0)
}

// --- QuestionPicker ---

type MockQuestionPicker struct {
	mock.Mock
}

func (m *MockQuestionPicker) Pick(count int) []domain.Question {
	args := m.Called(count)
	return args.Get(0).([]domain.Question)
}

// --- ResultRecorder ---

type MockResultRecorder struct {
	mock.Mock
}

func (m *MockResultRecorder) RecordGame(ctx context.Context, result domain.GameResult) error {
	args := m.Called(ctx, result)
	return args.Error(0)
}

// --- ResultReader ---

type MockResultReader struct {
	mock.Mock
}

func (m *MockResultReader) RecentResults(ctx context.Context, limit int) ([]domain.GameResult, error) {
	args := m.Called(ctx, limit)
	results, _ := args.Get(0).([]domain.GameResult)
	return results, args.Error(1)
}

// --- RoomLookup ---

type MockRoomLookup struct {
	mock.Mock
}

func (m *MockRoomLookup) Snapshot(ctx context.Context, code string) (RoomSnapshot, error) {
	args := m.Called(ctx, code)
	return args.Get(0).(RoomSnapshot), args.Error(1)
}

// --- Joiner ---

type MockJoiner struct {
	mock.Mock
}

func (m *MockJoiner) Join(ctx context.Context, conn Connection, req protocol.JoinRoom) (RoomHandle, domain.Player, error) {
	args := m.Called(ctx, conn, req)
	handle, _ := args.Get(0).(RoomHandle)
	return handle, args.Get(1).(domain.Player), args.Error(2)
}

// --- RoomHandle ---

type MockRoomHandle struct {
	mock.Mock
}

func (m *MockRoomHandle) Send(ctx context.Context, e ClientPacketEnvelope) {
	m.Called(ctx, e)
}

func (m *MockRoomHandle) RemoveMe(conn Connection) {
	m.Called(conn)
}

// --- Connection ---

// recordingConnection keeps every frame it is sent, in order.
type recordingConnection struct {
	mu       sync.Mutex
	frames   [][]byte
	sendErr  error
	released bool
}

func (c *recordingConnection) Send(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sendErr != nil {
		return c.sendErr
	}
	c.frames = append(c.frames, data)
	return nil
}

func (c *recordingConnection) Release() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.released = true
}

func (c *recordingConnection) isReleased() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.released
}

type receivedPacket struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

func (c *recordingConnection) packets(t *testing.T) []receivedPacket {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()

	packets := make([]receivedPacket, 0, len(c.frames))
	for _, f := range c.frames {
		var p receivedPacket
		require.NoError(t, json.Unmarshal(f, &p))
		packets = append(packets, p)
	}
	return packets
}

func (c *recordingConnection) types(t *testing.T) []string {
	t.Helper()
	types := []string{}
	for _, p := range c.packets(t) {
		types = append(types, p.Type)
	}
	return types
}

// last decodes the payload of the most recent packet of the given type.
func (c *recordingConnection) last(t *testing.T, packetType string, dst any) {
	t.Helper()
	packets := c.packets(t)
	for i := len(packets) - 1; i >= 0; i-- {
		if packets[i].Type == packetType {
			require.NoError(t, json.Unmarshal(packets[i].Payload, dst))
			return
		}
	}
	require.Failf(t, "packet not received", "no %s packet among %v", packetType, c.types(t))
}

func (c *recordingConnection) reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frames = nil
}

// --- Clock ---

type fakeTimer struct {
	clock   *fakeClock
	at      time.Time
	f       func()
	stopped bool
	fired   bool
}

func (ft *fakeTimer) Stop() bool {
	ft.clock.mu.Lock()
	defer ft.clock.mu.Unlock()
	wasPending := !ft.stopped && !ft.fired
	ft.stopped = true
	return wasPending
}

// fakeClock only moves when Advance is called. Due callbacks run
// synchronously inside Advance.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{clock: c, at: c.now.Add(d), f: f}
	c.timers = append(c.timers, t)
	return t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	due := make([]*fakeTimer, 0)
	for _, t := range c.timers {
		if !t.stopped && !t.fired && !t.at.After(c.now) {
			t.fired = true
			due = append(due, t)
		}
	}
	c.mu.Unlock()

	sort.SliceStable(due, func(i, j int) bool { return due[i].at.Before(due[j].at) })
	for _, t := range due {
		t.f()
	}
}

// pending returns the delays of timers that have neither fired nor been stopped.
func (c *fakeClock) pending() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	delays := []time.Duration{}
	for _, t := range c.timers {
		if !t.stopped && !t.fired {
			delays = append(delays, t.at.Sub(c.now))
		}
	}
	return delays
}
