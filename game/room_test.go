package game

import (
	"context"
	"testing"
	"time"
	"trivia/domain"
	"trivia/protocol"
	"trivia/storage"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var testQuestions = []domain.Question{
	{Id: 101, Text: "2 + 2?", Options: []string{"3", "4", "5", "6"}, CorrectAnswer: 1, TimeLimit: 15},
	{Id: 102, Text: "Capital of Italy?", Options: []string{"Rome", "Milan", "Turin", "Naples"}, CorrectAnswer: 0, TimeLimit: 10},
	{Id: 103, Text: "Largest planet?", Options: []string{"Mars", "Venus", "Jupiter", "Earth"}, CorrectAnswer: 2, TimeLimit: 20},
}

type roomFixture struct {
	room     *Room
	store    *storage.MemoryStore
	clock    *fakeClock
	picker   *MockQuestionPicker
	recorder *MockResultRecorder
}

func newRoomFixture(t *testing.T, questions []domain.Question) *roomFixture {
	t.Helper()
	store := storage.NewMemoryStore()
	stored, err := store.CreateRoom(context.Background(), "ABC123")
	require.NoError(t, err)

	picker := &MockQuestionPicker{}
	picker.On("Pick", 10).Return(questions)
	recorder := &MockResultRecorder{}
	clock := newFakeClock()

	return &roomFixture{
		room:     NewRoom(stored, store, picker, recorder, clock, DefaultRoomConfigs()),
		store:    store,
		clock:    clock,
		picker:   picker,
		recorder: recorder,
	}
}

func (f *roomFixture) join(t *testing.T, name string, isHost bool) (*recordingConnection, domain.Player) {
	t.Helper()
	conn := &recordingConnection{}
	player, err := f.tryJoin(conn, name, isHost)
	require.NoError(t, err)
	return conn, player
}

func (f *roomFixture) tryJoin(conn Connection, name string, isHost bool) (domain.Player, error) {
	req := newRoomJoinRequest(conn, protocol.JoinRoom{RoomCode: "ABC123", PlayerName: name, IsHost: isHost})
	f.room.handleJoinRequest(req)
	res := <-req.result
	return res.player, res.err
}

func (f *roomFixture) send(conn Connection, packet protocol.ClientPacket) {
	f.room.handleEnvelope(NewClientPacketEnvelope(packet, conn))
}

// advanceClock moves the fake clock and feeds due timer events to the room
// the way GameLoop would.
func (f *roomFixture) advanceClock(d time.Duration) {
	f.clock.Advance(d)
	for {
		select {
		case ev := <-f.room.timerEvents:
			f.room.handleTimerEvent(ev)
		default:
			return
		}
	}
}

func (f *roomFixture) roomState(t *testing.T) domain.Room {
	t.Helper()
	room, err := f.store.GetRoom(context.Background(), f.room.Id())
	require.NoError(t, err)
	return room
}

func (f *roomFixture) player(t *testing.T, id string) domain.Player {
	t.Helper()
	player, err := f.store.GetPlayer(context.Background(), id)
	require.NoError(t, err)
	return player
}

func TestRoom_Join(t *testing.T) {
	t.Parallel()

	t.Run("first player is host and later host claims are ignored", func(t *testing.T) {
		t.Parallel()
		f := newRoomFixture(t, testQuestions)

		aliceConn, alice := f.join(t, "alice", false)
		bobConn, bob := f.join(t, "bob", true)

		assert.True(t, alice.IsHost)
		assert.False(t, bob.IsHost)

		assert.Equal(t, []string{protocol.TypeJoined, protocol.TypePlayersUpdated, protocol.TypePlayersUpdated}, aliceConn.types(t))
		assert.Equal(t, []string{protocol.TypeJoined, protocol.TypePlayersUpdated}, bobConn.types(t))

		var joined protocol.JoinedPayload
		bobConn.last(t, protocol.TypeJoined, &joined)
		assert.Equal(t, bob.Id, joined.Player.Id)
		assert.Equal(t, "ABC123", joined.Room.Code)
		assert.Equal(t, domain.StatusLobby, joined.Room.Status)

		var update protocol.PlayersPayload
		aliceConn.last(t, protocol.TypePlayersUpdated, &update)
		names := []string{}
		for _, p := range update.Players {
			names = append(names, p.Name)
		}
		assert.Equal(t, []string{"alice", "bob"}, names)
	})

	t.Run("join while playing is rejected", func(t *testing.T) {
		t.Parallel()
		f := newRoomFixture(t, testQuestions)
		hostConn, _ := f.join(t, "alice", true)
		f.send(hostConn, protocol.StartGame{})

		_, err := f.tryJoin(&recordingConnection{}, "late", false)
		assert.ErrorIs(t, err, domain.ErrGameInProgress)

		players, err := f.store.GetPlayersByRoom(context.Background(), f.room.Id())
		require.NoError(t, err)
		assert.Len(t, players, 1)
	})

	t.Run("same connection cannot join twice", func(t *testing.T) {
		t.Parallel()
		f := newRoomFixture(t, testQuestions)
		conn, _ := f.join(t, "alice", true)

		_, err := f.tryJoin(conn, "alice again", false)
		assert.ErrorIs(t, err, domain.ErrAlreadyInRoom)
	})
}

func TestRoom_PlayerReady(t *testing.T) {
	t.Parallel()
	f := newRoomFixture(t, testQuestions)
	aliceConn, alice := f.join(t, "alice", true)
	bobConn, _ := f.join(t, "bob", false)
	bobConn.reset()

	f.send(aliceConn, protocol.PlayerReady{})
	f.send(aliceConn, protocol.PlayerReady{})

	assert.True(t, f.player(t, alice.Id).Ready)
	assert.Equal(t, []string{protocol.TypePlayersUpdated, protocol.TypePlayersUpdated}, bobConn.types(t))
}

func TestRoom_StartGame(t *testing.T) {
	t.Parallel()

	t.Run("only the host can start", func(t *testing.T) {
		t.Parallel()
		f := newRoomFixture(t, testQuestions)
		f.join(t, "alice", true)
		bobConn, _ := f.join(t, "bob", false)
		bobConn.reset()

		f.send(bobConn, protocol.StartGame{})

		var errPayload protocol.ErrorPayload
		bobConn.last(t, protocol.TypeError, &errPayload)
		assert.Equal(t, "Only the host can start the game", errPayload.Message)
		assert.Equal(t, domain.StatusLobby, f.roomState(t).Status)
		f.picker.AssertNotCalled(t, "Pick", mock.Anything)
	})

	t.Run("host start sends the first question and arms the deadline", func(t *testing.T) {
		t.Parallel()
		f := newRoomFixture(t, testQuestions)
		aliceConn, _ := f.join(t, "alice", true)
		bobConn, _ := f.join(t, "bob", false)
		aliceConn.reset()
		bobConn.reset()

		f.send(aliceConn, protocol.StartGame{})

		room := f.roomState(t)
		assert.Equal(t, domain.StatusPlaying, room.Status)
		assert.Equal(t, 0, room.CurrentQuestionIndex)

		for _, conn := range []*recordingConnection{aliceConn, bobConn} {
			packets := conn.packets(t)
			require.Len(t, packets, 1)
			assert.Equal(t, protocol.TypeSendQuestion, packets[0].Type)
			assert.NotContains(t, string(packets[0].Payload), "correctAnswer")

			var q protocol.SendQuestionPayload
			conn.last(t, protocol.TypeSendQuestion, &q)
			assert.Equal(t, 101, q.Question.Id)
			assert.Equal(t, 1, q.QuestionNumber)
			assert.Equal(t, 3, q.TotalQuestions)
		}

		assert.Equal(t, []time.Duration{17 * time.Second}, f.clock.pending())
	})

	t.Run("second start is ignored", func(t *testing.T) {
		t.Parallel()
		f := newRoomFixture(t, testQuestions)
		aliceConn, _ := f.join(t, "alice", true)
		f.send(aliceConn, protocol.StartGame{})
		aliceConn.reset()

		f.send(aliceConn, protocol.StartGame{})

		assert.Empty(t, aliceConn.types(t))
		f.picker.AssertNumberOfCalls(t, "Pick", 1)
	})

	t.Run("empty question bank", func(t *testing.T) {
		t.Parallel()
		f := newRoomFixture(t, []domain.Question{})
		aliceConn, _ := f.join(t, "alice", true)

		f.send(aliceConn, protocol.StartGame{})

		var errPayload protocol.ErrorPayload
		aliceConn.last(t, protocol.TypeError, &errPayload)
		assert.Equal(t, domain.ErrNoQuestions.Error(), errPayload.Message)
		assert.Equal(t, domain.StatusLobby, f.roomState(t).Status)
	})
}

func TestRoom_SubmitAnswer(t *testing.T) {
	t.Parallel()

	t.Run("scores, replies and waits for the others", func(t *testing.T) {
		t.Parallel()
		f := newRoomFixture(t, testQuestions)
		aliceConn, alice := f.join(t, "alice", true)
		bobConn, _ := f.join(t, "bob", false)
		f.send(aliceConn, protocol.StartGame{})
		aliceConn.reset()
		bobConn.reset()

		f.send(aliceConn, protocol.SubmitAnswer{QuestionId: 101, SelectedAnswer: 1, TimeTaken: 3000})

		assert.Equal(t, []string{protocol.TypeAnswerResult, protocol.TypeUpdateScores}, aliceConn.types(t))
		assert.Equal(t, []string{protocol.TypeUpdateScores}, bobConn.types(t))

		var result protocol.AnswerResultPayload
		aliceConn.last(t, protocol.TypeAnswerResult, &result)
		assert.Equal(t, protocol.AnswerResultPayload{IsCorrect: true, CorrectAnswer: 1, PointsEarned: 140, NewScore: 140}, result)

		stored := f.player(t, alice.Id)
		assert.Equal(t, 140, stored.Score)
		assert.Equal(t, 1, stored.Streak)
		assert.Equal(t, 0, f.roomState(t).CurrentQuestionIndex)
	})

	t.Run("duplicate answers are ignored", func(t *testing.T) {
		t.Parallel()
		f := newRoomFixture(t, testQuestions)
		aliceConn, alice := f.join(t, "alice", true)
		f.join(t, "bob", false)
		f.send(aliceConn, protocol.StartGame{})

		f.send(aliceConn, protocol.SubmitAnswer{QuestionId: 101, SelectedAnswer: 0, TimeTaken: 1000})
		aliceConn.reset()
		f.send(aliceConn, protocol.SubmitAnswer{QuestionId: 101, SelectedAnswer: 1, TimeTaken: 1000})

		assert.Empty(t, aliceConn.types(t))
		assert.Equal(t, 0, f.player(t, alice.Id).Score)
	})

	t.Run("answers for another question are ignored", func(t *testing.T) {
		t.Parallel()
		f := newRoomFixture(t, testQuestions)
		aliceConn, alice := f.join(t, "alice", true)
		f.send(aliceConn, protocol.StartGame{})
		aliceConn.reset()

		f.send(aliceConn, protocol.SubmitAnswer{QuestionId: 102, SelectedAnswer: 0, TimeTaken: 1000})

		assert.Empty(t, aliceConn.types(t))
		assert.Equal(t, 0, f.player(t, alice.Id).Score)
	})

	t.Run("answers in the lobby are ignored", func(t *testing.T) {
		t.Parallel()
		f := newRoomFixture(t, testQuestions)
		aliceConn, _ := f.join(t, "alice", true)
		aliceConn.reset()

		f.send(aliceConn, protocol.SubmitAnswer{QuestionId: 101, SelectedAnswer: 1, TimeTaken: 1000})

		assert.Empty(t, aliceConn.types(t))
	})
}

func TestRoom_Advance(t *testing.T) {
	t.Parallel()

	t.Run("everybody answered moves on after the feedback delay", func(t *testing.T) {
		t.Parallel()
		f := newRoomFixture(t, testQuestions)
		aliceConn, _ := f.join(t, "alice", true)
		bobConn, _ := f.join(t, "bob", false)
		f.send(aliceConn, protocol.StartGame{})

		f.send(aliceConn, protocol.SubmitAnswer{QuestionId: 101, SelectedAnswer: 1, TimeTaken: 1000})
		f.send(bobConn, protocol.SubmitAnswer{QuestionId: 101, SelectedAnswer: 2, TimeTaken: 2000})

		assert.Equal(t, 1, f.roomState(t).CurrentQuestionIndex)
		assert.Equal(t, []time.Duration{2 * time.Second}, f.clock.pending())

		bobConn.reset()
		f.advanceClock(2 * time.Second)

		var q protocol.SendQuestionPayload
		bobConn.last(t, protocol.TypeSendQuestion, &q)
		assert.Equal(t, 102, q.Question.Id)
		assert.Equal(t, 2, q.QuestionNumber)
		assert.Equal(t, []time.Duration{12 * time.Second}, f.clock.pending())
	})

	t.Run("deadline advances and resets the streak of silent players", func(t *testing.T) {
		t.Parallel()
		f := newRoomFixture(t, testQuestions)
		aliceConn, alice := f.join(t, "alice", true)
		bobConn, bob := f.join(t, "bob", false)

		bobState := f.player(t, bob.Id)
		bobState.Streak = 4
		require.NoError(t, f.store.UpdatePlayer(context.Background(), bobState))

		f.send(aliceConn, protocol.StartGame{})
		f.send(aliceConn, protocol.SubmitAnswer{QuestionId: 101, SelectedAnswer: 1, TimeTaken: 1000})
		bobConn.reset()

		f.advanceClock(17 * time.Second)

		assert.Equal(t, 1, f.roomState(t).CurrentQuestionIndex)
		assert.Equal(t, 0, f.player(t, bob.Id).Streak)
		assert.Equal(t, 1, f.player(t, alice.Id).Streak)
		assert.Contains(t, bobConn.types(t), protocol.TypeUpdateScores)

		f.advanceClock(2 * time.Second)
		var q protocol.SendQuestionPayload
		bobConn.last(t, protocol.TypeSendQuestion, &q)
		assert.Equal(t, 102, q.Question.Id)
	})

	t.Run("stale deadline after everybody answered is ignored", func(t *testing.T) {
		t.Parallel()
		f := newRoomFixture(t, testQuestions)
		aliceConn, _ := f.join(t, "alice", true)
		f.send(aliceConn, protocol.StartGame{})

		stale := timerEvent{kind: timerQuestionDeadline, generation: f.room.timer.generation}
		f.send(aliceConn, protocol.SubmitAnswer{QuestionId: 101, SelectedAnswer: 1, TimeTaken: 1000})
		require.Equal(t, 1, f.roomState(t).CurrentQuestionIndex)
		aliceConn.reset()

		f.room.handleTimerEvent(stale)

		assert.Equal(t, 1, f.roomState(t).CurrentQuestionIndex)
		assert.Empty(t, aliceConn.types(t))
	})

	t.Run("late answer after the deadline is ignored", func(t *testing.T) {
		t.Parallel()
		f := newRoomFixture(t, testQuestions)
		aliceConn, alice := f.join(t, "alice", true)
		f.join(t, "bob", false)
		f.send(aliceConn, protocol.StartGame{})

		f.advanceClock(17 * time.Second)
		aliceConn.reset()
		f.send(aliceConn, protocol.SubmitAnswer{QuestionId: 101, SelectedAnswer: 1, TimeTaken: 16000})

		assert.Empty(t, aliceConn.types(t))
		assert.Equal(t, 0, f.player(t, alice.Id).Score)
	})
}

func TestRoom_FullGame(t *testing.T) {
	t.Parallel()
	f := newRoomFixture(t, testQuestions)

	recorded := make(chan domain.GameResult, 1)
	f.recorder.On("RecordGame", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { recorded <- args.Get(1).(domain.GameResult) }).
		Return(nil).Once()

	aliceConn, _ := f.join(t, "alice", true)
	bobConn, _ := f.join(t, "bob", false)
	f.send(aliceConn, protocol.StartGame{})

	for i, q := range testQuestions {
		f.send(aliceConn, protocol.SubmitAnswer{QuestionId: q.Id, SelectedAnswer: q.CorrectAnswer, TimeTaken: 0})
		f.send(bobConn, protocol.SubmitAnswer{QuestionId: q.Id, SelectedAnswer: domain.NoAnswer, TimeTaken: 0})
		if i < len(testQuestions)-1 {
			f.advanceClock(2 * time.Second)
		}
	}

	room := f.roomState(t)
	assert.Equal(t, domain.StatusFinished, room.Status)
	assert.Equal(t, 2, room.CurrentQuestionIndex)
	assert.Empty(t, f.clock.pending())

	var finished protocol.PlayersPayload
	bobConn.last(t, protocol.TypeGameFinished, &finished)
	require.Len(t, finished.Players, 2)
	// 150 + 150 + 225 with the streak multiplier on the third answer
	assert.Equal(t, "alice", finished.Players[0].Name)
	assert.Equal(t, 525, finished.Players[0].Score)
	assert.Equal(t, "bob", finished.Players[1].Name)
	assert.Equal(t, 0, finished.Players[1].Score)

	select {
	case result := <-recorded:
		expected := domain.GameResult{
			RoomCode:   "ABC123",
			FinishedAt: f.clock.Now(),
			Questions:  3,
			Standings: []domain.StandingLine{
				{Rank: 1, Name: "alice", Score: 525, Streak: 3},
				{Rank: 2, Name: "bob", Score: 0, Streak: 0},
			},
		}
		if diff := cmp.Diff(expected, result); diff != "" {
			t.Errorf("archived result mismatch (-want +got):\n%s", diff)
		}
	case <-time.After(time.Second):
		t.Fatal("game result was not recorded")
	}

	aliceConn.reset()
	f.send(aliceConn, protocol.StartGame{})
	f.send(aliceConn, protocol.SubmitAnswer{QuestionId: 103, SelectedAnswer: 2})
	assert.Empty(t, aliceConn.types(t), "a finished room ignores game actions")
}

func TestRoom_Chat(t *testing.T) {
	t.Parallel()
	f := newRoomFixture(t, testQuestions)
	aliceConn, alice := f.join(t, "alice", true)
	bobConn, _ := f.join(t, "bob", false)
	bobConn.reset()

	f.send(aliceConn, protocol.SendEmoji{Emoji: "🎉"})
	f.send(aliceConn, protocol.SendChat{Message: "good luck"})

	assert.Equal(t, []string{protocol.TypeChatMessage, protocol.TypeChatMessage}, bobConn.types(t))

	var chat protocol.ChatMessagePayload
	bobConn.last(t, protocol.TypeChatMessage, &chat)
	assert.Equal(t, alice.Id, chat.Message.PlayerId)
	assert.Equal(t, "alice", chat.Message.PlayerName)
	assert.Equal(t, "good luck", chat.Message.Message)
	assert.Equal(t, f.clock.Now().UnixMilli(), chat.Message.Timestamp)
	assert.NotEmpty(t, chat.Message.Id)

	history, err := f.store.GetChatMessages(context.Background(), f.room.Id())
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "🎉", history[0].Emoji)
}

func TestRoom_RemovePlayer(t *testing.T) {
	t.Parallel()

	t.Run("host leaving promotes the next player", func(t *testing.T) {
		t.Parallel()
		f := newRoomFixture(t, testQuestions)
		aliceConn, _ := f.join(t, "alice", true)
		bobConn, bob := f.join(t, "bob", false)
		f.join(t, "carol", false)
		bobConn.reset()

		f.room.handleRemovePlayer(aliceConn)
		f.room.handleRemovePlayer(aliceConn)

		assert.True(t, f.player(t, bob.Id).IsHost)
		assert.Equal(t, []string{protocol.TypePlayersUpdated}, bobConn.types(t))

		var update protocol.PlayersPayload
		bobConn.last(t, protocol.TypePlayersUpdated, &update)
		require.Len(t, update.Players, 2)
		assert.Equal(t, "bob", update.Players[0].Name)
		assert.True(t, update.Players[0].IsHost)
	})

	t.Run("leave_room packet removes the sender", func(t *testing.T) {
		t.Parallel()
		f := newRoomFixture(t, testQuestions)
		f.join(t, "alice", true)
		bobConn, bob := f.join(t, "bob", false)

		f.send(bobConn, protocol.LeaveRoom{})

		_, err := f.store.GetPlayer(context.Background(), bob.Id)
		assert.ErrorIs(t, err, domain.ErrPlayerNotFound)
		assert.Equal(t, 1, f.room.members.len())
	})

	t.Run("leaving during a question can complete it", func(t *testing.T) {
		t.Parallel()
		f := newRoomFixture(t, testQuestions)
		aliceConn, _ := f.join(t, "alice", true)
		bobConn, _ := f.join(t, "bob", false)
		f.send(aliceConn, protocol.StartGame{})
		f.send(aliceConn, protocol.SubmitAnswer{QuestionId: 101, SelectedAnswer: 1, TimeTaken: 1000})

		f.room.handleRemovePlayer(bobConn)

		assert.Equal(t, 1, f.roomState(t).CurrentQuestionIndex)
		assert.Equal(t, []time.Duration{2 * time.Second}, f.clock.pending())
	})

	t.Run("last player leaving tears the room down", func(t *testing.T) {
		t.Parallel()
		f := newRoomFixture(t, testQuestions)
		aliceConn, alice := f.join(t, "alice", true)
		f.send(aliceConn, protocol.StartGame{})
		f.send(aliceConn, protocol.SubmitAnswer{QuestionId: 101, SelectedAnswer: 1, TimeTaken: 1000})
		f.send(aliceConn, protocol.SendChat{Message: "bye"})
		answers, err := f.store.GetAnswersByQuestion(context.Background(), f.room.Id(), 101)
		require.NoError(t, err)
		require.Len(t, answers, 1)

		f.room.handleRemovePlayer(aliceConn)

		assert.True(t, f.room.closed)
		assert.Empty(t, f.clock.pending())
		_, err = f.store.GetRoom(context.Background(), f.room.Id())
		assert.ErrorIs(t, err, domain.ErrRoomNotFound)
		answers, err = f.store.GetAnswersByQuestion(context.Background(), f.room.Id(), 101)
		require.NoError(t, err)
		assert.Empty(t, answers)
		_, err = f.store.GetPlayer(context.Background(), alice.Id)
		assert.ErrorIs(t, err, domain.ErrPlayerNotFound)
		history, err := f.store.GetChatMessages(context.Background(), f.room.Id())
		require.NoError(t, err)
		assert.Empty(t, history)
	})
}

func TestRoom_CloseRequest(t *testing.T) {
	t.Parallel()
	f := newRoomFixture(t, testQuestions)
	aliceConn, _ := f.join(t, "alice", true)
	bobConn, _ := f.join(t, "bob", false)
	aliceConn.reset()

	f.room.handleCloseRequest(reasonIdle)

	var errPayload protocol.ErrorPayload
	aliceConn.last(t, protocol.TypeError, &errPayload)
	assert.Equal(t, reasonIdle, errPayload.Message)
	assert.True(t, aliceConn.isReleased())
	assert.True(t, bobConn.isReleased())
	assert.True(t, f.room.closed)
}

func TestRoom_GameLoop(t *testing.T) {
	t.Parallel()
	f := newRoomFixture(t, testQuestions)
	go f.room.GameLoop()

	ctx := context.Background()
	conn := &recordingConnection{}
	player, err := f.room.requestJoin(ctx, newRoomJoinRequest(conn, protocol.JoinRoom{RoomCode: "ABC123", PlayerName: "alice"}))
	require.NoError(t, err)
	assert.True(t, player.IsHost)

	f.room.Send(ctx, NewClientPacketEnvelope(protocol.PlayerReady{}, conn))
	f.room.RemoveMe(conn)

	select {
	case <-f.room.Done():
	case <-time.After(time.Second):
		t.Fatal("room did not stop after the last player left")
	}

	_, err = f.room.requestJoin(ctx, newRoomJoinRequest(&recordingConnection{}, protocol.JoinRoom{RoomCode: "ABC123", PlayerName: "bob"}))
	assert.ErrorIs(t, err, ErrRoomClosed)
	f.room.RemoveMe(conn)
	f.room.RequestClose("again")
}

func TestRoom_IdleFor(t *testing.T) {
	t.Parallel()
	f := newRoomFixture(t, testQuestions)
	aliceConn, _ := f.join(t, "alice", true)

	f.clock.Advance(10 * time.Minute)
	assert.Equal(t, 10*time.Minute, f.room.IdleFor(f.clock.Now()))

	f.send(aliceConn, protocol.PlayerReady{})
	assert.Equal(t, time.Duration(0), f.room.IdleFor(f.clock.Now()))
}
