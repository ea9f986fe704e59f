package game

import (
	"cmp"
	"context"
	"errors"
	"slices"
	"time"
	"trivia/domain"
	"trivia/logger"
	"trivia/protocol"

	"github.com/google/uuid"
)

const recordTimeout = 5 * time.Second

func (r *Room) GameLoop() {
	defer close(r.done)
	logger.Infof("[Room %s] Game loop started", r.code)

	for !r.closed {
		select {
		case req := <-r.joinRequests:
			r.handleJoinRequest(req)
		case e := <-r.inbox:
			r.handleEnvelope(e)
		case conn := <-r.removals:
			r.handleRemovePlayer(conn)
		case ev := <-r.timerEvents:
			r.handleTimerEvent(ev)
		case reason := <-r.closeRequests:
			r.handleCloseRequest(reason)
		case <-r.vacancyChecks:
			if r.members.len() == 0 {
				r.teardown("abandoned before anybody joined")
			}
		}
	}

	logger.Infof("[Room %s] Game loop stopped", r.code)
}

func (r *Room) handleJoinRequest(req roomJoinRequest) {
	if r.closed {
		req.result <- joinResult{err: ErrRoomClosed}
		return
	}

	room, err := r.store.GetRoom(r.ctx, r.id)
	if err != nil {
		logger.Criticalf("[Room %s] Failed to load room on join: %v", r.code, err)
		req.result <- joinResult{err: err}
		return
	}

	if room.Status != domain.StatusLobby {
		logger.Infof("[Room %s] Rejected join from %s, room is %s", r.code, req.name, room.Status)
		req.result <- joinResult{err: domain.ErrGameInProgress}
		return
	}

	if _, exists := r.members.idOf(req.conn); exists {
		req.result <- joinResult{err: domain.ErrAlreadyInRoom}
		return
	}

	// the first player is always the host, afterwards there already is one
	isHost := r.members.len() == 0
	if req.isHost && !isHost {
		logger.Debugf("[Room %s] Ignoring host claim from %s", r.code, req.name)
	}

	player, err := r.store.CreatePlayer(r.ctx, domain.Player{
		Name:   req.name,
		RoomId: r.id,
		IsHost: isHost,
	})
	if err != nil {
		logger.Criticalf("[Room %s] Failed to create player %s: %v", r.code, req.name, err)
		req.result <- joinResult{err: err}
		if r.members.len() == 0 {
			r.teardown("join failed on empty room")
		}
		return
	}

	r.members.add(player.Id, req.conn)
	r.touch()
	req.result <- joinResult{player: player}
	logger.Infof("[Room %s] Player %s joined (host: %v). Count: %d", r.code, player.Name, player.IsHost, r.members.len())

	r.members.unicast(player.Id, protocol.MakePacketJoined(player, room))
	r.broadcastPlayers(protocol.MakePacketPlayersUpdated)
}

func (r *Room) handleEnvelope(e ClientPacketEnvelope) {
	playerId, ok := r.members.idOf(e.from)
	if !ok {
		return
	}
	r.touch()

	switch packet := e.packet.(type) {
	case protocol.PlayerReady:
		r.handlePlayerReady(playerId)
	case protocol.StartGame:
		r.handleStartGame(playerId)
	case protocol.SubmitAnswer:
		r.handleSubmitAnswer(playerId, packet)
	case protocol.SendEmoji:
		r.handleChat(playerId, packet.Emoji, "")
	case protocol.SendChat:
		r.handleChat(playerId, "", packet.Message)
	case protocol.LeaveRoom:
		r.handleRemovePlayer(e.from)
	case protocol.JoinRoom:
		r.members.unicast(playerId, protocol.MakePacketError(domain.ErrAlreadyInRoom.Error()))
	}
}

func (r *Room) handlePlayerReady(playerId string) {
	player, err := r.store.GetPlayer(r.ctx, playerId)
	if err != nil {
		logger.Warningf("[Room %s] Ready from unknown player %s: %v", r.code, playerId, err)
		return
	}
	if !player.Ready {
		player.Ready = true
		if err := r.store.UpdatePlayer(r.ctx, player); err != nil {
			logger.Criticalf("[Room %s] Failed to mark %s ready: %v", r.code, player.Name, err)
			return
		}
	}
	r.broadcastPlayers(protocol.MakePacketPlayersUpdated)
}

func (r *Room) handleStartGame(playerId string) {
	room, err := r.store.GetRoom(r.ctx, r.id)
	if err != nil {
		logger.Criticalf("[Room %s] Failed to load room on start: %v", r.code, err)
		return
	}
	if !room.Status.CanTransitionTo(domain.StatusPlaying) {
		return
	}

	player, err := r.store.GetPlayer(r.ctx, playerId)
	if err != nil {
		return
	}
	if !player.IsHost {
		logger.Infof("[Room %s] %s tried to start the game but is not the host", r.code, player.Name)
		r.members.unicast(playerId, protocol.MakePacketError(domain.ErrNotHost.Error()))
		return
	}

	questions := r.picker.Pick(r.configs.QuestionsPerGame)
	if len(questions) == 0 {
		logger.Criticalf("[Room %s] Question bank is empty", r.code)
		r.members.unicast(playerId, protocol.MakePacketError(domain.ErrNoQuestions.Error()))
		return
	}

	room.Status = domain.StatusPlaying
	room.CurrentQuestionIndex = 0
	if err := r.store.UpdateRoom(r.ctx, room); err != nil {
		logger.Criticalf("[Room %s] Failed to start game: %v", r.code, err)
		return
	}
	r.questions = questions
	logger.Infof("[Room %s] Game started by %s with %d questions", r.code, player.Name, len(questions))

	r.sendQuestion(0)
}

func (r *Room) sendQuestion(index int) {
	q := r.questions[index]
	r.questionOpen = true
	r.members.broadcast(protocol.MakePacketSendQuestion(q, index+1, len(r.questions)))
	r.timer.arm(q.Duration()+r.configs.DeadlineBuffer, timerQuestionDeadline)
	logger.Debugf("[Room %s] Question %d/%d sent (id %d)", r.code, index+1, len(r.questions), q.Id)
}

// activeQuestion returns the question currently accepting answers.
func (r *Room) activeQuestion() (domain.Question, bool) {
	if !r.questionOpen {
		return domain.Question{}, false
	}
	room, err := r.store.GetRoom(r.ctx, r.id)
	if err != nil || room.Status != domain.StatusPlaying || room.CurrentQuestionIndex >= len(r.questions) {
		return domain.Question{}, false
	}
	return r.questions[room.CurrentQuestionIndex], true
}

func (r *Room) handleSubmitAnswer(playerId string, submission protocol.SubmitAnswer) {
	q, ok := r.activeQuestion()
	if !ok || q.Id != submission.QuestionId {
		logger.Debugf("[Room %s] Dropped stale answer for question %d", r.code, submission.QuestionId)
		return
	}

	if _, err := r.store.GetAnswer(r.ctx, r.id, playerId, q.Id); err == nil {
		return
	} else if !errors.Is(err, domain.ErrAnswerNotFound) {
		logger.Criticalf("[Room %s] Failed to look up answer: %v", r.code, err)
		return
	}

	player, err := r.store.GetPlayer(r.ctx, playerId)
	if err != nil {
		return
	}

	isCorrect := submission.SelectedAnswer == q.CorrectAnswer
	score := Score(isCorrect, time.Duration(submission.TimeTaken)*time.Millisecond, q.Duration(), player.Streak)

	player.Score += score.Points
	player.Streak = score.NewStreak
	if err := r.store.UpdatePlayer(r.ctx, player); err != nil {
		logger.Criticalf("[Room %s] Failed to update score of %s: %v", r.code, player.Name, err)
		return
	}

	answer := domain.Answer{
		PlayerId:       playerId,
		QuestionId:     q.Id,
		SelectedAnswer: submission.SelectedAnswer,
		TimeTaken:      submission.TimeTaken,
		IsCorrect:      isCorrect,
		PointsEarned:   score.Points,
	}
	if err := r.store.SaveAnswer(r.ctx, r.id, answer); err != nil {
		logger.Criticalf("[Room %s] Failed to save answer of %s: %v", r.code, player.Name, err)
		return
	}

	r.members.unicast(playerId, protocol.MakePacketAnswerResult(isCorrect, q.CorrectAnswer, score.Points, player.Score))
	r.broadcastPlayers(protocol.MakePacketUpdateScores)

	if r.allAnswered(q.Id) {
		logger.Debugf("[Room %s] Everybody answered question %d", r.code, q.Id)
		r.advance()
	}
}

func (r *Room) answeredBy(questionId int) (map[string]bool, error) {
	answers, err := r.store.GetAnswersByQuestion(r.ctx, r.id, questionId)
	if err != nil {
		return nil, err
	}
	answered := make(map[string]bool, len(answers))
	for _, a := range answers {
		answered[a.PlayerId] = true
	}
	return answered, nil
}

func (r *Room) allAnswered(questionId int) bool {
	if r.members.len() == 0 {
		return false
	}
	answered, err := r.answeredBy(questionId)
	if err != nil {
		logger.Criticalf("[Room %s] Failed to count answers: %v", r.code, err)
		return false
	}
	for _, id := range r.members.playerIds() {
		if !answered[id] {
			return false
		}
	}
	return true
}

// advance closes the active question. Whichever of "everybody answered" and
// the deadline comes first gets here; the other finds the question closed.
func (r *Room) advance() {
	if !r.questionOpen {
		return
	}
	q, ok := r.activeQuestion()
	r.timer.disarm()
	r.questionOpen = false
	if !ok {
		return
	}

	r.resetMissedStreaks(q.Id)

	room, err := r.store.GetRoom(r.ctx, r.id)
	if err != nil {
		logger.Criticalf("[Room %s] Failed to load room on advance: %v", r.code, err)
		return
	}

	next := room.CurrentQuestionIndex + 1
	if next >= len(r.questions) {
		r.finish(room)
		return
	}

	room.CurrentQuestionIndex = next
	if err := r.store.UpdateRoom(r.ctx, room); err != nil {
		logger.Criticalf("[Room %s] Failed to advance to question %d: %v", r.code, next, err)
		return
	}
	r.timer.arm(r.configs.FeedbackDelay, timerNextQuestion)
}

func (r *Room) resetMissedStreaks(questionId int) {
	answered, err := r.answeredBy(questionId)
	if err != nil {
		logger.Criticalf("[Room %s] Failed to count answers: %v", r.code, err)
		return
	}

	changed := false
	for _, id := range r.members.playerIds() {
		if answered[id] {
			continue
		}
		player, err := r.store.GetPlayer(r.ctx, id)
		if err != nil || player.Streak == 0 {
			continue
		}
		player.Streak = 0
		if err := r.store.UpdatePlayer(r.ctx, player); err != nil {
			logger.Criticalf("[Room %s] Failed to reset streak of %s: %v", r.code, player.Name, err)
			continue
		}
		changed = true
	}

	if changed {
		r.broadcastPlayers(protocol.MakePacketUpdateScores)
	}
}

func (r *Room) finish(room domain.Room) {
	r.timer.disarm()
	r.questionOpen = false
	if !room.Status.CanTransitionTo(domain.StatusFinished) {
		return
	}

	room.Status = domain.StatusFinished
	if err := r.store.UpdateRoom(r.ctx, room); err != nil {
		logger.Criticalf("[Room %s] Failed to finish game: %v", r.code, err)
		return
	}

	players, err := r.store.GetPlayersByRoom(r.ctx, r.id)
	if err != nil {
		logger.Criticalf("[Room %s] Failed to load standings: %v", r.code, err)
		return
	}
	standings := slices.Clone(players)
	slices.SortStableFunc(standings, func(a, b domain.Player) int {
		return cmp.Compare(b.Score, a.Score)
	})

	r.members.broadcast(protocol.MakePacketGameFinished(standings))
	logger.Infof("[Room %s] Game finished", r.code)

	if r.recorder != nil {
		go r.record(buildGameResult(r.code, r.clock.Now(), len(r.questions), standings))
	}
}

func (r *Room) record(result domain.GameResult) {
	ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
	defer cancel()
	if err := r.recorder.RecordGame(ctx, result); err != nil {
		logger.Criticalf("[Room %s] Failed to archive game result: %v", r.code, err)
	}
}

func buildGameResult(code string, finishedAt time.Time, questions int, standings []domain.Player) domain.GameResult {
	result := domain.GameResult{
		RoomCode:   code,
		FinishedAt: finishedAt,
		Questions:  questions,
		Standings:  make([]domain.StandingLine, 0, len(standings)),
	}
	for i, p := range standings {
		result.Standings = append(result.Standings, domain.StandingLine{
			Rank:   i + 1,
			Name:   p.Name,
			Score:  p.Score,
			Streak: p.Streak,
		})
	}
	return result
}

func (r *Room) handleTimerEvent(ev timerEvent) {
	if !r.timer.accept(ev) {
		logger.Debugf("[Room %s] Ignored stale timer event", r.code)
		return
	}

	switch ev.kind {
	case timerQuestionDeadline:
		logger.Debugf("[Room %s] Question deadline reached", r.code)
		r.advance()
	case timerNextQuestion:
		room, err := r.store.GetRoom(r.ctx, r.id)
		if err != nil || room.Status != domain.StatusPlaying {
			return
		}
		r.sendQuestion(room.CurrentQuestionIndex)
	}
}

func (r *Room) handleChat(playerId, emoji, message string) {
	player, err := r.store.GetPlayer(r.ctx, playerId)
	if err != nil {
		return
	}

	msg := domain.ChatMessage{
		Id:         uuid.NewString(),
		PlayerId:   playerId,
		PlayerName: player.Name,
		Emoji:      emoji,
		Message:    message,
		Timestamp:  r.clock.Now().UnixMilli(),
	}
	if err := r.store.AddChatMessage(r.ctx, r.id, msg); err != nil {
		logger.Criticalf("[Room %s] Failed to store chat message: %v", r.code, err)
		return
	}
	r.members.broadcast(protocol.MakePacketChatMessage(msg))
}

// handleRemovePlayer serves both leave_room and disconnects, so it must be
// safe to run twice for the same connection. leave_room arrives through the
// inbox, behind the packets the player sent before it.
func (r *Room) handleRemovePlayer(conn Connection) {
	playerId, ok := r.members.idOf(conn)
	if !ok {
		return
	}
	r.members.remove(playerId)

	if err := r.store.DeletePlayer(r.ctx, playerId); err != nil {
		logger.Criticalf("[Room %s] Failed to delete player %s: %v", r.code, playerId, err)
	}
	logger.Infof("[Room %s] Player %s left. Remaining: %d", r.code, playerId, r.members.len())

	if r.members.len() == 0 {
		r.teardown("last player left")
		return
	}

	players, err := r.store.GetPlayersByRoom(r.ctx, r.id)
	if err != nil {
		logger.Criticalf("[Room %s] Failed to load players: %v", r.code, err)
		return
	}
	if len(players) > 0 && !slices.ContainsFunc(players, func(p domain.Player) bool { return p.IsHost }) {
		players[0].IsHost = true
		if err := r.store.UpdatePlayer(r.ctx, players[0]); err != nil {
			logger.Criticalf("[Room %s] Failed to promote %s: %v", r.code, players[0].Name, err)
		} else {
			logger.Infof("[Room %s] %s is the new host", r.code, players[0].Name)
		}
	}
	r.members.broadcast(protocol.MakePacketPlayersUpdated(players))

	if q, ok := r.activeQuestion(); ok && r.allAnswered(q.Id) {
		r.advance()
	}
}

func (r *Room) handleCloseRequest(reason string) {
	logger.Infof("[Room %s] Closing: %s", r.code, reason)
	for _, id := range r.members.playerIds() {
		r.members.unicast(id, protocol.MakePacketError(reason))
		if conn, ok := r.members.remove(id); ok {
			conn.Release()
		}
	}
	r.teardown(reason)
}

// teardown purges everything the room owns. The room is never used again;
// a later join with the same code gets a fresh room.
func (r *Room) teardown(reason string) {
	r.timer.disarm()
	r.questionOpen = false
	r.questions = nil

	ctx := context.Background()
	if err := r.store.ClearAnswers(ctx, r.id); err != nil {
		logger.Criticalf("[Room %s] Failed to clear answers: %v", r.code, err)
	}
	if err := r.store.ClearChatMessages(ctx, r.id); err != nil {
		logger.Criticalf("[Room %s] Failed to clear chat: %v", r.code, err)
	}
	if err := r.store.DeletePlayersByRoom(ctx, r.id); err != nil {
		logger.Criticalf("[Room %s] Failed to delete players: %v", r.code, err)
	}
	if err := r.store.DeleteRoom(ctx, r.id); err != nil {
		logger.Criticalf("[Room %s] Failed to delete room: %v", r.code, err)
	}

	if r.lobby != nil {
		r.lobby.release(r.code, r)
	}
	r.closed = true
	r.cancel()
	logger.Infof("[Room %s] Torn down (%s)", r.code, reason)
}

func (r *Room) broadcastPlayers(makePacket func([]domain.Player) *protocol.ServerPacket) {
	players, err := r.store.GetPlayersByRoom(r.ctx, r.id)
	if err != nil {
		logger.Criticalf("[Room %s] Failed to load players: %v", r.code, err)
		return
	}
	r.members.broadcast(makePacket(players))
}
