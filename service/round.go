package service

import (
	"time"

	"quiz-battle/models"

	"go.uber.org/zap"
)

// SubmitAnswer принимает ответ игрока в текущем раунде.
// Повторный ответ в том же раунде и ответы вне фазы playing игнорируются.
func (s *BattleService) SubmitAnswer(user Identity, roomID string, correct bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.store.get(roomID)
	if !ok {
		return ErrNotFound
	}
	match := sess.match
	player, ok := match.Player(user.UserID())
	if !ok {
		return ErrUnauthorized
	}
	if match.Status != models.StatusPlaying {
		return nil
	}
	if _, answered := match.Answers[player.UserID]; answered {
		return nil
	}

	now := s.clock.Now()
	match.Answers[player.UserID] = models.AnswerRecord{
		Elapsed: now.Sub(match.RoundStartedAt),
		Correct: correct,
	}
	player.HasAnswered = true
	s.toRoom(roomID, models.EventOpponentAnswered, models.OpponentAnsweredPayload{UserID: player.UserID})

	switch {
	case match.AnsweredCount() >= len(match.Players):
		s.resolveRoundLocked(sess)
	case match.AnsweredCount() == 1 && !match.SuddenDeath:
		s.startSuddenDeathLocked(sess)
	}
	return nil
}

// LeaveMatch явный выход из матча: победа присуждается оставшемуся игроку
func (s *BattleService) LeaveMatch(user Identity, connID, roomID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.store.get(roomID)
	if !ok {
		return ErrNotFound
	}
	match := sess.match
	if _, ok := match.Player(user.UserID()); !ok {
		return ErrUnauthorized
	}

	switch match.Status {
	case models.StatusFinished:
		return nil
	case models.StatusWaiting:
		s.cancelLocked(sess)
		return nil
	}

	winnerID := ""
	if opponent, ok := match.Opponent(user.UserID()); ok {
		winnerID = opponent.UserID
	}
	s.finishLocked(sess, winnerID, models.ReasonAbandoned)
	s.transport.Leave(connID, roomID)
	return nil
}

// openRoundLocked начинает следующий раунд
func (s *BattleService) openRoundLocked(sess *session) {
	match := sess.match
	if err := match.SetStatus(models.StatusPlaying); err != nil {
		s.logger.Error("Cannot open round", zap.String("room_id", match.RoomID), zap.Error(err))
		return
	}

	now := s.clock.Now()
	match.Round++
	if match.Round == 1 {
		match.StartedAt = now
	}
	match.Answers = make(map[string]models.AnswerRecord)
	match.SuddenDeath = false
	match.RoundStartedAt = now
	match.RoundDeadline = now.Add(s.config.RoundHardTimeout)
	for _, p := range match.Players {
		p.HasAnswered = false
	}

	stopTimer(sess.pauseTimer)
	sess.pauseTimer = nil
	stopTimer(sess.roundTimer)
	sess.roundTimer = s.roundTimeout(match.RoomID, match.Round, s.config.RoundHardTimeout)

	s.toRoom(match.RoomID, models.EventRoundReady, nil)
	s.toRoom(match.RoomID, models.EventSyncState, match.Snapshot())

	s.logger.Debug("Round opened",
		zap.String("room_id", match.RoomID),
		zap.Int("round", match.Round),
	)
}

// startSuddenDeathLocked ограничивает время ответа второго игрока
func (s *BattleService) startSuddenDeathLocked(sess *session) {
	match := sess.match
	match.SuddenDeath = true
	match.RoundDeadline = s.clock.Now().Add(s.config.SuddenDeathWindow)

	stopTimer(sess.roundTimer)
	sess.roundTimer = s.roundTimeout(match.RoomID, match.Round, s.config.SuddenDeathWindow)

	s.toRoom(match.RoomID, models.EventSuddenDeathStart, models.SuddenDeathPayload{
		Round:    match.Round,
		Deadline: match.RoundDeadline.UnixMilli(),
	})
}

func (s *BattleService) roundTimeout(roomID string, round int, after time.Duration) Timer {
	return s.scheduler.AfterFunc(after, func() {
		s.onRoundTimeout(roomID, round)
	})
}

// onRoundTimeout срабатывание таймера раунда. Устаревший таймер ничего не делает.
func (s *BattleService) onRoundTimeout(roomID string, round int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.store.get(roomID)
	if !ok || sess.match.Round != round || sess.match.Status != models.StatusPlaying {
		return
	}
	s.resolveRoundLocked(sess)
}

// resolveRoundLocked подводит итог раунда. Повторный вызов для того же раунда ничего не делает.
func (s *BattleService) resolveRoundLocked(sess *session) {
	match := sess.match
	if match.Status != models.StatusPlaying {
		return
	}
	stopTimer(sess.roundTimer)
	sess.roundTimer = nil
	if err := match.SetStatus(models.StatusRoundResult); err != nil {
		s.logger.Error("Cannot resolve round", zap.String("room_id", match.RoomID), zap.Error(err))
		return
	}

	result := s.applyOutcomeLocked(match)
	s.toRoom(match.RoomID, models.EventRoundResult, result)

	s.logger.Debug("Round resolved",
		zap.String("room_id", match.RoomID),
		zap.Int("round", match.Round),
		zap.String("winner_id", result.WinnerID),
		zap.Bool("critical", result.Critical),
	)

	knockedOut := make([]*models.Player, 0, len(match.Players))
	for _, p := range match.OrderedPlayers() {
		if p.Health <= 0 {
			knockedOut = append(knockedOut, p)
		}
	}
	if len(knockedOut) > 0 {
		winnerID := ""
		if len(knockedOut) == 1 {
			if opponent, ok := match.Opponent(knockedOut[0].UserID); ok {
				winnerID = opponent.UserID
			}
		}
		s.finishLocked(sess, winnerID, models.ReasonKnockout)
		return
	}

	s.toRoom(match.RoomID, models.EventSyncState, match.Snapshot())

	roomID, round := match.RoomID, match.Round
	sess.pauseTimer = s.scheduler.AfterFunc(s.config.RoundPause, func() {
		s.onPauseElapsed(roomID, round)
	})
}

func (s *BattleService) onPauseElapsed(roomID string, round int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.store.get(roomID)
	if !ok || sess.match.Round != round || sess.match.Status != models.StatusRoundResult {
		return
	}
	s.openRoundLocked(sess)
}

// applyOutcomeLocked применяет урон и обновляет статистику игроков
func (s *BattleService) applyOutcomeLocked(match *models.Match) models.RoundResult {
	players := match.OrderedPlayers()
	result := models.RoundResult{
		Round:    match.Round,
		Damage:   make(map[string]int, len(players)),
		Health:   make(map[string]int, len(players)),
		Messages: make(map[string]string, len(players)),
	}

	var out roundOutcome
	if len(players) == 2 {
		out = decideRound(players[0].UserID, players[1].UserID, match.Answers, s.config, s.rng)
	} else {
		out = roundOutcome{Draw: true}
	}
	result.WinnerID = out.WinnerID
	result.Critical = out.Critical
	result.Draw = out.Draw

	for _, p := range players {
		answer, answered := match.Answers[p.UserID]
		if answered {
			p.RoundsAnswered++
			if answer.Correct {
				p.Score += 10
			}
		}
		p.UtilizationIndex = float64(p.RoundsAnswered) / float64(match.Round)

		damage := 0
		if p.UserID == out.LoserID {
			damage = out.Damage
			p.TakeDamage(damage)
		}
		switch {
		case p.UserID == out.WinnerID:
			p.WinStreak++
			p.Score += 5
		case !out.Draw:
			p.WinStreak = 0
		}

		result.Damage[p.UserID] = damage
		result.Health[p.UserID] = p.Health
		result.Messages[p.UserID] = roundMessage(out, p.UserID, answer, answered)
	}
	return result
}

// finishLocked завершает матч и планирует его удаление
func (s *BattleService) finishLocked(sess *session, winnerID, reason string) {
	match := sess.match
	if match.IsFinished() {
		return
	}
	sess.stopTimers()
	if err := match.SetStatus(models.StatusFinished); err != nil {
		s.logger.Error("Cannot finish match", zap.String("room_id", match.RoomID), zap.Error(err))
		return
	}
	match.WinnerID = winnerID
	match.EndReason = reason
	match.FinishedAt = s.clock.Now()

	payload := models.GameOverPayload{RoomID: match.RoomID, WinnerID: winnerID}
	if reason != models.ReasonKnockout {
		payload.Reason = reason
	}
	s.toRoom(match.RoomID, models.EventGameOver, payload)
	s.toRoom(match.RoomID, models.EventSyncState, match.Snapshot())

	roomID := match.RoomID
	sess.teardownTimer = s.scheduler.AfterFunc(s.config.TeardownGrace, func() {
		s.teardown(roomID)
	})

	s.persist(matchResult(match))

	s.logger.Info("Match finished",
		zap.String("room_id", match.RoomID),
		zap.String("winner_id", winnerID),
		zap.String("reason", reason),
		zap.Int("rounds", match.Round),
	)
}

// teardown удаляет завершенный матч из хранилища
func (s *BattleService) teardown(roomID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.store.get(roomID)
	if !ok || !sess.match.IsFinished() {
		return
	}
	for _, p := range sess.match.Players {
		s.transport.Leave(p.ConnID, roomID)
	}
	s.store.remove(roomID)

	s.logger.Debug("Match removed", zap.String("room_id", roomID))
}

func matchResult(match *models.Match) *models.MatchResult {
	players := make([]models.Player, 0, len(match.Players))
	for _, p := range match.OrderedPlayers() {
		players = append(players, *p)
	}
	return &models.MatchResult{
		RoomID:     match.RoomID,
		WinnerID:   match.WinnerID,
		Reason:     match.EndReason,
		Rounds:     match.Round,
		Subject:    match.Subject,
		QuizName:   match.Quiz.Name,
		Players:    players,
		StartedAt:  match.StartedAt,
		FinishedAt: match.FinishedAt,
	}
}
