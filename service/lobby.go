package service

import (
	"context"
	"fmt"

	"quiz-battle/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// HostGame создает матч в статусе waiting и возвращает идентификатор комнаты
func (s *BattleService) HostGame(ctx context.Context, host Identity, connID string, info models.DisplayInfo) (string, error) {
	// Проверяем до обращения к сервису квизов, чтобы не делать лишний запрос
	s.mu.Lock()
	_, busy := s.store.active(host.UserID())
	s.mu.Unlock()
	if busy {
		return "", ErrAlreadyInMatch
	}

	quiz := s.selectQuiz(ctx, host, info)

	s.mu.Lock()
	defer s.mu.Unlock()

	// Пока шел запрос, пользователь мог создать или найти другой матч
	if _, busy := s.store.active(host.UserID()); busy {
		return "", ErrAlreadyInMatch
	}

	now := s.clock.Now()
	player := models.NewPlayer(host.UserID(), connID, displayName(info, host), info.Avatar, s.config.MaxHealth)
	player.JoinedAt = now
	match := models.NewMatch(uuid.NewString(), player, info, quiz, now)

	s.store.add(&session{match: match})
	s.transport.Join(connID, match.RoomID)
	s.toConn(connID, models.EventGameCreated, models.GameCreatedPayload{RoomID: match.RoomID})
	s.broadcastLobbyLocked()

	s.logger.Info("Game created",
		zap.String("room_id", match.RoomID),
		zap.String("host_id", player.UserID),
		zap.String("subject", match.Subject),
		zap.Int("questions", len(quiz.Questions)),
	)
	return match.RoomID, nil
}

// ListOpenGames возвращает матчи, ожидающие второго игрока
func (s *BattleService) ListOpenGames() []models.LobbyEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.lobbyLocked()
}

// SendGamesList отправляет список игр только запросившему соединению
func (s *BattleService) SendGamesList(connID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.toConn(connID, models.EventGamesList, models.GamesListPayload{Games: s.lobbyLocked()})
}

// JoinGame занимает второй слот и запускает первый раунд
func (s *BattleService) JoinGame(joiner Identity, connID, roomID string, info models.DisplayInfo) (*models.MatchFoundPayload, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.store.get(roomID)
	if !ok {
		return nil, ErrNotFound
	}
	match := sess.match
	if !match.IsOpen() {
		return nil, ErrFull
	}
	if _, busy := s.store.active(joiner.UserID()); busy {
		return nil, ErrAlreadyInMatch
	}

	player := models.NewPlayer(joiner.UserID(), connID, displayName(info, joiner), info.Avatar, s.config.MaxHealth)
	player.JoinedAt = s.clock.Now()
	if err := match.AddPlayer(player); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFull, err)
	}
	s.store.bind(player.UserID, roomID)
	s.transport.Join(connID, roomID)

	host, _ := match.Player(match.HostID())
	s.toConn(host.ConnID, models.EventMatchFound, models.MatchFoundPayload{RoomID: roomID, Opponent: player.Info()})
	found := models.MatchFoundPayload{RoomID: roomID, Opponent: host.Info()}
	s.toConn(connID, models.EventMatchFound, found)

	s.broadcastLobbyLocked()

	s.logger.Info("Match started",
		zap.String("room_id", roomID),
		zap.String("host_id", host.UserID),
		zap.String("joiner_id", player.UserID),
	)

	s.openRoundLocked(sess)
	return &found, nil
}

// CancelGame удаляет ожидающий матч. Отменить может только хост.
func (s *BattleService) CancelGame(requester Identity, roomID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.store.get(roomID)
	if !ok {
		return ErrNotFound
	}
	if sess.match.HostID() != requester.UserID() || sess.match.Status != models.StatusWaiting {
		return ErrUnauthorized
	}

	s.cancelLocked(sess)
	return nil
}

func (s *BattleService) cancelLocked(sess *session) {
	match := sess.match
	sess.stopTimers()
	s.store.remove(match.RoomID)

	if host, ok := match.Player(match.HostID()); ok {
		s.toConn(host.ConnID, models.EventGameCancelled, models.GameCreatedPayload{RoomID: match.RoomID})
		s.transport.Leave(host.ConnID, match.RoomID)
	}
	s.broadcastLobbyLocked()

	s.logger.Info("Game cancelled", zap.String("room_id", match.RoomID))
}

func (s *BattleService) lobbyLocked() []models.LobbyEntry {
	open := s.store.open()
	entries := make([]models.LobbyEntry, 0, len(open))
	for _, match := range open {
		entries = append(entries, match.LobbyEntry())
	}
	return entries
}

func (s *BattleService) broadcastLobbyLocked() {
	s.transport.Send(ToAll(), models.EventGamesListUpdate, models.GamesListPayload{Games: s.lobbyLocked()})
}

// selectQuiz запрашивает вопросы у внешнего сервиса, при ошибке возвращает встроенный набор
func (s *BattleService) selectQuiz(ctx context.Context, host Identity, info models.DisplayInfo) models.Quiz {
	if s.questions == nil {
		return DefaultQuiz(info.Subject)
	}

	ctx, cancel := context.WithTimeout(ctx, s.config.QuizFetchTimeout)
	defer cancel()

	query := models.QuizQuery{
		Subject:  info.Subject,
		Level:    s.gradeLevel(ctx, host),
		Language: info.Language,
		School:   info.School,
	}

	quiz, err := s.questions.SelectQuiz(ctx, query)
	if err != nil || quiz == nil || len(quiz.Questions) == 0 {
		s.logger.Warn("Quiz selection failed, using default questions",
			zap.String("user_id", host.UserID()),
			zap.String("subject", info.Subject),
			zap.Error(err),
		)
		return DefaultQuiz(info.Subject)
	}
	return *quiz
}

func (s *BattleService) gradeLevel(ctx context.Context, user Identity) int {
	if s.grades == nil || user.IsGuest() {
		return DefaultLevel
	}
	level, err := s.grades.GradeLevel(ctx, user.UserID())
	if err != nil {
		s.logger.Warn("Grade lookup failed",
			zap.String("user_id", user.UserID()),
			zap.Error(err),
		)
		return DefaultLevel
	}
	return level
}

func displayName(info models.DisplayInfo, user Identity) string {
	if info.Name != "" {
		return info.Name
	}
	return user.Username()
}
