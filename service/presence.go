package service

import (
	"time"

	"quiz-battle/models"

	"go.uber.org/zap"
)

// Connect вызывается для каждого нового соединения. Если пользователь уже
// участвует в незавершенном матче, соединение привязывается к нему и
// получает полное состояние. Возвращает true при переподключении.
func (s *BattleService) Connect(user Identity, connID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.store.active(user.UserID())
	if !ok {
		return false
	}
	player, ok := sess.match.Player(user.UserID())
	if !ok {
		return false
	}

	s.resyncLocked(sess, player, connID)

	s.logger.Info("Player reconnected",
		zap.String("room_id", sess.match.RoomID),
		zap.String("user_id", player.UserID),
	)
	return true
}

// ResumeSession повторная синхронизация по явному запросу клиента
func (s *BattleService) ResumeSession(user Identity, connID, roomID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.store.get(roomID)
	if !ok {
		return ErrNotFound
	}
	player, ok := sess.match.Player(user.UserID())
	if !ok {
		return ErrUnauthorized
	}

	s.resyncLocked(sess, player, connID)
	return nil
}

// Disconnect помечает игрока отключенным. Игрок остается в матче,
// состояние раунда не меняется.
func (s *BattleService) Disconnect(user Identity, connID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.store.active(user.UserID())
	if !ok {
		return
	}
	player, ok := sess.match.Player(user.UserID())
	// Закрылась старая вкладка, игрок уже переподключился с другой
	if !ok || player.ConnID != connID || player.IsDisconnected {
		return
	}

	player.IsDisconnected = true
	player.DisconnectedAt = s.clock.Now()
	s.toRoom(sess.match.RoomID, models.EventPlayerStatusChange, models.PlayerStatusPayload{
		UserID: player.UserID,
		Status: models.PresenceDisconnected,
	})

	s.logger.Info("Player disconnected",
		zap.String("room_id", sess.match.RoomID),
		zap.String("user_id", player.UserID),
		zap.String("status", string(sess.match.Status)),
	)
}

// resyncLocked перепривязывает соединение игрока и отправляет ему снимок матча
func (s *BattleService) resyncLocked(sess *session, player *models.Player, connID string) {
	roomID := sess.match.RoomID
	rebound := player.ConnID != connID
	if rebound && player.ConnID != "" {
		s.transport.Leave(player.ConnID, roomID)
	}
	wasDisconnected := player.IsDisconnected

	player.ConnID = connID
	player.IsDisconnected = false
	player.DisconnectedAt = time.Time{}
	s.transport.Join(connID, roomID)

	if wasDisconnected || rebound {
		s.toRoom(roomID, models.EventPlayerStatusChange, models.PlayerStatusPayload{
			UserID: player.UserID,
			Status: models.PresenceConnected,
		})
	}
	s.toConn(connID, models.EventSyncState, sess.match.Snapshot())
}
