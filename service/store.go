package service

import (
	"sort"

	"quiz-battle/models"
)

// session матч и его таймеры
type session struct {
	match *models.Match

	roundTimer    Timer // Жесткий таймаут или sudden death
	pauseTimer    Timer // Пауза между раундами
	teardownTimer Timer // Удаление завершенного матча
}

func (s *session) stopTimers() {
	stopTimer(s.roundTimer)
	stopTimer(s.pauseTimer)
	stopTimer(s.teardownTimer)
	s.roundTimer, s.pauseTimer, s.teardownTimer = nil, nil, nil
}

// matchStore хранит активные матчи и обратный индекс пользователь -> комната.
// Не потокобезопасен: все вызовы идут под мьютексом BattleService.
type matchStore struct {
	rooms     map[string]*session
	userRooms map[string]string
}

func newMatchStore() *matchStore {
	return &matchStore{
		rooms:     make(map[string]*session),
		userRooms: make(map[string]string),
	}
}

func (st *matchStore) get(roomID string) (*session, bool) {
	sess, ok := st.rooms[roomID]
	return sess, ok
}

func (st *matchStore) add(sess *session) {
	st.rooms[sess.match.RoomID] = sess
	for id := range sess.match.Players {
		st.userRooms[id] = sess.match.RoomID
	}
}

func (st *matchStore) bind(userID, roomID string) {
	st.userRooms[userID] = roomID
}

// active возвращает незавершенный матч, в котором находится пользователь
func (st *matchStore) active(userID string) (*session, bool) {
	roomID, ok := st.userRooms[userID]
	if !ok {
		return nil, false
	}
	sess, ok := st.rooms[roomID]
	if !ok || sess.match.IsFinished() {
		return nil, false
	}
	return sess, true
}

// remove удаляет матч и те записи индекса, что еще указывают на него
func (st *matchStore) remove(roomID string) {
	sess, ok := st.rooms[roomID]
	if !ok {
		return
	}
	delete(st.rooms, roomID)
	for id := range sess.match.Players {
		if st.userRooms[id] == roomID {
			delete(st.userRooms, id)
		}
	}
}

// open возвращает ожидающие матчи, старые первыми
func (st *matchStore) open() []*models.Match {
	matches := make([]*models.Match, 0)
	for _, sess := range st.rooms {
		if sess.match.IsOpen() {
			matches = append(matches, sess.match)
		}
	}
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].CreatedAt.Equal(matches[j].CreatedAt) {
			return matches[i].RoomID < matches[j].RoomID
		}
		return matches[i].CreatedAt.Before(matches[j].CreatedAt)
	})
	return matches
}

func (st *matchStore) sessions() []*session {
	all := make([]*session, 0, len(st.rooms))
	for _, sess := range st.rooms {
		all = append(all, sess)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].match.RoomID < all[j].match.RoomID })
	return all
}
