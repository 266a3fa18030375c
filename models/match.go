package models

import (
	"fmt"
	"time"
)

// Status состояние матча
type Status string

const (
	StatusWaiting     Status = "waiting"
	StatusPlaying     Status = "playing"
	StatusRoundResult Status = "round_result"
	StatusFinished    Status = "finished"
)

// MaxPlayers количество слотов в матче 1v1
const MaxPlayers = 2

// Причины завершения матча
const (
	ReasonKnockout  = "knockout"
	ReasonAbandoned = "abandoned"
)

// CanTransition проверяет, что переход между статусами идет только вперед
func CanTransition(from, to Status) bool {
	switch from {
	case StatusWaiting:
		return to == StatusPlaying || to == StatusFinished
	case StatusPlaying:
		return to == StatusRoundResult || to == StatusFinished
	case StatusRoundResult:
		return to == StatusPlaying || to == StatusFinished
	default:
		return false
	}
}

// AnswerRecord ответ игрока в раунде
type AnswerRecord struct {
	Elapsed time.Duration `json:"elapsed_ms"`
	Correct bool          `json:"correct"`
}

// Match один поединок 1v1
type Match struct {
	RoomID string `json:"room_id"`
	Status Status `json:"status"`

	Players map[string]*Player `json:"-"`
	Order   []string           `json:"-"` // Порядок слотов: хост первым

	Round          int                     `json:"round"`
	RoundStartedAt time.Time               `json:"round_started_at"`
	RoundDeadline  time.Time               `json:"round_deadline"`
	SuddenDeath    bool                    `json:"sudden_death"`
	Answers        map[string]AnswerRecord `json:"-"`

	Quiz Quiz `json:"-"`

	// Метаданные для лобби
	HostName   string `json:"host_name"`
	HostAvatar string `json:"host_avatar"`
	School     string `json:"school"`
	Section    string `json:"section"`
	Subject    string `json:"subject"`
	Language   string `json:"language"`

	WinnerID   string    `json:"winner_id,omitempty"`
	EndReason  string    `json:"end_reason,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// NewMatch создает матч в статусе waiting с хостом в первом слоте
func NewMatch(roomID string, host *Player, info DisplayInfo, quiz Quiz, now time.Time) *Match {
	return &Match{
		RoomID:     roomID,
		Status:     StatusWaiting,
		Players:    map[string]*Player{host.UserID: host},
		Order:      []string{host.UserID},
		Answers:    make(map[string]AnswerRecord),
		Quiz:       quiz,
		HostName:   host.Name,
		HostAvatar: host.Avatar,
		School:     info.School,
		Section:    info.Section,
		Subject:    info.Subject,
		Language:   info.Language,
		CreatedAt:  now,
	}
}

// SetStatus переводит матч в новый статус
func (m *Match) SetStatus(to Status) error {
	if !CanTransition(m.Status, to) {
		return fmt.Errorf("illegal status transition %s -> %s", m.Status, to)
	}
	m.Status = to
	return nil
}

// HostID возвращает идентификатор создателя матча
func (m *Match) HostID() string {
	if len(m.Order) == 0 {
		return ""
	}
	return m.Order[0]
}

// IsOpen матч ожидает второго игрока
func (m *Match) IsOpen() bool {
	return m.Status == StatusWaiting && len(m.Players) < MaxPlayers
}

// IsFinished матч завершен
func (m *Match) IsFinished() bool {
	return m.Status == StatusFinished
}

// AddPlayer занимает свободный слот
func (m *Match) AddPlayer(p *Player) error {
	if len(m.Players) >= MaxPlayers {
		return fmt.Errorf("match %s is full", m.RoomID)
	}
	if _, ok := m.Players[p.UserID]; ok {
		return fmt.Errorf("player %s already in match %s", p.UserID, m.RoomID)
	}
	m.Players[p.UserID] = p
	m.Order = append(m.Order, p.UserID)
	return nil
}

// Player возвращает игрока по идентификатору
func (m *Match) Player(userID string) (*Player, bool) {
	p, ok := m.Players[userID]
	return p, ok
}

// Opponent возвращает соперника указанного игрока
func (m *Match) Opponent(userID string) (*Player, bool) {
	for _, id := range m.Order {
		if id != userID {
			return m.Players[id], true
		}
	}
	return nil, false
}

// OrderedPlayers возвращает игроков в порядке слотов
func (m *Match) OrderedPlayers() []*Player {
	players := make([]*Player, 0, len(m.Order))
	for _, id := range m.Order {
		players = append(players, m.Players[id])
	}
	return players
}

// AnsweredCount количество игроков, ответивших в текущем раунде
func (m *Match) AnsweredCount() int {
	return len(m.Answers)
}

// QuestionIndex индекс вопроса текущего раунда
func (m *Match) QuestionIndex() int {
	if len(m.Quiz.Questions) == 0 || m.Round == 0 {
		return 0
	}
	return (m.Round - 1) % len(m.Quiz.Questions)
}

// Snapshot возвращает полное состояние матча для синхронизации клиента
func (m *Match) Snapshot() MatchSnapshot {
	players := make([]Player, 0, len(m.Order))
	for _, p := range m.OrderedPlayers() {
		players = append(players, *p)
	}
	snap := MatchSnapshot{
		RoomID:        m.RoomID,
		Status:        m.Status,
		Round:         m.Round,
		SuddenDeath:   m.SuddenDeath,
		Players:       players,
		Questions:     m.Quiz.Questions,
		QuestionIndex: m.QuestionIndex(),
		QuizName:      m.Quiz.Name,
		WinnerID:      m.WinnerID,
	}
	if !m.RoundStartedAt.IsZero() {
		snap.RoundStartedAt = m.RoundStartedAt.UnixMilli()
	}
	if !m.RoundDeadline.IsZero() {
		snap.Deadline = m.RoundDeadline.UnixMilli()
	}
	return snap
}

// LobbyEntry проекция ожидающего матча для списка игр
func (m *Match) LobbyEntry() LobbyEntry {
	return LobbyEntry{
		RoomID:     m.RoomID,
		HostName:   m.HostName,
		HostAvatar: m.HostAvatar,
		School:     m.School,
		Section:    m.Section,
		Subject:    m.Subject,
		QuizName:   m.Quiz.Name,
		Language:   m.Language,
		CreatedAt:  m.CreatedAt,
	}
}

// MatchSnapshot полное состояние матча (sync_state)
type MatchSnapshot struct {
	RoomID         string     `json:"room_id"`
	Status         Status     `json:"status"`
	Round          int        `json:"round"`
	RoundStartedAt int64      `json:"round_started_at,omitempty"` // Unix ms
	Deadline       int64      `json:"deadline,omitempty"`         // Unix ms
	SuddenDeath    bool       `json:"sudden_death"`
	Players        []Player   `json:"players"`
	Questions      []Question `json:"questions"`
	QuestionIndex  int        `json:"question_index"`
	QuizName       string     `json:"quiz_name"`
	WinnerID       string     `json:"winner_id,omitempty"`
}

// LobbyEntry открытая игра в лобби
type LobbyEntry struct {
	RoomID     string    `json:"room_id"`
	HostName   string    `json:"host_name"`
	HostAvatar string    `json:"host_avatar"`
	School     string    `json:"school,omitempty"`
	Section    string    `json:"section,omitempty"`
	Subject    string    `json:"subject,omitempty"`
	QuizName   string    `json:"quiz_name,omitempty"`
	Language   string    `json:"language,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}
