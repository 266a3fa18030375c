package models

import (
	"encoding/json"
	"time"
)

// Входящие события
const (
	EventCreateGame       = "create_game"
	EventGetGames         = "get_games"
	EventJoinGame         = "join_game"
	EventCancelGame       = "cancel_game"
	EventJoinMatchSession = "join_match_session"
	EventSubmitAnswer     = "submit_answer"
	EventLeaveMatch       = "leave_match"
)

// Исходящие события
const (
	EventIdentity           = "identity"
	EventGamesList          = "games_list"
	EventGamesListUpdate    = "games_list_update"
	EventGameCreated        = "game_created"
	EventGameCancelled      = "game_cancelled"
	EventMatchFound         = "match_found"
	EventSyncState          = "sync_state"
	EventRoundReady         = "round_ready"
	EventOpponentAnswered   = "opponent_answered"
	EventSuddenDeathStart   = "sudden_death_start"
	EventRoundResult        = "round_result"
	EventGameOver           = "game_over"
	EventPlayerStatusChange = "player_status_change"
	EventGameError          = "game_error"
)

// Envelope формат всех сообщений по websocket
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// OutboundEnvelope исходящее сообщение
type OutboundEnvelope struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

// CreateGameRequest данные create_game
type CreateGameRequest struct {
	DisplayInfo
}

// RoomRequest запрос, содержащий только идентификатор комнаты
type RoomRequest struct {
	RoomID string `json:"room_id"`
}

// JoinGameRequest данные join_game
type JoinGameRequest struct {
	RoomID string `json:"room_id"`
	DisplayInfo
}

// SubmitAnswerRequest данные submit_answer
type SubmitAnswerRequest struct {
	RoomID  string `json:"room_id"`
	Correct bool   `json:"correct"`
}

// IdentityPayload сообщает клиенту, под каким идентификатором он подключен
type IdentityPayload struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	IsGuest  bool   `json:"is_guest"`
}

// GamesListPayload список открытых игр
type GamesListPayload struct {
	Games []LobbyEntry `json:"games"`
}

// GameCreatedPayload ответ хосту
type GameCreatedPayload struct {
	RoomID string `json:"room_id"`
}

// MatchFoundPayload уведомление каждому из игроков
type MatchFoundPayload struct {
	RoomID   string     `json:"room_id"`
	Opponent PlayerInfo `json:"opponent"`
}

// OpponentAnsweredPayload только факт ответа, без содержания
type OpponentAnsweredPayload struct {
	UserID string `json:"user_id"`
}

// SuddenDeathPayload новый дедлайн раунда
type SuddenDeathPayload struct {
	Round    int   `json:"round"`
	Deadline int64 `json:"deadline"` // Unix ms
}

// RoundResult итог раунда
type RoundResult struct {
	Round    int               `json:"round"`
	WinnerID string            `json:"winner_id,omitempty"` // Пусто при ничьей
	Critical bool              `json:"critical"`
	Draw     bool              `json:"draw"`
	Damage   map[string]int    `json:"damage"`
	Health   map[string]int    `json:"health"`
	Messages map[string]string `json:"messages"`
}

// GameOverPayload завершение матча
type GameOverPayload struct {
	RoomID   string `json:"room_id"`
	WinnerID string `json:"winner_id,omitempty"` // Пусто при ничьей
	Reason   string `json:"reason,omitempty"`
}

// PlayerStatusPayload изменение статуса соединения игрока
type PlayerStatusPayload struct {
	UserID string `json:"user_id"`
	Status string `json:"status"` // connected / disconnected
}

// Статусы соединения
const (
	PresenceConnected    = "connected"
	PresenceDisconnected = "disconnected"
)

// ErrorPayload ошибка, адресованная только запросившему
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// MatchResult итог матча, передаваемый во внешнее хранилище
type MatchResult struct {
	RoomID     string    `json:"room_id"`
	WinnerID   string    `json:"winner_id,omitempty"`
	Reason     string    `json:"reason"`
	Rounds     int       `json:"rounds"`
	Subject    string    `json:"subject,omitempty"`
	QuizName   string    `json:"quiz_name,omitempty"`
	Players    []Player  `json:"players"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}
