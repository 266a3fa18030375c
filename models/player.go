package models

import "time"

// Player представляет участника внутри одного матча
type Player struct {
	UserID string `json:"user_id"` // Стабильный идентификатор пользователя
	ConnID string `json:"-"`       // Текущее соединение, меняется при переподключении

	Name   string `json:"name"`
	Avatar string `json:"avatar"`

	Score            int     `json:"score"`
	Health           int     `json:"health"`     // 0..MaxHealth
	MaxHealth        int     `json:"max_health"` // Фиксируется при старте матча
	WinStreak        int     `json:"win_streak"`
	RoundsAnswered   int     `json:"rounds_answered"`
	UtilizationIndex float64 `json:"utilization_index"` // Доля раундов с ответом

	IsDisconnected bool      `json:"is_disconnected"`
	HasAnswered    bool      `json:"has_answered"` // Сбрасывается каждый раунд
	DisconnectedAt time.Time `json:"-"`
	JoinedAt       time.Time `json:"joined_at"`
}

// NewPlayer создает игрока с полным здоровьем
func NewPlayer(userID, connID, name, avatar string, maxHealth int) *Player {
	return &Player{
		UserID:    userID,
		ConnID:    connID,
		Name:      name,
		Avatar:    avatar,
		Health:    maxHealth,
		MaxHealth: maxHealth,
		JoinedAt:  time.Now(),
	}
}

// TakeDamage уменьшает здоровье, не опуская его ниже нуля
func (p *Player) TakeDamage(damage int) {
	if damage <= 0 {
		return
	}
	p.Health -= damage
	if p.Health < 0 {
		p.Health = 0
	}
}

// Info возвращает публичные данные игрока для соперника
func (p *Player) Info() PlayerInfo {
	return PlayerInfo{
		UserID: p.UserID,
		Name:   p.Name,
		Avatar: p.Avatar,
	}
}

// PlayerInfo отображаемые данные игрока
type PlayerInfo struct {
	UserID string `json:"user_id"`
	Name   string `json:"name"`
	Avatar string `json:"avatar"`
}

// DisplayInfo данные, которые клиент присылает при создании или входе в игру
type DisplayInfo struct {
	Name     string `json:"name"`
	Avatar   string `json:"avatar"`
	School   string `json:"school,omitempty"`
	Section  string `json:"section,omitempty"`
	Subject  string `json:"subject,omitempty"`
	Language string `json:"language,omitempty"`
}
