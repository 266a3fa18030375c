package service

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"quiz-battle/models"

	"go.uber.org/zap"
)

// DamageRange диапазон урона, обе границы включительно
type DamageRange struct {
	Min int
	Max int
}

// BattleConfig конфигурация боев
type BattleConfig struct {
	MaxHealth              int           // Здоровье в начале матча
	SuddenDeathWindow      time.Duration // Окно ответа после первого ответа соперника
	RoundHardTimeout       time.Duration // Таймаут раунда без ответов
	RoundPause             time.Duration // Пауза перед следующим раундом
	TeardownGrace          time.Duration // Сколько держать завершенный матч
	DisconnectForfeitAfter time.Duration // Через сколько отключенный игрок проигрывает (0 - никогда)
	QuizFetchTimeout       time.Duration
	SinkTimeout            time.Duration
	NormalDamage           DamageRange // Оба ответили верно, проигравший медленнее
	CriticalDamage         DamageRange // Верно ответил только один
}

// DefaultBattleConfig возвращает конфигурацию по умолчанию
func DefaultBattleConfig() *BattleConfig {
	return &BattleConfig{
		MaxHealth:              100,
		SuddenDeathWindow:      10 * time.Second,
		RoundHardTimeout:       24 * time.Hour, // Раунд без ответов фактически не истекает
		RoundPause:             3 * time.Second,
		TeardownGrace:          5 * time.Second,
		DisconnectForfeitAfter: 2 * time.Minute,
		QuizFetchTimeout:       5 * time.Second,
		SinkTimeout:            5 * time.Second,
		NormalDamage:           DamageRange{Min: 5, Max: 8},
		CriticalDamage:         DamageRange{Min: 25, Max: 30},
	}
}

// ResultSink внешнее хранилище итогов матчей
type ResultSink interface {
	SaveResult(ctx context.Context, result *models.MatchResult) error
}

// Dependencies внешние зависимости BattleService. Пустые поля заменяются значениями по умолчанию.
type Dependencies struct {
	Transport Transport
	Questions QuestionSource
	Grades    GradeLookup
	Sink      ResultSink
	Clock     Clock
	Scheduler Scheduler
	Rand      *rand.Rand
}

// BattleService управляет лобби, матчами и раундами.
// Все обработчики и таймеры выполняются под одним мьютексом,
// поэтому каждый вызов видит согласованное состояние.
type BattleService struct {
	mu    sync.Mutex
	store *matchStore

	transport Transport
	questions QuestionSource
	grades    GradeLookup
	sink      ResultSink
	clock     Clock
	scheduler Scheduler
	rng       *rand.Rand

	persisting sync.WaitGroup

	logger *zap.Logger
	config *BattleConfig
}

// NewBattleService создает новый сервис боев
func NewBattleService(deps Dependencies, logger *zap.Logger, config *BattleConfig) *BattleService {
	if config == nil {
		config = DefaultBattleConfig()
	}
	s := &BattleService{
		store:     newMatchStore(),
		transport: deps.Transport,
		questions: deps.Questions,
		grades:    deps.Grades,
		sink:      deps.Sink,
		clock:     deps.Clock,
		scheduler: deps.Scheduler,
		rng:       deps.Rand,
		logger:    logger,
		config:    config,
	}
	if s.transport == nil {
		s.transport = nopTransport{}
	}
	if s.clock == nil {
		s.clock = systemClock{}
	}
	if s.scheduler == nil {
		s.scheduler = timeScheduler{}
	}
	if s.rng == nil {
		s.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return s
}

// Stats счетчики для мониторинга
type Stats struct {
	ActiveMatches int `json:"active_matches"`
	OpenGames     int `json:"open_games"`
}

// Stats возвращает количество матчей
func (s *BattleService) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	return Stats{
		ActiveMatches: len(s.store.rooms),
		OpenGames:     len(s.store.open()),
	}
}

// Snapshot возвращает текущее состояние матча
func (s *BattleService) Snapshot(roomID string) (models.MatchSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.store.get(roomID)
	if !ok {
		return models.MatchSnapshot{}, ErrNotFound
	}
	return sess.match.Snapshot(), nil
}

// Close ждет завершения записи итогов матчей
func (s *BattleService) Close() {
	s.persisting.Wait()
}

func (s *BattleService) toRoom(roomID, event string, payload any) {
	s.transport.Send(ToRoom(roomID), event, payload)
}

func (s *BattleService) toConn(connID, event string, payload any) {
	if connID == "" {
		return
	}
	s.transport.Send(ToConn(connID), event, payload)
}

// persist передает итог матча во внешнее хранилище, не блокируя обработчики
func (s *BattleService) persist(result *models.MatchResult) {
	if s.sink == nil {
		return
	}
	s.persisting.Add(1)
	go func() {
		defer s.persisting.Done()

		ctx, cancel := context.WithTimeout(context.Background(), s.config.SinkTimeout)
		defer cancel()

		if err := s.sink.SaveResult(ctx, result); err != nil {
			s.logger.Warn("Failed to save match result",
				zap.String("room_id", result.RoomID),
				zap.Error(err),
			)
		}
	}()
}
