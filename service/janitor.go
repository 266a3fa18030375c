package service

import (
	"fmt"
	"time"

	"quiz-battle/models"

	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"
)

// Sweep завершает матчи, в которых игрок слишком долго отключен.
// Возвращает количество затронутых матчей.
func (s *BattleService) Sweep() int {
	limit := s.config.DisconnectForfeitAfter
	if limit <= 0 {
		return 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	affected := 0
	for _, sess := range s.store.sessions() {
		match := sess.match
		if match.IsFinished() {
			continue
		}

		var present []*models.Player
		stale := 0
		for _, p := range match.OrderedPlayers() {
			if p.IsDisconnected && now.Sub(p.DisconnectedAt) >= limit {
				stale++
			} else {
				present = append(present, p)
			}
		}
		if stale == 0 {
			continue
		}

		affected++
		if match.Status == models.StatusWaiting {
			s.cancelLocked(sess)
			continue
		}

		winnerID := ""
		if len(present) == 1 {
			winnerID = present[0].UserID
		}
		s.logger.Info("Forfeiting abandoned match",
			zap.String("room_id", match.RoomID),
			zap.String("winner_id", winnerID),
		)
		s.finishLocked(sess, winnerID, models.ReasonAbandoned)
	}
	return affected
}

// Janitor периодически вызывает Sweep
type Janitor struct {
	scheduler gocron.Scheduler
	battle    *BattleService
	logger    *zap.Logger
}

// NewJanitor создает планировщик с заданным интервалом проверки
func NewJanitor(battle *BattleService, interval time.Duration, logger *zap.Logger) (*Janitor, error) {
	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}

	j := &Janitor{
		scheduler: scheduler,
		battle:    battle,
		logger:    logger,
	}

	_, err = scheduler.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(j.run),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to register sweep job: %w", err)
	}
	return j, nil
}

func (j *Janitor) run() {
	if n := j.battle.Sweep(); n > 0 {
		j.logger.Info("Sweep closed abandoned matches", zap.Int("matches", n))
	}
}

// Start запускает планировщик
func (j *Janitor) Start() {
	j.scheduler.Start()
}

// Stop останавливает планировщик
func (j *Janitor) Stop() error {
	return j.scheduler.Shutdown()
}
