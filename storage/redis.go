package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"quiz-battle/models"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// ErrNotFound итог матча не найден или истек
var ErrNotFound = errors.New("result not found")

// maxPlayerResults сколько последних матчей хранить на игрока
const maxPlayerResults = 50

// RedisStorage хранит итоги матчей в Redis
type RedisStorage struct {
	client *redis.Client
	logger *zap.Logger
	ttl    time.Duration
}

// NewRedisStorage создает новое хранилище Redis
func NewRedisStorage(addr string, password string, db int, ttl time.Duration, logger *zap.Logger) (*RedisStorage, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisStorage{
		client: client,
		logger: logger,
		ttl:    ttl,
	}, nil
}

// Close закрывает соединение с Redis
func (s *RedisStorage) Close() error {
	return s.client.Close()
}

// SaveResult сохраняет итог матча и добавляет его в историю каждого игрока
func (s *RedisStorage) SaveResult(ctx context.Context, result *models.MatchResult) error {
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.resultKey(result.RoomID), resultJSON, s.ttl)
		for _, p := range result.Players {
			key := s.playerResultsKey(p.UserID)
			pipe.LPush(ctx, key, result.RoomID)
			pipe.LTrim(ctx, key, 0, maxPlayerResults-1)
			if s.ttl > 0 {
				pipe.Expire(ctx, key, s.ttl)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save result: %w", err)
	}

	s.logger.Info("Match result saved",
		zap.String("room_id", result.RoomID),
		zap.String("winner_id", result.WinnerID),
		zap.String("reason", result.Reason),
	)
	return nil
}

// GetResult возвращает итог матча по комнате
func (s *RedisStorage) GetResult(ctx context.Context, roomID string) (*models.MatchResult, error) {
	resultJSON, err := s.client.Get(ctx, s.resultKey(roomID)).Result()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get result: %w", err)
	}

	var result models.MatchResult
	if err := json.Unmarshal([]byte(resultJSON), &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal result: %w", err)
	}
	return &result, nil
}

// GetPlayerResults возвращает последние матчи игрока, новые первыми
func (s *RedisStorage) GetPlayerResults(ctx context.Context, userID string, limit int) ([]*models.MatchResult, error) {
	if limit <= 0 || limit > maxPlayerResults {
		limit = maxPlayerResults
	}

	roomIDs, err := s.client.LRange(ctx, s.playerResultsKey(userID), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get player results: %w", err)
	}
	if len(roomIDs) == 0 {
		return []*models.MatchResult{}, nil
	}

	keys := make([]string, 0, len(roomIDs))
	for _, id := range roomIDs {
		keys = append(keys, s.resultKey(id))
	}
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load results: %w", err)
	}

	results := make([]*models.MatchResult, 0, len(values))
	for i, value := range values {
		raw, ok := value.(string)
		if !ok {
			continue // Итог истек раньше списка
		}
		var result models.MatchResult
		if err := json.Unmarshal([]byte(raw), &result); err != nil {
			s.logger.Warn("Failed to unmarshal result",
				zap.String("room_id", roomIDs[i]),
				zap.Error(err),
			)
			continue
		}
		results = append(results, &result)
	}
	return results, nil
}

// resultKey возвращает ключ итога матча
func (s *RedisStorage) resultKey(roomID string) string {
	return fmt.Sprintf("result:%s", roomID)
}

// playerResultsKey возвращает ключ истории игрока
func (s *RedisStorage) playerResultsKey(userID string) string {
	return fmt.Sprintf("player:%s:results", userID)
}
