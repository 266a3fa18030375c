package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"quiz-battle/models"
	"quiz-battle/service"
	"quiz-battle/storage"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// ResultReader чтение сохраненных итогов матчей
type ResultReader interface {
	GetResult(ctx context.Context, roomID string) (*models.MatchResult, error)
	GetPlayerResults(ctx context.Context, userID string, limit int) ([]*models.MatchResult, error)
}

const (
	defaultResultsLimit = 10
	maxResultsLimit     = 50
)

// APIHandler обрабатывает HTTP запросы лобби и истории матчей
type APIHandler struct {
	battle  *service.BattleService
	hub     *Hub
	results ResultReader // nil, если хранилище итогов отключено
	logger  *zap.Logger
}

// NewAPIHandler создает новый обработчик
func NewAPIHandler(battle *service.BattleService, hub *Hub, results ResultReader, logger *zap.Logger) *APIHandler {
	return &APIHandler{
		battle:  battle,
		hub:     hub,
		results: results,
		logger:  logger,
	}
}

// ListGames возвращает открытые игры
func (h *APIHandler) ListGames(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, models.GamesListPayload{Games: h.battle.ListOpenGames()})
}

// GetStats возвращает счетчики матчей и соединений
func (h *APIHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	stats := h.battle.Stats()
	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"active_matches": stats.ActiveMatches,
		"open_games":     stats.OpenGames,
		"connections":    h.hub.ConnectionCount(),
		"timestamp":      time.Now().Unix(),
	})
}

// GetResult возвращает итог завершенного матча
func (h *APIHandler) GetResult(w http.ResponseWriter, r *http.Request) {
	roomID := mux.Vars(r)["room_id"]
	if roomID == "" {
		h.respondError(w, http.StatusBadRequest, "Room ID is required", nil)
		return
	}
	if h.results == nil {
		h.respondError(w, http.StatusNotFound, "Result not found", nil)
		return
	}

	result, err := h.results.GetResult(r.Context(), roomID)
	if errors.Is(err, storage.ErrNotFound) {
		h.respondError(w, http.StatusNotFound, "Result not found", err)
		return
	}
	if err != nil {
		h.respondError(w, http.StatusInternalServerError, "Failed to get result", err)
		return
	}

	h.respondJSON(w, http.StatusOK, result)
}

// GetPlayerResults возвращает последние матчи игрока
func (h *APIHandler) GetPlayerResults(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["user_id"]
	if userID == "" {
		h.respondError(w, http.StatusBadRequest, "User ID is required", nil)
		return
	}

	limit := defaultResultsLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			h.respondError(w, http.StatusBadRequest, "Invalid limit", err)
			return
		}
		limit = n
	}
	if limit > maxResultsLimit {
		limit = maxResultsLimit
	}

	results := []*models.MatchResult{}
	if h.results != nil {
		var err error
		results, err = h.results.GetPlayerResults(r.Context(), userID, limit)
		if err != nil {
			h.respondError(w, http.StatusInternalServerError, "Failed to get player results", err)
			return
		}
	}

	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"user_id": userID,
		"results": results,
	})
}

// Health проверка доступности
func (h *APIHandler) Health(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

// respondJSON отправляет JSON ответ
func (h *APIHandler) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("Failed to encode JSON response", zap.Error(err))
	}
}

// respondError отправляет ошибку в формате JSON
func (h *APIHandler) respondError(w http.ResponseWriter, status int, message string, err error) {
	h.logger.Warn("Request error",
		zap.Int("status", status),
		zap.String("message", message),
		zap.Error(err),
	)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	errorResp := map[string]interface{}{
		"error": message,
	}
	if err != nil && status >= http.StatusInternalServerError {
		errorResp["details"] = err.Error()
	}
	json.NewEncoder(w).Encode(errorResp)
}
