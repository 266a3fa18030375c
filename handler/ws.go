package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"quiz-battle/models"
	"quiz-battle/service"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// WSHandler обслуживает websocket сессии игроков
type WSHandler struct {
	battle     *service.BattleService
	hub        *Hub
	identities *service.IdentityResolver
	upgrader   websocket.Upgrader
	logger     *zap.Logger
}

// NewWSHandler создает обработчик websocket. allowedOrigins ["*"] разрешает любой Origin.
func NewWSHandler(battle *service.BattleService, hub *Hub, identities *service.IdentityResolver, allowedOrigins []string, logger *zap.Logger) *WSHandler {
	return &WSHandler{
		battle:     battle,
		hub:        hub,
		identities: identities,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
		logger: logger,
	}
}

func originChecker(allowed []string) func(r *http.Request) bool {
	set := make(map[string]bool, len(allowed))
	for _, origin := range allowed {
		set[origin] = true
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || set["*"] || set[origin]
	}
}

// HandleWebSocket поднимает соединение до websocket и обрабатывает события игрока
func (h *WSHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	identity := h.identities.Resolve(service.TokenFromRequest(r))

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("WebSocket upgrade failed", zap.Error(err))
		return
	}

	client := h.hub.Register(conn, identity)
	defer func() {
		h.battle.Disconnect(identity, client.ID)
		h.hub.Unregister(client)
	}()

	h.logger.Info("Client connected",
		zap.String("conn_id", client.ID),
		zap.String("user_id", identity.UserID()),
		zap.Bool("guest", identity.IsGuest()),
	)

	h.hub.Send(service.ToConn(client.ID), models.EventIdentity, models.IdentityPayload{
		UserID:   identity.UserID(),
		Username: identity.Username(),
		IsGuest:  identity.IsGuest(),
	})
	h.battle.Connect(identity, client.ID)

	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("Unexpected close", zap.String("conn_id", client.ID), zap.Error(err))
			}
			break
		}

		var env models.Envelope
		if err := json.Unmarshal(payload, &env); err != nil || env.Event == "" {
			h.replyError(client, fmt.Errorf("%w: malformed envelope", service.ErrInvalidRequest))
			continue
		}

		if err := h.dispatch(r.Context(), client, env); err != nil {
			h.replyError(client, err)
		}
	}

	h.logger.Info("Client disconnected",
		zap.String("conn_id", client.ID),
		zap.String("user_id", identity.UserID()),
	)
}

// dispatch вызывает сервис для входящего события
func (h *WSHandler) dispatch(ctx context.Context, client *Client, env models.Envelope) error {
	user := client.Identity

	switch env.Event {
	case models.EventCreateGame:
		var req models.CreateGameRequest
		if err := decodeData(env.Data, &req); err != nil {
			return err
		}
		_, err := h.battle.HostGame(ctx, user, client.ID, req.DisplayInfo)
		return err

	case models.EventGetGames:
		h.battle.SendGamesList(client.ID)
		return nil

	case models.EventJoinGame:
		var req models.JoinGameRequest
		if err := decodeRoomData(env.Data, &req, func() string { return req.RoomID }); err != nil {
			return err
		}
		_, err := h.battle.JoinGame(user, client.ID, req.RoomID, req.DisplayInfo)
		return err

	case models.EventCancelGame:
		var req models.RoomRequest
		if err := decodeRoomData(env.Data, &req, func() string { return req.RoomID }); err != nil {
			return err
		}
		return h.battle.CancelGame(user, req.RoomID)

	case models.EventJoinMatchSession:
		var req models.RoomRequest
		if err := decodeRoomData(env.Data, &req, func() string { return req.RoomID }); err != nil {
			return err
		}
		return h.battle.ResumeSession(user, client.ID, req.RoomID)

	case models.EventSubmitAnswer:
		var req models.SubmitAnswerRequest
		if err := decodeRoomData(env.Data, &req, func() string { return req.RoomID }); err != nil {
			return err
		}
		return h.battle.SubmitAnswer(user, req.RoomID, req.Correct)

	case models.EventLeaveMatch:
		var req models.RoomRequest
		if err := decodeRoomData(env.Data, &req, func() string { return req.RoomID }); err != nil {
			return err
		}
		return h.battle.LeaveMatch(user, client.ID, req.RoomID)

	default:
		return fmt.Errorf("%w: unknown event %q", service.ErrInvalidRequest, env.Event)
	}
}

// replyError отправляет game_error только запросившему соединению
func (h *WSHandler) replyError(client *Client, err error) {
	payload := service.ErrorPayload(err)
	if payload.Code == service.CodeInternal {
		h.logger.Error("Event handling failed", zap.String("conn_id", client.ID), zap.Error(err))
	} else {
		h.logger.Debug("Event rejected",
			zap.String("conn_id", client.ID),
			zap.String("code", payload.Code),
			zap.Error(err),
		)
	}
	h.hub.Send(service.ToConn(client.ID), models.EventGameError, payload)
}

func decodeData(data json.RawMessage, out any) error {
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: %v", service.ErrInvalidRequest, err)
	}
	return nil
}

func decodeRoomData(data json.RawMessage, out any, roomID func() string) error {
	if err := decodeData(data, out); err != nil {
		return err
	}
	if roomID() == "" {
		return fmt.Errorf("%w: room_id is required", service.ErrInvalidRequest)
	}
	return nil
}
