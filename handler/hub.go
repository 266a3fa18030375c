package handler

import (
	"encoding/json"
	"sync"
	"time"

	"quiz-battle/models"
	"quiz-battle/service"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 8 * 1024
	sendQueueSize  = 64
)

// Client одно websocket соединение
type Client struct {
	ID       string
	Identity service.Identity

	conn      *websocket.Conn
	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

// Hub реализует service.Transport поверх websocket соединений
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client
	rooms   map[string]map[string]*Client
	logger  *zap.Logger
}

// NewHub создает пустой хаб
func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		clients: make(map[string]*Client),
		rooms:   make(map[string]map[string]*Client),
		logger:  logger,
	}
}

// Register регистрирует соединение и запускает его writer
func (h *Hub) Register(conn *websocket.Conn, identity service.Identity) *Client {
	client := &Client{
		ID:       uuid.NewString(),
		Identity: identity,
		conn:     conn,
		send:     make(chan []byte, sendQueueSize),
		done:     make(chan struct{}),
	}

	h.mu.Lock()
	h.clients[client.ID] = client
	h.mu.Unlock()

	go h.writePump(client)
	return client
}

// Unregister удаляет соединение из хаба и всех комнат
func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	delete(h.clients, client.ID)
	for roomID, members := range h.rooms {
		delete(members, client.ID)
		if len(members) == 0 {
			delete(h.rooms, roomID)
		}
	}
	h.mu.Unlock()

	client.closeOnce.Do(func() { close(client.done) })
}

// Join добавляет соединение в комнату матча
func (h *Hub) Join(connID, roomID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	client, ok := h.clients[connID]
	if !ok {
		return
	}
	members, ok := h.rooms[roomID]
	if !ok {
		members = make(map[string]*Client)
		h.rooms[roomID] = members
	}
	members[connID] = client
}

// Leave убирает соединение из комнаты
func (h *Hub) Leave(connID, roomID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	members, ok := h.rooms[roomID]
	if !ok {
		return
	}
	delete(members, connID)
	if len(members) == 0 {
		delete(h.rooms, roomID)
	}
}

// Send кодирует событие один раз и ставит его в очередь получателям
func (h *Hub) Send(to service.Audience, event string, payload any) {
	data, err := json.Marshal(models.OutboundEnvelope{Event: event, Data: payload})
	if err != nil {
		h.logger.Error("Failed to encode event", zap.String("event", event), zap.Error(err))
		return
	}

	h.mu.RLock()
	var targets []*Client
	switch to.Kind {
	case service.AudienceConn:
		if client, ok := h.clients[to.Target]; ok {
			targets = append(targets, client)
		}
	case service.AudienceRoom:
		for _, client := range h.rooms[to.Target] {
			targets = append(targets, client)
		}
	case service.AudienceAll:
		for _, client := range h.clients {
			targets = append(targets, client)
		}
	}
	h.mu.RUnlock()

	for _, client := range targets {
		h.enqueue(client, event, data)
	}
}

// ConnectionCount количество подключенных клиентов
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// RoomMembers возвращает соединения комнаты
func (h *Hub) RoomMembers(roomID string) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	ids := make([]string, 0, len(h.rooms[roomID]))
	for id := range h.rooms[roomID] {
		ids = append(ids, id)
	}
	return ids
}

// Close закрывает все соединения
func (h *Hub) Close() {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for _, client := range h.clients {
		clients = append(clients, client)
	}
	h.mu.RUnlock()

	for _, client := range clients {
		h.Unregister(client)
	}
}

func (h *Hub) enqueue(client *Client, event string, data []byte) {
	select {
	case <-client.done:
		return
	default:
	}

	select {
	case client.send <- data:
	default:
		// Медленный клиент: закрываем соединение, reader отработает отключение
		h.logger.Warn("Send queue full, dropping client",
			zap.String("conn_id", client.ID),
			zap.String("user_id", client.Identity.UserID()),
			zap.String("event", event),
		)
		client.conn.Close()
	}
}

func (h *Hub) writePump(client *Client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		client.conn.Close()
	}()

	for {
		select {
		case data := <-client.send:
			client.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := client.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				h.logger.Debug("Write failed", zap.String("conn_id", client.ID), zap.Error(err))
				return
			}
		case <-ticker.C:
			client.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := client.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-client.done:
			h.flush(client)
			client.conn.SetWriteDeadline(time.Now().Add(writeWait))
			client.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

// flush дописывает то, что уже в очереди, перед закрытием
func (h *Hub) flush(client *Client) {
	for {
		select {
		case data := <-client.send:
			client.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := client.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		default:
			return
		}
	}
}
