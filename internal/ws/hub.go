package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/shop-backend/internal/goroutine"
	"github.com/ignatzorin/shop-backend/internal/logger"
)

// NotificationSaver сохраняет отправленные события, чтобы аккаунт увидел их и без открытого соединения.
type NotificationSaver interface {
	CreateNotification(ctx context.Context, accountID uuid.UUID, event string, data any) error
}

// Hub управляет всеми WebSocket клиентами.
type Hub struct {
	mu                sync.RWMutex
	clients           map[uuid.UUID]map[*Client]struct{}
	register          chan *Client
	unregister        chan *Client
	broadcast         chan message
	notificationSaver NotificationSaver
	ctx               context.Context
}

type message struct {
	accountID uuid.UUID
	payload   []byte
}

// NewHub создаёт новый хаб. Хаб живёт, пока не отменён ctx.
func NewHub(ctx context.Context) *Hub {
	return &Hub{
		clients:    make(map[uuid.UUID]map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan message, 32),
		ctx:        ctx,
	}
}

// SetNotificationSaver устанавливает сервис для сохранения уведомлений.
func (h *Hub) SetNotificationSaver(saver NotificationSaver) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.notificationSaver = saver
}

// Run запускает главный цикл хаба.
func (h *Hub) Run() {
	for {
		select {
		case <-h.ctx.Done():
			return
		case client := <-h.register:
			h.addClient(client)
		case client := <-h.unregister:
			h.removeClient(client)
		case msg := <-h.broadcast:
			h.send(msg.accountID, msg.payload)
		}
	}
}

// Register добавляет клиента.
func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.ctx.Done():
	}
}

// Unregister удаляет клиента.
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.ctx.Done():
	}
}

// BroadcastToAccount отправляет событие всем соединениям аккаунта и сохраняет уведомление.
func (h *Hub) BroadcastToAccount(accountID uuid.UUID, event string, data any) error {
	// "type" содержит имя события, "data" полезную нагрузку.
	raw, err := json.Marshal(map[string]any{
		"type": event,
		"data": data,
	})
	if err != nil {
		return fmt.Errorf("ws: не удалось сериализовать сообщение: %w", err)
	}

	h.mu.RLock()
	saver := h.notificationSaver
	h.mu.RUnlock()

	if saver != nil {
		goroutine.SafeGo(func() {
			if err := saver.CreateNotification(h.ctx, accountID, event, data); err != nil {
				logger.Log.WithFields(logrus.Fields{
					"account_id": accountID,
					"event":      event,
					"error":      err.Error(),
				}).Warn("ws: не удалось сохранить уведомление")
			}
		})
	}

	select {
	case h.broadcast <- message{accountID: accountID, payload: raw}:
		return nil
	case <-h.ctx.Done():
		return h.ctx.Err()
	}
}

// Connected возвращает число открытых соединений аккаунта.
func (h *Hub) Connected(accountID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[accountID])
}

func (h *Hub) addClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client.accountID]; !ok {
		h.clients[client.accountID] = make(map[*Client]struct{})
	}
	h.clients[client.accountID][client] = struct{}{}
}

func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if clients, ok := h.clients[client.accountID]; ok {
		delete(clients, client)
		if len(clients) == 0 {
			delete(h.clients, client.accountID)
		}
	}
}

func (h *Hub) send(accountID uuid.UUID, payload []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.clients[accountID] {
		select {
		case client.send <- payload:
		default:
			// медленный клиент отключается
			c := client
			goroutine.SafeGo(c.Close)
		}
	}
}
