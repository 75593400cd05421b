package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSaver struct {
	mu     sync.Mutex
	events []string
	done   chan struct{}
}

func (s *recordingSaver) CreateNotification(ctx context.Context, accountID uuid.UUID, event string, data any) error {
	s.mu.Lock()
	s.events = append(s.events, event)
	s.mu.Unlock()
	s.done <- struct{}{}
	return nil
}

func startHub(t *testing.T) (*Hub, uuid.UUID, *websocket.Conn) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	hub := NewHub(ctx)
	go hub.Run()

	accountID := uuid.New()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		client := NewClient(conn, hub, accountID)
		hub.Register(client)
		client.Run(r.Context())
	}))
	t.Cleanup(srv.Close)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	require.Eventually(t, func() bool { return hub.Connected(accountID) == 1 }, time.Second, 10*time.Millisecond)
	return hub, accountID, conn
}

func TestHub_BroadcastReachesAccountAndIsSaved(t *testing.T) {
	hub, accountID, conn := startHub(t)
	saver := &recordingSaver{done: make(chan struct{}, 1)}
	hub.SetNotificationSaver(saver)

	require.NoError(t, hub.BroadcastToAccount(accountID, "payment.settled", map[string]string{"reference": "pay_1"}))

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)

	var msg struct {
		Type string            `json:"type"`
		Data map[string]string `json:"data"`
	}
	require.NoError(t, json.Unmarshal(raw, &msg))
	assert.Equal(t, "payment.settled", msg.Type)
	assert.Equal(t, "pay_1", msg.Data["reference"])

	select {
	case <-saver.done:
	case <-time.After(2 * time.Second):
		t.Fatal("уведомление не сохранено")
	}
}

func TestHub_OtherAccountsDoNotReceive(t *testing.T) {
	hub, _, conn := startHub(t)

	require.NoError(t, hub.BroadcastToAccount(uuid.New(), "payment.settled", nil))

	_ = conn.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err)
}

func TestHub_ClientDisconnectUnregisters(t *testing.T) {
	hub, accountID, conn := startHub(t)

	require.NoError(t, conn.Close())
	assert.Eventually(t, func() bool { return hub.Connected(accountID) == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestHub_BroadcastAfterShutdown(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	hub := NewHub(ctx)
	cancel()

	// буфер ещё свободен, поэтому отправка может пройти; главное не зависнуть
	done := make(chan struct{})
	go func() {
		for i := 0; i < 64; i++ {
			_ = hub.BroadcastToAccount(uuid.New(), "x", nil)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("BroadcastToAccount заблокировался после остановки хаба")
	}
}
