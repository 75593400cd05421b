package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSender struct {
	sent chan Message
	err  error
	hold time.Duration
}

func (s *recordingSender) Send(ctx context.Context, msg Message) error {
	if s.hold > 0 {
		select {
		case <-time.After(s.hold):
		case <-ctx.Done():
			s.sent <- msg
			return ctx.Err()
		}
	}
	s.sent <- msg
	return s.err
}

func (s *recordingSender) Channel() string { return "test" }

func TestDispatchOTP_SendsCode(t *testing.T) {
	sender := &recordingSender{sent: make(chan Message, 1)}
	d := NewDispatcher(sender, time.Second, 10*time.Minute)

	d.DispatchOTP("a@x.com", "Ann <script>", "123456")

	select {
	case msg := <-sender.sent:
		assert.Equal(t, "a@x.com", msg.To)
		assert.Contains(t, msg.Body, "123456")
		assert.Contains(t, msg.Body, "10 мин")
		assert.NotContains(t, msg.Body, "<script>")
	case <-time.After(time.Second):
		t.Fatal("сообщение не отправлено")
	}
}

func TestDispatchOTP_TimeoutBoundsSend(t *testing.T) {
	sender := &recordingSender{sent: make(chan Message, 1), hold: time.Minute}
	d := NewDispatcher(sender, 20*time.Millisecond, time.Minute)

	started := time.Now()
	d.DispatchOTP("a@x.com", "", "000000")

	select {
	case <-sender.sent:
		assert.Less(t, time.Since(started), time.Second)
	case <-time.After(2 * time.Second):
		t.Fatal("отправка не была прервана по таймауту")
	}
}

func TestDeliver_ErrorIsSwallowed(t *testing.T) {
	sender := &recordingSender{sent: make(chan Message, 1), err: errors.New("smtp down")}
	d := NewDispatcher(sender, time.Second, time.Minute)

	require.NotPanics(t, func() {
		d.deliver(context.Background(), Message{To: "a@x.com"})
	})
	assert.Len(t, sender.sent, 1)
}

func TestLogSender(t *testing.T) {
	s := NewLogSender()
	assert.NoError(t, s.Send(context.Background(), Message{To: "a@x.com", Subject: "s", Body: "b"}))
	assert.Equal(t, "log", s.Channel())
}
