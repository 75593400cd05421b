package notify

import (
	"context"
	"fmt"
	"html"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/shop-backend/internal/goroutine"
	"github.com/ignatzorin/shop-backend/internal/logger"
	"github.com/ignatzorin/shop-backend/internal/metrics"
)

// Dispatcher отправляет коды подтверждения в фоне.
// Отправка не повторяется: пользователь может запросить код заново.
type Dispatcher struct {
	sender  Sender
	timeout time.Duration
	otpTTL  time.Duration
}

// NewDispatcher создаёт диспетчер. timeout ограничивает одну отправку.
func NewDispatcher(sender Sender, timeout, otpTTL time.Duration) *Dispatcher {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Dispatcher{sender: sender, timeout: timeout, otpTTL: otpTTL}
}

// DispatchOTP ставит письмо с кодом в отправку и сразу возвращается.
// Контекст запроса не используется: отмена запроса не должна обрывать письмо.
func (d *Dispatcher) DispatchOTP(email, fullName, code string) {
	msg := otpMessage(email, fullName, code, d.otpTTL)

	goroutine.SafeGo(func() {
		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		defer cancel()

		d.deliver(ctx, msg)
	})
}

func (d *Dispatcher) deliver(ctx context.Context, msg Message) {
	err := d.sender.Send(ctx, msg)
	if err != nil {
		metrics.NotificationsSent.WithLabelValues(d.sender.Channel(), "error").Inc()
		logger.Log.WithFields(logrus.Fields{
			"to":      msg.To,
			"channel": d.sender.Channel(),
			"error":   err.Error(),
		}).Error("notify: не удалось отправить код подтверждения")
		return
	}

	metrics.NotificationsSent.WithLabelValues(d.sender.Channel(), "ok").Inc()
}

func otpMessage(email, fullName, code string, ttl time.Duration) Message {
	name := html.EscapeString(fullName)
	if name == "" {
		name = "покупатель"
	}

	body := fmt.Sprintf(
		"<p>Здравствуйте, %s!</p><p>Ваш код подтверждения: <b>%s</b></p><p>Код действует %d мин.</p>",
		name, code, int(ttl.Minutes()),
	)

	return Message{
		To:      email,
		Subject: "Код подтверждения аккаунта",
		Body:    body,
	}
}
