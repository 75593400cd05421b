package notify

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/shop-backend/internal/logger"
)

// Message исходящее сообщение пользователю.
type Message struct {
	To      string
	Subject string
	Body    string
}

// Sender доставляет сообщение по внешнему каналу.
type Sender interface {
	Send(ctx context.Context, msg Message) error
	Channel() string
}

// LogSender пишет сообщение в лог вместо отправки. Используется в development,
// когда SMTP не настроен.
type LogSender struct{}

// NewLogSender создаёт отправителя-заглушку.
func NewLogSender() *LogSender {
	return &LogSender{}
}

// Send логирует сообщение.
func (s *LogSender) Send(_ context.Context, msg Message) error {
	logger.Log.WithFields(logrus.Fields{
		"to":      msg.To,
		"subject": msg.Subject,
		"body":    msg.Body,
	}).Info("notify: сообщение не отправлено, SMTP не настроен")
	return nil
}

// Channel возвращает имя канала.
func (s *LogSender) Channel() string {
	return "log"
}
