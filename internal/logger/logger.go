package logger

import (
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/shop-backend/internal/goroutine"
)

var Log = logrus.New()

// Init инициализирует структурированный логгер.
// В production пишем JSON, в development человекочитаемый текст.
func Init(level, env string) {
	Log = logrus.New()

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	Log.SetLevel(lvl)

	if env == "production" {
		Log.SetFormatter(&logrus.JSONFormatter{})
		return
	}

	Log.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})
}

// Component возвращает логгер с полем component.
func Component(name string) *logrus.Entry {
	return Log.WithField("component", name)
}

type recoveryLogger struct{}

func (recoveryLogger) Errorf(format string, args ...interface{}) {
	Log.Errorf(format, args...)
}

// RecoveryLogger отдаёт адаптер для обработчика паник в горутинах.
func RecoveryLogger() goroutine.Logger {
	return recoveryLogger{}
}
