package goroutine

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync/atomic"
)

// Logger интерфейс для логирования ошибок
type Logger interface {
	Errorf(format string, args ...interface{})
}

// RecoveryHandler обрабатывает panic в горутинах
type RecoveryHandler struct {
	logger Logger
}

// NewRecoveryHandler создает новый обработчик
func NewRecoveryHandler(logger Logger) *RecoveryHandler {
	return &RecoveryHandler{logger: logger}
}

// SafeGo запускает горутину с обработкой panic
func (rh *RecoveryHandler) SafeGo(fn func()) {
	go func() {
		defer rh.recover("goroutine")
		fn()
	}()
}

// SafeGoWithContext запускает горутину с контекстом и обработкой panic
func (rh *RecoveryHandler) SafeGoWithContext(ctx context.Context, fn func(context.Context)) {
	go func() {
		defer rh.recover("goroutine (with context)")
		fn(ctx)
	}()
}

func (rh *RecoveryHandler) recover(where string) {
	if r := recover(); r != nil {
		rh.logger.Errorf("Panic in %s: %v\nStack trace:\n%s", where, r, debug.Stack())
	}
}

// stdoutLogger используется, пока не подключён логгер приложения.
type stdoutLogger struct{}

func (stdoutLogger) Errorf(format string, args ...interface{}) {
	fmt.Printf("[ERROR] "+format+"\n", args...)
}

var defaultHandler atomic.Pointer[RecoveryHandler]

func init() {
	defaultHandler.Store(NewRecoveryHandler(stdoutLogger{}))
}

// SetLogger меняет логгер глобального обработчика.
func SetLogger(l Logger) {
	if l == nil {
		return
	}
	defaultHandler.Store(NewRecoveryHandler(l))
}

// SafeGo - упрощенная функция для запуска безопасной горутины
func SafeGo(fn func()) {
	defaultHandler.Load().SafeGo(fn)
}

// SafeGoWithContext - упрощенная функция для запуска безопасной горутины с контекстом
func SafeGoWithContext(ctx context.Context, fn func(context.Context)) {
	defaultHandler.Load().SafeGoWithContext(ctx, fn)
}
