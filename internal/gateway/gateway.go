package gateway

import (
	"errors"

	"github.com/shopspring/decimal"
)

// Status итоговое состояние транзакции на стороне шлюза.
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
	StatusPending Status = "pending"
)

// ErrUpstream оборачивает любой сбой при обращении к шлюзу.
var ErrUpstream = errors.New("payment gateway: upstream error")

// CreateTransactionInput параметры новой транзакции.
type CreateTransactionInput struct {
	Reference       string
	Amount          decimal.Decimal
	Currency        string
	CustomerName    string
	CustomerEmail   string
	RedirectURL     string
	NotificationURL string
	Metadata        map[string]string
}

// Transaction результат инициализации.
type Transaction struct {
	TransactionID string
	CheckoutURL   string
}

// WebhookEvent разобранное событие шлюза.
type WebhookEvent struct {
	Event         string
	Reference     string
	TransactionID string
	Status        Status
	Amount        decimal.Decimal
	Currency      string
}

// normalizeStatus сводит статусы шлюза к трём исходам.
func normalizeStatus(raw string) Status {
	switch raw {
	case "success", "successful", "charge.success":
		return StatusSuccess
	case "failed", "expired", "cancelled", "charge.failed":
		return StatusFailed
	default:
		return StatusPending
	}
}
