package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Статусы платежа. verified и failed терминальные.
const (
	PaymentStatusInitialized = "initialized"
	PaymentStatusVerified    = "verified"
	PaymentStatusFailed      = "failed"
)

// Источник сверки платежа.
const (
	VerifiedViaPoll    = "poll"
	VerifiedViaWebhook = "webhook"
)

// Payment описывает попытку оплаты товара.
type Payment struct {
	ID            uuid.UUID       `db:"id" json:"id"`
	Reference     string          `db:"reference" json:"reference"`
	ProductID     uuid.UUID       `db:"product_id" json:"product_id"`
	AccountID     uuid.UUID       `db:"account_id" json:"account_id"`
	Amount        decimal.Decimal `db:"amount" json:"amount"`
	Currency      string          `db:"currency" json:"currency"`
	Status        string          `db:"status" json:"status"`
	TransactionID *string         `db:"transaction_id" json:"transaction_id,omitempty"`
	CheckoutURL   *string         `db:"checkout_url" json:"checkout_url,omitempty"`
	VerifiedVia   *string         `db:"verified_via" json:"verified_via,omitempty"`
	SettledAt     *time.Time      `db:"settled_at" json:"settled_at,omitempty"`
	CreatedAt     time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time       `db:"updated_at" json:"updated_at"`
}

// IsTerminal сообщает, что платёж больше не меняется.
func (p *Payment) IsTerminal() bool {
	return p.Status == PaymentStatusVerified || p.Status == PaymentStatusFailed
}
