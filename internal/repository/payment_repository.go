package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ignatzorin/shop-backend/internal/models"
	"github.com/ignatzorin/shop-backend/internal/repository/common"
)

// ErrPaymentNotFound возвращается, когда платёж не найден.
var ErrPaymentNotFound = errors.New("payment not found")

// PaymentRepository отвечает за работу с таблицей payments.
type PaymentRepository struct {
	db *sqlx.DB
}

// NewPaymentRepository создаёт экземпляр репозитория.
func NewPaymentRepository(db *sqlx.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

// Create сохраняет платёж в статусе initialized.
func (r *PaymentRepository) Create(ctx context.Context, payment *models.Payment) error {
	query := `
		INSERT INTO payments (reference, product_id, account_id, amount, currency, status, transaction_id, checkout_url)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at, updated_at
	`

	if err := r.db.QueryRowxContext(
		ctx, query,
		payment.Reference, payment.ProductID, payment.AccountID, payment.Amount,
		payment.Currency, payment.Status, payment.TransactionID, payment.CheckoutURL,
	).Scan(&payment.ID, &payment.CreatedAt, &payment.UpdatedAt); err != nil {
		return fmt.Errorf("payment repository: create %w", err)
	}

	return nil
}

// GetByReference возвращает платёж по внутреннему reference.
func (r *PaymentRepository) GetByReference(ctx context.Context, reference string) (*models.Payment, error) {
	payment, err := common.GetByField[models.Payment](ctx, r.db, "payments", "reference", reference, ErrPaymentNotFound)
	if err != nil && !errors.Is(err, ErrPaymentNotFound) {
		return nil, fmt.Errorf("payment repository: %w", err)
	}
	return payment, err
}

// FindByGatewayRef ищет платёж сначала по идентификатору транзакции шлюза,
// затем по нашему reference.
func (r *PaymentRepository) FindByGatewayRef(ctx context.Context, transactionID, reference string) (*models.Payment, error) {
	if transactionID != "" {
		payment, err := common.GetByField[models.Payment](ctx, r.db, "payments", "transaction_id", transactionID, ErrPaymentNotFound)
		if err == nil {
			return payment, nil
		}
		if !errors.Is(err, ErrPaymentNotFound) {
			return nil, fmt.Errorf("payment repository: find by transaction id %w", err)
		}
	}

	if reference == "" {
		return nil, ErrPaymentNotFound
	}
	return r.GetByReference(ctx, reference)
}

// TransitionStatus выполняет единственный переход initialized -> verified|failed.
// Возвращает false, если платёж уже терминальный (ход проиграл гонку).
func (r *PaymentRepository) TransitionStatus(ctx context.Context, id uuid.UUID, status, via string, settledAt time.Time) (bool, error) {
	query := `
		UPDATE payments
		SET status = $2,
			verified_via = $3,
			settled_at = $4,
			updated_at = NOW()
		WHERE id = $1 AND status = 'initialized'
	`

	result, err := r.db.ExecContext(ctx, query, id, status, via, settledAt)
	if err != nil {
		return false, fmt.Errorf("payment repository: transition status %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("payment repository: transition status rows affected %w", err)
	}

	return rows == 1, nil
}

// ListByAccount возвращает платежи покупателя с пагинацией.
func (r *PaymentRepository) ListByAccount(ctx context.Context, accountID uuid.UUID, limit, offset int) ([]models.Payment, error) {
	limit, offset = common.Paginate(limit, offset)

	payments := []models.Payment{}
	query := `
		SELECT * FROM payments
		WHERE account_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`
	if err := r.db.SelectContext(ctx, &payments, query, accountID, limit, offset); err != nil {
		return nil, fmt.Errorf("payment repository: list by account %w", err)
	}

	return payments, nil
}
