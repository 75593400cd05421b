package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/ksuid"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/shop-backend/internal/gateway"
	"github.com/ignatzorin/shop-backend/internal/logger"
	"github.com/ignatzorin/shop-backend/internal/metrics"
	"github.com/ignatzorin/shop-backend/internal/models"
	"github.com/ignatzorin/shop-backend/internal/pkg/apperror"
	"github.com/ignatzorin/shop-backend/internal/repository"
)

// EventPaymentSettled событие, которое получает плательщик после сверки.
const EventPaymentSettled = "payment.settled"

// PaymentRepository описывает хранилище платежей.
type PaymentRepository interface {
	Create(ctx context.Context, payment *models.Payment) error
	GetByReference(ctx context.Context, reference string) (*models.Payment, error)
	FindByGatewayRef(ctx context.Context, transactionID, reference string) (*models.Payment, error)
	TransitionStatus(ctx context.Context, id uuid.UUID, status, via string, settledAt time.Time) (bool, error)
	ListByAccount(ctx context.Context, accountID uuid.UUID, limit, offset int) ([]models.Payment, error)
}

// PayerRepository ищет плательщика.
type PayerRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Account, error)
}

// PaymentGateway внешний платёжный шлюз.
type PaymentGateway interface {
	CreateTransaction(ctx context.Context, in gateway.CreateTransactionInput) (*gateway.Transaction, error)
	GetTransactionStatus(ctx context.Context, reference string) (gateway.Status, error)
	VerifySignature(data []byte, signature string) bool
}

// EventPublisher доставляет событие аккаунту в реальном времени.
type EventPublisher interface {
	BroadcastToAccount(accountID uuid.UUID, event string, data any) error
}

// PaymentOptions параметры оплаты из конфигурации.
type PaymentOptions struct {
	Currency        string
	RedirectURL     string
	NotificationURL string
	GatewayTimeout  time.Duration
}

// InitializeResult результат создания платежа.
type InitializeResult struct {
	Reference   string          `json:"reference"`
	CheckoutURL string          `json:"checkout_url"`
	Payment     *models.Payment `json:"payment"`
}

// PaymentService создаёт платежи и сверяет их со шлюзом.
// Платёж переходит из initialized в verified или failed ровно один раз,
// какой бы путь (опрос или вебхук) ни пришёл первым.
type PaymentService struct {
	payments PaymentRepository
	products ProductRepository
	payers   PayerRepository
	gateway  PaymentGateway
	events   EventPublisher
	opts     PaymentOptions

	now func() time.Time
}

// NewPaymentService создаёт сервис платежей. events может быть nil.
func NewPaymentService(
	payments PaymentRepository,
	products ProductRepository,
	payers PayerRepository,
	gw PaymentGateway,
	events EventPublisher,
	opts PaymentOptions,
) *PaymentService {
	if opts.GatewayTimeout <= 0 {
		opts.GatewayTimeout = 20 * time.Second
	}
	return &PaymentService{
		payments: payments,
		products: products,
		payers:   payers,
		gateway:  gw,
		events:   events,
		opts:     opts,
		now:      time.Now,
	}
}

// Initialize создаёт транзакцию у шлюза на цену товара и сохраняет платёж.
func (s *PaymentService) Initialize(ctx context.Context, payerID, productID uuid.UUID) (*InitializeResult, error) {
	product, err := s.products.GetByID(ctx, productID)
	if err != nil {
		if errors.Is(err, repository.ErrProductNotFound) {
			return nil, apperror.ErrProductNotFound
		}
		return nil, fmt.Errorf("payment service: %w", err)
	}

	payer, err := s.payers.GetByID(ctx, payerID)
	if err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			return nil, apperror.ErrAccountNotFound
		}
		return nil, fmt.Errorf("payment service: %w", err)
	}
	if !payer.IsActive() {
		return nil, apperror.ErrNotVerified
	}

	reference := "pay_" + ksuid.New().String()

	gwCtx, cancel := context.WithTimeout(ctx, s.opts.GatewayTimeout)
	defer cancel()

	started := time.Now()
	tx, err := s.gateway.CreateTransaction(gwCtx, gateway.CreateTransactionInput{
		Reference:       reference,
		Amount:          product.Price,
		Currency:        s.opts.Currency,
		CustomerName:    payer.FullName,
		CustomerEmail:   payer.Email,
		RedirectURL:     s.opts.RedirectURL,
		NotificationURL: s.opts.NotificationURL,
		Metadata: map[string]string{
			"product_id": product.ID.String(),
			"account_id": payer.ID.String(),
		},
	})
	metrics.ObserveGateway("create", started, err)
	if err != nil {
		logger.Log.WithFields(logrus.Fields{
			"reference": reference,
			"error":     err.Error(),
		}).Error("payment service: шлюз отклонил создание транзакции")
		return nil, apperror.Wrap(err, apperror.ErrCodeGateway, "платёжный шлюз недоступен")
	}

	payment := &models.Payment{
		Reference:     reference,
		ProductID:     product.ID,
		AccountID:     payer.ID,
		Amount:        product.Price,
		Currency:      s.opts.Currency,
		Status:        models.PaymentStatusInitialized,
		TransactionID: nonEmpty(tx.TransactionID),
		CheckoutURL:   nonEmpty(tx.CheckoutURL),
	}
	if err := s.payments.Create(ctx, payment); err != nil {
		// транзакция у шлюза уже создана, reference нужен для ручной сверки
		logger.Log.WithFields(logrus.Fields{
			"reference":      reference,
			"transaction_id": tx.TransactionID,
			"error":          err.Error(),
		}).Error("payment service: не удалось сохранить платёж")
		return nil, fmt.Errorf("payment service: %w", err)
	}

	logger.Log.WithFields(logrus.Fields{
		"reference":  reference,
		"account_id": payer.ID,
		"product_id": product.ID,
		"amount":     payment.Amount.StringFixed(2),
	}).Info("payment service: платёж создан")

	return &InitializeResult{
		Reference:   reference,
		CheckoutURL: tx.CheckoutURL,
		Payment:     payment,
	}, nil
}

// Verify опрашивает шлюз и сверяет платёж. Завершённый платёж возвращается без обращения к шлюзу.
func (s *PaymentService) Verify(ctx context.Context, reference string) (*models.Payment, error) {
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return nil, apperror.New(apperror.ErrCodeValidation, "reference обязателен")
	}

	payment, err := s.payments.GetByReference(ctx, reference)
	if err != nil {
		if errors.Is(err, repository.ErrPaymentNotFound) {
			return nil, apperror.ErrPaymentNotFound
		}
		return nil, fmt.Errorf("payment service: %w", err)
	}

	if payment.IsTerminal() {
		return payment, nil
	}

	gwCtx, cancel := context.WithTimeout(ctx, s.opts.GatewayTimeout)
	defer cancel()

	started := time.Now()
	status, err := s.gateway.GetTransactionStatus(gwCtx, payment.Reference)
	metrics.ObserveGateway("status", started, err)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeGateway, "не удалось получить статус платежа")
	}

	target, ok := terminalStatus(status)
	if !ok {
		return payment, nil
	}

	return s.reconcile(ctx, payment, target, models.VerifiedViaPoll)
}

// HandleWebhook обрабатывает уведомление шлюза. Ошибку получает только
// некорректное или неподписанное уведомление, остальное подтверждается.
func (s *PaymentService) HandleWebhook(ctx context.Context, body []byte, signature string) error {
	event, data, err := gateway.ParseWebhook(body)
	if err != nil {
		metrics.WebhookEvents.WithLabelValues("malformed").Inc()
		return apperror.Wrap(err, apperror.ErrCodeValidation, "некорректное тело вебхука")
	}

	if !s.gateway.VerifySignature(data, signature) {
		metrics.WebhookEvents.WithLabelValues("invalid_signature").Inc()
		logger.Log.WithField("reference", event.Reference).Warn("payment service: вебхук с неверной подписью")
		return apperror.ErrInvalidSignature
	}

	log := logger.Log.WithFields(logrus.Fields{
		"event":          event.Event,
		"reference":      event.Reference,
		"transaction_id": event.TransactionID,
	})

	payment, err := s.payments.FindByGatewayRef(ctx, event.TransactionID, event.Reference)
	if err != nil {
		if errors.Is(err, repository.ErrPaymentNotFound) {
			metrics.WebhookEvents.WithLabelValues("unknown_reference").Inc()
			log.Warn("payment service: вебхук для неизвестного платежа")
			return nil
		}
		metrics.WebhookEvents.WithLabelValues("error").Inc()
		log.WithField("error", err.Error()).Error("payment service: не удалось найти платёж для вебхука")
		return nil
	}

	if event.Reference != "" && event.Reference != payment.Reference {
		metrics.WebhookEvents.WithLabelValues("reference_mismatch").Inc()
		log.WithField("payment_reference", payment.Reference).
			Error("payment service: transaction_id и reference вебхука указывают на разные платежи")
		return nil
	}

	if payment.IsTerminal() {
		metrics.WebhookEvents.WithLabelValues("duplicate").Inc()
		return nil
	}

	target, ok := terminalStatus(event.Status)
	if !ok {
		metrics.WebhookEvents.WithLabelValues("pending").Inc()
		return nil
	}

	// Успех с чужой суммой или валютой не подтверждает платёж, остаётся опрос.
	if target == models.PaymentStatusVerified && !amountMatches(event, payment) {
		metrics.WebhookEvents.WithLabelValues("amount_mismatch").Inc()
		log.WithFields(logrus.Fields{
			"expected_amount":   payment.Amount.String(),
			"expected_currency": payment.Currency,
			"amount":            event.Amount.String(),
			"currency":          event.Currency,
		}).Error("payment service: сумма вебхука не совпадает с платежом")
		return nil
	}

	if _, err := s.reconcile(ctx, payment, target, models.VerifiedViaWebhook); err != nil {
		metrics.WebhookEvents.WithLabelValues("error").Inc()
		log.WithField("error", err.Error()).Error("payment service: не удалось сверить платёж по вебхуку")
		return nil
	}

	metrics.WebhookEvents.WithLabelValues("applied").Inc()
	return nil
}

// amountMatches сравнивает сумму и валюту уведомления с платежом.
// Отсутствующие в уведомлении поля не проверяются.
func amountMatches(event *gateway.WebhookEvent, payment *models.Payment) bool {
	if !event.Amount.IsZero() && !event.Amount.Equal(payment.Amount) {
		return false
	}
	if event.Currency != "" && !strings.EqualFold(event.Currency, payment.Currency) {
		return false
	}
	return true
}

// ListMine возвращает платежи аккаунта.
func (s *PaymentService) ListMine(ctx context.Context, accountID uuid.UUID, limit, offset int) ([]models.Payment, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	payments, err := s.payments.ListByAccount(ctx, accountID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("payment service: %w", err)
	}
	return payments, nil
}

// reconcile переводит платёж в терминальный статус одним условным обновлением.
// Проигравший гонку перечитывает и возвращает уже зафиксированную запись.
func (s *PaymentService) reconcile(ctx context.Context, payment *models.Payment, status, via string) (*models.Payment, error) {
	now := s.now()

	ok, err := s.payments.TransitionStatus(ctx, payment.ID, status, via, now)
	if err != nil {
		return nil, fmt.Errorf("payment service: %w", err)
	}

	if !ok {
		metrics.PaymentReconciliations.WithLabelValues(via, "noop").Inc()
		current, err := s.payments.GetByReference(ctx, payment.Reference)
		if err != nil {
			return nil, fmt.Errorf("payment service: %w", err)
		}
		return current, nil
	}

	payment.Status = status
	payment.VerifiedVia = &via
	payment.SettledAt = &now
	payment.UpdatedAt = now

	metrics.PaymentReconciliations.WithLabelValues(via, status).Inc()
	logger.Log.WithFields(logrus.Fields{
		"reference":  payment.Reference,
		"account_id": payment.AccountID,
		"status":     status,
		"via":        via,
	}).Info("payment service: платёж сверен")

	s.publishSettled(payment)

	return payment, nil
}

func (s *PaymentService) publishSettled(payment *models.Payment) {
	if s.events == nil {
		return
	}
	payload := map[string]any{
		"reference":  payment.Reference,
		"product_id": payment.ProductID,
		"status":     payment.Status,
		"amount":     payment.Amount.StringFixed(2),
		"currency":   payment.Currency,
	}
	if err := s.events.BroadcastToAccount(payment.AccountID, EventPaymentSettled, payload); err != nil {
		logger.Log.WithFields(logrus.Fields{
			"reference": payment.Reference,
			"error":     err.Error(),
		}).Warn("payment service: не удалось отправить событие")
	}
}

// terminalStatus сопоставляет статус шлюза статусу платежа.
func terminalStatus(status gateway.Status) (string, bool) {
	switch status {
	case gateway.StatusSuccess:
		return models.PaymentStatusVerified, true
	case gateway.StatusFailed:
		return models.PaymentStatusFailed, true
	default:
		return "", false
	}
}

func nonEmpty(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}
