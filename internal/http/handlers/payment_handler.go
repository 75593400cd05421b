package handlers

import (
	"context"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ignatzorin/shop-backend/internal/dto"
	"github.com/ignatzorin/shop-backend/internal/gateway"
	"github.com/ignatzorin/shop-backend/internal/http/handlers/common"
	"github.com/ignatzorin/shop-backend/internal/models"
	"github.com/ignatzorin/shop-backend/internal/service"
)

// maxWebhookBody ограничение на размер тела вебхука.
const maxWebhookBody = 1 << 20

// PaymentService операции оплаты.
type PaymentService interface {
	Initialize(ctx context.Context, payerID, productID uuid.UUID) (*service.InitializeResult, error)
	Verify(ctx context.Context, reference string) (*models.Payment, error)
	HandleWebhook(ctx context.Context, body []byte, signature string) error
	ListMine(ctx context.Context, accountID uuid.UUID, limit, offset int) ([]models.Payment, error)
}

// PaymentHandler обслуживает маршруты оплаты.
type PaymentHandler struct {
	payments PaymentService
}

// NewPaymentHandler создаёт хэндлер.
func NewPaymentHandler(payments PaymentService) *PaymentHandler {
	return &PaymentHandler{payments: payments}
}

// Initialize обрабатывает POST /make-payment/:id, где id это товар.
func (h *PaymentHandler) Initialize(c *gin.Context) {
	accountID, err := common.CurrentAccountID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	productID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, "неверный идентификатор товара")
		return
	}

	result, err := h.payments.Initialize(c.Request.Context(), accountID, productID)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	common.RespondSuccess(c, http.StatusCreated, "платёж создан", result)
}

// Verify обрабатывает GET /verify-payment?reference=.
func (h *PaymentHandler) Verify(c *gin.Context) {
	payment, err := h.payments.Verify(c.Request.Context(), c.Query("reference"))
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	common.RespondSuccess(c, http.StatusOK, "статус платежа", payment)
}

// Webhook обрабатывает POST /verify-payment/webhook. Отвечает 200 на всё,
// кроме неподписанных и нечитаемых уведомлений, чтобы шлюз не повторял доставку.
func (h *PaymentHandler) Webhook(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		common.RespondBadRequest(c, "не удалось прочитать тело запроса")
		return
	}

	if err := h.payments.HandleWebhook(c.Request.Context(), body, c.GetHeader(gateway.SignatureHeader)); err != nil {
		common.RespondAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.SuccessResponse{Message: "ok"})
}

// ListMine обрабатывает GET /payments/my.
func (h *PaymentHandler) ListMine(c *gin.Context) {
	accountID, err := common.CurrentAccountID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	limit, offset := common.GetPagination(c)
	payments, err := h.payments.ListMine(c.Request.Context(), accountID, limit, offset)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	common.RespondSuccess(c, http.StatusOK, "мои платежи", dto.ListResponse{
		Items:  payments,
		Limit:  limit,
		Offset: offset,
	})
}
