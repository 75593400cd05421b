package handlers

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/ignatzorin/shop-backend/internal/gateway"
	"github.com/ignatzorin/shop-backend/internal/models"
	"github.com/ignatzorin/shop-backend/internal/pkg/apperror"
	"github.com/ignatzorin/shop-backend/internal/service"
)

type mockPaymentService struct {
	mock.Mock
}

func (m *mockPaymentService) Initialize(ctx context.Context, payerID, productID uuid.UUID) (*service.InitializeResult, error) {
	args := m.Called(ctx, payerID, productID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.InitializeResult), args.Error(1)
}

func (m *mockPaymentService) Verify(ctx context.Context, reference string) (*models.Payment, error) {
	args := m.Called(ctx, reference)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Payment), args.Error(1)
}

func (m *mockPaymentService) HandleWebhook(ctx context.Context, body []byte, signature string) error {
	return m.Called(ctx, body, signature).Error(0)
}

func (m *mockPaymentService) ListMine(ctx context.Context, accountID uuid.UUID, limit, offset int) ([]models.Payment, error) {
	args := m.Called(ctx, accountID, limit, offset)
	return args.Get(0).([]models.Payment), args.Error(1)
}

func paymentRouter(svc *mockPaymentService, accountID uuid.UUID) *gin.Engine {
	h := NewPaymentHandler(svc)
	r := gin.New()
	authed := r.Group("/", asAccount(accountID, models.RoleUser))
	authed.POST("/make-payment/:id", h.Initialize)
	authed.GET("/payments/my", h.ListMine)
	r.GET("/verify-payment", h.Verify)
	r.POST("/verify-payment/webhook", h.Webhook)
	return r
}

func TestPaymentHandler_Initialize(t *testing.T) {
	svc := new(mockPaymentService)
	accountID, productID := uuid.New(), uuid.New()
	svc.On("Initialize", mock.Anything, accountID, productID).Return(&service.InitializeResult{
		Reference:   "pay_1",
		CheckoutURL: "https://checkout.test/pay_1",
		Payment:     &models.Payment{Reference: "pay_1", Status: models.PaymentStatusInitialized},
	}, nil)

	w := doJSON(paymentRouter(svc, accountID), http.MethodPost, "/make-payment/"+productID.String(), nil)

	assert.Equal(t, http.StatusCreated, w.Code)
	data := decodeBody(t, w)["data"].(map[string]interface{})
	assert.Equal(t, "https://checkout.test/pay_1", data["checkout_url"])
}

func TestPaymentHandler_InitializeErrors(t *testing.T) {
	accountID := uuid.New()

	w := doJSON(paymentRouter(new(mockPaymentService), accountID), http.MethodPost, "/make-payment/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	svc := new(mockPaymentService)
	svc.On("Initialize", mock.Anything, accountID, mock.Anything).
		Return(nil, apperror.Wrap(gateway.ErrUpstream, apperror.ErrCodeGateway, "платёжный шлюз недоступен"))
	w = doJSON(paymentRouter(svc, accountID), http.MethodPost, "/make-payment/"+uuid.NewString(), nil)
	assert.Equal(t, http.StatusBadGateway, w.Code)

	h := NewPaymentHandler(new(mockPaymentService))
	r := gin.New()
	r.POST("/make-payment/:id", h.Initialize)
	w = doJSON(r, http.MethodPost, "/make-payment/"+uuid.NewString(), nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestPaymentHandler_Verify(t *testing.T) {
	svc := new(mockPaymentService)
	svc.On("Verify", mock.Anything, "pay_1").Return(&models.Payment{Reference: "pay_1", Status: models.PaymentStatusVerified}, nil)
	svc.On("Verify", mock.Anything, "").Return(nil, apperror.New(apperror.ErrCodeValidation, "reference обязателен"))
	svc.On("Verify", mock.Anything, "pay_missing").Return(nil, apperror.ErrPaymentNotFound)

	r := paymentRouter(svc, uuid.New())

	w := doJSON(r, http.MethodGet, "/verify-payment?reference=pay_1", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "verified", decodeBody(t, w)["data"].(map[string]interface{})["status"])

	assert.Equal(t, http.StatusBadRequest, doJSON(r, http.MethodGet, "/verify-payment", nil).Code)
	assert.Equal(t, http.StatusNotFound, doJSON(r, http.MethodGet, "/verify-payment?reference=pay_missing", nil).Code)
}

func TestPaymentHandler_WebhookStatusCodes(t *testing.T) {
	body := []byte(`{"event":"charge.success","data":{"reference":"pay_1"}}`)

	cases := []struct {
		name string
		err  error
		want int
	}{
		{"applied", nil, http.StatusOK},
		{"bad signature", apperror.ErrInvalidSignature, http.StatusUnauthorized},
		{"malformed", apperror.New(apperror.ErrCodeValidation, "нечитаемый вебхук"), http.StatusBadRequest},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := new(mockPaymentService)
			svc.On("HandleWebhook", mock.Anything, body, "sig-1").Return(tc.err)

			req := httptest.NewRequest(http.MethodPost, "/verify-payment/webhook", bytes.NewReader(body))
			req.Header.Set(gateway.SignatureHeader, "sig-1")
			w := httptest.NewRecorder()
			paymentRouter(svc, uuid.New()).ServeHTTP(w, req)

			assert.Equal(t, tc.want, w.Code)
			svc.AssertExpectations(t)
		})
	}
}

func TestPaymentHandler_ListMine(t *testing.T) {
	svc := new(mockPaymentService)
	accountID := uuid.New()
	svc.On("ListMine", mock.Anything, accountID, 5, 10).Return([]models.Payment{{Reference: "pay_1"}}, nil)

	w := doJSON(paymentRouter(svc, accountID), http.MethodGet, "/payments/my?limit=5&offset=10", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	data := decodeBody(t, w)["data"].(map[string]interface{})
	assert.Len(t, data["items"], 1)
	assert.Equal(t, float64(5), data["limit"])
}
