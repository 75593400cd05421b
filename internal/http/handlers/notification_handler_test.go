package handlers

import (
	"context"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/ignatzorin/shop-backend/internal/models"
	"github.com/ignatzorin/shop-backend/internal/pkg/apperror"
)

type mockNotificationService struct {
	mock.Mock
}

func (m *mockNotificationService) List(ctx context.Context, accountID uuid.UUID, limit, offset int, unreadOnly bool) ([]models.Notification, error) {
	args := m.Called(ctx, accountID, limit, offset, unreadOnly)
	return args.Get(0).([]models.Notification), args.Error(1)
}

func (m *mockNotificationService) MarkAsRead(ctx context.Context, id, accountID uuid.UUID) error {
	return m.Called(ctx, id, accountID).Error(0)
}

func (m *mockNotificationService) MarkAllAsRead(ctx context.Context, accountID uuid.UUID) error {
	return m.Called(ctx, accountID).Error(0)
}

func (m *mockNotificationService) CountUnread(ctx context.Context, accountID uuid.UUID) (int, error) {
	args := m.Called(ctx, accountID)
	return args.Int(0), args.Error(1)
}

func TestNotificationHandler(t *testing.T) {
	svc := new(mockNotificationService)
	accountID := uuid.New()
	known := uuid.New()

	svc.On("List", mock.Anything, accountID, 20, 0, true).Return([]models.Notification{{ID: known}}, nil)
	svc.On("CountUnread", mock.Anything, accountID).Return(3, nil)
	svc.On("MarkAsRead", mock.Anything, known, accountID).Return(nil)
	svc.On("MarkAsRead", mock.Anything, mock.Anything, accountID).
		Return(apperror.New(apperror.ErrCodeNotFound, "уведомление не найдено"))
	svc.On("MarkAllAsRead", mock.Anything, accountID).Return(nil)

	h := NewNotificationHandler(svc)
	r := gin.New()
	g := r.Group("/notifications", asAccount(accountID, models.RoleUser))
	g.GET("", h.List)
	g.GET("/unread/count", h.CountUnread)
	g.PUT("/:id/read", h.MarkAsRead)
	g.PUT("/read-all", h.MarkAllAsRead)

	w := doJSON(r, http.MethodGet, "/notifications?unread_only=true", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(r, http.MethodGet, "/notifications/unread/count", nil)
	assert.Equal(t, float64(3), decodeBody(t, w)["count"])

	assert.Equal(t, http.StatusOK, doJSON(r, http.MethodPut, "/notifications/"+known.String()+"/read", nil).Code)
	assert.Equal(t, http.StatusNotFound, doJSON(r, http.MethodPut, "/notifications/"+uuid.NewString()+"/read", nil).Code)
	assert.Equal(t, http.StatusBadRequest, doJSON(r, http.MethodPut, "/notifications/nope/read", nil).Code)
	assert.Equal(t, http.StatusOK, doJSON(r, http.MethodPut, "/notifications/read-all", nil).Code)

	svc.AssertExpectations(t)
}
