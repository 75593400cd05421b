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
	"github.com/ignatzorin/shop-backend/internal/service"
)

type mockOAuthService struct {
	mock.Mock
}

func (m *mockOAuthService) Begin(ctx context.Context, provider string) (string, error) {
	args := m.Called(ctx, provider)
	return args.String(0), args.Error(1)
}

func (m *mockOAuthService) Resume(ctx context.Context, provider, state, code string) (*service.AuthResult, error) {
	args := m.Called(ctx, provider, state, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.AuthResult), args.Error(1)
}

func oauthRouter(svc *mockOAuthService) *gin.Engine {
	h := NewOAuthHandler(svc)
	r := gin.New()
	r.GET("/auth/:provider", h.Begin)
	r.GET("/auth/:provider/callback", h.Callback)
	return r
}

func TestOAuthHandler_Begin(t *testing.T) {
	svc := new(mockOAuthService)
	svc.On("Begin", mock.Anything, "google").Return("https://accounts.test/auth?state=s1", nil)
	svc.On("Begin", mock.Anything, "github").Return("", apperror.New(apperror.ErrCodeNotFound, "неизвестный провайдер"))

	r := oauthRouter(svc)

	w := doJSON(r, http.MethodGet, "/auth/google", nil)
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "https://accounts.test/auth?state=s1", w.Header().Get("Location"))

	w = doJSON(r, http.MethodGet, "/auth/google?mode=json", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "https://accounts.test/auth?state=s1", decodeBody(t, w)["data"].(map[string]interface{})["url"])

	assert.Equal(t, http.StatusNotFound, doJSON(r, http.MethodGet, "/auth/github", nil).Code)
}

func TestOAuthHandler_Callback(t *testing.T) {
	svc := new(mockOAuthService)
	svc.On("Resume", mock.Anything, "google", "s1", "c1").Return(&service.AuthResult{
		Account: &models.Account{ID: uuid.New(), Email: "ann@shop.test"},
		Tokens:  &service.TokenPair{AccessToken: "a", RefreshToken: "r", ExpiresIn: 900},
	}, nil)
	svc.On("Resume", mock.Anything, "google", "stale", "c1").Return(nil, apperror.ErrInvalidState)

	r := oauthRouter(svc)

	w := doJSON(r, http.MethodGet, "/auth/google/callback?state=s1&code=c1", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "a", decodeBody(t, w)["data"].(map[string]interface{})["access_token"])

	assert.Equal(t, http.StatusUnauthorized, doJSON(r, http.MethodGet, "/auth/google/callback?state=stale&code=c1", nil).Code)

	w = doJSON(r, http.MethodGet, "/auth/google/callback?error=access_denied", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	svc.AssertNumberOfCalls(t, "Resume", 2)
}
