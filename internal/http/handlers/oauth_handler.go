package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ignatzorin/shop-backend/internal/http/handlers/common"
	"github.com/ignatzorin/shop-backend/internal/service"
)

// OAuthService двухшаговый вход через внешнего провайдера.
type OAuthService interface {
	Begin(ctx context.Context, provider string) (string, error)
	Resume(ctx context.Context, provider, state, code string) (*service.AuthResult, error)
}

// OAuthHandler обслуживает редирект к провайдеру и возврат с него.
type OAuthHandler struct {
	oauth OAuthService
}

// NewOAuthHandler создаёт хэндлер.
func NewOAuthHandler(oauth OAuthService) *OAuthHandler {
	return &OAuthHandler{oauth: oauth}
}

// Begin обрабатывает GET /auth/:provider. С ?mode=json возвращает адрес вместо редиректа.
func (h *OAuthHandler) Begin(c *gin.Context) {
	redirect, err := h.oauth.Begin(c.Request.Context(), c.Param("provider"))
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	if c.Query("mode") == "json" {
		common.RespondSuccess(c, http.StatusOK, "перейдите по ссылке для входа", gin.H{"url": redirect})
		return
	}

	c.Redirect(http.StatusFound, redirect)
}

// Callback обрабатывает GET /auth/:provider/callback.
func (h *OAuthHandler) Callback(c *gin.Context) {
	if providerErr := c.Query("error"); providerErr != "" {
		common.RespondUnauthorized(c, "вход отклонён провайдером: "+providerErr)
		return
	}

	result, err := h.oauth.Resume(c.Request.Context(), c.Param("provider"), c.Query("state"), c.Query("code"))
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	common.RespondSuccess(c, http.StatusOK, "вход выполнен", authResponse(result))
}
