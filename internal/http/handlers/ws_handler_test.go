package handlers

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/ignatzorin/shop-backend/internal/ws"
)

type tokenStub struct {
	err error
}

func (s tokenStub) ParseAccess(string) (uuid.UUID, string, error) {
	if s.err != nil {
		return uuid.Nil, "", s.err
	}
	return uuid.New(), "user", nil
}

func TestWSHandler_RejectsMissingOrBadToken(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := ws.NewHub(ctx)
	r := gin.New()
	r.GET("/ws", NewWSHandler(hub, tokenStub{err: errors.New("expired")}, nil).Handle)

	assert.Equal(t, http.StatusUnauthorized, doJSON(r, http.MethodGet, "/ws", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, doJSON(r, http.MethodGet, "/ws?token=abc", nil).Code)
}
