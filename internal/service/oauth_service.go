package service

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/shop-backend/internal/logger"
	"github.com/ignatzorin/shop-backend/internal/models"
	"github.com/ignatzorin/shop-backend/internal/oauth"
	"github.com/ignatzorin/shop-backend/internal/pkg/apperror"
)

// stateTTL время, за которое пользователь должен вернуться от провайдера.
const stateTTL = 10 * time.Minute

// IdentityProvider внешний провайдер входа.
type IdentityProvider interface {
	Name() string
	AuthorizeURL(ctx context.Context, state, nonce string) (string, error)
	Exchange(ctx context.Context, code, nonce string) (*oauth.Identity, error)
}

// ExternalAccounts часть AccountService, нужная для входа через провайдера.
type ExternalAccounts interface {
	FindOrCreateExternal(ctx context.Context, identity ExternalIdentity) (*models.Account, error)
	IssueTokens(account *models.Account) (*AuthResult, error)
}

// OAuthService ведёт вход через внешних провайдеров.
type OAuthService struct {
	providers map[string]IdentityProvider
	states    oauth.StateStore
	accounts  ExternalAccounts
}

// NewOAuthService создаёт сервис. Провайдеры регистрируются по имени.
func NewOAuthService(states oauth.StateStore, accounts ExternalAccounts, providers ...IdentityProvider) *OAuthService {
	byName := make(map[string]IdentityProvider, len(providers))
	for _, p := range providers {
		byName[p.Name()] = p
	}
	return &OAuthService{
		providers: byName,
		states:    states,
		accounts:  accounts,
	}
}

// Begin сохраняет одноразовый state и возвращает адрес для редиректа к провайдеру.
func (s *OAuthService) Begin(ctx context.Context, providerName string) (string, error) {
	provider, err := s.provider(providerName)
	if err != nil {
		return "", err
	}

	state, err := randomToken()
	if err != nil {
		return "", fmt.Errorf("oauth service: %w", err)
	}
	nonce, err := randomToken()
	if err != nil {
		return "", fmt.Errorf("oauth service: %w", err)
	}

	if err := s.states.Put(ctx, state, oauth.AuthState{
		Provider:  provider.Name(),
		Nonce:     nonce,
		CreatedAt: time.Now(),
	}, stateTTL); err != nil {
		return "", fmt.Errorf("oauth service: %w", err)
	}

	redirect, err := provider.AuthorizeURL(ctx, state, nonce)
	if err != nil {
		return "", apperror.Wrap(err, apperror.ErrCodeGateway, "провайдер входа недоступен")
	}
	return redirect, nil
}

// Resume обрабатывает возврат от провайдера: проверяет state, обменивает код
// и выпускает токены для сопоставленного аккаунта.
func (s *OAuthService) Resume(ctx context.Context, providerName, state, code string) (*AuthResult, error) {
	provider, err := s.provider(providerName)
	if err != nil {
		return nil, err
	}

	if state == "" || code == "" {
		return nil, apperror.ErrInvalidState
	}

	saved, err := s.states.Take(ctx, state)
	if err != nil {
		return nil, fmt.Errorf("oauth service: %w", err)
	}
	if saved == nil || saved.Provider != provider.Name() {
		return nil, apperror.ErrInvalidState
	}

	identity, err := provider.Exchange(ctx, code, saved.Nonce)
	if err != nil {
		logger.Log.WithFields(logrus.Fields{
			"provider": provider.Name(),
			"error":    err.Error(),
		}).Warn("oauth service: обмен кода не удался")
		return nil, apperror.Wrap(err, apperror.ErrCodeUnauthorized, "провайдер не подтвердил вход")
	}
	if !identity.EmailVerified {
		return nil, apperror.New(apperror.ErrCodeUnauthorized, "email не подтверждён провайдером")
	}

	account, err := s.accounts.FindOrCreateExternal(ctx, ExternalIdentity{
		Email:    identity.Email,
		FullName: identity.Name,
		Provider: provider.Name(),
	})
	if err != nil {
		return nil, err
	}

	return s.accounts.IssueTokens(account)
}

func (s *OAuthService) provider(name string) (IdentityProvider, error) {
	p, ok := s.providers[name]
	if !ok {
		return nil, apperror.New(apperror.ErrCodeNotFound, "провайдер входа не настроен")
	}
	return p, nil
}

func randomToken() (string, error) {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
