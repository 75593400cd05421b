package oauth

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ProviderGoogle имя провайдера в маршрутах и в AuthState.
const ProviderGoogle = "google"

// Identity подтверждённая провайдером личность.
type Identity struct {
	Provider      string
	Subject       string
	Email         string
	EmailVerified bool
	Name          string
}

// ProviderConfig параметры OIDC клиента.
type ProviderConfig struct {
	Name         string
	IssuerURL    string
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scopes       []string
}

// OIDCProvider реализует authorization code flow с проверкой id_token по JWKS.
type OIDCProvider struct {
	cfg        ProviderConfig
	httpClient *http.Client
}

type discoveryDocument struct {
	Issuer                string `json:"issuer"`
	AuthorizationEndpoint string `json:"authorization_endpoint"`
	TokenEndpoint         string `json:"token_endpoint"`
	JWKSURI               string `json:"jwks_uri"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	IDToken     string `json:"id_token"`
}

type jwksDocument struct {
	Keys []struct {
		Kty string `json:"kty"`
		Kid string `json:"kid"`
		N   string `json:"n"`
		E   string `json:"e"`
	} `json:"keys"`
}

// NewOIDCProvider создаёт провайдера. httpClient может быть nil.
func NewOIDCProvider(cfg ProviderConfig, httpClient *http.Client) *OIDCProvider {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	if cfg.Name == "" {
		cfg.Name = ProviderGoogle
	}
	if len(cfg.Scopes) == 0 {
		cfg.Scopes = []string{"openid", "email", "profile"}
	}
	cfg.IssuerURL = strings.TrimRight(cfg.IssuerURL, "/")
	return &OIDCProvider{cfg: cfg, httpClient: httpClient}
}

// Name возвращает имя провайдера.
func (p *OIDCProvider) Name() string {
	return p.cfg.Name
}

// AuthorizeURL строит адрес, на который перенаправляется пользователь.
func (p *OIDCProvider) AuthorizeURL(ctx context.Context, state, nonce string) (string, error) {
	if state == "" || nonce == "" {
		return "", errors.New("oidc: state и nonce обязательны")
	}

	doc, err := p.discover(ctx)
	if err != nil {
		return "", err
	}

	q := url.Values{}
	q.Set("client_id", p.cfg.ClientID)
	q.Set("redirect_uri", p.cfg.RedirectURL)
	q.Set("response_type", "code")
	q.Set("scope", strings.Join(p.cfg.Scopes, " "))
	q.Set("state", state)
	q.Set("nonce", nonce)
	q.Set("prompt", "select_account")

	return doc.AuthorizationEndpoint + "?" + q.Encode(), nil
}

// Exchange обменивает code на id_token и проверяет его подпись, issuer, audience и nonce.
func (p *OIDCProvider) Exchange(ctx context.Context, code, nonce string) (*Identity, error) {
	if strings.TrimSpace(code) == "" {
		return nil, errors.New("oidc: code обязателен")
	}

	doc, err := p.discover(ctx)
	if err != nil {
		return nil, err
	}

	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("code", code)
	form.Set("client_id", p.cfg.ClientID)
	form.Set("client_secret", p.cfg.ClientSecret)
	form.Set("redirect_uri", p.cfg.RedirectURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, doc.TokenEndpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("oidc: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	var tok tokenResponse
	if err := p.doJSON(req, &tok); err != nil {
		return nil, fmt.Errorf("oidc: обмен кода: %w", err)
	}
	if tok.IDToken == "" {
		return nil, errors.New("oidc: в ответе нет id_token")
	}

	keys, err := p.fetchJWKS(ctx, doc.JWKSURI)
	if err != nil {
		return nil, err
	}

	identity, err := validateIDToken(tok.IDToken, keys, doc.Issuer, p.cfg.ClientID, nonce)
	if err != nil {
		return nil, err
	}
	identity.Provider = p.cfg.Name
	return identity, nil
}

func (p *OIDCProvider) discover(ctx context.Context) (*discoveryDocument, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.cfg.IssuerURL+"/.well-known/openid-configuration", nil)
	if err != nil {
		return nil, fmt.Errorf("oidc: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	var doc discoveryDocument
	if err := p.doJSON(req, &doc); err != nil {
		return nil, fmt.Errorf("oidc: discovery: %w", err)
	}
	if doc.Issuer == "" {
		doc.Issuer = p.cfg.IssuerURL
	}
	if strings.TrimRight(doc.Issuer, "/") != p.cfg.IssuerURL {
		return nil, fmt.Errorf("oidc: issuer не совпадает: %s", doc.Issuer)
	}
	if doc.AuthorizationEndpoint == "" || doc.TokenEndpoint == "" || doc.JWKSURI == "" {
		return nil, errors.New("oidc: в discovery нет обязательных endpoint")
	}
	return &doc, nil
}

func (p *OIDCProvider) fetchJWKS(ctx context.Context, jwksURI string) (map[string]*rsa.PublicKey, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, jwksURI, nil)
	if err != nil {
		return nil, fmt.Errorf("oidc: %w", err)
	}

	var doc jwksDocument
	if err := p.doJSON(req, &doc); err != nil {
		return nil, fmt.Errorf("oidc: jwks: %w", err)
	}

	keys := make(map[string]*rsa.PublicKey, len(doc.Keys))
	for i, key := range doc.Keys {
		if !strings.EqualFold(key.Kty, "RSA") {
			continue
		}
		n, err := base64.RawURLEncoding.DecodeString(key.N)
		if err != nil {
			return nil, fmt.Errorf("oidc: jwks n: %w", err)
		}
		e, err := base64.RawURLEncoding.DecodeString(key.E)
		if err != nil {
			return nil, fmt.Errorf("oidc: jwks e: %w", err)
		}
		exp := new(big.Int).SetBytes(e)
		if !exp.IsInt64() || exp.Int64() <= 1 {
			return nil, fmt.Errorf("oidc: некорректная экспонента ключа %s", key.Kid)
		}

		kid := key.Kid
		if kid == "" {
			kid = fmt.Sprintf("key-%d", i)
		}
		keys[kid] = &rsa.PublicKey{N: new(big.Int).SetBytes(n), E: int(exp.Int64())}
	}
	if len(keys) == 0 {
		return nil, errors.New("oidc: в jwks нет RSA ключей")
	}
	return keys, nil
}

func (p *OIDCProvider) doJSON(req *http.Request, out interface{}) error {
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("status=%d body=%s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func validateIDToken(raw string, keys map[string]*rsa.PublicKey, issuer, clientID, expectedNonce string) (*Identity, error) {
	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(
		raw,
		claims,
		func(token *jwt.Token) (interface{}, error) {
			kid, _ := token.Header["kid"].(string)
			if kid != "" {
				key, ok := keys[kid]
				if !ok {
					return nil, fmt.Errorf("неизвестный kid: %s", kid)
				}
				return key, nil
			}
			if len(keys) == 1 {
				for _, key := range keys {
					return key, nil
				}
			}
			return nil, errors.New("в заголовке нет kid")
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithAudience(clientID),
		jwt.WithIssuer(issuer),
		jwt.WithIssuedAt(),
		jwt.WithLeeway(30*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("oidc: id_token невалиден: %w", err)
	}

	nonce, _ := claims["nonce"].(string)
	if expectedNonce == "" || nonce != expectedNonce {
		return nil, errors.New("oidc: nonce не совпадает")
	}

	sub, _ := claims["sub"].(string)
	if sub == "" {
		return nil, errors.New("oidc: в id_token нет sub")
	}

	email, _ := claims["email"].(string)
	name, _ := claims["name"].(string)

	return &Identity{
		Subject:       sub,
		Email:         strings.ToLower(strings.TrimSpace(email)),
		EmailVerified: boolClaim(claims["email_verified"]),
		Name:          strings.TrimSpace(name),
	}, nil
}

// boolClaim Google иногда присылает email_verified строкой.
func boolClaim(raw interface{}) bool {
	switch v := raw.(type) {
	case bool:
		return v
	case string:
		return strings.EqualFold(v, "true")
	default:
		return false
	}
}
