package oauth

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/shop-backend/internal/cache"
)

type fakeIdP struct {
	srv    *httptest.Server
	key    *rsa.PrivateKey
	claims jwt.MapClaims
}

func newFakeIdP(t *testing.T) *fakeIdP {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	idp := &fakeIdP{key: key}
	mux := http.NewServeMux()
	idp.srv = httptest.NewServer(mux)
	t.Cleanup(idp.srv.Close)

	mux.HandleFunc("/.well-known/openid-configuration", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{
			"issuer":                 idp.srv.URL,
			"authorization_endpoint": idp.srv.URL + "/authorize",
			"token_endpoint":         idp.srv.URL + "/token",
			"jwks_uri":               idp.srv.URL + "/jwks",
		})
	})
	mux.HandleFunc("/jwks", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"keys": []map[string]string{{
				"kty": "RSA",
				"kid": "k1",
				"n":   base64.RawURLEncoding.EncodeToString(key.N.Bytes()),
				"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(key.E)).Bytes()),
			}},
		})
	})
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		if r.Form.Get("code") != "good-code" {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
			return
		}
		token := jwt.NewWithClaims(jwt.SigningMethodRS256, idp.claims)
		token.Header["kid"] = "k1"
		signed, err := token.SignedString(key)
		require.NoError(t, err)
		_ = json.NewEncoder(w).Encode(map[string]string{"id_token": signed, "access_token": "at"})
	})

	return idp
}

func (f *fakeIdP) provider() *OIDCProvider {
	return NewOIDCProvider(ProviderConfig{
		IssuerURL:    f.srv.URL,
		ClientID:     "client-1",
		ClientSecret: "secret",
		RedirectURL:  "http://localhost/callback",
	}, f.srv.Client())
}

func (f *fakeIdP) validClaims(nonce string) jwt.MapClaims {
	now := time.Now()
	return jwt.MapClaims{
		"iss":            f.srv.URL,
		"aud":            "client-1",
		"sub":            "g-123",
		"email":          "Buyer@Example.com",
		"email_verified": true,
		"name":           "Buyer",
		"nonce":          nonce,
		"iat":            now.Unix(),
		"exp":            now.Add(time.Hour).Unix(),
	}
}

func TestAuthorizeURL(t *testing.T) {
	idp := newFakeIdP(t)

	raw, err := idp.provider().AuthorizeURL(context.Background(), "st", "nn")
	require.NoError(t, err)

	u, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "/authorize", u.Path)
	assert.Equal(t, "st", u.Query().Get("state"))
	assert.Equal(t, "nn", u.Query().Get("nonce"))
	assert.Equal(t, "client-1", u.Query().Get("client_id"))
	assert.Equal(t, "openid email profile", u.Query().Get("scope"))
}

func TestExchange_Success(t *testing.T) {
	idp := newFakeIdP(t)
	idp.claims = idp.validClaims("nonce-1")

	identity, err := idp.provider().Exchange(context.Background(), "good-code", "nonce-1")
	require.NoError(t, err)

	assert.Equal(t, "google", identity.Provider)
	assert.Equal(t, "g-123", identity.Subject)
	assert.Equal(t, "buyer@example.com", identity.Email)
	assert.True(t, identity.EmailVerified)
}

func TestExchange_NonceMismatch(t *testing.T) {
	idp := newFakeIdP(t)
	idp.claims = idp.validClaims("nonce-1")

	_, err := idp.provider().Exchange(context.Background(), "good-code", "other")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nonce")
}

func TestExchange_WrongAudience(t *testing.T) {
	idp := newFakeIdP(t)
	claims := idp.validClaims("n")
	claims["aud"] = "someone-else"
	idp.claims = claims

	_, err := idp.provider().Exchange(context.Background(), "good-code", "n")
	assert.Error(t, err)
}

func TestExchange_BadCode(t *testing.T) {
	idp := newFakeIdP(t)
	idp.claims = idp.validClaims("n")

	_, err := idp.provider().Exchange(context.Background(), "bad-code", "n")
	assert.Error(t, err)
}

func TestMemoryStateStore_TakeOnce(t *testing.T) {
	store := NewMemoryStateStore(cache.NewMemory(context.Background(), 0))
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "s1", AuthState{Provider: "google", Nonce: "n"}, time.Minute))

	got, err := store.Take(ctx, "s1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "n", got.Nonce)

	again, err := store.Take(ctx, "s1")
	require.NoError(t, err)
	assert.Nil(t, again)
}

func TestMemoryStateStore_Expired(t *testing.T) {
	store := NewMemoryStateStore(cache.NewMemory(context.Background(), 0))
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "s1", AuthState{Nonce: "n"}, -time.Second))

	got, err := store.Take(ctx, "s1")
	require.NoError(t, err)
	assert.Nil(t, got)
}
