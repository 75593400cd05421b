package service

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/shop-backend/internal/models"
)

func TestTokenManager_RoundTrip(t *testing.T) {
	m := NewTokenManager("access-secret", "refresh-secret", time.Minute, time.Hour)
	account := &models.Account{ID: uuid.New(), Role: models.RoleAdmin}

	pair, err := m.GeneratePair(account)
	require.NoError(t, err)
	assert.EqualValues(t, 60, pair.ExpiresIn)

	id, role, err := m.ParseAccess(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, account.ID, id)
	assert.Equal(t, models.RoleAdmin, role)

	refreshID, err := m.ParseRefresh(pair.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, account.ID, refreshID)
}

func TestTokenManager_RejectsSwappedTokens(t *testing.T) {
	m := NewTokenManager("same-secret", "same-secret", time.Minute, time.Hour)
	pair, err := m.GeneratePair(&models.Account{ID: uuid.New(), Role: models.RoleUser})
	require.NoError(t, err)

	_, _, err = m.ParseAccess(pair.RefreshToken)
	assert.Error(t, err)
}

func TestTokenManager_RejectsExpiredAndForeignTokens(t *testing.T) {
	m := NewTokenManager("access-secret", "refresh-secret", -time.Minute, time.Hour)
	pair, err := m.GeneratePair(&models.Account{ID: uuid.New(), Role: models.RoleUser})
	require.NoError(t, err)

	_, _, err = m.ParseAccess(pair.AccessToken)
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)

	other := NewTokenManager("other-secret", "other-refresh", time.Minute, time.Hour)
	_, err = other.ParseRefresh(pair.RefreshToken)
	assert.Error(t, err)

	none := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"sub": uuid.NewString(), "typ": "access"})
	raw, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, _, err = m.ParseAccess(raw)
	assert.Error(t, err)
}
