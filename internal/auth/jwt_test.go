package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenManager_RoundTrip(t *testing.T) {
	tm := NewTokenManager("secret", "mpesa-backend", time.Hour)

	tok, exp, err := tm.Generate("shop-1", "payments")
	require.NoError(t, err)
	assert.True(t, exp.After(time.Now()))

	claims, err := tm.Parse(tok)
	require.NoError(t, err)
	assert.Equal(t, "shop-1", claims.ClientID)
	assert.Equal(t, "payments", claims.Role)
}

func TestTokenManager_WrongSecret(t *testing.T) {
	tm := NewTokenManager("secret", "mpesa-backend", time.Hour)
	other := NewTokenManager("other", "mpesa-backend", time.Hour)

	tok, _, err := tm.Generate("shop-1", "payments")
	require.NoError(t, err)

	_, err = other.Parse(tok)
	assert.Error(t, err)
}

func TestTokenManager_WrongIssuer(t *testing.T) {
	tm := NewTokenManager("secret", "someone-else", time.Hour)
	ours := NewTokenManager("secret", "mpesa-backend", time.Hour)

	tok, _, err := tm.Generate("shop-1", "payments")
	require.NoError(t, err)

	_, err = ours.Parse(tok)
	assert.Error(t, err)
}

func TestTokenManager_Expired(t *testing.T) {
	tm := NewTokenManager("secret", "mpesa-backend", -time.Minute)

	tok, _, err := tm.Generate("shop-1", "payments")
	require.NoError(t, err)

	_, err = tm.Parse(tok)
	assert.Error(t, err)
}
