package daraja

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenCache_ReusesValidToken(t *testing.T) {
	calls := 0
	c := NewTokenCache(func(ctx context.Context) (AccessToken, error) {
		calls++
		return AccessToken{Value: "tok", ObtainedAt: time.Now(), TTL: time.Hour}, nil
	})

	for i := 0; i < 3; i++ {
		tok, err := c.Get(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "tok", tok.Value)
	}
	assert.Equal(t, 1, calls, "a token with remaining TTL must not trigger a refresh")
}

func TestTokenCache_RefreshesExpired(t *testing.T) {
	calls := 0
	c := NewTokenCache(func(ctx context.Context) (AccessToken, error) {
		calls++
		// already past its expiry margin
		return AccessToken{Value: "tok", ObtainedAt: time.Now().Add(-time.Hour), TTL: time.Minute}, nil
	})

	_, err := c.Get(context.Background())
	require.NoError(t, err)
	_, err = c.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, calls, "an expired token must be refetched on every Get")
}

func TestTokenCache_InsideExpiryMargin(t *testing.T) {
	calls := 0
	c := NewTokenCache(func(ctx context.Context) (AccessToken, error) {
		calls++
		return AccessToken{Value: "tok", ObtainedAt: time.Now(), TTL: expiryMargin / 2}, nil
	})

	_, _ = c.Get(context.Background())
	_, _ = c.Get(context.Background())
	assert.Equal(t, 2, calls, "a token inside the safety margin counts as expired")
}

func TestTokenCache_FailureCachesNothing(t *testing.T) {
	calls := 0
	fail := true
	c := NewTokenCache(func(ctx context.Context) (AccessToken, error) {
		calls++
		if fail {
			return AccessToken{}, errors.New("boom")
		}
		return AccessToken{Value: "tok", ObtainedAt: time.Now(), TTL: time.Hour}, nil
	})

	_, err := c.Get(context.Background())
	require.Error(t, err)

	fail = false
	tok, err := c.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "tok", tok.Value)
	assert.Equal(t, 2, calls)
}

func TestTokenCache_Invalidate(t *testing.T) {
	calls := 0
	c := NewTokenCache(func(ctx context.Context) (AccessToken, error) {
		calls++
		return AccessToken{Value: "tok", ObtainedAt: time.Now(), TTL: time.Hour}, nil
	})

	_, _ = c.Get(context.Background())
	c.Invalidate()
	_, _ = c.Get(context.Background())
	assert.Equal(t, 2, calls)
}
