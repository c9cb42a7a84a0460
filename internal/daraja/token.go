package daraja

import (
	"context"
	"sync"
	"time"
)

// tokens are refreshed this long before their stated expiry
const expiryMargin = 30 * time.Second

// AccessToken is a gateway bearer token with its lifetime.
type AccessToken struct {
	Value      string        `json:"access_token"`
	ObtainedAt time.Time     `json:"obtained_at"`
	TTL        time.Duration `json:"-"`
}

func (t AccessToken) ExpiresAt() time.Time { return t.ObtainedAt.Add(t.TTL) }

type fetchFunc func(ctx context.Context) (AccessToken, error)

// TokenCache hands out a valid bearer token, fetching a fresh one when the
// cached value is absent or inside the expiry margin. The mutex is held
// across the fetch so concurrent callers trigger a single round trip; a
// failed fetch caches nothing.
type TokenCache struct {
	mu    sync.Mutex
	fetch fetchFunc
	tok   AccessToken
	now   func() time.Time
}

func NewTokenCache(fetch fetchFunc) *TokenCache {
	return &TokenCache{fetch: fetch, now: time.Now}
}

func (c *TokenCache) Get(ctx context.Context) (AccessToken, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.tok.Value != "" && c.now().Before(c.tok.ExpiresAt().Add(-expiryMargin)) {
		return c.tok, nil
	}
	tok, err := c.fetch(ctx)
	if err != nil {
		return AccessToken{}, err
	}
	c.tok = tok
	return tok, nil
}

// Invalidate drops the cached token so the next Get refetches.
func (c *TokenCache) Invalidate() {
	c.mu.Lock()
	c.tok = AccessToken{}
	c.mu.Unlock()
}
