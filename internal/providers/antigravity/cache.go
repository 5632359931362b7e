package antigravity

import (
	"sync"
	"time"
)

// cachedToken is one OAuth access token with its expiry.
type cachedToken struct {
	accessToken string
	expiresAt   time.Time
}

// isValid reports whether the token is still usable. A five minute buffer
// keeps us from presenting a token that expires mid-request.
func (t cachedToken) isValid() bool {
	if t.accessToken == "" {
		return false
	}
	return time.Now().Add(5 * time.Minute).Before(t.expiresAt)
}

// tokenCache holds access tokens keyed by the refresh-token value that
// minted them. Each provider instance owns exactly one; clear drops
// everything so the next fetch re-authenticates from scratch.
type tokenCache struct {
	mu sync.RWMutex
	m  map[string]cachedToken
}

func newTokenCache() *tokenCache {
	return &tokenCache{m: make(map[string]cachedToken)}
}

func (c *tokenCache) get(key string) (cachedToken, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	tok, ok := c.m[key]
	return tok, ok
}

func (c *tokenCache) put(key string, tok cachedToken) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m[key] = tok
}

func (c *tokenCache) clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m = make(map[string]cachedToken)
}

// userCache holds account emails keyed by credential so the UI can label
// the provider without refetching user info every cycle.
type userCache struct {
	mu sync.RWMutex
	m  map[string]string
}

func newUserCache() *userCache {
	return &userCache{m: make(map[string]string)}
}

func (c *userCache) get(key string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	email, ok := c.m[key]
	return email, ok
}

func (c *userCache) put(key, email string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m[key] = email
}

func (c *userCache) clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m = make(map[string]string)
}
