package tokens

import (
	"context"

	lru "github.com/hashicorp/golang-lru/v2"
)

// CachedStore is a read-through Store that keeps the most recently used
// tokens in memory. Misses are not cached, so a token posted later is found
// on its first redemption.
type CachedStore struct {
	backend Store
	cache   *lru.Cache[string, Token]
}

// NewCachedStore wraps backend with an LRU of the given capacity.
// A capacity below 1 disables caching and returns backend unchanged.
func NewCachedStore(backend Store, capacity int) Store {
	if capacity < 1 {
		return backend
	}
	cache, err := lru.New[string, Token](capacity)
	if err != nil {
		return backend
	}
	return &CachedStore{backend: backend, cache: cache}
}

// Put writes through to the backend and refreshes the cached copy.
func (c *CachedStore) Put(ctx context.Context, tok Token) error {
	if err := c.backend.Put(ctx, tok); err != nil {
		return err
	}
	c.cache.Add(tok.Key, tok)
	return nil
}

// Lookup serves hits from memory and fills the cache from the backend.
func (c *CachedStore) Lookup(ctx context.Context, key string) (Token, bool, error) {
	if tok, ok := c.cache.Get(key); ok {
		return tok, true, nil
	}
	tok, found, err := c.backend.Lookup(ctx, key)
	if err != nil || !found {
		return tok, found, err
	}
	c.cache.Add(key, tok)
	return tok, true, nil
}

// Count always asks the backend.
func (c *CachedStore) Count(ctx context.Context) (int, error) {
	return c.backend.Count(ctx)
}

// Len returns the number of cached tokens.
func (c *CachedStore) Len() int {
	return c.cache.Len()
}
