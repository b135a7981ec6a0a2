package storage

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// CachedStore is a read-through cache in front of a slower backend. Writes go
// to the backend first and then replace the cached copy.
type CachedStore struct {
	inner Store
	cache *gocache.Cache
}

func NewCachedStore(inner Store, ttl time.Duration) *CachedStore {
	return &CachedStore{
		inner: inner,
		cache: gocache.New(ttl, 2*ttl),
	}
}

func (c *CachedStore) Get(ctx context.Context, key string) ([]byte, error) {
	if v, found := c.cache.Get(key); found {
		if data, ok := v.([]byte); ok {
			return append([]byte(nil), data...), nil
		}
	}

	data, err := c.inner.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	c.cache.SetDefault(key, append([]byte(nil), data...))
	return data, nil
}

func (c *CachedStore) Put(ctx context.Context, key string, value []byte) error {
	if err := c.inner.Put(ctx, key, value); err != nil {
		c.cache.Delete(key)
		return err
	}
	c.cache.SetDefault(key, append([]byte(nil), value...))
	return nil
}

func (c *CachedStore) Delete(ctx context.Context, key string) error {
	c.cache.Delete(key)
	return c.inner.Delete(ctx, key)
}

func (c *CachedStore) Close() error {
	c.cache.Flush()
	return c.inner.Close()
}
