package cache

import (
	"context"
	"errors"
	"sort"
	"sync"

	"cacheview/internal/domain/cacheitem"
	"cacheview/internal/errs"
	"cacheview/internal/ports"
)

// MemoryCache keeps items in a map guarded by a RW mutex. Expiry is not
// enforced here; callers decide visibility against their clock.
type MemoryCache struct {
	mu    sync.RWMutex
	items map[string]cacheitem.Item
}

var _ ports.Cache = (*MemoryCache)(nil)

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{items: make(map[string]cacheitem.Item)}
}

func (c *MemoryCache) Get(ctx context.Context, key string) (cacheitem.Item, bool, error) {
	normalized, err := checkKey(ctx, key)
	if err != nil {
		return cacheitem.Item{}, false, err
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	item, ok := c.items[normalized]
	return item, ok, nil
}

func (c *MemoryCache) Set(ctx context.Context, item cacheitem.Item) error {
	normalized, err := checkKey(ctx, item.Key)
	if err != nil {
		return err
	}
	item.Key = normalized

	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[normalized] = item
	return nil
}

func (c *MemoryCache) Delete(ctx context.Context, key string) (bool, error) {
	normalized, err := checkKey(ctx, key)
	if err != nil {
		return false, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.items[normalized]
	delete(c.items, normalized)
	return ok, nil
}

func (c *MemoryCache) Items(ctx context.Context) ([]cacheitem.Item, error) {
	if ctx == nil {
		return nil, errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return nil, errs.Wrap(err, "check context")
	}

	c.mu.RLock()
	out := make([]cacheitem.Item, 0, len(c.items))
	for _, item := range c.items {
		out = append(out, item)
	}
	c.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func checkKey(ctx context.Context, key string) (string, error) {
	if ctx == nil {
		return "", errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return "", errs.Wrap(err, "check context")
	}
	return cacheitem.NormalizeKey(key)
}
