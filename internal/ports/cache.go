package ports

import (
	"context"

	"cacheview/internal/domain/cacheitem"
)

// Cache is the hot, in-process view of cache items.
// Implementations must be safe for concurrent use.
type Cache interface {
	Get(ctx context.Context, key string) (item cacheitem.Item, found bool, err error)
	Set(ctx context.Context, item cacheitem.Item) error
	Delete(ctx context.Context, key string) (found bool, err error)
	// Items returns every held item ordered by key, expired or not.
	Items(ctx context.Context) ([]cacheitem.Item, error)
}
