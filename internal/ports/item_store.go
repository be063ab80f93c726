package ports

import (
	"context"
	"time"

	"cacheview/internal/domain/cacheitem"
)

// ItemStore persists cache items so a restarted server can warm its cache.
// Adapters may be backed by SQL databases (gorm) or bbolt.
type ItemStore interface {
	List(ctx context.Context) ([]cacheitem.Item, error)
	Save(ctx context.Context, item cacheitem.Item) error
	Delete(ctx context.Context, key string) error
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
	Close() error
}
