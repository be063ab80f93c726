package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"cacheview/internal/domain/cacheitem"
	"cacheview/internal/errs"
	"cacheview/internal/infrastructure/persistence/sqlite/model"
	"cacheview/internal/ports"
)

// CacheItemRepository stores cache items through gorm. It works with any
// gorm dialector; the application opens it with sqlite or postgres.
type CacheItemRepository struct {
	db *gorm.DB
}

var _ ports.ItemStore = (*CacheItemRepository)(nil)

func NewCacheItemRepository(db *gorm.DB) *CacheItemRepository {
	return &CacheItemRepository{db: db}
}

func (r *CacheItemRepository) dbFromContext(ctx context.Context) (*gorm.DB, error) {
	if ctx == nil {
		return nil, errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return nil, errs.Wrap(err, "check context")
	}
	return r.db.WithContext(ctx), nil
}

func (r *CacheItemRepository) List(ctx context.Context) ([]cacheitem.Item, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return nil, err
	}

	var rows []model.CacheItem
	if err := db.Order("key asc").Find(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "query cache items")
	}

	items := make([]cacheitem.Item, 0, len(rows))
	for _, row := range rows {
		items = append(items, mapCacheItem(row))
	}
	return items, nil
}

func (r *CacheItemRepository) Save(ctx context.Context, item cacheitem.Item) error {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return err
	}
	key, err := cacheitem.NormalizeKey(item.Key)
	if err != nil {
		return err
	}

	row := model.CacheItem{
		Key:         key,
		Value:       item.Value,
		ExpiresAtMs: item.ExpiresAt.UnixMilli(),
		UpdatedAt:   time.Now().UTC().Format(time.RFC3339Nano),
	}

	if err := db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "key"}},
		DoUpdates: clause.Assignments(map[string]any{
			"value":         row.Value,
			"expires_at_ms": row.ExpiresAtMs,
			"updated_at":    row.UpdatedAt,
		}),
	}).Create(&row).Error; err != nil {
		return errs.Wrapf(err, "upsert cache item %q", key)
	}
	return nil
}

func (r *CacheItemRepository) Delete(ctx context.Context, key string) error {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return err
	}
	normalized, err := cacheitem.NormalizeKey(key)
	if err != nil {
		return err
	}

	if err := db.Where("key = ?", normalized).Delete(&model.CacheItem{}).Error; err != nil {
		return errs.Wrapf(err, "delete cache item %q", normalized)
	}
	return nil
}

func (r *CacheItemRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return 0, err
	}

	result := db.Where("expires_at_ms <= ?", now.UnixMilli()).Delete(&model.CacheItem{})
	if result.Error != nil {
		return 0, errs.Wrap(result.Error, "delete expired cache items")
	}
	return result.RowsAffected, nil
}

// Close releases the underlying connection pool.
func (r *CacheItemRepository) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return errs.Wrap(err, "get sql db")
	}
	if err := sqlDB.Close(); err != nil {
		return errs.Wrap(err, "close sql db")
	}
	return nil
}

func mapCacheItem(row model.CacheItem) cacheitem.Item {
	return cacheitem.Item{
		Key:       row.Key,
		Value:     row.Value,
		ExpiresAt: time.UnixMilli(row.ExpiresAtMs).UTC(),
	}
}
