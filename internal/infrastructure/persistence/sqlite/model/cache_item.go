package model

// CacheItem is the persisted form of a cache item. Expiry is stored as unix
// milliseconds so range deletes compare integers on every driver.
type CacheItem struct {
	Key         string `gorm:"column:key;type:text;primaryKey"`
	Value       string `gorm:"column:value;type:text;not null"`
	ExpiresAtMs int64  `gorm:"column:expires_at_ms;not null;index"`
	UpdatedAt   string `gorm:"column:updated_at;type:text;not null"`
}

func (CacheItem) TableName() string {
	return "cache_items"
}
