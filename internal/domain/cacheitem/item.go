package cacheitem

import (
	"errors"
	"strings"
	"time"

	"cacheview/internal/domain/snapshot"
)

var (
	ErrKeyRequired = errors.New("cache key is required")
	ErrInvalidTTL  = errors.New("cache ttl must be positive")
	ErrNotFound    = errors.New("cache key not found")
)

// Item is a stored cache value with an absolute expiration time.
type Item struct {
	Key       string    `json:"key"`
	Value     string    `json:"value"`
	ExpiresAt time.Time `json:"expires_at"`
}

// New validates key and ttl and returns an item expiring ttl after now.
func New(key string, value string, ttl time.Duration, now time.Time) (Item, error) {
	normalized, err := NormalizeKey(key)
	if err != nil {
		return Item{}, err
	}
	if ttl <= 0 {
		return Item{}, ErrInvalidTTL
	}
	return Item{
		Key:       normalized,
		Value:     value,
		ExpiresAt: now.Add(ttl).UTC(),
	}, nil
}

func NormalizeKey(key string) (string, error) {
	trimmed := strings.TrimSpace(key)
	if trimmed == "" {
		return "", ErrKeyRequired
	}
	return trimmed, nil
}

// IsExpired reports whether the item is no longer visible at now.
func (i Item) IsExpired(now time.Time) bool {
	return !now.Before(i.ExpiresAt)
}

// Remaining is the lifetime left at now, never negative.
func (i Item) Remaining(now time.Time) time.Duration {
	left := i.ExpiresAt.Sub(now)
	if left < 0 {
		return 0
	}
	return left
}

// Entry converts the item to its wire form at now.
func (i Item) Entry(now time.Time) snapshot.CacheEntry {
	return snapshot.CacheEntry{
		Key:    i.Key,
		Value:  i.Value,
		Expiry: FormatRemaining(i.Remaining(now)),
	}
}

// FormatRemaining rounds d to whole seconds, e.g. 30s or 1m30s.
func FormatRemaining(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	return d.Round(time.Second).String()
}
