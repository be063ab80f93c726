package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"cacheview/internal/domain/cacheitem"
)

func TestMemoryCacheSetGetDelete(t *testing.T) {
	cache := NewMemoryCache()
	ctx := context.Background()
	expires := time.Date(2026, 2, 14, 10, 0, 30, 0, time.UTC)

	if err := cache.Set(ctx, cacheitem.Item{Key: "session:1", Value: "alice", ExpiresAt: expires}); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	item, found, err := cache.Get(ctx, " session:1 ")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !found || item.Value != "alice" || !item.ExpiresAt.Equal(expires) {
		t.Fatalf("Get() = %+v, found=%v", item, found)
	}

	if err := cache.Set(ctx, cacheitem.Item{Key: "session:1", Value: "bob", ExpiresAt: expires}); err != nil {
		t.Fatalf("Set(update) error = %v", err)
	}
	item, _, _ = cache.Get(ctx, "session:1")
	if item.Value != "bob" {
		t.Fatalf("Get() after update = %q, want bob", item.Value)
	}

	deleted, err := cache.Delete(ctx, "session:1")
	if err != nil || !deleted {
		t.Fatalf("Delete() = %v, %v", deleted, err)
	}
	deleted, err = cache.Delete(ctx, "session:1")
	if err != nil || deleted {
		t.Fatalf("second Delete() = %v, %v, want false, nil", deleted, err)
	}
	if _, found, _ := cache.Get(ctx, "session:1"); found {
		t.Fatalf("Get() expected found=false after delete")
	}
}

func TestMemoryCacheRejectsEmptyKey(t *testing.T) {
	cache := NewMemoryCache()
	ctx := context.Background()

	if err := cache.Set(ctx, cacheitem.Item{Key: ""}); !errors.Is(err, cacheitem.ErrKeyRequired) {
		t.Fatalf("Set() error = %v, want ErrKeyRequired", err)
	}
	if _, _, err := cache.Get(ctx, " "); !errors.Is(err, cacheitem.ErrKeyRequired) {
		t.Fatalf("Get() error = %v, want ErrKeyRequired", err)
	}
	if _, err := cache.Delete(ctx, ""); !errors.Is(err, cacheitem.ErrKeyRequired) {
		t.Fatalf("Delete() error = %v, want ErrKeyRequired", err)
	}
}

func TestMemoryCacheItemsSortedByKey(t *testing.T) {
	cache := NewMemoryCache()
	ctx := context.Background()
	for _, key := range []string{"c", "a", "b"} {
		if err := cache.Set(ctx, cacheitem.Item{Key: key}); err != nil {
			t.Fatalf("Set(%s) error = %v", key, err)
		}
	}

	items, err := cache.Items(ctx)
	if err != nil {
		t.Fatalf("Items() error = %v", err)
	}
	if len(items) != 3 || items[0].Key != "a" || items[1].Key != "b" || items[2].Key != "c" {
		t.Fatalf("Items() = %+v", items)
	}
}

func TestMemoryCacheConcurrentAccess(t *testing.T) {
	cache := NewMemoryCache()
	ctx := context.Background()

	var wg sync.WaitGroup
	for worker := 0; worker < 8; worker++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				key := fmt.Sprintf("k%d-%d", worker, i%10)
				_ = cache.Set(ctx, cacheitem.Item{Key: key, Value: "v"})
				_, _, _ = cache.Get(ctx, key)
				_, _ = cache.Items(ctx)
			}
		}(worker)
	}
	wg.Wait()

	items, _ := cache.Items(ctx)
	if len(items) != 80 {
		t.Fatalf("len(Items()) = %d, want 80", len(items))
	}
}

func TestMemoryCacheCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewMemoryCache().Items(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("Items() error = %v, want context.Canceled", err)
	}
}
