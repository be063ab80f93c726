package cachesvc

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"cacheview/internal/bootstrap/logging"
	"cacheview/internal/domain/cacheitem"
	"cacheview/internal/domain/snapshot"
	"cacheview/internal/errs"
	"cacheview/internal/ports"
)

// Service owns the cache: an in-memory view backed by a persistent store,
// publishing a fresh snapshot to viewers after every change.
type Service struct {
	cache     ports.Cache
	store     ports.ItemStore
	publisher ports.SnapshotPublisher
	now       func() time.Time

	// publishMu orders snapshot building with enqueueing so a snapshot is
	// never published after a newer one.
	publishMu sync.Mutex
}

type PutInput struct {
	Key   string
	Value string
	TTL   time.Duration
}

// NewService wires the cache usecases. publisher may be nil when no viewer
// transport is running (CLI maintenance commands).
func NewService(cache ports.Cache, store ports.ItemStore, publisher ports.SnapshotPublisher) *Service {
	return &Service{
		cache:     cache,
		store:     store,
		publisher: publisher,
		now:       time.Now,
	}
}

// Warm loads persisted items into the cache, purging the expired ones.
func (s *Service) Warm(ctx context.Context) (int, error) {
	if ctx == nil {
		return 0, errors.New("context is required")
	}
	logCtx := logging.WithComponent(ctx, "usecase.cachesvc")

	now := s.now()
	removed, err := s.store.DeleteExpired(ctx, now)
	if err != nil {
		return 0, errs.Wrap(err, "purge expired items")
	}

	items, err := s.store.List(ctx)
	if err != nil {
		return 0, errs.Wrap(err, "list persisted items")
	}

	loaded := 0
	for _, item := range items {
		if item.IsExpired(now) {
			continue
		}
		if err := s.cache.Set(ctx, item); err != nil {
			return loaded, errs.Wrapf(err, "load item %q", item.Key)
		}
		loaded++
	}

	logging.Info(logCtx, "cache warmed", slog.Int("loaded", loaded), slog.Int64("purged", removed))
	return loaded, nil
}

// Get returns a live item. Expired items are removed on access and reported
// as cacheitem.ErrNotFound.
func (s *Service) Get(ctx context.Context, key string) (cacheitem.Item, error) {
	item, found, err := s.cache.Get(ctx, key)
	if err != nil {
		return cacheitem.Item{}, err
	}
	if !found {
		return cacheitem.Item{}, cacheitem.ErrNotFound
	}
	if item.IsExpired(s.now()) {
		if err := s.remove(ctx, item.Key); err != nil {
			return cacheitem.Item{}, err
		}
		return cacheitem.Item{}, cacheitem.ErrNotFound
	}
	return item, nil
}

func (s *Service) Put(ctx context.Context, input PutInput) (cacheitem.Item, error) {
	if ctx == nil {
		return cacheitem.Item{}, errors.New("context is required")
	}

	item, err := cacheitem.New(input.Key, input.Value, input.TTL, s.now())
	if err != nil {
		return cacheitem.Item{}, err
	}
	// Persist first so a failed save never leaves the item visible.
	if err := s.store.Save(ctx, item); err != nil {
		return cacheitem.Item{}, errs.Wrap(err, "persist cache item")
	}
	if err := s.cache.Set(ctx, item); err != nil {
		return cacheitem.Item{}, errs.Wrap(err, "set cache item")
	}

	logging.Debug(logging.WithComponent(ctx, "usecase.cachesvc"), "cache item stored",
		slog.String("key", item.Key),
		slog.Time("expires_at", item.ExpiresAt),
	)
	s.publish(ctx)
	return item, nil
}

func (s *Service) Delete(ctx context.Context, key string) error {
	_, found, err := s.cache.Get(ctx, key)
	if err != nil {
		return err
	}
	if !found {
		return cacheitem.ErrNotFound
	}
	return s.remove(ctx, key)
}

// Snapshot returns the live items in key order as wire entries.
func (s *Service) Snapshot(ctx context.Context) (snapshot.Snapshot, error) {
	items, err := s.cache.Items(ctx)
	if err != nil {
		return nil, errs.Wrap(err, "list cache items")
	}

	now := s.now()
	out := make(snapshot.Snapshot, 0, len(items))
	for _, item := range items {
		if item.IsExpired(now) {
			continue
		}
		out = append(out, item.Entry(now))
	}
	return out, nil
}

// Sweep drops expired items from the cache and the store and returns how
// many cached items were removed.
func (s *Service) Sweep(ctx context.Context) (int, error) {
	items, err := s.cache.Items(ctx)
	if err != nil {
		return 0, errs.Wrap(err, "list cache items")
	}

	now := s.now()
	removed := 0
	for _, item := range items {
		if !item.IsExpired(now) {
			continue
		}
		if _, err := s.cache.Delete(ctx, item.Key); err != nil {
			return removed, errs.Wrapf(err, "evict %q", item.Key)
		}
		removed++
	}
	if _, err := s.store.DeleteExpired(ctx, now); err != nil {
		return removed, errs.Wrap(err, "purge expired items")
	}

	if removed > 0 {
		logging.Debug(logging.WithComponent(ctx, "usecase.cachesvc"), "expired items swept", slog.Int("removed", removed))
	}
	return removed, nil
}

// Publish pushes the current snapshot to the publisher, if any.
func (s *Service) Publish(ctx context.Context) error {
	if s.publisher == nil {
		return nil
	}

	s.publishMu.Lock()
	defer s.publishMu.Unlock()
	current, err := s.Snapshot(ctx)
	if err != nil {
		return err
	}
	return s.publisher.Publish(ctx, current)
}

// RunMaintenance sweeps every sweepEvery and republishes every broadcastEvery
// so viewers see remaining lifetimes count down. A zero interval disables
// that task. It returns nil when ctx is canceled.
func (s *Service) RunMaintenance(ctx context.Context, sweepEvery time.Duration, broadcastEvery time.Duration) error {
	logCtx := logging.WithComponent(ctx, "usecase.cachesvc")

	sweepC, stopSweep := ticker(sweepEvery)
	defer stopSweep()
	broadcastC, stopBroadcast := ticker(broadcastEvery)
	defer stopBroadcast()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-sweepC:
			removed, err := s.Sweep(ctx)
			if err != nil {
				logging.Warn(logCtx, "sweep failed", slog.Any("err", errs.Loggable(err)))
				continue
			}
			if removed > 0 {
				s.publish(ctx)
			}
		case <-broadcastC:
			s.publish(ctx)
		}
	}
}

func (s *Service) remove(ctx context.Context, key string) error {
	if _, err := s.cache.Delete(ctx, key); err != nil {
		return errs.Wrap(err, "delete cache item")
	}
	if err := s.store.Delete(ctx, key); err != nil {
		return errs.Wrap(err, "delete persisted item")
	}
	s.publish(ctx)
	return nil
}

func (s *Service) publish(ctx context.Context) {
	if err := s.Publish(ctx); err != nil {
		logging.Warn(logging.WithComponent(ctx, "usecase.cachesvc"), "publish snapshot failed", slog.Any("err", errs.Loggable(err)))
	}
}

func ticker(every time.Duration) (<-chan time.Time, func()) {
	if every <= 0 {
		return nil, func() {}
	}
	t := time.NewTicker(every)
	return t.C, t.Stop
}
