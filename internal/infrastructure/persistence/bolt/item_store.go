package bolt

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	bbolt "go.etcd.io/bbolt"

	"cacheview/internal/domain/cacheitem"
	"cacheview/internal/errs"
	"cacheview/internal/ports"
)

// ItemStore keeps cache items in a single bbolt bucket, one JSON record per key.
type ItemStore struct {
	db     *bbolt.DB
	bucket []byte
}

var _ ports.ItemStore = (*ItemStore)(nil)

type record struct {
	Value       string `json:"value"`
	ExpiresAtMs int64  `json:"expires_at_ms"`
}

// Open opens or creates the database at path and ensures the bucket exists.
func Open(path string, bucket string) (*ItemStore, error) {
	if bucket == "" {
		bucket = "cache"
	}
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, errs.Wrapf(err, "open bolt db %q", path)
	}
	if err := db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucket))
		return err
	}); err != nil {
		_ = db.Close()
		return nil, errs.Wrap(err, "create bolt bucket")
	}
	return &ItemStore{db: db, bucket: []byte(bucket)}, nil
}

func (s *ItemStore) List(ctx context.Context) ([]cacheitem.Item, error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}

	items := make([]cacheitem.Item, 0)
	err := s.db.View(func(tx *bbolt.Tx) error {
		// bbolt iterates keys in byte order, which matches key ordering elsewhere.
		return tx.Bucket(s.bucket).ForEach(func(k, v []byte) error {
			var rec record
			if err := json.Unmarshal(v, &rec); err != nil {
				return errs.Wrapf(err, "decode record %q", string(k))
			}
			items = append(items, cacheitem.Item{
				Key:       string(k),
				Value:     rec.Value,
				ExpiresAt: time.UnixMilli(rec.ExpiresAtMs).UTC(),
			})
			return nil
		})
	})
	if err != nil {
		return nil, errs.Wrap(err, "list bolt items")
	}
	return items, nil
}

func (s *ItemStore) Save(ctx context.Context, item cacheitem.Item) error {
	if err := checkContext(ctx); err != nil {
		return err
	}
	key, err := cacheitem.NormalizeKey(item.Key)
	if err != nil {
		return err
	}

	payload, err := json.Marshal(record{Value: item.Value, ExpiresAtMs: item.ExpiresAt.UnixMilli()})
	if err != nil {
		return errs.Wrap(err, "encode record")
	}
	if err := s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(s.bucket).Put([]byte(key), payload)
	}); err != nil {
		return errs.Wrapf(err, "put bolt item %q", key)
	}
	return nil
}

func (s *ItemStore) Delete(ctx context.Context, key string) error {
	if err := checkContext(ctx); err != nil {
		return err
	}
	normalized, err := cacheitem.NormalizeKey(key)
	if err != nil {
		return err
	}

	if err := s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(s.bucket).Delete([]byte(normalized))
	}); err != nil {
		return errs.Wrapf(err, "delete bolt item %q", normalized)
	}
	return nil
}

func (s *ItemStore) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	if err := checkContext(ctx); err != nil {
		return 0, err
	}

	var removed int64
	cutoff := now.UnixMilli()
	err := s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(s.bucket)
		var expired [][]byte
		if err := bucket.ForEach(func(k, v []byte) error {
			var rec record
			if err := json.Unmarshal(v, &rec); err != nil {
				return errs.Wrapf(err, "decode record %q", string(k))
			}
			if rec.ExpiresAtMs <= cutoff {
				expired = append(expired, append([]byte(nil), k...))
			}
			return nil
		}); err != nil {
			return err
		}
		// Keys cannot be deleted while ForEach is iterating the bucket.
		for _, k := range expired {
			if err := bucket.Delete(k); err != nil {
				return err
			}
		}
		removed = int64(len(expired))
		return nil
	})
	if err != nil {
		return 0, errs.Wrap(err, "delete expired bolt items")
	}
	return removed, nil
}

func (s *ItemStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func checkContext(ctx context.Context) error {
	if ctx == nil {
		return errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return errs.Wrap(err, "check context")
	}
	return nil
}
