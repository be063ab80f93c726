package database

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	gormsqlite "github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"cacheview/internal/bootstrap/config"
	"cacheview/internal/bootstrap/logging"
	"cacheview/internal/errs"
	boltstore "cacheview/internal/infrastructure/persistence/bolt"
	"cacheview/internal/infrastructure/persistence/sqlite/model"
	sqliterepo "cacheview/internal/infrastructure/persistence/sqlite/repository"
	"cacheview/internal/ports"
)

// OpenItemStore opens the persistent item store selected by cfg.Driver and
// makes sure its schema exists.
func OpenItemStore(ctx context.Context, cfg config.StorageConfig) (ports.ItemStore, error) {
	if ctx == nil {
		return nil, errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return nil, errs.Wrap(err, "check context")
	}

	logCtx := logging.WithComponent(ctx, "bootstrap.database")

	switch driver := strings.ToLower(strings.TrimSpace(cfg.Driver)); driver {
	case "bolt":
		if err := ensureParentDirectory(logCtx, cfg.DSN); err != nil {
			return nil, errs.Wrap(err, "ensure bolt directory")
		}
		store, err := boltstore.Open(cfg.DSN, cfg.Bucket)
		if err != nil {
			return nil, err
		}
		logging.Info(logCtx, "item store opened", slog.String("driver", driver), slog.String("dsn", cfg.DSN))
		return store, nil
	default:
		db, err := Open(logCtx, cfg)
		if err != nil {
			return nil, err
		}
		if err := Migrate(logCtx, db); err != nil {
			if sqlDB, dbErr := db.DB(); dbErr == nil {
				_ = sqlDB.Close()
			}
			return nil, err
		}
		return sqliterepo.NewCacheItemRepository(db), nil
	}
}

// Open opens a gorm connection for the sqlite or postgres driver.
func Open(ctx context.Context, cfg config.StorageConfig) (*gorm.DB, error) {
	if ctx == nil {
		return nil, errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return nil, errs.Wrap(err, "check context")
	}

	logCtx := logging.WithComponent(ctx, "bootstrap.database")
	gormCfg := &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)}

	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case "sqlite", "sqlite3":
		if err := ensureParentDirectory(logCtx, cfg.DSN); err != nil {
			return nil, errs.Wrap(err, "ensure sqlite directory")
		}

		db, err := gorm.Open(gormsqlite.Open(cfg.DSN), gormCfg)
		if err != nil {
			return nil, errs.Wrap(err, "open sqlite db")
		}
		logging.Info(logCtx, "database opened", slog.String("driver", "sqlite"), slog.String("dsn", cfg.DSN))
		return db, nil
	case "postgres":
		db, err := gorm.Open(postgres.Open(cfg.DSN), gormCfg)
		if err != nil {
			return nil, errs.Wrap(err, "open postgres db")
		}
		logging.Info(logCtx, "database opened", slog.String("driver", "postgres"))
		return db, nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

// Migrate creates or updates the cache item schema.
func Migrate(ctx context.Context, db *gorm.DB) error {
	if err := db.WithContext(ctx).AutoMigrate(&model.CacheItem{}); err != nil {
		return errs.Wrap(err, "auto migrate schema")
	}
	logging.Info(logging.WithComponent(ctx, "bootstrap.database"), "schema migration completed")
	return nil
}

func ensureParentDirectory(ctx context.Context, dsn string) error {
	if err := ctx.Err(); err != nil {
		return errs.Wrap(err, "check context")
	}

	candidate := strings.TrimSpace(dsn)
	if candidate == "" || candidate == ":memory:" {
		return nil
	}

	if strings.HasPrefix(strings.ToLower(candidate), "file:") {
		candidate = candidate[len("file:"):]
	}
	if idx := strings.Index(candidate, "?"); idx >= 0 {
		candidate = candidate[:idx]
	}

	dir := filepath.Dir(candidate)
	if dir == "" || dir == "." {
		return nil
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errs.Wrapf(err, "create directory %q", dir)
	}

	logging.Debug(ctx, "storage directory ensured", slog.String("dir", dir))
	return nil
}
