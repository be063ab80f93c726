package bootstrap

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"cacheview/internal/bootstrap/config"
	"cacheview/internal/bootstrap/logging"
	"cacheview/internal/errs"
	"cacheview/internal/infrastructure/transport/httpapi"
	"cacheview/internal/ports"
	"cacheview/internal/usecase/cachesvc"
)

// App is the assembled cache server: configuration, persistent store, the
// snapshot hub and the cache service on top of them.
type App struct {
	Config  config.Config
	Store   ports.ItemStore
	Hub     *httpapi.Hub
	Service *cachesvc.Service
}

// Handler returns the HTTP API. Request logs inherit the attributes of ctx.
func (a *App) Handler(ctx context.Context) http.Handler {
	return httpapi.NewRouter(ctx, a.Service, a.Hub)
}

// Warm loads persisted items into the in-memory cache.
func (a *App) Warm(ctx context.Context) error {
	if ctx == nil {
		return errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return errs.Wrap(err, "check context")
	}

	logCtx := logging.WithComponent(ctx, "bootstrap.app")
	loaded, err := a.Service.Warm(logCtx)
	if err != nil {
		return errs.Wrap(err, "warm cache")
	}

	logging.Info(logCtx, "cache warmed",
		slog.Int("items", loaded),
		slog.String("storage_driver", a.Config.Storage.Driver),
	)
	return nil
}
