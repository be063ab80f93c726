package bootstrap

import (
	"context"

	"go.uber.org/fx"

	"cacheview/internal/bootstrap/config"
	"cacheview/internal/bootstrap/database"
	"cacheview/internal/bootstrap/logging"
	cacheinfra "cacheview/internal/infrastructure/cache"
	"cacheview/internal/infrastructure/transport/httpapi"
	"cacheview/internal/ports"
	"cacheview/internal/usecase/cachesvc"
)

// Module assembles the cache server. It expects a context.Context and a
// config.Config to be supplied by the caller.
var Module = fx.Options(
	fx.Provide(provideItemStore),
	fx.Provide(
		fx.Annotate(
			cacheinfra.NewMemoryCache,
			fx.As(new(ports.Cache)),
		),
	),
	fx.Provide(provideHub),
	fx.Provide(
		fx.Annotate(
			func(hub *httpapi.Hub) *httpapi.Hub { return hub },
			fx.As(new(ports.SnapshotPublisher)),
		),
	),
	fx.Provide(cachesvc.NewService),
	fx.Provide(provideApp),
)

func provideItemStore(lc fx.Lifecycle, ctx context.Context, cfg config.Config) (ports.ItemStore, error) {
	logCtx := logging.WithComponent(ctx, "bootstrap.fx")

	store, err := database.OpenItemStore(logCtx, cfg.Storage)
	if err != nil {
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStop: func(_ context.Context) error {
			return store.Close()
		},
	})

	return store, nil
}

func provideHub(lc fx.Lifecycle, cfg config.Config) *httpapi.Hub {
	hub := httpapi.NewHub(httpapi.HubOptions{
		WriteTimeout: cfg.Server.WriteTimeout,
		ClientBuffer: cfg.Server.ClientBuffer,
	})

	lc.Append(fx.Hook{
		OnStop: func(_ context.Context) error {
			hub.Close()
			return nil
		},
	})

	return hub
}

func provideApp(cfg config.Config, store ports.ItemStore, hub *httpapi.Hub, svc *cachesvc.Service) *App {
	return &App{
		Config:  cfg,
		Store:   store,
		Hub:     hub,
		Service: svc,
	}
}
