package cmd

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"cacheview/internal/bootstrap"
	"cacheview/internal/bootstrap/logging"
	"cacheview/internal/errs"
	"cacheview/internal/infrastructure/transport/httpapi"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the cache API and the live snapshot stream",
	RunE: withApp(func(cmd *cobra.Command, ctx context.Context, app *bootstrap.App) error {
		ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
		defer stop()

		serverCfg := app.Config.Server
		if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
			serverCfg.Addr = addr
		}

		if err := app.Warm(ctx); err != nil {
			return err
		}

		server := httpapi.NewServer(serverCfg, app.Handler(ctx))
		group, groupCtx := errgroup.WithContext(ctx)

		group.Go(func() error {
			logging.Info(ctx, "http server listening", slog.String("addr", serverCfg.Addr))
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return errs.Wrap(err, "listen and serve")
			}
			return nil
		})
		group.Go(func() error {
			return app.Service.RunMaintenance(groupCtx, serverCfg.SweepInterval, serverCfg.BroadcastInterval)
		})
		group.Go(func() error {
			<-groupCtx.Done()
			logging.Info(ctx, "shutting down http server")

			// Hijacked WebSocket connections are not tracked by Shutdown.
			app.Hub.Close()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), serverCfg.ShutdownTimeout)
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				return errs.Wrap(err, "shutdown http server")
			}
			return nil
		})

		if err := group.Wait(); err != nil {
			return err
		}
		logging.Info(ctx, "server stopped")
		return nil
	}),
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("addr", "", "Listen address (overrides server.addr)")
}
