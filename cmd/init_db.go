package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"cacheview/internal/bootstrap"
	"cacheview/internal/bootstrap/logging"
	"cacheview/internal/errs"
)

// initDbCmd opens the configured store, which creates its schema or bucket.
var initDbCmd = &cobra.Command{
	Use:   "init-db",
	Short: "Initialize the persistent cache store",
	RunE: withApp(func(cmd *cobra.Command, ctx context.Context, app *bootstrap.App) error {
		logging.Info(ctx, "start init-db")

		items, err := app.Store.List(ctx)
		if err != nil {
			logging.Error(ctx, "read item store failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "read item store")
		}

		logging.Info(ctx, "init-db finished",
			slog.String("storage_driver", app.Config.Storage.Driver),
			slog.String("storage_dsn", app.Config.Storage.DSN),
			slog.Int("items", len(items)),
		)
		if _, err := fmt.Fprintf(cmd.OutOrStdout(), "%s store initialized: %s (%d items)\n", app.Config.Storage.Driver, app.Config.Storage.DSN, len(items)); err != nil {
			return errs.Wrap(err, "write init-db output")
		}
		return nil
	}),
}

func init() {
	rootCmd.AddCommand(initDbCmd)
}
