package cmd

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/fx"

	"cacheview/internal/bootstrap"
	"cacheview/internal/bootstrap/config"
	"cacheview/internal/bootstrap/logging"
	"cacheview/internal/errs"
)

// loadConfig reads the configuration and returns the command context with
// command attributes attached.
func loadConfig(cmd *cobra.Command) (context.Context, config.Config, error) {
	ctx := logging.WithAttrs(
		cmd.Context(),
		slog.String("command", cmd.CommandPath()),
		slog.String("config_file", cfgFile),
	)

	cfg, err := config.Load(ctx, cfgFile)
	if err != nil {
		return nil, config.Config{}, errs.Wrap(err, "load config")
	}
	return ctx, cfg, nil
}

// withConfiguredLogger swaps the logger on ctx for one that follows the
// configured level and format and writes to w.
func withConfiguredLogger(ctx context.Context, cfg config.Config, w io.Writer) context.Context {
	logger := logging.New(w, logging.Options{Level: cfg.Log.Level, Format: cfg.Log.Format})
	return logging.WithLogger(ctx, logger)
}

func withApp(run func(cmd *cobra.Command, ctx context.Context, app *bootstrap.App) error) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx, cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		ctx = withConfiguredLogger(ctx, cfg, cmd.ErrOrStderr())

		var app *bootstrap.App
		fxApp := fx.New(
			bootstrap.Module,
			fx.NopLogger,
			fx.Supply(cfg),
			fx.Provide(func() context.Context { return ctx }),
			fx.Populate(&app),
		)

		startCtx, cancelStart := context.WithTimeout(ctx, 10*time.Second)
		defer cancelStart()
		if err := fxApp.Start(startCtx); err != nil {
			logging.Error(ctx, "bootstrap application failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "start fx application")
		}

		defer func() {
			stopCtx, cancelStop := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancelStop()
			if err := fxApp.Stop(stopCtx); err != nil {
				logging.Error(ctx, "fx application stop failed", slog.Any("err", errs.Loggable(err)))
			}
		}()

		if err := run(cmd, ctx, app); err != nil {
			return errs.Wrap(err, "run command")
		}
		return nil
	}
}
