package cmd

import (
	"errors"
	"log/slog"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"cacheview/internal/bootstrap/config"
	"cacheview/internal/bootstrap/logging"
	"cacheview/internal/errs"
	"cacheview/internal/infrastructure/transport/wsclient"
	"cacheview/internal/usecase/viewer"
)

var viewCmd = &cobra.Command{
	Use:   "view",
	Short: "Open the live snapshot viewer",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		url := cfg.Viewer.URL
		if override, _ := cmd.Flags().GetString("url"); strings.TrimSpace(override) != "" {
			if err := config.ValidateStreamURL(override); err != nil {
				return errs.Wrap(err, "validate --url")
			}
			url = strings.TrimSpace(override)
		}

		// The terminal belongs to the UI; logs go to a file.
		logFile, err := logging.OpenFile(cfg.Viewer.LogFile)
		if err != nil {
			return errs.Wrap(err, "open viewer log")
		}
		defer logFile.Close()
		ctx = withConfiguredLogger(ctx, cfg, logFile)
		logging.Info(ctx, "viewer starting", slog.String("url", url))

		dialer := wsclient.NewDialer(wsclient.Options{HandshakeTimeout: cfg.Viewer.HandshakeTimeout})
		view := viewer.NewLiveSnapshotView(ctx, dialer, viewer.Options{
			URL:   url,
			Title: cfg.Viewer.Title,
		})
		defer view.Close()

		program := tea.NewProgram(view, tea.WithAltScreen(), tea.WithContext(ctx))
		if _, err := program.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
			return errs.Wrap(err, "run viewer")
		}

		logging.Info(ctx, "viewer stopped")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(viewCmd)
	viewCmd.Flags().String("url", "", "WebSocket URL to subscribe to (overrides viewer.url)")
}
