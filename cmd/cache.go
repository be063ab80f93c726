package cmd

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"cacheview/internal/bootstrap/logging"
	"cacheview/internal/domain/snapshot"
	"cacheview/internal/errs"
	"cacheview/internal/infrastructure/seed"
	"cacheview/internal/infrastructure/transport/httpapi"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Read and write entries of a running cache server",
}

func newCacheClient(cmd *cobra.Command) (*httpapi.Client, error) {
	_, cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	serverURL := cfg.Client.ServerURL
	if override, _ := cmd.Flags().GetString("server"); override != "" {
		serverURL = override
	}
	return httpapi.NewClient(serverURL, cfg.Client.Timeout), nil
}

var cacheGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Print one entry",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newCacheClient(cmd)
		if err != nil {
			return err
		}
		item, err := client.Get(cmd.Context(), args[0])
		if err != nil {
			return errs.Wrapf(err, "get %q", args[0])
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), snapshot.FormatEntry(snapshot.CacheEntry{
			Key:    item.Key,
			Value:  item.Value,
			Expiry: item.Expiry,
		}))
		return err
	},
}

var cachePutCmd = &cobra.Command{
	Use:   "put <key> <value>",
	Short: "Store an entry with a time to live",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newCacheClient(cmd)
		if err != nil {
			return err
		}
		ttl, _ := cmd.Flags().GetDuration("ttl")
		item, err := client.Put(cmd.Context(), args[0], args[1], ttl)
		if err != nil {
			return errs.Wrapf(err, "put %q", args[0])
		}
		_, err = fmt.Fprintf(cmd.OutOrStdout(), "stored %s (expires %s)\n", item.Key, item.ExpiresAt.Format(time.RFC3339))
		return err
	},
}

var cacheDeleteCmd = &cobra.Command{
	Use:     "delete <key>",
	Aliases: []string{"rm"},
	Short:   "Remove an entry",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newCacheClient(cmd)
		if err != nil {
			return err
		}
		if err := client.Delete(cmd.Context(), args[0]); err != nil {
			return errs.Wrapf(err, "delete %q", args[0])
		}
		_, err = fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
		return err
	},
}

var cacheListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "Print the current snapshot",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		client, err := newCacheClient(cmd)
		if err != nil {
			return err
		}
		entries, err := client.List(cmd.Context())
		if err != nil {
			return errs.Wrap(err, "list entries")
		}
		if len(entries) == 0 {
			_, err = fmt.Fprintln(cmd.OutOrStdout(), "no data")
			return err
		}
		for _, line := range snapshot.Lines(entries) {
			if _, err := fmt.Fprintln(cmd.OutOrStdout(), line); err != nil {
				return err
			}
		}
		return nil
	},
}

var cacheSeedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Store every entry of a YAML or TOML seed file",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		path, _ := cmd.Flags().GetString("file")
		entries, err := seed.Load(path)
		if err != nil {
			return err
		}

		client, err := newCacheClient(cmd)
		if err != nil {
			return err
		}
		ctx := logging.WithAttrs(cmd.Context(), slog.String("seed_file", path))
		for _, entry := range entries {
			if _, err := client.Put(ctx, entry.Key, entry.Value, entry.TTL); err != nil {
				return errs.Wrapf(err, "seed %q", entry.Key)
			}
			logging.Debug(ctx, "seed entry stored", slog.String("key", entry.Key))
		}

		_, err = fmt.Fprintf(cmd.OutOrStdout(), "seeded %d entries from %s\n", len(entries), path)
		return err
	},
}

func init() {
	rootCmd.AddCommand(cacheCmd)
	cacheCmd.PersistentFlags().String("server", "", "Cache server base URL (overrides client.server_url)")

	cachePutCmd.Flags().Duration("ttl", 30*time.Second, "Time to live, rounded up to whole seconds")
	cacheSeedCmd.Flags().String("file", "", "Seed file (.yaml, .yml or .toml)")
	_ = cacheSeedCmd.MarkFlagRequired("file")

	cacheCmd.AddCommand(cacheGetCmd, cachePutCmd, cacheDeleteCmd, cacheListCmd, cacheSeedCmd)
}
