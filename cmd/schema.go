package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"cacheview/internal/errs"
	"cacheview/internal/infrastructure/transport/httpapi"
)

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Print the JSON Schema of a snapshot message",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		payload, err := httpapi.SnapshotSchema()
		if err != nil {
			return errs.Wrap(err, "build snapshot schema")
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), string(payload))
		return err
	},
}

func init() {
	rootCmd.AddCommand(schemaCmd)
}
