package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"connectoralert/internal/storage"
)

func newCountCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "count",
		Short: "Print the current pending package count",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}

			store, err := storage.Open(cmd.Context(), cfg.Database, storage.Predicate{
				Table:          cfg.Database.Table,
				PendingStateID: cfg.Monitor.PendingStateID,
				MaxAttempts:    cfg.Monitor.MaxAttempts,
			})
			if err != nil {
				return err
			}
			defer store.Close()

			count, err := store.ReadPendingCount(cmd.Context())
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), count)
			return nil
		},
	}
}
