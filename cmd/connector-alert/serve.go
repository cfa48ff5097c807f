package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"connectoralert/internal/logger"
	"connectoralert/internal/processor"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the monitor and the count endpoint",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			log := logger.WithComponent("main")
			log.Info().
				Str("version", version).
				Str("addr", cfg.Server.Addr).
				Str("backend", cfg.Database.Backend).
				Dur("poll_interval", cfg.Monitor.PollInterval).
				Int64("alert_threshold", cfg.Monitor.AlertThreshold).
				Msg("starting connector-alert")

			if err := processor.New(cfg).Run(ctx); err != nil {
				log.Error().Err(err).Msg("processor exited")
				return err
			}

			log.Info().Msg("exited")
			return nil
		},
	}
}
