package main

import (
	"github.com/spf13/cobra"

	"connectoralert/internal/config"
	"connectoralert/internal/logger"
)

// rootOptions holds flags shared by every subcommand.
type rootOptions struct {
	configPath string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "connector-alert",
		Short: "Pending package monitor for the connector",
		Long: `connector-alert polls the connector package table for packages that are
pending and were never attempted, logs the count on every cycle and sends an
alert when it exceeds the configured threshold.

Configuration is read from an optional YAML file and CONNECTOR_ALERT_*
environment variables, e.g. CONNECTOR_ALERT_MONITOR_ALERT_THRESHOLD=500.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "path to config file (YAML)")

	cmd.AddCommand(
		newServeCmd(opts),
		newCountCmd(opts),
		newVersionCmd(),
	)
	return cmd
}

// loadConfig loads configuration and initializes the global logger from it.
func (o *rootOptions) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, err
	}
	logger.Init(cfg.Log.Level, cfg.Log.Pretty)
	return cfg, nil
}
