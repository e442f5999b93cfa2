package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"irgate/internal/version"
)

// globalFlags are shared by every subcommand.
type globalFlags struct {
	configPath string
	logLevel   string
}

// newRootCmd creates the root irgate command with all subcommands attached.
func newRootCmd() *cobra.Command {
	var flags globalFlags

	cmd := &cobra.Command{
		Use:           "irgate",
		Short:         "Infrared gateway daemon",
		Long:          "irgate sends and learns infrared codes.\nIt serves the GlobalCache iTach protocol, a websocket API and an optional MQTT bridge.",
		Version:       fmt.Sprintf("irgate %s", version.String()),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.SetVersionTemplate("{{.Version}}\n")
	cmd.PersistentFlags().StringVarP(&flags.configPath, "config", "c", "", "config file (default $IRGATE_HOME/config.toml)")
	cmd.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "override log.level from the config file")

	cmd.AddCommand(
		newServeCmd(&flags),
		newStatusCmd(),
		newStopCmd(),
		newSendCmd(),
		newDecodeCmd(),
		newHistoryCmd(&flags),
		newConfigCmd(&flags),
	)

	return cmd
}
