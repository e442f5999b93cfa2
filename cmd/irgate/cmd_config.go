package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"irgate/pkg/config"
)

// newConfigCmd creates the "irgate config" subcommand.
func newConfigCmd(flags *globalFlags) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			lc, err := loadConfig(flags)
			if err != nil {
				return err
			}
			data, err := config.Encode(lc.Config, "."+format)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "# %s\n", lc.File)
			_, err = w.Write(data)
			return err
		},
	}

	cmd.Flags().StringVar(&format, "format", "toml", "output format: toml or yaml")
	return cmd
}
