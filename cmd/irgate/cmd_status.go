package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"irgate/pkg/config"
)

// newStatusCmd creates the "irgate status" subcommand.
func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show whether the daemon is running",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			paths, err := config.ResolvePaths()
			if err != nil {
				return fmt.Errorf("resolve paths: %w", err)
			}
			status, pid, err := DaemonStatus(paths.PIDPath)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			switch status {
			case StatusRunning:
				fmt.Fprintf(w, "running (pid %d)\n", pid)
			case StatusStale:
				fmt.Fprintf(w, "stale pid file (pid %d not alive): %s\n", pid, paths.PIDPath)
			default:
				fmt.Fprintln(w, "stopped")
			}
			return nil
		},
	}
}

// newStopCmd creates the "irgate stop" subcommand.
func newStopCmd() *cobra.Command {
	var wait time.Duration

	cmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop the running daemon",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			paths, err := config.ResolvePaths()
			if err != nil {
				return fmt.Errorf("resolve paths: %w", err)
			}
			status, pid, err := DaemonStatus(paths.PIDPath)
			if err != nil {
				return err
			}
			switch status {
			case StatusStopped:
				fmt.Fprintln(cmd.OutOrStdout(), "not running")
				return nil
			case StatusStale:
				fmt.Fprintf(cmd.OutOrStdout(), "removing stale pid file (pid %d)\n", pid)
				return RemovePIDFile(paths.PIDPath)
			}
			if _, err := StopDaemon(paths.PIDPath, wait); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "stopped pid %d\n", pid)
			return nil
		},
	}

	cmd.Flags().DurationVar(&wait, "wait", 10*time.Second, "how long to wait for the daemon to exit")
	return cmd
}
