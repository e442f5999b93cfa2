package main

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"irgate/pkg/journal"
)

type historyConfig struct {
	eventType string
	limit     int
	since     time.Duration
	codes     bool
}

// newHistoryCmd creates the "irgate history" subcommand.
func newHistoryCmd(flags *globalFlags) *cobra.Command {
	var cfg historyConfig

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List journaled sends and learned codes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			lc, err := loadConfig(flags)
			if err != nil {
				return err
			}
			r, err := journal.NewReader(lc.JournalPath(lc.Paths))
			if err != nil {
				return err
			}
			defer r.Close()

			w := cmd.OutOrStdout()
			if cfg.codes {
				codes, err := r.LearnedCodes(cmd.Context(), cfg.limit)
				if err != nil {
					return err
				}
				for _, c := range codes {
					fmt.Fprintln(w, c)
				}
				return nil
			}

			opts := journal.QueryOpts{Type: cfg.eventType, Limit: cfg.limit}
			if cfg.since > 0 {
				t := time.Now().Add(-cfg.since)
				opts.Since = &t
			}
			entries, err := r.Query(cmd.Context(), opts)
			if err != nil {
				return err
			}
			printEntries(w, entries)
			return nil
		},
	}

	cmd.Flags().StringVarP(&cfg.eventType, "type", "t", "", "filter by event type (ir_send, ir_receive, ir_learn_failed)")
	cmd.Flags().IntVarP(&cfg.limit, "limit", "n", 20, "number of entries to show (0 = all)")
	cmd.Flags().DurationVar(&cfg.since, "since", 0, "only entries newer than this (e.g. 1h)")
	cmd.Flags().BoolVar(&cfg.codes, "codes", false, "list distinct learned codes instead")
	return cmd
}

func printEntries(w io.Writer, entries []journal.Entry) {
	if len(entries) == 0 {
		fmt.Fprintln(w, "no events found")
		return
	}
	// Oldest first reads naturally in a terminal.
	for i := len(entries) - 1; i >= 0; i-- {
		e := entries[i]
		status := "ok"
		if !e.Success {
			status = "fail"
		}
		line := fmt.Sprintf("%s  %-15s %-4s %-9s", e.CreatedAt.Format(time.DateTime), e.Type, status, e.Source)
		if e.Requester != "" {
			line += " " + e.Requester
		}
		if e.Type == journal.TypeSend {
			line += fmt.Sprintf(" #%d", e.CorrelationID)
		}
		if e.Code != "" {
			line += "  " + e.Code
		}
		if e.Detail != "" {
			line += "  (" + e.Detail + ")"
		}
		fmt.Fprintln(w, line)
	}
}
