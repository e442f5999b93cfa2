package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"irgate/pkg/ircode"
)

type decodeConfig struct {
	format string
	repeat uint16
	pulses bool
}

// newDecodeCmd creates the "irgate decode" subcommand.
func newDecodeCmd() *cobra.Command {
	var cfg decodeConfig

	cmd := &cobra.Command{
		Use:   "decode <code>",
		Short: "Validate an IR code offline and print its frame",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := ircode.ParseFormat(cfg.format)
			if err != nil {
				return err
			}
			f, err := ircode.Encode(format, strings.Join(args, " "), cfg.repeat)
			if err != nil {
				return fmt.Errorf("decode %s code: %w", format, err)
			}
			printFrame(cmd.OutOrStdout(), &f, cfg.pulses)
			return nil
		},
	}

	cmd.Flags().StringVarP(&cfg.format, "format", "f", "hex", "code format: hex, pronto or gc")
	cmd.Flags().Uint16VarP(&cfg.repeat, "repeat", "r", 0, "repeat override")
	cmd.Flags().BoolVar(&cfg.pulses, "pulses", false, "print the pulse durations of raw codes")
	return cmd
}

func printFrame(w io.Writer, f *ircode.Frame, pulses bool) {
	fmt.Fprintf(w, "format:  %s\n", f.Format)
	fmt.Fprintf(w, "repeat:  %d\n", f.Repeat)
	if f.Format == ircode.FormatHex {
		fmt.Fprintf(w, "code:    %s\n", f.Hex)
		fmt.Fprintf(w, "protocol: %d  bits: %d  command: 0x%X\n", f.Hex.Protocol, f.Hex.Bits, f.Hex.Command)
		return
	}
	fmt.Fprintf(w, "carrier: %d Hz\n", f.CarrierHz)
	fmt.Fprintf(w, "pulses:  %d (repeat section %d)\n", len(f.Pulses), len(f.Repetition()))
	if pulses {
		fmt.Fprintf(w, "intro:   %s\n", joinUints(f.Pulses))
		if len(f.RepeatPulses) > 0 {
			fmt.Fprintf(w, "again:   %s\n", joinUints(f.RepeatPulses))
		}
	}
}

func joinUints(v []uint32) string {
	parts := make([]string, len(v))
	for i, n := range v {
		parts[i] = fmt.Sprint(n)
	}
	return strings.Join(parts, " ")
}
