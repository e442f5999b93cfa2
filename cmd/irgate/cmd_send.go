package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"irgate/pkg/protocol"
)

type sendConfig struct {
	addr    string
	timeout time.Duration
}

// newSendCmd creates the "irgate send" subcommand, a minimal iTach client.
func newSendCmd() *cobra.Command {
	var cfg sendConfig

	cmd := &cobra.Command{
		Use:   "send <command>",
		Short: "Send one GlobalCache command line and print the replies",
		Long: "Sends a single iTach command (for example \"getdevices\" or\n" +
			"\"sendir,1:1,7,38000,1,1,340,171,21,21,21,1555\") and prints every reply\n" +
			"until the exchange is complete or the timeout expires.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), cfg.timeout)
			defer cancel()
			return sendLine(ctx, cfg.addr, strings.Join(args, " "), cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVarP(&cfg.addr, "addr", "a", fmt.Sprintf("127.0.0.1:%d", protocol.DefaultPort), "gateway address")
	cmd.Flags().DurationVar(&cfg.timeout, "timeout", 5*time.Second, "how long to wait for replies")
	return cmd
}

// sendLine writes line to the gateway and copies replies to w until a
// final reply arrives.
func sendLine(ctx context.Context, addr, line string, w io.Writer) error {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("connect %s: %w", addr, err)
	}
	defer conn.Close()
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	if _, err := io.WriteString(conn, line+string(protocol.Terminator)); err != nil {
		return fmt.Errorf("write: %w", err)
	}

	sc := bufio.NewScanner(conn)
	sc.Split(splitCR)
	for sc.Scan() {
		reply := sc.Text()
		if reply == "" {
			continue
		}
		fmt.Fprintln(w, reply)
		if finalReply(line, reply) {
			return nil
		}
	}
	if err := sc.Err(); err != nil {
		if errors.Is(err, os.ErrDeadlineExceeded) {
			return errors.New("no final reply within timeout")
		}
		return fmt.Errorf("read: %w", err)
	}
	return nil
}

// finalReply reports whether reply ends the exchange started by request.
func finalReply(request, reply string) bool {
	switch {
	case strings.HasPrefix(reply, "ERR"), reply+"\r" == protocol.ReplyBusy:
		return true
	case strings.HasPrefix(request, "sendir"):
		return strings.HasPrefix(reply, "completeir")
	case strings.HasPrefix(request, "getdevices"):
		return reply+"\r" == protocol.ReplyEndOfDevices
	}
	return true
}

func splitCR(data []byte, atEOF bool) (advance int, token []byte, err error) {
	for i, b := range data {
		if b == protocol.Terminator || b == '\n' {
			return i + 1, data[:i], nil
		}
	}
	if atEOF && len(data) > 0 {
		return len(data), data, nil
	}
	return 0, nil, nil
}
