//go:build !linux

package lirc

import (
	"context"
	"errors"
	"log/slog"

	"irgate/pkg/hw"
	"irgate/pkg/ircode"
)

// ErrUnsupportedOS is returned on platforms without LIRC.
var ErrUnsupportedOS = errors.New("lirc: only available on linux")

// Transmitter is unavailable on this platform.
type Transmitter struct{}

// OpenTransmitter always fails on this platform.
func OpenTransmitter(string, *slog.Logger) (*Transmitter, error) { return nil, ErrUnsupportedOS }

func (*Transmitter) Close() error { return nil }

func (*Transmitter) Transmit(context.Context, *ircode.Frame, hw.Outputs, hw.RepeatFunc) error {
	return ErrUnsupportedOS
}

// Receiver is unavailable on this platform.
type Receiver struct{}

// NewReceiver returns a receiver whose Enable fails.
func NewReceiver(string) *Receiver { return &Receiver{} }

func (*Receiver) Enable() error                    { return ErrUnsupportedOS }
func (*Receiver) Disable() error                   { return nil }
func (*Receiver) Decode() (hw.Decode, bool, error) { return hw.Decode{}, false, ErrUnsupportedOS }
