// Package hw defines the hardware seams of irgate: the IR transmitter,
// the IR receiver used for learning and the status indicator.
package hw

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"irgate/pkg/ircode"
)

// ErrAllocation is returned by a Transmitter that could not allocate a
// transmit buffer. It wraps ircode.ErrAllocation.
var ErrAllocation = fmt.Errorf("hw: %w", ircode.ErrAllocation)

// ErrClosed is returned by drivers used after Close.
var ErrClosed = errors.New("hw: device closed")

// Outputs is a bitmask of emitter lines.
type Outputs uint8

const (
	InternalSide Outputs = 1 << iota
	InternalTop
	External1
	External2

	AllOutputs = InternalSide | InternalTop | External1 | External2
)

func (o Outputs) String() string {
	if o == 0 {
		return "none"
	}
	var parts []string
	for _, l := range []struct {
		bit  Outputs
		name string
	}{
		{InternalSide, "int_side"},
		{InternalTop, "int_top"},
		{External1, "ext1"},
		{External2, "ext2"},
	} {
		if o&l.bit != 0 {
			parts = append(parts, l.name)
		}
	}
	return strings.Join(parts, "+")
}

// Count returns the number of selected lines.
func (o Outputs) Count() int {
	n := 0
	for b := o & AllOutputs; b != 0; b &= b - 1 {
		n++
	}
	return n
}

// RepeatFunc is called by a Transmitter after each frame and reports
// whether another repetition should be sent. Implementations must not
// block, allocate or log: they run between frames on the timing path.
type RepeatFunc func() bool

// Transmitter sends a frame on the selected emitter lines.
//
// The frame is sent once. If more is non-nil it is called after every
// frame and repetitions continue while it returns true; if more is nil
// the frame's own repeat count is used. Transmit blocks until the last
// repetition has been sent or ctx is done.
type Transmitter interface {
	Transmit(ctx context.Context, f *ircode.Frame, out Outputs, more RepeatFunc) error
}

// Decode is a single result read from a Receiver.
type Decode struct {
	Overflow bool
	// Protocol is zero when the signal could not be attributed to a protocol.
	Protocol uint32
	Value    uint64
	Bits     uint16
	Repeat   bool
}

// Receiver captures and decodes IR signals for learning.
type Receiver interface {
	// Enable starts capturing.
	Enable() error
	// Disable stops capturing and drops anything buffered.
	Disable() error
	// Decode returns the next decoded signal. ok is false when nothing
	// has been received since the previous call.
	Decode() (d Decode, ok bool, err error)
}

// State is a device status shown on the indicator.
type State uint8

const (
	StateNormal State = iota
	StateIdentify
	StateLearning
	StateLearnOK
	StateLearnFailed
)

func (s State) String() string {
	switch s {
	case StateNormal:
		return "normal"
	case StateIdentify:
		return "identify"
	case StateLearning:
		return "learning"
	case StateLearnOK:
		return "learn_ok"
	case StateLearnFailed:
		return "learn_failed"
	default:
		return fmt.Sprintf("state(%d)", uint8(s))
	}
}

// Indicator shows the device state, typically on an LED.
type Indicator interface {
	SetState(State)
}

// NopIndicator discards state changes.
type NopIndicator struct{}

func (NopIndicator) SetState(State) {}
