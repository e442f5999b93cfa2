package ircode

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// MaxHexRepeat is the largest repeat count a hex code may embed.
const MaxHexRepeat = 20

// HexCode is a protocol-encoded command: the protocol number, the command
// value, its bit length and the number of repeats to send after the first frame.
type HexCode struct {
	Protocol uint32
	Command  uint64
	Bits     uint16
	Repeat   uint16
}

// String returns the canonical textual form, "3;0x20DF10EF;32;0".
// ParseHex(c.String()) yields c again.
func (c HexCode) String() string {
	return fmt.Sprintf("%d;0x%X;%d;%d", c.Protocol, c.Command, c.Bits, c.Repeat)
}

// ParseHex parses "<protocol>;<hex command>;<bits>;<repeat>".
// All four fields are mandatory.
func ParseHex(text string) (HexCode, error) {
	fields := strings.SplitN(text, ";", 4)
	if len(fields) != 4 {
		return HexCode{}, fmt.Errorf("%w: want 4 fields separated by ';', got %d", ErrMalformed, len(fields))
	}
	for i, f := range fields {
		if f == "" {
			return HexCode{}, fmt.Errorf("%w: field %d is empty", ErrMalformed, i+1)
		}
	}

	var c HexCode

	proto, err := parseDecimal(fields[0], 32)
	if err != nil {
		return HexCode{}, fmt.Errorf("protocol: %w", err)
	}
	if proto == 0 {
		return HexCode{}, fmt.Errorf("%w: protocol 0", ErrOutOfRange)
	}
	c.Protocol = uint32(proto)

	c.Command, err = parseHexCommand(fields[1])
	if err != nil {
		return HexCode{}, fmt.Errorf("command: %w", err)
	}

	bits, err := parseDecimal(fields[2], 16)
	if err != nil {
		return HexCode{}, fmt.Errorf("bits: %w", err)
	}
	if bits == 0 {
		return HexCode{}, fmt.Errorf("%w: bits 0", ErrOutOfRange)
	}
	c.Bits = uint16(bits)

	repeat, err := parseDecimal(fields[3], 16)
	if err != nil {
		return HexCode{}, fmt.Errorf("repeat: %w", err)
	}
	if repeat > MaxHexRepeat {
		return HexCode{}, fmt.Errorf("%w: repeat %d exceeds %d", ErrOutOfRange, repeat, MaxHexRepeat)
	}
	c.Repeat = uint16(repeat)

	return c, nil
}

func parseHexCommand(s string) (uint64, error) {
	digits := s
	if len(s) > 1 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		digits = s[2:]
	}
	if digits == "" {
		return 0, fmt.Errorf("%w: %q", ErrInvalidNumber, s)
	}
	v, err := strconv.ParseUint(digits, 16, 64)
	if err != nil {
		return 0, numErr(s, err)
	}
	return v, nil
}

func parseDecimal(s string, bitSize int) (uint64, error) {
	v, err := strconv.ParseUint(s, 10, bitSize)
	if err != nil {
		return 0, numErr(s, err)
	}
	return v, nil
}

func numErr(s string, err error) error {
	if errors.Is(err, strconv.ErrRange) {
		return fmt.Errorf("%w: %q", ErrOutOfRange, s)
	}
	return fmt.Errorf("%w: %q", ErrInvalidNumber, s)
}
