package ircode

import (
	"errors"
	"testing"
)

func TestParseHex(t *testing.T) {
	c, err := ParseHex("4;0x640C;15;1")
	if err != nil {
		t.Fatalf("ParseHex: %v", err)
	}
	want := HexCode{Protocol: 4, Command: 0x640C, Bits: 15, Repeat: 1}
	if c != want {
		t.Errorf("ParseHex = %+v, want %+v", c, want)
	}
}

func TestParseHexWithoutPrefix(t *testing.T) {
	c, err := ParseHex("3;20df10ef;32;0")
	if err != nil {
		t.Fatalf("ParseHex: %v", err)
	}
	if c.Command != 0x20DF10EF {
		t.Errorf("Command = %#x, want 0x20DF10EF", c.Command)
	}
}

func TestParseHexRejects(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want error
	}{
		{"empty string", "", ErrMalformed},
		{"comma separator", "4,0x640C,15,0", ErrMalformed},
		{"missing protocol value", ";0x640C;15;1", ErrMalformed},
		{"missing command value", "4;;15;1", ErrMalformed},
		{"missing bits value", "4;0x640C;;1", ErrMalformed},
		{"missing repeat value", "4;0x640C;15;", ErrMalformed},
		{"missing repeat field", "4;0x640C;15", ErrMalformed},
		{"invalid protocol", "z;0x640C;15;1", ErrInvalidNumber},
		{"zero protocol", "0;0x640C;15;1", ErrOutOfRange},
		{"invalid command", "4;hello;15;1", ErrInvalidNumber},
		{"bare hex prefix", "4;0x;15;1", ErrInvalidNumber},
		{"command overflow", "4;0x1FFFFFFFFFFFFFFFF;15;1", ErrOutOfRange},
		{"invalid bits", "4;0x640C;2tt;1", ErrInvalidNumber},
		{"zero bits", "4;0x640C;0;1", ErrOutOfRange},
		{"bits overflow", "4;0x640C;65536;1", ErrOutOfRange},
		{"invalid repeat", "4;0x640C;15;z1", ErrInvalidNumber},
		{"repeat too high", "4;0x640C;15;21", ErrOutOfRange},
		{"trailing field", "4;0x640C;15;1;2", ErrInvalidNumber},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseHex(tt.in); !errors.Is(err, tt.want) {
				t.Errorf("ParseHex(%q) err = %v, want %v", tt.in, err, tt.want)
			}
		})
	}
}

func TestParseHexRepeatLimit(t *testing.T) {
	if _, err := ParseHex("4;0x640C;15;20"); err != nil {
		t.Errorf("repeat 20 rejected: %v", err)
	}
	if _, err := ParseHex("4;0x640C;15;21"); err == nil {
		t.Error("repeat 21 accepted")
	}
}

func TestHexCodeRoundTrip(t *testing.T) {
	codes := []HexCode{
		{Protocol: 4, Command: 0x640C, Bits: 15, Repeat: 1},
		{Protocol: 3, Command: 0x20DF10EF, Bits: 32, Repeat: 0},
		{Protocol: 7, Command: 0xFFFFFFFFFFFFFFFE, Bits: 64, Repeat: 20},
	}
	for _, c := range codes {
		t.Run(c.String(), func(t *testing.T) {
			got, err := ParseHex(c.String())
			if err != nil {
				t.Fatalf("ParseHex: %v", err)
			}
			if got != c {
				t.Errorf("round trip = %+v, want %+v", got, c)
			}
		})
	}
}

func TestHexCodeString(t *testing.T) {
	c := HexCode{Protocol: 3, Command: 0x20df10ef, Bits: 32}
	if got := c.String(); got != "3;0x20DF10EF;32;0" {
		t.Errorf("String() = %q", got)
	}
}
