// Package lirc drives Linux LIRC character devices: /dev/lircN for raw
// pulse transmission and scancode transmit/receive through the kernel IR
// encoders and decoders.
package lirc

import (
	"encoding/binary"
	"fmt"
	"math/bits"

	"irgate/pkg/hw"
	"irgate/pkg/ircode"
)

// Protocol numbers used in hex codes.
const (
	HexRC5  uint32 = 1
	HexNEC  uint32 = 3
	HexSony uint32 = 4
)

// Kernel rc_proto values.
const (
	protoRC5    uint16 = 2
	protoSony12 uint16 = 6
	protoSony15 uint16 = 7
	protoSony20 uint16 = 8
	protoNEC    uint16 = 9
	protoNECX   uint16 = 10
	protoNEC32  uint16 = 11
)

// lirc_scancode flags.
const (
	flagToggle uint16 = 1
	flagRepeat uint16 = 2
)

// scancodeSize is sizeof(struct lirc_scancode).
const scancodeSize = 24

// scancode mirrors struct lirc_scancode.
type scancode struct {
	Timestamp uint64
	Flags     uint16
	Proto     uint16
	Keycode   uint32
	Scancode  uint64
}

func (s *scancode) marshal(b []byte) {
	_ = b[scancodeSize-1]
	binary.NativeEndian.PutUint64(b[0:], s.Timestamp)
	binary.NativeEndian.PutUint16(b[8:], s.Flags)
	binary.NativeEndian.PutUint16(b[10:], s.Proto)
	binary.NativeEndian.PutUint32(b[12:], s.Keycode)
	binary.NativeEndian.PutUint64(b[16:], s.Scancode)
}

func unmarshalScancode(b []byte) scancode {
	_ = b[scancodeSize-1]
	return scancode{
		Timestamp: binary.NativeEndian.Uint64(b[0:]),
		Flags:     binary.NativeEndian.Uint16(b[8:]),
		Proto:     binary.NativeEndian.Uint16(b[10:]),
		Keycode:   binary.NativeEndian.Uint32(b[12:]),
		Scancode:  binary.NativeEndian.Uint64(b[16:]),
	}
}

// toScancode converts a hex code into the kernel encoder's form. Hex
// values are MSB-first as captured; the kernel works on LSB-first fields.
func toScancode(c ircode.HexCode) (scancode, error) {
	switch c.Protocol {
	case HexNEC:
		if c.Bits != 32 {
			return scancode{}, fmt.Errorf("%w: NEC with %d bits", ircode.ErrUnsupported, c.Bits)
		}
		a := bits.Reverse8(uint8(c.Command >> 24))
		na := bits.Reverse8(uint8(c.Command >> 16))
		cmd := bits.Reverse8(uint8(c.Command >> 8))
		ncmd := bits.Reverse8(uint8(c.Command))
		proto, sc := necScancode(a, na, cmd, ncmd)
		return scancode{Proto: proto, Scancode: sc}, nil

	case HexSony:
		raw := reverse(c.Command, c.Bits)
		cmd := raw & 0x7f
		switch c.Bits {
		case 12:
			return scancode{Proto: protoSony12, Scancode: (raw>>7&0x1f)<<16 | cmd}, nil
		case 15:
			return scancode{Proto: protoSony15, Scancode: (raw>>7&0xff)<<16 | cmd}, nil
		case 20:
			return scancode{Proto: protoSony20, Scancode: (raw>>7&0x1f)<<16 | (raw>>12&0xff)<<8 | cmd}, nil
		}
		return scancode{}, fmt.Errorf("%w: Sony with %d bits", ircode.ErrUnsupported, c.Bits)

	case HexRC5:
		if c.Bits != 12 {
			return scancode{}, fmt.Errorf("%w: RC5 with %d bits", ircode.ErrUnsupported, c.Bits)
		}
		s := scancode{Proto: protoRC5, Scancode: (c.Command>>6&0x1f)<<8 | c.Command&0x3f}
		if c.Command&(1<<11) != 0 {
			s.Flags |= flagToggle
		}
		return s, nil
	}
	return scancode{}, fmt.Errorf("%w: protocol %d has no kernel encoder", ircode.ErrUnsupported, c.Protocol)
}

func necScancode(a, na, cmd, ncmd uint8) (uint16, uint64) {
	switch {
	case cmd^ncmd != 0xff:
		return protoNEC32, uint64(na)<<24 | uint64(a)<<16 | uint64(ncmd)<<8 | uint64(cmd)
	case a^na != 0xff:
		return protoNECX, uint64(a)<<16 | uint64(na)<<8 | uint64(cmd)
	default:
		return protoNEC, uint64(a)<<8 | uint64(cmd)
	}
}

// fromScancode converts a kernel decode into the hex code form. Protocols
// without a hex mapping are reported with Protocol 0.
func fromScancode(s scancode) hw.Decode {
	d := hw.Decode{Repeat: s.Flags&flagRepeat != 0}
	sc := s.Scancode
	switch s.Proto {
	case protoNEC, protoNECX, protoNEC32:
		var a, na, cmd, ncmd uint8
		switch s.Proto {
		case protoNEC:
			a, cmd = uint8(sc>>8), uint8(sc)
			na, ncmd = ^a, ^cmd
		case protoNECX:
			a, na, cmd = uint8(sc>>16), uint8(sc>>8), uint8(sc)
			ncmd = ^cmd
		default:
			na, a, ncmd, cmd = uint8(sc>>24), uint8(sc>>16), uint8(sc>>8), uint8(sc)
		}
		d.Protocol, d.Bits = HexNEC, 32
		d.Value = uint64(bits.Reverse8(a))<<24 | uint64(bits.Reverse8(na))<<16 |
			uint64(bits.Reverse8(cmd))<<8 | uint64(bits.Reverse8(ncmd))

	case protoSony12, protoSony15, protoSony20:
		cmd, addr := sc&0x7f, sc>>16
		var raw uint64
		switch s.Proto {
		case protoSony12:
			d.Bits, raw = 12, cmd|(addr&0x1f)<<7
		case protoSony15:
			d.Bits, raw = 15, cmd|(addr&0xff)<<7
		default:
			d.Bits, raw = 20, cmd|(addr&0x1f)<<7|(sc>>8&0xff)<<12
		}
		d.Protocol, d.Value = HexSony, reverse(raw, d.Bits)

	case protoRC5:
		cmd := sc & 0xff
		if cmd > 0x3f {
			return hw.Decode{Value: sc}
		}
		d.Protocol, d.Bits = HexRC5, 12
		d.Value = (sc>>8&0x1f)<<6 | cmd
		if s.Flags&flagToggle != 0 {
			d.Value |= 1 << 11
		}

	default:
		d.Value = sc
	}
	return d
}

// reverse mirrors the low n bits of v.
func reverse(v uint64, n uint16) uint64 {
	return bits.Reverse64(v) >> (64 - n)
}
