package ircode

import (
	"fmt"
	"math"
)

// prontoClock is the Pronto reference clock period in microseconds.
const prontoClock = 0.241246

// Frame is a transmit descriptor handed to the hardware layer.
//
// Hex frames carry the protocol code and leave modulation to the driver.
// Raw frames carry a carrier frequency and mark/space durations in
// microseconds, starting with a mark. RepeatPulses, when set, is the
// section re-sent for every repetition after the first frame.
type Frame struct {
	Format       Format
	Hex          HexCode
	CarrierHz    uint32
	Pulses       []uint32
	RepeatPulses []uint32
	Repeat       uint16
}

// Repetition returns the pulses sent for every repetition after the first.
func (f *Frame) Repetition() []uint32 {
	if len(f.RepeatPulses) > 0 {
		return f.RepeatPulses
	}
	return f.Pulses
}

// Encode parses text in the given format and builds its frame. A repeat
// greater than zero overrides any repeat embedded in the code. For
// GlobalCache codes it is a transmission count, so 1 sends a single frame.
func Encode(format Format, text string, repeat uint16) (Frame, error) {
	var (
		f   Frame
		err error
	)
	switch format {
	case FormatHex:
		f, err = encodeHex(text)
	case FormatPronto:
		f, err = encodePronto(text)
	case FormatGlobalCache:
		f, err = encodeGlobalCache(text)
	default:
		return Frame{}, fmt.Errorf("%w: format %s", ErrUnsupported, format)
	}
	if err != nil {
		return Frame{}, err
	}
	switch {
	case repeat == 0:
	case format == FormatGlobalCache:
		// Like the code's own count field, the override is the total
		// number of transmissions.
		f.Repeat = repeat - 1
	default:
		f.Repeat = repeat
		f.Hex.Repeat = repeat
	}
	return f, nil
}

func encodeHex(text string) (Frame, error) {
	c, err := ParseHex(text)
	if err != nil {
		return Frame{}, err
	}
	return Frame{Format: FormatHex, Hex: c, Repeat: c.Repeat}, nil
}

func encodePronto(text string) (Frame, error) {
	code, err := ParsePronto(text)
	if err != nil {
		return Frame{}, err
	}
	if code[1] == 0 {
		return Frame{}, fmt.Errorf("%w: pronto frequency code 0", ErrOutOfRange)
	}
	unit := float64(code[1]) * prontoClock

	seq1 := code[4 : 4+int(code[2])*2]
	seq2 := code[4+len(seq1) : 4+len(seq1)+int(code[3])*2]
	if len(seq1) == 0 && len(seq2) == 0 {
		return Frame{}, fmt.Errorf("%w: pronto code without bursts", ErrMalformed)
	}

	f := Frame{
		Format:    FormatPronto,
		CarrierHz: uint32(math.Round(1e6 / unit)),
	}
	if len(seq1) == 0 {
		f.Pulses = scale(seq2, unit)
		return f, nil
	}
	f.Pulses = scale(seq1, unit)
	if len(seq2) > 0 {
		f.RepeatPulses = scale(seq2, unit)
	}
	return f, nil
}

func encodeGlobalCache(text string) (Frame, error) {
	code, err := ParseGlobalCache(text)
	if err != nil {
		return Frame{}, err
	}
	freq, count, offset := code[0], code[1], int(code[2])
	if freq == 0 {
		return Frame{}, fmt.Errorf("%w: globalcache frequency 0", ErrOutOfRange)
	}
	bursts := code[3:]
	if len(bursts)%2 != 0 {
		return Frame{}, fmt.Errorf("%w: globalcache code has an odd number of on/off values", ErrMalformed)
	}

	period := 1e6 / float64(freq)
	f := Frame{
		Format:    FormatGlobalCache,
		CarrierHz: uint32(freq),
		Pulses:    scale(bursts, period),
	}
	// count is the total number of transmissions, offset the 1-based
	// index of the burst where repetitions restart.
	if count > 1 {
		f.Repeat = count - 1
	}
	if offset > 1 && offset <= len(bursts) && (offset-1)%2 == 0 {
		f.RepeatPulses = f.Pulses[offset-1:]
	}
	return f, nil
}

func scale(values []uint16, unit float64) []uint32 {
	out := make([]uint32, len(values))
	for i, v := range values {
		out[i] = uint32(math.Round(float64(v) * unit))
	}
	return out
}
