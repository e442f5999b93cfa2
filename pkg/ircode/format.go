package ircode

import "fmt"

// Format identifies one of the supported textual code formats.
type Format uint8

const (
	FormatUnknown Format = iota
	FormatHex
	FormatPronto
	FormatGlobalCache
)

func (f Format) String() string {
	switch f {
	case FormatHex:
		return "hex"
	case FormatPronto:
		return "pronto"
	case FormatGlobalCache:
		return "gc"
	default:
		return "unknown"
	}
}

// ParseFormat maps the wire name of a format ("hex", "pronto", "gc").
func ParseFormat(name string) (Format, error) {
	switch name {
	case "hex":
		return FormatHex, nil
	case "pronto":
		return FormatPronto, nil
	case "gc":
		return FormatGlobalCache, nil
	default:
		return FormatUnknown, fmt.Errorf("%w: format %q", ErrUnsupported, name)
	}
}
