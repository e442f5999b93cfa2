package ircode

import (
	"fmt"
	"strconv"
	"strings"
)

// sendirPrefixFields is the number of leading fields ("sendir", "<m>:<p>",
// "<id>") skipped when a full sendir command is given.
const sendirPrefixFields = 3

// ParseGlobalCache parses comma separated GlobalCache values: frequency,
// repeat, offset and the on/off pairs. A full "sendir,<m>:<p>,<id>,..."
// command is accepted too; its first three fields are skipped.
func ParseGlobalCache(text string) ([]uint16, error) {
	if text == "" {
		return nil, fmt.Errorf("%w: empty globalcache code", ErrMalformed)
	}
	fields := strings.Split(text, ",")
	if strings.HasPrefix(text, "sendir") {
		if len(fields) < sendirPrefixFields {
			return nil, fmt.Errorf("%w: incomplete sendir command", ErrMalformed)
		}
		fields = fields[sendirPrefixFields:]
	}
	if len(fields) < minCodeValues {
		return nil, fmt.Errorf("%w: globalcache code has %d values, need at least %d", ErrMalformed, len(fields), minCodeValues)
	}

	code := make([]uint16, len(fields))
	for i, f := range fields {
		v, err := strconv.ParseUint(f, 10, 16)
		if err != nil {
			return nil, fmt.Errorf("globalcache value %d: %w", i, numErr(f, err))
		}
		code[i] = uint16(v)
	}
	return code, nil
}
