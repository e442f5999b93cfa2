package ircode

import (
	"fmt"
	"strconv"
	"strings"
)

// minCodeValues is the shortest sequence accepted for both raw formats:
// a four value preamble plus one burst pair.
const minCodeValues = 6

// ParsePronto parses a raw Pronto code, detecting the separator. Space is
// used unless the text has no space or starts with one, in which case the
// values are taken to be comma separated.
func ParsePronto(text string) ([]uint16, error) {
	sep := byte(' ')
	if strings.IndexByte(text, ' ') < 1 {
		sep = ','
	}
	return ParseProntoSep(text, sep)
}

// ParseProntoSep parses a raw Pronto code using an explicit separator.
//
// The preamble is: 0000 (raw), frequency code, burst pairs in sequence 1,
// burst pairs in sequence 2. Both sequences must fit in the code.
func ParseProntoSep(text string, sep byte) ([]uint16, error) {
	if text == "" {
		return nil, fmt.Errorf("%w: empty pronto code", ErrMalformed)
	}
	tokens := strings.Split(text, string(sep))
	if len(tokens) < minCodeValues {
		return nil, fmt.Errorf("%w: pronto code has %d values, need at least %d", ErrMalformed, len(tokens), minCodeValues)
	}

	code := make([]uint16, len(tokens))
	for i, tok := range tokens {
		if len(tok) != 4 {
			return nil, fmt.Errorf("%w: pronto value %d %q is not 4 hex digits", ErrInvalidNumber, i, tok)
		}
		v, err := strconv.ParseUint(tok, 16, 16)
		if err != nil {
			return nil, fmt.Errorf("pronto value %d: %w", i, numErr(tok, err))
		}
		code[i] = uint16(v)
	}

	if code[0] != 0 {
		return nil, fmt.Errorf("%w: pronto type %04X, only raw (0000) codes are supported", ErrUnsupported, code[0])
	}

	seq1Len := int(code[2]) * 2
	seq2Len := int(code[3]) * 2
	seq1Start := 4
	seq2Start := seq1Start + seq1Len
	if seq1Len > 0 && seq1Start+seq1Len > len(code) {
		return nil, fmt.Errorf("%w: sequence 1 needs %d values, code has %d", ErrTruncated, seq1Start+seq1Len, len(code))
	}
	if seq2Len > 0 && seq2Start+seq2Len > len(code) {
		return nil, fmt.Errorf("%w: sequence 2 needs %d values, code has %d", ErrTruncated, seq2Start+seq2Len, len(code))
	}

	return code, nil
}
