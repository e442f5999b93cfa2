package ircode

import (
	"errors"
	"testing"
)

const (
	gcShort = "38000,1,69,340,171,21,21,21,21,21,65,21,21,21,21,21,21,21,21,21,21,21,65,21,65,21,21,21,65,21,65,21,65,21,65,21,65,21,21,21,65,21,21,21,21,21,21,21,21,21,21,21,21,21,65,21,21,21,65,21,65,21,65,21,65,21,65,21,65,21,1555,340,86,21,3678"
	gcFull  = "sendir,1:1,1," + gcShort

	prontoLong = "0000,0066,0000,0018,0050,0051,0015,008e,0051,0050,0015,008f,0014,008f,0050,0051,0050,0051,0015,05af,0051,0050,0015,008e,0051,0051,0014,008f,0015,008e,0050,0051,0051,0050,0015,05af,0051,0050,0015,008e,0051,0051,0015,008e,0015,008e,0050,0051,0051,0050,0015,0ff1"
)

func TestParseProntoNotEnoughValues(t *testing.T) {
	for _, in := range []string{
		"",
		"0000",
		"0000 0066",
		"0000 0066 0000",
		"0000 0066 0000 0001",
		"0000 0066 0000 0001 0050",
	} {
		t.Run(in, func(t *testing.T) {
			if _, err := ParseProntoSep(in, ' '); !errors.Is(err, ErrMalformed) {
				t.Errorf("ParseProntoSep(%q) err = %v, want ErrMalformed", in, err)
			}
		})
	}
}

func TestParseProntoTruncatedSequence(t *testing.T) {
	for _, in := range []string{
		"0000 0066 0000 0018 0050 0051",
		"0000 0066 0000 0002 0050 0051",
		"0000 0066 0002 0000 0050 0051",
	} {
		t.Run(in, func(t *testing.T) {
			if _, err := ParsePronto(in); !errors.Is(err, ErrTruncated) {
				t.Errorf("ParsePronto(%q) err = %v, want ErrTruncated", in, err)
			}
		})
	}
}

func TestParseProntoMinLength(t *testing.T) {
	code, err := ParsePronto("0000 0066 0000 0001 0050 0051")
	if err != nil {
		t.Fatalf("ParsePronto: %v", err)
	}
	if len(code) != 6 || code[1] != 0x66 {
		t.Errorf("ParsePronto = %v, want 6 values with frequency 0x66", code)
	}
}

func TestParseProntoCommaSeparated(t *testing.T) {
	code, err := ParsePronto(prontoLong)
	if err != nil {
		t.Fatalf("ParsePronto: %v", err)
	}
	if len(code) != 52 {
		t.Fatalf("len = %d, want 52", len(code))
	}
	if code[51] != 0x0ff1 {
		t.Errorf("last value = %#x, want 0x0ff1", code[51])
	}
}

func TestParseProntoRejects(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want error
	}{
		{"leading space falls back to comma", " 0000,0066,0000,0001,0050,0051", ErrInvalidNumber},
		{"non-raw preamble", "0100 0066 0000 0001 0050 0051", ErrUnsupported},
		{"bad token", "0000 0066 0000 0001 0050 00g1", ErrInvalidNumber},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParsePronto(tt.in); !errors.Is(err, tt.want) {
				t.Errorf("ParsePronto(%q) err = %v, want %v", tt.in, err, tt.want)
			}
		})
	}
}

func TestParseGlobalCache(t *testing.T) {
	for name, in := range map[string]string{"short": gcShort, "full": gcFull} {
		t.Run(name, func(t *testing.T) {
			code, err := ParseGlobalCache(in)
			if err != nil {
				t.Fatalf("ParseGlobalCache: %v", err)
			}
			if len(code) != 75 {
				t.Fatalf("len = %d, want 75", len(code))
			}
			if code[0] != 38000 || code[len(code)-1] != 3678 {
				t.Errorf("first/last = %d/%d, want 38000/3678", code[0], code[len(code)-1])
			}
		})
	}
}

func TestParseGlobalCacheRejects(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want error
	}{
		{"empty", "", ErrMalformed},
		{"too short", "38000,1,1,340,171", ErrMalformed},
		{"prefix only", "sendir,1:1", ErrMalformed},
		{"prefix and too short", "sendir,1:1,1,38000,1,1,340,171", ErrMalformed},
		{"not decimal", "38000,1,1,340,171,2x", ErrInvalidNumber},
		{"overflow", "380000,1,1,340,171,21", ErrOutOfRange},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseGlobalCache(tt.in); !errors.Is(err, tt.want) {
				t.Errorf("ParseGlobalCache(%q) err = %v, want %v", tt.in, err, tt.want)
			}
		})
	}
}
