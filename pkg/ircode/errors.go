package ircode

import "errors"

var (
	// ErrMalformed reports a code whose field layout is wrong.
	ErrMalformed = errors.New("ircode: malformed code")
	// ErrInvalidNumber reports a field that is not a number in the expected base.
	ErrInvalidNumber = errors.New("ircode: invalid number")
	// ErrOutOfRange reports a numeric field outside its permitted range.
	ErrOutOfRange = errors.New("ircode: value out of range")
	// ErrTruncated reports a Pronto burst table longer than the code.
	ErrTruncated = errors.New("ircode: burst sequence exceeds code length")
	// ErrUnsupported reports a format or Pronto variant that cannot be sent.
	ErrUnsupported = errors.New("ircode: unsupported code")
	// ErrAllocation reports that a transmit buffer could not be allocated.
	// Unlike the other errors it is not caused by the input and callers on
	// the send path treat it as fatal.
	ErrAllocation = errors.New("ircode: transmit buffer allocation failed")
)
