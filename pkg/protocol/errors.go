package protocol

import "fmt"

// iTach error codes used in ERR replies.
const (
	CodeInvalidCommand   = 1
	CodeInvalidModule    = 2
	CodeInvalidPort      = 3
	CodeInvalidID        = 4
	CodeInvalidFrequency = 5
	CodeInvalidRepeat    = 6
	CodeLineTooLong      = 16
	CodeSendirTooLong    = 20
	CodeUnavailable      = 23
)

// Error is a request that violates the line grammar. Code is the iTach
// error code reported to the peer.
type Error struct {
	Code   int
	Reason string
}

func (e *Error) Error() string {
	return fmt.Sprintf("itach error %03d: %s", e.Code, e.Reason)
}

func newError(code int, format string, args ...any) *Error {
	return &Error{Code: code, Reason: fmt.Sprintf(format, args...)}
}
