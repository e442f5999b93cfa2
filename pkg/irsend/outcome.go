package irsend

import "strconv"

// Outcome is the synchronous result of Send. The numeric values follow
// HTTP status semantics and are reported as-is to API clients.
type Outcome uint16

const (
	// Queued means the request was accepted; completion is reported later.
	Queued Outcome = 0
	// RepeatAccepted means the in-flight request was extended.
	RepeatAccepted Outcome = 202
	// BadRequest means the outputs, format or code were invalid.
	BadRequest Outcome = 400
	// TooManyRequests means another request is in flight.
	TooManyRequests Outcome = 429
	// NotReady means the coordinator is not running.
	NotReady Outcome = 500
	// Unavailable means learning mode is active.
	Unavailable Outcome = 503
)

// Accepted reports whether the request was taken (queued or extended).
func (o Outcome) Accepted() bool {
	return o == Queued || o == RepeatAccepted
}

// Busy reports whether the request was refused because the transmitter
// is occupied.
func (o Outcome) Busy() bool {
	return o == TooManyRequests || o == Unavailable
}

func (o Outcome) String() string {
	switch o {
	case Queued:
		return "queued"
	case RepeatAccepted:
		return "repeat_accepted"
	case BadRequest:
		return "bad_request"
	case TooManyRequests:
		return "busy"
	case NotReady:
		return "not_ready"
	case Unavailable:
		return "learning"
	default:
		return strconv.Itoa(int(o))
	}
}
