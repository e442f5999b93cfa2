// Package router carries completion events from the IR coordinators to
// whichever transport is serving the requester.
package router

import (
	"log/slog"
	"sync/atomic"
)

// DefaultCapacity is the number of undelivered events kept before new
// ones are dropped.
const DefaultCapacity = 5

// RequesterKind says where a completion must be delivered.
type RequesterKind uint8

const (
	// Broadcast events go to every connected client.
	Broadcast RequesterKind = iota
	// Session events go to one transport session.
	Session
	// Gateway requesters are answered synchronously on their connection
	// and never pass through the router.
	Gateway
)

func (k RequesterKind) String() string {
	switch k {
	case Broadcast:
		return "broadcast"
	case Session:
		return "session"
	case Gateway:
		return "gateway"
	default:
		return "unknown"
	}
}

// CompletionWriter answers a gateway requester on its own connection.
type CompletionWriter interface {
	WriteCompletion(correlationID uint32, success bool) error
}

// Requester identifies the origin of a request.
type Requester struct {
	Kind      RequesterKind
	SessionID string
	Conn      CompletionWriter
}

// BroadcastRequester addresses all clients.
func BroadcastRequester() Requester { return Requester{Kind: Broadcast} }

// SessionRequester addresses one transport session.
func SessionRequester(id string) Requester { return Requester{Kind: Session, SessionID: id} }

// GatewayRequester addresses a gateway connection.
func GatewayRequester(w CompletionWriter) Requester { return Requester{Kind: Gateway, Conn: w} }

// EventKind is the type of a completion event.
type EventKind uint8

const (
	SendResult EventKind = iota + 1
	Learned
)

func (k EventKind) String() string {
	switch k {
	case SendResult:
		return "ir_send"
	case Learned:
		return "ir_receive"
	default:
		return "unknown"
	}
}

// Event is a completed send or a learned code.
type Event struct {
	Recipient     Requester
	Kind          EventKind
	CorrelationID uint32
	Success       bool
	// Code is the canonical learned code for Learned events.
	Code string
}

// Router is a bounded FIFO of events. Publish and Poll never block.
type Router struct {
	ch      chan Event
	dropped atomic.Uint64
	log     *slog.Logger
}

// New returns a router holding up to capacity events. A capacity below
// one uses DefaultCapacity.
func New(capacity int, log *slog.Logger) *Router {
	if capacity < 1 {
		capacity = DefaultCapacity
	}
	if log == nil {
		log = slog.Default()
	}
	return &Router{ch: make(chan Event, capacity), log: log}
}

// Publish enqueues ev. When the router is full the event is dropped and
// Publish returns false.
func (r *Router) Publish(ev Event) bool {
	select {
	case r.ch <- ev:
		return true
	default:
		n := r.dropped.Add(1)
		r.log.Warn("response queue full, event dropped",
			"kind", ev.Kind.String(),
			"recipient", ev.Recipient.Kind.String(),
			"correlation_id", ev.CorrelationID,
			"dropped_total", n)
		return false
	}
}

// Poll returns the oldest event, if any.
func (r *Router) Poll() (Event, bool) {
	select {
	case ev := <-r.ch:
		return ev, true
	default:
		return Event{}, false
	}
}

// Len returns the number of queued events.
func (r *Router) Len() int { return len(r.ch) }

// Cap returns the capacity.
func (r *Router) Cap() int { return cap(r.ch) }

// Dropped returns how many events were discarded because the router was full.
func (r *Router) Dropped() uint64 { return r.dropped.Load() }
