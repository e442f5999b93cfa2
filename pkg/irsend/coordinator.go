// Package irsend serializes IR transmissions: one request is in flight at
// a time, identical requests extend it and a stop signal ends its repeats.
package irsend

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"irgate/pkg/hw"
	"irgate/pkg/ircode"
	"irgate/pkg/router"
)

// Request asks for one code to be sent.
type Request struct {
	Requester     router.Requester
	CorrelationID uint32
	// Code is the raw code text. Two requests with equal Code and a
	// positive Repeat are considered the same button being held.
	Code    string
	Format  ircode.Format
	Repeat  uint16
	Outputs hw.Outputs
}

// Signal controls the active request's repeat chain.
type Signal uint8

const (
	// Extend resets the remaining repeats to the original count.
	Extend Signal = iota + 1
	// Stop ends the repeat chain after the current frame.
	Stop
)

// LearnState reports whether learning mode holds the IR hardware.
type LearnState interface {
	Active() bool
}

// Config configures a Coordinator.
type Config struct {
	Available    hw.Outputs      // Emitter lines present on the device (default all).
	RestartGrace time.Duration   // Delay before Fatal is called (default 2s).
	Fatal        func(err error) // Called once after an allocation failure.
	// OnComplete observes every finished request. It runs on the send
	// goroutine and must not block.
	OnComplete func(req Request, success bool)
}

func (c *Config) withDefaults() Config {
	out := *c
	if out.Available == 0 {
		out.Available = hw.AllOutputs
	}
	if out.RestartGrace == 0 {
		out.RestartGrace = 2 * time.Second
	}
	return out
}

const controlBuffer = 4

type job struct {
	req   Request
	frame ircode.Frame
}

// Coordinator owns the transmitter. Send and Stop may be called from any
// goroutine; transmissions happen on the goroutine running Run.
type Coordinator struct {
	cfg      Config
	tx       hw.Transmitter
	events   *router.Router
	learning LearnState
	log      *slog.Logger

	ready  atomic.Bool
	failed atomic.Bool

	mu      sync.Mutex
	current *job

	jobs    chan *job
	control chan Signal
}

// New creates a coordinator. learning may be nil when the device has no
// receiver.
func New(cfg Config, tx hw.Transmitter, events *router.Router, learning LearnState, log *slog.Logger) *Coordinator {
	if log == nil {
		log = slog.Default()
	}
	return &Coordinator{
		cfg:      cfg.withDefaults(),
		tx:       tx,
		events:   events,
		learning: learning,
		log:      log,
		jobs:     make(chan *job, 1),
		control:  make(chan Signal, controlBuffer),
	}
}

// Send submits a request. Queued means the completion will be reported
// to the requester once the repeat chain ends.
func (c *Coordinator) Send(req Request) Outcome {
	if !c.ready.Load() || c.failed.Load() {
		return NotReady
	}
	if c.learning != nil && c.learning.Active() {
		return Unavailable
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current != nil {
		if req.Repeat > 0 && req.Code == c.current.req.Code {
			c.signal(Extend)
			return RepeatAccepted
		}
		return TooManyRequests
	}

	req.Outputs &= c.cfg.Available
	if req.Outputs == 0 {
		c.log.Debug("send rejected: no emitter selected", "correlation_id", req.CorrelationID)
		return BadRequest
	}
	frame, err := ircode.Encode(req.Format, req.Code, req.Repeat)
	if err != nil {
		c.log.Debug("send rejected: invalid code",
			"correlation_id", req.CorrelationID, "format", req.Format.String(), "error", err)
		return BadRequest
	}

	// Signals left over from the previous request must not leak into this one.
	c.drainControl()

	j := &job{req: req, frame: frame}
	c.current = j
	c.jobs <- j
	c.log.Debug("send queued",
		"correlation_id", req.CorrelationID,
		"format", req.Format.String(),
		"repeat", req.Repeat,
		"outputs", req.Outputs.String())
	return Queued
}

// Stop ends the active repeat chain after the frame being sent. It does
// nothing when no request is in flight.
func (c *Coordinator) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return
	}
	c.signal(Stop)
}

// Busy reports whether a request is in flight.
func (c *Coordinator) Busy() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current != nil
}

// signal delivers s without blocking. Must hold c.mu.
func (c *Coordinator) signal(s Signal) {
	select {
	case c.control <- s:
		return
	default:
	}
	if s != Stop {
		// A full buffer already holds signals that reset the counter.
		return
	}
	c.drainControl()
	select {
	case c.control <- Stop:
	default:
	}
}

func (c *Coordinator) drainControl() {
	for {
		select {
		case <-c.control:
		default:
			return
		}
	}
}

// Run is the transmit loop. It returns when ctx is cancelled.
func (c *Coordinator) Run(ctx context.Context) error {
	c.ready.Store(true)
	defer c.ready.Store(false)

	for {
		select {
		case <-ctx.Done():
			return nil
		case j := <-c.jobs:
			c.transmit(ctx, j)
		}
	}
}

func (c *Coordinator) transmit(ctx context.Context, j *job) {
	r := &repeater{control: c.control, limit: int(j.frame.Repeat), remaining: int(j.frame.Repeat)}
	start := time.Now()
	err := c.tx.Transmit(ctx, &j.frame, j.req.Outputs, r.next)

	c.mu.Lock()
	c.current = nil
	c.mu.Unlock()

	if err != nil {
		c.log.Warn("send failed",
			"correlation_id", j.req.CorrelationID,
			"format", j.req.Format.String(),
			"error", err)
	} else {
		c.log.Debug("send complete",
			"correlation_id", j.req.CorrelationID,
			"duration", time.Since(start))
	}
	c.complete(j.req, err == nil)

	if errors.Is(err, ircode.ErrAllocation) {
		c.fail(err)
	}
}

func (c *Coordinator) complete(req Request, success bool) {
	if c.cfg.OnComplete != nil {
		c.cfg.OnComplete(req, success)
	}
	if req.Requester.Kind == router.Gateway {
		if req.Requester.Conn == nil {
			return
		}
		if err := req.Requester.Conn.WriteCompletion(req.CorrelationID, success); err != nil {
			c.log.Debug("completion not delivered", "correlation_id", req.CorrelationID, "error", err)
		}
		return
	}
	c.events.Publish(router.Event{
		Recipient:     req.Requester,
		Kind:          router.SendResult,
		CorrelationID: req.CorrelationID,
		Success:       success,
	})
}

// fail stops accepting requests and hands the error to the restart
// handler once the grace period has passed.
func (c *Coordinator) fail(err error) {
	if !c.failed.CompareAndSwap(false, true) {
		return
	}
	c.log.Error("transmit buffer allocation failed, requesting restart",
		"error", err, "grace", c.cfg.RestartGrace)
	if c.cfg.Fatal == nil {
		return
	}
	time.AfterFunc(c.cfg.RestartGrace, func() { c.cfg.Fatal(err) })
}

// repeater is the transmitter's repeat callback state. next runs between
// frames and must stay non-blocking and allocation free.
type repeater struct {
	control   <-chan Signal
	limit     int
	remaining int
	stopped   bool
}

func (r *repeater) next() bool {
drain:
	for {
		select {
		case s := <-r.control:
			switch s {
			case Stop:
				r.stopped = true
			case Extend:
				r.remaining = r.limit
			}
		default:
			break drain
		}
	}
	if r.stopped || r.remaining <= 0 {
		return false
	}
	r.remaining--
	return true
}
