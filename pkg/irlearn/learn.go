// Package irlearn runs learning mode: while active it polls the IR
// receiver and broadcasts every code it can decode in canonical hex form.
package irlearn

import (
	"context"
	"log/slog"
	"math"
	"sync"
	"time"

	"irgate/pkg/hw"
	"irgate/pkg/ircode"
	"irgate/pkg/router"
)

// Failure classifies a decode that produced no usable code.
type Failure uint8

const (
	NoFailure Failure = iota
	BufferOverflow
	UnknownProtocol
	InvalidValue
)

func (f Failure) String() string {
	switch f {
	case NoFailure:
		return "none"
	case BufferOverflow:
		return "buffer_overflow"
	case UnknownProtocol:
		return "unknown_protocol"
	case InvalidValue:
		return "invalid_value"
	default:
		return "unknown"
	}
}

// LearnedCode is the result of one decode attempt.
type LearnedCode struct {
	Code    string
	Failure Failure
}

// OK reports whether a code was learned.
func (l LearnedCode) OK() bool { return l.Failure == NoFailure }

// Classify turns a receiver decode into a learned code.
func Classify(d hw.Decode) LearnedCode {
	switch {
	case d.Overflow:
		return LearnedCode{Failure: BufferOverflow}
	case d.Protocol == 0:
		return LearnedCode{Failure: UnknownProtocol}
	case d.Value == 0 || d.Value == math.MaxUint64:
		return LearnedCode{Failure: InvalidValue}
	}
	c := ircode.HexCode{Protocol: d.Protocol, Command: d.Value, Bits: d.Bits}
	if d.Repeat {
		c.Repeat = 1
	}
	return LearnedCode{Code: c.String()}
}

// State is the learning mode.
type State uint8

const (
	Idle State = iota
	Listening
)

// Config configures a Coordinator.
type Config struct {
	PollInterval time.Duration     // Receiver poll cadence (default 100ms).
	OnResult     func(LearnedCode) // Optional observer of every decode attempt.
}

func (c *Config) withDefaults() Config {
	out := *c
	if out.PollInterval == 0 {
		out.PollInterval = 100 * time.Millisecond
	}
	return out
}

// Coordinator owns the receiver and the learning mode.
type Coordinator struct {
	cfg       Config
	rx        hw.Receiver
	events    *router.Router
	indicator hw.Indicator
	log       *slog.Logger

	mu    sync.Mutex
	state State
	cycle uint64 // bumped on every entry into Listening
	wake  chan struct{}
}

// New creates a learn coordinator. indicator may be nil.
func New(cfg Config, rx hw.Receiver, events *router.Router, indicator hw.Indicator, log *slog.Logger) *Coordinator {
	if indicator == nil {
		indicator = hw.NopIndicator{}
	}
	if log == nil {
		log = slog.Default()
	}
	return &Coordinator{
		cfg:       cfg.withDefaults(),
		rx:        rx,
		events:    events,
		indicator: indicator,
		log:       log,
		wake:      make(chan struct{}, 1),
	}
}

// Start enters learning mode. Calling it while listening does nothing.
func (c *Coordinator) Start() {
	c.setState(Listening)
}

// Stop leaves learning mode. Calling it while idle does nothing.
func (c *Coordinator) Stop() {
	c.setState(Idle)
}

// Active reports whether learning mode is on.
func (c *Coordinator) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state == Listening
}

// listening reports whether the learning cycle numbered cycle is still
// the current one.
func (c *Coordinator) listening(cycle uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state == Listening && c.cycle == cycle
}

func (c *Coordinator) currentCycle() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cycle
}

func (c *Coordinator) setState(s State) {
	c.mu.Lock()
	if c.state == s {
		c.mu.Unlock()
		return
	}
	c.state = s
	if s == Listening {
		c.cycle++
	}
	c.mu.Unlock()

	if s == Listening {
		c.log.Info("learning started")
		c.indicator.SetState(hw.StateLearning)
	} else {
		c.log.Info("learning stopped")
		c.indicator.SetState(hw.StateNormal)
	}
	select {
	case c.wake <- struct{}{}:
	default:
	}
}

// Run is the learn loop. It returns when ctx is cancelled.
func (c *Coordinator) Run(ctx context.Context) error {
	for {
		if !c.Active() {
			select {
			case <-ctx.Done():
				return nil
			case <-c.wake:
				continue
			}
		}
		c.listen(ctx)
		if ctx.Err() != nil {
			return nil
		}
	}
}

// listen runs one learning cycle. It returns when learning stops or a
// new cycle begins, so every cycle re-enables the receiver and drops
// whatever the previous one left behind.
func (c *Coordinator) listen(ctx context.Context) {
	cycle := c.currentCycle()
	if err := c.rx.Enable(); err != nil {
		c.log.Error("enable receiver", "error", err)
		c.Stop()
		return
	}
	defer func() {
		if err := c.rx.Disable(); err != nil {
			c.log.Warn("disable receiver", "error", err)
		}
	}()

	// Anything captured before this session started is stale.
	_, _, _ = c.rx.Decode()

	ticker := time.NewTicker(c.cfg.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.wake:
		case <-ticker.C:
		}
		if !c.listening(cycle) {
			return
		}
		d, ok, err := c.rx.Decode()
		if err != nil {
			c.log.Warn("decode", "error", err)
			continue
		}
		if !ok {
			continue
		}
		if !c.listening(cycle) {
			return
		}
		c.report(Classify(d))
	}
}

func (c *Coordinator) report(l LearnedCode) {
	if c.cfg.OnResult != nil {
		c.cfg.OnResult(l)
	}
	if !l.OK() {
		c.log.Warn("learn failed", "reason", l.Failure.String())
		c.indicator.SetState(hw.StateLearnFailed)
		return
	}
	c.log.Info("code learned", "code", l.Code)
	c.indicator.SetState(hw.StateLearnOK)
	c.events.Publish(router.Event{
		Recipient: router.BroadcastRequester(),
		Kind:      router.Learned,
		Success:   true,
		Code:      l.Code,
	})
}
