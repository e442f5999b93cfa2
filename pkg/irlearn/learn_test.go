package irlearn

import (
	"context"
	"io"
	"log/slog"
	"math"
	"slices"
	"sync"
	"testing"
	"time"

	"irgate/pkg/hw"
	"irgate/pkg/router"
)

func waitFor(t *testing.T, condition func() bool, timeout time.Duration) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("waitFor: condition not met within %v", timeout)
}

type harness struct {
	c      *Coordinator
	rx     *hw.SimReceiver
	events *router.Router
	ind    *hw.RecordingIndicator

	mu      sync.Mutex
	results []LearnedCode
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := &harness{
		rx:     hw.NewSimReceiver(),
		events: router.New(router.DefaultCapacity, log),
		ind:    &hw.RecordingIndicator{},
	}
	h.c = New(Config{
		PollInterval: 2 * time.Millisecond,
		OnResult: func(l LearnedCode) {
			h.mu.Lock()
			h.results = append(h.results, l)
			h.mu.Unlock()
		},
	}, h.rx, h.events, h.ind, log)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = h.c.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return h
}

// start enters learning mode and waits until the stale decode has been
// discarded and the loop is polling.
func (h *harness) start(t *testing.T) {
	t.Helper()
	before := h.rx.Polls()
	h.c.Start()
	waitFor(t, func() bool { return h.rx.Enabled() && h.rx.Polls() >= before+2 }, time.Second)
}

func (h *harness) resultCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.results)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		in   hw.Decode
		want LearnedCode
	}{
		{"overflow", hw.Decode{Overflow: true, Protocol: 3, Value: 1}, LearnedCode{Failure: BufferOverflow}},
		{"unknown protocol", hw.Decode{Value: 0x20DF10EF, Bits: 32}, LearnedCode{Failure: UnknownProtocol}},
		{"zero value", hw.Decode{Protocol: 3, Bits: 32}, LearnedCode{Failure: InvalidValue}},
		{"all ones", hw.Decode{Protocol: 3, Value: math.MaxUint64, Bits: 64}, LearnedCode{Failure: InvalidValue}},
		{"nec", hw.Decode{Protocol: 3, Value: 0x20DF10EF, Bits: 32}, LearnedCode{Code: "3;0x20DF10EF;32;0"}},
		{"repeat", hw.Decode{Protocol: 4, Value: 0x640C, Bits: 15, Repeat: true}, LearnedCode{Code: "4;0x640C;15;1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.in); got != tt.want {
				t.Errorf("Classify(%+v) = %+v, want %+v", tt.in, got, tt.want)
			}
		})
	}
}

func TestLearnBroadcastsCode(t *testing.T) {
	h := newHarness(t)
	h.start(t)
	if !h.c.Active() {
		t.Fatal("learning not active after Start")
	}

	h.rx.Inject(hw.Decode{Protocol: 3, Value: 0x20DF10EF, Bits: 32})

	var ev router.Event
	waitFor(t, func() bool {
		var ok bool
		ev, ok = h.events.Poll()
		return ok
	}, time.Second)
	if ev.Kind != router.Learned || ev.Recipient.Kind != router.Broadcast {
		t.Errorf("event = %s to %s, want learned broadcast", ev.Kind, ev.Recipient.Kind)
	}
	if ev.Code != "3;0x20DF10EF;32;0" {
		t.Errorf("Code = %q", ev.Code)
	}
	waitFor(t, func() bool { return h.ind.Last() == hw.StateLearnOK }, time.Second)
}

func TestLearnDiscardsStaleDecode(t *testing.T) {
	h := newHarness(t)
	// Captured before learning was requested.
	h.rx.Inject(hw.Decode{Protocol: 7, Value: 0xE0E040BF, Bits: 32})
	h.c.Start()
	waitFor(t, h.rx.Enabled, time.Second)
	time.Sleep(20 * time.Millisecond)

	if ev, ok := h.events.Poll(); ok {
		t.Errorf("stale decode was reported: %+v", ev)
	}
	if n := h.resultCount(); n != 0 {
		t.Errorf("results = %d, want 0", n)
	}
}

func TestQuickRestartStartsFreshCycle(t *testing.T) {
	h := newHarness(t)
	h.start(t)
	enables := h.rx.Enables()

	// Stop and Start land before the loop notices the first; the capture
	// in between belongs to the old cycle.
	h.c.Stop()
	h.rx.Inject(hw.Decode{Protocol: 7, Value: 0xE0E040BF, Bits: 32})
	h.c.Start()

	waitFor(t, func() bool { return h.rx.Enables() > enables }, time.Second)
	time.Sleep(30 * time.Millisecond)

	if n := h.resultCount(); n != 0 {
		h.mu.Lock()
		t.Errorf("decode from the previous cycle was reported: %+v", h.results)
		h.mu.Unlock()
	}
	if !h.c.Active() || !h.rx.Enabled() {
		t.Fatal("learning must continue in the new cycle")
	}

	h.rx.Inject(hw.Decode{Protocol: 4, Value: 0x640C, Bits: 15})
	waitFor(t, func() bool { return h.resultCount() == 1 }, time.Second)
}

func TestLearnFailureIsNotBroadcast(t *testing.T) {
	h := newHarness(t)
	h.start(t)

	h.rx.Inject(hw.Decode{Overflow: true})
	waitFor(t, func() bool { return h.resultCount() == 1 }, time.Second)

	if ev, ok := h.events.Poll(); ok {
		t.Errorf("failure was broadcast: %+v", ev)
	}
	if got := h.ind.Last(); got != hw.StateLearnFailed {
		t.Errorf("indicator = %v, want LearnFailed", got)
	}
	if !h.c.Active() {
		t.Error("a failed decode must not end learning")
	}
}

func TestStopDisablesReceiver(t *testing.T) {
	h := newHarness(t)
	h.start(t)

	h.c.Stop()
	if h.c.Active() {
		t.Fatal("still active after Stop")
	}
	waitFor(t, func() bool { return !h.rx.Enabled() }, time.Second)

	h.rx.Inject(hw.Decode{Protocol: 3, Value: 0x1, Bits: 32})
	time.Sleep(20 * time.Millisecond)
	if n := h.resultCount(); n != 0 {
		t.Errorf("results = %d after Stop, want 0", n)
	}
	if got := h.ind.Last(); got != hw.StateNormal {
		t.Errorf("indicator = %v, want Normal", got)
	}
}

func TestStartStopIdempotent(t *testing.T) {
	h := newHarness(t)
	h.c.Stop()
	h.c.Start()
	h.c.Start()
	h.c.Stop()
	h.c.Stop()
	want := []hw.State{hw.StateLearning, hw.StateNormal}
	if got := h.ind.States(); !slices.Equal(got, want) {
		t.Errorf("indicator states = %v, want %v", got, want)
	}
}

func TestRestartLearning(t *testing.T) {
	h := newHarness(t)
	for range 2 {
		h.start(t)
		h.c.Stop()
		waitFor(t, func() bool { return !h.rx.Enabled() }, time.Second)
	}
	h.start(t)
	h.rx.Inject(hw.Decode{Protocol: 4, Value: 0x640C, Bits: 15})
	waitFor(t, func() bool { return h.resultCount() == 1 }, time.Second)
}
