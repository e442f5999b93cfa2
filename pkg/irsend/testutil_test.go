package irsend //nolint:testpackage // internal white-box tests need access to unexported fields

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"irgate/pkg/hw"
	"irgate/pkg/ircode"
	"irgate/pkg/router"
)

// waitFor polls condition every tick until it returns true or timeout expires.
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

type fakeLearn struct{ active atomic.Bool }

func (f *fakeLearn) Active() bool { return f.active.Load() }

type fakeConn struct {
	mu          sync.Mutex
	completions []uint32
	success     []bool
}

func (f *fakeConn) WriteCompletion(id uint32, ok bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.completions = append(f.completions, id)
	f.success = append(f.success, ok)
	return nil
}

func (f *fakeConn) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.completions)
}

type harness struct {
	c      *Coordinator
	tx     *hw.SimTransmitter
	events *router.Router
	learn  *fakeLearn
}

func newHarness(t *testing.T, frameTime time.Duration, cfg Config) *harness {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := &harness{
		tx:     hw.NewSimTransmitter(frameTime),
		events: router.New(router.DefaultCapacity, log),
		learn:  &fakeLearn{},
	}
	h.c = New(cfg, h.tx, h.events, h.learn, log)

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
	waitFor(t, h.c.ready.Load, time.Second)
	return h
}

// nextEvent waits for a router event.
func (h *harness) nextEvent(t *testing.T) router.Event {
	t.Helper()
	var ev router.Event
	waitFor(t, func() bool {
		var ok bool
		ev, ok = h.events.Poll()
		return ok
	}, 2*time.Second)
	return ev
}

const (
	hexCode = "4;0x640C;15;0"
	gcCode  = "38000,1,1,340,171,21,21,21,65,21,1555"
)

func hexRequest(id uint32, repeat uint16) Request {
	return Request{
		Requester:     router.SessionRequester("s1"),
		CorrelationID: id,
		Code:          hexCode,
		Format:        ircode.FormatHex,
		Repeat:        repeat,
		Outputs:       hw.InternalSide,
	}
}
