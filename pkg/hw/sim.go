package hw

import (
	"context"
	"sync"
	"time"

	"irgate/pkg/ircode"
)

// Transmission is one frame recorded by SimTransmitter.
type Transmission struct {
	Format  ircode.Format
	Outputs Outputs
	// Frames is the number of frames sent including repetitions.
	Frames int
}

// SimTransmitter is an in-memory Transmitter. Each frame takes FrameTime.
type SimTransmitter struct {
	FrameTime time.Duration
	// Fail, when set, is returned from the next Transmit and cleared.
	Fail error

	mu   sync.Mutex
	sent []Transmission
}

// NewSimTransmitter returns a transmitter whose frames take frameTime.
func NewSimTransmitter(frameTime time.Duration) *SimTransmitter {
	return &SimTransmitter{FrameTime: frameTime}
}

func (s *SimTransmitter) Transmit(ctx context.Context, f *ircode.Frame, out Outputs, more RepeatFunc) error {
	s.mu.Lock()
	fail := s.Fail
	s.Fail = nil
	s.mu.Unlock()
	if fail != nil {
		return fail
	}

	rec := Transmission{Format: f.Format, Outputs: out}
	remaining := int(f.Repeat)
	for {
		if err := s.frame(ctx); err != nil {
			return err
		}
		rec.Frames++
		if more != nil {
			if !more() {
				break
			}
			continue
		}
		if remaining == 0 {
			break
		}
		remaining--
	}

	s.mu.Lock()
	s.sent = append(s.sent, rec)
	s.mu.Unlock()
	return nil
}

func (s *SimTransmitter) frame(ctx context.Context) error {
	if s.FrameTime <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(s.FrameTime)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Sent returns a copy of the recorded transmissions.
func (s *SimTransmitter) Sent() []Transmission {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Transmission, len(s.sent))
	copy(out, s.sent)
	return out
}

// SimReceiver is an in-memory Receiver fed through Inject.
type SimReceiver struct {
	mu      sync.Mutex
	enabled bool
	pending []Decode
	enables int
	polls   int
}

func NewSimReceiver() *SimReceiver {
	return &SimReceiver{}
}

func (r *SimReceiver) Enable() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.enabled = true
	r.enables++
	return nil
}

func (r *SimReceiver) Disable() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.enabled = false
	r.pending = nil
	return nil
}

func (r *SimReceiver) Decode() (Decode, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.polls++
	if len(r.pending) == 0 {
		return Decode{}, false, nil
	}
	d := r.pending[0]
	r.pending = r.pending[1:]
	return d, true, nil
}

// Inject queues a decode result. It is buffered even while disabled so
// tests can model a stale capture left over from an earlier session.
func (r *SimReceiver) Inject(d Decode) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pending = append(r.pending, d)
}

// Polls returns how many times Decode was called.
func (r *SimReceiver) Polls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.polls
}

// Enables returns how many times Enable was called.
func (r *SimReceiver) Enables() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.enables
}

// Enabled reports whether capture is on.
func (r *SimReceiver) Enabled() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.enabled
}

// RecordingIndicator keeps the history of states it was set to.
type RecordingIndicator struct {
	mu     sync.Mutex
	states []State
}

func (i *RecordingIndicator) SetState(s State) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.states = append(i.states, s)
}

// States returns the recorded history.
func (i *RecordingIndicator) States() []State {
	i.mu.Lock()
	defer i.mu.Unlock()
	out := make([]State, len(i.states))
	copy(out, i.states)
	return out
}

// Last returns the most recent state, or StateNormal if none was set.
func (i *RecordingIndicator) Last() State {
	i.mu.Lock()
	defer i.mu.Unlock()
	if len(i.states) == 0 {
		return StateNormal
	}
	return i.states[len(i.states)-1]
}
