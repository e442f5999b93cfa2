// Package gpio shows the device state on a GPIO-driven LED.
package gpio

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/warthog618/go-gpiocdev"

	"irgate/pkg/hw"
)

// Pin is the output the indicator drives. *gpiocdev.Line satisfies it.
type Pin interface {
	SetValue(value int) error
}

type step struct {
	on  bool
	dur time.Duration
}

// program is the blink sequence for one state. Transient programs play
// once and then hand over to next; steady ones hold their last step.
type program struct {
	steps     []step
	transient bool
	next      hw.State
}

func programFor(s hw.State) program {
	const (
		fast = 100 * time.Millisecond
		slow = 500 * time.Millisecond
	)
	switch s {
	case hw.StateIdentify:
		p := program{transient: true, next: hw.StateNormal}
		for range 10 {
			p.steps = append(p.steps, step{true, slow}, step{false, slow})
		}
		return p
	case hw.StateLearning:
		return program{steps: []step{{true, 0}}}
	case hw.StateLearnOK:
		return program{
			steps:     []step{{false, fast}, {true, fast}, {false, fast}, {true, fast}, {false, fast}, {true, fast}},
			transient: true,
			next:      hw.StateLearning,
		}
	case hw.StateLearnFailed:
		return program{steps: []step{{false, 2 * slow}, {true, 0}}, transient: true, next: hw.StateLearning}
	default:
		return program{steps: []step{{false, 0}}}
	}
}

// Indicator implements hw.Indicator on a single LED.
type Indicator struct {
	pin    Pin
	closer func() error
	log    *slog.Logger
	states chan hw.State
}

// Open requests line offset on chip (e.g. "gpiochip0") as an output.
func Open(chip string, offset int, log *slog.Logger) (*Indicator, error) {
	line, err := gpiocdev.RequestLine(chip, offset, gpiocdev.AsOutput(0), gpiocdev.WithConsumer("irgate"))
	if err != nil {
		return nil, fmt.Errorf("request %s line %d: %w", chip, offset, err)
	}
	ind := New(line, log)
	ind.closer = line.Close
	return ind, nil
}

// New drives pin. Run must be called for state changes to show.
func New(pin Pin, log *slog.Logger) *Indicator {
	if log == nil {
		log = slog.Default()
	}
	return &Indicator{pin: pin, log: log, states: make(chan hw.State, 1)}
}

// SetState implements hw.Indicator. Only the latest pending state is kept.
func (i *Indicator) SetState(s hw.State) {
	for {
		select {
		case i.states <- s:
			return
		default:
		}
		select {
		case <-i.states:
		default:
		}
	}
}

// Close turns the LED off and releases the line.
func (i *Indicator) Close() error {
	_ = i.pin.SetValue(0)
	if i.closer != nil {
		return i.closer()
	}
	return nil
}

// Run plays state programs until ctx is cancelled.
func (i *Indicator) Run(ctx context.Context) error {
	defer func() { _ = i.pin.SetValue(0) }()
	state := hw.StateNormal
	for {
		p := programFor(state)
		next, changed := i.play(ctx, p)
		switch {
		case ctx.Err() != nil:
			return nil
		case changed:
			state = next
		case p.transient:
			state = p.next
		default:
			select {
			case <-ctx.Done():
				return nil
			case state = <-i.states:
			}
		}
	}
}

// play runs one pass of p. It returns early with the new state when one
// arrives.
func (i *Indicator) play(ctx context.Context, p program) (hw.State, bool) {
	for _, s := range p.steps {
		v := 0
		if s.on {
			v = 1
		}
		if err := i.pin.SetValue(v); err != nil {
			i.log.Warn("indicator", "error", err)
		}
		if s.dur == 0 {
			continue
		}
		timer := time.NewTimer(s.dur)
		select {
		case <-ctx.Done():
			timer.Stop()
			return 0, false
		case st := <-i.states:
			timer.Stop()
			return st, true
		case <-timer.C:
		}
	}
	return 0, false
}
