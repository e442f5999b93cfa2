//go:build linux

package lirc

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sys/unix"

	"irgate/pkg/hw"
	"irgate/pkg/ircode"
)

// LIRC ioctl requests.
const (
	setSendMode        = 0x40046911
	setRecMode         = 0x40046912
	setSendCarrier     = 0x40046913
	setTransmitterMask = 0x40046917
)

// LIRC modes.
const (
	modePulse    = 0x2
	modeScancode = 0x8
)

const bytesPerPulse = 4

// Transmitter sends frames through a LIRC transmit device.
type Transmitter struct {
	path string
	log  *slog.Logger

	mu      sync.Mutex
	fd      int
	mode    int
	carrier uint32
	mask    hw.Outputs
	buf     []byte
	sc      [scancodeSize]byte
}

// OpenTransmitter opens a LIRC device for sending.
func OpenTransmitter(path string, log *slog.Logger) (*Transmitter, error) {
	if log == nil {
		log = slog.Default()
	}
	fd, err := unix.Open(path, unix.O_RDWR|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return &Transmitter{path: path, log: log, fd: fd, buf: make([]byte, 0, 512*bytesPerPulse)}, nil
}

// Close releases the device.
func (t *Transmitter) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.fd < 0 {
		return nil
	}
	err := unix.Close(t.fd)
	t.fd = -1
	return err
}

// Transmit implements hw.Transmitter.
func (t *Transmitter) Transmit(ctx context.Context, f *ircode.Frame, out hw.Outputs, more hw.RepeatFunc) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.fd < 0 {
		return hw.ErrClosed
	}
	if err := t.setMask(out); err != nil {
		return err
	}

	send := t.sendPulses
	if f.Format == ircode.FormatHex {
		sc, err := toScancode(f.Hex)
		if err != nil {
			return err
		}
		sc.marshal(t.sc[:])
		send = t.sendScancode
	}

	first := true
	for n := uint16(0); ; n++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := send(ctx, f, first); err != nil {
			return err
		}
		first = false
		if more != nil {
			if !more() {
				return nil
			}
			continue
		}
		if n >= f.Repeat {
			return nil
		}
	}
}

func (t *Transmitter) setMask(out hw.Outputs) error {
	if out == t.mask {
		return nil
	}
	err := unix.IoctlSetPointerInt(t.fd, setTransmitterMask, int(out))
	switch {
	case err == nil:
	case errors.Is(err, unix.ENOTTY), errors.Is(err, unix.ENOSYS):
		t.log.Debug("transmitter mask not supported", "device", t.path)
	default:
		return fmt.Errorf("lirc: set transmitter mask %s: %w", out, err)
	}
	t.mask = out
	return nil
}

func (t *Transmitter) setMode(mode int) error {
	if t.mode == mode {
		return nil
	}
	if err := unix.IoctlSetPointerInt(t.fd, setSendMode, mode); err != nil {
		return fmt.Errorf("lirc: set send mode %d: %w", mode, err)
	}
	t.mode = mode
	return nil
}

func (t *Transmitter) sendScancode(_ context.Context, _ *ircode.Frame, _ bool) error {
	if err := t.setMode(modeScancode); err != nil {
		return err
	}
	return t.write(t.sc[:])
}

func (t *Transmitter) sendPulses(ctx context.Context, f *ircode.Frame, first bool) error {
	if err := t.setMode(modePulse); err != nil {
		return err
	}
	if f.CarrierHz != t.carrier && f.CarrierHz > 0 {
		if err := unix.IoctlSetPointerInt(t.fd, setSendCarrier, int(f.CarrierHz)); err != nil {
			t.log.Debug("carrier not set", "device", t.path, "hz", f.CarrierHz, "error", err)
		}
		t.carrier = f.CarrierHz
	}

	pulses := f.Pulses
	if !first {
		pulses = f.Repetition()
	}
	// The device takes an odd count ending in a mark; the trailing space
	// is waited out here.
	var gap uint32
	if len(pulses)%2 == 0 && len(pulses) > 0 {
		gap = pulses[len(pulses)-1]
		pulses = pulses[:len(pulses)-1]
	}

	need := len(pulses) * bytesPerPulse
	if cap(t.buf) < need {
		t.buf = make([]byte, need)
	}
	buf := t.buf[:need]
	for i, p := range pulses {
		binary.NativeEndian.PutUint32(buf[i*bytesPerPulse:], p)
	}
	if err := t.write(buf); err != nil {
		return err
	}
	if gap == 0 {
		return nil
	}
	timer := time.NewTimer(time.Duration(gap) * time.Microsecond)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (t *Transmitter) write(b []byte) error {
	_, err := unix.Write(t.fd, b)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, unix.ENOMEM):
		return fmt.Errorf("%w: %s: %w", hw.ErrAllocation, t.path, err)
	default:
		return fmt.Errorf("lirc: write %s: %w", t.path, err)
	}
}

// Receiver reads kernel-decoded scancodes from a LIRC receive device.
type Receiver struct {
	path string

	mu  sync.Mutex
	fd  int
	buf [scancodeSize]byte
}

// NewReceiver returns a receiver for path. The device is opened by Enable.
func NewReceiver(path string) *Receiver {
	return &Receiver{path: path, fd: -1}
}

// Enable implements hw.Receiver.
func (r *Receiver) Enable() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fd >= 0 {
		return nil
	}
	fd, err := unix.Open(r.path, unix.O_RDONLY|unix.O_NONBLOCK|unix.O_CLOEXEC, 0)
	if err != nil {
		return fmt.Errorf("open %s: %w", r.path, err)
	}
	if err := unix.IoctlSetPointerInt(fd, setRecMode, modeScancode); err != nil {
		_ = unix.Close(fd)
		return fmt.Errorf("lirc: set receive mode on %s: %w", r.path, err)
	}
	r.fd = fd
	return nil
}

// Disable implements hw.Receiver. Closing the device drops its buffer.
func (r *Receiver) Disable() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fd < 0 {
		return nil
	}
	err := unix.Close(r.fd)
	r.fd = -1
	return err
}

// Decode implements hw.Receiver.
func (r *Receiver) Decode() (hw.Decode, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fd < 0 {
		return hw.Decode{}, false, hw.ErrClosed
	}
	n, err := unix.Read(r.fd, r.buf[:])
	switch {
	case errors.Is(err, unix.EAGAIN):
		return hw.Decode{}, false, nil
	case errors.Is(err, unix.ENOMEM), errors.Is(err, unix.EOVERFLOW):
		return hw.Decode{Overflow: true}, true, nil
	case err != nil:
		return hw.Decode{}, false, fmt.Errorf("lirc: read %s: %w", r.path, err)
	case n != scancodeSize:
		return hw.Decode{}, false, fmt.Errorf("lirc: short read %d bytes from %s", n, r.path)
	}
	return fromScancode(unmarshalScancode(r.buf[:])), true, nil
}
