// Package sink implements the RelativeSink of §4.4: a synthetic relative
// pointing device exposing REL_X/REL_Y/REL_WHEEL/REL_HWHEEL, built on
// bendahl/uinput's Mouse device instead of the hand-rolled ioctl sequence
// the teacher wrote around an unused copy of the same library.
package sink

import (
	"errors"
	"fmt"
	"sync"
	"syscall"
	"time"

	"github.com/bendahl/uinput"

	"touchpad/internal/clock"
	"touchpad/internal/logger"
)

const (
	deviceName = "edge-motion-virtual-mouse"
	settleTime = 50 * time.Millisecond

	writeRetrySleep = time.Millisecond
)

// Sink is the emission surface the Pulser drives: one Move call per pulse
// in motion mode, or one Wheel call per nonzero scroll axis in scroll mode.
type Sink interface {
	Move(dx, dy int32) error
	Wheel(horizontal bool, delta int32) error
	Close() error
}

type relativeSink struct {
	mu    sync.Mutex
	mouse uinput.Mouse
}

// New creates the virtual device at devicePath (normally "/dev/uinput") and
// sleeps settleTime so kernel/user-space consumers can enumerate it before
// the first emission, per §4.4.
func New(devicePath string, clk clock.Clock) (Sink, error) {
	mouse, err := uinput.CreateMouse(devicePath, []byte(deviceName))
	if err != nil {
		return nil, fmt.Errorf("sink: create failed: %w", err)
	}
	clk.Sleep(settleTime)
	logger.Debug("sink created", "devnode", devicePath, "name", deviceName)
	return &relativeSink{mouse: mouse}, nil
}

// Move emits the dx/dy relative deltas, skipping an axis that is zero, per
// §4.3 step 4.
func (s *relativeSink) Move(dx, dy int32) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if dx != 0 {
		if err := retryWrite(func() error { return moveX(s.mouse, dx) }); err != nil {
			return fmt.Errorf("sink: move x: %w", err)
		}
	}
	if dy != 0 {
		if err := retryWrite(func() error { return moveY(s.mouse, dy) }); err != nil {
			return fmt.Errorf("sink: move y: %w", err)
		}
	}
	return nil
}

// Wheel emits one wheel tick, skipping when delta is zero.
func (s *relativeSink) Wheel(horizontal bool, delta int32) error {
	if delta == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := retryWrite(func() error { return s.mouse.Wheel(horizontal, delta) }); err != nil {
		return fmt.Errorf("sink: wheel: %w", err)
	}
	return nil
}

// Close destroys then closes the virtual device.
func (s *relativeSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mouse.Close()
}

// mover is the subset of uinput.Mouse that moveX/moveY need, narrowed so
// tests can fake it without modeling the full Mouse interface.
type mover interface {
	MoveLeft(pixel int32) error
	MoveRight(pixel int32) error
	MoveUp(pixel int32) error
	MoveDown(pixel int32) error
}

func moveX(m mover, dx int32) error {
	if dx > 0 {
		return m.MoveRight(dx)
	}
	return m.MoveLeft(-dx)
}

func moveY(m mover, dy int32) error {
	if dy > 0 {
		return m.MoveDown(dy)
	}
	return m.MoveUp(-dy)
}

// retryWrite implements the §4.3 sink write retry loop: EINTR retries
// immediately, EAGAIN/EWOULDBLOCK sleeps 1ms and retries, anything else is
// fatal for this emission.
func retryWrite(write func() error) error {
	for {
		err := write()
		if err == nil {
			return nil
		}
		switch {
		case errors.Is(err, syscall.EINTR):
			continue
		case errors.Is(err, syscall.EAGAIN), errors.Is(err, syscall.EWOULDBLOCK):
			time.Sleep(writeRetrySleep)
			continue
		default:
			return err
		}
	}
}
