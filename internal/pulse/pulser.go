// Package pulse implements the Pulser of §4.3: a dedicated scheduling
// context that, while armed, periodically reads the shared direction/speed
// command and drives the RelativeSink at a fixed pulse rate.
package pulse

import (
	"math"
	"sync"
	"time"

	"touchpad/internal/clock"
	"touchpad/internal/config"
	"touchpad/internal/logger"
	"touchpad/internal/sink"
)

// Command is the SharedCommand record of §3: the latest direction/speed
// published by the Controller, protected by Shared's mutex and condition
// variable.
type Command struct {
	Armed       bool
	DirX, DirY  int
	SpeedFactor float64
}

// Shared is the Controller<->Pulser rendezvous point. The lock is held only
// for reads/writes of the four Command fields, never across a sink write or
// poll, per §5.
type Shared struct {
	mu      sync.Mutex
	cond    *sync.Cond
	cmd     Command
	running bool
}

// NewShared creates a Shared in the running state with a zero Command.
func NewShared() *Shared {
	s := &Shared{running: true}
	s.cond = sync.NewCond(&s.mu)
	return s
}

// Publish updates the command and, if it actually changed, wakes the
// Pulser. Speed factor changes below 1e-4 don't count as a change, per
// §4.2's publish rule.
func (s *Shared) Publish(cmd Command) {
	s.mu.Lock()
	changed := cmd.Armed != s.cmd.Armed ||
		cmd.DirX != s.cmd.DirX ||
		cmd.DirY != s.cmd.DirY ||
		math.Abs(cmd.SpeedFactor-s.cmd.SpeedFactor) > 1e-4
	s.cmd = cmd
	s.mu.Unlock()
	if changed {
		s.cond.Broadcast()
	}
}

// Stop marks Shared as no longer running and wakes any waiter so the
// Pulser can observe it and exit.
func (s *Shared) Stop() {
	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
	s.cond.Broadcast()
}

// Pulser drives a Sink from a Shared command at a fixed period while armed.
type Pulser struct {
	shared *Shared
	sink   sink.Sink
	clk    clock.Clock
	cfg    config.Config

	done chan struct{}
}

// New creates a Pulser bound to shared, sink and cfg's pulse timing/mode
// options.
func New(shared *Shared, snk sink.Sink, clk clock.Clock, cfg config.Config) *Pulser {
	return &Pulser{shared: shared, sink: snk, clk: clk, cfg: cfg, done: make(chan struct{})}
}

// Run executes the §4.3 protocol until Shared.Stop is called. It is meant
// to be run on its own goroutine; Controller joins it via Done after
// calling Shared.Stop.
func (p *Pulser) Run() {
	defer close(p.done)

	p.shared.mu.Lock()
	for {
		for !p.shared.cmd.Armed && p.shared.running {
			p.shared.cond.Wait()
		}
		if !p.shared.running {
			p.shared.mu.Unlock()
			return
		}
		cmd := p.shared.cmd
		p.shared.mu.Unlock()

		if err := p.emit(cmd); err != nil {
			logger.Debug("pulse emission failed", "err", err)
			p.shared.mu.Lock()
			p.shared.cmd.Armed = false
			p.shared.cond.Broadcast()
			continue
		}

		p.shared.mu.Lock()
		if p.shared.cmd.Armed && p.shared.running {
			p.waitTimeout(time.Duration(p.cfg.PulseMs) * time.Millisecond)
		}
	}
}

// waitTimeout blocks on the condition for at most d, assuming shared.mu is
// already held. It relies on cond.Wait's ordinary wakeups for changes and a
// background timer goroutine to force a wakeup at the deadline.
func (p *Pulser) waitTimeout(d time.Duration) {
	woke := make(chan struct{})
	timer := time.AfterFunc(d, func() {
		p.shared.mu.Lock()
		p.shared.cond.Broadcast()
		p.shared.mu.Unlock()
		close(woke)
	})
	defer timer.Stop()

	deadline := p.clk.NowMs() + d.Milliseconds()
	for p.shared.cmd.Armed && p.shared.running && p.clk.NowMs() < deadline {
		p.shared.cond.Wait()
	}
}

// Done is closed once Run has returned.
func (p *Pulser) Done() <-chan struct{} { return p.done }

func (p *Pulser) emit(cmd Command) error {
	length := math.Hypot(float64(cmd.DirX), float64(cmd.DirY))
	if length < 1e-9 {
		return nil
	}

	step := roundHalfAwayFromZero(p.cfg.PulseStep * (1 + cmd.SpeedFactor*(p.cfg.MaxSpeed-1)))
	step = clampStep(step, 1, 100)

	sx := int32(roundHalfAwayFromZero(float64(cmd.DirX) / length * step))
	sy := int32(roundHalfAwayFromZero(float64(cmd.DirY) / length * step))

	if p.cfg.Mode == config.ModeMotion {
		return p.sink.Move(sx, sy)
	}
	return p.emitScroll(sx, sy)
}

func (p *Pulser) emitScroll(sx, sy int32) error {
	if !p.cfg.DiagonalScroll {
		sx, sy = applyAxisPriority(sx, sy, p.cfg.ScrollAxisPriority)
	}

	wheel := -sy
	if p.cfg.NaturalScroll {
		wheel = sy
	}

	if sx != 0 {
		if err := p.sink.Wheel(true, sx); err != nil {
			return err
		}
	}
	if wheel != 0 {
		if err := p.sink.Wheel(false, wheel); err != nil {
			return err
		}
	}
	return nil
}

// applyAxisPriority implements §4.3 step 4's priority rule: horizontal
// zeroes sy, vertical zeroes sx, dominant zeroes whichever magnitude is
// smaller with ties going to horizontal (P4).
func applyAxisPriority(sx, sy int32, priority config.ScrollAxisPriority) (int32, int32) {
	switch priority {
	case config.PriorityHorizontal:
		return sx, 0
	case config.PriorityVertical:
		return 0, sy
	default:
		if abs32(sy) > abs32(sx) {
			return 0, sy
		}
		return sx, 0
	}
}

func abs32(v int32) int32 {
	if v < 0 {
		return -v
	}
	return v
}

func clampStep(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func roundHalfAwayFromZero(v float64) float64 {
	if v < 0 {
		return -math.Floor(-v + 0.5)
	}
	return math.Floor(v + 0.5)
}
