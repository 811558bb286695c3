// Package controller implements the device-lifecycle Controller of §4.5:
// the main loop that polls the TouchSource, drives the edge-decision
// engine, publishes to the Pulser, and handles disconnect/reconnect and
// watchdog ticks.
package controller

import (
	"errors"
	"sync/atomic"
	"syscall"
	"time"
	"unsafe"

	"touchpad/internal/clock"
	"touchpad/internal/config"
	"touchpad/internal/edge"
	"touchpad/internal/logger"
	"touchpad/internal/pulse"
	"touchpad/internal/touch"
	"touchpad/internal/watchdog"
)

const (
	reopenBackoffAfterLoss = 200 * time.Millisecond
	reopenRetryCadence     = 250 * time.Millisecond
)

// Opener reopens a TouchSource, used by the reconnect loop; normally
// touch.Open bound to the configured devnode (or the rescored candidate if
// forced_devnode is empty).
type Opener func() (touch.Source, string, error)

// Controller owns the touch device binding, touch state, edge-decision
// engine and SharedCommand, and joins the Pulser at shutdown.
type Controller struct {
	cfg    config.Config
	clk    clock.Clock
	shared *pulse.Shared
	pulser *pulse.Pulser
	wd     *watchdog.Watchdog
	open   Opener

	source  touch.Source
	decoder *touch.Decoder
	state   *touch.State
	engine  *edge.Engine

	nextReopenAtMs int64
	running        atomic.Bool
}

// New constructs a Controller. source is the already-open initial
// binding (possibly nil if startup begins disconnected, though CLI treats
// that as NoDevice and exits before calling Run).
func New(cfg config.Config, clk clock.Clock, shared *pulse.Shared, pulser *pulse.Pulser, wd *watchdog.Watchdog, open Opener, source touch.Source) *Controller {
	c := &Controller{
		cfg:    cfg,
		clk:    clk,
		shared: shared,
		pulser: pulser,
		wd:     wd,
		open:   open,
		source: source,
		state:  touch.NewState(1),
		engine: edge.NewEngine(cfg),
	}
	c.running.Store(true)
	if source != nil {
		c.bind(source)
	}
	return c
}

func (c *Controller) bind(source touch.Source) {
	c.source = source
	c.state = touch.NewState(source.SlotCount())
	c.decoder = touch.NewDecoder(c.state, c.clk, int64(c.cfg.ButtonCooldownMs))
	c.engine.Reset()
}

// Run executes the main loop until Stop is called or the watchdog trips a
// fatal stop. It returns nothing: failures after startup are only logged
// (§7: the Controller never surfaces post-startup errors).
func (c *Controller) Run() {
	for c.running.Load() {
		if c.wd != nil && c.wd.Tick() == watchdog.ActionStop {
			logger.Error("watchdog tripped, stopping")
			break
		}

		if c.source == nil {
			c.pollDisconnected()
			continue
		}

		c.tick()
	}

	c.shared.Stop()
	<-c.pulser.Done()
	if c.source != nil {
		_ = c.source.Close()
	}
}

// Stop requests a cooperative shutdown; the loop exits at its next
// suspension point, per §5.
func (c *Controller) Stop() {
	c.running.Store(false)
}

func (c *Controller) tick() {
	nowMs := c.clk.NowMs()

	pressure, hasPressure := c.source.PressureRange()
	decision := c.engine.Evaluate(c.state, c.source.AxisX(), c.source.AxisY(), pressure, hasPressure, c.cfg.Mode, c.cfg.TwoFingerScroll, nowMs)
	c.shared.Publish(pulse.Command{
		Armed:       decision.Armed,
		DirX:        decision.DirX,
		DirY:        decision.DirY,
		SpeedFactor: decision.SpeedFactor,
	})

	timeout := c.pollTimeout(decision, nowMs)
	ready, err := pollReadable(c.source.Fd(), timeout)
	if err != nil {
		logger.Warn("poll error, treating as disconnect", "err", err)
		c.onDisconnect()
		return
	}
	if !ready {
		return
	}

	released, err := c.source.ReadFrame(c.decoder)
	if err != nil {
		logger.Warn("touch source lost", "err", err)
		c.onDisconnect()
		return
	}
	if released {
		c.engine.Reset()
	}
}

func (c *Controller) pollTimeout(d edge.Decision, nowMs int64) time.Duration {
	if !d.Armed && (d.DirX != 0 || d.DirY != 0) {
		elapsed := c.engine.ElapsedInEdgeMs(nowMs)
		remaining := int64(c.cfg.HoldMs) - elapsed
		if remaining < 0 {
			remaining = 0
		}
		return time.Duration(remaining) * time.Millisecond
	}
	return -1
}

func (c *Controller) onDisconnect() {
	c.shared.Publish(pulse.Command{})
	if c.source != nil {
		_ = c.source.Close()
	}
	c.source = nil
	c.decoder = nil
	c.nextReopenAtMs = c.clk.NowMs() + reopenBackoffAfterLoss.Milliseconds()
}

func (c *Controller) pollDisconnected() {
	now := c.clk.NowMs()
	if now < c.nextReopenAtMs {
		c.clk.Sleep(time.Duration(c.nextReopenAtMs-now) * time.Millisecond)
		return
	}

	source, _, err := c.open()
	if err != nil {
		logger.Debug("reopen attempt failed", "err", err)
	} else {
		c.bind(source)
		logger.Info("touch source reconnected")
	}
	c.nextReopenAtMs = c.clk.NowMs() + reopenRetryCadence.Milliseconds()
}

// pollFd mirrors struct pollfd from poll.h; raw syscall access keeps this on
// the same technique source.go already uses for EVIOCGABS rather than
// pulling in a syscall-wrapper dependency for one call.
type pollFd struct {
	Fd      int32
	Events  int16
	Revents int16
}

const (
	pollIn   = 0x0001
	pollErr  = 0x0008
	pollHup  = 0x0010
	pollNval = 0x0020
)

// pollReadable polls fd for POLLIN with the given timeout (-1 blocks
// indefinitely). It reports an error for POLLERR/POLLHUP/POLLNVAL per §4.1.
func pollReadable(fd int, timeout time.Duration) (bool, error) {
	ms := -1
	if timeout >= 0 {
		ms = int(timeout.Milliseconds())
	}
	pfd := pollFd{Fd: int32(fd), Events: pollIn}
	n, _, errno := syscall.Syscall(syscall.SYS_POLL, uintptr(unsafe.Pointer(&pfd)), 1, uintptr(ms))
	if errno != 0 {
		if errno == syscall.EINTR {
			return false, nil
		}
		return false, errors.New("controller: poll failed: " + errno.Error())
	}
	if n == 0 {
		return false, nil
	}
	if pfd.Revents&(pollErr|pollHup|pollNval) != 0 {
		return false, errors.New("controller: device reported poll error")
	}
	return pfd.Revents&pollIn != 0, nil
}
