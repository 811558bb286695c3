// Package edge implements the edge-decision engine of §4.2: normalized
// coordinates, per-side hysteresis, center deadzone, button-zone
// suppression, click/cooldown gating, hold-to-arm timing and the
// depth-derived speed factor.
package edge

import (
	"math"

	"touchpad/internal/config"
	"touchpad/internal/touch"
)

// Decision is the EdgeDecision record of §3, minus the hysteresis latch
// bits, which the Engine keeps as private state across ticks.
type Decision struct {
	DirX, DirY  int
	SpeedFactor float64
	Armed       bool
}

// Engine evaluates one Decision per Controller tick and carries the
// per-axis hysteresis latch and hold-to-arm timer between ticks.
type Engine struct {
	cfg config.Config

	lastOnX, lastOnY bool

	hasEnteredAt bool
	enteredAtMs  int64
	armed        bool
}

// NewEngine creates an Engine bound to cfg's thresholds, hysteresis,
// deadzone, button zone, acceleration and hold timing.
func NewEngine(cfg config.Config) *Engine {
	return &Engine{cfg: cfg}
}

// Reset clears the hysteresis latch and hold timer, used on reconnect per
// §4.5 step 7 ("reset EdgeDecision") and on the all-release signal.
func (e *Engine) Reset() {
	e.lastOnX = false
	e.lastOnY = false
	e.hasEnteredAt = false
	e.enteredAtMs = 0
	e.armed = false
}

// Evaluate computes the Decision for the current tick. axisX/axisY are the
// bound device's reported ranges (I5); pressure/hasPressure describe the
// optional pressure axis range. nowMs is the controller's clock reading.
func (e *Engine) Evaluate(state *touch.State, axisX, axisY touch.AxisRange, pressure touch.AxisRange, hasPressure bool, mode config.Mode, twoFingerScroll bool, nowMs int64) Decision {
	if !state.HasLastX || !state.HasLastY {
		return e.zero()
	}
	if mode == config.ModeScroll && twoFingerScroll && state.ActiveFingers < 2 {
		return e.zero()
	}
	if state.ClickDown || nowMs < state.EdgeSuppressUntilMs {
		return e.zero()
	}
	if !axisX.Valid() || !axisY.Valid() {
		return e.zero()
	}

	nx := normalize(state.LastX, axisX)
	ny := normalize(state.LastY, axisY)

	if ny >= 1-e.cfg.ButtonZone {
		nx, ny = 0.5, 0.5
	}

	nx = applyDeadzone(nx, e.cfg.Deadzone)
	ny = applyDeadzone(ny, e.cfg.Deadzone)

	dirX := e.axisDirection(&e.lastOnX, nx, e.cfg.ThresholdLeft, e.cfg.ThresholdRight)
	dirY := e.axisDirection(&e.lastOnY, ny, e.cfg.ThresholdTop, e.cfg.ThresholdBottom)

	depthX := depth(nx, e.cfg.ThresholdLeft, e.cfg.ThresholdRight)
	depthY := depth(ny, e.cfg.ThresholdTop, e.cfg.ThresholdBottom)
	speed := math.Max(depthX, depthY)

	if e.cfg.AccelExponent != 1 && speed > 0 {
		speed = math.Pow(speed, e.cfg.AccelExponent)
	}
	if e.cfg.PressureBoost > 0 && hasPressure && state.HasLastPressure {
		if p, ok := normalizePressure(state.LastPressure, pressure); ok {
			speed = math.Min(1, speed*(1+p*e.cfg.PressureBoost))
		}
	}

	e.updateHold(dirX, dirY, nowMs)

	return Decision{DirX: dirX, DirY: dirY, SpeedFactor: speed, Armed: e.armed}
}

// ElapsedInEdgeMs reports how long the current nonzero direction has been
// held, for the Controller's poll-timeout calculation in §4.5 step 4. It is
// zero if no direction is currently active.
func (e *Engine) ElapsedInEdgeMs(nowMs int64) int64 {
	if !e.hasEnteredAt {
		return 0
	}
	return nowMs - e.enteredAtMs
}

func (e *Engine) zero() Decision {
	e.lastOnX = false
	e.lastOnY = false
	e.hasEnteredAt = false
	e.armed = false
	return Decision{}
}

// axisDirection implements the per-axis hysteresis rule of §4.2: while
// latched (lastOn true), only the leave band (threshold minus hysteresis,
// so narrower than the enter band) can sustain or release it; while
// unlatched, only the enter band (the full threshold) can trigger it. See
// DESIGN.md for why a retry-into-enter-band-on-release reading was rejected
// in favor of this one, which matches the worked hysteresis scenario.
func (e *Engine) axisDirection(lastOn *bool, n, lowThreshold, highThreshold float64) int {
	var dir int
	if *lastOn {
		leaveLow := lowThreshold - e.cfg.EdgeHysteresis
		leaveHigh := highThreshold - e.cfg.EdgeHysteresis
		switch {
		case n >= 1-leaveHigh:
			dir = 1
		case n <= leaveLow:
			dir = -1
		}
	} else {
		switch {
		case n >= 1-highThreshold:
			dir = 1
		case n <= lowThreshold:
			dir = -1
		}
	}
	*lastOn = dir != 0 // I3
	return dir
}

// depth computes the fractional penetration into whichever edge band the
// normalized coordinate falls in, clamped to [0,1], per §4.2.
func depth(n, lowThreshold, highThreshold float64) float64 {
	d := 0.0
	if highThreshold > 0 {
		if v := (n - (1 - highThreshold)) / highThreshold; v > d {
			d = v
		}
	}
	if lowThreshold > 0 {
		if v := (lowThreshold - n) / lowThreshold; v > d {
			d = v
		}
	}
	return clamp01(d)
}

func (e *Engine) updateHold(dirX, dirY int, nowMs int64) {
	if dirX == 0 && dirY == 0 {
		e.hasEnteredAt = false
		e.armed = false
		return
	}
	if !e.hasEnteredAt {
		e.hasEnteredAt = true
		e.enteredAtMs = nowMs
	}
	e.armed = nowMs-e.enteredAtMs >= int64(e.cfg.HoldMs)
}

func normalize(v int32, r touch.AxisRange) float64 {
	return float64(v-r.Min) / float64(r.Max-r.Min)
}

func normalizePressure(v int32, r touch.AxisRange) (float64, bool) {
	if r.Max <= r.Min {
		return 0, false
	}
	if v < r.Min {
		v = r.Min
	}
	if v > r.Max {
		v = r.Max
	}
	return float64(v-r.Min) / float64(r.Max-r.Min), true
}

func applyDeadzone(n, deadzone float64) float64 {
	if deadzone > 0 && math.Abs(n-0.5) < deadzone {
		return 0.5
	}
	return n
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
