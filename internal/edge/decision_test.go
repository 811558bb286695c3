package edge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"touchpad/internal/config"
	"touchpad/internal/touch"
)

func scenarioConfig() config.Config {
	c := config.Default()
	c.ThresholdLeft, c.ThresholdRight, c.ThresholdTop, c.ThresholdBottom = 0.1, 0.1, 0.1, 0.1
	c.EdgeHysteresis = 0.02
	c.HoldMs = 80
	c.PulseMs = 10
	c.PulseStep = 2
	c.MaxSpeed = 2
	return c
}

func stateAt(x, y int32) *touch.State {
	s := touch.NewState(1)
	s.HasLastX, s.HasLastY = true, true
	s.LastX, s.LastY = x, y
	return s
}

var axis = touch.AxisRange{Min: 0, Max: 1000}

// Scenario 1: basic right edge, hold-to-arm then steady pulsing depth.
func TestScenarioBasicRightEdge(t *testing.T) {
	e := NewEngine(scenarioConfig())
	s := stateAt(950, 500)

	d := e.Evaluate(s, axis, axis, touch.AxisRange{}, false, config.ModeMotion, false, 0)
	assert.Equal(t, 1, d.DirX)
	assert.False(t, d.Armed) // t=0, not yet held long enough

	d = e.Evaluate(s, axis, axis, touch.AxisRange{}, false, config.ModeMotion, false, 79)
	assert.False(t, d.Armed)

	d = e.Evaluate(s, axis, axis, touch.AxisRange{}, false, config.ModeMotion, false, 80)
	assert.True(t, d.Armed)
	assert.InDelta(t, 0.5, d.SpeedFactor, 1e-9) // depth = (0.95-0.9)/0.1 = 0.5
}

// Scenario 2: hysteresis release vs sustain.
func TestScenarioHysteresisReleases(t *testing.T) {
	e := NewEngine(scenarioConfig())
	s := stateAt(950, 500)
	e.Evaluate(s, axis, axis, touch.AxisRange{}, false, config.ModeMotion, false, 85) // latch on

	s.LastX = 900
	d := e.Evaluate(s, axis, axis, touch.AxisRange{}, false, config.ModeMotion, false, 86)
	assert.Equal(t, 0, d.DirX)
	assert.False(t, d.Armed)
}

func TestScenarioHysteresisSustains(t *testing.T) {
	e := NewEngine(scenarioConfig())
	s := stateAt(950, 500)
	e.Evaluate(s, axis, axis, touch.AxisRange{}, false, config.ModeMotion, false, 0) // finger enters at t=0
	e.Evaluate(s, axis, axis, touch.AxisRange{}, false, config.ModeMotion, false, 85)

	s.LastX = 925
	d := e.Evaluate(s, axis, axis, touch.AxisRange{}, false, config.ModeMotion, false, 86)
	assert.Equal(t, 1, d.DirX)
	assert.True(t, d.Armed)
	assert.InDelta(t, 0.25, d.SpeedFactor, 1e-9)
}

// Scenario 3, engine half: a bottom-right corner position yields both
// directions. The dominant-axis tie-break is tested in the pulse package.
// (950,950) lies inside the default button zone (ny >= 0.86), so the zone is
// disabled here.
func TestScenarioScrollCornerSetsBothDirections(t *testing.T) {
	c := scenarioConfig()
	c.ButtonZone = 0
	e := NewEngine(c)
	s := stateAt(950, 950)

	d := e.Evaluate(s, axis, axis, touch.AxisRange{}, false, config.ModeScroll, false, 100)
	assert.Equal(t, 1, d.DirX)
	assert.Equal(t, 1, d.DirY)
}

// P6: no arming within hold_ms of first entering an edge band.
func TestHoldToArmDelaysArming(t *testing.T) {
	e := NewEngine(scenarioConfig())
	s := stateAt(950, 500)
	for ms := int64(0); ms < 80; ms += 10 {
		d := e.Evaluate(s, axis, axis, touch.AxisRange{}, false, config.ModeMotion, false, ms)
		assert.False(t, d.Armed, "armed too early at t=%d", ms)
	}
	d := e.Evaluate(s, axis, axis, touch.AxisRange{}, false, config.ModeMotion, false, 80)
	assert.True(t, d.Armed)
}

// P7 (gating half): clicking suppresses edge motion outright.
func TestClickDownSuppressesDecision(t *testing.T) {
	e := NewEngine(scenarioConfig())
	s := stateAt(950, 500)
	s.ClickDown = true

	d := e.Evaluate(s, axis, axis, touch.AxisRange{}, false, config.ModeMotion, false, 500)
	assert.Equal(t, Decision{}, d)
}

func TestEdgeSuppressUntilGatesDecision(t *testing.T) {
	e := NewEngine(scenarioConfig())
	s := stateAt(950, 500)
	s.EdgeSuppressUntilMs = 1000

	d := e.Evaluate(s, axis, axis, touch.AxisRange{}, false, config.ModeMotion, false, 500)
	assert.Equal(t, Decision{}, d)

	d = e.Evaluate(s, axis, axis, touch.AxisRange{}, false, config.ModeMotion, false, 1000)
	assert.NotEqual(t, Decision{}, d)
}

func TestTwoFingerScrollGating(t *testing.T) {
	e := NewEngine(scenarioConfig())
	s := stateAt(950, 500)
	s.ActiveFingers = 1

	d := e.Evaluate(s, axis, axis, touch.AxisRange{}, false, config.ModeScroll, true, 500)
	assert.Equal(t, Decision{}, d)

	s.ActiveFingers = 2
	d = e.Evaluate(s, axis, axis, touch.AxisRange{}, false, config.ModeScroll, true, 500)
	require.Equal(t, 1, d.DirX)
}

func TestButtonZoneSuppressesBottomEdge(t *testing.T) {
	e := NewEngine(scenarioConfig())
	s := stateAt(500, 900) // ny=0.9, inside default button_zone=0.14 -> >= 1-0.14=0.86

	d := e.Evaluate(s, axis, axis, touch.AxisRange{}, false, config.ModeMotion, false, 500)
	assert.Equal(t, 0, d.DirY)
	assert.Equal(t, 0, d.DirX)
}

func TestAxisInvalidForcesZero(t *testing.T) {
	e := NewEngine(scenarioConfig())
	s := stateAt(950, 500)
	invalid := touch.AxisRange{Min: 10, Max: 10}

	d := e.Evaluate(s, invalid, axis, touch.AxisRange{}, false, config.ModeMotion, false, 500)
	assert.Equal(t, Decision{}, d)
}

func TestMissingLastXYForcesZero(t *testing.T) {
	e := NewEngine(scenarioConfig())
	s := touch.NewState(1)

	d := e.Evaluate(s, axis, axis, touch.AxisRange{}, false, config.ModeMotion, false, 500)
	assert.Equal(t, Decision{}, d)
}

func TestDeadzoneSnapsCenter(t *testing.T) {
	c := scenarioConfig()
	c.Deadzone = 0.05
	e := NewEngine(c)
	s := stateAt(520, 500) // nx=0.52, within 0.05 of center

	d := e.Evaluate(s, axis, axis, touch.AxisRange{}, false, config.ModeMotion, false, 500)
	assert.Equal(t, 0, d.DirX)
}

func TestPressureBoostIncreasesSpeed(t *testing.T) {
	c := scenarioConfig()
	c.PressureBoost = 1.0
	e := NewEngine(c)
	s := stateAt(950, 500)
	s.HasLastPressure = true
	s.LastPressure = 100

	pressureRange := touch.AxisRange{Min: 0, Max: 100}
	d := e.Evaluate(s, axis, axis, pressureRange, true, config.ModeMotion, false, 500)
	// depth 0.5, p=1.0, boost=1.0 -> speed = min(1, 0.5*(1+1*1)) = 1.0
	assert.InDelta(t, 1.0, d.SpeedFactor, 1e-9)
}
