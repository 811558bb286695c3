// Package config defines the immutable configuration record for the
// edge-motion daemon, along with its defaults, validation rules, file-format
// parser/serializer and cobra flag wiring.
package config

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// Mode selects whether the pulser drives cursor motion or a scroll wheel.
type Mode string

const (
	ModeMotion Mode = "motion"
	ModeScroll Mode = "scroll"
)

// ScrollAxisPriority selects which scroll axis wins when diagonal_scroll is
// disabled and both axes would otherwise fire.
type ScrollAxisPriority string

const (
	PriorityDominant   ScrollAxisPriority = "dominant"
	PriorityHorizontal ScrollAxisPriority = "horizontal"
	PriorityVertical   ScrollAxisPriority = "vertical"
)

// Config is the validated, immutable-after-construction configuration
// record. Zero values are never used directly; Default returns the one true
// set of starting values, which Resolve then overlays with file and flag data.
type Config struct {
	EdgeThreshold float64

	ThresholdLeft   float64
	ThresholdRight  float64
	ThresholdTop    float64
	ThresholdBottom float64

	EdgeHysteresis float64

	HoldMs    int
	PulseMs   int
	PulseStep float64
	MaxSpeed  float64

	Mode Mode

	NaturalScroll       bool
	DiagonalScroll      bool
	TwoFingerScroll     bool
	ScrollAxisPriority  ScrollAxisPriority

	Deadzone float64

	AccelExponent  float64
	PressureBoost  float64

	ButtonZone        float64
	ButtonCooldownMs  int

	Grab            bool
	ForcedDevnode   string
	IgnoredDevnodes []string

	Verbose bool

	MaxRSSMB             int
	MaxCPUPercent        float64
	ResourceGraceChecks int
}

// Default returns the built-in default configuration, per §3 of the spec.
func Default() Config {
	return Config{
		EdgeThreshold:       0.06,
		ThresholdLeft:       0.06,
		ThresholdRight:      0.06,
		ThresholdTop:        0.06,
		ThresholdBottom:     0.06,
		EdgeHysteresis:      0.015,
		HoldMs:              80,
		PulseMs:             10,
		PulseStep:           1.5,
		MaxSpeed:            3.0,
		Mode:                ModeMotion,
		NaturalScroll:       false,
		DiagonalScroll:      false,
		TwoFingerScroll:     false,
		ScrollAxisPriority:  PriorityDominant,
		Deadzone:            0,
		AccelExponent:       1.0,
		PressureBoost:       0,
		ButtonZone:          0.14,
		ButtonCooldownMs:    180,
		Grab:                false,
		ForcedDevnode:       "",
		IgnoredDevnodes:     nil,
		Verbose:             false,
		MaxRSSMB:            256,
		MaxCPUPercent:       90.0,
		ResourceGraceChecks: 5,
	}
}

// Thresholds returns the four per-side thresholds in left,right,top,bottom
// order, useful for the validation loop and the edge-decision engine.
func (c Config) Thresholds() [4]float64 {
	return [4]float64{c.ThresholdLeft, c.ThresholdRight, c.ThresholdTop, c.ThresholdBottom}
}

// cascadeEdgeThreshold fills in any per-side threshold that was never
// explicitly set by a file or flag, defaulting it to the final merged
// edge_threshold value, per the Data Model's "Default = edge_threshold"
// rule. explicitSides holds the threshold_* keys that were present in any
// overlay applied during Resolve.
func cascadeEdgeThreshold(c *Config, explicitSides map[string]bool) {
	if !explicitSides["threshold_left"] {
		c.ThresholdLeft = c.EdgeThreshold
	}
	if !explicitSides["threshold_right"] {
		c.ThresholdRight = c.EdgeThreshold
	}
	if !explicitSides["threshold_top"] {
		c.ThresholdTop = c.EdgeThreshold
	}
	if !explicitSides["threshold_bottom"] {
		c.ThresholdBottom = c.EdgeThreshold
	}
}

// Validate checks every range constraint from §3, including the I6
// hysteresis rule. It returns the first violation found, wrapped as a
// ConfigInvalid error.
func (c Config) Validate() error {
	inRange := func(name string, v, lo, hi float64) error {
		if v < lo || v > hi {
			return &InvalidError{fmt.Sprintf("%s: %g not in [%g, %g]", name, v, lo, hi)}
		}
		return nil
	}

	if err := inRange("edge_threshold", c.EdgeThreshold, 0.01, 0.5); err != nil {
		return err
	}
	sides := map[string]float64{
		"threshold_left":   c.ThresholdLeft,
		"threshold_right":  c.ThresholdRight,
		"threshold_top":    c.ThresholdTop,
		"threshold_bottom": c.ThresholdBottom,
	}
	// Deterministic iteration order for reproducible error messages.
	names := make([]string, 0, len(sides))
	for n := range sides {
		names = append(names, n)
	}
	sort.Strings(names)
	minThreshold := math.Inf(1)
	for _, n := range names {
		v := sides[n]
		if err := inRange(n, v, 0.01, 0.5); err != nil {
			return err
		}
		if v < minThreshold {
			minThreshold = v
		}
	}

	if c.EdgeHysteresis < 0 || c.EdgeHysteresis >= minThreshold {
		return &InvalidError{fmt.Sprintf("edge_hysteresis: %g must be in [0, %g)", c.EdgeHysteresis, minThreshold)}
	}
	if c.HoldMs < 0 {
		return &InvalidError{"hold_ms: must be >= 0"}
	}
	if c.PulseMs <= 0 {
		return &InvalidError{"pulse_ms: must be > 0"}
	}
	if c.PulseStep <= 0 {
		return &InvalidError{"pulse_step: must be > 0"}
	}
	if c.MaxSpeed < 1 {
		return &InvalidError{"max_speed: must be >= 1"}
	}
	switch c.Mode {
	case ModeMotion, ModeScroll:
	default:
		return &InvalidError{fmt.Sprintf("mode: unknown value %q", c.Mode)}
	}
	switch c.ScrollAxisPriority {
	case PriorityDominant, PriorityHorizontal, PriorityVertical:
	default:
		return &InvalidError{fmt.Sprintf("scroll_axis_priority: unknown value %q", c.ScrollAxisPriority)}
	}
	if c.Deadzone < 0 || c.Deadzone >= 0.5 {
		return &InvalidError{fmt.Sprintf("deadzone: %g not in [0, 0.5)", c.Deadzone)}
	}
	for _, n := range names {
		if c.Deadzone+sides[n] > 0.5 {
			return &InvalidError{fmt.Sprintf("deadzone + %s exceeds 0.5", n)}
		}
	}
	if c.AccelExponent < 0 {
		return &InvalidError{"accel_exponent: must be >= 0"}
	}
	if c.PressureBoost < 0 || c.PressureBoost > 2 {
		return &InvalidError{fmt.Sprintf("pressure_boost: %g not in [0, 2]", c.PressureBoost)}
	}
	if c.ButtonZone < 0 || c.ButtonZone > 0.4 {
		return &InvalidError{fmt.Sprintf("button_zone: %g not in [0, 0.4]", c.ButtonZone)}
	}
	if c.ButtonCooldownMs < 0 {
		return &InvalidError{"button_cooldown_ms: must be >= 0"}
	}
	if c.MaxRSSMB <= 0 {
		return &InvalidError{"max_rss_mb: must be > 0"}
	}
	if c.MaxCPUPercent <= 0 {
		return &InvalidError{"max_cpu_percent: must be > 0"}
	}
	if c.ResourceGraceChecks < 1 {
		return &InvalidError{"resource_grace_checks: must be >= 1"}
	}
	return nil
}

// InvalidError reports a ConfigInvalid violation: a bad flag/file value or a
// range violation. Policy per §7: exit code 2.
type InvalidError struct {
	Msg string
}

func (e *InvalidError) Error() string { return "config: " + e.Msg }

// DefaultConfigPath returns $HOME/.config/edge-motion.conf, or "" if HOME is
// unset.
func DefaultConfigPath() string {
	home := os.Getenv("HOME")
	if home == "" {
		return ""
	}
	return filepath.Join(home, ".config", "edge-motion.conf")
}
