package config

import (
	"github.com/spf13/pflag"
)

// Flags holds the destinations cobra/pflag write into, plus the FlagSet
// itself so Resolve can ask which flags were actually set (pflag.Changed)
// and give command-line values precedence over file values per §4.6.
type Flags struct {
	set *pflag.FlagSet

	edgeThreshold float64
	thresholdLeft, thresholdRight, thresholdTop, thresholdBottom float64
	edgeHysteresis float64

	holdMs    int
	pulseMs   int
	pulseStep float64
	maxSpeed  float64

	mode string

	naturalScroll, noNaturalScroll     bool
	diagonalScroll, noDiagonalScroll   bool
	twoFingerScroll, noTwoFingerScroll bool
	scrollAxisPriority                 string

	deadzone float64

	accelExponent float64
	pressureBoost float64

	buttonZone       float64
	buttonCooldownMs int

	grab, noGrab    bool
	forcedDevnode   string
	ignoredDevnodes []string

	verbose bool

	maxRSSMB             int
	maxCPUPercent        float64
	resourceGraceChecks int

	configPath string
}

// RegisterFlags binds one long-form flag per option in §3 onto set,
// including `--no-<key>` forms for grab, natural_scroll, diagonal_scroll and
// two_finger_scroll (verbose has no `--no-` form), and a repeatable
// `--ignore`.
func RegisterFlags(set *pflag.FlagSet) *Flags {
	d := Default()
	f := &Flags{set: set}

	set.Float64Var(&f.edgeThreshold, "edge-threshold", d.EdgeThreshold, "base edge band as fraction of axis length")
	set.Float64Var(&f.thresholdLeft, "threshold-left", d.ThresholdLeft, "left edge threshold override")
	set.Float64Var(&f.thresholdRight, "threshold-right", d.ThresholdRight, "right edge threshold override")
	set.Float64Var(&f.thresholdTop, "threshold-top", d.ThresholdTop, "top edge threshold override")
	set.Float64Var(&f.thresholdBottom, "threshold-bottom", d.ThresholdBottom, "bottom edge threshold override")
	set.Float64Var(&f.edgeHysteresis, "edge-hysteresis", d.EdgeHysteresis, "subtracted from each side threshold to give its leave threshold")

	set.IntVar(&f.holdMs, "hold-ms", d.HoldMs, "debounce before arming, in milliseconds")
	set.IntVar(&f.pulseMs, "pulse-ms", d.PulseMs, "pulse period, in milliseconds")
	set.Float64Var(&f.pulseStep, "pulse-step", d.PulseStep, "base relative delta per pulse")
	set.Float64Var(&f.maxSpeed, "max-speed", d.MaxSpeed, "speed multiplier at full depth")

	set.StringVar(&f.mode, "mode", string(d.Mode), "motion or scroll")

	set.BoolVar(&f.naturalScroll, "natural-scroll", d.NaturalScroll, "invert vertical wheel sign")
	set.BoolVar(&f.noNaturalScroll, "no-natural-scroll", false, "disable natural scroll")
	set.BoolVar(&f.diagonalScroll, "diagonal-scroll", d.DiagonalScroll, "allow both scroll axes per pulse")
	set.BoolVar(&f.noDiagonalScroll, "no-diagonal-scroll", false, "disable diagonal scroll")
	set.BoolVar(&f.twoFingerScroll, "two-finger-scroll", d.TwoFingerScroll, "require two fingers for scroll mode")
	set.BoolVar(&f.noTwoFingerScroll, "no-two-finger-scroll", false, "disable two-finger scroll gating")
	set.StringVar(&f.scrollAxisPriority, "scroll-axis-priority", string(d.ScrollAxisPriority), "dominant, horizontal or vertical")

	set.Float64Var(&f.deadzone, "deadzone", d.Deadzone, "central zone that snaps to center")

	set.Float64Var(&f.accelExponent, "accel-exponent", d.AccelExponent, "speed_factor <- depth^accel_exponent")
	set.Float64Var(&f.pressureBoost, "pressure-boost", d.PressureBoost, "pressure-derived speed boost")

	set.Float64Var(&f.buttonZone, "button-zone", d.ButtonZone, "bottom fraction suppressing edge motion")
	set.IntVar(&f.buttonCooldownMs, "button-cooldown-ms", d.ButtonCooldownMs, "suppression window after click release")

	set.BoolVar(&f.grab, "grab", d.Grab, "exclusively grab the source device")
	set.BoolVar(&f.noGrab, "no-grab", false, "never grab the source device")
	set.StringVar(&f.forcedDevnode, "forced-devnode", d.ForcedDevnode, "skip candidate scoring and use this device node")
	set.StringArrayVar(&f.ignoredDevnodes, "ignore", nil, "device node to never select (repeatable)")

	set.BoolVar(&f.verbose, "verbose", d.Verbose, "enable debug-level logging")

	set.IntVar(&f.maxRSSMB, "max-rss-mb", d.MaxRSSMB, "watchdog RSS ceiling, in MB")
	set.Float64Var(&f.maxCPUPercent, "max-cpu-percent", d.MaxCPUPercent, "watchdog CPU ceiling, percent")
	set.IntVar(&f.resourceGraceChecks, "resource-grace-checks", d.ResourceGraceChecks, "consecutive breaches before a fatal trip")

	set.StringVar(&f.configPath, "config", "", "explicit config file path")

	return f
}

// ConfigPath returns the --config flag's value, or "" if unset.
func (f *Flags) ConfigPath() string { return f.configPath }

// overlay converts the flags that were actually set on the command line
// into a fileOverlay so Resolve can apply them with the same precedence
// machinery used for the config file.
func (f *Flags) overlay() *fileOverlay {
	o := newFileOverlay()
	changed := func(name string) bool {
		fl := f.set.Lookup(name)
		return fl != nil && fl.Changed
	}

	setIf := func(flagName, key string, value func() string) {
		if changed(flagName) {
			o.set(key, value())
		}
	}

	setIf("edge-threshold", "edge_threshold", func() string { return formatFloat(f.edgeThreshold) })
	setIf("threshold-left", "threshold_left", func() string { return formatFloat(f.thresholdLeft) })
	setIf("threshold-right", "threshold_right", func() string { return formatFloat(f.thresholdRight) })
	setIf("threshold-top", "threshold_top", func() string { return formatFloat(f.thresholdTop) })
	setIf("threshold-bottom", "threshold_bottom", func() string { return formatFloat(f.thresholdBottom) })
	setIf("edge-hysteresis", "edge_hysteresis", func() string { return formatFloat(f.edgeHysteresis) })
	setIf("hold-ms", "hold_ms", func() string { return formatInt(f.holdMs) })
	setIf("pulse-ms", "pulse_ms", func() string { return formatInt(f.pulseMs) })
	setIf("pulse-step", "pulse_step", func() string { return formatFloat(f.pulseStep) })
	setIf("max-speed", "max_speed", func() string { return formatFloat(f.maxSpeed) })
	setIf("mode", "mode", func() string { return f.mode })

	if changed("natural-scroll") {
		o.set("natural_scroll", formatBool(f.naturalScroll))
	}
	if changed("no-natural-scroll") && f.noNaturalScroll {
		o.set("natural_scroll", "false")
	}
	if changed("diagonal-scroll") {
		o.set("diagonal_scroll", formatBool(f.diagonalScroll))
	}
	if changed("no-diagonal-scroll") && f.noDiagonalScroll {
		o.set("diagonal_scroll", "false")
	}
	if changed("two-finger-scroll") {
		o.set("two_finger_scroll", formatBool(f.twoFingerScroll))
	}
	if changed("no-two-finger-scroll") && f.noTwoFingerScroll {
		o.set("two_finger_scroll", "false")
	}
	setIf("scroll-axis-priority", "scroll_axis_priority", func() string { return f.scrollAxisPriority })
	setIf("deadzone", "deadzone", func() string { return formatFloat(f.deadzone) })
	setIf("accel-exponent", "accel_exponent", func() string { return formatFloat(f.accelExponent) })
	setIf("pressure-boost", "pressure_boost", func() string { return formatFloat(f.pressureBoost) })
	setIf("button-zone", "button_zone", func() string { return formatFloat(f.buttonZone) })
	setIf("button-cooldown-ms", "button_cooldown_ms", func() string { return formatInt(f.buttonCooldownMs) })

	if changed("grab") {
		o.set("grab", formatBool(f.grab))
	}
	if changed("no-grab") && f.noGrab {
		o.set("grab", "false")
	}
	setIf("forced-devnode", "forced_devnode", func() string { return f.forcedDevnode })
	setIf("verbose", "verbose", func() string { return formatBool(f.verbose) })
	setIf("max-rss-mb", "max_rss_mb", func() string { return formatInt(f.maxRSSMB) })
	setIf("max-cpu-percent", "max_cpu_percent", func() string { return formatFloat(f.maxCPUPercent) })
	setIf("resource-grace-checks", "resource_grace_checks", func() string { return formatInt(f.resourceGraceChecks) })

	if changed("ignore") && len(f.ignoredDevnodes) > 0 {
		joined := ""
		for i, d := range f.ignoredDevnodes {
			if i > 0 {
				joined += ","
			}
			joined += d
		}
		o.set("ignored_devnodes", joined)
	}

	return o
}
