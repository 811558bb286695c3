package config

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// fileOverlay is the sparse set of keys present in a config file or a set
// of flags, kept in first-seen order; a key absent from values means "not
// specified" so that layering (defaults < file < flags) only overwrites what
// was actually set.
type fileOverlay struct {
	values map[string]string
	order  []string
}

func newFileOverlay() *fileOverlay {
	return &fileOverlay{values: make(map[string]string)}
}

func (o *fileOverlay) set(key, value string) {
	if _, ok := o.values[key]; !ok {
		o.order = append(o.order, key)
	}
	o.values[key] = value
}

// parseFile reads the `key = value` grammar described in §4.6: '#' starts a
// comment, blank lines are skipped, keys and values are whitespace-trimmed.
// Any malformed line aborts with an error naming "path:line".
func parseFile(path string) (*fileOverlay, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	overlay := newFileOverlay()
	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		eq := strings.IndexByte(line, '=')
		if eq < 0 {
			return nil, &InvalidError{fmt.Sprintf("%s:%d: expected 'key = value'", path, lineNo)}
		}
		key := strings.TrimSpace(line[:eq])
		value := strings.TrimSpace(line[eq+1:])
		if key == "" {
			return nil, &InvalidError{fmt.Sprintf("%s:%d: empty key", path, lineNo)}
		}
		overlay.set(key, value)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}
	return overlay, nil
}

// optionSpec describes one of the options in §3 so file parsing, flag
// binding, serialization and round-tripping all share one source of truth.
type optionSpec struct {
	key string
	get func(*Config) string
	set func(*Config, string) error
}

func floatSpec(key string, get func(*Config) *float64) optionSpec {
	return optionSpec{
		key: key,
		get: func(c *Config) string { return strconv.FormatFloat(*get(c), 'g', -1, 64) },
		set: func(c *Config, v string) error {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return &InvalidError{fmt.Sprintf("%s: %q is not a number", key, v)}
			}
			*get(c) = f
			return nil
		},
	}
}

func intSpec(key string, get func(*Config) *int) optionSpec {
	return optionSpec{
		key: key,
		get: func(c *Config) string { return strconv.Itoa(*get(c)) },
		set: func(c *Config, v string) error {
			n, err := strconv.Atoi(v)
			if err != nil {
				return &InvalidError{fmt.Sprintf("%s: %q is not an integer", key, v)}
			}
			*get(c) = n
			return nil
		},
	}
}

func boolSpec(key string, get func(*Config) *bool) optionSpec {
	return optionSpec{
		key: key,
		get: func(c *Config) string { return strconv.FormatBool(*get(c)) },
		set: func(c *Config, v string) error {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return &InvalidError{fmt.Sprintf("%s: %q is not a boolean", key, v)}
			}
			*get(c) = b
			return nil
		},
	}
}

func stringSpec(key string, get func(*Config) *string) optionSpec {
	return optionSpec{
		key: key,
		get: func(c *Config) string { return *get(c) },
		set: func(c *Config, v string) error {
			*get(c) = v
			return nil
		},
	}
}

// specs is the canonical list of simple (non-list) options, shared by the
// file parser and the Save serializer.
func specs() []optionSpec {
	return []optionSpec{
		floatSpec("edge_threshold", func(c *Config) *float64 { return &c.EdgeThreshold }),
		floatSpec("threshold_left", func(c *Config) *float64 { return &c.ThresholdLeft }),
		floatSpec("threshold_right", func(c *Config) *float64 { return &c.ThresholdRight }),
		floatSpec("threshold_top", func(c *Config) *float64 { return &c.ThresholdTop }),
		floatSpec("threshold_bottom", func(c *Config) *float64 { return &c.ThresholdBottom }),
		floatSpec("edge_hysteresis", func(c *Config) *float64 { return &c.EdgeHysteresis }),
		intSpec("hold_ms", func(c *Config) *int { return &c.HoldMs }),
		intSpec("pulse_ms", func(c *Config) *int { return &c.PulseMs }),
		floatSpec("pulse_step", func(c *Config) *float64 { return &c.PulseStep }),
		floatSpec("max_speed", func(c *Config) *float64 { return &c.MaxSpeed }),
		optionSpec{
			key: "mode",
			get: func(c *Config) string { return string(c.Mode) },
			set: func(c *Config, v string) error {
				switch Mode(v) {
				case ModeMotion, ModeScroll:
					c.Mode = Mode(v)
					return nil
				default:
					return &InvalidError{fmt.Sprintf("mode: unknown value %q", v)}
				}
			},
		},
		boolSpec("natural_scroll", func(c *Config) *bool { return &c.NaturalScroll }),
		boolSpec("diagonal_scroll", func(c *Config) *bool { return &c.DiagonalScroll }),
		boolSpec("two_finger_scroll", func(c *Config) *bool { return &c.TwoFingerScroll }),
		optionSpec{
			key: "scroll_axis_priority",
			get: func(c *Config) string { return string(c.ScrollAxisPriority) },
			set: func(c *Config, v string) error {
				switch ScrollAxisPriority(v) {
				case PriorityDominant, PriorityHorizontal, PriorityVertical:
					c.ScrollAxisPriority = ScrollAxisPriority(v)
					return nil
				default:
					return &InvalidError{fmt.Sprintf("scroll_axis_priority: unknown value %q", v)}
				}
			},
		},
		floatSpec("deadzone", func(c *Config) *float64 { return &c.Deadzone }),
		floatSpec("accel_exponent", func(c *Config) *float64 { return &c.AccelExponent }),
		floatSpec("pressure_boost", func(c *Config) *float64 { return &c.PressureBoost }),
		floatSpec("button_zone", func(c *Config) *float64 { return &c.ButtonZone }),
		intSpec("button_cooldown_ms", func(c *Config) *int { return &c.ButtonCooldownMs }),
		boolSpec("grab", func(c *Config) *bool { return &c.Grab }),
		stringSpec("forced_devnode", func(c *Config) *string { return &c.ForcedDevnode }),
		boolSpec("verbose", func(c *Config) *bool { return &c.Verbose }),
		intSpec("max_rss_mb", func(c *Config) *int { return &c.MaxRSSMB }),
		floatSpec("max_cpu_percent", func(c *Config) *float64 { return &c.MaxCPUPercent }),
		intSpec("resource_grace_checks", func(c *Config) *int { return &c.ResourceGraceChecks }),
	}
}

// applyOverlay applies a parsed key=value overlay onto c, handling the
// repeatable ignored_devnodes list (comma-separated within the file) as a
// special case alongside the scalar specs.
func applyOverlay(c *Config, overlay *fileOverlay) error {
	bySpec := make(map[string]optionSpec)
	for _, s := range specs() {
		bySpec[s.key] = s
	}
	for _, key := range overlay.order {
		value := overlay.values[key]
		if key == "ignored_devnodes" {
			c.IgnoredDevnodes = splitList(value)
			continue
		}
		spec, ok := bySpec[key]
		if !ok {
			return &InvalidError{fmt.Sprintf("unknown option %q", key)}
		}
		if err := spec.set(c, value); err != nil {
			return err
		}
	}
	return nil
}

func splitList(value string) []string {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Save serializes c to the `key = value` text format described in §4.6. It
// is the inverse of parseFile plus applyOverlay for the round-trip property
// in §8: parsing the output of Save reproduces the same normalized record.
func Save(c Config) string {
	var b strings.Builder
	for _, s := range specs() {
		fmt.Fprintf(&b, "%s = %s\n", s.key, s.get(&c))
	}
	if len(c.IgnoredDevnodes) > 0 {
		fmt.Fprintf(&b, "ignored_devnodes = %s\n", strings.Join(c.IgnoredDevnodes, ","))
	}
	return b.String()
}
