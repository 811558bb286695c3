package config

import "os"

// Resolve builds the final Config from, in increasing precedence: built-in
// defaults, $HOME/.config/edge-motion.conf if present, an explicit --config
// file if given, then the flags that were actually set on the command line.
// Any per-side threshold never explicitly touched by a file or flag is then
// cascaded from the final edge_threshold, and the merged record is
// validated before being returned.
func Resolve(flags *Flags) (Config, error) {
	c := Default()
	explicitSides := make(map[string]bool)

	apply := func(overlay *fileOverlay) error {
		for _, key := range overlay.order {
			switch key {
			case "threshold_left", "threshold_right", "threshold_top", "threshold_bottom":
				explicitSides[key] = true
			}
		}
		return applyOverlay(&c, overlay)
	}

	if home := DefaultConfigPath(); home != "" {
		if _, err := os.Stat(home); err == nil {
			overlay, err := parseFile(home)
			if err != nil {
				return Config{}, err
			}
			if err := apply(overlay); err != nil {
				return Config{}, err
			}
		}
	}

	if path := flags.ConfigPath(); path != "" {
		overlay, err := parseFile(path)
		if err != nil {
			return Config{}, err
		}
		if err := apply(overlay); err != nil {
			return Config{}, err
		}
	}

	if err := apply(flags.overlay()); err != nil {
		return Config{}, err
	}

	cascadeEdgeThreshold(&c, explicitSides)

	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}
