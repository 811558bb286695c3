package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestValidateRejectsHysteresisAtThreshold(t *testing.T) {
	c := Default()
	c.EdgeHysteresis = c.ThresholdLeft // I6: must be strictly less than every active threshold
	assert.Error(t, c.Validate())
}

func TestValidateRejectsDeadzonePlusThresholdOverflow(t *testing.T) {
	c := Default()
	c.Deadzone = 0.3
	c.ThresholdLeft = 0.3
	assert.Error(t, c.Validate())
}

func TestValidateRejectsUnknownMode(t *testing.T) {
	c := Default()
	c.Mode = "diagonal"
	assert.Error(t, c.Validate())
}

func TestRoundTrip(t *testing.T) {
	c := Default()
	c.Mode = ModeScroll
	c.NaturalScroll = true
	c.ButtonZone = 0.2
	c.IgnoredDevnodes = []string{"/dev/input/event3", "/dev/input/event7"}

	dir := t.TempDir()
	path := filepath.Join(dir, "edge-motion.conf")
	require.NoError(t, os.WriteFile(path, []byte(Save(c)), 0o644))

	overlay, err := parseFile(path)
	require.NoError(t, err)

	got := Default()
	require.NoError(t, applyOverlay(&got, overlay))

	assert.Equal(t, c, got)
}

func TestParseFileRejectsMalformedLine(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.conf")
	require.NoError(t, os.WriteFile(path, []byte("hold_ms 80\n"), 0o644))

	_, err := parseFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad.conf:1")
}

func TestParseFileSkipsCommentsAndBlankLines(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ok.conf")
	content := "# a comment\n\nhold_ms = 120\n  pulse_ms   =   5  \n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	overlay, err := parseFile(path)
	require.NoError(t, err)

	c := Default()
	require.NoError(t, applyOverlay(&c, overlay))
	assert.Equal(t, 120, c.HoldMs)
	assert.Equal(t, 5, c.PulseMs)
}

func TestFlagsOverrideFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "edge-motion.conf")
	require.NoError(t, os.WriteFile(path, []byte("hold_ms = 120\nmode = scroll\n"), 0o644))

	set := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags := RegisterFlags(set)
	require.NoError(t, set.Parse([]string{"--config", path, "--hold-ms", "30"}))

	c, err := Resolve(flags)
	require.NoError(t, err)
	assert.Equal(t, 30, c.HoldMs)       // flag wins over file
	assert.Equal(t, ModeScroll, c.Mode) // file still applies where no flag given
}

func TestRepeatableIgnoreFlag(t *testing.T) {
	set := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags := RegisterFlags(set)
	require.NoError(t, set.Parse([]string{"--ignore", "/dev/input/event1", "--ignore", "/dev/input/event2"}))

	c, err := Resolve(flags)
	require.NoError(t, err)
	assert.Equal(t, []string{"/dev/input/event1", "/dev/input/event2"}, c.IgnoredDevnodes)
}

func TestEdgeThresholdCascadesToUnsetSides(t *testing.T) {
	set := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags := RegisterFlags(set)
	require.NoError(t, set.Parse([]string{"--edge-threshold", "0.2"}))

	c, err := Resolve(flags)
	require.NoError(t, err)
	assert.Equal(t, 0.2, c.ThresholdLeft)
	assert.Equal(t, 0.2, c.ThresholdRight)
	assert.Equal(t, 0.2, c.ThresholdTop)
	assert.Equal(t, 0.2, c.ThresholdBottom)
}

func TestEdgeThresholdCascadeDoesNotOverrideExplicitSide(t *testing.T) {
	set := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags := RegisterFlags(set)
	require.NoError(t, set.Parse([]string{"--edge-threshold", "0.2", "--threshold-left", "0.08"}))

	c, err := Resolve(flags)
	require.NoError(t, err)
	assert.Equal(t, 0.08, c.ThresholdLeft)
	assert.Equal(t, 0.2, c.ThresholdRight)
	assert.Equal(t, 0.2, c.ThresholdTop)
	assert.Equal(t, 0.2, c.ThresholdBottom)
}

func TestEdgeThresholdFromFileCascades(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "edge-motion.conf")
	require.NoError(t, os.WriteFile(path, []byte("edge_threshold = 0.15\n"), 0o644))

	set := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags := RegisterFlags(set)
	require.NoError(t, set.Parse([]string{"--config", path}))

	c, err := Resolve(flags)
	require.NoError(t, err)
	assert.Equal(t, 0.15, c.ThresholdRight)
}

func TestNoGrabOverridesGrabFlag(t *testing.T) {
	set := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags := RegisterFlags(set)
	require.NoError(t, set.Parse([]string{"--grab", "--no-grab"}))

	c, err := Resolve(flags)
	require.NoError(t, err)
	assert.False(t, c.Grab)
}
