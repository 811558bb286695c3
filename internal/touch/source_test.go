package touch

import (
	"errors"
	"testing"

	"github.com/gvalkov/golang-evdev"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"touchpad/internal/clock"
)

func TestScoreAndPickPrefersIntegrated(t *testing.T) {
	internal := Candidate{Devnode: "/dev/input/event3", Integrated: true, FingerTool: true, AxisX: AxisRange{0, 100}, AxisY: AxisRange{0, 100}}
	external := Candidate{Devnode: "/dev/input/event7", Integrated: false, FingerTool: true, AxisX: AxisRange{0, 10000}, AxisY: AxisRange{0, 10000}}

	best, ok := ScoreAndPick([]Candidate{external, internal})
	require.True(t, ok)
	assert.Equal(t, "/dev/input/event3", best.Devnode)
}

func TestScoreAndPickPrefersLargerAreaAmongEquals(t *testing.T) {
	small := Candidate{Devnode: "/dev/input/event1", FingerTool: true, AxisX: AxisRange{0, 100}, AxisY: AxisRange{0, 100}}
	large := Candidate{Devnode: "/dev/input/event2", FingerTool: true, AxisX: AxisRange{0, 2000}, AxisY: AxisRange{0, 2000}}

	best, ok := ScoreAndPick([]Candidate{small, large})
	require.True(t, ok)
	assert.Equal(t, "/dev/input/event2", best.Devnode)
}

func TestScoreAndPickPenalizesMouseLike(t *testing.T) {
	touchOnly := Candidate{Devnode: "/dev/input/event1", FingerTool: true, MouseLike: false, AxisX: AxisRange{0, 1000}, AxisY: AxisRange{0, 1000}}
	hybrid := Candidate{Devnode: "/dev/input/event2", FingerTool: true, MouseLike: true, AxisX: AxisRange{0, 1000}, AxisY: AxisRange{0, 1000}}

	best, ok := ScoreAndPick([]Candidate{hybrid, touchOnly})
	require.True(t, ok)
	assert.Equal(t, "/dev/input/event1", best.Devnode)
}

func TestScoreAndPickEmpty(t *testing.T) {
	_, ok := ScoreAndPick(nil)
	assert.False(t, ok)
}

func TestAxisRangeValid(t *testing.T) {
	assert.True(t, AxisRange{Min: 0, Max: 100}.Valid())
	assert.False(t, AxisRange{Min: 100, Max: 100}.Valid())
	assert.False(t, AxisRange{Min: 100, Max: 0}.Valid())
}

func TestFormatListLine(t *testing.T) {
	c := Candidate{Devnode: "/dev/input/event3", Name: "SynPS/2 Touchpad", Integrated: true, AxisX: AxisRange{0, 1000}, AxisY: AxisRange{0, 800}}
	line := FormatListLine(c)
	assert.Equal(t, "/dev/input/event3\tSynPS/2 Touchpad\tintegrated=yes\tarea=800000\trange=[0..1000]x[0..800]", line)
}

type fakeReader struct {
	batches [][]evdev.InputEvent
	i       int
}

func (f *fakeReader) Read() ([]evdev.InputEvent, error) {
	if f.i >= len(f.batches) {
		return nil, errors.New("EAGAIN")
	}
	b := f.batches[f.i]
	f.i++
	return b, nil
}

// TestReadFrameRecoversStateAfterSynDropped exercises §4.1/§9's sync-drain
// protocol: the resync batch of ABS_MT_* pseudo-events that follows
// SYN_DROPPED must be decoded, not discarded, since the kernel never
// replays it a second time.
func TestReadFrameRecoversStateAfterSynDropped(t *testing.T) {
	state := NewState(1)
	clk := clock.NewFake(0)
	decoder := NewDecoder(state, clk, 0)

	reader := &fakeReader{batches: [][]evdev.InputEvent{
		{{Type: evdev.EV_SYN, Code: evdev.SYN_DROPPED}},
		{
			{Type: evdev.EV_ABS, Code: evdev.ABS_MT_SLOT, Value: 0},
			{Type: evdev.EV_ABS, Code: evdev.ABS_MT_TRACKING_ID, Value: 1},
			{Type: evdev.EV_ABS, Code: evdev.ABS_MT_POSITION_X, Value: 950},
			{Type: evdev.EV_ABS, Code: evdev.ABS_MT_POSITION_Y, Value: 500},
			{Type: evdev.EV_SYN, Code: evdev.SYN_REPORT},
		},
	}}

	src := &evdevSource{reader: reader, slotCount: 1}
	allReleased, err := src.ReadFrame(decoder)
	require.NoError(t, err)
	assert.False(t, allReleased)

	assert.True(t, state.Slots[0].Active)
	require.True(t, state.HasLastX)
	require.True(t, state.HasLastY)
	assert.Equal(t, int32(950), state.LastX)
	assert.Equal(t, int32(500), state.LastY)
}

// TestReadFrameSurfacesAllReleaseFromResyncBatch confirms the all-release
// signal (used to reset the edge engine's hold timer) still propagates
// when it occurs inside the post-drop resync batch rather than a normal
// frame.
func TestReadFrameSurfacesAllReleaseFromResyncBatch(t *testing.T) {
	state := NewState(1)
	state.Slots[0] = Slot{Active: true, X: 900, Y: 500, HasX: true, HasY: true}
	state.HasLastX, state.HasLastY = true, true
	state.LastX, state.LastY = 900, 500
	clk := clock.NewFake(0)
	decoder := NewDecoder(state, clk, 0)

	reader := &fakeReader{batches: [][]evdev.InputEvent{
		{{Type: evdev.EV_SYN, Code: evdev.SYN_DROPPED}},
		{
			{Type: evdev.EV_KEY, Code: evdev.BTN_TOUCH, Value: 0},
			{Type: evdev.EV_SYN, Code: evdev.SYN_REPORT},
		},
	}}

	src := &evdevSource{reader: reader, slotCount: 1}
	allReleased, err := src.ReadFrame(decoder)
	require.NoError(t, err)
	assert.True(t, allReleased)
	assert.False(t, state.Slots[0].Active)
}
