package touch

import (
	"github.com/gvalkov/golang-evdev"

	"touchpad/internal/clock"
)

// Decoder turns a stream of evdev events into State transitions per §4.1.
// It is deliberately independent of any open device so the frame-decoding
// rules (P1 in particular) can be driven directly from a fixed event slice
// in tests.
type Decoder struct {
	State            *State
	Clock            clock.Clock
	ButtonCooldownMs int64

	current int // slot index selected by the most recent ABS_MT_SLOT
}

// NewDecoder creates a Decoder over state, using clk for button-cooldown
// timestamps.
func NewDecoder(state *State, clk clock.Clock, buttonCooldownMs int64) *Decoder {
	return &Decoder{State: state, Clock: clk, ButtonCooldownMs: buttonCooldownMs, current: 0}
}

// Feed processes a full frame: events up to and including the terminating
// SYN_REPORT. It returns true if the frame ended in an all-release signal
// (BTN_TOUCH / BTN_TOOL_FINGER|PEN|MOUSE falling edge), which callers may use
// to reset the edge-decision engine's hold timer.
func (d *Decoder) Feed(events []evdev.InputEvent) (allReleased bool) {
	for _, ev := range events {
		if d.handleOne(ev) {
			allReleased = true
		}
	}
	return allReleased
}

func (d *Decoder) handleOne(ev evdev.InputEvent) (allReleased bool) {
	s := d.State
	switch ev.Type {
	case evdev.EV_ABS:
		switch ev.Code {
		case evdev.ABS_MT_SLOT:
			d.current = int(ev.Value)
		case evdev.ABS_MT_POSITION_X, evdev.ABS_X:
			if slot := s.slot(d.current); slot != nil {
				slot.X = ev.Value
				slot.HasX = true
				d.adoptPreferredIfNeeded(d.current)
				d.publishLastIfReady(d.current)
			}
		case evdev.ABS_MT_POSITION_Y, evdev.ABS_Y:
			if slot := s.slot(d.current); slot != nil {
				slot.Y = ev.Value
				slot.HasY = true
				d.adoptPreferredIfNeeded(d.current)
				d.publishLastIfReady(d.current)
			}
		case evdev.ABS_MT_TRACKING_ID:
			d.handleTrackingID(ev.Value)
		case evdev.ABS_MT_PRESSURE, evdev.ABS_PRESSURE:
			s.LastPressure = ev.Value
			s.HasLastPressure = true
		}

	case evdev.EV_KEY:
		switch ev.Code {
		case evdev.BTN_LEFT, evdev.BTN_RIGHT, evdev.BTN_MIDDLE:
			s.ClickDown = ev.Value > 0
			s.EdgeSuppressUntilMs = d.Clock.NowMs() + d.ButtonCooldownMs
		case evdev.BTN_TOUCH, evdev.BTN_TOOL_FINGER, evdev.BTN_TOOL_PEN, evdev.BTN_TOOL_MOUSE:
			if ev.Value == 0 {
				s.clearAll()
				allReleased = true
			}
		}

	case evdev.EV_SYN:
		if ev.Code == evdev.SYN_REPORT {
			d.resolveLast()
		}
	}
	return allReleased
}

// adoptPreferredIfNeeded sets Preferred to slot i the first time it gets a
// coordinate while no slot is preferred, or keeps confirming the current
// preferred slot, matching §4.1's "if no preferred slot or preferred equals
// current" rule.
func (d *Decoder) adoptPreferredIfNeeded(i int) {
	s := d.State
	if s.Preferred == -1 || s.Preferred == i {
		s.Preferred = i
	}
}

// publishLastIfReady writes last_x/last_y once slot i has both coordinates,
// but only while it is (or becomes) the preferred slot.
func (d *Decoder) publishLastIfReady(i int) {
	s := d.State
	if s.Preferred != i {
		return
	}
	slot := s.slot(i)
	if slot == nil || !slot.HasX || !slot.HasY {
		return
	}
	s.LastX, s.LastY = slot.X, slot.Y
	s.HasLastX, s.HasLastY = true, true
}

func (d *Decoder) handleTrackingID(value int32) {
	s := d.State
	slot := s.slot(d.current)
	if slot == nil {
		return
	}
	if value == -1 {
		wasActive := slot.Active
		slot.clear()
		if wasActive && s.ActiveFingers > 0 {
			s.ActiveFingers--
		}
		if s.Preferred == d.current {
			s.Preferred = -1
		}
		return
	}
	if !slot.Active {
		slot.Active = true
		s.ActiveFingers++
	}
	s.Preferred = d.current
}

// resolveLast recomputes (last_x, last_y) at SYN_REPORT, per §4.1: prefer
// the preferred slot if still valid, else the first active slot with both
// coordinates known, else unknown.
func (d *Decoder) resolveLast() {
	s := d.State
	if slot := s.slot(s.Preferred); slot != nil && slot.Active && slot.HasX && slot.HasY {
		s.LastX, s.LastY = slot.X, slot.Y
		s.HasLastX, s.HasLastY = true, true
		return
	}
	for i := range s.Slots {
		slot := &s.Slots[i]
		if slot.Active && slot.HasX && slot.HasY {
			s.LastX, s.LastY = slot.X, slot.Y
			s.HasLastX, s.HasLastY = true, true
			return
		}
	}
	s.HasLastX, s.HasLastY = false, false
}
