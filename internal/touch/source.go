package touch

import (
	"fmt"
	"sort"
	"sync"
	"syscall"
	"time"
	"unsafe"

	"github.com/gvalkov/golang-evdev"

	"touchpad/internal/logger"
)

// AxisRange is a reported absolute axis's [min, max], per §3 DeviceBinding.
type AxisRange struct {
	Min, Max int32
}

// Valid reports I5: max > min.
func (a AxisRange) Valid() bool { return a.Max > a.Min }

// Candidate describes one enumerated touchpad-like device, before it is
// opened, per §4.1 Enumeration.
type Candidate struct {
	Devnode    string
	Name       string
	Integrated bool
	FingerTool bool
	Touch      bool
	MouseLike  bool
	AxisX      AxisRange
	AxisY      AxisRange
}

// Area is (max_x-min_x)*(max_y-min_y), used by the scoring key.
func (c Candidate) Area() int64 {
	return int64(c.AxisX.Max-c.AxisX.Min) * int64(c.AxisY.Max-c.AxisY.Min)
}

// Source is the TouchSource abstraction of §6: a thin wrapper over one open
// evdev device exposing frame reads, grab/release and reconnect-friendly
// open/close.
type Source interface {
	// ReadFrame blocks (subject to the fd already having been polled
	// readable by the caller) for one batch of raw events and feeds them
	// to decoder, returning any all-release signal. A non-EAGAIN read
	// error is reported as Disconnected via err.
	ReadFrame(decoder *Decoder) (allReleased bool, err error)
	// Fd returns the underlying file descriptor for the controller's
	// poll loop.
	Fd() int
	// SlotCount is the number of kernel multi-touch slots this device
	// reports (ABS_MT_SLOT.max - min + 1, defaulting to 1).
	SlotCount() int
	AxisX() AxisRange
	AxisY() AxisRange
	PressureRange() (AxisRange, bool)
	Close() error
}

// EnumerateCandidates iterates /dev/input/event* for devices that look like
// touchpads (§4.1): at least one of {finger-tool, touch} capability, not in
// ignored.
func EnumerateCandidates(ignored map[string]bool) ([]Candidate, error) {
	devices, err := evdev.ListInputDevices()
	if err != nil {
		return nil, fmt.Errorf("touch: enumerate: %w", err)
	}

	var out []Candidate
	for _, dev := range devices {
		if ignored[dev.Fn] {
			continue
		}
		cand, ok := describeCandidate(dev)
		if !ok {
			continue
		}
		out = append(out, cand)
	}
	return out, nil
}

func describeCandidate(dev *evdev.InputDevice) (Candidate, bool) {
	fingerTool := hasKey(dev, evdev.BTN_TOOL_FINGER)
	touchKey := hasKey(dev, evdev.BTN_TOUCH)
	if !fingerTool && !touchKey {
		return Candidate{}, false
	}

	mouseLike := hasRel(dev, evdev.REL_X) && hasRel(dev, evdev.REL_Y)

	axisX, okX := readAbsRangeIoctl(dev, evdev.ABS_MT_POSITION_X)
	if !okX {
		axisX, okX = readAbsRangeIoctl(dev, evdev.ABS_X)
	}
	axisY, okY := readAbsRangeIoctl(dev, evdev.ABS_MT_POSITION_Y)
	if !okY {
		axisY, okY = readAbsRangeIoctl(dev, evdev.ABS_Y)
	}
	if !okX || !okY {
		return Candidate{}, false
	}

	return Candidate{
		Devnode:    dev.Fn,
		Name:       dev.Name,
		Integrated: isIntegratedBus(dev.ID.Bustype),
		FingerTool: fingerTool,
		Touch:      touchKey,
		MouseLike:  mouseLike,
		AxisX:      axisX,
		AxisY:      axisY,
	}, true
}

// isIntegratedBus approximates the "integrated" flag from the enumerated
// bus type: built-in touchpads typically enumerate over I2C or a platform
// bus, while detachable/external ones are USB or Bluetooth. This is a
// heuristic, not a udev property lookup — see DESIGN.md.
func isIntegratedBus(bustype uint16) bool {
	const (
		busI2C       = 0x18
		busHost      = 0x19
		busUSB       = 0x03
		busBluetooth = 0x05
	)
	switch bustype {
	case busUSB, busBluetooth:
		return false
	case busI2C, busHost:
		return true
	default:
		return false
	}
}

func hasKey(dev *evdev.InputDevice, code uint16) bool {
	return hasCapability(dev, evdev.EV_KEY, code)
}

func hasRel(dev *evdev.InputDevice, code uint16) bool {
	return hasCapability(dev, evdev.EV_REL, code)
}

func hasCapability(dev *evdev.InputDevice, evType, code uint16) bool {
	for ct, codes := range dev.Capabilities {
		if ct.Type != evType {
			continue
		}
		for _, c := range codes {
			if c.Code == code {
				return true
			}
		}
	}
	return false
}

// ScoreAndPick picks the candidate maximizing the lexicographic key
// (integrated, finger_tool_present, !mouse_like, area); ties keep the
// earliest (iteration order).
func ScoreAndPick(candidates []Candidate) (Candidate, bool) {
	if len(candidates) == 0 {
		return Candidate{}, false
	}
	best := 0
	for i := 1; i < len(candidates); i++ {
		if lessKey(candidates[best], candidates[i]) {
			best = i
		}
	}
	return candidates[best], true
}

// lessKey reports whether a's scoring key is strictly less than b's —
// i.e. whether b should be preferred over a.
func lessKey(a, b Candidate) bool {
	ka := scoreKey(a)
	kb := scoreKey(b)
	for i := range ka {
		if ka[i] != kb[i] {
			return ka[i] < kb[i]
		}
	}
	return false
}

func scoreKey(c Candidate) [4]int64 {
	return [4]int64{boolKey(c.Integrated), boolKey(c.FingerTool), boolKey(!c.MouseLike), c.Area()}
}

func boolKey(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

// FormatListLine renders the --list-devices line format of §4.9.
func FormatListLine(c Candidate) string {
	integrated := "no"
	if c.Integrated {
		integrated = "yes"
	}
	return fmt.Sprintf("%s\t%s\tintegrated=%s\tarea=%d\trange=[%d..%d]x[%d..%d]",
		c.Devnode, c.Name, integrated, c.Area(), c.AxisX.Min, c.AxisX.Max, c.AxisY.Min, c.AxisY.Max)
}

// SortByDevnode gives --list-devices output a stable, readable order.
func SortByDevnode(cands []Candidate) {
	sort.Slice(cands, func(i, j int) bool { return cands[i].Devnode < cands[j].Devnode })
}

// eventReader is the subset of *evdev.InputDevice that ReadFrame/drain
// need, narrowed so tests can fake the read side without modeling the
// whole InputDevice type.
type eventReader interface {
	Read() ([]evdev.InputEvent, error)
}

// evdevSource is the real Source implementation, backed by golang-evdev.
type evdevSource struct {
	mu           sync.Mutex
	dev          *evdev.InputDevice
	reader       eventReader
	grabbed      bool
	axisX, axisY AxisRange
	pressure     AxisRange
	hasPressure  bool
	slotCount    int
}

// Open opens devnode non-blocking, optionally grabbing it with up to 3
// attempts and exponential backoff (10ms, 20ms, 40ms), then reads axis and
// pressure ranges, per §4.1 Open sequence.
func Open(devnode string, grab bool) (Source, error) {
	dev, err := evdev.Open(devnode)
	if err != nil {
		return nil, fmt.Errorf("touch: open %s: %w", devnode, err)
	}

	s := &evdevSource{dev: dev, reader: dev}

	if grab {
		if err := grabWithRetry(dev); err != nil {
			logger.Warn("grab failed, continuing in shared mode", "devnode", devnode, "err", err)
		} else {
			s.grabbed = true
		}
	}

	axisX, ok := readAbsRangeIoctl(dev, evdev.ABS_MT_POSITION_X)
	if !ok {
		axisX, _ = readAbsRangeIoctl(dev, evdev.ABS_X)
	}
	axisY, ok := readAbsRangeIoctl(dev, evdev.ABS_MT_POSITION_Y)
	if !ok {
		axisY, _ = readAbsRangeIoctl(dev, evdev.ABS_Y)
	}
	s.axisX, s.axisY = axisX, axisY

	if pr, ok := readAbsRangeIoctl(dev, evdev.ABS_MT_PRESSURE); ok && pr.Max != pr.Min {
		s.pressure, s.hasPressure = pr, true
	} else if pr, ok := readAbsRangeIoctl(dev, evdev.ABS_PRESSURE); ok && pr.Max != pr.Min {
		s.pressure, s.hasPressure = pr, true
	}

	slotRange, ok := readAbsRangeIoctl(dev, evdev.ABS_MT_SLOT)
	s.slotCount = 1
	if ok {
		if n := int(slotRange.Max-slotRange.Min) + 1; n > 0 {
			s.slotCount = n
		}
	}

	return s, nil
}

func grabWithRetry(dev *evdev.InputDevice) error {
	backoffs := []time.Duration{10 * time.Millisecond, 20 * time.Millisecond, 40 * time.Millisecond}
	var lastErr error
	for attempt, wait := range backoffs {
		if err := dev.Grab(); err != nil {
			lastErr = err
			if attempt < len(backoffs)-1 {
				time.Sleep(wait)
			}
			continue
		}
		return nil
	}
	return lastErr
}

func (s *evdevSource) Fd() int {
	return int(s.dev.File.Fd())
}

func (s *evdevSource) SlotCount() int           { return s.slotCount }
func (s *evdevSource) AxisX() AxisRange         { return s.axisX }
func (s *evdevSource) AxisY() AxisRange         { return s.axisY }
func (s *evdevSource) PressureRange() (AxisRange, bool) { return s.pressure, s.hasPressure }

func (s *evdevSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.grabbed {
		_ = s.dev.Release()
		s.grabbed = false
	}
	return s.dev.File.Close()
}

// ReadFrame reads one batch of events from the device and feeds them to
// decoder. If the kernel reports SYN_DROPPED (events were lost), it enters
// the sync-drain protocol of §4.1/§9: the kernel's resync batch of
// ABS_MT_* pseudo-events is fed into decoder in place, since that batch is
// the only opportunity to recover slot/position state after a drop — it is
// not replayed a second time.
func (s *evdevSource) ReadFrame(decoder *Decoder) (bool, error) {
	events, err := s.reader.Read()
	if err != nil {
		if isTransient(err) {
			return false, nil
		}
		return false, fmt.Errorf("touch: disconnected: %w", err)
	}

	var allReleased bool
	var filtered []evdev.InputEvent
	for _, ev := range events {
		if ev.Type == evdev.EV_SYN && ev.Code == evdev.SYN_DROPPED {
			if decoder.Feed(filtered) {
				allReleased = true
			}
			filtered = filtered[:0]
			if s.drain(decoder) {
				allReleased = true
			}
			continue
		}
		filtered = append(filtered, ev)
	}
	if decoder.Feed(filtered) {
		allReleased = true
	}
	return allReleased, nil
}

// drain re-reads events until the device returns EAGAIN, feeding each
// batch into decoder instead of discarding it: the resync batch the kernel
// sends after SYN_DROPPED is itself the recovery mechanism for slot and
// position state, per §9's evdev sync-drain protocol.
func (s *evdevSource) drain(decoder *Decoder) (allReleased bool) {
	for {
		events, err := s.reader.Read()
		if err != nil {
			return allReleased
		}
		if decoder.Feed(events) {
			allReleased = true
		}
	}
}

func isTransient(err error) bool {
	return err == syscall.EAGAIN || err == syscall.EWOULDBLOCK || err == syscall.EINTR
}

// --- raw ioctl axis-info reading ---
//
// golang-evdev does not expose a typed accessor for EVIOCGABS on arbitrary
// axis codes, so this reads the kernel's struct input_absinfo directly —
// the same raw-ioctl technique the original driver used to create its
// uinput device (see DESIGN.md).

type inputAbsInfo struct {
	Value      int32
	Minimum    int32
	Maximum    int32
	Fuzz       int32
	Flat       int32
	Resolution int32
}

func evIOCGAbs(axis uint16) uintptr {
	const (
		iocRead = 2
		ioType  = 'E'
		size    = 24 // sizeof(struct input_absinfo)
	)
	nr := 0x40 + uintptr(axis)
	return (uintptr(iocRead) << 30) | (uintptr(size) << 16) | (uintptr(ioType) << 8) | nr
}

func readAbsRangeIoctl(dev *evdev.InputDevice, axis uint16) (AxisRange, bool) {
	var info inputAbsInfo
	fd := dev.File.Fd()
	req := evIOCGAbs(axis)
	_, _, errno := syscall.Syscall(syscall.SYS_IOCTL, fd, req, uintptr(unsafe.Pointer(&info)))
	if errno != 0 {
		return AxisRange{}, false
	}
	if info.Maximum <= info.Minimum {
		return AxisRange{}, false
	}
	return AxisRange{Min: info.Minimum, Max: info.Maximum}, true
}
