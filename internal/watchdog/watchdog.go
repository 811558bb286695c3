// Package watchdog implements the resource watchdog of §4.7: periodic
// RSS/CPU sampling of the current process, with a consecutive-breach grace
// window before tripping a fatal stop.
package watchdog

import (
	"fmt"
	"os"
	"time"

	gopsutilprocess "github.com/shirou/gopsutil/v4/process"

	"touchpad/internal/clock"
	"touchpad/internal/dialog"
	"touchpad/internal/logger"
)

// Action is the watchdog's verdict for this tick.
type Action int

const (
	ActionContinue Action = iota
	ActionStop
)

const sampleInterval = 1000 * time.Millisecond

// Watchdog samples this process's RSS and CPU usage and trips ActionStop
// once either has been breached for resource_grace_checks consecutive
// samples. It runs in-thread as part of the Controller tick (§4.7), not on
// its own goroutine.
type Watchdog struct {
	clk clock.Clock

	maxRSSBytes     uint64
	maxCPUPercent   float64
	graceChecks     int

	proc *gopsutilprocess.Process

	lastSampleMs int64
	lastCPUTime  float64
	consecutive  int
	tripped      bool
}

// New creates a Watchdog for the current process. maxRSSMB/maxCPUPercent
// and graceChecks come straight from Config.
func New(clk clock.Clock, maxRSSMB int, maxCPUPercent float64, graceChecks int) (*Watchdog, error) {
	proc, err := gopsutilprocess.NewProcess(int32(os.Getpid()))
	if err != nil {
		return nil, fmt.Errorf("watchdog: cannot attach to self: %w", err)
	}
	return &Watchdog{
		clk:           clk,
		maxRSSBytes:   uint64(maxRSSMB) * 1024 * 1024,
		maxCPUPercent: maxCPUPercent,
		graceChecks:   graceChecks,
		proc:          proc,
	}, nil
}

// Tick samples at most once per sampleInterval; calls between samples
// return the previous verdict without doing any I/O. Once tripped, it
// always returns ActionStop.
func (w *Watchdog) Tick() Action {
	if w.tripped {
		return ActionStop
	}

	now := w.clk.NowMs()
	if w.lastSampleMs != 0 && now-w.lastSampleMs < sampleInterval.Milliseconds() {
		return ActionContinue
	}

	mem, err := w.proc.MemoryInfo()
	times, errTimes := w.proc.Times()
	if err != nil || errTimes != nil {
		logger.Debug("watchdog sample failed", "err", err, "times_err", errTimes)
		w.lastSampleMs = now
		return ActionContinue
	}

	cpuPercent := 0.0
	if w.lastSampleMs != 0 {
		elapsedSec := float64(now-w.lastSampleMs) / 1000
		cpuTime := times.User + times.System
		if elapsedSec > 0 {
			cpuPercent = (cpuTime - w.lastCPUTime) / elapsedSec * 100
		}
		w.lastCPUTime = cpuTime
	} else {
		w.lastCPUTime = times.User + times.System
	}
	w.lastSampleMs = now

	breached := mem.RSS > w.maxRSSBytes || cpuPercent > w.maxCPUPercent
	if breached {
		w.consecutive++
	} else {
		w.consecutive = 0
	}

	if w.consecutive < w.graceChecks {
		return ActionContinue
	}

	w.tripped = true
	msg := fmt.Sprintf("resource limit exceeded: rss=%dMB cpu=%.1f%% (limits rss=%dMB cpu=%.1f%%)",
		mem.RSS/1024/1024, cpuPercent, w.maxRSSBytes/1024/1024, w.maxCPUPercent)
	logger.Error(msg)
	dialog.ShowError(msg)
	return ActionStop
}
