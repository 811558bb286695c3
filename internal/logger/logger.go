// Package logger provides the process-wide structured logger used by every
// other package in this daemon.
package logger

import (
	"os"
	"sync"

	"github.com/charmbracelet/log"
)

var (
	mu   sync.RWMutex
	base = log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		Level:           log.InfoLevel,
	})
)

// SetVerbose switches the process logger between info and debug level.
func SetVerbose(verbose bool) {
	mu.Lock()
	defer mu.Unlock()
	if verbose {
		base.SetLevel(log.DebugLevel)
	} else {
		base.SetLevel(log.InfoLevel)
	}
}

func get() *log.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return base
}

func Debug(msg string, kv ...interface{}) { get().Debug(msg, kv...) }
func Info(msg string, kv ...interface{})  { get().Info(msg, kv...) }
func Warn(msg string, kv ...interface{})  { get().Warn(msg, kv...) }
func Error(msg string, kv ...interface{}) { get().Error(msg, kv...) }

// With returns a child logger carrying the given key/value pairs on every
// subsequent call, used to scope log lines to a component (e.g. "component", "pulser").
func With(kv ...interface{}) *log.Logger {
	return get().With(kv...)
}
