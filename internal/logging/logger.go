// Package logging provides the leveled logger used across the simulator
// for configuration failures, runtime invariant violations, and optional
// per-cycle instrumentation traces.
package logging

import (
	"fmt"
	logpkg "log"
	"os"
	"sync/atomic"
)

// Level is a logging severity. Levels are ordered Error < Warn < Info <
// Debug; a Logger emits a call whose level is at or below its configured
// threshold.
type Level int32

const (
	LevelError Level = iota
	LevelWarn
	LevelInfo
	LevelDebug
)

// String renders the level the way it appears in a log line, e.g. "WARN".
func (lv Level) String() string {
	switch lv {
	case LevelError:
		return "ERROR"
	case LevelWarn:
		return "WARN"
	case LevelInfo:
		return "INFO"
	case LevelDebug:
		return "DEBUG"
	default:
		return fmt.Sprintf("LEVEL(%d)", int32(lv))
	}
}

// Logger tags every emitted line with its level and a component name on
// top of the standard library logger's timestamp. The level threshold is
// stored atomically so SetLevel can be called from a different goroutine
// than the one doing the logging.
type Logger struct {
	component string
	threshold atomic.Int32
	out       *logpkg.Logger
}

// New creates a logger at the given level that writes to os.Stderr,
// tagging every line with component.
func New(level Level, component string) *Logger {
	l := &Logger{
		component: component,
		out:       logpkg.New(os.Stderr, "", logpkg.LstdFlags|logpkg.Lmicroseconds),
	}
	l.threshold.Store(int32(level))
	return l
}

// SetLevel adjusts the current logging threshold.
func (l *Logger) SetLevel(level Level) {
	if l == nil {
		return
	}
	l.threshold.Store(int32(level))
}

func (l *Logger) enabled(lv Level) bool {
	return l != nil && int32(lv) <= l.threshold.Load()
}

func (l *Logger) logf(lv Level, format string, args ...any) {
	if !l.enabled(lv) {
		return
	}
	l.out.Output(3, fmt.Sprintf("%-5s %s: %s", lv, l.component, fmt.Sprintf(format, args...)))
}

// Debugf logs at Debug level.
func (l *Logger) Debugf(format string, args ...any) { l.logf(LevelDebug, format, args...) }

// Infof logs at Info level.
func (l *Logger) Infof(format string, args ...any) { l.logf(LevelInfo, format, args...) }

// Warnf logs at Warn level.
func (l *Logger) Warnf(format string, args ...any) { l.logf(LevelWarn, format, args...) }

// Errorf logs at Error level.
func (l *Logger) Errorf(format string, args ...any) { l.logf(LevelError, format, args...) }

var defaultLogger = New(LevelInfo, "mesisim")

// Default returns the package-level logger every simulator component logs
// through unless a caller supplies its own.
func Default() *Logger { return defaultLogger }

// SetDefault replaces the package-level logger, primarily so cmd/mesisim
// can raise the threshold under -v and so tests can capture output.
func SetDefault(l *Logger) {
	if l == nil {
		return
	}
	defaultLogger = l
}
