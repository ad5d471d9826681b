package logger

import (
	"sync/atomic"

	"github.com/user/mediaplay/pkg/ports"
)

// NoopLogger discards all messages. It still counts warnings and errors,
// shared with every logger derived through WithComponent, so a quiet run
// can tell whether a component complained.
type NoopLogger struct {
	counts *noopCounts
}

type noopCounts struct {
	warnings atomic.Int64
	errors   atomic.Int64
}

// NewNoop creates a new no-op logger.
func NewNoop() *NoopLogger {
	return &NoopLogger{counts: &noopCounts{}}
}

func (l *NoopLogger) Debug(msg string, args ...interface{}) {}

func (l *NoopLogger) Info(msg string, args ...interface{}) {}

func (l *NoopLogger) Warn(msg string, args ...interface{}) {
	l.counts.warnings.Add(1)
}

func (l *NoopLogger) Error(msg string, args ...interface{}) {
	l.counts.errors.Add(1)
}

// WithComponent returns a logger sharing this logger's counters.
func (l *NoopLogger) WithComponent(component string) ports.Logger {
	return &NoopLogger{counts: l.counts}
}

// Warnings returns the number of discarded warnings.
func (l *NoopLogger) Warnings() int64 {
	return l.counts.warnings.Load()
}

// Errors returns the number of discarded errors.
func (l *NoopLogger) Errors() int64 {
	return l.counts.errors.Load()
}

var _ ports.Logger = (*NoopLogger)(nil)
