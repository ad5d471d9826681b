// Package ports defines the interfaces between the playback core and its
// adapters: containers, codecs, sinks, renderers, file system and logging.
package ports

import "fmt"

// LogLevel represents the severity level of a log message.
type LogLevel int

const (
	// LevelDebug is for per-packet and per-frame details inside components.
	LevelDebug LogLevel = iota
	// LevelInfo is for orchestration-level progress.
	LevelInfo
	// LevelWarn is for recoverable problems such as an ignored stream index.
	LevelWarn
	// LevelError is for problems that stop a session.
	LevelError
	// LevelQuiet suppresses all log output.
	LevelQuiet
)

var levelNames = []string{"debug", "info", "warn", "error", "quiet"}

// String returns the string representation of the log level.
func (l LogLevel) String() string {
	if l >= 0 && int(l) < len(levelNames) {
		return levelNames[l]
	}
	return "unknown"
}

// ParseLogLevel parses a string into a LogLevel, falling back to LevelInfo.
func ParseLogLevel(s string) LogLevel {
	l, err := LookupLogLevel(s)
	if err != nil {
		return LevelInfo
	}
	return l
}

// LookupLogLevel parses a string into a LogLevel and rejects unknown names.
func LookupLogLevel(s string) (LogLevel, error) {
	for i, name := range levelNames {
		if name == s {
			return LogLevel(i), nil
		}
	}
	return LevelInfo, fmt.Errorf("unknown log level %q", s)
}

// Logger abstracts logging operations with multi-language support.
type Logger interface {
	// Debug logs a debug message. msg is a translatable format key.
	Debug(msg string, args ...interface{})

	// Info logs an informational message.
	Info(msg string, args ...interface{})

	// Warn logs a warning message.
	Warn(msg string, args ...interface{})

	// Error logs an error message.
	Error(msg string, args ...interface{})

	// WithComponent returns a Logger that prefixes messages with the
	// component name, e.g. "source" or "decode#0".
	WithComponent(component string) Logger
}
