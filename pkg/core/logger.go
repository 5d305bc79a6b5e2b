package core

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

// LogLevel represents the severity level of a log message
type LogLevel int

const (
	// LevelDebug is for detailed debugging information
	LevelDebug LogLevel = iota
	// LevelInfo is for general informational messages
	LevelInfo
	// LevelWarn is for warning messages
	LevelWarn
	// LevelError is for error messages
	LevelError
)

// String returns the string representation of the log level
func (l LogLevel) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// Logger is the minimal leveled logger the stores and the engine write to.
// The default is NopLogger; binaries plug in their own implementation.
type Logger interface {
	Debug(msg string, keyvals ...any)
	Info(msg string, keyvals ...any)
	Warn(msg string, keyvals ...any)
	Error(msg string, keyvals ...any)
	// With returns a new logger carrying additional key-value pairs
	With(keyvals ...any) Logger
}

// NewLogger creates a logger writing human-readable lines to w
func NewLogger(w io.Writer, minLevel LogLevel) Logger {
	return &textLogger{w: w, min: minLevel}
}

// NewStdLogger creates a logger writing to stdout
func NewStdLogger(minLevel LogLevel) Logger {
	return NewLogger(os.Stdout, minLevel)
}

// textLogger is a simple thread-safe logger implementation
type textLogger struct {
	mu   sync.Mutex
	w    io.Writer
	min  LogLevel
	base []any
}

func (l *textLogger) Debug(msg string, keyvals ...any) { l.log(LevelDebug, msg, keyvals) }
func (l *textLogger) Info(msg string, keyvals ...any)  { l.log(LevelInfo, msg, keyvals) }
func (l *textLogger) Warn(msg string, keyvals ...any)  { l.log(LevelWarn, msg, keyvals) }
func (l *textLogger) Error(msg string, keyvals ...any) { l.log(LevelError, msg, keyvals) }

func (l *textLogger) With(keyvals ...any) Logger {
	base := make([]any, 0, len(l.base)+len(keyvals))
	base = append(base, l.base...)
	base = append(base, keyvals...)
	return &textLogger{w: l.w, min: l.min, base: base}
}

// log builds the full line first so a single Write hits the writer
func (l *textLogger) log(level LogLevel, msg string, keyvals []any) {
	if level < l.min {
		return
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s %-5s %s", time.Now().Format("2006/01/02 15:04:05"), level, msg)
	writePairs(&b, l.base)
	writePairs(&b, keyvals)
	b.WriteByte('\n')

	l.mu.Lock()
	defer l.mu.Unlock()
	_, _ = io.WriteString(l.w, b.String())
}

func writePairs(b *strings.Builder, keyvals []any) {
	for i := 0; i+1 < len(keyvals); i += 2 {
		fmt.Fprintf(b, " %v=%v", keyvals[i], keyvals[i+1])
	}
}

// NopLogger returns a logger that discards all messages
func NopLogger() Logger {
	return nopLogger{}
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

func (n nopLogger) With(...any) Logger { return n }
