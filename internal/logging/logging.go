// Package logging provides a minimal leveled logger shared across the
// codebase. Output defaults to stderr and can be redirected for tests.
// Two formats are supported: human-readable text (default) and JSON lines
// for log shippers.
package logging

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// Level controls which messages are emitted.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

// String returns the lowercase level name.
func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "debug"
	case LevelInfo:
		return "info"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	}
	return "unknown"
}

// ParseLevel converts a level name to a Level. It accepts any casing but
// no surrounding whitespace; "warning" is accepted as an alias for "warn".
func ParseLevel(s string) (Level, error) {
	switch s {
	case "debug", "Debug", "DEBUG":
		return LevelDebug, nil
	case "info", "Info", "INFO":
		return LevelInfo, nil
	case "warn", "Warn", "WARN", "warning", "Warning", "WARNING":
		return LevelWarn, nil
	case "error", "Error", "ERROR":
		return LevelError, nil
	}
	return LevelInfo, fmt.Errorf("unknown log level: %q", s)
}

var (
	mu     sync.Mutex
	out    io.Writer = os.Stderr
	level            = LevelInfo
	format           = "text"
)

// SetOutput redirects log output. Passing nil restores stderr.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	if w == nil {
		out = os.Stderr
		return
	}
	out = w
}

// SetLevel sets the minimum level that will be emitted.
func SetLevel(l Level) {
	mu.Lock()
	defer mu.Unlock()
	level = l
}

// SetFormat selects the output format: "text" or "json".
// Unknown values fall back to "text".
func SetFormat(f string) {
	mu.Lock()
	defer mu.Unlock()
	if f != "json" {
		f = "text"
	}
	format = f
}

// IsDebug reports whether debug logging is enabled.
func IsDebug() bool {
	mu.Lock()
	defer mu.Unlock()
	return level <= LevelDebug
}

// Debug logs a debug-level message.
func Debug(msg string, args ...any) { emit(LevelDebug, msg, args...) }

// Info logs an info-level message.
func Info(msg string, args ...any) { emit(LevelInfo, msg, args...) }

// Warn logs a warning.
func Warn(msg string, args ...any) { emit(LevelWarn, msg, args...) }

// Error logs an error.
func Error(msg string, args ...any) { emit(LevelError, msg, args...) }

type jsonEntry struct {
	TS    string `json:"ts"`
	Level string `json:"level"`
	Msg   string `json:"msg"`
}

func emit(l Level, msg string, args ...any) {
	mu.Lock()
	defer mu.Unlock()
	if l < level {
		return
	}

	if len(args) > 0 {
		msg = fmt.Sprintf(msg, args...)
	}
	now := time.Now()

	if format == "json" {
		b, err := json.Marshal(jsonEntry{
			TS:    now.Format(time.RFC3339Nano),
			Level: l.String(),
			Msg:   msg,
		})
		if err != nil {
			return
		}
		fmt.Fprintln(out, string(b))
		return
	}

	var tag string
	switch l {
	case LevelDebug:
		tag = "[DEBUG]"
	case LevelInfo:
		tag = "[INFO]"
	case LevelWarn:
		tag = "[WARN]"
	case LevelError:
		tag = "[ERROR]"
	}
	fmt.Fprintf(out, "%s %s %s\n", now.Format("2006-01-02 15:04:05"), tag, msg)
}
