// Package logger provides structured logging for the simulation.
// Every agent action a run records can be traced through this.
package logger

import (
	"io"
	"os"
	"strings"

	"github.com/felixgeelhaar/bolt/v3"
	"github.com/mattn/go-isatty"
)

// Config selects level, format and destination.
type Config struct {
	// Level is the minimum level (trace, debug, info, warn, error).
	Level string `yaml:"level" json:"level"`

	// Format is json, console, or auto (console when Output is a terminal).
	Format string `yaml:"format" json:"format"`

	Output io.Writer `yaml:"-" json:"-"`
}

// DefaultConfig logs info and above, picking the format from the terminal.
func DefaultConfig() Config {
	return Config{Level: "info", Format: "auto", Output: os.Stdout}
}

// Field applies structured data to a log event.
type Field func(*bolt.Event) *bolt.Event

// Str adds a string field.
func Str(key, val string) Field {
	return func(e *bolt.Event) *bolt.Event { return e.Str(key, val) }
}

// Int adds an integer field.
func Int(key string, val int) Field {
	return func(e *bolt.Event) *bolt.Event { return e.Int(key, val) }
}

// Bool adds a boolean field.
func Bool(key string, val bool) Field {
	return func(e *bolt.Event) *bolt.Event { return e.Bool(key, val) }
}

// Err adds an error field.
func Err(err error) Field {
	return func(e *bolt.Event) *bolt.Event { return e.Err(err) }
}

// Logger provides structured logging with context.
type Logger struct {
	bolt *bolt.Logger
}

// NewLogger creates a logger with DefaultConfig.
func NewLogger() *Logger {
	return New(DefaultConfig())
}

// New creates a logger from cfg.
func New(cfg Config) *Logger {
	out := cfg.Output
	if out == nil {
		out = os.Stdout
	}

	var handler bolt.Handler
	if useJSON(cfg.Format, out) {
		handler = bolt.NewJSONHandler(out)
	} else {
		handler = bolt.NewConsoleHandler(out)
	}
	return &Logger{bolt: bolt.New(handler).SetLevel(ParseLevel(cfg.Level))}
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	return New(Config{Level: "error", Format: "json", Output: io.Discard})
}

func useJSON(format string, out io.Writer) bool {
	switch strings.ToLower(format) {
	case "json":
		return true
	case "console":
		return false
	}
	f, ok := out.(*os.File)
	if !ok {
		return true
	}
	return !isatty.IsTerminal(f.Fd()) && !isatty.IsCygwinTerminal(f.Fd())
}

// ParseLevel converts a level name to a bolt.Level, defaulting to info.
func ParseLevel(s string) bolt.Level {
	switch strings.ToLower(s) {
	case "trace":
		return bolt.TRACE
	case "debug":
		return bolt.DEBUG
	case "warn", "warning":
		return bolt.WARN
	case "error":
		return bolt.ERROR
	default:
		return bolt.INFO
	}
}

func send(e *bolt.Event, msg string, fields []Field) {
	for _, f := range fields {
		e = f(e)
	}
	e.Msg(msg)
}

// Debug logs verbose diagnostics.
func (l *Logger) Debug(msg string, fields ...Field) {
	send(l.bolt.Debug(), msg, fields)
}

// Info logs informational messages.
func (l *Logger) Info(msg string, fields ...Field) {
	send(l.bolt.Info(), msg, fields)
}

// Warn logs warning messages.
func (l *Logger) Warn(msg string, fields ...Field) {
	send(l.bolt.Warn(), msg, fields)
}

// Error logs error messages.
func (l *Logger) Error(msg string, fields ...Field) {
	send(l.bolt.Error(), msg, fields)
}

// Event logs one simulation event at debug level.
func (l *Logger) Event(eventType string, agentID int, details string) {
	l.bolt.Debug().
		Str("event", eventType).
		Int("agent_id", agentID).
		Str("details", details).
		Msg("sim event")
}

// Bolt exposes the underlying logger for callers that build events directly.
func (l *Logger) Bolt() *bolt.Logger {
	return l.bolt
}
