package logging

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// Level controls which messages are emitted
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

// Option decorates a single log event
type Option func(e *zerolog.Event)

// Logger is a thin leveled wrapper around zerolog
type Logger struct {
	zl zerolog.Logger
}

// New creates a logger writing JSON lines to stderr.
// Stdout is left alone because MCP mode speaks JSON-RPC over it.
func New(level Level) *Logger {
	return NewWithWriter(os.Stderr, level)
}

// NewWithWriter creates a logger writing to w
func NewWithWriter(w io.Writer, level Level) *Logger {
	zl := zerolog.New(w).Level(toZerolog(level)).With().Timestamp().Logger()
	return &Logger{zl: zl}
}

// ParseLevel maps a config string onto a Level, defaulting to info
func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

func toZerolog(level Level) zerolog.Level {
	switch level {
	case LevelDebug:
		return zerolog.DebugLevel
	case LevelWarn:
		return zerolog.WarnLevel
	case LevelError:
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// WithField attaches a single key/value pair
func WithField(key string, value interface{}) Option {
	return func(e *zerolog.Event) {
		if err, ok := value.(error); ok {
			e.AnErr(key, err)
			return
		}
		e.Interface(key, value)
	}
}

// WithFields attaches every entry of fields
func WithFields(fields map[string]interface{}) Option {
	return func(e *zerolog.Event) {
		e.Fields(fields)
	}
}

// With returns a child logger that always carries the given fields
func (l *Logger) With(fields map[string]interface{}) *Logger {
	return &Logger{zl: l.zl.With().Fields(fields).Logger()}
}

func (l *Logger) Debug(msg string, opts ...Option) {
	l.emit(l.zl.Debug(), msg, opts)
}

func (l *Logger) Info(msg string, opts ...Option) {
	l.emit(l.zl.Info(), msg, opts)
}

func (l *Logger) Warn(msg string, opts ...Option) {
	l.emit(l.zl.Warn(), msg, opts)
}

func (l *Logger) Error(msg string, opts ...Option) {
	l.emit(l.zl.Error(), msg, opts)
}

func (l *Logger) emit(e *zerolog.Event, msg string, opts []Option) {
	// zerolog hands back a nil event when the level is disabled
	if e == nil {
		return
	}
	for _, opt := range opts {
		opt(e)
	}
	e.Msg(msg)
}
