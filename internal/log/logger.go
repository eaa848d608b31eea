// Package log is a thin layer over log/slog that tags every record with the
// component that wrote it.
package log

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Logger is a slog.Logger that remembers its component. root carries every
// attribute except the component so that switching components replaces the
// attribute instead of repeating it.
type Logger struct {
	*slog.Logger
	root      *slog.Logger
	component string
}

type Config struct {
	Level     slog.Level
	Component string
	Format    string // "text" or "json"
	// Handler overrides Format, mostly for tests.
	Handler slog.Handler
}

func DefaultConfig() Config {
	return Config{
		Level:     slog.LevelInfo,
		Component: ComponentApp,
		Format:    "text",
	}
}

// New builds a logger writing to stdout.
func New(config Config) *Logger {
	handler := config.Handler
	if handler == nil {
		opts := &slog.HandlerOptions{Level: config.Level}
		if config.Format == "json" {
			handler = slog.NewJSONHandler(os.Stdout, opts)
		} else {
			handler = slog.NewTextHandler(os.Stdout, opts)
		}
	}

	root := slog.New(handler)
	return newLogger(root, config.Component)
}

func newLogger(root *slog.Logger, component string) *Logger {
	l := &Logger{Logger: root, root: root, component: component}
	if component != "" {
		l.Logger = root.With(FieldComponent, component)
	}
	return l
}

// With returns a child logger carrying args on every record.
func (l *Logger) With(args ...any) *Logger {
	return newLogger(l.root.With(args...), l.component)
}

// WithComponent returns a child logger tagged with component instead of the
// current one.
func (l *Logger) WithComponent(component string) *Logger {
	if component == l.component {
		return l
	}
	return newLogger(l.root, component)
}

func (l *Logger) Component() string {
	return l.component
}

// SetDefault makes logger the slog default.
func SetDefault(logger *Logger) {
	slog.SetDefault(logger.Logger)
}

// ParseLevel maps a level name to a slog.Level, defaulting to Info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Discard returns a logger that drops every record.
func Discard() *Logger {
	return newLogger(slog.New(slog.NewTextHandler(io.Discard, nil)), "discard")
}
