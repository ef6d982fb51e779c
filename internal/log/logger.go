// Package log configures the process logger: JSON records through a
// redacting handler, written to stderr or a size-rotated file.
package log

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/Nicolasg7777/TicketWorkflowTracker/internal/config"
)

// Logger owns the handler chain and, when logging to a file, the rotating
// writer that must be closed on exit.
type Logger struct {
	*slog.Logger
	closer io.Closer
}

func (l *Logger) Close() error {
	if l == nil || l.closer == nil {
		return nil
	}
	return l.closer.Close()
}

func ParseLevel(raw string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("unknown log level %q", raw)
	}
}

// New builds a logger from cfg. Records go to cfg.File when set, otherwise
// to stderr.
func New(cfg config.LoggingConfig, stderr io.Writer) (*Logger, error) {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}

	var (
		sink   io.Writer = stderr
		closer io.Closer
	)
	if cfg.File != "" {
		writer, err := NewRotatingWriter(cfg)
		if err != nil {
			return nil, err
		}
		sink = writer
		closer = writer
	}
	if sink == nil {
		sink = io.Discard
	}

	base := slog.NewJSONHandler(sink, &slog.HandlerOptions{Level: level})
	return &Logger{
		Logger: slog.New(NewRedactingHandler(base)),
		closer: closer,
	}, nil
}
