package log

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/Nicolasg7777/TicketWorkflowTracker/internal/config"
)

// logDirMode matches the out/ directory the store and report live in.
const logDirMode = 0o755

// NewRotatingWriter opens cfg.File for appending through lumberjack. The
// config layer has already validated the size, count and age limits; a zero
// MaxFiles or MaxAgeDays disables that bound.
func NewRotatingWriter(cfg config.LoggingConfig) (*lumberjack.Logger, error) {
	if cfg.File == "" {
		return nil, fmt.Errorf("log file path must not be empty")
	}
	if cfg.MaxSizeMB <= 0 {
		return nil, fmt.Errorf("log max size must be positive (got %d MB)", cfg.MaxSizeMB)
	}

	if err := os.MkdirAll(filepath.Dir(cfg.File), logDirMode); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}

	return &lumberjack.Logger{
		Filename:   cfg.File,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxFiles,
		MaxAge:     cfg.MaxAgeDays,
		Compress:   cfg.Compress,
		LocalTime:  true,
	}, nil
}
