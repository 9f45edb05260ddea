package cli

import (
	"log/slog"
	"strings"
	"time"

	"github.com/lmittmann/tint"
	"github.com/vietddude/stylelog"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/vietddude/guildwatch/internal/core/config"
)

// setupLogging installs the default logger. Console output goes through
// stylelog; with a log file configured, JSON records go to a rotating file.
func setupLogging(cfg config.LoggingConfig, debug bool) func() {
	level := parseLevel(cfg.Level)
	if debug {
		level = slog.LevelDebug
	}

	if cfg.File == "" {
		stylelog.InitDefault(&tint.Options{
			Level:      level,
			TimeFormat: time.RFC3339,
		})
		return func() {}
	}

	rotator := &lumberjack.Logger{
		Filename:   cfg.File,
		MaxSize:    cfg.MaxSizeMB,
		MaxAge:     cfg.MaxAgeDays,
		MaxBackups: cfg.MaxBackups,
		Compress:   true,
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler = slog.NewJSONHandler(rotator, opts)
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(rotator, opts)
	}
	slog.SetDefault(slog.New(handler))

	return func() { _ = rotator.Close() }
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
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
