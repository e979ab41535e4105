package app

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

// NewLogger builds the process logger. The returned closer releases the log
// file and is nil when logging to stdout only.
func NewLogger(cfg Config) (*slog.Logger, io.Closer) {
	writer, closer := logWriter(cfg)
	return NewWriterLogger(writer, cfg), closer
}

// NewWriterLogger logs to w only, ignoring LogFile. The CLI uses it to keep
// stdout free for results.
func NewWriterLogger(w io.Writer, cfg Config) *slog.Logger {
	options := &slog.HandlerOptions{Level: parseLogLevel(cfg.LogLevel)}
	if strings.ToLower(strings.TrimSpace(cfg.LogFormat)) == "json" {
		return slog.New(slog.NewJSONHandler(w, options))
	}
	return slog.New(slog.NewTextHandler(w, options))
}

func logWriter(cfg Config) (io.Writer, io.Closer) {
	path := strings.TrimSpace(cfg.LogFile)
	if path == "" {
		return os.Stdout, nil
	}
	file := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    positiveOr(cfg.LogFileMaxSizeMB, 100),
		MaxBackups: positiveOr(cfg.LogFileMaxFiles, 3),
		MaxAge:     positiveOr(cfg.LogFileMaxAgeDays, 30),
	}
	return io.MultiWriter(os.Stdout, file), file
}

func parseLogLevel(raw string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(raw)) {
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

func positiveOr(value, fallback int) int {
	if value > 0 {
		return value
	}
	return fallback
}
