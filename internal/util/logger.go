package util

import (
	"context"
	"log/slog"
	"os"
	"strings"
)

var logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

// SetupLogger replaces the process logger with one at the given level.
func SetupLogger(level string) {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn", "warning":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
	slog.SetDefault(logger)
}

func LogError(err error, args ...any) {
	if err != nil {
		logger.Error(err.Error(), args...)
	}
}

func LogInfo(msg string, args ...any) {
	logger.Info(msg, args...)
}

func LogWarn(msg string, args ...any) {
	logger.Warn(msg, args...)
}

func LogDebug(msg string, args ...any) {
	logger.Debug(msg, args...)
}

// LogInfoMap flushes a request-scoped log collected as {"info": {...}, "error": {...}}.
// Any entry under "error" raises the record to error level.
func LogInfoMap(logs map[string]map[string]any) {
	level := slog.LevelInfo
	if len(logs["error"]) > 0 {
		level = slog.LevelError
	}
	attrs := make([]any, 0, len(logs))
	for group, fields := range logs {
		if len(fields) == 0 {
			continue
		}
		kv := make([]any, 0, len(fields)*2)
		for k, v := range fields {
			kv = append(kv, k, v)
		}
		attrs = append(attrs, slog.Group(group, kv...))
	}
	logger.Log(context.Background(), level, "request", attrs...)
}
