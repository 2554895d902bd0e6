package types

import (
	"log/slog"
	"strings"
)

type LogLevel slog.Level

const (
	LevelTrace = slog.Level(slog.LevelDebug - 1)
	LevelDebug = slog.LevelDebug
	LevelInfo  = slog.LevelInfo
	LevelWarn  = slog.LevelWarn
	LevelError = slog.LevelError
)

var logLevelMap = map[string]slog.Level{
	"trace": LevelTrace,
	"debug": LevelDebug,
	"info":  LevelInfo,
	"warn":  LevelWarn,
	"error": LevelError,
}

// ParseLogLevel maps level names (case insensitive) to slog levels.
func ParseLogLevel(s string) (slog.Level, bool) {
	l, ok := logLevelMap[strings.ToLower(s)]
	return l, ok
}

// LevelName is meant to be used as a slog.HandlerOptions.ReplaceAttr helper
// so that our custom trace level doesn't show up as DEBUG-1.
func LevelName(l slog.Level) string {
	if l == LevelTrace {
		return "TRACE"
	}
	return l.String()
}
