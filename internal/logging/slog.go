// Package logging provides the two logging surfaces distilled needs: an
// operational slog.Logger for daemon/worker-pool events, and a structured
// per-invocation request logger (see logger.go). Split the same way the
// teacher's internal/logging package separates slog.go from logger.go.
package logging

import (
	"log/slog"
	"os"
	"sync/atomic"
)

var (
	opLogger atomic.Pointer[slog.Logger]
	logLevel = new(slog.LevelVar)
)

func init() {
	logLevel.Set(slog.LevelInfo)
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})
	opLogger.Store(slog.New(handler))
}

// Op returns the operational logger used for pool/worker lifecycle events.
// It is distinct from the per-invocation Logger returned by Default.
func Op() *slog.Logger {
	return opLogger.Load()
}

// SetLevel changes the operational logger's minimum level.
func SetLevel(level slog.Level) {
	logLevel.Set(level)
}

// SetLevelFromString sets the level from a config string ("debug", "info",
// "warn", "error"); unrecognized values are ignored.
func SetLevelFromString(level string) {
	switch level {
	case "debug", "DEBUG":
		logLevel.Set(slog.LevelDebug)
	case "info", "INFO":
		logLevel.Set(slog.LevelInfo)
	case "warn", "WARN", "warning", "WARNING":
		logLevel.Set(slog.LevelWarn)
	case "error", "ERROR":
		logLevel.Set(slog.LevelError)
	}
}
