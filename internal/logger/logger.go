package logger

import (
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"
)

type Logger = *slog.Logger

func newTintHandler(w io.Writer, level slog.Level) slog.Handler {
	return tint.NewHandler(w, &tint.Options{
		Level:      level,
		TimeFormat: time.TimeOnly,
	})
}

func NewLogger(level slog.Level) Logger {
	return slog.New(newTintHandler(os.Stderr, level))
}

// NewLoggerWithSentry creates a logger that auto-reports errors to Sentry.
// sentry.Init must have been called before the first error is logged.
func NewLoggerWithSentry(level slog.Level) Logger {
	return slog.New(NewSentryHandler(newTintHandler(os.Stderr, level)))
}
