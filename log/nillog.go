package log

import "log/slog"

// NewNilLogger creates a logger that discards all logs.
func NewNilLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}
