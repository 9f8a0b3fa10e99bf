package engine

import (
	"io"
	"log/slog"
	"strings"
)

// NewLogger constructs a text logger at the level named by raw
// (debug, info, warn, error; anything else means info).
func NewLogger(w io.Writer, raw string) *slog.Logger {
	h := slog.NewTextHandler(w, &slog.HandlerOptions{Level: parseLevel(raw)})
	return slog.New(h)
}

func parseLevel(raw string) slog.Level {
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
