package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// New builds a slog.Logger writing to w (stderr when nil). format is "text"
// or "json"; level is one of debug, info, warn, error.
func New(w io.Writer, format, level string) (*slog.Logger, error) {
	if w == nil {
		w = os.Stderr
	}
	lvl, err := ParseLevel(level)
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: lvl}
	var handler slog.Handler
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", "text":
		handler = slog.NewTextHandler(w, opts)
	case "json":
		handler = slog.NewJSONHandler(w, opts)
	default:
		return nil, fmt.Errorf("unknown log format %q", format)
	}
	return slog.New(handler), nil
}

// Noop discards everything.
func Noop() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func ParseLevel(level string) (slog.Level, error) {
	var lvl slog.Level
	raw := strings.TrimSpace(level)
	if raw == "" {
		return slog.LevelInfo, nil
	}
	if err := lvl.UnmarshalText([]byte(raw)); err != nil {
		return 0, fmt.Errorf("unknown log level %q", level)
	}
	return lvl, nil
}
