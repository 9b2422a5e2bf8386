// Package logger builds the application's slog.Logger.
package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Output formats.
const (
	FormatText = "text"
	FormatJSON = "json"
)

// New returns a logger writing to w (os.Stdout when nil) at the given level.
//
// format is FormatText or FormatJSON; an empty format picks JSON in production
// and text everywhere else.
func New(w io.Writer, level, format, env string) *slog.Logger {
	if w == nil {
		w = os.Stdout
	}
	if format == "" {
		format = FormatText
		if env == "production" {
			format = FormatJSON
		}
	}

	opts := &slog.HandlerOptions{Level: ParseLevel(level)}

	var handler slog.Handler
	if format == FormatJSON {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	return slog.New(handler).With(slog.String("app", "markdown-blog"))
}

// ParseLevel converts a level name to slog.Level. Unknown names mean Info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
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
