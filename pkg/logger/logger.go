package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"

	charmlog "github.com/charmbracelet/log"
)

// New builds the process logger. format "json" writes structured lines for
// schedulers that ship logs; anything else gets the human readable handler.
func New(level, format string) *slog.Logger {
	return NewWithWriter(os.Stderr, level, format)
}

func NewWithWriter(w io.Writer, level, format string) *slog.Logger {
	switch strings.ToLower(format) {
	case "json":
		return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
			Level: parseSlogLevel(level),
		}))
	default:
		handler := charmlog.NewWithOptions(w, charmlog.Options{
			Level:           parseCharmLevel(level),
			ReportTimestamp: true,
		})
		return slog.New(handler)
	}
}

func parseSlogLevel(level string) slog.Level {
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

func parseCharmLevel(level string) charmlog.Level {
	l, err := charmlog.ParseLevel(strings.ToLower(level))
	if err != nil {
		return charmlog.InfoLevel
	}
	return l
}
