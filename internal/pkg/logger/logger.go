// Package logger builds the slog logger used as the local console sink.
package logger

import (
	"io"
	"log/slog"
	"os"

	"github.com/V4T54L/actionlog/internal/domain"
)

// New returns a text logger on stderr honouring LOG_LEVEL.
func New(level string) *slog.Logger {
	return NewWithWriter(os.Stderr, level, false)
}

// NewForEnv picks JSON output in production and text output elsewhere.
func NewForEnv(level string, production bool) *slog.Logger {
	return NewWithWriter(os.Stderr, level, production)
}

// NewWithWriter is New with an explicit destination.
func NewWithWriter(w io.Writer, level string, json bool) *slog.Logger {
	opts := &slog.HandlerOptions{Level: SlogLevel(parseOrInfo(level))}
	if json {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// SlogLevel maps a pipeline level onto slog's scale.
func SlogLevel(l domain.Level) slog.Level {
	switch l {
	case domain.LevelDebug:
		return slog.LevelDebug
	case domain.LevelWarn:
		return slog.LevelWarn
	case domain.LevelError:
		return slog.LevelError
	}
	return slog.LevelInfo
}

func parseOrInfo(level string) domain.Level {
	l, err := domain.ParseLevel(level)
	if err != nil {
		return domain.LevelInfo
	}
	return l
}
