package commands

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/koscakluka/ema-edge/internal/config"
)

// newLogger builds the process logger. While the terminal display owns
// the screen, logs go to a file so they do not tear the UI.
func newLogger(cfg config.LoggingConfig, displayActive bool) (*slog.Logger, func() error, error) {
	level, err := parseLevel(cfg.Level)
	if err != nil {
		return nil, nil, err
	}

	var out io.Writer = os.Stderr
	closeFn := func() error { return nil }

	path := cfg.File
	if path == "" && displayActive {
		path = config.DefaultLogFile
	}
	if path != "" {
		file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open log file %s: %w", path, err)
		}
		out, closeFn = file, file.Close
	}

	return slog.New(newHandler(out, cfg.Format, level)), closeFn, nil
}

func newStderrLogger(level slog.Level) *slog.Logger {
	return slog.New(newHandler(os.Stderr, "text", level))
}

func newHandler(out io.Writer, format string, level slog.Level) slog.Handler {
	opts := &slog.HandlerOptions{Level: level}
	if format == "json" {
		return slog.NewJSONHandler(out, opts)
	}
	return slog.NewTextHandler(out, opts)
}

func parseLevel(name string) (slog.Level, error) {
	if name == "" {
		return slog.LevelInfo, nil
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(name)); err != nil {
		return 0, fmt.Errorf("invalid log level %q: %w", name, err)
	}
	return level, nil
}
