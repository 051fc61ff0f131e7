package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Setup builds the root logger with the configured level and installs it
// as the process default. Output goes to stdout as slog text.
func Setup(level string) (*slog.Logger, error) {
	return SetupWriter(level, os.Stdout)
}

// SetupWriter is Setup with an explicit destination, for tests.
func SetupWriter(level string, w io.Writer) (*slog.Logger, error) {
	lvl, err := parseLevel(level)
	if err != nil {
		return nil, err
	}
	logger := slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl}))
	slog.SetDefault(logger)
	return logger, nil
}

// Component returns a child logger tagged with the component name.
func Component(root *slog.Logger, name string) *slog.Logger {
	return root.With("component", name)
}

func parseLevel(raw string) (slog.Leveler, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return nil, fmt.Errorf("unsupported log level: %q", raw)
	}
}
