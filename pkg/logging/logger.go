package logging

import (
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"

	"github.com/udec-estadio/humidityboard/pkg/config"
)

const appName = "humidityboard"

// New builds the process logger: colored text in dev, JSON in prod. Logs go
// to stderr so command output on stdout stays clean.
func New(cfg config.Config, version string) *slog.Logger {
	return newWithWriter(os.Stderr, cfg, version)
}

func newWithWriter(w io.Writer, cfg config.Config, version string) *slog.Logger {
	if cfg.AppEnv != "prod" {
		h := tint.NewHandler(w, &tint.Options{
			Level:      cfg.LogLevel,
			AddSource:  cfg.LogLevel <= slog.LevelDebug,
			TimeFormat: time.Kitchen,
		})
		return slog.New(h).With("app", appName)
	}

	h := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	})
	return slog.New(h).With(
		"app", appName,
		"version", version,
		"env", cfg.AppEnv,
	)
}
