package config

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// NewLogger builds the process logger on stdout and installs it as the
// zerolog global. Unknown levels fall back to info.
func NewLogger(cfg LoggingConfig, environment string) zerolog.Logger {
	logger := newLogger(os.Stdout, cfg, environment)
	log.Logger = logger
	return logger
}

func newLogger(out io.Writer, cfg LoggingConfig, environment string) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339Nano

	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	if strings.EqualFold(cfg.Format, "console") {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}

	ctx := zerolog.New(out).Level(level).With().Timestamp().Str("service", "eventease")
	if environment != "" {
		ctx = ctx.Str("env", environment)
	}
	if level <= zerolog.DebugLevel {
		ctx = ctx.Caller()
	}
	return ctx.Logger()
}
