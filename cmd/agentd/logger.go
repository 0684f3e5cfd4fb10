package main

import (
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"agentd/internal/config"
)

// newLogger builds the process logger. Unknown levels fall back to info.
func newLogger(lc config.LogConfig, w io.Writer) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(lc.Level))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	out := w
	if !strings.EqualFold(lc.Format, "json") {
		out = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}
	return zerolog.New(out).Level(lvl).With().Timestamp().Str("service", "agentd").Logger()
}
