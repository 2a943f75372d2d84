// Package logger builds the zerolog loggers used across mirrorctl.
package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

type Config struct {
	Level  string `mapstructure:"level"`
	Debug  bool   `mapstructure:"debug"`
	Output string `mapstructure:"output"`
	// Console switches to human readable output instead of JSON lines.
	Console bool `mapstructure:"console"`
}

func New(cfg Config, fallback io.Writer) (zerolog.Logger, error) {
	level, err := parseLevel(cfg)
	if err != nil {
		return zerolog.Nop(), err
	}

	output := resolveOutput(cfg.Output, fallback)
	if cfg.Console {
		output = zerolog.ConsoleWriter{Out: output, TimeFormat: time.Kitchen, NoColor: true}
	}

	return zerolog.New(output).
		Level(level).
		With().
		Timestamp().
		Logger(), nil
}

func WithComponent(log zerolog.Logger, component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}

func parseLevel(cfg Config) (zerolog.Level, error) {
	if cfg.Debug {
		return zerolog.DebugLevel, nil
	}
	if cfg.Level == "" {
		return zerolog.InfoLevel, nil
	}

	return zerolog.ParseLevel(cfg.Level)
}

func resolveOutput(name string, fallback io.Writer) io.Writer {
	switch name {
	case "stdout":
		return os.Stdout
	case "stderr":
		return os.Stderr
	}
	if fallback != nil {
		return fallback
	}

	return os.Stderr
}
