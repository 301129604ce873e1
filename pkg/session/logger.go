package session

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// LoggingConfig selects the level and format of the connection logger
type LoggingConfig struct {
	Output io.Writer `yaml:"-"`
	Level  string    `yaml:"level" validate:"omitempty,oneof=trace debug info warn error disabled"`
	Format string    `yaml:"format" validate:"omitempty,oneof=json console"`
}

// NewLogger builds a zerolog logger. An unknown or empty level means info and
// the output defaults to stderr.
func NewLogger(cfg LoggingConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}

	output := cfg.Output
	if output == nil {
		output = os.Stderr
	}
	if cfg.Format == "console" {
		output = zerolog.ConsoleWriter{Out: output, TimeFormat: time.RFC3339}
	}

	return zerolog.New(output).
		Level(level).
		With().
		Timestamp().
		Str("component", "tablequery").
		Logger()
}
