package mcup

import (
	"os"
	"time"

	"github.com/rs/zerolog"
)

// NewConsoleLogger builds a human-readable stderr logger at the given level.
// Unknown or empty levels default to info. Pass the result to WithLogger;
// without it the session stays silent.
func NewConsoleLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}

	output := zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: time.RFC3339,
	}
	return zerolog.New(output).With().Timestamp().Str("app", "mcup").Logger().Level(lvl)
}
