package obs

import (
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// SetupLogger builds the root service logger. Handlers keep the gin access
// log; this logger is for the service layer.
func SetupLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		lvl = zerolog.InfoLevel
	}

	zerolog.TimeFieldFormat = time.RFC3339Nano

	return zerolog.New(os.Stdout).With().Timestamp().Logger().Level(lvl)
}
