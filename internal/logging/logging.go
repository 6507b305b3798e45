package logging

import (
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// return new logger with <loglevel> debug,info,warn,error and optional
// key/value context pairs, e.g. NewLogger("info", "component", "SyncRunner")

func NewLogger(logLevel string, keyvals ...string) *zerolog.Logger {

	// Set log output format
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}).With().Timestamp().Logger()
	zerolog.TimestampFunc = func() time.Time {
		return time.Now().UTC()
	}
	// Set log level, default info
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	switch strings.ToLower(logLevel) {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	}
	for k := 0; k+1 < len(keyvals); k += 2 {
		logger = logger.With().Str(keyvals[k], keyvals[k+1]).Logger()
	}
	return &logger
}
