// internal/logger/logger.go
package logger

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Logger is the process-wide logger. It is usable before InitConsole is
// called and writes JSON to stderr until then.
var Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()

// InitConsole switches Logger to human-readable console output.
func InitConsole() {
	Init(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
}

// Init points Logger at w. Tests use it to capture output.
func Init(w io.Writer) {
	Logger = zerolog.New(w).With().Timestamp().Logger()
}

// SetLevel sets the global level from a name such as "debug" or "info".
// Environment names are accepted too: "local" and "dev" mean debug, "prod" means info.
func SetLevel(level string) error {
	switch level {
	case "local", "dev":
		level = "debug"
	case "prod":
		level = "info"
	}
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("parse log level: %w", err)
	}
	zerolog.SetGlobalLevel(lvl)
	return nil
}

// Component returns a child logger tagged with the component name.
func Component(name string) zerolog.Logger {
	return Logger.With().Str("component", name).Logger()
}

// CronLogger adapts zerolog to robfig/cron's Logger interface.
type CronLogger struct {
	L zerolog.Logger
}

func (c CronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.L.Debug().Fields(keysAndValues).Msg(msg)
}

func (c CronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.L.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
