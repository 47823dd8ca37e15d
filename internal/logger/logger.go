// Package logger provides JSON structured logging using zerolog.
package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// loggerInstance holds the global logger state.
type loggerInstance struct {
	logger zerolog.Logger
}

//nolint:gochecknoglobals // singleton pattern for logger state
var instance *loggerInstance

type Config struct {
	Level      string `json:"level" yaml:"level"`
	Debug      bool   `json:"debug" yaml:"debug"`
	Output     string `json:"output" yaml:"output"`
	TimeFormat string `json:"time_format" yaml:"time_format"`
}

func initDefaults() {
	if instance == nil {
		zerolog.TimeFieldFormat = time.RFC3339
		instance = &loggerInstance{
			logger: zerolog.New(os.Stdout).With().Timestamp().Logger(),
		}
	}
}

// Init configures the global logger from config. Safe to call once at
// process startup; subsystems still take their own Logger value rather
// than reaching for the package-level singleton.
func Init(config *Config) error {
	initDefaults()

	var output io.Writer = os.Stdout
	if config.Output == "stderr" {
		output = os.Stderr
	}

	level := zerolog.InfoLevel

	if config.Debug {
		level = zerolog.DebugLevel
	} else if config.Level != "" {
		var err error

		level, err = zerolog.ParseLevel(config.Level)
		if err != nil {
			return err
		}
	}

	if config.TimeFormat != "" {
		zerolog.TimeFieldFormat = config.TimeFormat
	}

	instance.logger = zerolog.New(output).
		Level(level).
		With().
		Timestamp().
		Logger()

	log.Logger = instance.logger

	return nil
}

func GetLogger() zerolog.Logger {
	initDefaults()
	return instance.logger
}

func WithComponent(component string) zerolog.Logger {
	initDefaults()
	return instance.logger.With().Str("component", component).Logger()
}
