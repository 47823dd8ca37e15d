package lifecycle

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/jordansnyder/maestra-core/internal/logger"
	"github.com/rs/zerolog"
)

// InitializeLogger initializes the global logger with the provided
// configuration. If config is nil, it uses the default configuration.
func InitializeLogger(config *logger.Config) error {
	if config == nil {
		config = logger.DefaultConfig()
	}

	if err := logger.Init(config); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	return nil
}

// LoggerImpl implements logger.Logger without relying on global state.
type LoggerImpl struct {
	logger zerolog.Logger
}

// NewLoggerImpl creates a new logger implementation.
func NewLoggerImpl(config *logger.Config) (*LoggerImpl, error) {
	if config == nil {
		config = logger.DefaultConfig()
	}

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
			return nil, err
		}
	}

	timeFormat := time.RFC3339
	if config.TimeFormat != "" {
		timeFormat = config.TimeFormat
	}

	zerolog.TimeFieldFormat = timeFormat

	zlog := zerolog.New(output).
		Level(level).
		With().
		Timestamp().
		Logger()

	return &LoggerImpl{logger: zlog}, nil
}

func (l *LoggerImpl) Trace() *zerolog.Event { return l.logger.Trace() }
func (l *LoggerImpl) Debug() *zerolog.Event { return l.logger.Debug() }
func (l *LoggerImpl) Info() *zerolog.Event  { return l.logger.Info() }
func (l *LoggerImpl) Warn() *zerolog.Event  { return l.logger.Warn() }
func (l *LoggerImpl) Error() *zerolog.Event { return l.logger.Error() }
func (l *LoggerImpl) Fatal() *zerolog.Event { return l.logger.Fatal() }
func (l *LoggerImpl) Panic() *zerolog.Event { return l.logger.Panic() }
func (l *LoggerImpl) With() zerolog.Context { return l.logger.With() }

func (l *LoggerImpl) WithComponent(component string) zerolog.Logger {
	return l.logger.With().Str("component", component).Logger()
}

func (l *LoggerImpl) WithFields(fields map[string]interface{}) zerolog.Logger {
	ctx := l.logger.With()
	for key, value := range fields {
		ctx = ctx.Interface(key, value)
	}

	return ctx.Logger()
}

func (l *LoggerImpl) SetLevel(level zerolog.Level) {
	l.logger = l.logger.Level(level)
}

func (l *LoggerImpl) SetDebug(debug bool) {
	if debug {
		l.SetLevel(zerolog.DebugLevel)
	} else {
		l.SetLevel(zerolog.InfoLevel)
	}
}

// CreateComponentLogger creates a logger scoped to a specific component,
// suitable for injecting into a subsystem (registry, bus, negotiator, ...).
func CreateComponentLogger(component string, config *logger.Config) (logger.Logger, error) {
	impl, err := NewLoggerImpl(config)
	if err != nil {
		return nil, err
	}

	return &LoggerImpl{
		logger: impl.logger.With().Str("component", component).Logger(),
	}, nil
}
