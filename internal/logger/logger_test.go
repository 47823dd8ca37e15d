package logger

import (
	"testing"

	"github.com/rs/zerolog"
)

func TestInit(t *testing.T) {
	config := &Config{
		Level:  "debug",
		Debug:  true,
		Output: "stdout",
	}

	err := Init(config)
	if err != nil {
		t.Fatalf("Failed to initialize logger: %v", err)
	}

	logger := GetLogger()
	if logger.GetLevel() != zerolog.DebugLevel {
		t.Errorf("Expected debug level, got %v", logger.GetLevel())
	}
}

func TestWithComponent(t *testing.T) {
	componentLogger := WithComponent("test-component")

	if componentLogger.GetLevel() == zerolog.Disabled {
		t.Error("Component logger should not be disabled")
	}
}

func TestFieldLogger(t *testing.T) {
	logger := GetLogger()
	fieldLogger := NewFieldLogger(&logger)

	if fieldLogger == nil {
		t.Fatal("FieldLogger should not be nil")
	}

	enrichedLogger := fieldLogger.WithField("test", "value")
	if enrichedLogger == nil {
		t.Error("WithField should return a valid logger")
	}

	fields := map[string]interface{}{
		"key1": "value1",
		"key2": 42,
	}

	enrichedLogger2 := fieldLogger.WithFields(fields)
	if enrichedLogger2 == nil {
		t.Error("WithFields should return a valid logger")
	}
}

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	if config.Level == "" {
		t.Error("Default config should have a level set")
	}

	if config.Output == "" {
		t.Error("Default config should have an output set")
	}
}
