package logging

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestNewLoggerLevel(t *testing.T) {
	logger := NewLogger("debug", "component", "test")
	assert.NotNil(t, logger)
	assert.Equal(t, zerolog.DebugLevel, zerolog.GlobalLevel())

	NewLogger("error")
	assert.Equal(t, zerolog.ErrorLevel, zerolog.GlobalLevel())

	// unknown levels fall back to info
	NewLogger("verbose")
	assert.Equal(t, zerolog.InfoLevel, zerolog.GlobalLevel())
}
