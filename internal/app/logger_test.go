package app

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zapcore"

	"github.com/Freeeeeet/drivingschool_scheduler/internal/config"
)

func TestNewLogger_Level(t *testing.T) {
	logger := NewLogger(&config.Config{Environment: config.EnvProduction, Log: config.LogConfig{Level: "warn"}})
	assert.False(t, logger.Core().Enabled(zapcore.InfoLevel))
	assert.True(t, logger.Core().Enabled(zapcore.WarnLevel))
}

func TestNewLogger_InvalidLevelFallsBackToInfo(t *testing.T) {
	logger := NewLogger(&config.Config{Log: config.LogConfig{Level: "loud", Format: "json"}})
	assert.True(t, logger.Core().Enabled(zapcore.InfoLevel))
	assert.False(t, logger.Core().Enabled(zapcore.DebugLevel))
}
