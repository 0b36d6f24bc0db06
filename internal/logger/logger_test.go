package logger

import (
	"testing"

	"github.com/straye-as/sheet-ledger/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNewLogger(t *testing.T) {
	tests := []struct {
		name    string
		logging config.LoggingConfig
		env     string
		level   zapcore.Level
	}{
		{"console debug", config.LoggingConfig{Level: "debug", Format: "console"}, "development", zapcore.DebugLevel},
		{"json warn", config.LoggingConfig{Level: "warn", Format: "json"}, "development", zapcore.WarnLevel},
		{"bad level falls back to info", config.LoggingConfig{Level: "loud"}, "production", zapcore.InfoLevel},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			log, err := NewLogger(&tt.logging, &config.AppConfig{Name: "ledger", Environment: tt.env})
			require.NoError(t, err)
			assert.True(t, log.Core().Enabled(tt.level))
			if tt.level > zapcore.DebugLevel {
				assert.False(t, log.Core().Enabled(tt.level-1))
			}
		})
	}
}
