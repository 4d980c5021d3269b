package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/fyrsmithlabs/indexd/internal/config"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    zapcore.Level
		wantErr bool
	}{
		{"", zapcore.InfoLevel, false},
		{"info", zapcore.InfoLevel, false},
		{"debug", zapcore.DebugLevel, false},
		{"warn", zapcore.WarnLevel, false},
		{"error", zapcore.ErrorLevel, false},
		{"verbose", zapcore.InvalidLevel, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, config.ErrInvalidConfig)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNew(t *testing.T) {
	logger, err := New(&config.LoggingConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	require.NotNil(t, logger)
	logger.Debug("probe")

	_, err = New(&config.LoggingConfig{Level: "nope", Format: "json"})
	assert.Error(t, err)
}

func TestNewTestLogger(t *testing.T) {
	logger, logs := NewTestLogger()
	logger.Info("hello")
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "hello", logs.All()[0].Message)
}
