package logger_test

import (
	"testing"

	"github.com/incial/crm-api/internal/config"
	"github.com/incial/crm-api/internal/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNewLogger(t *testing.T) {
	t.Run("json in production", func(t *testing.T) {
		log, err := logger.NewLogger(&config.LoggingConfig{Level: "warn", Format: "console"},
			&config.AppConfig{Name: "crm", Environment: "production"})
		require.NoError(t, err)
		assert.False(t, log.Core().Enabled(zapcore.InfoLevel))
		assert.True(t, log.Core().Enabled(zapcore.WarnLevel))
	})

	t.Run("unknown level falls back to info", func(t *testing.T) {
		log, err := logger.NewLogger(&config.LoggingConfig{Level: "loud"},
			&config.AppConfig{Name: "crm", Environment: "development"})
		require.NoError(t, err)
		assert.True(t, log.Core().Enabled(zapcore.InfoLevel))
		assert.False(t, log.Core().Enabled(zapcore.DebugLevel))
	})
}

func TestSentryBreadcrumbs_NoClient(t *testing.T) {
	assert.NoError(t, logger.SentryBreadcrumbs(zapcore.Entry{Level: zapcore.ErrorLevel, Message: "boom"}))
	assert.NoError(t, logger.SentryBreadcrumbs(zapcore.Entry{Level: zapcore.InfoLevel, Message: "fine"}))
}
