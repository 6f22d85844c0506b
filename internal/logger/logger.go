package logger

import (
	"fmt"

	"github.com/getsentry/sentry-go"
	"github.com/incial/crm-api/internal/config"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger creates a new structured logger
func NewLogger(cfg *config.LoggingConfig, appCfg *config.AppConfig) (*zap.Logger, error) {
	var zapCfg zap.Config

	if cfg.Format == "json" || appCfg.Environment == "production" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)

	zapCfg.InitialFields = map[string]interface{}{
		"app":         appCfg.Name,
		"environment": appCfg.Environment,
	}

	logger, err := zapCfg.Build(zap.Hooks(SentryBreadcrumbs))
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	return logger, nil
}

// SentryBreadcrumbs records warnings and errors as Sentry breadcrumbs so
// captured events carry the log trail that led to them. Without an
// initialized Sentry client it does nothing.
func SentryBreadcrumbs(e zapcore.Entry) error {
	if e.Level < zapcore.WarnLevel {
		return nil
	}
	level := sentry.LevelWarning
	if e.Level >= zapcore.ErrorLevel {
		level = sentry.LevelError
	}
	sentry.AddBreadcrumb(&sentry.Breadcrumb{
		Category:  e.LoggerName,
		Message:   e.Message,
		Level:     level,
		Timestamp: e.Time,
	})
	return nil
}

// WithRequest adds request context to logger
func WithRequest(logger *zap.Logger, method, path, requestID string) *zap.Logger {
	return logger.With(
		zap.String("method", method),
		zap.String("path", path),
		zap.String("request_id", requestID),
	)
}

// WithUser adds the acting user to logger
func WithUser(logger *zap.Logger, userID, role string) *zap.Logger {
	return logger.With(
		zap.String("user_id", userID),
		zap.String("role", role),
	)
}
