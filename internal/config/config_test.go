package config_test

import (
	"os"
	"testing"
	"time"

	"github.com/incial/crm-api/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.App.Port)
	assert.Equal(t, "IN", cfg.App.DefaultRegion)
	assert.Equal(t, "local", cfg.Storage.Mode)
	assert.Equal(t, "0 * * * *", cfg.Alerts.Cron)
	assert.Equal(t, 7, cfg.Alerts.ReviewThresholdDays)
	assert.Equal(t, 10, cfg.Alerts.PaymentThresholdDays)
	assert.Equal(t, 5, cfg.Alerts.InstallThresholdDays)
	assert.Equal(t, time.Minute, cfg.Redis.SummaryTTLDuration())
	assert.Equal(t, 5*time.Minute, cfg.Alerts.TimeoutDuration())
	assert.False(t, cfg.DataWarehouse.Enabled)
	assert.Equal(t, "/metrics", cfg.Metrics.Path)
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("APP_PORT", "9090")
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("ADMIN_API_KEY", "key-123")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.App.Port)
	assert.Equal(t, "test-secret", cfg.Auth.JWTSecret)
	assert.Equal(t, "key-123", cfg.ApiKey.Value)
	assert.Equal(t, cfg.App.Environment, cfg.Sentry.Environment)
}

func TestDatabaseConfig_ConnectionString(t *testing.T) {
	d := config.DatabaseConfig{Host: "db", Port: 5432, User: "u", Password: "p", Name: "crm", SSLMode: "require"}
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=crm sslmode=require", d.ConnectionString())
}

// chdir mirrors testing.T.Chdir (Go 1.24+) for older toolchains.
func chdir(t *testing.T, dir string) {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
}
