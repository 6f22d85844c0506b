package config

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/incial/crm-api/internal/secrets"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// Config holds all application configuration
type Config struct {
	App           AppConfig
	Database      DatabaseConfig
	DataWarehouse DataWarehouseConfig
	Auth          AuthConfig
	ApiKey        ApiKeyConfig
	Storage       StorageConfig
	Secrets       SecretsConfig
	Logging       LoggingConfig
	Server        ServerConfig
	CORS          CORSConfig
	Security      SecurityConfig
	RateLimit     RateLimitConfig
	Redis         RedisConfig
	Alerts        AlertsConfig
	Sentry        SentryConfig
	Metrics       MetricsConfig
}

type AppConfig struct {
	Name        string
	Environment string
	Port        int
	// DefaultRegion is the ISO country used to normalize local phone numbers
	DefaultRegion string
}

type DatabaseConfig struct {
	Host            string
	Port            int
	Name            string
	User            string
	Password        string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int
}

// DataWarehouseConfig configures the optional MS SQL reporting export
type DataWarehouseConfig struct {
	Enabled bool
	// URL is host:port/database
	URL             string
	User            string
	Password        string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int
	// QueryTimeout in seconds
	QueryTimeout int
	ExportCron   string
}

// AuthConfig holds bearer token validation settings
type AuthConfig struct {
	JWTSecret string
	Issuer    string
}

type ApiKeyConfig struct {
	Value string
}

type StorageConfig struct {
	// Mode is "local" or "cloud"
	Mode                  string
	LocalBasePath         string
	CloudConnectionString string
	CloudContainer        string
	MaxUploadSizeMB       int64
}

type SecretsConfig struct {
	// Source is "environment", "vault" or "auto"
	Source       string
	KeyVaultName string
	CacheEnabled bool
	CacheTTL     int
}

type LoggingConfig struct {
	Level  string
	Format string
}

type ServerConfig struct {
	ReadTimeout    int
	WriteTimeout   int
	RequestTimeout int
	EnableSwagger  bool
}

type CORSConfig struct {
	AllowedOrigins   []string
	AllowedMethods   []string
	AllowedHeaders   []string
	ExposedHeaders   []string
	AllowCredentials bool
	MaxAge           int
}

// SecurityConfig holds security header configuration
type SecurityConfig struct {
	EnableHSTS            bool
	HSTSMaxAge            int
	HSTSIncludeSubdomains bool
	ContentSecurityPolicy string
	FrameOptions          string
	ContentTypeNosniff    bool
	ReferrerPolicy        string
	PermissionsPolicy     string
}

type RateLimitConfig struct {
	Enabled bool
	// RequestsPerMinute applies per client IP
	RequestsPerMinute int
	// RequestsPerMinuteAuth applies per authenticated user
	RequestsPerMinuteAuth int
	WhitelistIPs          []string
	WhitelistPaths        []string
}

// RedisConfig configures the alert summary cache. An empty Addr disables it.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	// SummaryTTL in seconds
	SummaryTTL int
}

// AlertsConfig controls the delay alert scanner
type AlertsConfig struct {
	Enabled bool
	Cron    string
	// Timeout bounds one scheduled scan, in seconds
	Timeout              int
	ReviewThresholdDays  int
	PaymentThresholdDays int
	InstallThresholdDays int
}

type SentryConfig struct {
	DSN         string
	Environment string
	SampleRate  float64
}

type MetricsConfig struct {
	Enabled bool
	Path    string
}

// ConnectionString builds PostgreSQL connection string
func (d *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode,
	)
}

// ConnMaxLifetimeDuration returns connection max lifetime as duration
func (d *DatabaseConfig) ConnMaxLifetimeDuration() time.Duration {
	return time.Duration(d.ConnMaxLifetime) * time.Second
}

func (s *ServerConfig) ReadTimeoutDuration() time.Duration {
	return time.Duration(s.ReadTimeout) * time.Second
}

func (s *ServerConfig) WriteTimeoutDuration() time.Duration {
	return time.Duration(s.WriteTimeout) * time.Second
}

func (s *ServerConfig) RequestTimeoutDuration() time.Duration {
	return time.Duration(s.RequestTimeout) * time.Second
}

func (d *DataWarehouseConfig) ConnMaxLifetimeDuration() time.Duration {
	return time.Duration(d.ConnMaxLifetime) * time.Second
}

func (d *DataWarehouseConfig) QueryTimeoutDuration() time.Duration {
	return time.Duration(d.QueryTimeout) * time.Second
}

func (r *RedisConfig) SummaryTTLDuration() time.Duration {
	return time.Duration(r.SummaryTTL) * time.Second
}

func (a *AlertsConfig) TimeoutDuration() time.Duration {
	return time.Duration(a.Timeout) * time.Second
}

// Load loads configuration from defaults, an optional config.json and the
// environment. Secrets are not resolved; use LoadWithSecrets for that.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("json")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// APP_PORT overrides app.port
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if cfg.ApiKey.Value == "" {
		cfg.ApiKey.Value = v.GetString("ADMIN_API_KEY")
	}
	if cfg.Auth.JWTSecret == "" {
		cfg.Auth.JWTSecret = v.GetString("JWT_SECRET")
	}
	if cfg.Secrets.KeyVaultName == "" {
		cfg.Secrets.KeyVaultName = v.GetString("AZURE_KEY_VAULT_NAME")
	}
	if cfg.Sentry.DSN == "" {
		cfg.Sentry.DSN = v.GetString("SENTRY_DSN")
	}
	if cfg.Sentry.Environment == "" {
		cfg.Sentry.Environment = cfg.App.Environment
	}

	return &cfg, nil
}

// LoadWithSecrets loads configuration and, when USE_AZURE_KEY_VAULT=true in
// staging or production, overlays secrets from Azure Key Vault. Warehouse
// credentials come from the vault whenever the export is enabled and a vault
// is named.
func LoadWithSecrets(ctx context.Context, logger *zap.Logger) (*Config, error) {
	cfg, err := Load()
	if err != nil {
		return nil, err
	}

	if cfg.DataWarehouse.Enabled && cfg.Secrets.KeyVaultName != "" {
		if err := loadDataWarehouseSecrets(ctx, cfg, logger); err != nil {
			// The export is optional; it stays disabled without credentials
			logger.Warn("failed to load data warehouse secrets", zap.Error(err))
			cfg.DataWarehouse.Enabled = false
		}
	}

	useKeyVault := strings.EqualFold(os.Getenv("USE_AZURE_KEY_VAULT"), "true")
	if !useKeyVault {
		logger.Info("using environment variables for secrets",
			zap.String("environment", cfg.App.Environment))
		return cfg, nil
	}
	if cfg.App.Environment != "staging" && cfg.App.Environment != "production" {
		logger.Warn("USE_AZURE_KEY_VAULT ignored outside staging and production",
			zap.String("environment", cfg.App.Environment))
		return cfg, nil
	}
	if cfg.Secrets.KeyVaultName == "" {
		return nil, fmt.Errorf("AZURE_KEY_VAULT_NAME is required when USE_AZURE_KEY_VAULT=true")
	}

	provider, err := secrets.NewProvider(&secrets.ProviderConfig{
		Source:       secrets.SourceVault,
		VaultName:    cfg.Secrets.KeyVaultName,
		Environment:  cfg.App.Environment,
		CacheEnabled: cfg.Secrets.CacheEnabled,
		CacheTTL:     time.Duration(cfg.Secrets.CacheTTL) * time.Second,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize secrets provider: %w", err)
	}

	if err := provider.Resolve(ctx, mainSecretBindings(cfg)); err != nil {
		return nil, err
	}
	if name := os.Getenv("DEFAULT_DATABASE"); name != "" {
		cfg.Database.Name = name
	}
	if sslMode := os.Getenv("DATABASE_SSLMODE"); sslMode != "" {
		cfg.Database.SSLMode = sslMode
	}

	logger.Info("secrets loaded from key vault",
		zap.String("key_vault_name", cfg.Secrets.KeyVaultName))
	return cfg, nil
}

func mainSecretBindings(cfg *Config) []secrets.Binding {
	return []secrets.Binding{
		{Secret: "POSTGRES-MAIN-HOST", Env: "DATABASE_HOST", Apply: func(v string) { cfg.Database.Host = v }},
		{Secret: "POSTGRES-MAIN-USER", Env: "DATABASE_USER", Apply: func(v string) { cfg.Database.User = v }},
		{Secret: "POSTGRES-MAIN-PASSWORD", Env: "DATABASE_PASSWORD", Required: true, Apply: func(v string) { cfg.Database.Password = v }},
		{Secret: "jwt-secret", Env: "JWT_SECRET", Required: true, Apply: func(v string) { cfg.Auth.JWTSecret = v }},
		{Secret: "admin-api-key", Env: "ADMIN_API_KEY", Apply: func(v string) { cfg.ApiKey.Value = v }},
		{Secret: "storage-connection-string", Env: "STORAGE_CLOUDCONNECTIONSTRING", Apply: func(v string) { cfg.Storage.CloudConnectionString = v }},
		{Secret: "redis-password", Env: "REDIS_PASSWORD", Apply: func(v string) { cfg.Redis.Password = v }},
		{Secret: "sentry-dsn", Env: "SENTRY_DSN", Apply: func(v string) { cfg.Sentry.DSN = v }},
	}
}

// loadDataWarehouseSecrets reads warehouse credentials from the vault only
func loadDataWarehouseSecrets(ctx context.Context, cfg *Config, logger *zap.Logger) error {
	provider, err := secrets.NewProvider(&secrets.ProviderConfig{
		Source:       secrets.SourceVault,
		VaultName:    cfg.Secrets.KeyVaultName,
		Environment:  cfg.App.Environment,
		CacheEnabled: cfg.Secrets.CacheEnabled,
		CacheTTL:     time.Duration(cfg.Secrets.CacheTTL) * time.Second,
	}, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize vault client for data warehouse: %w", err)
	}

	return provider.Resolve(ctx, []secrets.Binding{
		{Secret: "WAREHOUSE-URL", Required: true, Apply: func(v string) { cfg.DataWarehouse.URL = v }},
		{Secret: "WAREHOUSE-USERNAME", Required: true, Apply: func(v string) { cfg.DataWarehouse.User = v }},
		{Secret: "WAREHOUSE-PASSWORD", Required: true, Apply: func(v string) { cfg.DataWarehouse.Password = v }},
	})
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "Incial CRM API")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.port", 8080)
	v.SetDefault("app.defaultRegion", "IN")

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.name", "crm")
	v.SetDefault("database.user", "crm_user")
	v.SetDefault("database.password", "crm_password")
	v.SetDefault("database.sslMode", "disable")
	v.SetDefault("database.maxOpenConns", 25)
	v.SetDefault("database.maxIdleConns", 5)
	v.SetDefault("database.connMaxLifetime", 300)

	v.SetDefault("dataWarehouse.enabled", false)
	v.SetDefault("dataWarehouse.maxOpenConns", 10)
	v.SetDefault("dataWarehouse.maxIdleConns", 2)
	v.SetDefault("dataWarehouse.connMaxLifetime", 300)
	v.SetDefault("dataWarehouse.queryTimeout", 30)
	v.SetDefault("dataWarehouse.exportCron", "0 2 * * *")

	v.SetDefault("auth.issuer", "incial-crm")

	v.SetDefault("secrets.source", "auto")
	v.SetDefault("secrets.cacheEnabled", true)
	v.SetDefault("secrets.cacheTTL", 300)

	v.SetDefault("storage.mode", "local")
	v.SetDefault("storage.localBasePath", "./storage")
	v.SetDefault("storage.cloudContainer", "payment-proofs")
	v.SetDefault("storage.maxUploadSizeMB", 10)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")

	v.SetDefault("server.readTimeout", 30)
	v.SetDefault("server.writeTimeout", 30)
	v.SetDefault("server.requestTimeout", 60)
	v.SetDefault("server.enableSwagger", true)

	v.SetDefault("cors.allowedOrigins", []string{})
	v.SetDefault("cors.allowedMethods", []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"})
	v.SetDefault("cors.allowedHeaders", []string{"Accept", "Authorization", "Content-Type", "X-API-Key", "X-Request-ID"})
	v.SetDefault("cors.exposedHeaders", []string{"Location", "X-Request-ID"})
	v.SetDefault("cors.allowCredentials", true)
	v.SetDefault("cors.maxAge", 300)

	v.SetDefault("security.enableHSTS", false)
	v.SetDefault("security.hstsMaxAge", 31536000)
	v.SetDefault("security.hstsIncludeSubdomains", true)
	v.SetDefault("security.contentSecurityPolicy", "default-src 'self'")
	v.SetDefault("security.frameOptions", "DENY")
	v.SetDefault("security.contentTypeNosniff", true)
	v.SetDefault("security.referrerPolicy", "strict-origin-when-cross-origin")
	v.SetDefault("security.permissionsPolicy", "geolocation=(), microphone=(), camera=()")

	v.SetDefault("rateLimit.enabled", true)
	v.SetDefault("rateLimit.requestsPerMinute", 60)
	v.SetDefault("rateLimit.requestsPerMinuteAuth", 120)
	v.SetDefault("rateLimit.whitelistIPs", []string{"127.0.0.1", "::1"})
	v.SetDefault("rateLimit.whitelistPaths", []string{"/health", "/health/db", "/health/ready", "/metrics"})

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.summaryTTL", 60)

	v.SetDefault("alerts.enabled", true)
	v.SetDefault("alerts.cron", "0 * * * *")
	v.SetDefault("alerts.timeout", 300)
	v.SetDefault("alerts.reviewThresholdDays", 7)
	v.SetDefault("alerts.paymentThresholdDays", 10)
	v.SetDefault("alerts.installThresholdDays", 5)

	v.SetDefault("sentry.sampleRate", 1.0)

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")
}
