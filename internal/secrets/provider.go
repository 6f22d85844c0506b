package secrets

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
)

// SecretSource defines where secrets are loaded from
type SecretSource string

const (
	SourceEnvironment SecretSource = "environment"
	SourceVault       SecretSource = "vault"
	// SourceAuto uses the environment in development and the vault elsewhere
	SourceAuto SecretSource = "auto"
)

// ErrSecretNotFound is returned when a secret has no value in any source
var ErrSecretNotFound = errors.New("secret not found")

// Lookup fetches a named secret from one backing store
type Lookup interface {
	Get(ctx context.Context, name string) (string, error)
}

// envLookup reads secrets from environment variables. Vault-style names
// (POSTGRES-MAIN-HOST) are mapped to POSTGRES_MAIN_HOST.
type envLookup struct{}

func (envLookup) Get(_ context.Context, name string) (string, error) {
	key := strings.ToUpper(strings.ReplaceAll(name, "-", "_"))
	if v := os.Getenv(key); v != "" {
		return v, nil
	}
	return "", fmt.Errorf("%w: %s", ErrSecretNotFound, key)
}

// Provider resolves secrets with environment overrides on top of its source
type Provider struct {
	source SecretSource
	lookup Lookup
	logger *zap.Logger
}

// ProviderConfig holds configuration for the secrets provider
type ProviderConfig struct {
	Source       SecretSource
	VaultName    string
	Environment  string
	CacheEnabled bool
	CacheTTL     time.Duration
}

// ResolveSource turns SourceAuto into a concrete source for the environment
func ResolveSource(source SecretSource, environment string) SecretSource {
	if source != SourceAuto && source != "" {
		return source
	}
	switch environment {
	case "development", "local", "test", "":
		return SourceEnvironment
	default:
		return SourceVault
	}
}

// NewProvider creates a provider backed by the configured source
func NewProvider(cfg *ProviderConfig, logger *zap.Logger) (*Provider, error) {
	source := ResolveSource(cfg.Source, cfg.Environment)

	var lookup Lookup = envLookup{}
	if source == SourceVault {
		vault, err := NewVaultClient(&VaultConfig{
			VaultName:    cfg.VaultName,
			CacheEnabled: cfg.CacheEnabled,
			CacheTTL:     cfg.CacheTTL,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize vault client: %w", err)
		}
		lookup = vault
	}

	logger.Info("secrets provider initialized",
		zap.String("source", string(source)),
		zap.String("environment", cfg.Environment))

	return &Provider{source: source, lookup: lookup, logger: logger}, nil
}

// NewProviderWithLookup builds a provider on an arbitrary store
func NewProviderWithLookup(source SecretSource, lookup Lookup, logger *zap.Logger) *Provider {
	return &Provider{source: source, lookup: lookup, logger: logger}
}

// GetSecret retrieves a secret from the configured source only
func (p *Provider) GetSecret(ctx context.Context, name string) (string, error) {
	return p.lookup.Get(ctx, name)
}

// GetSecretOrEnv prefers an explicitly set environment variable over the source
func (p *Provider) GetSecretOrEnv(ctx context.Context, name, envName string) (string, error) {
	if v := os.Getenv(envName); v != "" {
		p.logger.Debug("using environment override for secret", zap.String("env_name", envName))
		return v, nil
	}
	return p.GetSecret(ctx, name)
}

// Binding ties one secret to the config field it fills
type Binding struct {
	Secret   string
	Env      string
	Required bool
	Apply    func(value string)
}

// Resolve fills every binding it can. Missing optional secrets are skipped;
// a missing required secret stops resolution.
func (p *Provider) Resolve(ctx context.Context, bindings []Binding) error {
	for _, b := range bindings {
		var (
			value string
			err   error
		)
		if b.Env != "" {
			value, err = p.GetSecretOrEnv(ctx, b.Secret, b.Env)
		} else {
			value, err = p.GetSecret(ctx, b.Secret)
		}
		if err != nil || value == "" {
			if b.Required {
				return fmt.Errorf("failed to resolve secret %s: %w", b.Secret, err)
			}
			p.logger.Debug("optional secret not set", zap.String("secret_name", b.Secret))
			continue
		}
		b.Apply(value)
	}
	return nil
}

// Source returns the resolved secret source
func (p *Provider) Source() SecretSource {
	return p.source
}

// IsVaultEnabled returns true if secrets are loaded from vault
func (p *Provider) IsVaultEnabled() bool {
	return p.source == SourceVault
}
