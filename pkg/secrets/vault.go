package secrets

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"conversation-analytics/backend/pkg/logger"

	vault "github.com/hashicorp/vault/api"
)

// Common errors
var (
	ErrSecretNotFound = errors.New("secret not found")
	ErrNoVaultToken   = errors.New("no vault token provided")
	ErrNoVaultAddress = errors.New("no vault address provided")
)

// VaultConfig holds configuration for Vault client
type VaultConfig struct {
	Address    string
	Token      string
	Namespace  string
	Mount      string
	Path       string
	Timeout    time.Duration
	MaxRetries int
	CacheTTL   time.Duration
	Enabled    bool
}

// ConfigFromEnv reads VAULT_ENABLED, VAULT_ADDR, VAULT_TOKEN, VAULT_NAMESPACE,
// VAULT_MOUNT and VAULT_SECRETS_PATH. Vault is disabled unless VAULT_ENABLED is set.
func ConfigFromEnv() VaultConfig {
	cfg := VaultConfig{
		Address:    os.Getenv("VAULT_ADDR"),
		Token:      os.Getenv("VAULT_TOKEN"),
		Namespace:  os.Getenv("VAULT_NAMESPACE"),
		Mount:      os.Getenv("VAULT_MOUNT"),
		Path:       os.Getenv("VAULT_SECRETS_PATH"),
		Timeout:    10 * time.Second,
		MaxRetries: 3,
		CacheTTL:   5 * time.Minute,
	}
	switch strings.ToLower(os.Getenv("VAULT_ENABLED")) {
	case "true", "1", "yes":
		cfg.Enabled = true
	}
	return cfg
}

type cached struct {
	value   string
	expires time.Time
}

// VaultManager reads secrets from a Vault KVv2 mount, falling back to the
// environment when Vault is disabled or the key is absent.
type VaultManager struct {
	client *vault.Client
	config VaultConfig
	cache  map[string]cached
	mu     sync.RWMutex
	log    *logger.Logger
	now    func() time.Time
}

// NewVaultManager creates a new Vault manager instance
func NewVaultManager(config VaultConfig, log *logger.Logger) (*VaultManager, error) {
	if log == nil {
		log = logger.GetGlobal()
	}
	if config.Mount == "" {
		config.Mount = "secret"
	}
	if config.Path == "" {
		config.Path = "conversation-analytics"
	}
	if config.CacheTTL <= 0 {
		config.CacheTTL = 5 * time.Minute
	}

	m := &VaultManager{
		config: config,
		cache:  make(map[string]cached),
		log:    log,
		now:    time.Now,
	}
	if !config.Enabled {
		return m, nil
	}

	if config.Address == "" {
		return nil, ErrNoVaultAddress
	}
	if config.Token == "" {
		return nil, ErrNoVaultToken
	}

	vaultConfig := vault.DefaultConfig()
	vaultConfig.Address = config.Address
	vaultConfig.Timeout = config.Timeout
	vaultConfig.MaxRetries = config.MaxRetries

	client, err := vault.NewClient(vaultConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create vault client: %w", err)
	}
	client.SetToken(config.Token)
	if config.Namespace != "" {
		client.SetNamespace(config.Namespace)
	}
	m.client = client

	return m, nil
}

// GetSecret retrieves a secret from Vault, with fallback to environment variable
func (m *VaultManager) GetSecret(ctx context.Context, key string) (string, error) {
	if value, ok := m.cached(key); ok {
		return value, nil
	}

	if m.client == nil {
		return m.getFromEnvironment(key)
	}

	value, err := m.getFromVault(ctx, key)
	if err != nil {
		if errors.Is(err, ErrSecretNotFound) {
			m.log.Warn("Secret not found in Vault, falling back to environment", "key", key)
			return m.getFromEnvironment(key)
		}
		return "", err
	}

	m.cacheSecret(key, value)
	return value, nil
}

// GetSecretWithDefault retrieves a secret with a default value if not found
func (m *VaultManager) GetSecretWithDefault(ctx context.Context, key, defaultValue string) string {
	value, err := m.GetSecret(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrSecretNotFound) {
			m.log.Warn("Failed to get secret, using default value",
				"key", key,
				"error", err.Error(),
			)
		}
		return defaultValue
	}
	return value
}

func (m *VaultManager) getFromVault(ctx context.Context, key string) (string, error) {
	secret, err := m.client.KVv2(m.config.Mount).Get(ctx, m.config.Path)
	if err != nil {
		if errors.Is(err, vault.ErrSecretNotFound) {
			return "", ErrSecretNotFound
		}
		m.log.Error("Failed to read secret from Vault",
			"mount", m.config.Mount,
			"path", m.config.Path,
			"error", err.Error(),
		)
		return "", fmt.Errorf("failed to read secret: %w", err)
	}
	if secret == nil || secret.Data == nil {
		return "", ErrSecretNotFound
	}

	value, ok := secret.Data[key].(string)
	if !ok || value == "" {
		return "", ErrSecretNotFound
	}
	return value, nil
}

// getFromEnvironment maps db.password or db-password to DB_PASSWORD
func (m *VaultManager) getFromEnvironment(key string) (string, error) {
	envKey := strings.ToUpper(strings.NewReplacer("-", "_", ".", "_").Replace(key))

	value := os.Getenv(envKey)
	if value == "" {
		return "", ErrSecretNotFound
	}

	m.cacheSecret(key, value)
	return value, nil
}

func (m *VaultManager) cached(key string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	entry, ok := m.cache[key]
	if !ok || m.now().After(entry.expires) {
		return "", false
	}
	return entry.value, true
}

func (m *VaultManager) cacheSecret(key, value string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cache[key] = cached{value: value, expires: m.now().Add(m.config.CacheTTL)}
}
