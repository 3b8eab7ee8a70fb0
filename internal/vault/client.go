// Package vault retrieves runtime secrets from HashiCorp Vault. With Vault
// disabled the client degrades to an in-memory store so development setups
// can run without a Vault server.
package vault

import (
	"context"
	"fmt"
	"sync"

	"github.com/hashicorp/vault/api"

	"github.com/Waleed-Khalil/trade-analyzer/config"
)

// Secret names under the configured secret path
const (
	SecretDatabase = "database"
	SecretAuth     = "auth"
)

// DatabaseCredentials holds the Postgres login stored in Vault
type DatabaseCredentials struct {
	User     string `json:"user"`
	Password string `json:"password"`
}

// Client wraps the HashiCorp Vault client
type Client struct {
	client *api.Client
	config config.VaultConfig
	mu     sync.RWMutex
	cache  map[string]map[string]interface{}
}

// NewClient creates a new Vault client
func NewClient(cfg config.VaultConfig) (*Client, error) {
	if !cfg.Enabled {
		return &Client{
			config: cfg,
			cache:  make(map[string]map[string]interface{}),
		}, nil
	}

	vaultConfig := api.DefaultConfig()
	vaultConfig.Address = cfg.Address

	if cfg.TLSEnabled && cfg.CACert != "" {
		tlsConfig := &api.TLSConfig{
			CACert: cfg.CACert,
		}
		if err := vaultConfig.ConfigureTLS(tlsConfig); err != nil {
			return nil, fmt.Errorf("failed to configure TLS: %w", err)
		}
	}

	client, err := api.NewClient(vaultConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create vault client: %w", err)
	}

	client.SetToken(cfg.Token)

	return &Client{
		client: client,
		config: cfg,
		cache:  make(map[string]map[string]interface{}),
	}, nil
}

// StoreSecret writes a named secret under the configured path
func (c *Client) StoreSecret(ctx context.Context, name string, data map[string]interface{}) error {
	if !c.config.Enabled {
		c.mu.Lock()
		c.cache[name] = data
		c.mu.Unlock()
		return nil
	}

	secretData := map[string]interface{}{
		"data": data,
	}

	if _, err := c.client.Logical().WriteWithContext(ctx, c.secretPath(name), secretData); err != nil {
		return fmt.Errorf("failed to store secret %q in vault: %w", name, err)
	}

	c.mu.Lock()
	c.cache[name] = data
	c.mu.Unlock()

	return nil
}

// GetSecret reads a named secret, preferring the in-memory cache
func (c *Client) GetSecret(ctx context.Context, name string) (map[string]interface{}, error) {
	c.mu.RLock()
	if cached, ok := c.cache[name]; ok {
		c.mu.RUnlock()
		return cached, nil
	}
	c.mu.RUnlock()

	if !c.config.Enabled {
		return nil, fmt.Errorf("secret %q not found and vault is disabled", name)
	}

	secret, err := c.client.Logical().ReadWithContext(ctx, c.secretPath(name))
	if err != nil {
		return nil, fmt.Errorf("failed to read secret %q from vault: %w", name, err)
	}

	if secret == nil || secret.Data == nil {
		return nil, fmt.Errorf("secret %q not found", name)
	}

	data, ok := secret.Data["data"].(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("invalid secret format for %q", name)
	}

	c.mu.Lock()
	c.cache[name] = data
	c.mu.Unlock()

	return data, nil
}

// DeleteSecret removes a named secret and its cached copy
func (c *Client) DeleteSecret(ctx context.Context, name string) error {
	c.mu.Lock()
	delete(c.cache, name)
	c.mu.Unlock()

	if !c.config.Enabled {
		return nil
	}

	if _, err := c.client.Logical().DeleteWithContext(ctx, c.metadataPath(name)); err != nil {
		return fmt.Errorf("failed to delete secret %q from vault: %w", name, err)
	}

	return nil
}

// GetDatabaseCredentials returns the Postgres login stored in Vault
func (c *Client) GetDatabaseCredentials(ctx context.Context) (*DatabaseCredentials, error) {
	data, err := c.GetSecret(ctx, SecretDatabase)
	if err != nil {
		return nil, err
	}

	creds := &DatabaseCredentials{
		User:     getString(data, "user"),
		Password: getString(data, "password"),
	}
	if creds.User == "" || creds.Password == "" {
		return nil, fmt.Errorf("database credentials in vault are incomplete")
	}
	return creds, nil
}

// GetJWTSecret returns the token signing secret stored in Vault
func (c *Client) GetJWTSecret(ctx context.Context) (string, error) {
	data, err := c.GetSecret(ctx, SecretAuth)
	if err != nil {
		return "", err
	}

	secret := getString(data, "jwt_secret")
	if secret == "" {
		return "", fmt.Errorf("jwt_secret missing from vault auth secret")
	}
	return secret, nil
}

// ClearCache clears the in-memory cache
func (c *Client) ClearCache() {
	c.mu.Lock()
	c.cache = make(map[string]map[string]interface{})
	c.mu.Unlock()
}

// IsEnabled returns whether Vault is enabled
func (c *Client) IsEnabled() bool {
	return c.config.Enabled
}

// Health checks the Vault connection
func (c *Client) Health(ctx context.Context) error {
	if !c.config.Enabled {
		return nil
	}

	health, err := c.client.Sys().HealthWithContext(ctx)
	if err != nil {
		return fmt.Errorf("vault health check failed: %w", err)
	}

	if health.Sealed {
		return fmt.Errorf("vault is sealed")
	}

	return nil
}

// secretPath returns the KV v2 data path for a named secret
func (c *Client) secretPath(name string) string {
	return fmt.Sprintf("%s/data/%s/%s", c.config.MountPath, c.config.SecretPath, name)
}

// metadataPath returns the KV v2 metadata path for a named secret
func (c *Client) metadataPath(name string) string {
	return fmt.Sprintf("%s/metadata/%s/%s", c.config.MountPath, c.config.SecretPath, name)
}

func getString(data map[string]interface{}, key string) string {
	if val, ok := data[key]; ok {
		if str, ok := val.(string); ok {
			return str
		}
	}
	return ""
}

// NewMockClient creates a disabled client backed only by the in-memory cache
func NewMockClient() *Client {
	return &Client{
		config: config.VaultConfig{
			Enabled: false,
		},
		cache: make(map[string]map[string]interface{}),
	}
}
