package config

import (
	"fmt"

	"github.com/hashicorp/vault/api"
	"github.com/spf13/viper"
)

// SecretManager wraps the Vault API client for reading secrets.
type SecretManager struct {
	client *api.Client
}

// NewSecretManager creates a Vault client pointed at the given address and
// authenticated with the provided token.
func NewSecretManager(address, token string) (*SecretManager, error) {
	cfg := api.DefaultConfig()
	cfg.Address = address

	client, err := api.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("vault client initialization failed: %w", err)
	}
	client.SetToken(token)

	return &SecretManager{client: client}, nil
}

// GetKV2 reads from a KV v2 backend and returns the inner "data" map,
// unwrapping the v2 envelope automatically.
func (s *SecretManager) GetKV2(path string) (map[string]interface{}, error) {
	secret, err := s.client.Logical().Read(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read secret at %s: %w", path, err)
	}
	if secret == nil || secret.Data == nil {
		return nil, fmt.Errorf("no data found at %s", path)
	}
	data, ok := secret.Data["data"].(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("unexpected data format at %s", path)
	}
	return data, nil
}

// ApplyVault overlays secrets from Vault onto the viper instance when
// VAULT_ADDR is set. Typical keys: PG_URL, S3_ACCESS_KEY, S3_SECRET_KEY.
// Without VAULT_ADDR the environment values stand as-is.
func ApplyVault(v *viper.Viper) error {
	addr := v.GetString("VAULT_ADDR")
	if addr == "" {
		return nil
	}

	token := v.GetString("VAULT_TOKEN")
	if token == "" {
		token = "root"
	}
	path := v.GetString("VAULT_SECRET_PATH")
	if path == "" {
		path = "secret/data/cdrflow"
	}

	mgr, err := NewSecretManager(addr, token)
	if err != nil {
		return err
	}
	secrets, err := mgr.GetKV2(path)
	if err != nil {
		return fmt.Errorf("failed to load secrets from Vault: %w", err)
	}
	for key, val := range secrets {
		v.Set(key, val)
	}
	return nil
}
