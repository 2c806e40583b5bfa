package credential

import (
	"fmt"
	"os"
)

// ConfigStore is the subset of the configuration store the keyring needs.
type ConfigStore interface {
	SetConfig(key, value string) error
	GetConfig(key string) (string, error)
	DeleteConfig(key string) error
}

// envKeys lists the environment variables consulted per provider, in order.
var envKeys = map[string][]string{
	"openai":    {"OPENAI_API_KEY"},
	"gemini":    {"GEMINI_API_KEY", "GOOGLE_API_KEY"},
	"anthropic": {"ANTHROPIC_API_KEY"},
	"matrix":    {"MATRIX_ACCESS_TOKEN"},
}

// Keyring stores provider API keys, and the Matrix access token, sealed
// under "<provider>.api_key".
type Keyring struct {
	store  ConfigStore
	sealer *Sealer
	getenv func(string) string
}

func NewKeyring(store ConfigStore, sealer *Sealer) *Keyring {
	return &Keyring{store: store, sealer: sealer, getenv: os.Getenv}
}

// StoreKey returns the configuration key holding a provider's API key.
func StoreKey(provider string) string {
	return provider + ".api_key"
}

// Set seals and stores the key for a provider.
func (k *Keyring) Set(provider, apiKey string) error {
	sealed, err := k.sealer.Seal(apiKey)
	if err != nil {
		return err
	}
	return k.store.SetConfig(StoreKey(provider), sealed)
}

// Delete removes a stored key.
func (k *Keyring) Delete(provider string) error {
	return k.store.DeleteConfig(StoreKey(provider))
}

// Resolve returns the key for a provider. A stored key wins over the
// environment. An empty result with a nil error means none is configured.
func (k *Keyring) Resolve(provider string) (string, error) {
	stored, err := k.store.GetConfig(StoreKey(provider))
	if err != nil {
		return "", fmt.Errorf("read %s: %w", StoreKey(provider), err)
	}
	if stored != "" {
		key, err := k.sealer.Open(stored)
		if err != nil {
			return "", fmt.Errorf("open %s: %w", StoreKey(provider), err)
		}
		return key, nil
	}
	for _, name := range envKeys[provider] {
		if v := k.getenv(name); v != "" {
			return v, nil
		}
	}
	return "", nil
}
