package config

import "os"

// Environment variable names for overrides, applied after the TOML file
// so a one-off invocation can redirect a vault without editing its
// config.
const (
	EnvConfigPath = "VAULTSYNC_CONFIG"
	EnvVaultRoot  = "VAULTSYNC_VAULT_ROOT"
	EnvRemoteURL  = "VAULTSYNC_REMOTE_URL"
	EnvBearer     = "VAULTSYNC_BEARER_TOKEN"
)

// DefaultConfigPathOrEnv returns EnvConfigPath if set, otherwise
// DefaultConfigPath().
func DefaultConfigPathOrEnv() string {
	if p := os.Getenv(EnvConfigPath); p != "" {
		return p
	}
	return DefaultConfigPath()
}

// ApplyEnv overlays environment variable overrides onto cfg in place.
func ApplyEnv(cfg *Config) {
	if v := os.Getenv(EnvVaultRoot); v != "" {
		cfg.Vault.Root = v
	}
	if v := os.Getenv(EnvRemoteURL); v != "" {
		cfg.Remote.URL = v
	}
	if v := os.Getenv(EnvBearer); v != "" {
		cfg.Remote.Bearer = v
	}
}
