// Package config loads vaultsync's TOML configuration: the vault root,
// the remote endpoint and credentials, filter patterns, and the engine's
// tunable thresholds.
package config

// Config is the top-level configuration structure for one vault.
type Config struct {
	Vault   VaultConfig   `toml:"vault"`
	Remote  RemoteConfig  `toml:"remote"`
	Filter  FilterConfig  `toml:"filter"`
	Engine  EngineConfig  `toml:"engine"`
	Logging LoggingConfig `toml:"logging"`
}

// VaultConfig locates the local vault and its reserved metadata dir.
type VaultConfig struct {
	Root              string `toml:"root"`
	ReservedHiddenDir string `toml:"reserved_hidden_dir"`
}

// RemoteConfig describes the WebDAV endpoint and its credentials.
type RemoteConfig struct {
	URL      string `toml:"url"`
	Base     string `toml:"base"`
	Username string `toml:"username"`
	Password string `toml:"password"`
	Bearer   string `toml:"bearer_token"`
}

// FilterConfig controls which vault paths are eligible for sync.
type FilterConfig struct {
	SkipPatterns   []string `toml:"skip_patterns"`
	IgnoreFileName string   `toml:"ignore_file_name"`
}

// EngineConfig tunes the reconciliation and execution engine.
type EngineConfig struct {
	ClockSkewToleranceSecs int `toml:"clock_skew_tolerance_secs"`
	Parallelism            int `toml:"parallelism"`
	OperationTimeoutSecs   int `toml:"operation_timeout_secs"`
}

// LoggingConfig controls structured log output.
type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"` // "auto", "text" or "json"; "auto" logs as text
}
