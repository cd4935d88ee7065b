package config

// Default values for configuration options, the "layer 0" of the
// file-then-environment override chain Load applies.
const (
	defaultReservedHiddenDir     = ".vaultsync"
	defaultIgnoreFileName        = ".vaultignore"
	defaultClockSkewToleranceSec = 2
	defaultParallelism           = 4
	defaultOperationTimeoutSecs  = 30
	defaultLogLevel              = "info"
	defaultLogFormat             = "auto"
)

// DefaultConfig returns a Config populated with every default value. It
// is the starting point for TOML decoding, so fields absent from the
// file on disk retain sensible defaults rather than zero values.
func DefaultConfig() *Config {
	return &Config{
		Vault: VaultConfig{
			ReservedHiddenDir: defaultReservedHiddenDir,
		},
		Filter: FilterConfig{
			IgnoreFileName: defaultIgnoreFileName,
		},
		Engine: EngineConfig{
			ClockSkewToleranceSecs: defaultClockSkewToleranceSec,
			Parallelism:            defaultParallelism,
			OperationTimeoutSecs:   defaultOperationTimeoutSecs,
		},
		Logging: LoggingConfig{
			Level:  defaultLogLevel,
			Format: defaultLogFormat,
		},
	}
}
