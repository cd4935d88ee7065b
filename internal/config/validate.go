package config

import (
	"errors"
	"fmt"
)

var (
	ErrVaultRootRequired = errors.New("config: vault.root is required")
	ErrRemoteURLRequired = errors.New("config: remote.url is required")
)

// Validate checks a Config for the minimum fields required to start a
// sync engine, and rejects nonsensical tunables.
func Validate(cfg *Config) error {
	if cfg.Vault.Root == "" {
		return ErrVaultRootRequired
	}
	if cfg.Remote.URL == "" {
		return ErrRemoteURLRequired
	}
	if cfg.Engine.Parallelism <= 0 {
		return fmt.Errorf("config: engine.parallelism must be positive, got %d", cfg.Engine.Parallelism)
	}
	if cfg.Engine.OperationTimeoutSecs <= 0 {
		return fmt.Errorf("config: engine.operation_timeout_secs must be positive, got %d", cfg.Engine.OperationTimeoutSecs)
	}
	if cfg.Engine.ClockSkewToleranceSecs < 0 {
		return fmt.Errorf("config: engine.clock_skew_tolerance_secs must not be negative, got %d", cfg.Engine.ClockSkewToleranceSecs)
	}
	switch cfg.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: logging.level %q is not one of debug|info|warn|error", cfg.Logging.Level)
	}
	switch cfg.Logging.Format {
	case "auto", "text", "json":
	default:
		return fmt.Errorf("config: logging.format %q is not one of auto|text|json", cfg.Logging.Format)
	}
	return nil
}
