package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"

	"github.com/voici5986/vaultsync/internal/config"
)

// lockFileName lives under the vault's reserved hidden directory,
// the same place the snapshot and ledger live.
const lockFileName = "vaultsync.lock"

// acquireVaultLock takes a non-blocking exclusive lock on cfg's vault,
// so two runs against the same vault can never execute simultaneously.
// Callers must Unlock the returned lock when done.
func acquireVaultLock(cfg *config.Config) (*flock.Flock, error) {
	dir := filepath.Join(cfg.Vault.Root, cfg.Vault.ReservedHiddenDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating lock directory: %w", err)
	}

	path := filepath.Join(dir, lockFileName)
	lock := flock.New(path)

	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquiring vault lock: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("another vaultsync run already holds the lock at %s", path)
	}

	return lock, nil
}
