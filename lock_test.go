package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voici5986/vaultsync/internal/config"
)

func TestAcquireVaultLockCreatesReservedDir(t *testing.T) {
	root := t.TempDir()
	cfg := &config.Config{Vault: config.VaultConfig{Root: root, ReservedHiddenDir: ".vaultsync"}}

	lock, err := acquireVaultLock(cfg)
	require.NoError(t, err)
	defer lock.Unlock()

	_, err = os.Stat(filepath.Join(root, ".vaultsync"))
	require.NoError(t, err)
}

func TestAcquireVaultLockSecondCallFails(t *testing.T) {
	root := t.TempDir()
	cfg := &config.Config{Vault: config.VaultConfig{Root: root, ReservedHiddenDir: ".vaultsync"}}

	first, err := acquireVaultLock(cfg)
	require.NoError(t, err)
	defer first.Unlock()

	_, err = acquireVaultLock(cfg)
	assert.Error(t, err)
}

func TestAcquireVaultLockAvailableAfterUnlock(t *testing.T) {
	root := t.TempDir()
	cfg := &config.Config{Vault: config.VaultConfig{Root: root, ReservedHiddenDir: ".vaultsync"}}

	first, err := acquireVaultLock(cfg)
	require.NoError(t, err)
	require.NoError(t, first.Unlock())

	second, err := acquireVaultLock(cfg)
	require.NoError(t, err)
	defer second.Unlock()
}
