package config

import (
	"os"
	"path/filepath"
	"runtime"
)

const (
	platformLinux  = "linux"
	platformDarwin = "darwin"
)

// appName names the per-user config/data/cache subdirectory.
const appName = "vaultsync"

// configFileName is the TOML file read from DefaultConfigDir().
const configFileName = "config.toml"

// DefaultConfigDir returns the platform-specific directory for the
// config file. Linux respects XDG_CONFIG_HOME; macOS uses Application
// Support; other platforms fall back to ~/.config.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}

	switch runtime.GOOS {
	case platformLinux:
		return linuxDir(home, "XDG_CONFIG_HOME", ".config")
	case platformDarwin:
		return filepath.Join(home, "Library", "Application Support", appName)
	default:
		return filepath.Join(home, ".config", appName)
	}
}

// DefaultDataDir returns the platform-specific directory for application
// data. The ledger database and the snapshot are not kept here: both live
// under the vault's own reserved hidden directory.
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}

	switch runtime.GOOS {
	case platformLinux:
		return linuxDir(home, "XDG_DATA_HOME", filepath.Join(".local", "share"))
	case platformDarwin:
		return filepath.Join(home, "Library", "Application Support", appName)
	default:
		return filepath.Join(home, ".local", "share", appName)
	}
}

func linuxDir(home, envVar, fallbackSuffix string) string {
	if xdg := os.Getenv(envVar); xdg != "" {
		return filepath.Join(xdg, appName)
	}
	return filepath.Join(home, fallbackSuffix, appName)
}

// DefaultConfigPath is the full path to the default config file.
func DefaultConfigPath() string {
	dir := DefaultConfigDir()
	if dir == "" {
		return ""
	}
	return filepath.Join(dir, configFileName)
}
