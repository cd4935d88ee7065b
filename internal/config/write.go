package config

import (
	"fmt"
	"os"
	"path/filepath"
)

const configFilePermissions = 0o644
const configDirPermissions = 0o755

// template is the default config file content written by `vaultsync
// init`. Every non-required setting appears commented out so a user can
// discover the full option surface without reading docs.
const template = `# vaultsync configuration

[vault]
root = %q
# reserved_hidden_dir = ".vaultsync"

[remote]
url = %q
# base = ""
# username = ""
# password = ""
# bearer_token = ""

[filter]
# skip_patterns = ["*.tmp", "**/.DS_Store"]
# ignore_file_name = ".vaultignore"

[engine]
# clock_skew_tolerance_secs = 2
# parallelism = 4
# operation_timeout_secs = 30

[logging]
# level = "info"
# format = "auto"
`

// WriteTemplate creates a new config file at path with vaultRoot and
// remoteURL filled in and every other setting left as a commented-out
// default. The write is atomic (tempfile + rename); it fails if path
// already exists.
func WriteTemplate(path, vaultRoot, remoteURL string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config: %q already exists", path)
	}

	content := fmt.Sprintf(template, vaultRoot, remoteURL)
	return atomicWriteFile(path, []byte(content))
}

func atomicWriteFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, configDirPermissions); err != nil {
		return fmt.Errorf("config: creating directory %q: %w", dir, err)
	}

	f, err := os.CreateTemp(dir, ".config-*.tmp")
	if err != nil {
		return fmt.Errorf("config: creating temp file: %w", err)
	}
	tempPath := f.Name()

	succeeded := false
	defer func() {
		if !succeeded {
			os.Remove(tempPath)
		}
	}()

	if _, err := f.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("config: writing temp file: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("config: syncing temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("config: closing temp file: %w", err)
	}
	if err := os.Chmod(tempPath, configFilePermissions); err != nil {
		return fmt.Errorf("config: setting permissions: %w", err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		return fmt.Errorf("config: renaming temp file into place: %w", err)
	}

	succeeded = true
	return nil
}
