package scanner

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/text/unicode/norm"

	"github.com/voici5986/vaultsync/internal/vault"
)

// ErrNosyncGuard is returned when the vault root contains a guard file
// (".nosync") signalling that the volume is not properly mounted. Scanning
// halts rather than risk treating an empty or partially-mounted volume as
// "everything was deleted".
var ErrNosyncGuard = errors.New("scanner: .nosync guard file present, refusing to scan")

const nosyncGuardName = ".nosync"

// Local walks vaultDir recursively and returns every eligible path as a
// LocalEntry, keyed by its canonical forward-slash path. Symbolic links
// are never followed. Filenames are NFC-normalized before being used as
// map keys so the same logical name compares equal regardless of the
// normalization form the local filesystem happens to store.
type Local struct {
	vaultDir string
	filter   *Filter
	logger   *slog.Logger
}

// NewLocal returns a Local scanner rooted at vaultDir.
func NewLocal(vaultDir string, filter *Filter, logger *slog.Logger) *Local {
	if logger == nil {
		logger = slog.Default()
	}
	return &Local{vaultDir: vaultDir, filter: filter, logger: logger}
}

// Scan performs the walk. It fails with an error wrapping ErrNosyncGuard
// if the guard file is present, or a plain I/O error on a failed walk.
func (l *Local) Scan() (map[string]vault.LocalEntry, error) {
	if _, err := os.Stat(filepath.Join(l.vaultDir, nosyncGuardName)); err == nil {
		return nil, ErrNosyncGuard
	}

	entries := make(map[string]vault.LocalEntry)

	err := filepath.WalkDir(l.vaultDir, func(absPath string, d fs.DirEntry, err error) error {
		if err != nil {
			return fmt.Errorf("scanner: walk %q: %w", absPath, err)
		}
		if absPath == l.vaultDir {
			return nil
		}

		if d.Type()&fs.ModeSymlink != 0 {
			l.logger.Debug("scanner: skipping symlink", "path", absPath)
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		rel, err := filepath.Rel(l.vaultDir, absPath)
		if err != nil {
			return fmt.Errorf("scanner: relativize %q: %w", absPath, err)
		}
		relSlash := norm.NFC.String(filepath.ToSlash(rel))

		if l.filter != nil {
			if result := l.filter.ShouldSync(relSlash, d.IsDir()); !result.Included {
				l.logger.Debug("scanner: excluded", "path", relSlash, "reason", result.Reason)
				if d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
		}

		if d.IsDir() {
			return nil // directories are implicit; not recorded as entries
		}

		info, err := d.Info()
		if err != nil {
			return fmt.Errorf("scanner: stat %q: %w", absPath, err)
		}

		hash, err := hashFile(absPath)
		if err != nil {
			return fmt.Errorf("scanner: hash %q: %w", absPath, err)
		}

		p, err := vault.NewPath(relSlash)
		if err != nil {
			l.logger.Debug("scanner: skipping invalid path", "path", relSlash, "error", err)
			return nil
		}

		entries[p.String()] = vault.LocalEntry{
			Path:        p,
			Mtime:       info.ModTime().Truncate(time.Second),
			Size:        info.Size(),
			ContentHash: hash,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return entries, nil
}

func hashFile(absPath string) (string, error) {
	f, err := os.Open(absPath)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
