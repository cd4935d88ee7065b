package vault

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// CurrentFormatVersion is the Snapshot serialization format this build
// writes. Load tolerates unknown future versions by discarding the file
// rather than failing the run, per the snapshot store's recoverable
// StateCorrupt contract.
const CurrentFormatVersion = 1

// Snapshot is the last known-synced state of every path the engine has
// ever successfully reconciled. It is the "S" side of the reconciliation
// triple and is read once at the start of a run and rewritten once at
// the end.
type Snapshot struct {
	FormatVersion int                   `json:"format_version"`
	LastSync      time.Time             `json:"last_sync"`
	Records       map[string]FileRecord `json:"records"`
}

// NewSnapshot returns an empty snapshot at the current format version.
func NewSnapshot() *Snapshot {
	return &Snapshot{
		FormatVersion: CurrentFormatVersion,
		Records:       make(map[string]FileRecord),
	}
}

// Get returns the record for path and whether one exists.
func (s *Snapshot) Get(p Path) (FileRecord, bool) {
	r, ok := s.Records[p.String()]
	return r, ok
}

// Set records the known-synced state of path, overwriting any prior record.
func (s *Snapshot) Set(p Path, r FileRecord) {
	s.Records[p.String()] = r
}

// Delete removes path's record, used after a deletion has been applied to
// both sides.
func (s *Snapshot) Delete(p Path) {
	delete(s.Records, p.String())
}

// Store persists a Snapshot to a single file using a tempfile-then-rename
// write, so a crash mid-write never leaves a half-written snapshot on
// disk — the same atomicity the executor uses for downloaded file
// content.
type Store struct {
	path   string
	logger *slog.Logger
}

// NewStore returns a Store backed by the file at path. The directory
// containing path must already exist.
func NewStore(path string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{path: path, logger: logger}
}

// Load reads the snapshot file. A missing file is not an error: it is the
// legitimate state of a vault that has never synced, and Load returns a
// fresh empty Snapshot. A file that fails to parse, or that declares a
// format version newer than CurrentFormatVersion, is logged as
// StateCorrupt and discarded in favor of an empty Snapshot — the engine
// recovers by treating every path as unseen rather than aborting the run.
func (s *Store) Load() (*Snapshot, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return NewSnapshot(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("vault: read snapshot: %w", err)
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		s.logger.Warn("snapshot store: discarding unreadable snapshot", "path", s.path, "error", err)
		return NewSnapshot(), nil
	}
	if snap.FormatVersion > CurrentFormatVersion {
		s.logger.Warn("snapshot store: discarding snapshot from a newer format version",
			"path", s.path, "found_version", snap.FormatVersion, "current_version", CurrentFormatVersion)
		return NewSnapshot(), nil
	}
	if snap.Records == nil {
		snap.Records = make(map[string]FileRecord)
	}
	return &snap, nil
}

// Save writes snap atomically, replacing any prior file at s.path.
func (s *Store) Save(snap *Snapshot) error {
	snap.FormatVersion = CurrentFormatVersion
	snap.LastSync = time.Now().UTC()

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("vault: marshal snapshot: %w", err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".snapshot-*.tmp")
	if err != nil {
		return fmt.Errorf("vault: create temp snapshot: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) // no-op once the rename below succeeds

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("vault: write temp snapshot: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("vault: fsync temp snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("vault: close temp snapshot: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		return fmt.Errorf("vault: rename temp snapshot into place: %w", err)
	}

	return nil
}
