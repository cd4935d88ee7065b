// Package ledger persists conflict history and stale-file records across
// runs, supplementing the engine's in-memory, per-run Conflict plan
// items with a queryable store a user can inspect and act on between
// syncs.
package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // pure-Go driver, registers as "sqlite"
)

const walJournalSizeLimit = 64 * 1024 * 1024

// Resolution is how a recorded conflict was, or has not yet been,
// resolved.
type Resolution string

const (
	ResolutionUnresolved Resolution = "unresolved"
	ResolutionKeepLocal  Resolution = "keep_local"
	ResolutionKeepRemote Resolution = "keep_remote"
	ResolutionKeepBoth   Resolution = "keep_both"
)

// ConflictRecord is one persisted conflict, surviving across runs until
// a user resolves it via the resolve command.
type ConflictRecord struct {
	ID          string
	Path        string
	DetectedAt  time.Time
	LocalMtime  time.Time
	RemoteMtime time.Time
	LocalHash   string
	RemoteETag  string
	Reason      string
	Resolution  Resolution
	ResolvedAt  *time.Time
	ResolvedBy  string
}

// StaleRecord is a path that was synced in the past but is now excluded
// by a filter change; it is not deleted automatically, only flagged for
// the user's attention.
type StaleRecord struct {
	Path       string
	Reason     string
	DetectedAt time.Time
}

// Store is a SQLite-backed ledger of conflicts and stale files.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open opens (creating if necessary) the ledger database at path and
// applies pending migrations. Use ":memory:" for tests.
func Open(ctx context.Context, path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("ledger: open %q: %w", path, err)
	}

	if err := setPragmas(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	if err := runMigrations(ctx, db, logger); err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db, logger: logger}, nil
}

func setPragmas(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = FULL",
		"PRAGMA foreign_keys = ON",
		fmt.Sprintf("PRAGMA journal_size_limit = %d", walJournalSizeLimit),
	}
	for _, s := range stmts {
		if _, err := db.ExecContext(ctx, s); err != nil {
			return fmt.Errorf("ledger: exec %q: %w", s, err)
		}
	}
	return nil
}

// Close closes the underlying database.
func (s *Store) Close() error { return s.db.Close() }

// RecordConflict inserts a new unresolved conflict and returns its ID.
func (s *Store) RecordConflict(ctx context.Context, path string, localMtime, remoteMtime time.Time, localHash, remoteETag, reason string) (string, error) {
	id := uuid.NewString()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO conflicts (id, path, detected_at, local_mtime, remote_mtime, local_hash, remote_etag, reason, resolution)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, path, time.Now().UTC().Unix(), localMtime.Unix(), remoteMtime.Unix(), localHash, remoteETag, reason, ResolutionUnresolved)
	if err != nil {
		return "", fmt.Errorf("ledger: record conflict for %q: %w", path, err)
	}
	return id, nil
}

// ListUnresolved returns every conflict not yet resolved, most recent
// first.
func (s *Store) ListUnresolved(ctx context.Context) ([]ConflictRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, path, detected_at, local_mtime, remote_mtime, local_hash, remote_etag, reason
		FROM conflicts WHERE resolution = ? ORDER BY detected_at DESC`, ResolutionUnresolved)
	if err != nil {
		return nil, fmt.Errorf("ledger: list unresolved conflicts: %w", err)
	}
	defer rows.Close()

	var out []ConflictRecord
	for rows.Next() {
		var rec ConflictRecord
		var detectedAt, localMtime, remoteMtime int64
		if err := rows.Scan(&rec.ID, &rec.Path, &detectedAt, &localMtime, &remoteMtime, &rec.LocalHash, &rec.RemoteETag, &rec.Reason); err != nil {
			return nil, fmt.Errorf("ledger: scan conflict row: %w", err)
		}
		rec.DetectedAt = time.Unix(detectedAt, 0).UTC()
		rec.LocalMtime = time.Unix(localMtime, 0).UTC()
		rec.RemoteMtime = time.Unix(remoteMtime, 0).UTC()
		rec.Resolution = ResolutionUnresolved
		out = append(out, rec)
	}
	return out, rows.Err()
}

// FindByPrefix returns every conflict (any resolution) whose ID starts
// with prefix, for the resolve command's prefix-match lookup.
func (s *Store) FindByPrefix(ctx context.Context, prefix string) ([]ConflictRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, path, detected_at, local_mtime, remote_mtime, local_hash, remote_etag, reason, resolution
		FROM conflicts WHERE id LIKE ? || '%' ORDER BY detected_at DESC`, prefix)
	if err != nil {
		return nil, fmt.Errorf("ledger: find conflicts by prefix %q: %w", prefix, err)
	}
	defer rows.Close()

	var out []ConflictRecord
	for rows.Next() {
		var rec ConflictRecord
		var detectedAt, localMtime, remoteMtime int64
		var resolution string
		if err := rows.Scan(&rec.ID, &rec.Path, &detectedAt, &localMtime, &remoteMtime, &rec.LocalHash, &rec.RemoteETag, &rec.Reason, &resolution); err != nil {
			return nil, fmt.Errorf("ledger: scan conflict row: %w", err)
		}
		rec.DetectedAt = time.Unix(detectedAt, 0).UTC()
		rec.LocalMtime = time.Unix(localMtime, 0).UTC()
		rec.RemoteMtime = time.Unix(remoteMtime, 0).UTC()
		rec.Resolution = Resolution(resolution)
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Resolve marks a conflict as resolved by the given strategy.
func (s *Store) Resolve(ctx context.Context, id string, resolution Resolution, resolvedBy string) error {
	now := time.Now().UTC().Unix()
	res, err := s.db.ExecContext(ctx, `
		UPDATE conflicts SET resolution = ?, resolved_at = ?, resolved_by = ? WHERE id = ?`,
		resolution, now, resolvedBy, id)
	if err != nil {
		return fmt.Errorf("ledger: resolve conflict %q: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("ledger: resolve conflict %q: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("ledger: no conflict with id %q", id)
	}
	return nil
}

// RecordStale upserts a stale-file record for path.
func (s *Store) RecordStale(ctx context.Context, path, reason string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO stale_files (path, reason, detected_at) VALUES (?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET reason = excluded.reason, detected_at = excluded.detected_at`,
		path, reason, time.Now().UTC().Unix())
	if err != nil {
		return fmt.Errorf("ledger: record stale file %q: %w", path, err)
	}
	return nil
}

// ListStale returns every recorded stale file.
func (s *Store) ListStale(ctx context.Context) ([]StaleRecord, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT path, reason, detected_at FROM stale_files ORDER BY detected_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("ledger: list stale files: %w", err)
	}
	defer rows.Close()

	var out []StaleRecord
	for rows.Next() {
		var rec StaleRecord
		var detectedAt int64
		if err := rows.Scan(&rec.Path, &rec.Reason, &detectedAt); err != nil {
			return nil, fmt.Errorf("ledger: scan stale file row: %w", err)
		}
		rec.DetectedAt = time.Unix(detectedAt, 0).UTC()
		out = append(out, rec)
	}
	return out, rows.Err()
}

// RemoveStale deletes the stale-file record for path, e.g. once the
// filter that excluded it is relaxed again.
func (s *Store) RemoveStale(ctx context.Context, path string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM stale_files WHERE path = ?`, path)
	if err != nil {
		return fmt.Errorf("ledger: remove stale file %q: %w", path, err)
	}
	return nil
}
