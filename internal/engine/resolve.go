package engine

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/voici5986/vaultsync/internal/executor"
	"github.com/voici5986/vaultsync/internal/ledger"
	"github.com/voici5986/vaultsync/internal/vault"
)

// conflictTimeFormat matches the teacher's generateConflictPath scheme:
// name.conflict-20060102-150405.ext.
const conflictTimeFormat = "20060102-150405"

// ListConflicts returns every unresolved conflict recorded in the ledger.
func (e *Engine) ListConflicts(ctx context.Context) ([]ledger.ConflictRecord, error) {
	return e.ledger.ListUnresolved(ctx)
}

// FindConflict resolves idOrPath to a single ledger conflict, by exact ID,
// exact path, or unambiguous ID prefix.
func (e *Engine) FindConflict(ctx context.Context, idOrPath string) (*ledger.ConflictRecord, error) {
	unresolved, err := e.ledger.ListUnresolved(ctx)
	if err != nil {
		return nil, err
	}
	for i := range unresolved {
		if unresolved[i].ID == idOrPath || unresolved[i].Path == idOrPath {
			return &unresolved[i], nil
		}
	}

	matches, err := e.ledger.FindByPrefix(ctx, idOrPath)
	if err != nil {
		return nil, err
	}
	var found *ledger.ConflictRecord
	for i := range matches {
		if matches[i].Resolution != ledger.ResolutionUnresolved {
			continue
		}
		if found != nil {
			return nil, fmt.Errorf("engine: conflict id %q is ambiguous, provide more characters", idOrPath)
		}
		found = &matches[i]
	}
	if found == nil {
		return nil, fmt.Errorf("engine: no unresolved conflict matches %q", idOrPath)
	}
	return found, nil
}

// ResolveConflict applies resolution to the conflict and marks it
// resolved in the ledger. resolvedBy is a free-form label (e.g. "cli")
// recorded for audit purposes.
func (e *Engine) ResolveConflict(ctx context.Context, c *ledger.ConflictRecord, resolution ledger.Resolution, resolvedBy string) error {
	p, err := vault.NewPath(c.Path)
	if err != nil {
		return fmt.Errorf("engine: invalid conflict path %q: %w", c.Path, err)
	}

	var rec *vault.FileRecord
	switch resolution {
	case ledger.ResolutionKeepLocal:
		rec, err = e.reuploadLocal(ctx, p)
		if err != nil {
			return fmt.Errorf("engine: keep-local %q: %w", c.Path, err)
		}
	case ledger.ResolutionKeepRemote:
		rec, err = e.redownloadRemote(ctx, p)
		if err != nil {
			return fmt.Errorf("engine: keep-remote %q: %w", c.Path, err)
		}
	case ledger.ResolutionKeepBoth:
		rec, err = e.keepBoth(ctx, p)
		if err != nil {
			return fmt.Errorf("engine: keep-both %q: %w", c.Path, err)
		}
	default:
		return fmt.Errorf("engine: unknown resolution strategy %q", resolution)
	}

	// Record the resolved path's new known-synced state before marking
	// the conflict resolved, mirroring what a normal upload/download's
	// Delta does in Engine.run — otherwise the next scan sees no
	// snapshot row for the path and reclassifies it as a fresh conflict.
	snap, err := e.snapStore.Load()
	if err != nil {
		return fmt.Errorf("engine: load snapshot: %w", err)
	}
	snap.Set(p, *rec)
	if err := e.snapStore.Save(snap); err != nil {
		return fmt.Errorf("engine: save snapshot: %w", err)
	}

	return e.ledger.Resolve(ctx, c.ID, resolution, resolvedBy)
}

func (e *Engine) localAbsPath(p vault.Path) string {
	return filepath.Join(e.cfg.Vault.Root, filepath.FromSlash(p.String()))
}

func (e *Engine) remotePath(p vault.Path) string {
	if e.cfg.Remote.Base == "" {
		return p.String()
	}
	return strings.TrimSuffix(e.cfg.Remote.Base, "/") + "/" + p.String()
}

// reuploadLocal uploads the local file, overwriting the remote version,
// and returns the FileRecord earning the path its known-synced state.
func (e *Engine) reuploadLocal(ctx context.Context, p vault.Path) (*vault.FileRecord, error) {
	absPath := e.localAbsPath(p)
	f, err := os.Open(absPath)
	if err != nil {
		return nil, fmt.Errorf("open local file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat local file: %w", err)
	}

	if err := e.transferTransport.Put(ctx, e.remotePath(p), f, info.Size()); err != nil {
		return nil, err
	}

	rec := &vault.FileRecord{
		LocalMtime:  info.ModTime(),
		RemoteMtime: time.Now().UTC(),
		Size:        info.Size(),
	}
	// Best effort, as in recordForDownloaded: adopt the server's ETag/mtime
	// for the new body so the next run's change check has them.
	if resources, err := e.transferTransport.PropfindRecursive(ctx, e.remoteDir(p)); err == nil {
		for _, r := range resources {
			if !r.Dir && r.Path == p.Base() {
				rec.ETag = r.ETag
				if !r.Mtime.IsZero() {
					rec.RemoteMtime = r.Mtime
				}
				break
			}
		}
	}
	return rec, nil
}

// redownloadRemote downloads the remote file, overwriting the local
// version, and returns the FileRecord earning the path its known-synced
// state.
func (e *Engine) redownloadRemote(ctx context.Context, p vault.Path) (*vault.FileRecord, error) {
	rc, err := e.transferTransport.Get(ctx, e.remotePath(p))
	if err != nil {
		return nil, fmt.Errorf("get remote file: %w", err)
	}
	defer rc.Close()

	absPath := e.localAbsPath(p)
	if err := (executor.OSFilesystem{}).WriteAtomic(absPath, rc); err != nil {
		return nil, fmt.Errorf("write local file: %w", err)
	}

	return e.recordForDownloaded(ctx, p, absPath)
}

// keepBoth renames the local file to a timestamped conflict copy and
// downloads the remote version to the original path, the teacher's
// generateConflictPath scheme. It returns the FileRecord earning the
// original path its known-synced state; the renamed conflict copy is
// untracked, same as any other new file the next scan will pick up.
func (e *Engine) keepBoth(ctx context.Context, p vault.Path) (*vault.FileRecord, error) {
	absPath := e.localAbsPath(p)
	conflictPath := conflictCopyPath(absPath)

	if _, err := os.Stat(absPath); err == nil {
		if err := os.Rename(absPath, conflictPath); err != nil {
			return nil, fmt.Errorf("rename local file to conflict copy: %w", err)
		}
	}

	rc, err := e.transferTransport.Get(ctx, e.remotePath(p))
	if err != nil {
		return nil, fmt.Errorf("get remote file: %w", err)
	}
	defer rc.Close()

	if err := (executor.OSFilesystem{}).WriteAtomic(absPath, rc); err != nil {
		return nil, fmt.Errorf("write local file: %w", err)
	}

	return e.recordForDownloaded(ctx, p, absPath)
}

// remoteDir returns the PROPFIND root to list p's parent collection, the
// same "." fallback scanner.Remote uses for a path with no directory
// component.
func (e *Engine) remoteDir(p vault.Path) string {
	dir := p.Dir()
	if !dir.IsZero() {
		return e.remotePath(dir)
	}
	if e.cfg.Remote.Base == "" {
		return "."
	}
	return e.cfg.Remote.Base
}

// recordForDownloaded builds the FileRecord for a path just overwritten
// from the remote, preferring the remote's own ETag/mtime (fetched via a
// PROPFIND of p's parent collection, since a PROPFIND of the file's own
// path would only return its self-referencing entry, which the transport
// treats as "no children" and omits) and falling back to the freshly
// written local file's own mtime when the remote listing doesn't include
// the path (already deleted, etc).
func (e *Engine) recordForDownloaded(ctx context.Context, p vault.Path, absPath string) (*vault.FileRecord, error) {
	size, localMtime, err := executor.OSFilesystem{}.Stat(absPath)
	if err != nil {
		return nil, fmt.Errorf("stat local file: %w", err)
	}

	rec := &vault.FileRecord{
		LocalMtime:  localMtime,
		RemoteMtime: localMtime,
		Size:        size,
	}

	resources, err := e.transferTransport.PropfindRecursive(ctx, e.remoteDir(p))
	if err != nil {
		// The resolution itself already succeeded; a record built from
		// the local write is still useful, so don't fail the resolution
		// over a metadata refresh that didn't strictly have to work.
		return rec, nil
	}
	for _, r := range resources {
		if r.Dir || r.Path != p.Base() {
			continue
		}
		rec.ETag = r.ETag
		if !r.Mtime.IsZero() {
			rec.RemoteMtime = r.Mtime
		}
		break
	}
	return rec, nil
}

// conflictCopyPath returns absPath with a timestamped ".conflict-<ts>"
// suffix inserted before the extension.
func conflictCopyPath(absPath string) string {
	ext := filepath.Ext(absPath)
	base := strings.TrimSuffix(absPath, ext)
	return fmt.Sprintf("%s.conflict-%s%s", base, time.Now().UTC().Format(conflictTimeFormat), ext)
}
