// Package engine wires the vault, scanner, planner, executor, ledger and
// config packages into one sync cycle: scan, plan, execute, persist.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/voici5986/vaultsync/internal/config"
	"github.com/voici5986/vaultsync/internal/executor"
	"github.com/voici5986/vaultsync/internal/ledger"
	"github.com/voici5986/vaultsync/internal/planner"
	"github.com/voici5986/vaultsync/internal/scanner"
	"github.com/voici5986/vaultsync/internal/vault"
	"github.com/voici5986/vaultsync/internal/webdav"
)

const snapshotFileName = "snapshot.json"
const ledgerFileName = "ledger.db"

// snapshotPath returns the path to the vault's reserved-hidden-dir
// snapshot file.
func snapshotPath(cfg *config.Config) string {
	return filepath.Join(cfg.Vault.Root, cfg.Vault.ReservedHiddenDir, snapshotFileName)
}

// ledgerPath returns the path to the vault's conflict/stale-file ledger.
func ledgerPath(cfg *config.Config) string {
	return filepath.Join(cfg.Vault.Root, cfg.Vault.ReservedHiddenDir, ledgerFileName)
}

// Report summarizes the result of one sync cycle, the engine's
// equivalent of spec.md's SyncResult, enriched with timing for CLI
// display.
type Report struct {
	Duration      time.Duration
	Uploaded      int
	Downloaded    int
	DeletedRemote int
	DeletedLocal  int
	Conflicts     int
	Skipped       int
	Errors        []executor.SyncError
	Cancelled     bool
}

// Success reports whether the cycle completed with no per-item errors.
func (r *Report) Success() bool { return len(r.Errors) == 0 && !r.Cancelled }

// Engine orchestrates a complete sync cycle for a single vault: load
// snapshot, scan both sides, plan, execute, persist the delta, record
// conflicts.
type Engine struct {
	cfg               *config.Config
	transport         webdav.Transport
	transferTransport webdav.Transport
	snapStore         *vault.Store
	filter            *scanner.Filter
	local             *scanner.Local
	remote            *scanner.Remote
	exec              *executor.Executor
	ledger            *ledger.Store
	logger            *slog.Logger
}

// engineOptions holds New's optional settings, applied by Option funcs.
type engineOptions struct {
	transferTransport webdav.Transport
}

// Option configures optional Engine construction settings.
type Option func(*engineOptions)

// WithTransferTransport supplies a distinct Transport for upload,
// download, delete and mkcol operations, separate from the one used for
// PROPFIND scans. Production wiring passes a transport backed by an HTTP
// client with no blanket request timeout, so large transfers aren't cut
// short; metadata scans keep a bounded client. Tests that share one fake
// transport for everything can omit this option.
func WithTransferTransport(t webdav.Transport) Option {
	return func(o *engineOptions) { o.transferTransport = t }
}

// New builds an Engine from a resolved Config and a Transport
// collaborator (a *webdav.Client in production, a fake in tests).
func New(ctx context.Context, cfg *config.Config, transport webdav.Transport, logger *slog.Logger, reporter executor.Reporter, opts ...Option) (*Engine, error) {
	if logger == nil {
		logger = slog.Default()
	}

	options := engineOptions{transferTransport: transport}
	for _, opt := range opts {
		opt(&options)
	}
	transferTransport := options.transferTransport

	snapStore := vault.NewStore(snapshotPath(cfg), logger)

	filter := scanner.NewFilter(scanner.FilterConfig{
		ReservedHiddenDir: cfg.Vault.ReservedHiddenDir,
		SkipPatterns:      cfg.Filter.SkipPatterns,
		IgnoreFileName:    cfg.Filter.IgnoreFileName,
	}, cfg.Vault.Root, logger)

	store, err := ledger.Open(ctx, ledgerPath(cfg), logger)
	if err != nil {
		return nil, fmt.Errorf("engine: open ledger: %w", err)
	}

	execCfg := executor.Config{
		VaultDir:         cfg.Vault.Root,
		RemoteBase:       cfg.Remote.Base,
		Parallelism:      cfg.Engine.Parallelism,
		OperationTimeout: time.Duration(cfg.Engine.OperationTimeoutSecs) * time.Second,
	}

	return &Engine{
		cfg:               cfg,
		transport:         transport,
		transferTransport: transferTransport,
		snapStore:         snapStore,
		filter:            filter,
		local:             scanner.NewLocal(cfg.Vault.Root, filter, logger),
		remote:            scanner.NewRemote(transport, cfg.Remote.Base),
		exec:              executor.New(transferTransport, executor.OSFilesystem{}, execCfg, logger, reporter),
		ledger:            store,
		logger:            logger,
	}, nil
}

// Close releases the engine's held resources (the ledger database).
func (e *Engine) Close() error {
	return e.ledger.Close()
}

// RunOnce performs a full sync cycle: scan, plan, execute, persist.
func (e *Engine) RunOnce(ctx context.Context) (*Report, error) {
	return e.run(ctx, false)
}

// RunQuick performs a sync cycle that drops Conflict items from the plan
// before dispatch, spec.md §4.4's quick_sync() convenience.
func (e *Engine) RunQuick(ctx context.Context) (*Report, error) {
	return e.run(ctx, true)
}

func (e *Engine) run(ctx context.Context, quick bool) (*Report, error) {
	start := time.Now()
	e.logger.Info("engine: sync cycle starting", "quick", quick)

	snap, err := e.snapStore.Load()
	if err != nil {
		return nil, fmt.Errorf("engine: load snapshot: %w", err)
	}

	localEntries, err := e.local.Scan()
	if err != nil {
		return nil, fmt.Errorf("engine: local scan: %w", err)
	}

	remoteEntries, err := e.remote.Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("engine: remote scan: %w", err)
	}

	remoteEntries = e.recordStaleExclusions(ctx, snap, localEntries, remoteEntries)

	plan := planner.Plan(localEntries, remoteEntries, snap, planner.Config{
		ClockSkewTolerance: time.Duration(e.cfg.Engine.ClockSkewToleranceSecs) * time.Second,
		Now:                time.Now().UTC(),
	})

	if quick {
		plan = dropConflicts(plan)
	}

	result, execErr := e.exec.Execute(ctx, plan)
	if result == nil {
		return nil, execErr
	}

	e.applyDelta(snap, result.Delta)
	if err := e.snapStore.Save(snap); err != nil {
		return nil, fmt.Errorf("engine: save snapshot: %w", err)
	}

	if !quick {
		e.recordConflicts(ctx, plan)
	}

	report := &Report{
		Duration:      time.Since(start),
		Uploaded:      result.Uploaded,
		Downloaded:    result.Downloaded,
		DeletedRemote: result.DeletedRemote,
		DeletedLocal:  result.DeletedLocal,
		Conflicts:     result.Conflicts,
		Skipped:       result.Skipped,
		Errors:        result.Errors,
		Cancelled:     result.Cancelled,
	}

	e.logger.Info("engine: sync cycle complete",
		"duration", report.Duration,
		"uploaded", report.Uploaded,
		"downloaded", report.Downloaded,
		"conflicts", report.Conflicts,
		"errors", len(report.Errors),
	)

	return report, execErr
}

// Preview computes the plan a full RunOnce (or RunQuick) would execute,
// without applying it or touching the snapshot or ledger. It backs the
// sync command's --dry-run flag.
func (e *Engine) Preview(ctx context.Context, quick bool) (*planner.SyncPlan, error) {
	snap, err := e.snapStore.Load()
	if err != nil {
		return nil, fmt.Errorf("engine: load snapshot: %w", err)
	}

	localEntries, err := e.local.Scan()
	if err != nil {
		return nil, fmt.Errorf("engine: local scan: %w", err)
	}

	remoteEntries, err := e.remote.Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("engine: remote scan: %w", err)
	}

	// Same filter-exclusion pruning as run's recordStaleExclusions, minus
	// the ledger write.
	for key, rec := range snap.Records {
		if _, ok := localEntries[key]; !ok && !e.filter.ShouldSync(key, rec.Dir).Included {
			delete(remoteEntries, key)
		}
	}

	plan := planner.Plan(localEntries, remoteEntries, snap, planner.Config{
		ClockSkewTolerance: time.Duration(e.cfg.Engine.ClockSkewToleranceSecs) * time.Second,
		Now:                time.Now().UTC(),
	})

	if quick {
		plan = dropConflicts(plan)
	}

	return plan, nil
}

// dropConflicts returns a plan with every Conflict item removed, keeping
// the original ordering of what remains.
func dropConflicts(plan *planner.SyncPlan) *planner.SyncPlan {
	filtered := &planner.SyncPlan{
		UploadCount:   plan.UploadCount,
		DownloadCount: plan.DownloadCount,
		DeleteCount:   plan.DeleteCount,
	}
	for _, item := range plan.Items {
		if item.Action == planner.Conflict {
			continue
		}
		filtered.Items = append(filtered.Items, item)
	}
	return filtered
}

// applyDelta folds the executor's successful-item updates into snap: a
// nil value removes the path's record (a completed deletion), a non-nil
// value sets it.
func (e *Engine) applyDelta(snap *vault.Snapshot, delta map[string]*vault.FileRecord) {
	for key, rec := range delta {
		p := vault.MustPath(key)
		if rec == nil {
			snap.Delete(p)
			continue
		}
		snap.Set(p, *rec)
	}
}

// recordStaleExclusions finds snapshot rows that have dropped out of the
// local scan because the filter cascade now excludes them — a skip
// pattern changed, an ignore file was added — as opposed to the file
// having actually been deleted. Each one is recorded in the ledger as a
// StaleRecord for the user to review, and removed from the remote set the
// planner sees, so the filter change is never mistaken for "local
// removed" and used to delete the untouched remote copy.
func (e *Engine) recordStaleExclusions(ctx context.Context, snap *vault.Snapshot, local map[string]vault.LocalEntry, remote map[string]vault.RemoteEntry) map[string]vault.RemoteEntry {
	for key, rec := range snap.Records {
		if _, ok := local[key]; ok {
			continue
		}
		result := e.filter.ShouldSync(key, rec.Dir)
		if result.Included {
			continue
		}
		if err := e.ledger.RecordStale(ctx, key, result.Reason); err != nil {
			e.logger.Warn("engine: failed to record stale file", "path", key, "error", err)
			continue
		}
		delete(remote, key)
	}
	return remote
}

// recordConflicts persists every Conflict item from plan into the
// ledger, so it survives across runs until resolved.
func (e *Engine) recordConflicts(ctx context.Context, plan *planner.SyncPlan) {
	for _, item := range plan.Items {
		if item.Action != planner.Conflict {
			continue
		}

		var localMtime, remoteMtime time.Time
		var localHash, remoteETag string
		if item.Local != nil {
			localMtime = item.Local.Mtime
			localHash = item.Local.ContentHash
		}
		if item.Remote != nil {
			remoteMtime = item.Remote.Mtime
			remoteETag = item.Remote.ETag
		}

		if _, err := e.ledger.RecordConflict(ctx, item.Path.String(), localMtime, remoteMtime, localHash, remoteETag, item.Reason); err != nil {
			e.logger.Warn("engine: failed to record conflict", "path", item.Path.String(), "error", err)
		}
	}
}

// Snapshot loads and returns the vault's current Snapshot Store
// contents, for CLI commands (status) that report on it without
// running a sync cycle.
func (e *Engine) Snapshot() (*vault.Snapshot, error) {
	return e.snapStore.Load()
}

// Ledger exposes the engine's conflict/stale-file store for CLI commands
// (status --stale, resolve) that need to query or mutate it directly.
func (e *Engine) Ledger() *ledger.Store { return e.ledger }

// VaultDir returns the vault root this engine was configured for.
func (e *Engine) VaultDir() string { return e.cfg.Vault.Root }

// RemoteBase returns the configured remote base path.
func (e *Engine) RemoteBase() string { return e.cfg.Remote.Base }

// Transport exposes the engine's metadata WebDAV collaborator, the one its
// remote scans use. Uploads, downloads, deletions and MKCOLs, including
// those of ResolveConflict, go through the transfer transport instead.
func (e *Engine) Transport() webdav.Transport { return e.transport }
