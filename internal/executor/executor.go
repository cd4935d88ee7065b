// Package executor applies a planner.SyncPlan against the remote
// transport and the local filesystem, reporting progress and collecting
// per-item errors without aborting the whole run on a single failure.
package executor

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	gosync "sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/voici5986/vaultsync/internal/planner"
	"github.com/voici5986/vaultsync/internal/vault"
	"github.com/voici5986/vaultsync/internal/webdav"
)

// DefaultParallelism is the default bound on concurrent mutation
// operations within one phase.
const DefaultParallelism = 4

// DefaultOperationTimeout bounds a single transport call.
const DefaultOperationTimeout = 30 * time.Second

// Config parameterizes one Executor.
type Config struct {
	VaultDir         string
	RemoteBase       string
	Parallelism      int
	OperationTimeout time.Duration
}

func (c Config) parallelism() int {
	if c.Parallelism <= 0 {
		return DefaultParallelism
	}
	return c.Parallelism
}

func (c Config) timeout() time.Duration {
	if c.OperationTimeout <= 0 {
		return DefaultOperationTimeout
	}
	return c.OperationTimeout
}

// Result is the outcome of one Execute call.
type Result struct {
	Uploaded      int
	Downloaded    int
	DeletedRemote int
	DeletedLocal  int
	Conflicts     int
	Skipped       int
	Errors        []SyncError
	Cancelled     bool

	// Delta holds the snapshot updates earned by successfully-applied
	// items, keyed by canonical path. A nil value means the path's
	// record should be removed from the snapshot (a successful
	// deletion).
	Delta map[string]*vault.FileRecord
}

// Success reports whether the run completed with no per-item errors.
func (r *Result) Success() bool { return len(r.Errors) == 0 && !r.Cancelled }

// Executor applies plans produced by the planner package.
type Executor struct {
	transport webdav.Transport
	fs        Filesystem
	cfg       Config
	logger    *slog.Logger
	reporter  Reporter

	mkdirMu   gosync.Mutex
	mkdirDone map[string]bool

	deltaMu gosync.Mutex
}

// New returns an Executor. reporter may be nil (progress is discarded).
func New(transport webdav.Transport, fs Filesystem, cfg Config, logger *slog.Logger, reporter Reporter) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	if reporter == nil {
		reporter = NullReporter
	}
	return &Executor{
		transport: transport,
		fs:        fs,
		cfg:       cfg,
		logger:    logger,
		reporter:  reporter,
		mkdirDone: make(map[string]bool),
	}
}

// Execute applies plan's items in the order spec.md requires: mutations
// (Upload/Download) with bounded parallelism, then deletions, then a
// pass over Conflict and Skip items that only touch bookkeeping.
// Cancellation is checked between items; in-flight items run to
// completion.
func (e *Executor) Execute(ctx context.Context, plan *planner.SyncPlan) (*Result, error) {
	result := &Result{Delta: make(map[string]*vault.FileRecord)}
	total := len(plan.Items)
	processed := 0

	e.reporter.Report(Progress{Stage: StageSyncing, Total: total})

	var mutations, deletions, rest []planner.SyncItem
	for _, item := range plan.Items {
		switch item.Action {
		case planner.Upload, planner.Download:
			mutations = append(mutations, item)
		case planner.DeleteRemote, planner.DeleteLocal:
			deletions = append(deletions, item)
		default:
			rest = append(rest, item)
		}
	}

	if err := ctx.Err(); err != nil {
		result.Cancelled = true
		return result, err
	}

	if cancelled := e.runPhase(ctx, mutations, result, &processed, total); cancelled {
		result.Cancelled = true
		e.reporter.Report(Progress{Stage: StageError, Total: total, Processed: processed, Error: "cancelled"})
		return result, context.Canceled
	}

	if cancelled := e.runPhase(ctx, deletions, result, &processed, total); cancelled {
		result.Cancelled = true
		e.reporter.Report(Progress{Stage: StageError, Total: total, Processed: processed, Error: "cancelled"})
		return result, context.Canceled
	}

	for _, item := range rest {
		e.applyBookkeeping(item, result)
		processed++
		e.reporter.Report(Progress{Stage: StageSyncing, Total: total, Processed: processed, Path: item.Path.String()})
	}

	e.reporter.Report(Progress{Stage: StageCompleted, Total: total, Processed: processed})
	return result, nil
}

// runPhase processes items with bounded parallelism, then emits progress
// and folds results into result in plan order. It returns true if the run
// was cancelled before the phase could complete.
func (e *Executor) runPhase(ctx context.Context, items []planner.SyncItem, result *Result, processed *int, total int) bool {
	if len(items) == 0 {
		return false
	}
	if err := ctx.Err(); err != nil {
		return true
	}

	type outcome struct {
		err error
	}
	outcomes := make([]outcome, len(items))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.parallelism())

	for i := range items {
		i := i
		item := items[i]
		g.Go(func() error {
			// Checked between items, never once a transfer is under way:
			// gctx is done either because the caller's context was
			// cancelled (shutdown signal) or a prior item returned a
			// fatal error. Items already running are unaffected, since
			// their own opCtx below is detached from gctx.
			if gctx.Err() != nil {
				outcomes[i] = outcome{err: gctx.Err()}
				return gctx.Err()
			}
			opCtx, cancel := context.WithTimeout(context.Background(), e.cfg.timeout())
			defer cancel()
			err := e.applyItem(opCtx, item, result)
			outcomes[i] = outcome{err: err}
			if classify(err) == TierFatal {
				return err
			}
			return nil
		})
	}
	fatal := g.Wait()

	for i, item := range items {
		o := outcomes[i]
		*processed++
		if o.err != nil {
			result.Errors = append(result.Errors, SyncError{
				Path: item.Path.String(), Action: item.Action.String(), Message: o.err.Error(),
			})
			e.logger.Warn("executor: item failed", "path", item.Path.String(), "action", item.Action.String(), "error", o.err)
		} else {
			e.countSuccess(item, result)
		}
		e.reporter.Report(Progress{Stage: StageSyncing, Total: total, Processed: *processed, Path: item.Path.String()})
	}

	return fatal != nil && classify(fatal) == TierFatal
}

func (e *Executor) countSuccess(item planner.SyncItem, result *Result) {
	switch item.Action {
	case planner.Upload:
		result.Uploaded++
	case planner.Download:
		result.Downloaded++
	case planner.DeleteRemote:
		result.DeletedRemote++
	case planner.DeleteLocal:
		result.DeletedLocal++
	}
}

// applyBookkeeping handles Conflict (counted, never applied) and Skip
// (applies a snapshot refresh when the planner seeded one).
func (e *Executor) applyBookkeeping(item planner.SyncItem, result *Result) {
	switch item.Action {
	case planner.Conflict:
		result.Conflicts++
	case planner.Skip:
		result.Skipped++
		if item.Refresh != nil {
			result.Delta[item.Path.String()] = item.Refresh
		}
	}
}

func (e *Executor) applyItem(ctx context.Context, item planner.SyncItem, result *Result) error {
	switch item.Action {
	case planner.Upload:
		return e.upload(ctx, item, result)
	case planner.Download:
		return e.download(ctx, item, result)
	case planner.DeleteRemote:
		return e.deleteRemote(ctx, item, result)
	case planner.DeleteLocal:
		return e.deleteLocal(ctx, item, result)
	default:
		return fmt.Errorf("executor: unexpected action %v for %q", item.Action, item.Path)
	}
}

func (e *Executor) localAbsPath(p vault.Path) string {
	return filepath.Join(e.cfg.VaultDir, filepath.FromSlash(p.String()))
}

func (e *Executor) remotePath(p vault.Path) string {
	if e.cfg.RemoteBase == "" {
		return p.String()
	}
	return strings.TrimSuffix(e.cfg.RemoteBase, "/") + "/" + p.String()
}

func (e *Executor) upload(ctx context.Context, item planner.SyncItem, result *Result) error {
	if err := e.ensureRemoteDir(ctx, item.Path.Dir()); err != nil {
		return fmt.Errorf("executor: ensure remote dir for %q: %w", item.Path, err)
	}

	absPath := e.localAbsPath(item.Path)
	size, mtime, err := e.fs.Stat(absPath)
	if err != nil {
		return fmt.Errorf("executor: stat %q: %w", item.Path, err)
	}
	rc, err := e.fs.Read(absPath)
	if err != nil {
		return fmt.Errorf("executor: read %q: %w", item.Path, err)
	}
	defer rc.Close()

	if err := e.transport.Put(ctx, e.remotePath(item.Path), rc, size); err != nil {
		return fmt.Errorf("executor: put %q: %w", item.Path, err)
	}

	e.setDelta(result, item.Path, &vault.FileRecord{
		LocalMtime:  mtime,
		RemoteMtime: time.Now().UTC(),
		Size:        size,
	})
	return nil
}

func (e *Executor) download(ctx context.Context, item planner.SyncItem, result *Result) error {
	rc, err := e.transport.Get(ctx, e.remotePath(item.Path))
	if err != nil {
		return fmt.Errorf("executor: get %q: %w", item.Path, err)
	}
	defer rc.Close()

	absPath := e.localAbsPath(item.Path)
	if err := e.fs.WriteAtomic(absPath, rc); err != nil {
		return fmt.Errorf("executor: write %q: %w", item.Path, err)
	}

	var remoteMtime time.Time
	var etag string
	var size int64
	if item.Remote != nil {
		remoteMtime = item.Remote.Mtime
		etag = item.Remote.ETag
		size = item.Remote.Size
	}
	if !remoteMtime.IsZero() {
		_ = e.fs.SetModTime(absPath, remoteMtime)
	}

	localMtime := remoteMtime
	if s, m, statErr := e.fs.Stat(absPath); statErr == nil {
		size = s
		if remoteMtime.IsZero() {
			localMtime = m
		}
	}

	e.setDelta(result, item.Path, &vault.FileRecord{
		LocalMtime:  localMtime,
		RemoteMtime: remoteMtime,
		ETag:        etag,
		Size:        size,
	})
	return nil
}

func (e *Executor) deleteRemote(ctx context.Context, item planner.SyncItem, result *Result) error {
	if err := e.transport.Delete(ctx, e.remotePath(item.Path)); err != nil {
		return fmt.Errorf("executor: delete remote %q: %w", item.Path, err)
	}
	e.setDelta(result, item.Path, nil)
	return nil
}

func (e *Executor) deleteLocal(ctx context.Context, item planner.SyncItem, result *Result) error {
	if err := e.fs.Delete(e.localAbsPath(item.Path)); err != nil {
		return fmt.Errorf("executor: delete local %q: %w", item.Path, err)
	}
	e.setDelta(result, item.Path, nil)
	return nil
}

// setDelta is called from goroutines bounded by the phase's errgroup, so
// writes to the shared Delta map must be serialized.
func (e *Executor) setDelta(result *Result, p vault.Path, rec *vault.FileRecord) {
	e.deltaMu.Lock()
	defer e.deltaMu.Unlock()
	result.Delta[p.String()] = rec
}

// ensureRemoteDir creates dir and every ancestor, walking shallowest
// first, swallowing "already exists" responses. Creation of the same
// directory from concurrent uploads is serialized by holding mkdirMu
// across the MKCOL; mkdirDone skips directories already created.
func (e *Executor) ensureRemoteDir(ctx context.Context, dir vault.Path) error {
	if dir.IsZero() {
		return nil
	}
	if err := e.ensureRemoteDir(ctx, dir.Dir()); err != nil {
		return err
	}

	e.mkdirMu.Lock()
	defer e.mkdirMu.Unlock()
	if e.mkdirDone[dir.String()] {
		return nil
	}

	if err := e.transport.Mkcol(ctx, e.remotePath(dir)); err != nil {
		return err
	}

	e.mkdirDone[dir.String()] = true
	return nil
}
