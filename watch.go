package main

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/voici5986/vaultsync/internal/engine"
)

// watchDebounce coalesces bursts of filesystem events (a save often
// fires write+chmod+rename in quick succession) into a single sync.
const watchDebounce = 800 * time.Millisecond

// watchSafetyInterval runs a sync periodically even with no observed
// events, catching remote-side changes and anything fsnotify missed.
const watchSafetyInterval = 5 * time.Minute

func newWatchCmd() *cobra.Command {
	var flagQuick bool

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Watch the vault and sync continuously on local changes",
		Long: `Watch runs sync cycles whenever the local vault changes, plus a
periodic safety sync every five minutes to pick up remote-side changes
and anything a filesystem event missed. It runs until interrupted.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runWatch(cmd.Context(), flagQuick)
		},
	}

	cmd.Flags().BoolVar(&flagQuick, "quick", false, "drop conflicting items from each plan instead of recording them")

	return cmd
}

func runWatch(ctx context.Context, quick bool) error {
	cc := mustCLIContext(ctx)

	lock, err := acquireVaultLock(cc.Cfg)
	if err != nil {
		return err
	}
	defer lock.Unlock()

	eng, err := newEngine(ctx, cc)
	if err != nil {
		return fmt.Errorf("building engine: %w", err)
	}
	defer eng.Close()

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("starting filesystem watcher: %w", err)
	}
	defer watcher.Close()

	if err := addWatchDirs(watcher, eng.VaultDir(), cc.Cfg.Vault.ReservedHiddenDir); err != nil {
		return fmt.Errorf("watching vault: %w", err)
	}

	ctx = shutdownContext(ctx, cc.Logger)

	cc.Logger.Info("watch: started", "vault", eng.VaultDir(), "quick", quick)
	statusf("Watching %s — press Ctrl+C to stop.\n", eng.VaultDir())

	return watchLoop(ctx, eng, watcher, quick, cc.Logger)
}

// addWatchDirs recursively registers every non-reserved directory under
// vaultDir with the watcher. fsnotify watches are not recursive, so new
// subdirectories created during the watch are picked up as they arrive
// in watchLoop's event handling.
func addWatchDirs(watcher *fsnotify.Watcher, vaultDir, reservedHiddenDir string) error {
	return filepath.WalkDir(vaultDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return fmt.Errorf("walking %q: %w", path, err)
		}
		if !d.IsDir() {
			return nil
		}
		if d.Name() == reservedHiddenDir && path != vaultDir {
			return filepath.SkipDir
		}
		return watcher.Add(path)
	})
}

func watchLoop(ctx context.Context, eng *engine.Engine, watcher *fsnotify.Watcher, quick bool, logger *slog.Logger) error {
	debounce := time.NewTimer(0)
	if !debounce.Stop() {
		<-debounce.C
	}
	defer debounce.Stop()

	safety := time.NewTicker(watchSafetyInterval)
	defer safety.Stop()

	pending := false

	runSyncCycle := func(reason string) {
		logger.Info("watch: syncing", "reason", reason)
		report, err := runEngineCycle(ctx, eng, quick)
		if err != nil {
			statusf("sync error: %v\n", err)
			return
		}
		printSyncText(report)
	}

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if ev.Op&fsnotify.Create != 0 {
				if info, err := fsPathIsDir(ev.Name); err == nil && info {
					watcher.Add(ev.Name)
				}
			}
			pending = true
			debounce.Reset(watchDebounce)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("watch: filesystem watcher error", "error", err)

		case <-debounce.C:
			if pending {
				pending = false
				runSyncCycle("local change")
			}

		case <-safety.C:
			runSyncCycle("periodic safety sync")
		}
	}
}

func runEngineCycle(ctx context.Context, eng *engine.Engine, quick bool) (*engine.Report, error) {
	if quick {
		return eng.RunQuick(ctx)
	}
	return eng.RunOnce(ctx)
}

func fsPathIsDir(path string) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		return false, err
	}
	return info.IsDir(), nil
}
