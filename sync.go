package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/voici5986/vaultsync/internal/engine"
	"github.com/voici5986/vaultsync/internal/planner"
)

func newSyncCmd() *cobra.Command {
	var flagQuick, flagDryRun bool

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Reconcile the local vault with the remote",
		Long: `Run one sync cycle: scan both sides, compute a three-way diff against
the last snapshot, and apply the resulting plan.

Use --quick to skip items that would otherwise surface as conflicts.
Use --dry-run to preview the plan without changing anything.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSync(cmd.Context(), flagQuick, flagDryRun)
		},
	}

	cmd.Flags().BoolVar(&flagQuick, "quick", false, "drop conflicting items from the plan instead of recording them")
	cmd.Flags().BoolVar(&flagDryRun, "dry-run", false, "preview the plan without executing it")

	return cmd
}

func runSync(ctx context.Context, quick, dryRun bool) error {
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

	cc.Logger.Info("sync: starting", "quick", quick, "dry_run", dryRun)

	if dryRun {
		plan, err := eng.Preview(ctx, quick)
		if err != nil {
			return fmt.Errorf("computing plan: %w", err)
		}
		if cc.JSON {
			return printPlanJSON(os.Stdout, plan)
		}
		printPlanText(plan)
		return nil
	}

	var report *engine.Report
	if quick {
		report, err = eng.RunQuick(ctx)
	} else {
		report, err = eng.RunOnce(ctx)
	}
	if err != nil && report == nil {
		return fmt.Errorf("sync failed: %w", err)
	}

	if cc.JSON {
		if err := printSyncJSON(os.Stdout, report); err != nil {
			return err
		}
	} else {
		printSyncText(report)
	}

	if len(report.Errors) > 0 {
		return fmt.Errorf("sync completed with %d errors", len(report.Errors))
	}

	return nil
}

func printSyncText(report *engine.Report) {
	if report.Uploaded == 0 && report.Downloaded == 0 && report.DeletedRemote == 0 &&
		report.DeletedLocal == 0 && report.Conflicts == 0 && len(report.Errors) == 0 {
		statusf("Already in sync.\n")
		return
	}

	statusf("Sync complete (%s)\n", report.Duration)

	if report.Uploaded > 0 {
		statusf("  Uploaded:       %d\n", report.Uploaded)
	}
	if report.Downloaded > 0 {
		statusf("  Downloaded:     %d\n", report.Downloaded)
	}
	if report.DeletedRemote > 0 || report.DeletedLocal > 0 {
		statusf("  Deleted:        %d remote, %d local\n", report.DeletedRemote, report.DeletedLocal)
	}
	if report.Conflicts > 0 {
		statusf("  Conflicts:      %d\n", report.Conflicts)
	}
	if report.Skipped > 0 {
		statusf("  Skipped:        %d\n", report.Skipped)
	}
	if len(report.Errors) > 0 {
		statusf("  Errors:         %d\n", len(report.Errors))
	}
	if report.Cancelled {
		statusf("  Cancelled before completion.\n")
	}
}

// syncJSONOutput is the JSON output schema for the sync command.
type syncJSONOutput struct {
	DurationMs    int64           `json:"duration_ms"`
	Uploaded      int             `json:"uploaded"`
	Downloaded    int             `json:"downloaded"`
	DeletedRemote int             `json:"deleted_remote"`
	DeletedLocal  int             `json:"deleted_local"`
	Conflicts     int             `json:"conflicts"`
	Skipped       int             `json:"skipped"`
	Cancelled     bool            `json:"cancelled"`
	Errors        []syncJSONError `json:"errors"`
}

type syncJSONError struct {
	Path    string `json:"path"`
	Action  string `json:"action"`
	Message string `json:"message"`
}

func printSyncJSON(w io.Writer, report *engine.Report) error {
	errs := make([]syncJSONError, 0, len(report.Errors))
	for _, e := range report.Errors {
		errs = append(errs, syncJSONError{Path: e.Path, Action: e.Action, Message: e.Message})
	}

	out := syncJSONOutput{
		DurationMs:    report.Duration.Milliseconds(),
		Uploaded:      report.Uploaded,
		Downloaded:    report.Downloaded,
		DeletedRemote: report.DeletedRemote,
		DeletedLocal:  report.DeletedLocal,
		Conflicts:     report.Conflicts,
		Skipped:       report.Skipped,
		Cancelled:     report.Cancelled,
		Errors:        errs,
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func printPlanText(plan *planner.SyncPlan) {
	if len(plan.Items) == 0 || allSkip(plan) {
		statusf("Dry run — already in sync.\n")
		return
	}

	statusf("Dry run — no changes made\n")
	statusf("  Uploads:        %d\n", plan.UploadCount)
	statusf("  Downloads:      %d\n", plan.DownloadCount)
	statusf("  Deletions:      %d\n", plan.DeleteCount)

	for _, item := range plan.Items {
		if item.Action == planner.Skip {
			continue
		}
		statusf("  %-14s %s\n", item.Action, item.Path)
	}
}

func allSkip(plan *planner.SyncPlan) bool {
	for _, item := range plan.Items {
		if item.Action != planner.Skip {
			return false
		}
	}
	return true
}

type planJSONItem struct {
	Path   string `json:"path"`
	Action string `json:"action"`
	Reason string `json:"reason,omitempty"`
}

func printPlanJSON(w io.Writer, plan *planner.SyncPlan) error {
	items := make([]planJSONItem, 0, len(plan.Items))
	for _, item := range plan.Items {
		if item.Action == planner.Skip {
			continue
		}
		items = append(items, planJSONItem{Path: item.Path.String(), Action: item.Action.String(), Reason: item.Reason})
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(struct {
		Uploads   int            `json:"uploads"`
		Downloads int            `json:"downloads"`
		Deletions int            `json:"deletions"`
		Items     []planJSONItem `json:"items"`
	}{plan.UploadCount, plan.DownloadCount, plan.DeleteCount, items})
}
