package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/voici5986/vaultsync/internal/ledger"
)

func newStatusCmd() *cobra.Command {
	var flagStale bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show vault configuration, last sync time, and unresolved conflicts",
		Long: `Display the configured vault and remote, when the vault last synced,
how many paths it tracks, and how many conflicts are unresolved.

Use --stale to list files the ledger has flagged as stale instead.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStatus(cmd, flagStale)
		},
	}

	cmd.Flags().BoolVar(&flagStale, "stale", false, "list stale files recorded in the ledger")

	return cmd
}

// statusOutput is the JSON/text schema for the status command.
type statusOutput struct {
	VaultRoot       string `json:"vault_root"`
	RemoteURL       string `json:"remote_url"`
	TrackedPaths    int    `json:"tracked_paths"`
	LastSync        string `json:"last_sync,omitempty"`
	UnresolvedCount int    `json:"unresolved_conflicts"`
	StaleFilesCount int    `json:"stale_files"`

	lastSyncTime time.Time
}

type staleOutput struct {
	Path       string `json:"path"`
	Reason     string `json:"reason"`
	DetectedAt string `json:"detected_at"`
}

func runStatus(cmd *cobra.Command, stale bool) error {
	ctx := cmd.Context()
	cc := mustCLIContext(ctx)

	eng, err := newEngine(ctx, cc)
	if err != nil {
		return fmt.Errorf("building engine: %w", err)
	}
	defer eng.Close()

	if stale {
		records, err := eng.Ledger().ListStale(ctx)
		if err != nil {
			return fmt.Errorf("listing stale files: %w", err)
		}
		if cc.JSON {
			return printStaleJSON(os.Stdout, records)
		}
		printStaleText(os.Stdout, records)
		return nil
	}

	snap, err := eng.Snapshot()
	if err != nil {
		return fmt.Errorf("reading snapshot: %w", err)
	}

	conflicts, err := eng.ListConflicts(ctx)
	if err != nil {
		return fmt.Errorf("listing conflicts: %w", err)
	}

	staleRecords, err := eng.Ledger().ListStale(ctx)
	if err != nil {
		return fmt.Errorf("listing stale files: %w", err)
	}

	out := statusOutput{
		VaultRoot:       cc.Cfg.Vault.Root,
		RemoteURL:       cc.Cfg.Remote.URL,
		TrackedPaths:    len(snap.Records),
		UnresolvedCount: len(conflicts),
		StaleFilesCount: len(staleRecords),
	}
	if !snap.LastSync.IsZero() {
		out.LastSync = formatTime(snap.LastSync)
		out.lastSyncTime = snap.LastSync
	}

	if cc.JSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	printStatusText(os.Stdout, out)
	return nil
}

func printStatusText(w io.Writer, out statusOutput) {
	fmt.Fprintf(w, "Vault:       %s\n", out.VaultRoot)
	fmt.Fprintf(w, "Remote:      %s\n", out.RemoteURL)
	fmt.Fprintf(w, "Tracked:     %d paths\n", out.TrackedPaths)
	if out.LastSync != "" {
		fmt.Fprintf(w, "Last sync:   %s (%s)\n", out.LastSync, humanize.Time(out.lastSyncTime))
	} else {
		fmt.Fprintf(w, "Last sync:   never\n")
	}
	fmt.Fprintf(w, "Conflicts:   %d unresolved\n", out.UnresolvedCount)
	fmt.Fprintf(w, "Stale files: %d\n", out.StaleFilesCount)
}

func printStaleText(w io.Writer, records []ledger.StaleRecord) {
	if len(records) == 0 {
		fmt.Fprintln(w, "No stale files recorded.")
		return
	}

	rows := make([][]string, 0, len(records))
	for _, r := range records {
		rows = append(rows, []string{r.Path, r.Reason, formatTime(r.DetectedAt)})
	}
	printTable(w, []string{"PATH", "REASON", "DETECTED"}, rows)
}

func printStaleJSON(w io.Writer, records []ledger.StaleRecord) error {
	out := make([]staleOutput, 0, len(records))
	for _, r := range records {
		out = append(out, staleOutput{Path: r.Path, Reason: r.Reason, DetectedAt: formatTime(r.DetectedAt)})
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
