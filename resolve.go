package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/voici5986/vaultsync/internal/engine"
	"github.com/voici5986/vaultsync/internal/ledger"
)

func newResolveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "resolve [path-or-id]",
		Short: "Resolve vault sync conflicts",
		Long: `Resolve conflicts recorded in the ledger with a chosen strategy.

Strategies:
  --keep-local   Upload the local file to overwrite remote
  --keep-remote  Download the remote file to overwrite local
  --keep-both    Rename the local file to a conflict copy, then download remote

Use --all to resolve all unresolved conflicts with the chosen strategy.
Without --all, a path or conflict ID (or an unambiguous prefix) is required.`,
		Args: cobra.MaximumNArgs(1),
		RunE: runResolve,
	}

	cmd.Flags().Bool("keep-local", false, "upload local file to overwrite remote")
	cmd.Flags().Bool("keep-remote", false, "download remote file to overwrite local")
	cmd.Flags().Bool("keep-both", false, "keep both versions, saving the local copy alongside the downloaded remote")
	cmd.Flags().Bool("all", false, "resolve all unresolved conflicts")
	cmd.Flags().Bool("dry-run", false, "preview resolution without executing")

	cmd.MarkFlagsMutuallyExclusive("keep-local", "keep-remote", "keep-both")

	return cmd
}

func runResolve(cmd *cobra.Command, args []string) error {
	resolution, err := resolveStrategy(cmd)
	if err != nil {
		return err
	}

	resolveAll := cmd.Flags().Changed("all")
	dryRun, err := cmd.Flags().GetBool("dry-run")
	if err != nil {
		return err
	}

	if !resolveAll && len(args) == 0 {
		return fmt.Errorf("specify a conflict path or ID, or use --all to resolve all conflicts")
	}
	if resolveAll && len(args) > 0 {
		return fmt.Errorf("--all and a specific conflict argument are mutually exclusive")
	}

	ctx := cmd.Context()
	cc := mustCLIContext(ctx)

	eng, err := newEngine(ctx, cc)
	if err != nil {
		return fmt.Errorf("building engine: %w", err)
	}
	defer eng.Close()

	if resolveAll {
		return resolveAllConflicts(ctx, eng, resolution, dryRun)
	}
	return resolveOneConflict(ctx, eng, args[0], resolution, dryRun)
}

// resolveStrategy returns the chosen resolution from flags.
func resolveStrategy(cmd *cobra.Command) (ledger.Resolution, error) {
	keepLocal := cmd.Flags().Changed("keep-local")
	keepRemote := cmd.Flags().Changed("keep-remote")
	keepBoth := cmd.Flags().Changed("keep-both")

	switch {
	case keepLocal:
		return ledger.ResolutionKeepLocal, nil
	case keepRemote:
		return ledger.ResolutionKeepRemote, nil
	case keepBoth:
		return ledger.ResolutionKeepBoth, nil
	default:
		return "", fmt.Errorf("specify a resolution strategy: --keep-local, --keep-remote, or --keep-both")
	}
}

func resolveAllConflicts(ctx context.Context, eng *engine.Engine, resolution ledger.Resolution, dryRun bool) error {
	conflicts, err := eng.ListConflicts(ctx)
	if err != nil {
		return err
	}
	if len(conflicts) == 0 {
		fmt.Println("No unresolved conflicts.")
		return nil
	}

	for i := range conflicts {
		c := &conflicts[i]
		if dryRun {
			statusf("Would resolve %s (%s) as %s\n", c.Path, truncateID(c.ID), resolution)
			continue
		}
		if err := eng.ResolveConflict(ctx, c, resolution, "cli"); err != nil {
			return fmt.Errorf("resolving %s: %w", c.Path, err)
		}
		statusf("Resolved %s as %s\n", c.Path, resolution)
	}

	return nil
}

func resolveOneConflict(ctx context.Context, eng *engine.Engine, idOrPath string, resolution ledger.Resolution, dryRun bool) error {
	c, err := eng.FindConflict(ctx, idOrPath)
	if err != nil {
		return err
	}

	if dryRun {
		statusf("Would resolve %s (%s) as %s\n", c.Path, truncateID(c.ID), resolution)
		return nil
	}

	if err := eng.ResolveConflict(ctx, c, resolution, "cli"); err != nil {
		return err
	}
	statusf("Resolved %s as %s\n", c.Path, resolution)
	return nil
}

// truncateID shortens a conflict UUID for compact status output.
func truncateID(id string) string {
	const shortLen = 8
	if len(id) <= shortLen {
		return id
	}
	return id[:shortLen]
}
