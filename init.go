package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/voici5986/vaultsync/internal/config"
)

func newInitCmd() *cobra.Command {
	var (
		vaultRoot string
		remoteURL string
	)

	cmd := &cobra.Command{
		Use:           "init",
		Short:         "Create a new vault configuration",
		Annotations:   map[string]string{skipConfigAnnotation: "true"},
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runInit(cmd, vaultRoot, remoteURL)
		},
	}

	cmd.Flags().StringVar(&vaultRoot, "vault-root", "", "path to the local vault directory (required)")
	cmd.Flags().StringVar(&remoteURL, "remote-url", "", "WebDAV remote base URL (required)")
	cmd.MarkFlagRequired("vault-root")
	cmd.MarkFlagRequired("remote-url")

	return cmd
}

func runInit(cmd *cobra.Command, vaultRoot, remoteURL string) error {
	absRoot, err := filepath.Abs(vaultRoot)
	if err != nil {
		return fmt.Errorf("resolving vault root: %w", err)
	}

	defaults := config.DefaultConfig()
	if err := os.MkdirAll(filepath.Join(absRoot, defaults.Vault.ReservedHiddenDir), 0o755); err != nil {
		return fmt.Errorf("creating vault directory: %w", err)
	}

	path := flagConfigPath
	if path == "" {
		path = config.DefaultConfigPathOrEnv()
	}
	if path == "" {
		return fmt.Errorf("could not resolve a config path; pass --config explicitly")
	}

	if err := config.WriteTemplate(path, absRoot, remoteURL); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Initialized vault at %s\nConfig written to %s\n", absRoot, path)
	return nil
}
