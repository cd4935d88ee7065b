package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/voici5986/vaultsync/internal/config"
	"github.com/voici5986/vaultsync/internal/engine"
	"github.com/voici5986/vaultsync/internal/webdav"
)

// version is set at build time via ldflags.
var version = "dev"

// Global persistent flags, bound in setupRootCmd().
var (
	flagConfigPath string
	flagJSON       bool
	flagVerbose    bool
	flagDebug      bool
	flagQuiet      bool
)

// skipConfigAnnotation marks commands that handle config loading
// themselves (init, which may be creating the config file this run).
const skipConfigAnnotation = "skipConfig"

// CLIContext bundles resolved config and logger, created once in
// PersistentPreRunE so RunE handlers never repeat config resolution.
type CLIContext struct {
	Cfg    *config.Config
	Logger *slog.Logger
	Quiet  bool
	JSON   bool
}

type cliContextKey struct{}

func cliContextFrom(ctx context.Context) *CLIContext {
	cc, ok := ctx.Value(cliContextKey{}).(*CLIContext)
	if !ok {
		return nil
	}
	return cc
}

// mustCLIContext extracts the CLIContext or panics with an actionable
// message. RunE handlers for commands without skipConfigAnnotation may
// assume PersistentPreRunE already populated it.
func mustCLIContext(ctx context.Context) *CLIContext {
	cc := cliContextFrom(ctx)
	if cc == nil {
		panic("BUG: CLIContext not found in context — command does not skip config loading but ran before PersistentPreRunE")
	}
	return cc
}

// httpClientTimeout bounds the metadata client's HTTP requests (the
// PROPFIND scans). Transfers, MKCOLs and DELETEs go through the transfer
// client and rely on the executor's per-item context timeout instead —
// see transferHTTPClient.
const httpClientTimeout = 30 * time.Second

func defaultHTTPClient() *http.Client {
	return &http.Client{Timeout: httpClientTimeout}
}

// transferHTTPClient returns an HTTP client with no blanket timeout for
// upload/download operations. A large note vault attachment on a slow
// connection can exceed the 30-second default; transfers are bounded by
// the executor's per-item context timeout instead.
func transferHTTPClient() *http.Client {
	return &http.Client{Timeout: 0}
}

// newEngine builds an engine.Engine from the resolved config, wiring a
// real WebDAV client and the host filesystem. Metadata operations
// (PROPFIND during scanning) and transfers (PUT/GET/DELETE/MKCOL during
// execution) go through separate *webdav.Client instances backed by
// different HTTP clients, so a large transfer is never cut short by the
// metadata client's 30-second timeout.
func newEngine(ctx context.Context, cc *CLIContext) (*engine.Engine, error) {
	creds := webdav.Credentials{
		Username: cc.Cfg.Remote.Username,
		Password: cc.Cfg.Remote.Password,
		Bearer:   cc.Cfg.Remote.Bearer,
	}
	transport := webdav.NewClient(cc.Cfg.Remote.URL, creds, defaultHTTPClient(), cc.Logger)
	transferTransport := webdav.NewClient(cc.Cfg.Remote.URL, creds, transferHTTPClient(), cc.Logger)

	return engine.New(ctx, cc.Cfg, transport, cc.Logger, nil, engine.WithTransferTransport(transferTransport))
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "vaultsync",
		Short:         "Bidirectional sync between a local Markdown vault and a WebDAV remote",
		Long:          "vaultsync keeps a local Markdown note vault and a WebDAV remote reconciled with a three-way diff, surfacing conflicts instead of guessing at merges.",
		Version:       version,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Annotations[skipConfigAnnotation] == "true" {
				return nil
			}
			return loadConfigIntoContext(cmd)
		},
	}

	cmd.PersistentFlags().StringVar(&flagConfigPath, "config", "", "config file path")
	cmd.PersistentFlags().BoolVar(&flagJSON, "json", false, "output in JSON format")
	cmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "show detailed output")
	cmd.PersistentFlags().BoolVar(&flagDebug, "debug", false, "enable debug logging")
	cmd.PersistentFlags().BoolVarP(&flagQuiet, "quiet", "q", false, "suppress informational output")
	cmd.MarkFlagsMutuallyExclusive("verbose", "debug", "quiet")

	cmd.AddCommand(newInitCmd())
	cmd.AddCommand(newSyncCmd())
	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newResolveCmd())
	cmd.AddCommand(newWatchCmd())

	return cmd
}

func loadConfigIntoContext(cmd *cobra.Command) error {
	logger := buildLogger(nil)

	path := flagConfigPath
	if path == "" {
		path = config.DefaultConfigPathOrEnv()
	}

	cfg, err := config.Load(path, logger)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	finalLogger := buildLogger(cfg)
	cc := &CLIContext{Cfg: cfg, Logger: finalLogger, Quiet: flagQuiet, JSON: flagJSON}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	cmd.SetContext(context.WithValue(ctx, cliContextKey{}, cc))

	return nil
}

// buildLogger creates an slog.Logger from CLI flags and, once loaded,
// the config's own logging section. CLI flags always win: they are
// mutually exclusive (enforced by Cobra) and are the user's
// most-recent word on verbosity.
func buildLogger(cfg *config.Config) *slog.Logger {
	level := slog.LevelWarn

	if cfg != nil {
		switch cfg.Logging.Level {
		case "debug":
			level = slog.LevelDebug
		case "info":
			level = slog.LevelInfo
		case "error":
			level = slog.LevelError
		}
	}

	if flagVerbose {
		level = slog.LevelInfo
	}
	if flagDebug {
		level = slog.LevelDebug
	}
	if flagQuiet {
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg != nil && cfg.Logging.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

func exitOnError(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}
