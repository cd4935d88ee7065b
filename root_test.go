package main

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/voici5986/vaultsync/internal/config"
)

func resetFlags() {
	flagConfigPath = ""
	flagJSON = false
	flagVerbose = false
	flagDebug = false
	flagQuiet = false
}

func TestBuildLoggerDefault(t *testing.T) {
	resetFlags()
	logger := buildLogger(nil)

	assert.True(t, logger.Handler().Enabled(context.Background(), slog.LevelWarn))
	assert.False(t, logger.Handler().Enabled(context.Background(), slog.LevelInfo))
}

func TestBuildLoggerVerbose(t *testing.T) {
	resetFlags()
	flagVerbose = true
	defer resetFlags()

	logger := buildLogger(nil)
	assert.True(t, logger.Handler().Enabled(context.Background(), slog.LevelInfo))
	assert.False(t, logger.Handler().Enabled(context.Background(), slog.LevelDebug))
}

func TestBuildLoggerDebug(t *testing.T) {
	resetFlags()
	flagDebug = true
	defer resetFlags()

	logger := buildLogger(nil)
	assert.True(t, logger.Handler().Enabled(context.Background(), slog.LevelDebug))
}

func TestBuildLoggerQuiet(t *testing.T) {
	resetFlags()
	flagQuiet = true
	defer resetFlags()

	logger := buildLogger(nil)
	assert.True(t, logger.Handler().Enabled(context.Background(), slog.LevelError))
	assert.False(t, logger.Handler().Enabled(context.Background(), slog.LevelWarn))
}

func TestBuildLoggerFromConfig(t *testing.T) {
	resetFlags()
	cfg := config.DefaultConfig()
	cfg.Logging.Level = "debug"

	logger := buildLogger(cfg)
	assert.True(t, logger.Handler().Enabled(context.Background(), slog.LevelDebug))
}

func TestBuildLoggerFlagsOverrideConfig(t *testing.T) {
	resetFlags()
	flagVerbose = true
	defer resetFlags()

	cfg := config.DefaultConfig()
	cfg.Logging.Level = "error"

	logger := buildLogger(cfg)
	assert.True(t, logger.Handler().Enabled(context.Background(), slog.LevelInfo))
}

func TestCliContextFromNilContext(t *testing.T) {
	cc := cliContextFrom(context.Background())
	assert.Nil(t, cc)
}

func TestCliContextFromWithValue(t *testing.T) {
	expected := &CLIContext{Cfg: config.DefaultConfig()}
	ctx := context.WithValue(context.Background(), cliContextKey{}, expected)
	assert.Equal(t, expected, cliContextFrom(ctx))
}

func TestMustCLIContextPanicsWhenMissing(t *testing.T) {
	assert.Panics(t, func() { mustCLIContext(context.Background()) })
}

func TestMustCLIContextReturnsWhenPresent(t *testing.T) {
	expected := &CLIContext{Cfg: config.DefaultConfig()}
	ctx := context.WithValue(context.Background(), cliContextKey{}, expected)
	assert.Equal(t, expected, mustCLIContext(ctx))
}

func TestNewRootCmdRegistersSubcommands(t *testing.T) {
	cmd := newRootCmd()

	expected := []string{"init", "sync", "status", "resolve", "watch"}
	for _, name := range expected {
		sub, _, err := cmd.Find([]string{name})
		assert.NoError(t, err, "expected subcommand %q", name)
		if err == nil {
			assert.Equal(t, name, sub.Name())
		}
	}
}

func TestNewRootCmdPersistentFlags(t *testing.T) {
	cmd := newRootCmd()

	for _, name := range []string{"config", "json", "verbose", "debug", "quiet"} {
		assert.NotNil(t, cmd.PersistentFlags().Lookup(name), "expected persistent flag %q", name)
	}
}

func TestNewRootCmdMutualExclusivity(t *testing.T) {
	resetFlags()
	defer resetFlags()

	cmd := newRootCmd()
	cmd.SetArgs([]string{"--verbose", "--debug", "status"})

	err := cmd.Execute()
	assert.Error(t, err)
}

func TestInitCommandSkipsConfigLoading(t *testing.T) {
	cmd := newRootCmd()
	sub, _, err := cmd.Find([]string{"init"})
	assert.NoError(t, err)
	assert.Equal(t, "true", sub.Annotations[skipConfigAnnotation])
}

func TestSyncCommandDoesNotSkipConfigLoading(t *testing.T) {
	cmd := newRootCmd()
	sub, _, err := cmd.Find([]string{"sync"})
	assert.NoError(t, err)
	assert.Empty(t, sub.Annotations[skipConfigAnnotation])
}

func TestDefaultHTTPClientHasTimeout(t *testing.T) {
	client := defaultHTTPClient()
	assert.Equal(t, httpClientTimeout, client.Timeout)
}
