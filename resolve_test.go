package main

import (
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voici5986/vaultsync/internal/ledger"
)

func TestTruncateID(t *testing.T) {
	assert.Equal(t, "aabb1122", truncateID("aabb1122-dead-beef-cafe-000000000001"))
	assert.Equal(t, "short", truncateID("short"))
}

func TestResolveStrategy(t *testing.T) {
	tests := []struct {
		name string
		flag string
		want ledger.Resolution
	}{
		{"keep-local", "keep-local", ledger.ResolutionKeepLocal},
		{"keep-remote", "keep-remote", ledger.ResolutionKeepRemote},
		{"keep-both", "keep-both", ledger.ResolutionKeepBoth},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := newResolveCmd()
			require.NoError(t, cmd.Flags().Set(tt.flag, "true"))

			got, err := resolveStrategy(cmd)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolveStrategyRequiresAFlag(t *testing.T) {
	cmd := newResolveCmd()
	_, err := resolveStrategy(cmd)
	assert.Error(t, err)
}

func TestNewResolveCmdMutualExclusivity(t *testing.T) {
	root := &cobra.Command{Use: "root"}
	root.AddCommand(newResolveCmd())
	root.SetArgs([]string{"resolve", "--keep-local", "--keep-remote", "some-path"})

	err := root.Execute()
	assert.Error(t, err)
}

func TestNewResolveCmdHasAllAndDryRunFlags(t *testing.T) {
	cmd := newResolveCmd()
	assert.NotNil(t, cmd.Flags().Lookup("all"))
	assert.NotNil(t, cmd.Flags().Lookup("dry-run"))
}
