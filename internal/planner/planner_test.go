package planner

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voici5986/vaultsync/internal/vault"
)

func unix(sec int64) time.Time { return time.Unix(sec, 0).UTC() }

func TestPlanFreshUpload(t *testing.T) {
	local := map[string]vault.LocalEntry{
		"notes/a.md": {Path: vault.MustPath("notes/a.md"), Mtime: unix(1000), Size: 12},
	}
	plan := Plan(local, map[string]vault.RemoteEntry{}, vault.NewSnapshot(), Config{Now: unix(1000)})

	require.Len(t, plan.Items, 1)
	item := plan.Items[0]
	assert.Equal(t, Upload, item.Action)
	assert.Equal(t, "new local file", item.Reason)
	assert.Equal(t, 1, plan.UploadCount)
}

func TestPlanFreshDownload(t *testing.T) {
	remote := map[string]vault.RemoteEntry{
		"b.md": {Path: vault.MustPath("b.md"), Mtime: unix(2000), ETag: `"v1"`},
	}
	plan := Plan(map[string]vault.LocalEntry{}, remote, vault.NewSnapshot(), Config{Now: unix(2000)})

	require.Len(t, plan.Items, 1)
	assert.Equal(t, Download, plan.Items[0].Action)
	assert.Equal(t, 1, plan.DownloadCount)
}

func TestPlanRemoteSideDelete(t *testing.T) {
	snap := vault.NewSnapshot()
	snap.Set(vault.MustPath("c.md"), vault.FileRecord{LocalMtime: unix(3000), RemoteMtime: unix(3000), ETag: `"v1"`, Size: 5})

	local := map[string]vault.LocalEntry{
		"c.md": {Path: vault.MustPath("c.md"), Mtime: unix(3000), Size: 5},
	}

	plan := Plan(local, map[string]vault.RemoteEntry{}, snap, Config{})
	require.Len(t, plan.Items, 1)
	assert.Equal(t, DeleteLocal, plan.Items[0].Action)
	assert.Equal(t, "remote removed, local unchanged", plan.Items[0].Reason)
}

func TestPlanLocalModification(t *testing.T) {
	snap := vault.NewSnapshot()
	snap.Set(vault.MustPath("d.md"), vault.FileRecord{LocalMtime: unix(1000), RemoteMtime: unix(1000), Size: 5})

	local := map[string]vault.LocalEntry{
		"d.md": {Path: vault.MustPath("d.md"), Mtime: unix(1500), Size: 5},
	}
	remote := map[string]vault.RemoteEntry{
		"d.md": {Path: vault.MustPath("d.md"), Mtime: unix(1000)},
	}

	plan := Plan(local, remote, snap, Config{})
	require.Len(t, plan.Items, 1)
	assert.Equal(t, Upload, plan.Items[0].Action)
	assert.Equal(t, "local changed", plan.Items[0].Reason)
}

func TestPlanTrueConflict(t *testing.T) {
	snap := vault.NewSnapshot()
	snap.Set(vault.MustPath("e.md"), vault.FileRecord{LocalMtime: unix(1000), RemoteMtime: unix(1000)})

	local := map[string]vault.LocalEntry{
		"e.md": {Path: vault.MustPath("e.md"), Mtime: unix(1500)},
	}
	remote := map[string]vault.RemoteEntry{
		"e.md": {Path: vault.MustPath("e.md"), Mtime: unix(1600)},
	}

	plan := Plan(local, remote, snap, Config{ClockSkewTolerance: 2 * time.Second})
	require.Len(t, plan.Items, 1)
	assert.Equal(t, Conflict, plan.Items[0].Action)
	assert.Equal(t, 1, plan.ConflictCount)
}

func TestPlanStaleSnapshotRowPruned(t *testing.T) {
	snap := vault.NewSnapshot()
	snap.Set(vault.MustPath("gone.md"), vault.FileRecord{})

	plan := Plan(map[string]vault.LocalEntry{}, map[string]vault.RemoteEntry{}, snap, Config{})
	assert.Empty(t, plan.Items)
}

func TestPlanEmptyVaultAndRemote(t *testing.T) {
	plan := Plan(map[string]vault.LocalEntry{}, map[string]vault.RemoteEntry{}, vault.NewSnapshot(), Config{})
	assert.Empty(t, plan.Items)
	assert.Zero(t, plan.UploadCount+plan.DownloadCount+plan.DeleteCount+plan.ConflictCount)
}

func TestPlanFirstMeetContentsEqualSkipsAndRefreshes(t *testing.T) {
	local := map[string]vault.LocalEntry{
		"f.md": {Path: vault.MustPath("f.md"), Mtime: unix(100), Size: 5, ContentHash: "abc"},
	}
	remote := map[string]vault.RemoteEntry{
		"f.md": {Path: vault.MustPath("f.md"), Mtime: unix(200), ContentHash: "abc"},
	}

	plan := Plan(local, remote, vault.NewSnapshot(), Config{Now: unix(500)})
	require.Len(t, plan.Items, 1)
	item := plan.Items[0]
	assert.Equal(t, Skip, item.Action)
	require.NotNil(t, item.Refresh)
	assert.Equal(t, unix(100).Unix(), item.Refresh.LocalMtime.Unix())
}

func TestPlanFirstMeetPlaceholderPrefersNonEmptySide(t *testing.T) {
	now := unix(1000)
	local := map[string]vault.LocalEntry{
		"g.md": {Path: vault.MustPath("g.md"), Mtime: now, Size: 0},
	}
	remote := map[string]vault.RemoteEntry{
		"g.md": {Path: vault.MustPath("g.md"), Mtime: unix(100), Size: 40},
	}

	plan := Plan(local, remote, vault.NewSnapshot(), Config{Now: now})
	require.Len(t, plan.Items, 1)
	assert.Equal(t, Download, plan.Items[0].Action)
}

func TestPlanDeterministicOrdering(t *testing.T) {
	local := map[string]vault.LocalEntry{
		"z.md": {Path: vault.MustPath("z.md"), Mtime: unix(1)},
		"a.md": {Path: vault.MustPath("a.md"), Mtime: unix(1)},
	}
	p1 := Plan(local, map[string]vault.RemoteEntry{}, vault.NewSnapshot(), Config{Now: unix(1)})
	p2 := Plan(local, map[string]vault.RemoteEntry{}, vault.NewSnapshot(), Config{Now: unix(1)})

	require.Len(t, p1.Items, 2)
	assert.Equal(t, p1.Items[0].Path, p2.Items[0].Path)
	assert.Equal(t, "a.md", p1.Items[0].Path.String())
	assert.Equal(t, "z.md", p1.Items[1].Path.String())
}
