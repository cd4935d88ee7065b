package vault

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreLoadMissingFileReturnsEmptySnapshot(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(filepath.Join(dir, "snapshot.json"), nil)

	snap, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, CurrentFormatVersion, snap.FormatVersion)
	assert.Empty(t, snap.Records)
}

func TestStoreSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "snapshot.json")
	store := NewStore(path, nil)

	snap := NewSnapshot()
	snap.Set(MustPath("notes/a.md"), FileRecord{
		LocalMtime:  time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		RemoteMtime: time.Date(2026, 1, 1, 0, 0, 1, 0, time.UTC),
		ETag:        `"abc"`,
		Size:        42,
	})
	require.NoError(t, store.Save(snap))

	loaded, err := store.Load()
	require.NoError(t, err)
	rec, ok := loaded.Get(MustPath("notes/a.md"))
	require.True(t, ok)
	assert.Equal(t, int64(42), rec.Size)
	assert.Equal(t, `"abc"`, rec.ETag)
}

func TestStoreLoadDiscardsCorruptFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "snapshot.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	store := NewStore(path, nil)
	snap, err := store.Load()
	require.NoError(t, err)
	assert.Empty(t, snap.Records)
}

func TestStoreLoadDiscardsNewerFormatVersion(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "snapshot.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"format_version":999,"records":{}}`), 0o644))

	store := NewStore(path, nil)
	snap, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, CurrentFormatVersion, snap.FormatVersion)
}

func TestSnapshotDelete(t *testing.T) {
	snap := NewSnapshot()
	p := MustPath("x.md")
	snap.Set(p, FileRecord{Size: 1})
	snap.Delete(p)
	_, ok := snap.Get(p)
	assert.False(t, ok)
}
