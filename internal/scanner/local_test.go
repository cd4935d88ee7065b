package scanner

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalScanBasic(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "notes"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes", "a.md"), []byte("hello"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "root.md"), []byte("world"), 0o644))

	filter := NewFilter(FilterConfig{ReservedHiddenDir: ".vaultsync"}, dir, nil)
	local := NewLocal(dir, filter, nil)

	entries, err := local.Scan()
	require.NoError(t, err)
	assert.Len(t, entries, 2)
	assert.Contains(t, entries, "notes/a.md")
	assert.Contains(t, entries, "root.md")
	assert.NotEmpty(t, entries["notes/a.md"].ContentHash)
}

func TestLocalScanExcludesReservedDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, ".vaultsync"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".vaultsync", "snapshot.json"), []byte("{}"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "note.md"), []byte("hi"), 0o644))

	filter := NewFilter(FilterConfig{ReservedHiddenDir: ".vaultsync"}, dir, nil)
	local := NewLocal(dir, filter, nil)

	entries, err := local.Scan()
	require.NoError(t, err)
	assert.Len(t, entries, 1)
	assert.Contains(t, entries, "note.md")
}

func TestLocalScanHaltsOnNosyncGuard(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".nosync"), nil, 0o644))

	local := NewLocal(dir, nil, nil)
	_, err := local.Scan()
	assert.ErrorIs(t, err, ErrNosyncGuard)
}

func TestLocalScanSkipPatterns(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "draft.tmp"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "keep.md"), []byte("x"), 0o644))

	filter := NewFilter(FilterConfig{SkipPatterns: []string{"*.tmp"}}, dir, nil)
	local := NewLocal(dir, filter, nil)

	entries, err := local.Scan()
	require.NoError(t, err)
	assert.Len(t, entries, 1)
	assert.Contains(t, entries, "keep.md")
}
