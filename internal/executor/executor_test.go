package executor

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voici5986/vaultsync/internal/planner"
	"github.com/voici5986/vaultsync/internal/vault"
	"github.com/voici5986/vaultsync/internal/webdav"
)

type memTransport struct {
	files map[string][]byte
	dirs  map[string]bool
}

func newMemTransport() *memTransport {
	return &memTransport{files: make(map[string][]byte), dirs: make(map[string]bool)}
}

func (m *memTransport) PropfindRecursive(ctx context.Context, dir string) ([]webdav.Resource, error) {
	return nil, nil
}

func (m *memTransport) Get(ctx context.Context, path string) (io.ReadCloser, error) {
	data, ok := m.files[path]
	if !ok {
		return nil, webdav.ErrNotFound
	}
	return io.NopCloser(bytesReader(data)), nil
}

func (m *memTransport) Put(ctx context.Context, path string, content io.Reader, size int64) error {
	data, err := io.ReadAll(content)
	if err != nil {
		return err
	}
	m.files[path] = data
	return nil
}

func (m *memTransport) Mkcol(ctx context.Context, path string) error {
	m.dirs[path] = true
	return nil
}

func (m *memTransport) Delete(ctx context.Context, path string) error {
	delete(m.files, path)
	return nil
}

func bytesReader(b []byte) io.Reader { return &sliceReader{b: b} }

type sliceReader struct {
	b []byte
	i int
}

func (r *sliceReader) Read(p []byte) (int, error) {
	if r.i >= len(r.b) {
		return 0, io.EOF
	}
	n := copy(p, r.b[r.i:])
	r.i += n
	return n, nil
}

func TestExecuteUpload(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.md"), []byte("hello"), 0o644))

	transport := newMemTransport()
	ex := New(transport, OSFilesystem{}, Config{VaultDir: dir}, nil, nil)

	plan := &planner.SyncPlan{Items: []planner.SyncItem{
		{Path: vault.MustPath("a.md"), Action: planner.Upload},
	}}

	result, err := ex.Execute(context.Background(), plan)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Uploaded)
	assert.True(t, result.Success())
	assert.Equal(t, []byte("hello"), transport.files["a.md"])
	assert.Contains(t, result.Delta, "a.md")
}

func TestExecuteDownload(t *testing.T) {
	dir := t.TempDir()
	transport := newMemTransport()
	transport.files["b.md"] = []byte("world")

	ex := New(transport, OSFilesystem{}, Config{VaultDir: dir}, nil, nil)
	plan := &planner.SyncPlan{Items: []planner.SyncItem{
		{Path: vault.MustPath("b.md"), Action: planner.Download, Remote: &vault.RemoteEntry{ETag: `"v1"`}},
	}}

	result, err := ex.Execute(context.Background(), plan)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Downloaded)

	data, err := os.ReadFile(filepath.Join(dir, "b.md"))
	require.NoError(t, err)
	assert.Equal(t, "world", string(data))
}

func TestExecutePartialFailureDoesNotAbort(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ok.md"), []byte("ok"), 0o644))
	// "missing.md" deliberately not created locally: its upload will fail to stat.

	transport := newMemTransport()
	ex := New(transport, OSFilesystem{}, Config{VaultDir: dir}, nil, nil)

	plan := &planner.SyncPlan{Items: []planner.SyncItem{
		{Path: vault.MustPath("ok.md"), Action: planner.Upload},
		{Path: vault.MustPath("missing.md"), Action: planner.Upload},
	}}

	result, err := ex.Execute(context.Background(), plan)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Uploaded)
	assert.Len(t, result.Errors, 1)
	assert.False(t, result.Success())
	assert.Contains(t, result.Delta, "ok.md")
	assert.NotContains(t, result.Delta, "missing.md")
}

func TestExecuteConflictNotApplied(t *testing.T) {
	dir := t.TempDir()
	transport := newMemTransport()
	ex := New(transport, OSFilesystem{}, Config{VaultDir: dir}, nil, nil)

	plan := &planner.SyncPlan{Items: []planner.SyncItem{
		{Path: vault.MustPath("conflict.md"), Action: planner.Conflict},
	}}

	result, err := ex.Execute(context.Background(), plan)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Conflicts)
	assert.Empty(t, result.Delta)
}

func TestExecuteSkipWithRefreshAppliesDelta(t *testing.T) {
	dir := t.TempDir()
	transport := newMemTransport()
	ex := New(transport, OSFilesystem{}, Config{VaultDir: dir}, nil, nil)

	refresh := &vault.FileRecord{Size: 5}
	plan := &planner.SyncPlan{Items: []planner.SyncItem{
		{Path: vault.MustPath("seed.md"), Action: planner.Skip, Refresh: refresh},
	}}

	result, err := ex.Execute(context.Background(), plan)
	require.NoError(t, err)
	assert.Same(t, refresh, result.Delta["seed.md"])
}

func TestExecuteDeleteLocal(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "gone.md"), []byte("x"), 0o644))

	transport := newMemTransport()
	ex := New(transport, OSFilesystem{}, Config{VaultDir: dir}, nil, nil)

	plan := &planner.SyncPlan{Items: []planner.SyncItem{
		{Path: vault.MustPath("gone.md"), Action: planner.DeleteLocal},
	}}

	result, err := ex.Execute(context.Background(), plan)
	require.NoError(t, err)
	assert.Equal(t, 1, result.DeletedLocal)
	_, statErr := os.Stat(filepath.Join(dir, "gone.md"))
	assert.True(t, os.IsNotExist(statErr))
	assert.Contains(t, result.Delta, "gone.md")
	assert.Nil(t, result.Delta["gone.md"])
}
