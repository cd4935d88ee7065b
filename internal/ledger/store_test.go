package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(context.Background(), ":memory:", nil)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestRecordAndListUnresolvedConflict(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	id, err := store.RecordConflict(ctx, "notes/a.md", time.Now(), time.Now(), "hash1", `"etag1"`, "both changed")
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	unresolved, err := store.ListUnresolved(ctx)
	require.NoError(t, err)
	require.Len(t, unresolved, 1)
	assert.Equal(t, "notes/a.md", unresolved[0].Path)
	assert.Equal(t, ResolutionUnresolved, unresolved[0].Resolution)
}

func TestResolveConflict(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	id, err := store.RecordConflict(ctx, "b.md", time.Now(), time.Now(), "", "", "conflict")
	require.NoError(t, err)

	require.NoError(t, store.Resolve(ctx, id, ResolutionKeepLocal, "user"))

	unresolved, err := store.ListUnresolved(ctx)
	require.NoError(t, err)
	assert.Empty(t, unresolved)

	found, err := store.FindByPrefix(ctx, id[:8])
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, ResolutionKeepLocal, found[0].Resolution)
}

func TestResolveUnknownIDFails(t *testing.T) {
	store := openTestStore(t)
	err := store.Resolve(context.Background(), "does-not-exist", ResolutionKeepLocal, "user")
	assert.Error(t, err)
}

func TestStaleFileLifecycle(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.RecordStale(ctx, "old/doc.md", "excluded by skip pattern"))

	stale, err := store.ListStale(ctx)
	require.NoError(t, err)
	require.Len(t, stale, 1)
	assert.Equal(t, "old/doc.md", stale[0].Path)

	require.NoError(t, store.RemoveStale(ctx, "old/doc.md"))
	stale, err = store.ListStale(ctx)
	require.NoError(t, err)
	assert.Empty(t, stale)
}
