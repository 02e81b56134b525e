package schemaindex_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/maia-os/covalue-core/internal/covalue"
	"github.com/maia-os/covalue-core/internal/runtime"
	"github.com/maia-os/covalue-core/internal/schemaindex"
)

func newTestBackend(t *testing.T) *runtime.Node {
	t.Helper()
	store, err := runtime.Open(context.Background(), runtime.Config{Driver: "sqlite", DSN: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return runtime.NewNode("schemaindex-test-node", store, "Maia")
}

func TestAppend_IsIdempotent(t *testing.T) {
	ctx := context.Background()
	backend := newTestBackend(t)
	indexes := covalue.NewMapContent()
	idx := schemaindex.New(backend, indexes, "co_zGroup1")

	require.NoError(t, idx.Append(ctx, "co_zTodoSchema", "co_zItem1"))
	require.NoError(t, idx.Append(ctx, "co_zTodoSchema", "co_zItem1"))

	snap, err := idx.Snapshot(ctx, "co_zTodoSchema")
	require.NoError(t, err)
	require.Equal(t, []string{"co_zItem1"}, snap)
}

func TestRemove_DropsItem(t *testing.T) {
	ctx := context.Background()
	backend := newTestBackend(t)
	indexes := covalue.NewMapContent()
	idx := schemaindex.New(backend, indexes, "co_zGroup1")

	require.NoError(t, idx.Append(ctx, "co_zTodoSchema", "co_zItem1"))
	require.NoError(t, idx.Append(ctx, "co_zTodoSchema", "co_zItem2"))
	require.NoError(t, idx.Remove(ctx, "co_zTodoSchema", "co_zItem1"))

	snap, err := idx.Snapshot(ctx, "co_zTodoSchema")
	require.NoError(t, err)
	require.Equal(t, []string{"co_zItem2"}, snap)
}

func TestReindex_AddsMissingOnly(t *testing.T) {
	ctx := context.Background()
	backend := newTestBackend(t)
	indexes := covalue.NewMapContent()
	idx := schemaindex.New(backend, indexes, "co_zGroup1")

	require.NoError(t, idx.Append(ctx, "co_zTodoSchema", "co_zItem1"))
	require.NoError(t, idx.Reindex(ctx, "co_zTodoSchema", []string{"co_zItem1", "co_zItem2", "co_zItem3"}))

	snap, err := idx.Snapshot(ctx, "co_zTodoSchema")
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"co_zItem1", "co_zItem2", "co_zItem3"}, snap)
}

func TestSnapshot_CreatesListLazily(t *testing.T) {
	ctx := context.Background()
	backend := newTestBackend(t)
	indexes := covalue.NewMapContent()
	idx := schemaindex.New(backend, indexes, "co_zGroup1")

	snap, err := idx.Snapshot(ctx, "co_zUnusedSchema")
	require.NoError(t, err)
	require.Empty(t, snap)

	_, ok := indexes.Get("co_zUnusedSchema")
	require.True(t, ok)
}
