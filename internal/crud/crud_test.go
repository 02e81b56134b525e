package crud_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/maia-os/covalue-core/internal/covalue"
	"github.com/maia-os/covalue-core/internal/crud"
	"github.com/maia-os/covalue-core/internal/extractor"
	"github.com/maia-os/covalue-core/internal/reactive"
	"github.com/maia-os/covalue-core/internal/runtime"
	"github.com/maia-os/covalue-core/internal/schemaindex"
	"github.com/maia-os/covalue-core/internal/subscache"
)

func newHarness(t *testing.T) (*runtime.Node, *crud.CRUD, *schemaindex.Index) {
	t.Helper()
	store, err := runtime.Open(context.Background(), runtime.Config{Driver: "sqlite", DSN: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	backend := runtime.NewNode("crud-test-node", store, "Maia")

	group := covalue.NewGroupContent()
	groupCore, err := backend.CreateCoValue(context.Background(), covalue.VariantGroup, covalue.Header{RulesetType: "group"}, group)
	require.NoError(t, err)

	indexes := covalue.NewMapContent()
	idx := schemaindex.New(backend, indexes, groupCore.ID)

	subs := subscache.New(time.Hour)
	c := crud.New(backend, subs,
		func(schemaID string) *schemaindex.Index { return idx },
		func(ctx context.Context) (string, error) { return groupCore.ID, nil },
	)
	return backend, c, idx
}

func doCreate(t *testing.T, ctx context.Context, c *crud.CRUD, schema string, data map[string]any) extractor.Flat {
	t.Helper()
	result, err := c.Do(ctx, crud.Request{Op: crud.OpCreate, Schema: schema, Data: data})
	require.NoError(t, err)
	flat, ok := result.(extractor.Flat)
	require.True(t, ok)
	return flat
}

func hasProperty(props []extractor.Property, key string, value any) bool {
	for _, p := range props {
		if p.Key == key && p.Value == value {
			return true
		}
	}
	return false
}

func TestCRUD_CreateUpdateDelete(t *testing.T) {
	ctx := context.Background()
	_, c, idx := newHarness(t)

	created := doCreate(t, ctx, c, "co_zTodoSchema", map[string]any{"text": "a", "done": false})
	require.Equal(t, "a", created.Fields["text"])

	snap, err := idx.Snapshot(ctx, "co_zTodoSchema")
	require.NoError(t, err)
	require.Contains(t, snap, created.ID)

	updateResult, err := c.Do(ctx, crud.Request{Op: crud.OpUpdate, ID: created.ID, Data: map[string]any{"done": true}})
	require.NoError(t, err)
	updated := updateResult.(extractor.Normalised)
	require.True(t, hasProperty(updated.Properties, "done", true))

	deleteResult, err := c.Do(ctx, crud.Request{Op: crud.OpDelete, ID: created.ID, Schema: "co_zTodoSchema"})
	require.NoError(t, err)
	require.Equal(t, true, deleteResult)

	snap, err = idx.Snapshot(ctx, "co_zTodoSchema")
	require.NoError(t, err)
	require.NotContains(t, snap, created.ID)
}

func TestCRUD_DeleteTwiceIsNoOp(t *testing.T) {
	ctx := context.Background()
	_, c, _ := newHarness(t)
	created := doCreate(t, ctx, c, "co_zS", map[string]any{"x": float64(1)})

	_, err := c.Do(ctx, crud.Request{Op: crud.OpDelete, ID: created.ID, Schema: "co_zS"})
	require.NoError(t, err)
	result, err := c.Do(ctx, crud.Request{Op: crud.OpDelete, ID: created.ID, Schema: "co_zS"})
	require.NoError(t, err)
	require.Equal(t, true, result)
}

func TestCRUD_SingleReadByID(t *testing.T) {
	ctx := context.Background()
	_, c, _ := newHarness(t)
	created := doCreate(t, ctx, c, "co_zTodoSchema", map[string]any{"text": "read-me"})

	result, err := c.Do(ctx, crud.Request{Op: crud.OpRead, ID: created.ID})
	require.NoError(t, err)
	store := result.(*reactive.Store[extractor.Flat])
	require.Eventually(t, func() bool {
		return store.Value().Ready()
	}, time.Second, 5*time.Millisecond)
	require.Equal(t, "read-me", store.Value().Fields["text"])
}

func TestCRUD_SingleReadReemitsOnUpdate(t *testing.T) {
	ctx := context.Background()
	_, c, _ := newHarness(t)
	created := doCreate(t, ctx, c, "co_zTodoSchema", map[string]any{"text": "before"})

	result, err := c.Do(ctx, crud.Request{Op: crud.OpRead, ID: created.ID})
	require.NoError(t, err)
	store := result.(*reactive.Store[extractor.Flat])
	require.Eventually(t, func() bool { return store.Value().Ready() }, time.Second, 5*time.Millisecond)

	_, err = c.Do(ctx, crud.Request{Op: crud.OpUpdate, ID: created.ID, Data: map[string]any{"text": "after"}})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return store.Value().Fields["text"] == "after"
	}, time.Second, 5*time.Millisecond)
}

func TestCRUD_CollectionReadReemitsOnWrite(t *testing.T) {
	ctx := context.Background()
	_, c, _ := newHarness(t)

	result, err := c.Do(ctx, crud.Request{Op: crud.OpRead, Schema: "co_zTodoSchema"})
	require.NoError(t, err)
	store := result.(*reactive.Store[[]extractor.Flat])
	require.Len(t, store.Value(), 0)

	created := doCreate(t, ctx, c, "co_zTodoSchema", map[string]any{"text": "fresh"})
	require.Eventually(t, func() bool { return len(store.Value()) == 1 }, time.Second, 5*time.Millisecond)

	_, err = c.Do(ctx, crud.Request{Op: crud.OpDelete, ID: created.ID, Schema: "co_zTodoSchema"})
	require.NoError(t, err)
	require.Eventually(t, func() bool { return len(store.Value()) == 0 }, time.Second, 5*time.Millisecond)
}

func TestCRUD_AllValuesReadEnumeratesAndReemits(t *testing.T) {
	ctx := context.Background()
	_, c, _ := newHarness(t)

	result, err := c.Do(ctx, crud.Request{Op: crud.OpRead})
	require.NoError(t, err)
	store := result.(*reactive.Store[[]extractor.Flat])
	// The harness's default group core is already materialised.
	require.Len(t, store.Value(), 1)

	// Each create under a not-yet-indexed schema also materialises that
	// schema's index list: item + index list per create.
	doCreate(t, ctx, c, "co_zTodoSchema", map[string]any{"text": "one"})
	require.Eventually(t, func() bool { return len(store.Value()) == 3 }, time.Second, 5*time.Millisecond)

	doCreate(t, ctx, c, "co_zOtherSchema", map[string]any{"text": "two"})
	require.Eventually(t, func() bool { return len(store.Value()) == 5 }, time.Second, 5*time.Millisecond)
}

func TestCRUD_SparkLifecycle(t *testing.T) {
	ctx := context.Background()
	backend, c, _ := newHarness(t)

	accountCore, err := backend.CreateCoValue(ctx, covalue.VariantAccount, covalue.Header{}, covalue.NewAccountContent())
	require.NoError(t, err)
	backend.SetAccount(accountCore)

	created, err := c.Do(ctx, crud.Request{Op: crud.OpCreateSpark, Name: "Nimbus"})
	require.NoError(t, err)
	sparkFlat := created.(extractor.Flat)
	require.Equal(t, "Nimbus", sparkFlat.Fields["name"])

	readResult, err := c.Do(ctx, crud.Request{Op: crud.OpReadSpark, Name: "Nimbus"})
	require.NoError(t, err)
	store := readResult.(*reactive.Store[extractor.Flat])
	require.Eventually(t, func() bool { return store.Value().Ready() }, time.Second, 5*time.Millisecond)
	require.Equal(t, sparkFlat.ID, store.Value().ID)

	updateResult, err := c.Do(ctx, crud.Request{Op: crud.OpUpdateSpark, Name: "Nimbus", Data: map[string]any{"vibe": "calm"}})
	require.NoError(t, err)
	updated := updateResult.(extractor.Normalised)
	require.True(t, hasProperty(updated.Properties, "vibe", "calm"))

	deleteResult, err := c.Do(ctx, crud.Request{Op: crud.OpDeleteSpark, Name: "Nimbus"})
	require.NoError(t, err)
	require.Equal(t, true, deleteResult)
}

func TestCRUD_CollectionReadAppliesExpr(t *testing.T) {
	ctx := context.Background()
	_, c, _ := newHarness(t)

	doCreate(t, ctx, c, "co_zTodoSchema", map[string]any{"text": "a", "priority": "3"})
	doCreate(t, ctx, c, "co_zTodoSchema", map[string]any{"text": "b", "priority": "1"})

	result, err := c.Do(ctx, crud.Request{Op: crud.OpRead, Schema: "co_zTodoSchema", Expr: `priority == "3"`})
	require.NoError(t, err)
	store := result.(*reactive.Store[[]extractor.Flat])

	items := store.Value()
	require.Len(t, items, 1)
	require.Equal(t, "a", items[0].Fields["text"])
}

func TestCRUD_CollectionReadFiltersStrictly(t *testing.T) {
	ctx := context.Background()
	_, c, _ := newHarness(t)

	doCreate(t, ctx, c, "co_zTodoSchema", map[string]any{"text": "a", "done": false})
	doCreate(t, ctx, c, "co_zTodoSchema", map[string]any{"text": "b", "done": true})

	result, err := c.Do(ctx, crud.Request{Op: crud.OpRead, Schema: "co_zTodoSchema", Filter: map[string]any{"done": false}})
	require.NoError(t, err)
	store := result.(*reactive.Store[[]extractor.Flat])

	items := store.Value()
	require.Len(t, items, 1)
	require.Equal(t, "a", items[0].Fields["text"])
}
