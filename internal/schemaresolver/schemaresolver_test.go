package schemaresolver_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/maia-os/covalue-core/internal/covalue"
	"github.com/maia-os/covalue-core/internal/runtime"
	"github.com/maia-os/covalue-core/internal/schemaresolver"
)

func TestParseRef_Schema(t *testing.T) {
	ref, ok := schemaresolver.ParseRef("°Maia/schema/meta")
	require.True(t, ok)
	require.Equal(t, schemaresolver.RefSchema, ref.Kind)
	require.Equal(t, "Maia", ref.Spark)
	require.Equal(t, "meta", ref.Path)
}

func TestParseRef_Agent(t *testing.T) {
	ref, ok := schemaresolver.ParseRef("°Maia/agent/assistant")
	require.True(t, ok)
	require.Equal(t, schemaresolver.RefAgent, ref.Kind)
	require.Equal(t, "assistant", ref.Path)
}

func TestParseRef_Instance(t *testing.T) {
	ref, ok := schemaresolver.ParseRef("°Maia/todo/actor/list1")
	require.True(t, ok)
	require.Equal(t, schemaresolver.RefInstance, ref.Kind)
	require.Equal(t, "todo/actor/list1", ref.Path)
}

func TestParseRef_NotARef(t *testing.T) {
	_, ok := schemaresolver.ParseRef("co_zSomeId")
	require.False(t, ok)
}

func newTestBackend(t *testing.T) *runtime.Node {
	t.Helper()
	store, err := runtime.Open(context.Background(), runtime.Config{Driver: "sqlite", DSN: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return runtime.NewNode("resolver-test-node", store, "Maia")
}

// seedRegistry builds account -> registries -> sparks -> Maia -> os ->
// schematas[key] = schemaID and returns the backend with Account() set.
func seedRegistry(t *testing.T, backend *runtime.Node, key, schemaID string) {
	ctx := context.Background()

	schematas := covalue.NewMapContent()
	schematas.Set(key, schemaID)
	schematasCore, err := backend.CreateCoValue(ctx, covalue.VariantMap, covalue.Header{Schema: covalue.SchemaGenesis}, schematas)
	require.NoError(t, err)

	os := covalue.NewMapContent()
	os.Set("schematas", schematasCore.ID)
	osCore, err := backend.CreateCoValue(ctx, covalue.VariantMap, covalue.Header{Schema: covalue.SchemaGenesis}, os)
	require.NoError(t, err)

	sparkRecord := covalue.NewMapContent()
	sparkRecord.Set("os", osCore.ID)
	sparkCore, err := backend.CreateCoValue(ctx, covalue.VariantMap, covalue.Header{Schema: covalue.SchemaGenesis}, sparkRecord)
	require.NoError(t, err)

	sparks := covalue.NewMapContent()
	sparks.Set("Maia", sparkCore.ID)
	sparksCore, err := backend.CreateCoValue(ctx, covalue.VariantMap, covalue.Header{Schema: covalue.SchemaGenesis}, sparks)
	require.NoError(t, err)

	registries := covalue.NewMapContent()
	registries.Set("sparks", sparksCore.ID)
	registriesCore, err := backend.CreateCoValue(ctx, covalue.VariantMap, covalue.Header{Schema: covalue.SchemaGenesis}, registries)
	require.NoError(t, err)

	account := covalue.NewAccountContent()
	account.Set("registries", registriesCore.ID)
	accountCore, err := backend.CreateCoValue(ctx, covalue.VariantAccount, covalue.Header{}, account)
	require.NoError(t, err)
	backend.SetAccount(accountCore)
}

func TestResolve_RegistryWalkReturnsCoID(t *testing.T) {
	ctx := context.Background()
	backend := newTestBackend(t)
	seedRegistry(t, backend, "°Maia/schema/meta", "co_zMetaSchemaID")

	result, err := schemaresolver.Resolve(ctx, backend, "°Maia/schema/meta", schemaresolver.Options{ReturnType: schemaresolver.ReturnCoID})
	require.NoError(t, err)
	require.Equal(t, "co_zMetaSchemaID", result.CoID)
}

func TestResolve_MissingKeyIsNonFatal(t *testing.T) {
	ctx := context.Background()
	backend := newTestBackend(t)
	seedRegistry(t, backend, "°Maia/schema/meta", "co_zMetaSchemaID")

	result, err := schemaresolver.Resolve(ctx, backend, "°Maia/schema/nope", schemaresolver.Options{ReturnType: schemaresolver.ReturnCoID})
	require.NoError(t, err)
	require.Empty(t, result.CoID)
}

func TestResolve_CoIDPassesThrough(t *testing.T) {
	ctx := context.Background()
	backend := newTestBackend(t)
	result, err := schemaresolver.Resolve(ctx, backend, "co_zDirect", schemaresolver.Options{ReturnType: schemaresolver.ReturnCoID})
	require.NoError(t, err)
	require.Equal(t, "co_zDirect", result.CoID)
}

func TestResolve_BareNameNormalisedToSchemaRef(t *testing.T) {
	ctx := context.Background()
	backend := newTestBackend(t)
	seedRegistry(t, backend, "°Maia/schema/todo", "co_zTodoSchemaID")

	result, err := schemaresolver.Resolve(ctx, backend, "todo", schemaresolver.Options{ReturnType: schemaresolver.ReturnCoID})
	require.NoError(t, err)
	require.Equal(t, "co_zTodoSchemaID", result.CoID)
}
