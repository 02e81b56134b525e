package syncvalidation_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/maia-os/covalue-core/internal/covalue"
	"github.com/maia-os/covalue-core/internal/runtime"
	"github.com/maia-os/covalue-core/internal/syncvalidation"
	"github.com/maia-os/covalue-core/internal/validation"
)

func newHarness(t *testing.T) (*runtime.Node, *syncvalidation.Hook) {
	t.Helper()
	store, err := runtime.Open(context.Background(), runtime.Config{Driver: "sqlite", DSN: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	backend := runtime.NewNode("syncvalidation-test-node", store, "Maia")

	v, err := validation.New(16)
	require.NoError(t, err)
	return backend, syncvalidation.New(backend, v)
}

func TestEvaluate_GroupAllowedUnconditionally(t *testing.T) {
	backend, hook := newHarness(t)
	core, err := backend.CreateCoValue(context.Background(), covalue.VariantGroup, covalue.Header{RulesetType: "group"}, covalue.NewGroupContent())
	require.NoError(t, err)

	d := hook.Evaluate(context.Background(), syncvalidation.IncomingMessage{TargetID: core.ID, Header: core.Header})
	require.True(t, d.IsAllowed())
}

func TestEvaluate_MissingSchemaRejected(t *testing.T) {
	_, hook := newHarness(t)
	d := hook.Evaluate(context.Background(), syncvalidation.IncomingMessage{TargetID: "co_zNew", Header: covalue.Header{}})
	require.False(t, d.IsAllowed())
}

func TestEvaluate_NonCoIDSchemaRejected(t *testing.T) {
	_, hook := newHarness(t)
	d := hook.Evaluate(context.Background(), syncvalidation.IncomingMessage{TargetID: "co_zNew", Header: covalue.Header{Schema: "not-a-coid"}})
	require.False(t, d.IsAllowed())
}

func TestEvaluate_ReservedSchemaBypassesValidation(t *testing.T) {
	_, hook := newHarness(t)
	d := hook.Evaluate(context.Background(), syncvalidation.IncomingMessage{TargetID: "co_zNewAccount", Header: covalue.Header{Schema: covalue.SchemaAccount}})
	require.True(t, d.IsAllowed())
}

func TestEvaluate_BrandNewCoValueWithSchemaIsAllowed(t *testing.T) {
	ctx := context.Background()
	backend, hook := newHarness(t)

	schemaContent := covalue.NewMapContent()
	schemaContent.Set("type", "object")
	schemaCore, err := backend.CreateCoValue(ctx, covalue.VariantMap, covalue.Header{Schema: covalue.SchemaGenesis}, schemaContent)
	require.NoError(t, err)

	d := hook.Evaluate(ctx, syncvalidation.IncomingMessage{TargetID: "co_zNotYetMaterialised", Header: covalue.Header{Schema: schemaCore.ID}})
	require.True(t, d.IsAllowed())
}

func TestEvaluate_UnresolvableSchemaRejected(t *testing.T) {
	_, hook := newHarness(t)
	d := hook.Evaluate(context.Background(), syncvalidation.IncomingMessage{TargetID: "co_zItem", Header: covalue.Header{Schema: "co_zNeverArrives"}})
	require.False(t, d.IsAllowed())
}
