package loader_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/maia-os/covalue-core/internal/covalue"
	"github.com/maia-os/covalue-core/internal/loader"
	"github.com/maia-os/covalue-core/internal/runtime"
)

func newTestBackend(t *testing.T) *runtime.Node {
	t.Helper()
	store, err := runtime.Open(context.Background(), runtime.Config{Driver: "sqlite", DSN: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return runtime.NewNode("loader-test-node", store, "Maia")
}

func TestEnsure_RejectsBadID(t *testing.T) {
	backend := newTestBackend(t)
	_, err := loader.Ensure(context.Background(), backend, "bogus", loader.Options{})
	require.Error(t, err)
}

func TestEnsure_ReturnsAlreadyAvailableImmediately(t *testing.T) {
	ctx := context.Background()
	backend := newTestBackend(t)
	created, err := backend.CreateCoValue(ctx, covalue.VariantMap, covalue.Header{Schema: "co_zS"}, covalue.NewMapContent())
	require.NoError(t, err)

	got, err := loader.Ensure(ctx, backend, created.ID, loader.Options{})
	require.NoError(t, err)
	require.Same(t, created, got)
}

func TestEnsure_AbsentIDReturnsNilNoError(t *testing.T) {
	backend := newTestBackend(t)
	core, err := loader.Ensure(context.Background(), backend, "co_zMissing", loader.Options{})
	require.NoError(t, err)
	require.Nil(t, core)
}

func TestEnsure_WaitForAvailableRespectsTimeout(t *testing.T) {
	backend := newTestBackend(t)
	core, err := loader.Ensure(context.Background(), backend, "co_zNeverArrives", loader.Options{
		WaitForAvailable: true,
		Timeout:          10 * time.Millisecond,
	})
	require.NoError(t, err)
	require.Nil(t, core)
}
