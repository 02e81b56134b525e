package groupops_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/maia-os/covalue-core/internal/covalue"
	"github.com/maia-os/covalue-core/internal/groupops"
	"github.com/maia-os/covalue-core/internal/runtime"
)

func newTestBackend(t *testing.T) *runtime.Node {
	t.Helper()
	store, err := runtime.Open(context.Background(), runtime.Config{Driver: "sqlite", DSN: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return runtime.NewNode("groupops-test-node", store, "Maia")
}

func TestDiscover_SelfIsGroup(t *testing.T) {
	ctx := context.Background()
	backend := newTestBackend(t)

	group := covalue.NewGroupContent()
	group.AddMember("co_zAcct1", covalue.RoleAdmin)
	group.AddMember("co_zAcct2", covalue.RoleRevoked)
	groupCore, err := backend.CreateCoValue(ctx, covalue.VariantGroup, covalue.Header{RulesetType: "group"}, group)
	require.NoError(t, err)

	d, err := groupops.Discover(ctx, backend, groupCore)
	require.NoError(t, err)
	require.Equal(t, groupCore.ID, d.GroupID)
	require.Len(t, d.AccountMembers, 1)
	require.Equal(t, "co_zAcct1", d.AccountMembers[0].AccountID)
}

func TestDiscover_ViaGroupReference(t *testing.T) {
	ctx := context.Background()
	backend := newTestBackend(t)

	group := covalue.NewGroupContent()
	group.AddMember("co_zAcct1", covalue.RoleWriter)
	groupCore, err := backend.CreateCoValue(ctx, covalue.VariantGroup, covalue.Header{RulesetType: "group"}, group)
	require.NoError(t, err)

	item := covalue.NewMapContent()
	item.Set("group", groupCore.ID)
	itemCore, err := backend.CreateCoValue(ctx, covalue.VariantMap, covalue.Header{Schema: "co_zTodo"}, item)
	require.NoError(t, err)

	d, err := groupops.Discover(ctx, backend, itemCore)
	require.NoError(t, err)
	require.Equal(t, groupCore.ID, d.GroupID)
	require.Equal(t, "co_zAcct1", d.AccountMembers[0].AccountID)
}

func TestDiscover_EveryoneAppendedWhenMissing(t *testing.T) {
	ctx := context.Background()
	backend := newTestBackend(t)

	group := covalue.NewGroupContent()
	group.AddMember("co_zAcct1", covalue.RoleAdmin)
	group.SetRole(covalue.EveryoneMember, covalue.RoleReader)
	groupCore, err := backend.CreateCoValue(ctx, covalue.VariantGroup, covalue.Header{RulesetType: "group"}, group)
	require.NoError(t, err)

	d, err := groupops.Discover(ctx, backend, groupCore)
	require.NoError(t, err)

	var everyoneRole string
	for _, m := range d.AccountMembers {
		if m.AccountID == covalue.EveryoneMember {
			everyoneRole = m.Role
		}
	}
	require.Equal(t, covalue.RoleReader, everyoneRole)
}

func TestDiscover_NoGroupReferenceErrors(t *testing.T) {
	ctx := context.Background()
	backend := newTestBackend(t)
	item := covalue.NewMapContent()
	itemCore, err := backend.CreateCoValue(ctx, covalue.VariantMap, covalue.Header{Schema: "co_zTodo"}, item)
	require.NoError(t, err)

	_, err = groupops.Discover(ctx, backend, itemCore)
	require.Error(t, err)
}

func TestAddMemberAndRemoveMember(t *testing.T) {
	ctx := context.Background()
	backend := newTestBackend(t)
	group := covalue.NewGroupContent()
	groupCore, err := backend.CreateCoValue(ctx, covalue.VariantGroup, covalue.Header{RulesetType: "group"}, group)
	require.NoError(t, err)

	require.NoError(t, groupops.AddMember(ctx, backend, groupCore, "co_zAcct9", covalue.RoleWriter))
	g, _ := groupCore.AsGroup()
	role, ok := g.GetRoleOf("co_zAcct9")
	require.True(t, ok)
	require.Equal(t, covalue.RoleWriter, role)

	require.NoError(t, groupops.RemoveMember(ctx, backend, groupCore, "co_zAcct9"))
	role, ok = g.GetRoleOf("co_zAcct9")
	require.True(t, ok)
	require.Equal(t, covalue.RoleRevoked, role)
}
