package permission

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/maia-os/covalue-core/internal/covalue"
)

func TestEnforcer_AdminCanDoEverything(t *testing.T) {
	e, err := New()
	require.NoError(t, err)
	require.True(t, e.Allowed(covalue.RoleAdmin, ActionRead))
	require.True(t, e.Allowed(covalue.RoleAdmin, ActionWrite))
	require.True(t, e.Allowed(covalue.RoleAdmin, ActionAdmin))
}

func TestEnforcer_ReaderCannotWrite(t *testing.T) {
	e, err := New()
	require.NoError(t, err)
	require.True(t, e.Allowed(covalue.RoleReader, ActionRead))
	require.False(t, e.Allowed(covalue.RoleReader, ActionWrite))
}

func TestEnforcer_RevokedHasNoAccess(t *testing.T) {
	e, err := New()
	require.NoError(t, err)
	require.False(t, e.Allowed(covalue.RoleRevoked, ActionRead))
	require.False(t, e.Allowed(covalue.RoleRevoked, ActionWrite))
}

func TestEnforcer_WriterCannotAdminGroups(t *testing.T) {
	e, err := New()
	require.NoError(t, err)
	require.True(t, e.RequireWrite(covalue.RoleWriter))
	require.False(t, e.RequireAdmin(covalue.RoleWriter))
}
