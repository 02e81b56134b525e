package errs

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNew_WrapsAndUnwraps(t *testing.T) {
	cause := errors.New("boom")
	err := New(NotFound, "loader.Ensure", cause)
	require.ErrorIs(t, err, cause)
	require.Contains(t, err.Error(), "loader.Ensure")
	require.Contains(t, err.Error(), "notFound")
}

func TestIs_MatchesKind(t *testing.T) {
	err := New(Timeout, "crud.read", nil)
	require.True(t, Is(err, Timeout))
	require.False(t, Is(err, Validation))
}

func TestKindOf_PlainErrorReturnsEmpty(t *testing.T) {
	require.Equal(t, Kind(""), KindOf(errors.New("plain")))
}

func TestKindOf_WrappedFurtherStillResolves(t *testing.T) {
	inner := New(Permission, "groupops.addMember", nil)
	wrapped := Errorf("outer: %w", inner)
	require.Equal(t, Permission, KindOf(wrapped))
}
