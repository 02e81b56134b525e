package exprfilter

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMatch_EmptyExprMatchesAll(t *testing.T) {
	require.True(t, Match("", map[string]any{"done": false}))
}

func TestMatch_SimpleComparison(t *testing.T) {
	fields := map[string]any{"done": "false", "priority": "3"}
	require.True(t, Match(`done == "false"`, fields))
	require.False(t, Match(`done == "true"`, fields))
}

func TestMatch_InvalidExprDeniesByDefault(t *testing.T) {
	require.False(t, Match("((( not valid", map[string]any{}))
}

func TestMatch_CachesEvaluator(t *testing.T) {
	fields := map[string]any{"text": "hello"}
	require.True(t, Match(`text == "hello"`, fields))
	require.True(t, Match(`text == "hello"`, fields)) // second call hits the cache path
}
