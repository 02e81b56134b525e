package inference

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInferOne_ProducesSchemaText(t *testing.T) {
	inferred, err := InferOne("todo", map[string]any{"text": "a", "done": false})
	require.NoError(t, err)
	require.Equal(t, "todo", inferred.Key)
	require.NotEmpty(t, inferred.SchemaJSON)
}

func TestInferMany_OnlyInfersRequestedKeys(t *testing.T) {
	values := map[string]any{
		"todo":    map[string]any{"text": "a"},
		"ignored": map[string]any{"x": 1},
	}
	inferred, err := InferMany(values, []string{"todo"})
	require.NoError(t, err)
	require.Len(t, inferred, 1)
	require.Equal(t, "todo", inferred[0].Key)
}
