package vectorstore

import (
	"testing"

	"github.com/qdrant/go-client/qdrant"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPointIDDeterministic(t *testing.T) {
	a := PointID("physics|newton.txt|0")
	b := PointID("physics|newton.txt|0")
	c := PointID("physics|newton.txt|1")

	assert.Equal(t, a, b, "same chunk ID must map to same point ID")
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 36, "expected canonical UUID form")
}

func TestScoredPointToHit(t *testing.T) {
	p := &qdrant.ScoredPoint{
		Score: 0.82,
		Payload: qdrant.NewValueMap(map[string]any{
			"text":        "Newton's second law states F=ma.",
			"subject":     "physics",
			"source_file": "newton.txt",
			"chunk_index": int64(3),
		}),
	}

	hit := scoredPointToHit(p)

	assert.Equal(t, "Newton's second law states F=ma.", hit.Content)
	assert.Equal(t, float32(0.82), hit.Similarity)
	assert.Equal(t, "physics", hit.Metadata["subject"])
	assert.Equal(t, "newton.txt", hit.Metadata["source_file"])
	assert.Equal(t, int64(3), hit.Metadata["chunk_index"])
	_, hasText := hit.Metadata["text"]
	assert.False(t, hasText, "content must not be duplicated into metadata")
}

func TestConvertValueNested(t *testing.T) {
	v := qdrant.NewValueMap(map[string]any{
		"flag":   true,
		"count":  int64(7),
		"score":  0.5,
		"nested": map[string]any{"inner": "x"},
		"list":   []any{"a", "b"},
	})

	out := make(map[string]any, len(v))
	for k, val := range v {
		out[k] = convertValue(val)
	}

	assert.Equal(t, true, out["flag"])
	assert.Equal(t, int64(7), out["count"])
	assert.Equal(t, 0.5, out["score"])

	nested, ok := out["nested"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "x", nested["inner"])

	list, ok := out["list"].([]any)
	require.True(t, ok)
	assert.Equal(t, []any{"a", "b"}, list)
}
