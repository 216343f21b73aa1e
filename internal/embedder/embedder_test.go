package embedder

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingEmbedder struct {
	mu    sync.Mutex
	calls int
	texts int
	fail  bool
}

func (c *countingEmbedder) EmbedTexts(_ context.Context, texts []string) ([][]float32, error) {
	c.mu.Lock()
	c.calls++
	c.texts += len(texts)
	c.mu.Unlock()
	if c.fail {
		return nil, fmt.Errorf("provider unavailable")
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = []float32{float32(len(t))}
	}
	return out, nil
}

func TestCachedServesRepeatsFromCache(t *testing.T) {
	inner := &countingEmbedder{}
	c := NewCached(inner, 100, nil)
	ctx := context.Background()

	first, err := c.EmbedTexts(ctx, []string{"alpha", "beta"})
	require.NoError(t, err)
	require.Len(t, first, 2)
	assert.Equal(t, 1, inner.calls)

	second, err := c.EmbedTexts(ctx, []string{"alpha", "beta"})
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, inner.calls, "full cache hit must not reach the provider")
}

func TestCachedBatchesOnlyMisses(t *testing.T) {
	inner := &countingEmbedder{}
	c := NewCached(inner, 100, nil)
	ctx := context.Background()

	_, err := c.EmbedTexts(ctx, []string{"alpha"})
	require.NoError(t, err)

	vectors, err := c.EmbedTexts(ctx, []string{"alpha", "gamma", "delta"})
	require.NoError(t, err)
	require.Len(t, vectors, 3)
	assert.Equal(t, 2, inner.calls)
	assert.Equal(t, 3, inner.texts, "only the two misses reach the provider on the second call")

	for i, v := range vectors {
		assert.NotNil(t, v, "vector %d missing", i)
	}
}

func TestCachedPreservesInputOrder(t *testing.T) {
	inner := &countingEmbedder{}
	c := NewCached(inner, 100, nil)

	texts := []string{"a", "bb", "ccc", "bb"}
	vectors, err := c.EmbedTexts(context.Background(), texts)
	require.NoError(t, err)
	require.Len(t, vectors, len(texts))
	for i, text := range texts {
		assert.Equal(t, float32(len(text)), vectors[i][0], "position %d", i)
	}
}

func TestCachedPropagatesProviderError(t *testing.T) {
	c := NewCached(&countingEmbedder{fail: true}, 100, nil)
	_, err := c.EmbedTexts(context.Background(), []string{"x"})
	assert.Error(t, err)
}

func TestCachedEmptyInput(t *testing.T) {
	inner := &countingEmbedder{}
	c := NewCached(inner, 100, nil)
	vectors, err := c.EmbedTexts(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, vectors)
	assert.Zero(t, inner.calls)
}
