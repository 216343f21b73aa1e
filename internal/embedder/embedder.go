// Package embedder turns text chunks into vectors. The provider behind the
// interface is a black box; this package adds an LRU cache keyed by content
// hash so repeated ingestion of the same chunks skips the provider.
package embedder

import (
	"context"
	"crypto/sha256"
	"encoding/hex"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/Ravikumar-Shah-2804/research-copilot-sub001/pkg/metrics"
)

// Embedder generates vector embeddings for batches of text. Implementations
// must be safe for concurrent use; the returned slice preserves input order.
type Embedder interface {
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// Cached wraps an Embedder with an LRU cache keyed by content hash. Only
// cache misses reach the underlying provider.
type Cached struct {
	inner   Embedder
	cache   *lru.Cache[string, []float32]
	metrics *metrics.Metrics
}

// NewCached creates a caching wrapper. A nil metrics sink disables counter
// updates; maxEntries <= 0 selects a 10k-entry default.
func NewCached(inner Embedder, maxEntries int, m *metrics.Metrics) *Cached {
	if maxEntries <= 0 {
		maxEntries = 10000
	}
	cache, err := lru.New[string, []float32](maxEntries)
	if err != nil {
		// Only reachable with a non-positive size, which is handled above.
		cache, _ = lru.New[string, []float32](10000)
	}
	return &Cached{inner: inner, cache: cache, metrics: m}
}

// EmbedTexts serves cached vectors where possible and batches the misses
// into a single provider call.
func (c *Cached) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	result := make([][]float32, len(texts))
	var missTexts []string
	var missIdx []int

	for i, text := range texts {
		key := contentHash(text)
		if vec, ok := c.cache.Get(key); ok {
			result[i] = vec
			if c.metrics != nil {
				c.metrics.EmbeddingCacheHits.Inc()
			}
			continue
		}
		missTexts = append(missTexts, text)
		missIdx = append(missIdx, i)
		if c.metrics != nil {
			c.metrics.EmbeddingCacheMisses.Inc()
		}
	}

	if len(missTexts) == 0 {
		return result, nil
	}

	vectors, err := c.inner.EmbedTexts(ctx, missTexts)
	if err != nil {
		return nil, err
	}
	for j, vec := range vectors {
		if j >= len(missIdx) {
			break
		}
		result[missIdx[j]] = vec
		c.cache.Add(contentHash(missTexts[j]), vec)
	}
	return result, nil
}

func contentHash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}
