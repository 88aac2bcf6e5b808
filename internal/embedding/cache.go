package embedding

import (
	"context"
	"crypto/sha256"

	"github.com/dgraph-io/ristretto"
)

// CachingProvider memoizes embeddings by content hash so repeated writes of
// identical text (re-confirmed facts, replayed transcripts) skip the
// provider call entirely. Image embeddings are cached by the same scheme.
type CachingProvider struct {
	inner Provider
	cache *ristretto.Cache
}

var _ Provider = (*CachingProvider)(nil)

// NewCachingProvider wraps inner with a cache holding roughly maxEntries
// vectors.
func NewCachingProvider(inner Provider, maxEntries int64) (*CachingProvider, error) {
	if maxEntries <= 0 {
		maxEntries = 4096
	}
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: maxEntries * 10,
		MaxCost:     maxEntries,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}
	return &CachingProvider{inner: inner, cache: cache}, nil
}

func (p *CachingProvider) Embed(ctx context.Context, text string) ([]float64, error) {
	key := cacheKey("t", []byte(text))
	if v, ok := p.cache.Get(key); ok {
		return v.([]float64), nil
	}
	vec, err := p.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	p.cache.Set(key, vec, 1)
	return vec, nil
}

func (p *CachingProvider) EmbedImage(ctx context.Context, data []byte) ([]float64, error) {
	key := cacheKey("i", data)
	if v, ok := p.cache.Get(key); ok {
		return v.([]float64), nil
	}
	vec, err := p.inner.EmbedImage(ctx, data)
	if err != nil {
		return nil, err
	}
	p.cache.Set(key, vec, 1)
	return vec, nil
}

func (p *CachingProvider) Dimension() int { return p.inner.Dimension() }

// Close releases the cache's internal goroutines.
func (p *CachingProvider) Close() {
	p.cache.Close()
}

func cacheKey(kind string, content []byte) string {
	h := sha256.New()
	h.Write([]byte(kind))
	h.Write(content)
	return string(h.Sum(nil))
}
