package embedcache

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/RGU-Computing/clood/internal/vectorizer"
)

// WrapLruCacheToEmbedder keeps recent vectors in process. Concurrent misses
// on the same text share one upstream call.
func WrapLruCacheToEmbedder(e vectorizer.IEmbedder, size int, ttl time.Duration) vectorizer.IEmbedder {
	if e == nil || size <= 0 || ttl <= 0 {
		return e
	}
	return &lruEmbedder{
		next:  e,
		cache: expirable.NewLRU[string, []float32](size, nil, ttl),
	}
}

func LRUWrapper(size int, ttl time.Duration) vectorizer.Wrapper {
	return func(e vectorizer.IEmbedder) vectorizer.IEmbedder {
		return WrapLruCacheToEmbedder(e, size, ttl)
	}
}

type lruEmbedder struct {
	next   vectorizer.IEmbedder
	cache  *expirable.LRU[string, []float32]
	flight singleflight.Group
}

func (l *lruEmbedder) Embed(ctx context.Context, text string, taskType string) ([]float32, error) {
	cacheKey, _, _ := buildCacheKey(l.next.ModelName(), taskType, text)
	if cached, ok := l.cache.Get(cacheKey); ok {
		logutil.GetLogger(ctx).Debug("embedding cache hit (lru)", zap.String("model", l.next.ModelName()))
		return cloneEmbedding(cached), nil
	}
	v, err, shared := l.flight.Do(cacheKey, func() (interface{}, error) {
		res, err := l.next.Embed(ctx, text, taskType)
		if err != nil {
			return nil, err
		}
		l.cache.Add(cacheKey, cloneEmbedding(res))
		return res, nil
	})
	if err != nil {
		return nil, err
	}
	if shared {
		logutil.GetLogger(ctx).Debug("embedding call coalesced", zap.String("model", l.next.ModelName()))
	}
	return cloneEmbedding(v.([]float32)), nil
}

func (l *lruEmbedder) ModelName() string {
	return l.next.ModelName()
}

func cloneEmbedding(values []float32) []float32 {
	if len(values) == 0 {
		return nil
	}
	clone := make([]float32, len(values))
	copy(clone, values)
	return clone
}
