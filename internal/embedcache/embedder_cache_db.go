package embedcache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/RGU-Computing/clood/internal/model"
	"github.com/RGU-Computing/clood/internal/repo"
	"github.com/RGU-Computing/clood/internal/vectorizer"
)

// WrapDBCacheToEmbedder persists vectors per (model, task, text) so repeated
// case text is vectorised once across restarts.
func WrapDBCacheToEmbedder(e vectorizer.IEmbedder, cacheRepo *repo.EmbeddingCacheRepo) vectorizer.IEmbedder {
	if e == nil || cacheRepo == nil {
		return e
	}
	return &dbEmbedder{next: e, repo: cacheRepo}
}

// DBWrapper adapts WrapDBCacheToEmbedder to a vectorizer.Wrapper.
func DBWrapper(cacheRepo *repo.EmbeddingCacheRepo) vectorizer.Wrapper {
	return func(e vectorizer.IEmbedder) vectorizer.IEmbedder {
		return WrapDBCacheToEmbedder(e, cacheRepo)
	}
}

type dbEmbedder struct {
	next vectorizer.IEmbedder
	repo *repo.EmbeddingCacheRepo
}

func (d *dbEmbedder) Embed(ctx context.Context, text string, taskType string) ([]float32, error) {
	_, contentHash, modelName := buildCacheKey(d.next.ModelName(), taskType, text)
	values, ok, err := d.repo.Get(ctx, modelName, taskType, contentHash)
	if err != nil {
		logutil.GetLogger(ctx).Warn("embedding cache read failed", zap.String("model", modelName), zap.Error(err))
	} else if ok {
		logutil.GetLogger(ctx).Debug("embedding cache hit (db)", zap.String("model", modelName))
		return values, nil
	}
	res, err := d.next.Embed(ctx, text, taskType)
	if err != nil {
		return nil, err
	}
	if err := d.repo.Save(ctx, &model.EmbeddingCache{
		ModelName:   modelName,
		TaskType:    taskType,
		ContentHash: contentHash,
		Dimension:   len(res),
		Embedding:   res,
		Ctime:       time.Now().Unix(),
	}); err != nil {
		logutil.GetLogger(ctx).Warn("failed to cache embedding", zap.Error(err))
	}
	return res, nil
}

func (d *dbEmbedder) ModelName() string {
	return d.next.ModelName()
}

func buildCacheKey(modelName, taskType, text string) (string, string, string) {
	modelName = strings.TrimSpace(modelName)
	if modelName == "" {
		modelName = "unknown"
	}
	hash := sha256.Sum256([]byte(text))
	contentHash := hex.EncodeToString(hash[:])
	return "embed:" + modelName + ":" + taskType + ":" + contentHash, contentHash, modelName
}
