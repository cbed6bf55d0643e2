package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/jmoiron/sqlx"
	"github.com/pgvector/pgvector-go"

	"github.com/RGU-Computing/clood/internal/model"
	"github.com/RGU-Computing/clood/internal/pkg/dbutil"
)

// EmbeddingCacheRepo stores vectors in a pgvector column on postgres and as
// JSON text on SQLite.
type EmbeddingCacheRepo struct {
	db       *sqlx.DB
	bind     int
	postgres bool
}

func NewEmbeddingCacheRepo(db *sqlx.DB) *EmbeddingCacheRepo {
	return &EmbeddingCacheRepo{db: db, bind: dbutil.BindType(db), postgres: dbutil.IsPostgres(db)}
}

func (r *EmbeddingCacheRepo) Get(ctx context.Context, modelName, taskType, contentHash string) ([]float32, bool, error) {
	const query = `
		SELECT embedding
		FROM embedding_cache
		WHERE model_name = ? AND task_type = ? AND content_hash = ?
	`
	sqlStr, args := dbutil.Finalize(r.bind, query, []interface{}{modelName, taskType, contentHash})
	row := r.db.QueryRowContext(ctx, sqlStr, args...)
	if r.postgres {
		var embedding pgvector.Vector
		if err := row.Scan(&embedding); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, false, nil
			}
			return nil, false, err
		}
		return embedding.Slice(), true, nil
	}
	var raw string
	if err := row.Scan(&raw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, err
	}
	var values []float32
	if err := json.Unmarshal([]byte(raw), &values); err != nil {
		return nil, false, err
	}
	return values, true, nil
}

func (r *EmbeddingCacheRepo) Save(ctx context.Context, item *model.EmbeddingCache) error {
	const query = `
		INSERT INTO embedding_cache (model_name, task_type, content_hash, embedding, ctime)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (model_name, task_type, content_hash) DO UPDATE SET
			embedding = excluded.embedding,
			ctime = excluded.ctime
	`
	var embedding interface{}
	if r.postgres {
		embedding = pgvector.NewVector(item.Embedding)
	} else {
		raw, err := json.Marshal(item.Embedding)
		if err != nil {
			return err
		}
		embedding = string(raw)
	}
	sqlStr, args := dbutil.Finalize(r.bind, query, []interface{}{
		item.ModelName,
		item.TaskType,
		item.ContentHash,
		embedding,
		item.Ctime,
	})
	_, err := r.db.ExecContext(ctx, sqlStr, args...)
	return err
}

func (r *EmbeddingCacheRepo) DeleteBefore(ctx context.Context, cutoff int64) (int64, error) {
	sqlStr, args := dbutil.Finalize(r.bind, `DELETE FROM embedding_cache WHERE ctime < ?`, []interface{}{cutoff})
	res, err := r.db.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
