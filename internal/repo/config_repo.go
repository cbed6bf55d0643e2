package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/didi/gendry/builder"
	"github.com/jmoiron/sqlx"

	"github.com/RGU-Computing/clood/internal/model"
	"github.com/RGU-Computing/clood/internal/pkg/dbutil"
	appErr "github.com/RGU-Computing/clood/internal/pkg/errors"
)

const globalConfigID = "global"

// ConfigRepo stores the single global config document.
type ConfigRepo struct {
	db   *sqlx.DB
	bind int
}

func NewConfigRepo(db *sqlx.DB) *ConfigRepo {
	return &ConfigRepo{db: db, bind: dbutil.BindType(db)}
}

func (r *ConfigRepo) Get(ctx context.Context) (*model.GlobalConfig, error) {
	sqlStr, args, err := builder.BuildSelect("global_config", map[string]interface{}{"id": globalConfigID}, []string{"body"})
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(r.bind, sqlStr, args)
	var body string
	if err := r.db.QueryRowxContext(ctx, sqlStr, args...).Scan(&body); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErr.ErrNotFound
		}
		return nil, err
	}
	var cfg model.GlobalConfig
	if err := json.Unmarshal([]byte(body), &cfg); err != nil {
		return nil, fmt.Errorf("decode global config: %w", err)
	}
	return &cfg, nil
}

func (r *ConfigRepo) Save(ctx context.Context, cfg *model.GlobalConfig, mtime int64) error {
	raw, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode global config: %w", err)
	}
	const upsert = `INSERT INTO global_config (id, body, mtime) VALUES (?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET body = excluded.body, mtime = excluded.mtime`
	sqlStr, args := dbutil.Finalize(r.bind, upsert, []interface{}{globalConfigID, string(raw), mtime})
	_, err = r.db.ExecContext(ctx, sqlStr, args...)
	return err
}
