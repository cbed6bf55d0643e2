package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/didi/gendry/builder"
	"github.com/jmoiron/sqlx"

	"github.com/RGU-Computing/clood/internal/pkg/dbutil"
	appErr "github.com/RGU-Computing/clood/internal/pkg/errors"
)

const (
	tableGrids     = "ontology_grids"
	gridInsertSize = 200
)

// GridRepo persists ontology similarity grids one concept row at a time.
type GridRepo struct {
	db   *sqlx.DB
	bind int
}

func NewGridRepo(db *sqlx.DB) *GridRepo {
	return &GridRepo{db: db, bind: dbutil.BindType(db)}
}

// Replace swaps the whole grid inside one transaction so readers see either
// the old rows or the new ones.
func (r *GridRepo) Replace(ctx context.Context, gridID string, rows map[string]map[string]float64) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	sqlStr, args, err := builder.BuildDelete(tableGrids, map[string]interface{}{"grid_id": gridID})
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(r.bind, sqlStr, args)
	if _, err := tx.ExecContext(ctx, sqlStr, args...); err != nil {
		return err
	}
	now := time.Now().UnixMilli()
	batch := make([]map[string]interface{}, 0, gridInsertSize)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		sqlStr, args, err := builder.BuildInsert(tableGrids, batch)
		if err != nil {
			return err
		}
		sqlStr, args = dbutil.Finalize(r.bind, sqlStr, args)
		if _, err := tx.ExecContext(ctx, sqlStr, args...); err != nil {
			return err
		}
		batch = batch[:0]
		return nil
	}
	for concept, row := range rows {
		raw, err := json.Marshal(row)
		if err != nil {
			return fmt.Errorf("encode grid row %s: %w", concept, err)
		}
		batch = append(batch, map[string]interface{}{
			"grid_id": gridID,
			"concept": concept,
			"row_map": string(raw),
			"ctime":   now,
		})
		if len(batch) == gridInsertSize {
			if err := flush(); err != nil {
				return err
			}
		}
	}
	if err := flush(); err != nil {
		return err
	}
	return tx.Commit()
}

// PutRow stores one row, replacing any previous row of the concept.
func (r *GridRepo) PutRow(ctx context.Context, gridID, concept string, row map[string]float64) error {
	raw, err := json.Marshal(row)
	if err != nil {
		return fmt.Errorf("encode grid row %s: %w", concept, err)
	}
	const upsert = `INSERT INTO ontology_grids (grid_id, concept, row_map, ctime) VALUES (?, ?, ?, ?)
		ON CONFLICT (grid_id, concept) DO UPDATE SET row_map = excluded.row_map, ctime = excluded.ctime`
	sqlStr, args := dbutil.Finalize(r.bind, upsert, []interface{}{gridID, concept, string(raw), time.Now().UnixMilli()})
	_, err = r.db.ExecContext(ctx, sqlStr, args...)
	return err
}

func (r *GridRepo) GetRow(ctx context.Context, gridID, concept string) (map[string]float64, error) {
	where := map[string]interface{}{"grid_id": gridID, "concept": concept}
	sqlStr, args, err := builder.BuildSelect(tableGrids, where, []string{"row_map"})
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(r.bind, sqlStr, args)
	var raw string
	if err := r.db.QueryRowxContext(ctx, sqlStr, args...).Scan(&raw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErr.ErrNotFound
		}
		return nil, err
	}
	row := map[string]float64{}
	if err := json.Unmarshal([]byte(raw), &row); err != nil {
		return nil, fmt.Errorf("decode grid row %s: %w", concept, err)
	}
	return row, nil
}

func (r *GridRepo) Count(ctx context.Context, gridID string) (int, error) {
	sqlStr, args := dbutil.Finalize(r.bind, "SELECT COUNT(1) FROM ontology_grids WHERE grid_id = ?", []interface{}{gridID})
	var count int
	if err := r.db.QueryRowxContext(ctx, sqlStr, args...).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func (r *GridRepo) Delete(ctx context.Context, gridID string) (int64, error) {
	sqlStr, args, err := builder.BuildDelete(tableGrids, map[string]interface{}{"grid_id": gridID})
	if err != nil {
		return 0, err
	}
	sqlStr, args = dbutil.Finalize(r.bind, sqlStr, args)
	res, err := r.db.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// DeleteByPrefix drops every grid whose id starts with prefix.
func (r *GridRepo) DeleteByPrefix(ctx context.Context, prefix string) (int64, error) {
	escaped := strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`).Replace(prefix)
	sqlStr, args := dbutil.Finalize(r.bind, `DELETE FROM ontology_grids WHERE grid_id LIKE ? ESCAPE '\'`, []interface{}{escaped + "%"})
	res, err := r.db.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
