package repo

import (
	"context"
	"database/sql"
	"errors"

	"github.com/didi/gendry/builder"
	"github.com/jmoiron/sqlx"

	"github.com/RGU-Computing/clood/internal/model"
	"github.com/RGU-Computing/clood/internal/pkg/dbutil"
	appErr "github.com/RGU-Computing/clood/internal/pkg/errors"
)

var tokenColumns = []string{"id", "name", "description", "expiry", "token", "ctime"}

type TokenRepo struct {
	db   *sqlx.DB
	bind int
}

func NewTokenRepo(db *sqlx.DB) *TokenRepo {
	return &TokenRepo{db: db, bind: dbutil.BindType(db)}
}

type tokenRow struct {
	ID          string `db:"id"`
	Name        string `db:"name"`
	Description string `db:"description"`
	Expiry      int64  `db:"expiry"`
	Token       string `db:"token"`
	Ctime       int64  `db:"ctime"`
}

func (row tokenRow) toModel() model.Token {
	return model.Token(row)
}

func (r *TokenRepo) Create(ctx context.Context, t *model.Token) error {
	data := map[string]interface{}{
		"id":          t.ID,
		"name":        t.Name,
		"description": t.Description,
		"expiry":      t.Expiry,
		"token":       t.Token,
		"ctime":       t.Ctime,
	}
	sqlStr, args, err := builder.BuildInsert("tokens", []map[string]interface{}{data})
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(r.bind, sqlStr, args)
	_, err = r.db.ExecContext(ctx, sqlStr, args...)
	return err
}

func (r *TokenRepo) GetByID(ctx context.Context, id string) (*model.Token, error) {
	sqlStr, args, err := builder.BuildSelect("tokens", map[string]interface{}{"id": id}, tokenColumns)
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(r.bind, sqlStr, args)
	var row tokenRow
	if err := r.db.GetContext(ctx, &row, sqlStr, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErr.ErrNotFound
		}
		return nil, err
	}
	t := row.toModel()
	return &t, nil
}

func (r *TokenRepo) List(ctx context.Context) ([]model.Token, error) {
	sqlStr, args, err := builder.BuildSelect("tokens", map[string]interface{}{"_orderby": "ctime asc"}, tokenColumns)
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(r.bind, sqlStr, args)
	var rows []tokenRow
	if err := r.db.SelectContext(ctx, &rows, sqlStr, args...); err != nil {
		return nil, err
	}
	tokens := make([]model.Token, 0, len(rows))
	for _, row := range rows {
		tokens = append(tokens, row.toModel())
	}
	return tokens, nil
}

func (r *TokenRepo) Delete(ctx context.Context, id string) error {
	sqlStr, args, err := builder.BuildDelete("tokens", map[string]interface{}{"id": id})
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(r.bind, sqlStr, args)
	res, err := r.db.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return appErr.ErrNotFound
	}
	return nil
}
