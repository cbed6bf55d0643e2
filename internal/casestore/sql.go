package casestore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/didi/gendry/builder"
	"github.com/jmoiron/sqlx"

	"github.com/RGU-Computing/clood/internal/config"
	"github.com/RGU-Computing/clood/internal/model"
	"github.com/RGU-Computing/clood/internal/pkg/dbutil"
	appErr "github.com/RGU-Computing/clood/internal/pkg/errors"
)

func init() {
	Register("sql", func(_ config.CasebaseStoreConfig, db *sqlx.DB) (Store, error) {
		if db == nil {
			return nil, fmt.Errorf("sql casebase store needs a database")
		}
		return NewSQLStore(db), nil
	})
}

const (
	tableIndexes = "casebase_indexes"
	tableDocs    = "casebase_docs"
)

// SQLStore keeps each case as a JSON document row. Searches load the index
// and score it in process.
type SQLStore struct {
	db   *sqlx.DB
	bind int

	mu      sync.Mutex
	lastSeq int64
}

func NewSQLStore(db *sqlx.DB) *SQLStore {
	return &SQLStore{db: db, bind: dbutil.BindType(db)}
}

type docRow struct {
	DocID string `db:"doc_id"`
	Body  string `db:"body"`
}

func (s *SQLStore) nextSeq() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	seq := time.Now().UnixNano()
	if seq <= s.lastSeq {
		seq = s.lastSeq + 1
	}
	s.lastSeq = seq
	return seq
}

func (s *SQLStore) EnsureIndex(ctx context.Context, index string, mapping map[string]any) (bool, error) {
	exists, err := s.IndexExists(ctx, index)
	if err != nil || exists {
		return false, err
	}
	raw, err := json.Marshal(mapping)
	if err != nil {
		return false, fmt.Errorf("encode mapping: %w", err)
	}
	data := map[string]interface{}{
		"index_name": index,
		"mapping":    string(raw),
		"ctime":      time.Now().UnixMilli(),
	}
	sqlStr, args, err := builder.BuildInsert(tableIndexes, []map[string]interface{}{data})
	if err != nil {
		return false, err
	}
	sqlStr, args = dbutil.Finalize(s.bind, sqlStr, args)
	if _, err := s.db.ExecContext(ctx, sqlStr, args...); err != nil {
		if dbutil.IsConflict(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (s *SQLStore) IndexExists(ctx context.Context, index string) (bool, error) {
	where := map[string]interface{}{"index_name": index, "_limit": []uint{0, 1}}
	sqlStr, args, err := builder.BuildSelect(tableIndexes, where, []string{"index_name"})
	if err != nil {
		return false, err
	}
	sqlStr, args = dbutil.Finalize(s.bind, sqlStr, args)
	var name string
	if err := s.db.QueryRowxContext(ctx, sqlStr, args...).Scan(&name); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (s *SQLStore) requireIndex(ctx context.Context, index string) error {
	exists, err := s.IndexExists(ctx, index)
	if err != nil {
		return err
	}
	if !exists {
		return appErr.ErrNotFound
	}
	return nil
}

func (s *SQLStore) DeleteIndex(ctx context.Context, index string) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	where := map[string]interface{}{"index_name": index}
	sqlStr, args, err := builder.BuildDelete(tableDocs, where)
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(s.bind, sqlStr, args)
	if _, err := tx.ExecContext(ctx, sqlStr, args...); err != nil {
		return err
	}
	sqlStr, args, err = builder.BuildDelete(tableIndexes, where)
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(s.bind, sqlStr, args)
	res, err := tx.ExecContext(ctx, sqlStr, args...)
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
	return tx.Commit()
}

func (s *SQLStore) Put(ctx context.Context, index, id string, doc model.Case) (string, error) {
	if err := s.requireIndex(ctx, index); err != nil {
		return "", err
	}
	if id == "" {
		id = newDocID()
	}
	body, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("encode case: %w", err)
	}
	hash, _ := doc[model.HashField].(string)
	now := time.Now().UnixMilli()
	const upsert = `INSERT INTO casebase_docs (index_name, doc_id, seq, hash, body, ctime, mtime)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (index_name, doc_id) DO UPDATE SET
			hash = excluded.hash,
			body = excluded.body,
			mtime = excluded.mtime`
	sqlStr, args := dbutil.Finalize(s.bind, upsert, []interface{}{index, id, s.nextSeq(), hash, string(body), now, now})
	if _, err := s.db.ExecContext(ctx, sqlStr, args...); err != nil {
		return "", err
	}
	return id, nil
}

func (s *SQLStore) Get(ctx context.Context, index, id string) (model.Case, error) {
	where := map[string]interface{}{"index_name": index, "doc_id": id}
	sqlStr, args, err := builder.BuildSelect(tableDocs, where, []string{"doc_id", "body"})
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(s.bind, sqlStr, args)
	var row docRow
	if err := s.db.GetContext(ctx, &row, sqlStr, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErr.ErrNotFound
		}
		return nil, err
	}
	return decodeBody(row.Body)
}

func (s *SQLStore) Delete(ctx context.Context, index, id string) error {
	where := map[string]interface{}{"index_name": index, "doc_id": id}
	sqlStr, args, err := builder.BuildDelete(tableDocs, where)
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(s.bind, sqlStr, args)
	res, err := s.db.ExecContext(ctx, sqlStr, args...)
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

func (s *SQLStore) List(ctx context.Context, index string, start, size int) ([]Doc, int64, error) {
	total, err := s.Count(ctx, index)
	if err != nil {
		return nil, 0, err
	}
	where := map[string]interface{}{"index_name": index, "_orderby": "seq asc"}
	if size > 0 {
		if start < 0 {
			start = 0
		}
		where["_limit"] = []uint{uint(start), uint(size)}
	}
	docs, err := s.selectDocs(ctx, where)
	if err != nil {
		return nil, 0, err
	}
	return docs, total, nil
}

func (s *SQLStore) Count(ctx context.Context, index string) (int64, error) {
	if err := s.requireIndex(ctx, index); err != nil {
		return 0, err
	}
	sqlStr, args := dbutil.Finalize(s.bind, "SELECT COUNT(1) FROM casebase_docs WHERE index_name = ?", []interface{}{index})
	var total int64
	if err := s.db.QueryRowxContext(ctx, sqlStr, args...).Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}

func (s *SQLStore) FindByHash(ctx context.Context, index, hash string) ([]string, error) {
	where := map[string]interface{}{"index_name": index, "hash": hash, "_orderby": "seq asc"}
	sqlStr, args, err := builder.BuildSelect(tableDocs, where, []string{"doc_id"})
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(s.bind, sqlStr, args)
	ids := make([]string, 0)
	if err := s.db.SelectContext(ctx, &ids, sqlStr, args...); err != nil {
		return nil, err
	}
	return ids, nil
}

func (s *SQLStore) all(ctx context.Context, index string) ([]Doc, error) {
	if err := s.requireIndex(ctx, index); err != nil {
		return nil, err
	}
	return s.selectDocs(ctx, map[string]interface{}{"index_name": index, "_orderby": "seq asc"})
}

func (s *SQLStore) selectDocs(ctx context.Context, where map[string]interface{}) ([]Doc, error) {
	sqlStr, args, err := builder.BuildSelect(tableDocs, where, []string{"doc_id", "body"})
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(s.bind, sqlStr, args)
	var rows []docRow
	if err := s.db.SelectContext(ctx, &rows, sqlStr, args...); err != nil {
		return nil, err
	}
	docs := make([]Doc, 0, len(rows))
	for _, row := range rows {
		c, err := decodeBody(row.Body)
		if err != nil {
			return nil, fmt.Errorf("decode case %s: %w", row.DocID, err)
		}
		docs = append(docs, Doc{ID: row.DocID, Source: c})
	}
	return docs, nil
}

func (s *SQLStore) FieldRange(ctx context.Context, index, field string, date bool) (*Range, error) {
	docs, err := s.all(ctx, index)
	if err != nil {
		return nil, err
	}
	return fieldRange(docs, field, date), nil
}

func (s *SQLStore) Search(ctx context.Context, index string, q *Query) (*Result, error) {
	start := time.Now()
	docs, err := s.all(ctx, index)
	if err != nil {
		return nil, err
	}
	return &Result{Hits: Execute(docs, q), Took: time.Since(start)}, nil
}

func (s *SQLStore) Explain(ctx context.Context, index, id string, q *Query) (*Hit, error) {
	docs, err := s.all(ctx, index)
	if err != nil {
		return nil, err
	}
	hit, found := ExplainDoc(docs, id, q)
	if !found {
		return nil, appErr.ErrNotFound
	}
	return hit, nil
}

func decodeBody(body string) (model.Case, error) {
	var c model.Case
	if err := json.Unmarshal([]byte(body), &c); err != nil {
		return nil, err
	}
	return c, nil
}
