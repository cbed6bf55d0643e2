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

const tableProjects = "projects"

var projectColumns = []string{
	"id", "name", "description", "casebase", "has_casebase", "retain_duplicate_cases", "attributes", "ctime", "mtime",
}

type ProjectRepo struct {
	db   *sqlx.DB
	bind int
}

func NewProjectRepo(db *sqlx.DB) *ProjectRepo {
	return &ProjectRepo{db: db, bind: dbutil.BindType(db)}
}

type projectRow struct {
	ID                   string `db:"id"`
	Name                 string `db:"name"`
	Description          string `db:"description"`
	Casebase             string `db:"casebase"`
	HasCasebase          bool   `db:"has_casebase"`
	RetainDuplicateCases bool   `db:"retain_duplicate_cases"`
	Attributes           string `db:"attributes"`
	Ctime                int64  `db:"ctime"`
	Mtime                int64  `db:"mtime"`
}

func (row *projectRow) toModel() (*model.Project, error) {
	p := &model.Project{
		ID:                   row.ID,
		Name:                 row.Name,
		Description:          row.Description,
		Casebase:             row.Casebase,
		HasCasebase:          row.HasCasebase,
		RetainDuplicateCases: row.RetainDuplicateCases,
		Attributes:           []model.AttributeSpec{},
		Ctime:                row.Ctime,
		Mtime:                row.Mtime,
	}
	if row.Attributes != "" {
		if err := json.Unmarshal([]byte(row.Attributes), &p.Attributes); err != nil {
			return nil, fmt.Errorf("decode attributes of project %s: %w", row.ID, err)
		}
	}
	return p, nil
}

func projectData(p *model.Project) (map[string]interface{}, error) {
	attrs := p.Attributes
	if attrs == nil {
		attrs = []model.AttributeSpec{}
	}
	raw, err := json.Marshal(attrs)
	if err != nil {
		return nil, fmt.Errorf("encode attributes: %w", err)
	}
	return map[string]interface{}{
		"name":                   p.Name,
		"description":            p.Description,
		"casebase":               p.Casebase,
		"has_casebase":           p.HasCasebase,
		"retain_duplicate_cases": p.RetainDuplicateCases,
		"attributes":             string(raw),
		"mtime":                  p.Mtime,
	}, nil
}

func (r *ProjectRepo) Create(ctx context.Context, p *model.Project) error {
	data, err := projectData(p)
	if err != nil {
		return err
	}
	data["id"] = p.ID
	data["ctime"] = p.Ctime
	sqlStr, args, err := builder.BuildInsert(tableProjects, []map[string]interface{}{data})
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(r.bind, sqlStr, args)
	if _, err := r.db.ExecContext(ctx, sqlStr, args...); err != nil {
		if dbutil.IsConflict(err) {
			return appErr.ErrConflict
		}
		return err
	}
	return nil
}

func (r *ProjectRepo) Update(ctx context.Context, p *model.Project) error {
	data, err := projectData(p)
	if err != nil {
		return err
	}
	sqlStr, args, err := builder.BuildUpdate(tableProjects, map[string]interface{}{"id": p.ID}, data)
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(r.bind, sqlStr, args)
	res, err := r.db.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		if dbutil.IsConflict(err) {
			return appErr.ErrConflict
		}
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

func (r *ProjectRepo) GetByID(ctx context.Context, id string) (*model.Project, error) {
	return r.getOne(ctx, map[string]interface{}{"id": id})
}

func (r *ProjectRepo) GetByName(ctx context.Context, name string) (*model.Project, error) {
	return r.getOne(ctx, map[string]interface{}{"name": name})
}

func (r *ProjectRepo) getOne(ctx context.Context, where map[string]interface{}) (*model.Project, error) {
	where["_limit"] = []uint{0, 1}
	sqlStr, args, err := builder.BuildSelect(tableProjects, where, projectColumns)
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(r.bind, sqlStr, args)
	var row projectRow
	if err := r.db.GetContext(ctx, &row, sqlStr, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErr.ErrNotFound
		}
		return nil, err
	}
	return row.toModel()
}

func (r *ProjectRepo) List(ctx context.Context) ([]model.Project, error) {
	return r.list(ctx, map[string]interface{}{"_orderby": "ctime asc"})
}

// ListWithCasebase returns the projects whose casebase index exists.
func (r *ProjectRepo) ListWithCasebase(ctx context.Context) ([]model.Project, error) {
	return r.list(ctx, map[string]interface{}{"has_casebase": true, "_orderby": "ctime asc"})
}

func (r *ProjectRepo) list(ctx context.Context, where map[string]interface{}) ([]model.Project, error) {
	sqlStr, args, err := builder.BuildSelect(tableProjects, where, projectColumns)
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(r.bind, sqlStr, args)
	var rows []projectRow
	if err := r.db.SelectContext(ctx, &rows, sqlStr, args...); err != nil {
		return nil, err
	}
	projects := make([]model.Project, 0, len(rows))
	for i := range rows {
		p, err := rows[i].toModel()
		if err != nil {
			return nil, err
		}
		projects = append(projects, *p)
	}
	return projects, nil
}

func (r *ProjectRepo) Delete(ctx context.Context, id string) error {
	sqlStr, args, err := builder.BuildDelete(tableProjects, map[string]interface{}{"id": id})
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
