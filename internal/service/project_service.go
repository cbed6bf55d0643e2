package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/RGU-Computing/clood/internal/casestore"
	"github.com/RGU-Computing/clood/internal/model"
	appErr "github.com/RGU-Computing/clood/internal/pkg/errors"
	"github.com/RGU-Computing/clood/internal/repo"
	"github.com/RGU-Computing/clood/internal/schema"
)

type ProjectService struct {
	projects *repo.ProjectRepo
	store    casestore.Store
	ontology *OntologyService
	dims     schema.Dimensions
}

// NewProjectService builds the project service. dims sizes embedding fields in
// new index mappings; nil uses each model's default.
func NewProjectService(projects *repo.ProjectRepo, store casestore.Store, ontology *OntologyService, dims schema.Dimensions) *ProjectService {
	return &ProjectService{projects: projects, store: store, ontology: ontology, dims: dims}
}

type CreateProjectInput struct {
	Name                 string                `json:"name"`
	Description          string                `json:"description"`
	RetainDuplicateCases bool                  `json:"retainDuplicateCases"`
	Attributes           []model.AttributeSpec `json:"attributes"`
}

// UpdateProjectInput merges into the stored project; nil fields are kept.
type UpdateProjectInput struct {
	Name                 *string                `json:"name"`
	Description          *string                `json:"description"`
	RetainDuplicateCases *bool                  `json:"retainDuplicateCases"`
	HasCasebase          *bool                  `json:"hasCasebase"`
	Attributes           *[]model.AttributeSpec `json:"attributes"`
}

func (s *ProjectService) List(ctx context.Context) ([]model.Project, error) {
	return s.projects.List(ctx)
}

func (s *ProjectService) Get(ctx context.Context, id string) (*model.Project, error) {
	p, err := s.projects.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, appErr.ErrNotFound) {
			return nil, appErr.ProjectNotFound()
		}
		return nil, err
	}
	return p, nil
}

func (s *ProjectService) Create(ctx context.Context, input CreateProjectInput) (*model.Project, error) {
	if strings.TrimSpace(input.Name) == "" {
		return nil, appErr.ProjectNameInvalid()
	}
	now := time.Now().UnixMilli()
	id := newID()
	p := &model.Project{
		ID:                   id,
		Name:                 input.Name,
		Description:          input.Description,
		Casebase:             model.CasebaseName(id),
		RetainDuplicateCases: input.RetainDuplicateCases,
		Attributes:           input.Attributes,
		Ctime:                now,
		Mtime:                now,
	}
	if p.Attributes == nil {
		p.Attributes = []model.AttributeSpec{}
	}
	if err := s.projects.Create(ctx, p); err != nil {
		if errors.Is(err, appErr.ErrConflict) {
			return nil, appErr.ProjectDuplicate()
		}
		return nil, appErr.ProjectCreate(err)
	}
	logutil.GetLogger(ctx).Info("project created", zap.String("project_id", id), zap.String("name", p.Name))
	return p, nil
}

// Update applies input and, when the project already has a casebase,
// rebuilds the grids of ontology attributes that changed.
func (s *ProjectService) Update(ctx context.Context, id string, input UpdateProjectInput) (*model.Project, error) {
	old, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	p := *old
	if input.Name != nil {
		if strings.TrimSpace(*input.Name) == "" {
			return nil, appErr.ProjectNameInvalid()
		}
		p.Name = *input.Name
	}
	if input.Description != nil {
		p.Description = *input.Description
	}
	if input.RetainDuplicateCases != nil {
		p.RetainDuplicateCases = *input.RetainDuplicateCases
	}
	if input.HasCasebase != nil {
		p.HasCasebase = *input.HasCasebase
	}
	if input.Attributes != nil {
		p.Attributes = *input.Attributes
	}
	if err := s.save(ctx, &p); err != nil {
		return nil, err
	}
	if input.Attributes != nil && p.HasCasebase {
		s.ontology.RebuildChanged(ctx, old, &p)
	}
	return &p, nil
}

func (s *ProjectService) save(ctx context.Context, p *model.Project) error {
	p.Mtime = time.Now().UnixMilli()
	if err := s.projects.Update(ctx, p); err != nil {
		if errors.Is(err, appErr.ErrNotFound) {
			return appErr.ProjectNotFound()
		}
		return appErr.ProjectUpdate(err)
	}
	return nil
}

// Delete removes the project with its casebase and ontology grids.
func (s *ProjectService) Delete(ctx context.Context, id string) error {
	p, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.store.DeleteIndex(ctx, p.Casebase); err != nil && !errors.Is(err, appErr.ErrNotFound) {
		return appErr.ProjectDelete(err)
	}
	s.ontology.DropGrids(ctx, p)
	if err := s.projects.Delete(ctx, id); err != nil {
		if errors.Is(err, appErr.ErrNotFound) {
			return appErr.ProjectNotFound()
		}
		return appErr.ProjectDelete(err)
	}
	logutil.GetLogger(ctx).Info("project deleted", zap.String("project_id", id))
	return nil
}

// CreateIndex creates the casebase index of the project if missing and marks
// the project as having a casebase.
func (s *ProjectService) CreateIndex(ctx context.Context, id string) (bool, error) {
	p, err := s.Get(ctx, id)
	if err != nil {
		return false, err
	}
	return s.ensureCasebase(ctx, p)
}

func (s *ProjectService) ensureCasebase(ctx context.Context, p *model.Project) (bool, error) {
	created, err := s.store.EnsureIndex(ctx, p.Casebase, schema.Mapping(p, s.dims))
	if err != nil {
		return false, err
	}
	if !p.HasCasebase {
		p.HasCasebase = true
		if err := s.save(ctx, p); err != nil {
			return created, err
		}
	}
	return created, nil
}
