package service

import (
	"context"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/RGU-Computing/clood/internal/model"
	appErr "github.com/RGU-Computing/clood/internal/pkg/errors"
	"github.com/RGU-Computing/clood/internal/retrieval"
	"github.com/RGU-Computing/clood/internal/reuse"
)

// CBRService runs the retrieve, reuse, revise and retain steps.
type CBRService struct {
	projects *ProjectService
	casebase *CasebaseService
	engine   *retrieval.Engine
	sim      reuse.TextSimilarity
}

func NewCBRService(projects *ProjectService, casebase *CasebaseService, engine *retrieval.Engine, sim reuse.TextSimilarity) *CBRService {
	return &CBRService{projects: projects, casebase: casebase, engine: engine, sim: sim}
}

type RetainRequest struct {
	ProjectID string         `json:"projectId"`
	Project   *model.Project `json:"project,omitempty"`
	Data      model.Case     `json:"data"`
}

// project returns the inline project when given, otherwise loads it.
func (s *CBRService) project(ctx context.Context, inline *model.Project, id string) (*model.Project, error) {
	if inline != nil && inline.ID != "" {
		if inline.Casebase == "" {
			inline.Casebase = model.CasebaseName(inline.ID)
		}
		return inline, nil
	}
	if id == "" {
		return nil, appErr.InvalidRequest("projectId is required")
	}
	return s.projects.Get(ctx, id)
}

func (s *CBRService) Retrieve(ctx context.Context, req *retrieval.Request) (*retrieval.Result, error) {
	p, err := s.project(ctx, req.Project, req.ProjectID)
	if err != nil {
		return nil, err
	}
	return s.engine.Retrieve(ctx, p, req)
}

func (s *CBRService) Explain(ctx context.Context, req *retrieval.ExplainRequest) (*retrieval.ExplainResult, error) {
	p, err := s.project(ctx, req.Project, req.ProjectID)
	if err != nil {
		return nil, err
	}
	return s.engine.Explain(ctx, p, req)
}

// Reuse adapts the neighbours' solutions. Unknown reuse types give {}.
func (s *CBRService) Reuse(ctx context.Context, req *reuse.Request) (any, error) {
	if s.sim == nil {
		return nil, appErr.UpstreamUnavailable("Text similarity", nil)
	}
	res, err := reuse.Reuse(ctx, s.sim, req)
	if err != nil {
		return nil, err
	}
	if res == nil {
		logutil.GetLogger(ctx).Debug("reuse produced no adaptation", zap.String("reuse_type", req.ReuseType))
		return map[string]any{}, nil
	}
	return res, nil
}

// Revise is not implemented by the engine and always returns {}.
func (s *CBRService) Revise(context.Context) map[string]any {
	return map[string]any{}
}

func (s *CBRService) Retain(ctx context.Context, req *RetainRequest) (*RetainResult, error) {
	p, err := s.project(ctx, req.Project, req.ProjectID)
	if err != nil {
		return nil, err
	}
	return s.casebase.Retain(ctx, p, req.Data)
}
