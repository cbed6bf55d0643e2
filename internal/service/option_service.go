package service

import (
	"context"
	"math"
	"strconv"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/RGU-Computing/clood/internal/casestore"
	"github.com/RGU-Computing/clood/internal/model"
	"github.com/RGU-Computing/clood/internal/repo"
)

const (
	refreshedDecay = 0.9
	dayMillis      = 24 * 60 * 60 * 1000
)

// OptionService recomputes the range options of numeric and date
// attributes from the values in the casebase.
type OptionService struct {
	projects *ProjectService
	repo     *repo.ProjectRepo
	store    casestore.Store
}

func NewOptionService(projects *ProjectService, projectRepo *repo.ProjectRepo, store casestore.Store) *OptionService {
	return &OptionService{projects: projects, repo: projectRepo, store: store}
}

func (s *OptionService) RefreshByID(ctx context.Context, projectID string, names ...string) (*model.Project, error) {
	p, err := s.projects.Get(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if err := s.Refresh(ctx, p, names...); err != nil {
		return nil, err
	}
	return p, nil
}

// Refresh rewrites the options of the named attributes (all when names is
// empty) and saves p. Only option keys the attribute already has are set.
func (s *OptionService) Refresh(ctx context.Context, p *model.Project, names ...string) error {
	wanted := make(map[string]bool, len(names))
	for _, n := range names {
		wanted[n] = true
	}
	for i := range p.Attributes {
		attr := &p.Attributes[i]
		if len(wanted) > 0 && !wanted[attr.Name] {
			continue
		}
		t := attr.Type.Normalize()
		if t != model.TypeInteger && t != model.TypeFloat && t != model.TypeDate {
			continue
		}
		if attr.Options == nil {
			continue
		}
		rng, err := s.store.FieldRange(ctx, p.Casebase, attr.Name, t == model.TypeDate)
		if err != nil {
			return err
		}
		applyRange(attr.Options, rng)
	}
	return s.projects.save(ctx, p)
}

func applyRange(opts *model.AttributeOptions, rng *casestore.Range) {
	lo, hi := rng.Min, rng.Max
	if rng.Count == 0 {
		lo, hi = 0, 1
	}
	interval := hi - lo
	if opts.Min != nil {
		opts.Min = model.Float(lo)
	}
	if opts.Max != nil {
		if hi == lo {
			hi += 0.001
		}
		opts.Max = model.Float(hi)
	}
	if opts.Interval != nil {
		opts.Interval = model.Float(interval)
	}
	if opts.NScale != nil {
		opts.NScale = model.Float(math.Max(1, interval/10))
		opts.NDecay = model.Float(refreshedDecay)
	}
	if opts.DScale != nil {
		days := math.Floor(interval / dayMillis)
		scale := math.Max(1, math.Ceil(days/10))
		opts.DScale = model.String(strconv.Itoa(int(scale)) + "d")
		opts.DDecay = model.Float(refreshedDecay)
	}
}

// RefreshAll refreshes every project that has a casebase. A failing project
// is logged and skipped.
func (s *OptionService) RefreshAll(ctx context.Context) (int, error) {
	projects, err := s.repo.ListWithCasebase(ctx)
	if err != nil {
		return 0, err
	}
	refreshed := 0
	for i := range projects {
		p := &projects[i]
		if err := s.Refresh(ctx, p); err != nil {
			logutil.GetLogger(ctx).Warn("refresh attribute options failed",
				zap.String("project_id", p.ID), zap.Error(err))
			continue
		}
		refreshed++
	}
	return refreshed, nil
}
