package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/RGU-Computing/clood/internal/model"
	"github.com/RGU-Computing/clood/internal/ontology"
	appErr "github.com/RGU-Computing/clood/internal/pkg/errors"
)

// OntologyService ties project attributes to the grids that back them.
type OntologyService struct {
	grids ontology.Service
}

func NewOntologyService(grids ontology.Service) *OntologyService {
	return &OntologyService{grids: grids}
}

func ontologyAttribute(attr *model.AttributeSpec) bool {
	return attr.Type.Normalize() == model.TypeOntologyConcept && attr.Options != nil && attr.Options.Name != ""
}

func sameAttribute(a, b *model.AttributeSpec) bool {
	ra, errA := json.Marshal(a)
	rb, errB := json.Marshal(b)
	return errA == nil && errB == nil && bytes.Equal(ra, rb)
}

func (s *OntologyService) Check(ctx context.Context, gridID string) (model.GridStatus, error) {
	if gridID == "" {
		return model.GridStatus{}, appErr.InvalidRequest("ontologyId is required")
	}
	return s.grids.Status(ctx, gridID)
}

// Build preloads the grid of one attribute of p and returns its row count.
func (s *OntologyService) Build(ctx context.Context, p *model.Project, attr *model.AttributeSpec) (int, error) {
	if !ontologyAttribute(attr) {
		return 0, appErr.InvalidRequest("attribute " + attr.Name + " is not an ontology concept with a named ontology")
	}
	return s.grids.Preload(ctx, model.OntologyDescriptorFor(p, attr))
}

// EnsureGrids builds the grids of p's ontology attributes that do not exist
// yet. Failures are logged; the attribute then scores 0 until a rebuild.
func (s *OntologyService) EnsureGrids(ctx context.Context, p *model.Project) {
	for i := range p.Attributes {
		attr := &p.Attributes[i]
		if !ontologyAttribute(attr) || attr.Similarity == "" {
			continue
		}
		st, err := s.grids.Status(ctx, p.OntologyGridID(attr))
		if err == nil && st.Exists {
			continue
		}
		s.preload(ctx, p, attr)
	}
}

// RebuildChanged rebuilds the grids of ontology attributes whose spec
// differs between old and p.
func (s *OntologyService) RebuildChanged(ctx context.Context, old, p *model.Project) {
	for i := range p.Attributes {
		attr := &p.Attributes[i]
		if !ontologyAttribute(attr) || attr.Similarity == "" {
			continue
		}
		prev := old.Attribute(attr.Name)
		if prev == nil || sameAttribute(prev, attr) {
			continue
		}
		s.preload(ctx, p, attr)
	}
}

func (s *OntologyService) preload(ctx context.Context, p *model.Project, attr *model.AttributeSpec) {
	count, err := s.grids.Preload(ctx, model.OntologyDescriptorFor(p, attr))
	if err != nil {
		logutil.GetLogger(ctx).Error("build ontology grid failed",
			zap.String("project_id", p.ID), zap.String("attribute", attr.Name), zap.Error(err))
		return
	}
	logutil.GetLogger(ctx).Info("ontology grid built",
		zap.String("project_id", p.ID), zap.String("attribute", attr.Name), zap.Int("rows", count))
}

// DropGrids removes every grid created for p.
func (s *OntologyService) DropGrids(ctx context.Context, p *model.Project) {
	for i := range p.Attributes {
		attr := &p.Attributes[i]
		if !ontologyAttribute(attr) {
			continue
		}
		for _, id := range p.OntologyGridIDs(attr) {
			if err := s.grids.Delete(ctx, id); err != nil && !errors.Is(err, appErr.ErrNotFound) {
				logutil.GetLogger(ctx).Warn("delete ontology grid failed",
					zap.String("project_id", p.ID), zap.String("attribute", attr.Name),
					zap.String("grid_id", id), zap.Error(err))
			}
		}
	}
}
