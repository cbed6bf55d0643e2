package retrieval

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/xxxsen/common/logutil"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/RGU-Computing/clood/internal/casestore"
	"github.com/RGU-Computing/clood/internal/explain"
	"github.com/RGU-Computing/clood/internal/expr"
	"github.com/RGU-Computing/clood/internal/localsim"
	"github.com/RGU-Computing/clood/internal/model"
	appErr "github.com/RGU-Computing/clood/internal/pkg/errors"
	"github.com/RGU-Computing/clood/internal/schema"
	"github.com/RGU-Computing/clood/internal/similarity"
)

// Vectorizer embeds query text for semantic measures.
type Vectorizer interface {
	Supports(em model.EmbeddingModel) bool
	Embed(ctx context.Context, em model.EmbeddingModel, text string) ([]float32, error)
	EmbedMany(ctx context.Context, em model.EmbeddingModel, texts []string) ([][]float32, error)
	Dimension(em model.EmbeddingModel) int
}

// GridSource returns ontology grid rows, building missing ones.
type GridSource interface {
	QueryOrBuild(ctx context.Context, d model.OntologyDescriptor, key string) (map[string]float64, error)
}

type Engine struct {
	store casestore.Store
	vec   Vectorizer
	grids GridSource
}

func NewEngine(store casestore.Store, vec Vectorizer, grids GridSource) *Engine {
	return &Engine{store: store, vec: vec, grids: grids}
}

// plan is a resolved query feature.
type plan struct {
	feature  Feature
	attr     model.AttributeSpec
	weight   float64
	measure  similarity.Measure
	inputs   localsim.Inputs
	elements []explain.Element
}

func (p *plan) scored() bool {
	if !p.feature.HasValue() || p.weight <= 0 {
		return false
	}
	_, none := p.measure.(similarity.None)
	return !none
}

func attributeFor(p *model.Project, f Feature) model.AttributeSpec {
	if a := p.Attribute(f.Name); a != nil {
		attr := *a
		if f.Type != "" {
			attr.Type = model.ValueType(f.Type)
		}
		return attr
	}
	return model.AttributeSpec{Name: f.Name, Type: model.ValueType(f.Type), Similarity: f.Similarity, Weight: 1}
}

func texts(v any) []string {
	var out []string
	for _, item := range expr.Values(v) {
		if s, ok := expr.ToString(item); ok && s != "" {
			out = append(out, s)
		}
	}
	return out
}

func (e *Engine) resolve(p *model.Project, features []Feature) ([]*plan, error) {
	plans := make([]*plan, 0, len(features))
	for _, f := range features {
		attr := attributeFor(p, f)
		weight := attr.Weight
		if f.Weight != nil {
			weight = *f.Weight
		}
		m, err := similarity.Resolve(p, &attr, f.Similarity)
		if err != nil {
			return nil, appErr.InvalidRequest(err.Error())
		}
		m = similarity.Degrade(m, e.vec)
		plans = append(plans, &plan{feature: f, attr: attr, weight: weight, measure: m})
	}
	return plans, nil
}

// prepare fetches query embeddings and ontology rows, one call per feature.
func (e *Engine) prepare(ctx context.Context, plans []*plan) error {
	eg, ctx := errgroup.WithContext(ctx)
	for _, pl := range plans {
		if !pl.scored() {
			continue
		}
		switch ms := pl.measure.(type) {
		case similarity.Semantic:
			eg.Go(func() error {
				vec, err := e.vec.Embed(ctx, ms.Model, strings.Join(texts(pl.feature.Value), " "))
				if err != nil {
					return err
				}
				pl.inputs.Vector = vec
				return nil
			})
		case similarity.ArraySemantic:
			eg.Go(func() error {
				items := texts(pl.feature.Value)
				vecs, err := e.vec.EmbedMany(ctx, ms.Model, items)
				if err != nil {
					return err
				}
				pl.inputs.Vectors = vecs
				for i, text := range items {
					pl.elements = append(pl.elements, explain.Element{Text: text, Vector: vecs[i]})
				}
				return nil
			})
		case similarity.Ontology:
			eg.Go(func() error {
				pl.inputs.OntologyRow = e.ontologyRow(ctx, ms.Descriptor, pl.feature.Value)
				return nil
			})
		}
	}
	return eg.Wait()
}

// ontologyRow looks up the grid row of the query concept. A failed lookup
// leaves the attribute scoring 0.
func (e *Engine) ontologyRow(ctx context.Context, d model.OntologyDescriptor, value any) map[string]float64 {
	key, _ := expr.ToString(value)
	if e.grids == nil || key == "" {
		return map[string]float64{}
	}
	row, err := e.grids.QueryOrBuild(ctx, d, key)
	if err != nil {
		logutil.GetLogger(ctx).Warn("ontology row unavailable, attribute scores 0",
			zap.String("ontology_id", d.ID), zap.String("key", key), zap.Error(err))
		return map[string]float64{}
	}
	return row
}

func (e *Engine) buildQuery(plans []*plan, size int, explainHits bool) (*casestore.Query, error) {
	q := &casestore.Query{Size: size, Explain: explainHits}
	for _, pl := range plans {
		f := pl.feature
		if f.FilterType != "" {
			if !casestore.ValidFilterOp(f.FilterType) {
				return nil, appErr.InvalidRequest(fmt.Sprintf("unsupported filter operator %q on %s", f.FilterType, f.Name))
			}
			v := f.FilterValue
			if v == nil {
				v = f.Value
			}
			q.Filters = append(q.Filters, casestore.Filter{Field: f.Name, Op: f.FilterType, Value: v})
		}
		if !pl.scored() {
			continue
		}
		s, err := localsim.Build(f.Name, f.Value, pl.weight, pl.measure, pl.inputs)
		if err != nil {
			return nil, appErr.InvalidRequest(err.Error())
		}
		if s != nil {
			q.Scorers = append(q.Scorers, s)
		}
	}
	return q, nil
}

func (e *Engine) query(ctx context.Context, p *model.Project, features []Feature, size int, explainHits bool) ([]*plan, *casestore.Query, error) {
	plans, err := e.resolve(p, features)
	if err != nil {
		return nil, nil, err
	}
	if err := e.prepare(ctx, plans); err != nil {
		return nil, nil, err
	}
	q, err := e.buildQuery(plans, size, explainHits)
	if err != nil {
		return nil, nil, err
	}
	return plans, q, nil
}

// Retrieve returns the top-k cases of the project's casebase for the query
// and a recommended case aggregated from them.
var tracer = otel.Tracer("github.com/RGU-Computing/clood/internal/retrieval")

func (e *Engine) Retrieve(ctx context.Context, p *model.Project, req *Request) (*Result, error) {
	ctx, span := tracer.Start(ctx, "retrieval.Retrieve", trace.WithAttributes(
		attribute.String("project.id", p.ID),
		attribute.Int("retrieval.topk", req.Size()),
		attribute.Int("retrieval.features", len(req.Data)),
	))
	defer span.End()
	start := time.Now()
	if req.GlobalSim != "" && !strings.EqualFold(req.GlobalSim, "Weighted Sum") {
		logutil.GetLogger(ctx).Debug("global similarity not supported, using weighted sum", zap.String("global_sim", req.GlobalSim))
	}
	plans, q, err := e.query(ctx, p, req.Data, req.Size(), req.Explanation)
	if err != nil {
		return nil, err
	}
	res, err := e.store.Search(ctx, p.Casebase, q)
	if err != nil {
		if appErr.IsNotFound(err) {
			return nil, appErr.CasebaseNotFound()
		}
		return nil, err
	}

	out := &Result{Recommended: model.Case{}, BestK: make([]model.Case, 0, len(res.Hits))}
	for i, hit := range res.Hits {
		entry := schema.Flatten(p, hit.Source)
		if i == 0 {
			out.Recommended = entry.Clone()
		}
		entry[model.IDField] = hit.ID
		entry[model.ScoreField] = hit.Score
		if req.Explanation {
			entry[model.ExplanationField] = explain.Details(hit.Explanation)
		}
		if req.Feedback {
			if items := feedback(plans, hit.Source, req.FeedbackThreshold); len(items) > 0 {
				entry[model.FeedbackField] = items
			}
		}
		out.BestK = append(out.BestK, entry)
	}
	if len(out.BestK) > 0 {
		recommend(out, plans)
	}
	out.RetrieveTime = time.Since(start).Seconds()
	out.StoreTime = res.Took.Milliseconds()
	logutil.GetLogger(ctx).Debug("retrieve finished",
		zap.String("project_id", p.ID),
		zap.Int("scorers", len(q.Scorers)),
		zap.Int("hits", len(out.BestK)),
		zap.Duration("cost", time.Since(start)))
	return out, nil
}

// recommend overrides the top case with known query values and fills
// unknown ones by each feature's reuse strategy.
func recommend(out *Result, plans []*plan) {
	for _, pl := range plans {
		f := pl.feature
		if !f.Unknown && f.HasValue() {
			out.Recommended[f.Name] = f.Value
			continue
		}
		strategy := f.Strategy
		if strategy == "" {
			strategy = pl.attr.Strategy
		}
		if v, ok := Aggregate(strategy, f.Name, out.BestK); ok {
			out.Recommended[f.Name] = v
		}
	}
	if v, ok := out.Recommended["id"]; ok && v != nil {
		out.Recommended["id"] = strings.ReplaceAll(uuid.NewString(), "-", "")
	}
}

func feedback(plans []*plan, source model.Case, threshold float64) []explain.Item {
	var items []explain.Item
	for _, pl := range plans {
		if len(pl.elements) == 0 {
			continue
		}
		items = append(items, explain.Feedback(pl.feature.Name, pl.elements, source[pl.feature.Name], threshold)...)
	}
	return items
}

// Explain scores one stored case against the query and breaks its score
// down per attribute.
func (e *Engine) Explain(ctx context.Context, p *model.Project, req *ExplainRequest) (*ExplainResult, error) {
	if req.CaseID == "" {
		return nil, appErr.InvalidRequest("caseId is required")
	}
	_, q, err := e.query(ctx, p, req.Data, 0, true)
	if err != nil {
		return nil, err
	}
	hit, err := e.store.Explain(ctx, p.Casebase, req.CaseID, q)
	if err != nil {
		if appErr.IsNotFound(err) {
			return nil, appErr.CaseNotFound()
		}
		return nil, err
	}
	out := &ExplainResult{CaseID: req.CaseID, Explanation: []explain.FieldSimilarity{}}
	if hit != nil {
		out.Matched = true
		out.Score = hit.Score
		out.Explanation = explain.Details(hit.Explanation)
	}
	return out, nil
}
