package similarity

import (
	"fmt"

	"github.com/RGU-Computing/clood/internal/model"
)

const (
	defaultMax        = 100.0
	defaultMin        = 0.0
	defaultJump       = 1.0
	defaultDecay      = 0.999
	defaultNumScale   = 1.0
	defaultDateScale  = "365d"
	defaultGeoScale   = "10km"
	defaultCosineDims = 512
)

// Measure is the resolved form of one attribute's local similarity. Each
// variant carries only the options it needs.
type Measure interface {
	Kind() Kind
}

type None struct{}

type Equal struct {
	IgnoreCase bool
	Float      bool
}

// MostSimilar scores with the store's text relevance.
type MostSimilar struct{}

type McSherry struct {
	More     bool
	Min, Max float64
}

type Inreca struct {
	More     bool
	Jump     float64
	Min, Max float64
}

type Interval struct {
	Min, Max float64
}

type NearestTarget int

const (
	NearestNumber NearestTarget = iota
	NearestDate
	NearestLocation
)

// Nearest is an exponential decay around the query value. Scale is in the
// target's base unit: plain numbers, milliseconds or metres.
type Nearest struct {
	Target   NearestTarget
	Scale    float64
	RawScale string
	Decay    float64
}

type EnumDistance struct {
	Values []string
}

type QueryIntersection struct{}

type Table struct {
	Grid map[string]map[string]float64
}

type Ontology struct {
	FeatureBased bool
	Descriptor   model.OntologyDescriptor
}

type Semantic struct {
	Model     model.EmbeddingModel
	Dimension int
}

type ArraySemantic struct {
	Model     model.EmbeddingModel
	Dimension int
}

type Cosine struct {
	Dimension int
}

type Jaccard struct{}

func (None) Kind() Kind              { return KindNone }
func (e Equal) Kind() Kind           { return equalKind(e) }
func (MostSimilar) Kind() Kind       { return KindMostSimilar }
func (m McSherry) Kind() Kind        { return pick(m.More, KindMcSherryMore, KindMcSherryLess) }
func (m Inreca) Kind() Kind          { return pick(m.More, KindInrecaMore, KindInrecaLess) }
func (Interval) Kind() Kind          { return KindInterval }
func (EnumDistance) Kind() Kind      { return KindEnumDistance }
func (QueryIntersection) Kind() Kind { return KindQueryIntersection }
func (Table) Kind() Kind             { return KindTable }
func (o Ontology) Kind() Kind        { return pick(o.FeatureBased, KindFeatureBased, KindPathBased) }
func (ArraySemantic) Kind() Kind     { return KindArraySBERT }
func (Cosine) Kind() Kind            { return KindCosine }
func (Jaccard) Kind() Kind           { return KindJaccard }

func (n Nearest) Kind() Kind {
	switch n.Target {
	case NearestDate:
		return KindNearestDate
	case NearestLocation:
		return KindNearestLocation
	}
	return KindNearestNumber
}

func (s Semantic) Kind() Kind {
	switch s.Model {
	case model.ModelUSE:
		return KindSemanticUSE
	case model.ModelAnglEMatching:
		return KindSemanticAnglEMatching
	case model.ModelAnglERetrieval:
		return KindSemanticAnglERetrieval
	}
	return KindSemanticSBERT
}

func equalKind(e Equal) Kind {
	if e.IgnoreCase {
		return KindEqualIgnoreCase
	}
	return KindEqual
}

func pick(cond bool, a, b Kind) Kind {
	if cond {
		return a
	}
	return b
}

// Resolve turns an attribute and a similarity label into a Measure with the
// option defaults applied. An empty label falls back to the attribute's own.
func Resolve(p *model.Project, attr *model.AttributeSpec, label string) (Measure, error) {
	if label == "" {
		label = attr.Similarity
	}
	opts := attr.Options
	if opts == nil {
		opts = &model.AttributeOptions{}
	}
	kind := Parse(label)
	switch kind {
	case KindNone:
		return None{}, nil
	case KindEqual, KindEqualIgnoreCase:
		return Equal{IgnoreCase: kind == KindEqualIgnoreCase, Float: attr.Type.Normalize() == model.TypeFloat}, nil
	case KindMostSimilar:
		return MostSimilar{}, nil
	case KindMcSherryMore, KindMcSherryLess:
		return McSherry{
			More: kind == KindMcSherryMore,
			Min:  floatOr(opts.Min, defaultMin),
			Max:  floatOr(opts.Max, defaultMax),
		}, nil
	case KindInrecaMore, KindInrecaLess:
		return Inreca{
			More: kind == KindInrecaMore,
			Jump: floatOr(opts.Jump, defaultJump),
			Min:  floatOr(opts.Min, defaultMin),
			Max:  floatOr(opts.Max, defaultMax),
		}, nil
	case KindInterval:
		return Interval{Min: floatOr(opts.Min, defaultMin), Max: floatOr(opts.Max, defaultMax)}, nil
	case KindNearestNumber:
		scale := floatOr(opts.NScale, defaultNumScale)
		if scale <= 0 {
			scale = defaultNumScale
		}
		return Nearest{Target: NearestNumber, Scale: scale, Decay: decayOr(opts.NDecay)}, nil
	case KindNearestDate:
		raw := stringOr(opts.DScale, defaultDateScale)
		scale, err := ParseTimeScale(raw)
		if err != nil || scale <= 0 {
			return nil, fmt.Errorf("attribute %s: invalid dscale %q", attr.Name, raw)
		}
		return Nearest{Target: NearestDate, Scale: scale, RawScale: raw, Decay: decayOr(opts.DDecay)}, nil
	case KindNearestLocation:
		raw := stringOr(opts.LScale, defaultGeoScale)
		scale, err := ParseDistanceScale(raw)
		if err != nil || scale <= 0 {
			return nil, fmt.Errorf("attribute %s: invalid lscale %q", attr.Name, raw)
		}
		return Nearest{Target: NearestLocation, Scale: scale, RawScale: raw, Decay: decayOr(opts.LDecay)}, nil
	case KindEnumDistance:
		return EnumDistance{Values: opts.Values}, nil
	case KindQueryIntersection:
		return QueryIntersection{}, nil
	case KindTable:
		return Table{Grid: opts.SimGrid}, nil
	case KindPathBased, KindFeatureBased:
		if p == nil {
			return nil, fmt.Errorf("attribute %s: ontology measure needs a project", attr.Name)
		}
		method := model.OntologyMethodWUP
		if kind == KindFeatureBased {
			method = model.OntologyMethodSAN
		}
		desc := model.OntologyDescriptorWith(p, attr, method)
		return Ontology{FeatureBased: kind == KindFeatureBased, Descriptor: desc}, nil
	case KindSemanticUSE, KindSemanticSBERT, KindSemanticAnglEMatching, KindSemanticAnglERetrieval:
		m, _ := kind.EmbeddingModel()
		return Semantic{Model: m, Dimension: m.DefaultDimension()}, nil
	case KindArraySBERT:
		return ArraySemantic{Model: model.ModelSBERT, Dimension: model.ModelSBERT.DefaultDimension()}, nil
	case KindCosine:
		dim := opts.Dimension
		if dim <= 0 {
			dim = defaultCosineDims
		}
		return Cosine{Dimension: dim}, nil
	case KindJaccard:
		return Jaccard{}, nil
	}
	return MostSimilar{}, nil
}

// Capabilities reports which embedding models have a configured endpoint.
type Capabilities interface {
	Supports(m model.EmbeddingModel) bool
}

// Degrade replaces measures whose vectoriser is unavailable with MostSimilar.
func Degrade(m Measure, caps Capabilities) Measure {
	em, ok := m.Kind().EmbeddingModel()
	if !ok {
		return m
	}
	if caps == nil || !caps.Supports(em) {
		return MostSimilar{}
	}
	return m
}

func floatOr(v *float64, def float64) float64 {
	if v == nil {
		return def
	}
	return *v
}

func decayOr(v *float64) float64 {
	if v == nil || *v <= 0 || *v >= 1 {
		return defaultDecay
	}
	return *v
}

func stringOr(v *string, def string) string {
	if v == nil || *v == "" {
		return def
	}
	return *v
}
