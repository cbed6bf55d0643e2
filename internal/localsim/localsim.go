package localsim

import (
	"fmt"
	"math"
	"strings"

	"github.com/RGU-Computing/clood/internal/expr"
	"github.com/RGU-Computing/clood/internal/similarity"
)

// Inputs carries query-side values that need a collaborator to compute.
type Inputs struct {
	// Vector is the embedding of the query text for Semantic measures.
	Vector []float32
	// Vectors holds one embedding per query element for Array SBERT.
	Vectors [][]float32
	// OntologyRow is the grid row of the query concept.
	OntologyRow map[string]float64
}

// Build returns the scorer of one query feature. The score of a document is
// the weighted local similarity between value and the document's field.
func Build(field string, value any, weight float64, m similarity.Measure, in Inputs) (*expr.Scorer, error) {
	w := expr.P("weight", weight)
	exists := expr.Gate{Kind: expr.GateExists, Field: field}
	doc := expr.F(field)

	switch ms := m.(type) {
	case similarity.Equal:
		return buildEqual(field, value, ms, w)

	case similarity.MostSimilar:
		q := textValue(value)
		return &expr.Scorer{
			Field: field,
			Gate:  expr.Gate{Kind: expr.GateMatch, Field: field, Value: q, Analyzed: true},
			Expr:  expr.Mul(w, expr.TextScore{Path: field, Query: q}),
		}, nil

	case similarity.McSherry:
		q, err := number(field, value)
		if err != nil {
			return nil, err
		}
		hi, lo := math.Max(ms.Max, q), math.Min(ms.Min, q)
		ratio := expr.Div(expr.Sub(expr.P("max", hi), doc), expr.Sub(expr.P("max", hi), expr.P("min", lo)))
		if ms.More {
			ratio = expr.Sub(expr.Lit(1), ratio)
		}
		return &expr.Scorer{Field: field, Gate: exists, Expr: expr.Mul(ratio, w)}, nil

	case similarity.Inreca:
		q, err := number(field, value)
		if err != nil {
			return nil, err
		}
		v, jump := expr.P("value", q), expr.P("jump", ms.Jump)
		var e expr.Num
		if ms.More {
			lo := math.Min(ms.Min, q)
			e = expr.If(expr.Ge(doc, v), w,
				expr.Mul(expr.Mul(jump, expr.Div(expr.Sub(doc, expr.P("min", lo)), expr.Sub(v, expr.P("min", lo)))), w))
		} else {
			hi := expr.P("max", math.Max(ms.Max, q))
			e = expr.If(expr.Le(doc, v), w,
				expr.If(expr.Ge(doc, hi), expr.Lit(0),
					expr.Mul(expr.Mul(jump, expr.Div(expr.Sub(hi, doc), expr.Sub(hi, v))), w)))
		}
		return &expr.Scorer{Field: field, Gate: exists, Expr: e}, nil

	case similarity.Interval:
		q, err := number(field, value)
		if err != nil {
			return nil, err
		}
		hi, lo := math.Max(ms.Max, q), math.Min(ms.Min, q)
		dist := expr.Div(expr.Abs(expr.Sub(expr.P("value", q), doc)), expr.Sub(expr.P("max", hi), expr.P("min", lo)))
		return &expr.Scorer{Field: field, Gate: exists, Expr: expr.Mul(expr.Sub(expr.Lit(1), dist), w)}, nil

	case similarity.Nearest:
		return buildNearest(field, value, ms, w)

	case similarity.EnumDistance:
		values := expr.P("values", ms.Values)
		q, _ := expr.ToString(value)
		idx := indexOf(ms.Values, q)
		e := expr.Num(expr.Lit(0))
		if idx >= 0 {
			dist := expr.Div(expr.Abs(expr.Sub(expr.P("value", float64(idx)), expr.IndexOf{List: values, Item: doc})),
				expr.ListSize{List: values})
			e = expr.If(expr.Contains{List: values, Item: doc}, expr.Mul(expr.Sub(expr.Lit(1), dist), w), expr.Lit(0))
		}
		return &expr.Scorer{Field: field, Gate: exists, Expr: e}, nil

	case similarity.QueryIntersection:
		q := expr.P("value", distinctStrings(value))
		inter := expr.IntersectSize{Query: q, Path: field}
		return &expr.Scorer{Field: field, Gate: exists, Expr: expr.Mul(expr.Div(inter, expr.ListSize{List: q}), w)}, nil

	case similarity.Jaccard:
		q := expr.P("value", distinctStrings(value))
		inter := expr.IntersectSize{Query: q, Path: field}
		union := expr.Sub(expr.Add(expr.DocSize{Path: field}, expr.ListSize{List: q}), inter)
		return &expr.Scorer{Field: field, Gate: exists, Expr: expr.Mul(expr.Div(inter, union), w)}, nil

	case similarity.Table:
		q, _ := expr.ToString(value)
		row := ms.Grid[q]
		if row == nil {
			row = map[string]float64{}
		}
		return rowScorer(field, row, w), nil

	case similarity.Ontology:
		row := in.OntologyRow
		if row == nil {
			row = map[string]float64{}
		}
		return rowScorer(field, row, w), nil

	case similarity.Semantic:
		if len(in.Vector) == 0 {
			return nil, fmt.Errorf("attribute %s: query vector missing", field)
		}
		cos := expr.CosineField{Query: expr.P("value", in.Vector), Path: field + ".rep"}
		return &expr.Scorer{
			Field: field,
			Gate:  expr.Gate{Kind: expr.GateExists, Field: field + ".name"},
			Expr:  expr.Mul(expr.Div(expr.Add(cos, expr.Lit(1)), expr.Lit(2)), w),
		}, nil

	case similarity.ArraySemantic:
		if len(in.Vectors) == 0 {
			return nil, fmt.Errorf("attribute %s: query vectors missing", field)
		}
		return &expr.Scorer{
			Field: field,
			Gate:  expr.Gate{Kind: expr.GateExists, Field: field + ".name"},
			Expr:  expr.Mul(expr.MaxCosineMean{Query: expr.P("value", in.Vectors), Attr: field}, w),
		}, nil

	case similarity.Cosine:
		vec, ok := expr.ToVector(value)
		if !ok || len(vec) == 0 {
			return nil, fmt.Errorf("attribute %s: numeric vector expected", field)
		}
		return &expr.Scorer{Field: field, Gate: exists,
			Expr: expr.Mul(expr.CosineField{Query: expr.P("value", vec), Path: field}, w)}, nil

	case similarity.None:
		return nil, nil
	}
	return nil, fmt.Errorf("attribute %s: unsupported similarity %s", field, m.Kind())
}

func buildEqual(field string, value any, ms similarity.Equal, w *expr.Param) (*expr.Scorer, error) {
	doc := expr.F(field)
	if s, ok := value.(string); ok {
		if ms.IgnoreCase {
			s = strings.ToLower(s)
		}
		if !ms.Float {
			v := expr.P("value", s)
			return &expr.Scorer{
				Field: field,
				Gate:  expr.Gate{Kind: expr.GateMatch, Field: field, Value: s},
				Expr:  expr.If(expr.Equals{L: v, R: doc}, w, expr.Lit(0)),
			}, nil
		}
		value = s
	}
	if b, ok := value.(bool); ok {
		v := expr.P("value", b)
		return &expr.Scorer{
			Field: field,
			Gate:  expr.Gate{Kind: expr.GateMatch, Field: field, Value: b},
			Expr:  expr.If(expr.Equals{L: v, R: doc}, w, expr.Lit(0)),
		}, nil
	}
	q, err := number(field, value)
	if err != nil {
		return nil, err
	}
	v := expr.P("value", q)
	return &expr.Scorer{
		Field: field,
		Gate:  expr.Gate{Kind: expr.GateMatch, Field: field, Value: q},
		Expr:  expr.If(expr.Lt(expr.Abs(expr.Sub(v, doc)), expr.Lit(1e-4)), w, expr.Lit(0)),
	}, nil
}

func buildNearest(field string, value any, ms similarity.Nearest, w *expr.Param) (*expr.Scorer, error) {
	d := expr.Decay{
		Decay:     expr.P("decay", ms.Decay),
		ScaleBase: ms.Scale,
		Path:      field,
	}
	switch ms.Target {
	case similarity.NearestDate:
		if _, ok := expr.ParseDate(value); !ok {
			return nil, fmt.Errorf("attribute %s: date value expected", field)
		}
		d.Target = expr.DecayDate
		d.Origin = expr.P("origin", value)
		d.Scale = expr.P("scale", ms.RawScale)
		d.Offset = expr.P("offset", "0d")
	case similarity.NearestLocation:
		lat, lon, ok := expr.ParseGeo(value)
		if !ok {
			return nil, fmt.Errorf("attribute %s: location value expected", field)
		}
		d.Target = expr.DecayGeo
		d.Origin = expr.P("origin", fmt.Sprintf("%v,%v", lat, lon))
		d.Scale = expr.P("scale", ms.RawScale)
		d.Offset = expr.P("offset", "0km")
	default:
		q, err := number(field, value)
		if err != nil {
			return nil, err
		}
		d.Target = expr.DecayNumeric
		d.Origin = expr.P("origin", q)
		d.Scale = expr.P("scale", ms.Scale)
		d.Offset = expr.P("offset", 0.0)
	}
	return &expr.Scorer{
		Field: field,
		Gate:  expr.Gate{Kind: expr.GateExists, Field: field},
		Expr:  expr.Mul(d, w),
	}, nil
}

func rowScorer(field string, row map[string]float64, w *expr.Param) *expr.Scorer {
	return &expr.Scorer{
		Field: field,
		Gate:  expr.Gate{Kind: expr.GateExists, Field: field},
		Expr:  expr.Mul(expr.RowLookup{Row: expr.P("row", row), Key: expr.F(field)}, w),
	}
}

func number(field string, value any) (float64, error) {
	f, ok := expr.ToFloat(value)
	if !ok {
		return 0, fmt.Errorf("attribute %s: numeric value expected, got %v", field, value)
	}
	return f, nil
}

func textValue(value any) string {
	parts := make([]string, 0, 1)
	for _, v := range expr.Values(value) {
		if s, ok := expr.ToString(v); ok {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, " ")
}

func distinctStrings(value any) []string {
	seen := make(map[string]bool)
	out := make([]string, 0)
	for _, v := range expr.Values(value) {
		s, ok := expr.ToString(v)
		if !ok || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}

func indexOf(values []string, v string) int {
	for i, item := range values {
		if item == v {
			return i
		}
	}
	return -1
}
