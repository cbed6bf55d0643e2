package localsim

import (
	"testing"

	"github.com/RGU-Computing/clood/internal/expr"
	"github.com/RGU-Computing/clood/internal/similarity"
	"github.com/stretchr/testify/require"
)

func score(t *testing.T, s *expr.Scorer, doc map[string]any, stats *expr.Stats) float64 {
	t.Helper()
	v, _, _ := s.Evaluate(&expr.Env{Doc: doc, Stats: stats})
	return v
}

func TestInrecaLess(t *testing.T) {
	m := similarity.Inreca{Jump: 0.5, Max: 100}
	s, err := Build("price", 30.0, 2, m, Inputs{})
	require.NoError(t, err)

	require.InDelta(t, 2.0, score(t, s, map[string]any{"price": 20.0}, nil), 1e-9)
	require.InDelta(t, 2*0.5*60.0/70.0, score(t, s, map[string]any{"price": 40.0}, nil), 1e-9)
	require.Zero(t, score(t, s, map[string]any{"price": 120.0}, nil))
}

func TestInrecaMore(t *testing.T) {
	m := similarity.Inreca{More: true, Jump: 1, Max: 100}
	s, err := Build("size", 50.0, 1, m, Inputs{})
	require.NoError(t, err)
	require.InDelta(t, 1.0, score(t, s, map[string]any{"size": 60.0}, nil), 1e-9)
	require.InDelta(t, 0.5, score(t, s, map[string]any{"size": 25.0}, nil), 1e-9)
}

func TestWeightedMixRanksTitleMatchFirst(t *testing.T) {
	docs := []map[string]any{
		{"title": "blue hat", "price": 40.0},
		{"title": "red hat", "price": 20.0},
	}
	stats := expr.NewStats(docs)
	title, err := Build("title", "blue hat", 1, similarity.MostSimilar{}, Inputs{})
	require.NoError(t, err)
	price, err := Build("price", 30.0, 2, similarity.Inreca{Jump: 0.5, Max: 100}, Inputs{})
	require.NoError(t, err)

	total := func(doc map[string]any) float64 {
		return score(t, title, doc, stats) + score(t, price, doc, stats)
	}
	a, b := total(docs[0]), total(docs[1])
	require.Greater(t, a, 0.0)
	require.Greater(t, b, 0.0)
	require.InDelta(t, 2*0.5*60.0/70.0, score(t, price, docs[0], stats), 1e-9)
	require.InDelta(t, 2.0, score(t, price, docs[1], stats), 1e-9)
	require.Greater(t, score(t, title, docs[0], stats), score(t, title, docs[1], stats))
}

func TestJaccardUsesSetSemantics(t *testing.T) {
	s, err := Build("tags", []any{"b", "c", "c"}, 1, similarity.Jaccard{}, Inputs{})
	require.NoError(t, err)
	require.InDelta(t, 2.0/3.0, score(t, s, map[string]any{"tags": []any{"a", "b", "c"}}, nil), 1e-9)
	require.InDelta(t, 2.0/4.0, score(t, s, map[string]any{"tags": []any{"b", "c", "d", "e"}}, nil), 1e-9)
}

func TestQueryIntersection(t *testing.T) {
	s, err := Build("tags", []any{"b", "c"}, 2, similarity.QueryIntersection{}, Inputs{})
	require.NoError(t, err)
	require.InDelta(t, 1.0, score(t, s, map[string]any{"tags": []any{"b", "x"}}, nil), 1e-9)
}

func TestEqual(t *testing.T) {
	tests := []struct {
		name    string
		measure similarity.Equal
		query   any
		doc     any
		want    float64
	}{
		{"integer match", similarity.Equal{}, 30.0, 30.0, 1},
		{"integer miss", similarity.Equal{}, 30.0, 31.0, 0},
		{"float tolerance", similarity.Equal{Float: true}, 1.00001, 1.0, 1},
		{"string match", similarity.Equal{}, "red", "red", 1},
		{"case sensitive", similarity.Equal{}, "Red", "red", 0},
		{"ignore case", similarity.Equal{IgnoreCase: true}, "Red", "red", 1},
		{"boolean", similarity.Equal{}, true, true, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := Build("f", tt.query, 1, tt.measure, Inputs{})
			require.NoError(t, err)
			require.InDelta(t, tt.want, score(t, s, map[string]any{"f": tt.doc}, nil), 1e-9)
		})
	}
}

func TestMcSherryAndInterval(t *testing.T) {
	less, err := Build("n", 50.0, 1, similarity.McSherry{Min: 0, Max: 100}, Inputs{})
	require.NoError(t, err)
	require.InDelta(t, 0.75, score(t, less, map[string]any{"n": 25.0}, nil), 1e-9)

	more, err := Build("n", 50.0, 1, similarity.McSherry{More: true, Min: 0, Max: 100}, Inputs{})
	require.NoError(t, err)
	require.InDelta(t, 0.25, score(t, more, map[string]any{"n": 25.0}, nil), 1e-9)

	clamped, err := Build("n", 200.0, 1, similarity.McSherry{Min: 0, Max: 100}, Inputs{})
	require.NoError(t, err)
	require.InDelta(t, 0.5, score(t, clamped, map[string]any{"n": 100.0}, nil), 1e-9)

	interval, err := Build("n", 50.0, 1, similarity.Interval{Min: 0, Max: 100}, Inputs{})
	require.NoError(t, err)
	require.InDelta(t, 0.9, score(t, interval, map[string]any{"n": 40.0}, nil), 1e-9)
}

func TestEnumDistance(t *testing.T) {
	m := similarity.EnumDistance{Values: []string{"low", "mid", "high", "max"}}
	s, err := Build("level", "low", 1, m, Inputs{})
	require.NoError(t, err)
	require.InDelta(t, 0.5, score(t, s, map[string]any{"level": "high"}, nil), 1e-9)
	require.Zero(t, score(t, s, map[string]any{"level": "unknown"}, nil))

	undefined, err := Build("level", "nowhere", 1, m, Inputs{})
	require.NoError(t, err)
	require.Zero(t, score(t, undefined, map[string]any{"level": "low"}, nil))
}

func TestTableAndOntologyRows(t *testing.T) {
	table := similarity.Table{Grid: map[string]map[string]float64{"red": {"red": 1, "pink": 0.8}}}
	s, err := Build("color", "red", 2, table, Inputs{})
	require.NoError(t, err)
	require.InDelta(t, 1.6, score(t, s, map[string]any{"color": "pink"}, nil), 1e-9)
	require.Zero(t, score(t, s, map[string]any{"color": "blue"}, nil))

	ont, err := Build("kind", "Y", 1, similarity.Ontology{}, Inputs{OntologyRow: map[string]float64{"Z": 0.857}})
	require.NoError(t, err)
	require.InDelta(t, 0.857, score(t, ont, map[string]any{"kind": "Z"}, nil), 1e-9)
}

func TestSemanticMeasures(t *testing.T) {
	sem, err := Build("desc", "a hat", 1, similarity.Semantic{}, Inputs{Vector: []float32{1, 0}})
	require.NoError(t, err)
	doc := map[string]any{"desc": map[string]any{"name": "a cap", "rep": []any{0.0, 1.0}}}
	require.InDelta(t, 0.5, score(t, sem, doc, nil), 1e-9)

	_, err = Build("desc", "a hat", 1, similarity.Semantic{}, Inputs{})
	require.Error(t, err)

	arr, err := Build("qs", []any{"x"}, 1, similarity.ArraySemantic{}, Inputs{Vectors: [][]float32{{1, 0}}})
	require.NoError(t, err)
	doc = map[string]any{"qs": map[string]any{"name": []any{"y"}, "rep": []any{map[string]any{"rep": []any{1.0, 0.0}}}}}
	require.InDelta(t, 1.0, score(t, arr, doc, nil), 1e-9)

	cos, err := Build("v", []any{1.0, 1.0}, 1, similarity.Cosine{Dimension: 2}, Inputs{})
	require.NoError(t, err)
	require.InDelta(t, 1.0, score(t, cos, map[string]any{"v": []any{2.0, 2.0}}, nil), 1e-9)
}

func TestNearestNumber(t *testing.T) {
	s, err := Build("n", 10.0, 1, similarity.Nearest{Target: similarity.NearestNumber, Scale: 1, Decay: 0.5}, Inputs{})
	require.NoError(t, err)
	require.InDelta(t, 0.25, score(t, s, map[string]any{"n": 12.0}, nil), 1e-9)
	require.Contains(t, s.Painless().Source, "decayNumericExp(params.origin, params.scale, params.offset, params.decay, doc['n'].value)")
}

func TestNumericMeasureRejectsText(t *testing.T) {
	_, err := Build("n", "many", 1, similarity.Interval{Max: 10}, Inputs{})
	require.Error(t, err)
}
