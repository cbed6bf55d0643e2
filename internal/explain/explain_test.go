package explain_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/RGU-Computing/clood/internal/casestore"
	"github.com/RGU-Computing/clood/internal/explain"
	"github.com/RGU-Computing/clood/internal/expr"
	"github.com/RGU-Computing/clood/internal/localsim"
	"github.com/RGU-Computing/clood/internal/model"
	"github.com/RGU-Computing/clood/internal/similarity"
)

func leaf(field string, v float64) *expr.Explanation {
	return &expr.Explanation{
		Value:       v,
		Description: "script score function, computed with script:\"Script{params={attrib=" + field + ", weight=1.0}}\"",
		Details:     []*expr.Explanation{{Value: 1, Description: "FieldExistsQuery [field=" + field + "]"}},
	}
}

func TestDetailsSingleScorer(t *testing.T) {
	got := explain.Details(&expr.Explanation{Value: 0.4, Description: "sum of:", Details: []*expr.Explanation{leaf("price", 0.4)}})
	require.Equal(t, []explain.FieldSimilarity{{Field: "price", Similarity: 0.4}}, got)
}

func TestDetailsMultipleScorers(t *testing.T) {
	root := &expr.Explanation{Value: 1.5, Description: "sum of:", Details: []*expr.Explanation{
		leaf("price", 0.5),
		{Value: 0.7, Description: "sum of:", Details: []*expr.Explanation{leaf("room type", 0.3), leaf("city-name", 0.4)}},
		{Value: 0.3, Description: "no field marker"},
	}}
	got := explain.Details(root)
	require.Equal(t, []explain.FieldSimilarity{
		{Field: "price", Similarity: 0.5},
		{Field: "room type", Similarity: 0.3},
		{Field: "city-name", Similarity: 0.4},
	}, got)
}

func TestDetailsEmpty(t *testing.T) {
	require.Empty(t, explain.Details(nil))
	require.Empty(t, explain.Details(&expr.Explanation{Value: 1, Description: "*:*"}))
}

func TestDetailsFromExecutor(t *testing.T) {
	eq, err := localsim.Build("type", "flat", 1, similarity.Equal{}, localsim.Inputs{})
	require.NoError(t, err)
	iv, err := localsim.Build("price", 50, 2, similarity.Interval{Min: 0, Max: 100}, localsim.Inputs{})
	require.NoError(t, err)
	docs := []casestore.Doc{{ID: "a", Source: model.Case{"type": "flat", "price": 40.0}}}
	hits := casestore.Execute(docs, &casestore.Query{Scorers: []*expr.Scorer{eq, iv}, Explain: true})
	require.Len(t, hits, 1)
	got := explain.Details(hits[0].Explanation)
	require.Len(t, got, 2)
	require.Equal(t, "type", got[0].Field)
	require.Equal(t, 1.0, got[0].Similarity)
	require.Equal(t, "price", got[1].Field)
	require.InDelta(t, 1.8, got[1].Similarity, 1e-9)
}

func TestFeedback(t *testing.T) {
	stored := map[string]any{
		"name": []any{"cats", "dogs"},
		"rep": []any{
			map[string]any{"rep": []any{1.0, 0.0}},
			map[string]any{"rep": []any{0.0, 1.0}},
		},
	}
	query := []explain.Element{
		{Text: "kittens", Vector: []float32{0.9, 0.1}},
		{Text: "birds", Vector: []float32{1, 1}},
	}
	items := explain.Feedback("pets", query, stored, 0)
	require.Len(t, items, 1)
	require.Equal(t, "birds", items[0].Value)
	require.Equal(t, "pets", items[0].Field)
	require.Equal(t, 0.707, items[0].Similarity)
	require.Equal(t, "cats", items[0].Closest)

	items = explain.Feedback("pets", query, nil, 0.5)
	require.Len(t, items, 2)
	require.Equal(t, 0.0, items[0].Similarity)
}
