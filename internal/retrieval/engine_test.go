package retrieval_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/RGU-Computing/clood/internal/casestore"
	"github.com/RGU-Computing/clood/internal/explain"
	"github.com/RGU-Computing/clood/internal/model"
	appErr "github.com/RGU-Computing/clood/internal/pkg/errors"
	"github.com/RGU-Computing/clood/internal/retrieval"
)

type fakeVectorizer struct {
	supported bool
	calls     int
}

func (f *fakeVectorizer) Supports(model.EmbeddingModel) bool { return f.supported }

func (f *fakeVectorizer) Dimension(model.EmbeddingModel) int { return 2 }

func (f *fakeVectorizer) Embed(_ context.Context, _ model.EmbeddingModel, _ string) ([]float32, error) {
	f.calls++
	return []float32{1, 0}, nil
}

func (f *fakeVectorizer) EmbedMany(_ context.Context, _ model.EmbeddingModel, texts []string) ([][]float32, error) {
	f.calls++
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0}
	}
	return out, nil
}

type fakeGrids struct {
	rows map[string]map[string]float64
	keys []string
}

func (f *fakeGrids) QueryOrBuild(_ context.Context, _ model.OntologyDescriptor, key string) (map[string]float64, error) {
	f.keys = append(f.keys, key)
	row, ok := f.rows[key]
	if !ok {
		return nil, errors.New("grid offline")
	}
	return row, nil
}

func testProject() *model.Project {
	return &model.Project{
		ID:          "p1",
		Casebase:    "p1_casebase",
		HasCasebase: true,
		Attributes: []model.AttributeSpec{
			{Name: "price", Type: model.TypeFloat, Similarity: "Interval", Weight: 1,
				Options: &model.AttributeOptions{Min: model.Float(0), Max: model.Float(100)}},
			{Name: "type", Type: model.TypeCategorical, Similarity: "Equal", Weight: 1},
			{Name: "desc", Type: model.TypeString, Similarity: "Semantic SBERT", Weight: 1},
			{Name: "kind", Type: model.TypeOntologyConcept, Similarity: "Path-based", Weight: 1,
				Options: &model.AttributeOptions{Name: "kinds"}},
		},
	}
}

func seedStore(t *testing.T) casestore.Store {
	t.Helper()
	ctx := context.Background()
	store := casestore.NewMemoryStore()
	_, err := store.EnsureIndex(ctx, "p1_casebase", nil)
	require.NoError(t, err)
	docs := []struct {
		id  string
		doc model.Case
	}{
		{"a", model.Case{"id": "x1", "price": 20.0, "type": "flat", "kind": "Z", model.HashField: "h1",
			"desc": map[string]any{"name": "sunny flat", "rep": []any{1.0, 0.0}}}},
		{"b", model.Case{"price": 80.0, "type": "house", "kind": "X",
			"desc": map[string]any{"name": "dark house", "rep": []any{0.0, 1.0}}}},
		{"c", model.Case{"price": 30.0, "type": "flat",
			"desc": map[string]any{"name": "bright flat", "rep": []any{1.0, 0.0}}}},
	}
	for _, d := range docs {
		_, err := store.Put(ctx, "p1_casebase", d.id, d.doc)
		require.NoError(t, err)
	}
	return store
}

func TestRetrieveRanksAndRecommends(t *testing.T) {
	vec := &fakeVectorizer{supported: true}
	grids := &fakeGrids{rows: map[string]map[string]float64{"Y": {"Y": 1, "Z": 0.857}}}
	engine := retrieval.NewEngine(seedStore(t), vec, grids)

	res, err := engine.Retrieve(context.Background(), testProject(), &retrieval.Request{
		Data: []retrieval.Feature{
			{Name: "price", Value: 25.0},
			{Name: "type", Value: "flat"},
			{Name: "desc", Value: "sunny"},
			{Name: "kind", Value: "Y"},
		},
		TopK:        2,
		Explanation: true,
	})
	require.NoError(t, err)
	require.Len(t, res.BestK, 2)
	require.Equal(t, "a", res.BestK[0][model.IDField])
	require.Equal(t, "c", res.BestK[1][model.IDField])
	require.InDelta(t, 3.807, res.BestK[0][model.ScoreField], 1e-9)
	require.InDelta(t, 2.95, res.BestK[1][model.ScoreField], 1e-9)
	require.Equal(t, "sunny flat", res.BestK[0]["desc"])
	require.NotContains(t, res.BestK[0], model.HashField)
	require.NotEmpty(t, res.BestK[0][model.ExplanationField])
	require.Equal(t, []string{"Y"}, grids.keys)
	require.Equal(t, 1, vec.calls)

	rec := res.Recommended
	require.Equal(t, 25.0, rec["price"])
	require.Equal(t, "sunny", rec["desc"])
	require.NotContains(t, rec, model.ScoreField)
	require.NotEqual(t, "x1", rec["id"])
	require.Len(t, rec["id"], 32)
}

func TestRetrieveAggregatesUnknownFeatures(t *testing.T) {
	engine := retrieval.NewEngine(seedStore(t), &fakeVectorizer{supported: true}, nil)
	res, err := engine.Retrieve(context.Background(), testProject(), &retrieval.Request{
		Data: []retrieval.Feature{
			{Name: "price", Value: 25.0},
			{Name: "type", Unknown: true, Strategy: "Mode"},
		},
		TopK: 3,
	})
	require.NoError(t, err)
	require.Len(t, res.BestK, 3)
	require.Equal(t, "flat", res.Recommended["type"])
	require.Equal(t, 25.0, res.Recommended["price"])
}

func TestRetrieveAppliesFilters(t *testing.T) {
	engine := retrieval.NewEngine(seedStore(t), &fakeVectorizer{supported: true}, nil)
	res, err := engine.Retrieve(context.Background(), testProject(), &retrieval.Request{
		Data: []retrieval.Feature{
			{Name: "price", Value: 25.0, FilterType: ">", FilterValue: 50.0},
		},
	})
	require.NoError(t, err)
	require.Len(t, res.BestK, 1)
	require.Equal(t, "b", res.BestK[0][model.IDField])

	_, err = engine.Retrieve(context.Background(), testProject(), &retrieval.Request{
		Data: []retrieval.Feature{{Name: "price", Value: 25.0, FilterType: "~"}},
	})
	require.ErrorIs(t, err, appErr.ErrInvalid)
}

func TestRetrieveDegradesUnsupportedModels(t *testing.T) {
	vec := &fakeVectorizer{}
	engine := retrieval.NewEngine(seedStore(t), vec, nil)
	_, err := engine.Retrieve(context.Background(), testProject(), &retrieval.Request{
		Data: []retrieval.Feature{{Name: "desc", Value: "sunny"}},
	})
	require.NoError(t, err)
	require.Zero(t, vec.calls)
}

func TestRetrieveSkipsUnavailableOntologyRows(t *testing.T) {
	grids := &fakeGrids{}
	engine := retrieval.NewEngine(seedStore(t), &fakeVectorizer{supported: true}, grids)
	res, err := engine.Retrieve(context.Background(), testProject(), &retrieval.Request{
		Data: []retrieval.Feature{{Name: "kind", Value: "Y"}, {Name: "price", Value: 80.0}},
		TopK: 1,
	})
	require.NoError(t, err)
	require.Equal(t, "b", res.BestK[0][model.IDField])
	require.InDelta(t, 1.0, res.BestK[0][model.ScoreField], 1e-9)
}

func TestRetrieveMissingCasebase(t *testing.T) {
	engine := retrieval.NewEngine(casestore.NewMemoryStore(), nil, nil)
	_, err := engine.Retrieve(context.Background(), testProject(), &retrieval.Request{
		Data: []retrieval.Feature{{Name: "price", Value: 25.0}},
	})
	require.ErrorIs(t, err, appErr.ErrNotFound)
}

func TestRetrieveFeedback(t *testing.T) {
	ctx := context.Background()
	store := casestore.NewMemoryStore()
	_, err := store.EnsureIndex(ctx, "p2_casebase", nil)
	require.NoError(t, err)
	_, err = store.Put(ctx, "p2_casebase", "q1", model.Case{"questions": map[string]any{
		"name": []any{"how old"},
		"rep":  []any{map[string]any{"rep": []any{0.0, 1.0}}},
	}})
	require.NoError(t, err)
	p := &model.Project{ID: "p2", Casebase: "p2_casebase", Attributes: []model.AttributeSpec{
		{Name: "questions", Type: model.TypeArray, Similarity: "Array SBERT", Weight: 1},
	}}

	engine := retrieval.NewEngine(store, &fakeVectorizer{supported: true}, nil)
	res, err := engine.Retrieve(ctx, p, &retrieval.Request{
		Data:     []retrieval.Feature{{Name: "questions", Value: []any{"where"}}},
		Feedback: true,
	})
	require.NoError(t, err)
	require.Len(t, res.BestK, 1)
	items, ok := res.BestK[0][model.FeedbackField].([]explain.Item)
	require.True(t, ok)
	require.Len(t, items, 1)
	require.Equal(t, "where", items[0].Value)
	require.InDelta(t, 0.0, items[0].Similarity, 1e-9)
}

func TestExplainCase(t *testing.T) {
	engine := retrieval.NewEngine(seedStore(t), &fakeVectorizer{supported: true}, nil)
	ctx := context.Background()
	res, err := engine.Explain(ctx, testProject(), &retrieval.ExplainRequest{
		CaseID: "c",
		Data:   []retrieval.Feature{{Name: "price", Value: 25.0}, {Name: "type", Value: "flat"}},
	})
	require.NoError(t, err)
	require.True(t, res.Matched)
	require.InDelta(t, 1.95, res.Score, 1e-9)
	require.Len(t, res.Explanation, 2)

	_, err = engine.Explain(ctx, testProject(), &retrieval.ExplainRequest{CaseID: "zz",
		Data: []retrieval.Feature{{Name: "price", Value: 25.0}}})
	require.ErrorIs(t, err, appErr.ErrNotFound)

	_, err = engine.Explain(ctx, testProject(), &retrieval.ExplainRequest{})
	require.ErrorIs(t, err, appErr.ErrInvalid)
}
