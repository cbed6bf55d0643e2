package retrieval_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/RGU-Computing/clood/internal/casestore"
	"github.com/RGU-Computing/clood/internal/model"
	"github.com/RGU-Computing/clood/internal/retrieval"
	"github.com/RGU-Computing/clood/internal/testutil"
)

type storeCase struct {
	name string
	open func(t *testing.T) casestore.Store
}

func stores() []storeCase {
	return []storeCase{
		{name: "memory", open: func(*testing.T) casestore.Store { return casestore.NewMemoryStore() }},
		{name: "sql", open: func(t *testing.T) casestore.Store { return casestore.NewSQLStore(testutil.OpenTestDB(t)) }},
	}
}

func ageProject() *model.Project {
	return &model.Project{
		ID:          "ages",
		Casebase:    "ages_casebase",
		HasCasebase: true,
		Attributes: []model.AttributeSpec{
			{Name: "age", Type: model.TypeInteger, Similarity: "Equal", Weight: 1},
			{Name: "city", Type: model.TypeCategorical, Similarity: "Equal", Weight: 1},
		},
	}
}

func seedAges(t *testing.T, store casestore.Store) {
	t.Helper()
	ctx := context.Background()
	_, err := store.EnsureIndex(ctx, "ages_casebase", nil)
	require.NoError(t, err)
	for _, c := range []struct {
		id  string
		age float64
	}{{"a", 30}, {"b", 31}, {"c", 30}} {
		_, err := store.Put(ctx, "ages_casebase", c.id, model.Case{"age": c.age, "city": "aberdeen"})
		require.NoError(t, err)
	}
}

func ids(res *retrieval.Result) []any {
	out := make([]any, len(res.BestK))
	for i, c := range res.BestK {
		out[i] = c[model.IDField]
	}
	return out
}

func TestExactIntegerRetrieval(t *testing.T) {
	for _, sc := range stores() {
		t.Run(sc.name, func(t *testing.T) {
			store := sc.open(t)
			seedAges(t, store)
			one := 1.0
			res, err := retrieval.NewEngine(store, nil, nil).Retrieve(context.Background(), ageProject(), &retrieval.Request{
				Data: []retrieval.Feature{{Name: "age", Value: 30.0, Weight: &one}},
				TopK: 2,
			})
			require.NoError(t, err)
			require.Equal(t, []any{"a", "c"}, ids(res))
			for _, c := range res.BestK {
				require.EqualValues(t, 30, c["age"])
			}
			require.Equal(t, res.BestK[0][model.ScoreField], res.BestK[1][model.ScoreField])
			require.InDelta(t, 1.0, res.BestK[0][model.ScoreField], 1e-9)
		})
	}
}

func TestZeroWeightsEqualMatchAll(t *testing.T) {
	zero := 0.0
	for _, sc := range stores() {
		t.Run(sc.name, func(t *testing.T) {
			store := sc.open(t)
			seedAges(t, store)
			engine := retrieval.NewEngine(store, nil, nil)
			ctx := context.Background()

			matchAll, err := engine.Retrieve(ctx, ageProject(), &retrieval.Request{
				Data: []retrieval.Feature{{Name: "age"}},
				TopK: 2,
			})
			require.NoError(t, err)
			require.Equal(t, []any{"a", "b"}, ids(matchAll))

			cases := []struct {
				name string
				data []retrieval.Feature
			}{
				{name: "zero weights", data: []retrieval.Feature{
					{Name: "age", Value: 31.0, Weight: &zero},
					{Name: "city", Value: "aberdeen", Weight: &zero},
				}},
				{name: "none similarity", data: []retrieval.Feature{
					{Name: "age", Value: 31.0, Similarity: "None"},
				}},
				{name: "no values", data: []retrieval.Feature{{Name: "age"}, {Name: "city", Value: ""}}},
			}
			for _, tc := range cases {
				t.Run(tc.name, func(t *testing.T) {
					res, err := engine.Retrieve(ctx, ageProject(), &retrieval.Request{Data: tc.data, TopK: 2})
					require.NoError(t, err)
					require.Equal(t, ids(matchAll), ids(res))
					for i := range res.BestK {
						require.Equal(t, matchAll.BestK[i][model.ScoreField], res.BestK[i][model.ScoreField])
					}
				})
			}
		})
	}
}
