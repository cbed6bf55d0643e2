package casestore_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/RGU-Computing/clood/internal/casestore"
	"github.com/RGU-Computing/clood/internal/expr"
	"github.com/RGU-Computing/clood/internal/localsim"
	"github.com/RGU-Computing/clood/internal/model"
	"github.com/RGU-Computing/clood/internal/similarity"
)

func priceDocs() []casestore.Doc {
	return []casestore.Doc{
		{ID: "a", Source: model.Case{"price": 80.0, "type": "flat"}},
		{ID: "b", Source: model.Case{"price": 40.0, "type": "house"}},
		{ID: "c", Source: model.Case{"price": 40.0, "type": "flat"}},
		{ID: "d", Source: model.Case{"type": "flat"}},
	}
}

func scorerList(s ...*expr.Scorer) []*expr.Scorer {
	return s
}

func TestExecuteOrdersByScoreThenInsertion(t *testing.T) {
	scorer, err := localsim.Build("price", 50.0, 1, similarity.Inreca{Jump: 1, Min: 0, Max: 100}, localsim.Inputs{})
	require.NoError(t, err)

	hits := casestore.Execute(priceDocs(), &casestore.Query{Scorers: scorerList(scorer), Size: 10})
	require.Len(t, hits, 3)
	require.Equal(t, "b", hits[0].ID)
	require.Equal(t, "c", hits[1].ID)
	require.Equal(t, "a", hits[2].ID)
	require.InDelta(t, 1.0, hits[0].Score, 1e-9)
	require.InDelta(t, 0.4, hits[2].Score, 1e-9)
}

func TestExecuteAppliesFiltersAndSize(t *testing.T) {
	scorer, err := localsim.Build("price", 50.0, 1, similarity.Inreca{Jump: 1, Min: 0, Max: 100}, localsim.Inputs{})
	require.NoError(t, err)

	hits := casestore.Execute(priceDocs(), &casestore.Query{
		Scorers: scorerList(scorer),
		Filters: []casestore.Filter{{Field: "type", Op: "=", Value: "flat"}},
		Size:    1,
	})
	require.Len(t, hits, 1)
	require.Equal(t, "c", hits[0].ID)

	hits = casestore.Execute(priceDocs(), &casestore.Query{
		Scorers: scorerList(scorer),
		Filters: []casestore.Filter{{Field: "price", Op: ">", Value: 50}},
		Size:    5,
	})
	require.Len(t, hits, 1)
	require.Equal(t, "a", hits[0].ID)
}

func TestExecuteWithoutScorersMatchesAll(t *testing.T) {
	hits := casestore.Execute(priceDocs(), &casestore.Query{Size: 3, Explain: true})
	require.Len(t, hits, 3)
	for _, h := range hits {
		require.Equal(t, 1.0, h.Score)
		require.NotNil(t, h.Explanation)
	}
	require.Equal(t, "a", hits[0].ID)
}

func TestExecuteExplainSumsScorers(t *testing.T) {
	price, err := localsim.Build("price", 50.0, 1, similarity.Inreca{Jump: 1, Min: 0, Max: 100}, localsim.Inputs{})
	require.NoError(t, err)
	typ, err := localsim.Build("type", "flat", 2, similarity.Equal{}, localsim.Inputs{})
	require.NoError(t, err)

	hits := casestore.Execute(priceDocs(), &casestore.Query{Scorers: scorerList(price, typ), Size: 5, Explain: true})
	require.Equal(t, "c", hits[0].ID)
	require.InDelta(t, 3.0, hits[0].Score, 1e-9)
	require.Equal(t, "sum of:", hits[0].Explanation.Description)
	require.Len(t, hits[0].Explanation.Details, 2)

	// d has no price but still matches on type.
	ids := make([]string, 0, len(hits))
	for _, h := range hits {
		ids = append(ids, h.ID)
	}
	require.Contains(t, ids, "d")
}
