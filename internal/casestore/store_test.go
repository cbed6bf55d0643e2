package casestore_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/RGU-Computing/clood/internal/casestore"
	"github.com/RGU-Computing/clood/internal/config"
	"github.com/RGU-Computing/clood/internal/localsim"
	"github.com/RGU-Computing/clood/internal/model"
	appErr "github.com/RGU-Computing/clood/internal/pkg/errors"
	"github.com/RGU-Computing/clood/internal/similarity"
	"github.com/RGU-Computing/clood/internal/testutil"
)

func exerciseStore(t *testing.T, store casestore.Store) {
	ctx := context.Background()
	const index = "p1_casebase"

	exists, err := store.IndexExists(ctx, index)
	require.NoError(t, err)
	require.False(t, exists)

	created, err := store.EnsureIndex(ctx, index, map[string]any{"properties": map[string]any{}})
	require.NoError(t, err)
	require.True(t, created)
	created, err = store.EnsureIndex(ctx, index, nil)
	require.NoError(t, err)
	require.False(t, created)

	id1, err := store.Put(ctx, index, "", model.Case{"price": 10.0, model.HashField: "h1", "when": "2020-01-01"})
	require.NoError(t, err)
	require.NotEmpty(t, id1)
	_, err = store.Put(ctx, index, "fixed", model.Case{"price": 30.0, model.HashField: "h2", "when": "2021-06-01"})
	require.NoError(t, err)
	_, err = store.Put(ctx, index, "third", model.Case{"price": 20.0, model.HashField: "h1"})
	require.NoError(t, err)

	got, err := store.Get(ctx, index, "fixed")
	require.NoError(t, err)
	require.Equal(t, 30.0, got["price"])

	_, err = store.Get(ctx, index, "missing")
	require.ErrorIs(t, err, appErr.ErrNotFound)

	count, err := store.Count(ctx, index)
	require.NoError(t, err)
	require.Equal(t, int64(3), count)

	docs, total, err := store.List(ctx, index, 1, 1)
	require.NoError(t, err)
	require.Equal(t, int64(3), total)
	require.Len(t, docs, 1)
	require.Equal(t, "fixed", docs[0].ID)

	ids, err := store.FindByHash(ctx, index, "h1")
	require.NoError(t, err)
	require.ElementsMatch(t, []string{id1, "third"}, ids)

	rng, err := store.FieldRange(ctx, index, "price", false)
	require.NoError(t, err)
	require.Equal(t, int64(3), rng.Count)
	require.Equal(t, 10.0, rng.Min)
	require.Equal(t, 30.0, rng.Max)

	dates, err := store.FieldRange(ctx, index, "when", true)
	require.NoError(t, err)
	require.Equal(t, int64(2), dates.Count)
	require.Less(t, dates.Min, dates.Max)

	// Replacing keeps the original position.
	_, err = store.Put(ctx, index, "fixed", model.Case{"price": 25.0, model.HashField: "h3"})
	require.NoError(t, err)
	docs, _, err = store.List(ctx, index, 0, 0)
	require.NoError(t, err)
	require.Equal(t, "fixed", docs[1].ID)
	require.Equal(t, 25.0, docs[1].Source["price"])

	scorer, err := localsim.Build("price", 22.0, 1, similarity.Interval{Min: 0, Max: 100}, localsim.Inputs{})
	require.NoError(t, err)
	res, err := store.Search(ctx, index, &casestore.Query{Scorers: scorerList(scorer), Size: 2})
	require.NoError(t, err)
	require.Len(t, res.Hits, 2)
	require.Equal(t, "third", res.Hits[0].ID)
	require.Equal(t, "fixed", res.Hits[1].ID)

	hit, err := store.Explain(ctx, index, "fixed", &casestore.Query{Scorers: scorerList(scorer)})
	require.NoError(t, err)
	require.NotNil(t, hit)
	require.InDelta(t, 0.97, hit.Score, 1e-9)
	require.Equal(t, "sum of:", hit.Explanation.Description)
	hit, err = store.Explain(ctx, index, "fixed", &casestore.Query{
		Scorers: scorerList(scorer),
		Filters: []casestore.Filter{{Field: "price", Op: "<", Value: 21.0}},
	})
	require.NoError(t, err)
	require.Nil(t, hit)
	_, err = store.Explain(ctx, index, "missing", &casestore.Query{})
	require.ErrorIs(t, err, appErr.ErrNotFound)

	require.NoError(t, store.Delete(ctx, index, "third"))
	require.ErrorIs(t, store.Delete(ctx, index, "third"), appErr.ErrNotFound)

	require.NoError(t, store.DeleteIndex(ctx, index))
	exists, err = store.IndexExists(ctx, index)
	require.NoError(t, err)
	require.False(t, exists)
	_, err = store.Count(ctx, index)
	require.ErrorIs(t, err, appErr.ErrNotFound)
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, casestore.NewMemoryStore())
}

func TestSQLStore(t *testing.T) {
	exerciseStore(t, casestore.NewSQLStore(testutil.OpenTestDB(t)))
}

func TestSQLStorePostgres(t *testing.T) {
	db := testutil.OpenPostgresTestDB(t)
	_, _ = db.Exec("DELETE FROM casebase_docs")
	_, _ = db.Exec("DELETE FROM casebase_indexes")
	exerciseStore(t, casestore.NewSQLStore(db))
}

func TestNewUsesRegistry(t *testing.T) {
	store, err := casestore.New(config.CasebaseStoreConfig{Type: "memory"}, nil)
	require.NoError(t, err)
	require.IsType(t, &casestore.MemoryStore{}, store)

	_, err = casestore.New(config.CasebaseStoreConfig{Type: "sql"}, nil)
	require.Error(t, err)

	_, err = casestore.New(config.CasebaseStoreConfig{Type: "bogus"}, nil)
	require.Error(t, err)
}
