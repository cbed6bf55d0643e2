package repo_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/RGU-Computing/clood/internal/model"
	appErr "github.com/RGU-Computing/clood/internal/pkg/errors"
	"github.com/RGU-Computing/clood/internal/repo"
	"github.com/RGU-Computing/clood/internal/testutil"
)

func TestProjectRepoCRUD(t *testing.T) {
	db := testutil.OpenTestDB(t)
	projects := repo.NewProjectRepo(db)
	ctx := context.Background()

	p := &model.Project{
		ID:       "p1",
		Name:     "houses",
		Casebase: model.CasebaseName("p1"),
		Attributes: []model.AttributeSpec{
			{Name: "price", Type: model.TypeFloat, Similarity: "INRECA Less", Weight: 2, Options: &model.AttributeOptions{Max: model.Float(100)}},
		},
		Ctime: 1,
		Mtime: 1,
	}
	require.NoError(t, projects.Create(ctx, p))

	dup := *p
	dup.ID = "p2"
	require.ErrorIs(t, projects.Create(ctx, &dup), appErr.ErrConflict)

	got, err := projects.GetByID(ctx, "p1")
	require.NoError(t, err)
	require.Equal(t, "p1_casebase", got.Casebase)
	require.Len(t, got.Attributes, 1)
	require.Equal(t, 100.0, *got.Attributes[0].Options.Max)

	byName, err := projects.GetByName(ctx, "houses")
	require.NoError(t, err)
	require.Equal(t, "p1", byName.ID)

	got.HasCasebase = true
	got.Description = "updated"
	require.NoError(t, projects.Update(ctx, got))

	withCB, err := projects.ListWithCasebase(ctx)
	require.NoError(t, err)
	require.Len(t, withCB, 1)
	require.Equal(t, "updated", withCB[0].Description)

	require.NoError(t, projects.Delete(ctx, "p1"))
	_, err = projects.GetByID(ctx, "p1")
	require.ErrorIs(t, err, appErr.ErrNotFound)
	require.ErrorIs(t, projects.Delete(ctx, "p1"), appErr.ErrNotFound)

	all, err := projects.List(ctx)
	require.NoError(t, err)
	require.Empty(t, all)
}

func TestTokenRepo(t *testing.T) {
	db := testutil.OpenTestDB(t)
	tokens := repo.NewTokenRepo(db)
	ctx := context.Background()

	require.NoError(t, tokens.Create(ctx, &model.Token{ID: "t1", Name: "ci", Expiry: 100, Token: "abc", Ctime: 1}))
	require.NoError(t, tokens.Create(ctx, &model.Token{ID: "t2", Name: "ops", Token: "def", Ctime: 2}))

	list, err := tokens.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, "t1", list[0].ID)

	got, err := tokens.GetByID(ctx, "t2")
	require.NoError(t, err)
	require.Equal(t, "def", got.Token)

	require.NoError(t, tokens.Delete(ctx, "t1"))
	require.ErrorIs(t, tokens.Delete(ctx, "t1"), appErr.ErrNotFound)
}

func TestConfigRepo(t *testing.T) {
	db := testutil.OpenTestDB(t)
	configs := repo.NewConfigRepo(db)
	ctx := context.Background()

	_, err := configs.Get(ctx)
	require.ErrorIs(t, err, appErr.ErrNotFound)

	cfg := model.DefaultGlobalConfig()
	require.NoError(t, configs.Save(ctx, cfg, 1))
	cfg.AttributeOptions = cfg.AttributeOptions[:1]
	require.NoError(t, configs.Save(ctx, cfg, 2))

	got, err := configs.Get(ctx)
	require.NoError(t, err)
	require.Len(t, got.AttributeOptions, 1)
	require.Equal(t, model.TypeString, got.AttributeOptions[0].Type)
}

func TestGridRepo(t *testing.T) {
	db := testutil.OpenTestDB(t)
	grids := repo.NewGridRepo(db)
	ctx := context.Background()

	require.NoError(t, grids.Replace(ctx, "p1_ontology_animals", map[string]map[string]float64{
		"cat": {"cat": 1, "dog": 0.5},
		"dog": {"dog": 1, "cat": 0.5},
	}))
	require.NoError(t, grids.Replace(ctx, "p1_ontology_food", map[string]map[string]float64{"apple": {"apple": 1}}))
	require.NoError(t, grids.Replace(ctx, "p10_ontology_food", map[string]map[string]float64{"pear": {"pear": 1}}))

	row, err := grids.GetRow(ctx, "p1_ontology_animals", "dog")
	require.NoError(t, err)
	require.Equal(t, 0.5, row["cat"])

	_, err = grids.GetRow(ctx, "p1_ontology_animals", "fish")
	require.ErrorIs(t, err, appErr.ErrNotFound)

	require.NoError(t, grids.PutRow(ctx, "p1_ontology_animals", "fish", map[string]float64{"fish": 1}))
	count, err := grids.Count(ctx, "p1_ontology_animals")
	require.NoError(t, err)
	require.Equal(t, 3, count)

	// Replace drops rows that are not in the new grid.
	require.NoError(t, grids.Replace(ctx, "p1_ontology_animals", map[string]map[string]float64{"cat": {"cat": 1}}))
	count, err = grids.Count(ctx, "p1_ontology_animals")
	require.NoError(t, err)
	require.Equal(t, 1, count)

	deleted, err := grids.DeleteByPrefix(ctx, "p1_ontology_")
	require.NoError(t, err)
	require.Equal(t, int64(2), deleted)
	count, err = grids.Count(ctx, "p10_ontology_food")
	require.NoError(t, err)
	require.Equal(t, 1, count)
}

func TestEmbeddingCacheRepo(t *testing.T) {
	db := testutil.OpenTestDB(t)
	cache := repo.NewEmbeddingCacheRepo(db)
	ctx := context.Background()

	_, ok, err := cache.Get(ctx, "SBERT", "SEMANTIC_SIMILARITY", "h1")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, cache.Save(ctx, &model.EmbeddingCache{
		ModelName: "SBERT", TaskType: "SEMANTIC_SIMILARITY", ContentHash: "h1",
		Embedding: []float32{0.1, 0.2}, Ctime: 10,
	}))
	values, ok, err := cache.Get(ctx, "SBERT", "SEMANTIC_SIMILARITY", "h1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []float32{0.1, 0.2}, values)

	deleted, err := cache.DeleteBefore(ctx, 11)
	require.NoError(t, err)
	require.Equal(t, int64(1), deleted)
}
