package service_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/RGU-Computing/clood/internal/casestore"
	"github.com/RGU-Computing/clood/internal/config"
	"github.com/RGU-Computing/clood/internal/model"
	appErr "github.com/RGU-Computing/clood/internal/pkg/errors"
	"github.com/RGU-Computing/clood/internal/pkg/password"
	"github.com/RGU-Computing/clood/internal/repo"
	"github.com/RGU-Computing/clood/internal/retrieval"
	"github.com/RGU-Computing/clood/internal/reuse"
	"github.com/RGU-Computing/clood/internal/service"
	"github.com/RGU-Computing/clood/internal/testutil"
)

type stubVectorizer struct {
	dim int
}

func (stubVectorizer) Supports(em model.EmbeddingModel) bool { return em == model.ModelSBERT }

func (v stubVectorizer) Dimension(em model.EmbeddingModel) int {
	if v.dim > 0 {
		return v.dim
	}
	return em.DefaultDimension()
}

func (v stubVectorizer) Embed(_ context.Context, em model.EmbeddingModel, text string) ([]float32, error) {
	vec := make([]float32, v.Dimension(em))
	vec[len(text)%len(vec)] = 1
	return vec, nil
}

func (v stubVectorizer) EmbedMany(ctx context.Context, em model.EmbeddingModel, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i], _ = v.Embed(ctx, em, t)
	}
	return out, nil
}

type stubGrids struct {
	mu       sync.Mutex
	preloads []model.OntologyDescriptor
	deleted  []string
	exists   map[string]bool
}

func (g *stubGrids) Preload(_ context.Context, d model.OntologyDescriptor) (int, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.preloads = append(g.preloads, d)
	if g.exists == nil {
		g.exists = map[string]bool{}
	}
	g.exists[d.ID] = true
	return 3, nil
}

func (g *stubGrids) Query(context.Context, string, string) (map[string]float64, error) {
	return nil, appErr.ErrNotFound
}

func (g *stubGrids) QueryOrBuild(context.Context, model.OntologyDescriptor, string) (map[string]float64, error) {
	return map[string]float64{}, nil
}

func (g *stubGrids) Status(_ context.Context, id string) (model.GridStatus, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.exists[id] {
		return model.GridStatus{Exists: true, Count: 3}, nil
	}
	return model.GridStatus{}, nil
}

func (g *stubGrids) Delete(_ context.Context, id string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.deleted = append(g.deleted, id)
	return nil
}

func (g *stubGrids) DeleteByPrefix(context.Context, string) error { return nil }

type fixture struct {
	projects *service.ProjectService
	casebase *service.CasebaseService
	options  *service.OptionService
	cbr      *service.CBRService
	configs  *service.ConfigService
	tokens   *service.TokenService
	store    casestore.Store
	grids    *stubGrids
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWith(t, stubVectorizer{})
}

func newFixtureWith(t *testing.T, vec stubVectorizer) *fixture {
	t.Helper()
	db := testutil.OpenTestDB(t)
	store := casestore.NewMemoryStore()
	grids := &stubGrids{}
	projectRepo := repo.NewProjectRepo(db)
	ont := service.NewOntologyService(grids)
	projects := service.NewProjectService(projectRepo, store, ont, vec.Dimension)
	options := service.NewOptionService(projects, projectRepo, store)
	casebase := service.NewCasebaseService(projects, store, vec, ont, options)
	engine := retrieval.NewEngine(store, vec, grids)
	return &fixture{
		projects: projects,
		casebase: casebase,
		options:  options,
		cbr:      service.NewCBRService(projects, casebase, engine, nil),
		configs:  service.NewConfigService(repo.NewConfigRepo(db)),
		tokens:   service.NewTokenService(repo.NewTokenRepo(db), []byte("secret")),
		store:    store,
		grids:    grids,
	}
}

func carProject(t *testing.T, f *fixture, retainDuplicates bool) *model.Project {
	t.Helper()
	p, err := f.projects.Create(context.Background(), service.CreateProjectInput{
		Name:                 "cars-" + time.Now().Format("150405.000000000"),
		RetainDuplicateCases: retainDuplicates,
		Attributes: []model.AttributeSpec{
			{Name: "price", Type: model.TypeFloat, Similarity: "Interval", Weight: 1,
				Options: &model.AttributeOptions{Min: model.Float(0), Max: model.Float(100), Interval: model.Float(100)}},
			{Name: "colour", Type: model.TypeCategorical, Similarity: "EqualIgnoreCase", Weight: 1},
			{Name: "notes", Type: model.TypeString, Similarity: "Semantic SBERT", Weight: 1},
			{Name: "kind", Type: model.TypeOntologyConcept, Similarity: "Feature-based", Weight: 1,
				Options: &model.AttributeOptions{Name: "vehicles", Sources: []model.OntologySource{{Source: "file:///v.ttl"}}}},
		},
	})
	require.NoError(t, err)
	return p
}

func TestProjectLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.projects.Create(ctx, service.CreateProjectInput{Name: " "})
	require.ErrorIs(t, err, appErr.ErrInvalid)

	p := carProject(t, f, false)
	require.Len(t, p.ID, 32)
	require.Equal(t, p.ID+"_casebase", p.Casebase)
	require.False(t, p.HasCasebase)

	_, err = f.projects.Create(ctx, service.CreateProjectInput{Name: p.Name})
	require.ErrorIs(t, err, appErr.ErrConflict)

	created, err := f.projects.CreateIndex(ctx, p.ID)
	require.NoError(t, err)
	require.True(t, created)
	got, err := f.projects.Get(ctx, p.ID)
	require.NoError(t, err)
	require.True(t, got.HasCasebase)

	attrs := append([]model.AttributeSpec(nil), got.Attributes...)
	attrs[3].Options = &model.AttributeOptions{Name: "vehicles", Root: "http://example.org/Vehicle"}
	desc := "updated"
	updated, err := f.projects.Update(ctx, p.ID, service.UpdateProjectInput{Description: &desc, Attributes: &attrs})
	require.NoError(t, err)
	require.Equal(t, "updated", updated.Description)
	require.Len(t, f.grids.preloads, 1)
	require.Equal(t, p.ID+"_ontology_vehicles", f.grids.preloads[0].ID)
	require.Equal(t, model.OntologyMethodSAN, f.grids.preloads[0].Method)

	require.NoError(t, f.projects.Delete(ctx, p.ID))
	require.Equal(t, []string{p.ID + "_ontology_vehicles", p.ID + "_ontology_vehicles_wup"}, f.grids.deleted)
	exists, err := f.store.IndexExists(ctx, p.Casebase)
	require.NoError(t, err)
	require.False(t, exists)
	_, err = f.projects.Get(ctx, p.ID)
	require.ErrorIs(t, err, appErr.ErrNotFound)
}

func TestRetainNormalisesAndRejectsDuplicates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := carProject(t, f, false)

	res, err := f.cbr.Retain(ctx, &service.RetainRequest{ProjectID: p.ID, Data: model.Case{
		"price": 20.0, "colour": "RED", "notes": "fast car", model.ScoreField: 0.4,
	}})
	require.NoError(t, err)
	require.Equal(t, "created", res.Result)

	stored, err := f.store.Get(ctx, p.Casebase, res.ID)
	require.NoError(t, err)
	require.Equal(t, "red", stored["colour"])
	require.NotContains(t, stored, model.ScoreField)
	notes := stored["notes"].(map[string]any)
	require.Equal(t, "fast car", notes["name"])
	require.Len(t, notes["rep"], model.ModelSBERT.DefaultDimension())
	require.Len(t, stored[model.HashField], 64)

	got, err := f.projects.Get(ctx, p.ID)
	require.NoError(t, err)
	require.True(t, got.HasCasebase)
	require.Len(t, f.grids.preloads, 1)

	_, err = f.cbr.Retain(ctx, &service.RetainRequest{ProjectID: p.ID, Data: model.Case{
		"price": 20.0, "colour": "Red", "notes": "fast car",
	}})
	require.ErrorIs(t, err, appErr.ErrConflict)

	res, err = f.cbr.Retain(ctx, &service.RetainRequest{ProjectID: p.ID, Data: model.Case{
		model.StoreIDField: "fixed", "price": 30.0,
	}})
	require.NoError(t, err)
	require.Equal(t, "fixed", res.ID)
	res, err = f.cbr.Retain(ctx, &service.RetainRequest{ProjectID: p.ID, Data: model.Case{
		model.StoreIDField: "fixed", "price": 31.0,
	}})
	require.NoError(t, err)
	require.Equal(t, "updated", res.Result)
}

func TestRetainUsesConfiguredDimension(t *testing.T) {
	f := newFixtureWith(t, stubVectorizer{dim: 16})
	ctx := context.Background()
	p := carProject(t, f, false)

	res, err := f.cbr.Retain(ctx, &service.RetainRequest{ProjectID: p.ID, Data: model.Case{"notes": "quiet hatchback"}})
	require.NoError(t, err)
	stored, err := f.store.Get(ctx, p.Casebase, res.ID)
	require.NoError(t, err)
	require.Len(t, stored["notes"].(map[string]any)["rep"], 16)

	_, err = f.cbr.Retain(ctx, &service.RetainRequest{ProjectID: p.ID, Data: model.Case{
		"notes": map[string]any{"name": "short", "rep": make([]any, model.ModelSBERT.DefaultDimension())},
	}})
	require.ErrorIs(t, err, appErr.ErrInvalid)
}

func TestConcurrentRetainStoresOneCopy(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := carProject(t, f, false)
	_, err := f.projects.CreateIndex(ctx, p.ID)
	require.NoError(t, err)
	p, err = f.projects.Get(ctx, p.ID)
	require.NoError(t, err)

	const callers = 8
	errs := make([]error, callers)
	var wg sync.WaitGroup
	for i := range errs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = f.casebase.Retain(ctx, p, model.Case{"price": 42.0, "colour": "blue"})
		}()
	}
	wg.Wait()

	created := 0
	for _, err := range errs {
		if err == nil {
			created++
			continue
		}
		require.ErrorIs(t, err, appErr.ErrConflict)
	}
	require.Equal(t, 1, created)
	count, err := f.store.Count(ctx, p.Casebase)
	require.NoError(t, err)
	require.EqualValues(t, 1, count)
}

func TestHashIgnoresKeyOrderAndPreviousHash(t *testing.T) {
	a, err := service.Hash(model.Case{"a": 1.0, "b": "x"})
	require.NoError(t, err)
	b, err := service.Hash(model.Case{"b": "x", "a": 1.0, model.HashField: "old"})
	require.NoError(t, err)
	require.Equal(t, a, b)
	c, err := service.Hash(model.Case{"a": 2.0, "b": "x"})
	require.NoError(t, err)
	require.NotEqual(t, a, c)
}

func TestBulkSaveRefreshesOptions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := carProject(t, f, false)

	res, err := f.casebase.BulkSave(ctx, p.ID, []model.Case{
		{"price": 10.0, "colour": "red"},
		{"price": 40.0, "colour": "blue"},
		{"price": 10.0, "colour": "RED"},
		{"price": 25.0, "colour": "green"},
	})
	require.NoError(t, err)
	require.Equal(t, 3, res.CasesAdded)
	require.Len(t, res.Errors, 1)
	require.Equal(t, 2, res.Errors[0].Index)

	got, err := f.projects.Get(ctx, p.ID)
	require.NoError(t, err)
	require.True(t, got.HasCasebase)
	price := got.Attribute("price").Options
	require.Equal(t, 10.0, *price.Min)
	require.Equal(t, 40.0, *price.Max)
	require.Equal(t, 30.0, *price.Interval)
	require.Nil(t, price.NScale)

	page, err := f.casebase.List(ctx, p.ID, 1, 2)
	require.NoError(t, err)
	require.Equal(t, int64(3), page.Total)
	require.Len(t, page.Cases, 2)
	require.Equal(t, "blue", page.Cases[0]["colour"])
	require.NotEmpty(t, page.Cases[0][model.IDField])
	require.NotContains(t, page.Cases[0], model.HashField)

	// Second batch collides with the casebase.
	res, err = f.casebase.BulkSave(ctx, p.ID, []model.Case{{"price": 40.0, "colour": "blue"}})
	require.NoError(t, err)
	require.Zero(t, res.CasesAdded)
}

func TestOptionRefreshRules(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p, err := f.projects.Create(ctx, service.CreateProjectInput{Name: "dates", Attributes: []model.AttributeSpec{
		{Name: "n", Type: model.TypeInteger, Similarity: "Nearest Number", Weight: 1,
			Options: &model.AttributeOptions{Min: model.Float(0), Max: model.Float(0), NScale: model.Float(5)}},
		{Name: "when", Type: model.TypeDate, Similarity: "Nearest Date", Weight: 1,
			Options: &model.AttributeOptions{DScale: model.String("365d")}},
	}})
	require.NoError(t, err)
	_, err = f.casebase.BulkSave(ctx, p.ID, []model.Case{
		{"n": 7.0, "when": "2020-01-01"},
		{"n": 7.0, "when": "2020-03-01"},
	})
	require.NoError(t, err)

	got, err := f.projects.Get(ctx, p.ID)
	require.NoError(t, err)
	n := got.Attribute("n").Options
	require.Equal(t, 7.0, *n.Min)
	require.InDelta(t, 7.001, *n.Max, 1e-9)
	require.Equal(t, 1.0, *n.NScale)
	require.Equal(t, 0.9, *n.NDecay)
	when := got.Attribute("when").Options
	require.Equal(t, "6d", *when.DScale)
	require.Equal(t, 0.9, *when.DDecay)
	require.Nil(t, when.Min)

	refreshed, err := f.options.RefreshAll(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, refreshed)
}

func TestCaseUpdateAndDelete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := carProject(t, f, false)
	res, err := f.casebase.BulkSave(ctx, p.ID, []model.Case{
		{model.StoreIDField: "a", "price": 10.0, "colour": "red"},
		{model.StoreIDField: "b", "price": 20.0, "colour": "red"},
	})
	require.NoError(t, err)
	require.Equal(t, 2, res.CasesAdded)

	updated, err := f.casebase.UpdateCase(ctx, p.ID, "a", model.Case{"colour": "BLUE"})
	require.NoError(t, err)
	require.Equal(t, "blue", updated["colour"])
	require.Equal(t, 10.0, updated["price"])
	require.Equal(t, "a", updated[model.IDField])

	_, err = f.casebase.UpdateCase(ctx, p.ID, "b", model.Case{"price": 10.0, "colour": "blue"})
	require.ErrorIs(t, err, appErr.ErrConflict)

	_, err = f.casebase.Get(ctx, p.ID, "zz")
	require.ErrorIs(t, err, appErr.ErrNotFound)
	e, ok := appErr.AsError(err)
	require.True(t, ok)
	require.Equal(t, appErr.KindCaseNotFound, e.Kind)

	require.NoError(t, f.casebase.DeleteCase(ctx, p.ID, "b"))
	require.ErrorIs(t, f.casebase.DeleteCase(ctx, p.ID, "b"), appErr.ErrNotFound)

	require.NoError(t, f.casebase.DeleteCasebase(ctx, p.ID))
	_, err = f.casebase.List(ctx, p.ID, 0, 10)
	e, ok = appErr.AsError(err)
	require.True(t, ok)
	require.Equal(t, appErr.KindCasebaseNotFound, e.Kind)
	got, err := f.projects.Get(ctx, p.ID)
	require.NoError(t, err)
	require.False(t, got.HasCasebase)
}

func TestRetrieveThroughService(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := carProject(t, f, false)
	_, err := f.casebase.BulkSave(ctx, p.ID, []model.Case{
		{"price": 10.0, "colour": "red", "notes": "fast car"},
		{"price": 90.0, "colour": "blue", "notes": "slow van"},
	})
	require.NoError(t, err)

	res, err := f.cbr.Retrieve(ctx, &retrieval.Request{
		ProjectID: p.ID,
		Data: []retrieval.Feature{
			{Name: "colour", Value: "red"},
			{Name: "notes", Value: "fast car"},
		},
	})
	require.NoError(t, err)
	require.Len(t, res.BestK, 2)
	require.Equal(t, "fast car", res.BestK[0]["notes"])

	_, err = f.cbr.Retrieve(ctx, &retrieval.Request{})
	require.ErrorIs(t, err, appErr.ErrInvalid)
}

func TestReuseAndRevise(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.cbr.Reuse(ctx, &reuse.Request{ReuseType: "_isee"})
	require.ErrorIs(t, err, appErr.ErrUnavailable)
	require.Empty(t, f.cbr.Revise(ctx))
}

func TestConfigDefaultsAndRebuild(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	cfg, err := f.configs.Get(ctx)
	require.NoError(t, err)
	require.Equal(t, model.DefaultGlobalConfig(), cfg)

	cfg.AttributeOptions = cfg.AttributeOptions[:1]
	require.NoError(t, f.configs.Update(ctx, cfg))
	got, err := f.configs.Get(ctx)
	require.NoError(t, err)
	require.Len(t, got.AttributeOptions, 1)

	rebuilt, err := f.configs.Rebuild(ctx)
	require.NoError(t, err)
	require.Equal(t, model.DefaultGlobalConfig(), rebuilt)
}

func TestTokensAndLogin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.tokens.Create(ctx, service.CreateTokenInput{})
	require.ErrorIs(t, err, appErr.ErrInvalid)
	tok, err := f.tokens.Create(ctx, service.CreateTokenInput{Name: "ci", Expiry: time.Now().Add(time.Hour).Unix()})
	require.NoError(t, err)
	list, err := f.tokens.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)

	hash, err := password.Hash("pw")
	require.NoError(t, err)
	auth := service.NewAuthService(config.AdminConfig{Username: "admin", PasswordHash: hash}, []byte("secret"), time.Hour)
	claims, err := auth.Verify(ctx, tok.Token)
	require.NoError(t, err)
	require.Equal(t, "ci", claims.Name)

	session, err := auth.Login(ctx, "admin", "pw")
	require.NoError(t, err)
	claims, err = auth.Verify(ctx, session)
	require.NoError(t, err)
	require.Equal(t, "admin", claims.Subject)

	_, err = auth.Login(ctx, "admin", "nope")
	require.ErrorIs(t, err, appErr.ErrUnauthorized)

	expired, err := f.tokens.Create(ctx, service.CreateTokenInput{Name: "old", Expiry: time.Now().Add(-time.Hour).Unix()})
	require.NoError(t, err)
	_, err = auth.Verify(ctx, expired.Token)
	require.ErrorIs(t, err, appErr.ErrUnauthorized)

	require.NoError(t, f.tokens.Delete(ctx, tok.ID))
	require.ErrorIs(t, f.tokens.Delete(ctx, tok.ID), appErr.ErrNotFound)
}
