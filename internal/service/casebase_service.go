package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/RGU-Computing/clood/internal/casestore"
	"github.com/RGU-Computing/clood/internal/expr"
	"github.com/RGU-Computing/clood/internal/lock"
	"github.com/RGU-Computing/clood/internal/model"
	appErr "github.com/RGU-Computing/clood/internal/pkg/errors"
	"github.com/RGU-Computing/clood/internal/retrieval"
	"github.com/RGU-Computing/clood/internal/schema"
	"github.com/RGU-Computing/clood/internal/similarity"
)

const (
	bulkParallelism = 4
	defaultPageSize = 100

	caseLockPrefix = "clood:case:"
	caseLockTTL    = 30 * time.Second
)

// reservedKeys are computed by the engine and never stored from input.
var reservedKeys = []string{
	model.IDField, model.ScoreField, model.HashField,
	model.ExplanationField, model.FeedbackField, model.StoreIDField,
}

type CasebaseService struct {
	projects *ProjectService
	store    casestore.Store
	vec      retrieval.Vectorizer
	ontology *OntologyService
	options  *OptionService
	locker   lock.Locker
}

type CasebaseOption func(*CasebaseService)

// WithCaseLocker replaces the in-process lock that serialises writes of equal
// cases, e.g. with a Redis lock shared by every instance.
func WithCaseLocker(l lock.Locker) CasebaseOption {
	return func(s *CasebaseService) {
		if l != nil {
			s.locker = l
		}
	}
}

func NewCasebaseService(projects *ProjectService, store casestore.Store, vec retrieval.Vectorizer,
	ontology *OntologyService, options *OptionService, opts ...CasebaseOption) *CasebaseService {
	s := &CasebaseService{projects: projects, store: store, vec: vec, ontology: ontology, options: options,
		locker: lock.NewLocal()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type BulkError struct {
	Index int    `json:"index"`
	Error string `json:"error"`
}

type BulkResult struct {
	CasesAdded int         `json:"casesAdded"`
	Errors     []BulkError `json:"errors"`
}

type RetainResult struct {
	ID     string `json:"_id"`
	Result string `json:"result"`
}

// Hash returns the hex SHA-256 of the case serialised with sorted keys,
// leaving out any previous hash.
func Hash(c model.Case) (string, error) {
	body := c
	if _, ok := c[model.HashField]; ok {
		body = c.Clone()
		delete(body, model.HashField)
	}
	raw, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("encode case: %w", err)
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:]), nil
}

func (s *CasebaseService) dimensions() schema.Dimensions {
	if s.vec == nil {
		return nil
	}
	return s.vec.Dimension
}

func floats(vec []float32) []any {
	out := make([]any, len(vec))
	for i, v := range vec {
		out[i] = float64(v)
	}
	return out
}

func vectorised(v any) bool {
	m, ok := v.(map[string]any)
	if !ok {
		return false
	}
	_, hasName := m["name"]
	_, hasRep := m["rep"]
	return hasName && hasRep
}

func textsOf(v any) []string {
	var out []string
	for _, item := range expr.Values(v) {
		if s, ok := expr.ToString(item); ok {
			out = append(out, s)
		}
	}
	return out
}

func lower(v any) any {
	switch t := v.(type) {
	case string:
		return strings.ToLower(t)
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = lower(item)
		}
		return out
	}
	return v
}

// prepare turns an input case into its stored form: reserved keys removed,
// vectorised attributes expanded to {name, rep} and EqualIgnoreCase values
// lowercased. Attributes whose model has no endpoint keep their raw text.
func (s *CasebaseService) prepare(ctx context.Context, p *model.Project, c model.Case) (model.Case, error) {
	out := c.Clone()
	for _, k := range reservedKeys {
		delete(out, k)
	}
	checked := *p
	checked.Attributes = make([]model.AttributeSpec, 0, len(p.Attributes))
	for i := range p.Attributes {
		attr := p.Attributes[i]
		v, ok := out[attr.Name]
		if !ok || v == nil {
			continue
		}
		kind := similarity.Parse(attr.Similarity)
		if em, ok := kind.EmbeddingModel(); ok {
			if s.vec == nil || !s.vec.Supports(em) {
				continue
			}
			if !vectorised(v) {
				stored, err := s.vectorise(ctx, em, kind == similarity.KindArraySBERT, v)
				if err != nil {
					return nil, err
				}
				out[attr.Name] = stored
			}
		} else if kind == similarity.KindEqualIgnoreCase {
			out[attr.Name] = lower(v)
		}
		checked.Attributes = append(checked.Attributes, attr)
	}
	if err := schema.Validate(&checked, out, s.dimensions()); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *CasebaseService) vectorise(ctx context.Context, em model.EmbeddingModel, nested bool, v any) (map[string]any, error) {
	if !nested {
		vec, err := s.vec.Embed(ctx, em, strings.Join(textsOf(v), " "))
		if err != nil {
			return nil, err
		}
		return map[string]any{"name": v, "rep": floats(vec)}, nil
	}
	items := textsOf(v)
	vecs, err := s.vec.EmbedMany(ctx, em, items)
	if err != nil {
		return nil, err
	}
	names := make([]any, len(items))
	reps := make([]any, len(vecs))
	for i := range items {
		names[i] = items[i]
		reps[i] = map[string]any{"rep": floats(vecs[i])}
	}
	return map[string]any{"name": names, "rep": reps}, nil
}

// duplicate reports whether another case than self already has hash.
func (s *CasebaseService) duplicate(ctx context.Context, p *model.Project, hash, self string) (bool, error) {
	if p.RetainDuplicateCases {
		return false, nil
	}
	ids, err := s.store.FindByHash(ctx, p.Casebase, hash)
	if err != nil {
		if errors.Is(err, appErr.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	for _, id := range ids {
		if id != self {
			return true, nil
		}
	}
	return false, nil
}

// putUnique stores doc unless another case already carries its hash. The
// check and the write hold the hash lock together.
func (s *CasebaseService) putUnique(ctx context.Context, p *model.Project, id string, doc model.Case) (string, error) {
	hash, _ := doc[model.HashField].(string)
	if !p.RetainDuplicateCases {
		release, err := s.locker.Acquire(ctx, caseLockPrefix+p.Casebase+":"+hash, caseLockTTL)
		if err != nil {
			return "", fmt.Errorf("acquire case lock: %w", err)
		}
		defer release()
	}
	dup, err := s.duplicate(ctx, p, hash, id)
	if err != nil {
		return "", err
	}
	if dup {
		return "", appErr.CaseDuplicate()
	}
	return s.store.Put(ctx, p.Casebase, id, doc)
}

func storeID(c model.Case) string {
	if v, ok := c[model.StoreIDField].(string); ok && v != "" {
		return v
	}
	if v, ok := c["id"].(string); ok && v != "" {
		return v
	}
	return ""
}

// ensureCasebase creates the index of a project that has none yet, then
// builds its missing ontology grids.
func (s *CasebaseService) ensureCasebase(ctx context.Context, p *model.Project) error {
	hadCasebase := p.HasCasebase
	if _, err := s.projects.ensureCasebase(ctx, p); err != nil {
		return err
	}
	if !hadCasebase {
		s.ontology.EnsureGrids(ctx, p)
	}
	return nil
}

// Retain stores one case. A payload id (_id, then id) makes it an upsert.
func (s *CasebaseService) Retain(ctx context.Context, p *model.Project, data model.Case) (*RetainResult, error) {
	if len(data) == 0 {
		return nil, appErr.InvalidRequest("case data is required")
	}
	if err := s.ensureCasebase(ctx, p); err != nil {
		return nil, err
	}
	id := storeID(data)
	doc, err := s.prepare(ctx, p, data)
	if err != nil {
		return nil, err
	}
	hash, err := Hash(doc)
	if err != nil {
		return nil, err
	}
	doc[model.HashField] = hash
	result := "created"
	if id != "" {
		if _, err := s.store.Get(ctx, p.Casebase, id); err == nil {
			result = "updated"
		}
	}
	stored, err := s.putUnique(ctx, p, id, doc)
	if err != nil {
		return nil, err
	}
	return &RetainResult{ID: stored, Result: result}, nil
}

// BulkSave stores a batch of cases, skipping duplicates within the batch and
// against the casebase. Per-case failures are reported, not returned.
func (s *CasebaseService) BulkSave(ctx context.Context, projectID string, cases []model.Case) (*BulkResult, error) {
	p, err := s.projects.Get(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if err := s.ensureCasebase(ctx, p); err != nil {
		return nil, err
	}

	docs := make([]model.Case, len(cases))
	errs := make([]error, len(cases))
	g := new(errgroup.Group)
	g.SetLimit(bulkParallelism)
	for i, c := range cases {
		g.Go(func() error {
			doc, err := s.prepare(ctx, p, c)
			if err == nil {
				doc[model.HashField], err = Hash(doc)
			}
			docs[i], errs[i] = doc, err
			return nil
		})
	}
	_ = g.Wait()

	res := &BulkResult{Errors: []BulkError{}}
	seen := make(map[string]bool, len(docs))
	for i, doc := range docs {
		if errs[i] != nil {
			res.Errors = append(res.Errors, BulkError{Index: i, Error: errs[i].Error()})
			continue
		}
		hash := doc[model.HashField].(string)
		id := storeID(cases[i])
		if !p.RetainDuplicateCases && seen[hash] {
			res.Errors = append(res.Errors, BulkError{Index: i, Error: appErr.CaseDuplicate().Message})
			continue
		}
		seen[hash] = true
		if _, err := s.putUnique(ctx, p, id, doc); err != nil {
			msg := err.Error()
			var ae *appErr.Error
			if errors.As(err, &ae) && ae.Kind == appErr.KindCaseDuplicate {
				msg = ae.Message
			}
			res.Errors = append(res.Errors, BulkError{Index: i, Error: msg})
			continue
		}
		res.CasesAdded++
	}

	s.ontology.EnsureGrids(ctx, p)
	if err := s.options.Refresh(ctx, p); err != nil {
		logutil.GetLogger(ctx).Warn("refresh attribute options after bulk save failed",
			zap.String("project_id", p.ID), zap.Error(err))
	}
	logutil.GetLogger(ctx).Info("bulk save finished",
		zap.String("project_id", p.ID), zap.Int("added", res.CasesAdded), zap.Int("failed", len(res.Errors)))
	return res, nil
}

func (s *CasebaseService) notFound(ctx context.Context, p *model.Project) error {
	exists, err := s.store.IndexExists(ctx, p.Casebase)
	if err != nil {
		return err
	}
	if !exists {
		return appErr.CasebaseNotFound()
	}
	return appErr.CaseNotFound()
}

func (s *CasebaseService) List(ctx context.Context, projectID string, start, size int) (*model.CasePage, error) {
	p, err := s.projects.Get(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if size <= 0 {
		size = defaultPageSize
	}
	docs, total, err := s.store.List(ctx, p.Casebase, start, size)
	if err != nil {
		if errors.Is(err, appErr.ErrNotFound) {
			return nil, appErr.CasebaseNotFound()
		}
		return nil, err
	}
	page := &model.CasePage{Total: total, Cases: make([]model.Case, 0, len(docs))}
	for _, d := range docs {
		page.Cases = append(page.Cases, present(p, d.ID, d.Source))
	}
	return page, nil
}

func present(p *model.Project, id string, source model.Case) model.Case {
	c := schema.Flatten(p, source)
	c[model.IDField] = id
	return c
}

func (s *CasebaseService) Get(ctx context.Context, projectID, caseID string) (model.Case, error) {
	p, err := s.projects.Get(ctx, projectID)
	if err != nil {
		return nil, err
	}
	source, err := s.store.Get(ctx, p.Casebase, caseID)
	if err != nil {
		if errors.Is(err, appErr.ErrNotFound) {
			return nil, s.notFound(ctx, p)
		}
		return nil, err
	}
	return present(p, caseID, source), nil
}

// UpdateCase merges patch into the stored case and re-hashes it.
func (s *CasebaseService) UpdateCase(ctx context.Context, projectID, caseID string, patch model.Case) (model.Case, error) {
	p, err := s.projects.Get(ctx, projectID)
	if err != nil {
		return nil, err
	}
	old, err := s.store.Get(ctx, p.Casebase, caseID)
	if err != nil {
		if errors.Is(err, appErr.ErrNotFound) {
			return nil, s.notFound(ctx, p)
		}
		return nil, err
	}
	changes, err := s.prepare(ctx, p, patch)
	if err != nil {
		return nil, err
	}
	doc := old.Clone()
	for _, k := range reservedKeys {
		delete(doc, k)
	}
	for k, v := range changes {
		doc[k] = v
	}
	hash, err := Hash(doc)
	if err != nil {
		return nil, err
	}
	doc[model.HashField] = hash
	if _, err := s.putUnique(ctx, p, caseID, doc); err != nil {
		var ae *appErr.Error
		if errors.As(err, &ae) && ae.Kind == appErr.KindCaseDuplicate {
			return nil, err
		}
		return nil, appErr.CaseUpdate(err)
	}
	return present(p, caseID, doc), nil
}

func (s *CasebaseService) DeleteCase(ctx context.Context, projectID, caseID string) error {
	p, err := s.projects.Get(ctx, projectID)
	if err != nil {
		return err
	}
	if err := s.store.Delete(ctx, p.Casebase, caseID); err != nil {
		if errors.Is(err, appErr.ErrNotFound) {
			return s.notFound(ctx, p)
		}
		return appErr.CaseDelete(err)
	}
	return nil
}

// DeleteCasebase drops the project's casebase index. A missing index is not
// an error.
func (s *CasebaseService) DeleteCasebase(ctx context.Context, projectID string) error {
	p, err := s.projects.Get(ctx, projectID)
	if err != nil {
		return err
	}
	if err := s.store.DeleteIndex(ctx, p.Casebase); err != nil && !errors.Is(err, appErr.ErrNotFound) {
		return appErr.CasebaseDelete(err)
	}
	p.HasCasebase = false
	return s.projects.save(ctx, p)
}
