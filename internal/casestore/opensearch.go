package casestore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/opensearch-project/opensearch-go/v4"
	"github.com/opensearch-project/opensearch-go/v4/opensearchapi"

	"github.com/RGU-Computing/clood/internal/config"
	"github.com/RGU-Computing/clood/internal/expr"
	"github.com/RGU-Computing/clood/internal/model"
	appErr "github.com/RGU-Computing/clood/internal/pkg/errors"
)

func init() {
	Register("opensearch", func(cfg config.CasebaseStoreConfig, _ *sqlx.DB) (Store, error) {
		return NewOpenSearchStore(cfg.OpenSearch)
	})
}

// OpenSearchStore keeps casebases in an OpenSearch cluster. Scorers are sent
// as painless script_score clauses.
type OpenSearchStore struct {
	client *opensearch.Client
}

func NewOpenSearchStore(cfg config.OpenSearchConfig) (*OpenSearchStore, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("opensearch endpoint is required")
	}
	timeout := time.Duration(cfg.TimeoutSec) * time.Second
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	client, err := opensearch.NewClient(opensearch.Config{
		Addresses: []string{strings.TrimSuffix(cfg.Endpoint, "/")},
		Username:  cfg.Username,
		Password:  cfg.Password,
		Transport: &http.Transport{
			Proxy:                 http.ProxyFromEnvironment,
			ResponseHeaderTimeout: timeout,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("init opensearch client: %w", err)
	}
	return &OpenSearchStore{client: client}, nil
}

type osError struct {
	status int
	body   string
}

func (e *osError) Error() string {
	return fmt.Sprintf("opensearch status %d: %s", e.status, e.body)
}

// do sends req and decodes a successful body into out. 404 maps to
// ErrNotFound and 5xx to an unavailable upstream.
func (s *OpenSearchStore) do(ctx context.Context, req opensearch.Request, out any) error {
	resp, err := s.client.Do(ctx, req, out)
	if resp == nil {
		if err == nil {
			err = errors.New("empty response")
		}
		return appErr.UpstreamUnavailable("Casebase store", err)
	}
	if resp.Body != nil {
		defer func() { _ = resp.Body.Close() }()
	}
	switch {
	case resp.StatusCode == http.StatusNotFound:
		return appErr.ErrNotFound
	case resp.IsError():
		oe := &osError{status: resp.StatusCode}
		if resp.Body != nil {
			data, _ := io.ReadAll(resp.Body)
			oe.body = string(data)
		}
		if resp.StatusCode >= 500 {
			return appErr.UpstreamUnavailable("Casebase store", oe)
		}
		return oe
	case err != nil:
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func jsonBody(v any) (io.Reader, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	return bytes.NewReader(raw), nil
}

func (s *OpenSearchStore) EnsureIndex(ctx context.Context, index string, mapping map[string]any) (bool, error) {
	exists, err := s.IndexExists(ctx, index)
	if err != nil || exists {
		return false, err
	}
	body, err := jsonBody(map[string]any{
		"settings": map[string]any{"index": map[string]any{"knn": true}},
		"mappings": mapping,
	})
	if err != nil {
		return false, err
	}
	err = s.do(ctx, &opensearchapi.IndicesCreateReq{Index: index, Body: body}, nil)
	if err != nil {
		var oe *osError
		if errors.As(err, &oe) && strings.Contains(oe.body, "resource_already_exists_exception") {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (s *OpenSearchStore) IndexExists(ctx context.Context, index string) (bool, error) {
	err := s.do(ctx, &opensearchapi.IndicesExistsReq{Indices: []string{index}}, nil)
	if errors.Is(err, appErr.ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

func (s *OpenSearchStore) DeleteIndex(ctx context.Context, index string) error {
	return s.do(ctx, &opensearchapi.IndicesDeleteReq{Indices: []string{index}}, nil)
}

func (s *OpenSearchStore) Put(ctx context.Context, index, id string, doc model.Case) (string, error) {
	if id == "" {
		id = newDocID()
	}
	body, err := jsonBody(doc)
	if err != nil {
		return "", err
	}
	req := &opensearchapi.IndexReq{
		Index:      index,
		DocumentID: id,
		Body:       body,
		Params:     opensearchapi.IndexParams{Refresh: "true"},
	}
	if err := s.do(ctx, req, nil); err != nil {
		return "", err
	}
	return id, nil
}

func (s *OpenSearchStore) Get(ctx context.Context, index, id string) (model.Case, error) {
	var resp struct {
		Found  bool       `json:"found"`
		Source model.Case `json:"_source"`
	}
	if err := s.do(ctx, &opensearchapi.DocumentGetReq{Index: index, DocumentID: id}, &resp); err != nil {
		return nil, err
	}
	if !resp.Found {
		return nil, appErr.ErrNotFound
	}
	return resp.Source, nil
}

func (s *OpenSearchStore) Delete(ctx context.Context, index, id string) error {
	return s.do(ctx, &opensearchapi.DocumentDeleteReq{
		Index:      index,
		DocumentID: id,
		Params:     opensearchapi.DocumentDeleteParams{Refresh: "true"},
	}, nil)
}

type searchHit struct {
	ID          string            `json:"_id"`
	Score       *float64          `json:"_score"`
	Source      model.Case        `json:"_source"`
	Explanation *expr.Explanation `json:"_explanation"`
}

type searchResponse struct {
	Took int64 `json:"took"`
	Hits struct {
		Total struct {
			Value int64 `json:"value"`
		} `json:"total"`
		Hits []searchHit `json:"hits"`
	} `json:"hits"`
	Aggregations map[string]struct {
		Value *float64 `json:"value"`
	} `json:"aggregations"`
}

func (s *OpenSearchStore) search(ctx context.Context, index string, query map[string]any) (*searchResponse, error) {
	body, err := jsonBody(query)
	if err != nil {
		return nil, err
	}
	var resp searchResponse
	if err := s.do(ctx, &opensearchapi.SearchReq{Indices: []string{index}, Body: body}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (s *OpenSearchStore) List(ctx context.Context, index string, start, size int) ([]Doc, int64, error) {
	if start < 0 {
		start = 0
	}
	if size <= 0 {
		size = 10000
	}
	resp, err := s.search(ctx, index, map[string]any{
		"from":             start,
		"size":             size,
		"track_total_hits": true,
		"query":            map[string]any{"match_all": map[string]any{}},
		"sort":             []any{map[string]any{"_doc": "asc"}},
	})
	if err != nil {
		return nil, 0, err
	}
	docs := make([]Doc, 0, len(resp.Hits.Hits))
	for _, h := range resp.Hits.Hits {
		docs = append(docs, Doc{ID: h.ID, Source: h.Source})
	}
	return docs, resp.Hits.Total.Value, nil
}

func (s *OpenSearchStore) Count(ctx context.Context, index string) (int64, error) {
	var resp struct {
		Count int64 `json:"count"`
	}
	if err := s.do(ctx, &opensearchapi.IndicesCountReq{Indices: []string{index}}, &resp); err != nil {
		return 0, err
	}
	return resp.Count, nil
}

func (s *OpenSearchStore) FindByHash(ctx context.Context, index, hash string) ([]string, error) {
	resp, err := s.search(ctx, index, map[string]any{
		"size":    100,
		"_source": false,
		"query":   map[string]any{"term": map[string]any{model.HashField: hash}},
	})
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(resp.Hits.Hits))
	for _, h := range resp.Hits.Hits {
		ids = append(ids, h.ID)
	}
	return ids, nil
}

func (s *OpenSearchStore) FieldRange(ctx context.Context, index, field string, _ bool) (*Range, error) {
	resp, err := s.search(ctx, index, map[string]any{
		"size": 0,
		"aggs": map[string]any{
			"min_value": map[string]any{"min": map[string]any{"field": field}},
			"max_value": map[string]any{"max": map[string]any{"field": field}},
			"count":     map[string]any{"value_count": map[string]any{"field": field}},
		},
	})
	if err != nil {
		return nil, err
	}
	out := &Range{}
	if v := resp.Aggregations["count"].Value; v != nil {
		out.Count = int64(*v)
	}
	if v := resp.Aggregations["min_value"].Value; v != nil {
		out.Min = *v
	}
	if v := resp.Aggregations["max_value"].Value; v != nil {
		out.Max = *v
	}
	return out, nil
}

func (s *OpenSearchStore) Search(ctx context.Context, index string, q *Query) (*Result, error) {
	resp, err := s.search(ctx, index, SearchBody(q))
	if err != nil {
		return nil, err
	}
	out := &Result{Took: time.Duration(resp.Took) * time.Millisecond}
	for _, h := range resp.Hits.Hits {
		hit := Hit{ID: h.ID, Source: h.Source, Explanation: h.Explanation}
		if h.Score != nil {
			hit.Score = *h.Score
		}
		out.Hits = append(out.Hits, hit)
	}
	return out, nil
}

func (s *OpenSearchStore) Explain(ctx context.Context, index, id string, q *Query) (*Hit, error) {
	body, err := jsonBody(map[string]any{"query": SearchBody(q)["query"]})
	if err != nil {
		return nil, err
	}
	var resp struct {
		Matched     bool              `json:"matched"`
		Explanation *expr.Explanation `json:"explanation"`
	}
	req := &opensearchapi.DocumentExplainReq{Index: index, DocumentID: id, Body: body}
	if err := s.do(ctx, req, &resp); err != nil {
		return nil, err
	}
	if !resp.Matched || resp.Explanation == nil {
		return nil, nil
	}
	return &Hit{ID: id, Score: resp.Explanation.Value, Explanation: resp.Explanation}, nil
}

// SearchBody renders q as an OpenSearch query: one script_score clause per
// scorer in a bool should, filters as mandatory clauses.
func SearchBody(q *Query) map[string]any {
	filters := make([]any, 0, len(q.Filters))
	for _, f := range q.Filters {
		filters = append(filters, filterClause(f))
	}
	boolQuery := map[string]any{"filter": filters}
	if len(q.Scorers) == 0 {
		boolQuery["must"] = []any{map[string]any{"match_all": map[string]any{}}}
	} else {
		should := make([]any, 0, len(q.Scorers))
		for _, s := range q.Scorers {
			script := s.Painless()
			should = append(should, map[string]any{"script_score": map[string]any{
				"query": gateClause(s.Gate),
				"script": map[string]any{
					"source": script.Source,
					"lang":   "painless",
					"params": script.ParamMap(),
				},
			}})
		}
		boolQuery["should"] = should
		boolQuery["minimum_should_match"] = 1
	}
	size := q.Size
	if size <= 0 {
		size = 5
	}
	return map[string]any{
		"size":    size,
		"explain": q.Explain,
		"query":   map[string]any{"bool": boolQuery},
		"sort":    []any{map[string]any{"_score": "desc"}, map[string]any{"_doc": "asc"}},
	}
}

func gateClause(g expr.Gate) map[string]any {
	if g.Kind == expr.GateExists {
		return map[string]any{"exists": map[string]any{"field": g.Field}}
	}
	return map[string]any{"match": map[string]any{g.Field: g.Value}}
}

func filterClause(f Filter) map[string]any {
	var op string
	switch f.Op {
	case ">":
		op = "gt"
	case ">=":
		op = "gte"
	case "<":
		op = "lt"
	case "<=":
		op = "lte"
	default:
		return map[string]any{"term": map[string]any{f.Field: f.Value}}
	}
	return map[string]any{"range": map[string]any{f.Field: map[string]any{op: f.Value}}}
}
