package ontology

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/RGU-Computing/clood/internal/model"
	appErr "github.com/RGU-Computing/clood/internal/pkg/errors"
)

// QueryRequest asks for the row of Key. When Sources is set the serving side
// builds a missing row instead of reporting it absent.
type QueryRequest struct {
	model.OntologyDescriptor
	Key string `json:"key"`
}

// DeleteRequest removes one grid, or every grid whose id starts with Prefix.
type DeleteRequest struct {
	ID     string `json:"ontologyId,omitempty"`
	Prefix string `json:"prefix,omitempty"`
}

type PreloadResult struct {
	ID    string `json:"ontologyId"`
	Count int    `json:"count"`
}

// RemoteService reaches the grid endpoints of another instance.
type RemoteService struct {
	endpoint string
	token    string
	client   *http.Client
}

func NewRemoteService(endpoint, token string, timeout time.Duration) *RemoteService {
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return &RemoteService{
		endpoint: strings.TrimSuffix(endpoint, "/"),
		token:    token,
		client:   &http.Client{Timeout: timeout},
	}
}

type remoteEnvelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (r *RemoteService) call(ctx context.Context, op string, body, out any) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint+"/api/v1/ontology/"+op, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if r.token != "" {
		req.Header.Set("Authorization", "Bearer "+r.token)
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return appErr.UpstreamUnavailable("Ontology service", err)
	}
	defer func() { _ = resp.Body.Close() }()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return appErr.UpstreamUnavailable("Ontology service", err)
	}
	if resp.StatusCode == http.StatusNotFound {
		return appErr.ErrNotFound
	}
	var env remoteEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return appErr.UpstreamUnavailable("Ontology service", fmt.Errorf("status %d: decode response: %w", resp.StatusCode, err))
	}
	if resp.StatusCode >= 300 || env.Code != 0 {
		return appErr.UpstreamUnavailable("Ontology service", fmt.Errorf("status %d code %d: %s", resp.StatusCode, env.Code, env.Message))
	}
	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return appErr.UpstreamUnavailable("Ontology service", fmt.Errorf("decode data: %w", err))
		}
	}
	return nil
}

func (r *RemoteService) Preload(ctx context.Context, d model.OntologyDescriptor) (int, error) {
	var out PreloadResult
	if err := r.call(ctx, "preload", d, &out); err != nil {
		return 0, err
	}
	return out.Count, nil
}

func (r *RemoteService) Query(ctx context.Context, gridID, key string) (map[string]float64, error) {
	return r.query(ctx, QueryRequest{OntologyDescriptor: model.OntologyDescriptor{ID: gridID}, Key: key})
}

func (r *RemoteService) QueryOrBuild(ctx context.Context, d model.OntologyDescriptor, key string) (map[string]float64, error) {
	return r.query(ctx, QueryRequest{OntologyDescriptor: d, Key: key})
}

func (r *RemoteService) query(ctx context.Context, q QueryRequest) (map[string]float64, error) {
	var row model.GridRow
	if err := r.call(ctx, "query", q, &row); err != nil {
		return nil, err
	}
	if row.Map == nil {
		row.Map = map[string]float64{}
	}
	return row.Map, nil
}

func (r *RemoteService) Status(ctx context.Context, gridID string) (model.GridStatus, error) {
	var st model.GridStatus
	err := r.call(ctx, "status", DeleteRequest{ID: gridID}, &st)
	return st, err
}

func (r *RemoteService) Delete(ctx context.Context, gridID string) error {
	return r.call(ctx, "delete", DeleteRequest{ID: gridID}, nil)
}

func (r *RemoteService) DeleteByPrefix(ctx context.Context, prefix string) error {
	return r.call(ctx, "delete", DeleteRequest{Prefix: prefix}, nil)
}
