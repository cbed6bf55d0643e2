package vectorizer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

type httpConfig struct {
	Endpoint   string `json:"endpoint"`
	AccessKey  string `json:"access_key"`
	TimeoutSec int    `json:"timeout_sec"`
}

// httpProvider calls a vectoriser service that answers {text, access_key}
// with {vectors}. The endpoint already names the model, so the model argument
// is ignored.
type httpProvider struct {
	endpoint  string
	accessKey string
	client    *http.Client
}

type vectoriseRequest struct {
	Text      string `json:"text"`
	AccessKey string `json:"access_key"`
}

type vectoriseResponse struct {
	Vectors []float32 `json:"vectors"`
}

func (p *httpProvider) Name() string {
	return "http"
}

func (p *httpProvider) Embed(ctx context.Context, _ string, text string, _ string) ([]float32, error) {
	var out vectoriseResponse
	if err := postJSON(ctx, p.client, p.endpoint, vectoriseRequest{Text: text, AccessKey: p.accessKey}, &out); err != nil {
		return nil, err
	}
	if len(out.Vectors) == 0 {
		return nil, fmt.Errorf("no vectors returned")
	}
	return out.Vectors, nil
}

func postJSON(ctx context.Context, client *http.Client, endpoint string, body any, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func createHTTPFactory(args interface{}) (IProvider, error) {
	cfg := &httpConfig{}
	if err := decodeConfig(args, cfg); err != nil {
		return nil, err
	}
	if strings.TrimSpace(cfg.Endpoint) == "" {
		return nil, fmt.Errorf("http vectorizer endpoint is required")
	}
	timeout := time.Duration(cfg.TimeoutSec) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &httpProvider{
		endpoint:  strings.TrimSpace(cfg.Endpoint),
		accessKey: cfg.AccessKey,
		client:    &http.Client{Timeout: timeout},
	}, nil
}

func init() {
	Register("http", createHTTPFactory)
}
