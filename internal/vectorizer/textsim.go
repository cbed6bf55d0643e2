package vectorizer

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/RGU-Computing/clood/internal/config"
	"github.com/RGU-Computing/clood/internal/expr"
	"github.com/RGU-Computing/clood/internal/model"
	appErr "github.com/RGU-Computing/clood/internal/pkg/errors"
)

// TextSimilarity scores a pair of texts in [0, 1].
type TextSimilarity interface {
	Similarity(ctx context.Context, a, b string) (float64, error)
}

// NewTextSimilarity returns the remote text-pair client when an endpoint is
// configured, otherwise cosine similarity over the client's embeddings.
func NewTextSimilarity(cfg config.VectorizerConfig, c *Client) TextSimilarity {
	if endpoint := strings.TrimSpace(cfg.SimilarityEndpoint); endpoint != "" {
		timeout := time.Duration(cfg.TimeoutSec) * time.Second
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		return &remoteSimilarity{
			endpoint:  endpoint,
			accessKey: cfg.AccessKey,
			client:    &http.Client{Timeout: timeout},
		}
	}
	return &EmbeddingSimilarity{Client: c}
}

type remoteSimilarity struct {
	endpoint  string
	accessKey string
	client    *http.Client
}

type pairRequest struct {
	Text1     string `json:"text1"`
	Text2     string `json:"text2"`
	AccessKey string `json:"access_key"`
}

type pairResponse struct {
	Similarity *float64 `json:"similarity"`
}

func (r *remoteSimilarity) Similarity(ctx context.Context, a, b string) (float64, error) {
	var out pairResponse
	if err := postJSON(ctx, r.client, r.endpoint, pairRequest{Text1: a, Text2: b, AccessKey: r.accessKey}, &out); err != nil {
		return 0, appErr.UpstreamUnavailable("Text similarity", err)
	}
	if out.Similarity == nil {
		return 0, appErr.UpstreamUnavailable("Text similarity", ErrUnavailable)
	}
	return *out.Similarity, nil
}

var similarityModels = []model.EmbeddingModel{model.ModelSBERT, model.ModelAnglEMatching, model.ModelUSE, model.ModelAnglERetrieval}

// EmbeddingSimilarity compares texts by the cosine of their embeddings under
// the first configured model.
type EmbeddingSimilarity struct {
	Client *Client
}

func (e *EmbeddingSimilarity) Similarity(ctx context.Context, a, b string) (float64, error) {
	for _, em := range similarityModels {
		if !e.Client.Supports(em) {
			continue
		}
		vecs, err := e.Client.EmbedMany(ctx, em, []string{a, b})
		if err != nil {
			return 0, err
		}
		return expr.CosineSimilarity(toFloat64(vecs[0]), toFloat64(vecs[1])), nil
	}
	return 0, appErr.UpstreamUnavailable("Text similarity", ErrUnavailable)
}

func toFloat64(v []float32) []float64 {
	out := make([]float64, len(v))
	for i, f := range v {
		out[i] = float64(f)
	}
	return out
}
