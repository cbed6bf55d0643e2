package vectorizer

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/RGU-Computing/clood/internal/config"
	"github.com/RGU-Computing/clood/internal/model"
	appErr "github.com/RGU-Computing/clood/internal/pkg/errors"
)

const embedParallelism = 4

// Wrapper decorates an embedder, e.g. with a cache.
type Wrapper func(IEmbedder) IEmbedder

// Client routes embedding calls to the embedder of each configured model. A
// model without an embedder is unsupported and its measures degrade.
type Client struct {
	embedders map[model.EmbeddingModel]IEmbedder
	dims      map[model.EmbeddingModel]int
}

func New(cfg config.VectorizerConfig, wrappers ...Wrapper) (*Client, error) {
	c := &Client{
		embedders: make(map[model.EmbeddingModel]IEmbedder),
		dims:      make(map[model.EmbeddingModel]int),
	}
	for name, mc := range cfg.Models {
		em, ok := parseModel(name)
		if !ok {
			return nil, fmt.Errorf("unknown embedding model: %s", name)
		}
		provider, err := NewProvider(mc.Provider, providerArgs(cfg, em, mc))
		if err != nil {
			return nil, fmt.Errorf("vectorizer model %s: %w", name, err)
		}
		modelName := mc.Model
		if modelName == "" {
			modelName = string(em)
		}
		var e IEmbedder = NewEmbedder(provider, modelName)
		for _, wrap := range wrappers {
			e = wrap(e)
		}
		c.embedders[em] = e
		c.dims[em] = mc.Dimension
		if c.dims[em] == 0 {
			c.dims[em] = em.DefaultDimension()
		}
	}
	return c, nil
}

// NewWithEmbedders builds a client over ready embedders.
func NewWithEmbedders(embedders map[model.EmbeddingModel]IEmbedder) *Client {
	c := &Client{
		embedders: make(map[model.EmbeddingModel]IEmbedder, len(embedders)),
		dims:      make(map[model.EmbeddingModel]int, len(embedders)),
	}
	for em, e := range embedders {
		c.embedders[em] = e
		c.dims[em] = em.DefaultDimension()
	}
	return c
}

func parseModel(name string) (model.EmbeddingModel, bool) {
	for _, em := range model.EmbeddingModels() {
		if strings.EqualFold(string(em), strings.TrimSpace(name)) {
			return em, true
		}
	}
	return "", false
}

// providerArgs fills the shared access key and timeout into the per-model
// provider data unless the model sets its own.
func providerArgs(cfg config.VectorizerConfig, em model.EmbeddingModel, mc config.ModelConfig) map[string]interface{} {
	args := map[string]interface{}{}
	if data, ok := mc.Data.(map[string]interface{}); ok {
		for k, v := range data {
			args[k] = v
		}
	}
	if _, ok := args["access_key"]; !ok {
		args["access_key"] = cfg.AccessKey
	}
	if _, ok := args["timeout_sec"]; !ok {
		args["timeout_sec"] = cfg.TimeoutSec
	}
	if _, ok := args["dimension"]; !ok {
		dim := mc.Dimension
		if dim == 0 {
			dim = em.DefaultDimension()
		}
		args["dimension"] = dim
	}
	return args
}

func (c *Client) Supports(em model.EmbeddingModel) bool {
	if c == nil {
		return false
	}
	_, ok := c.embedders[em]
	return ok
}

func (c *Client) Dimension(em model.EmbeddingModel) int {
	if c == nil {
		return em.DefaultDimension()
	}
	if d, ok := c.dims[em]; ok && d > 0 {
		return d
	}
	return em.DefaultDimension()
}

func taskType(em model.EmbeddingModel) string {
	if em == model.ModelAnglERetrieval {
		return "RETRIEVAL_QUERY"
	}
	return "SEMANTIC_SIMILARITY"
}

func unavailable(em model.EmbeddingModel, err error) error {
	return appErr.UpstreamUnavailable("Vectoriser "+string(em), err)
}

func (c *Client) Embed(ctx context.Context, em model.EmbeddingModel, text string) ([]float32, error) {
	if !c.Supports(em) {
		return nil, unavailable(em, ErrUnavailable)
	}
	vec, err := c.embedders[em].Embed(ctx, text, taskType(em))
	if err != nil {
		return nil, unavailable(em, err)
	}
	return vec, nil
}

// EmbedMany embeds texts concurrently, keeping their order.
func (c *Client) EmbedMany(ctx context.Context, em model.EmbeddingModel, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(embedParallelism)
	for i, text := range texts {
		g.Go(func() error {
			vec, err := c.Embed(gctx, em, text)
			if err != nil {
				return err
			}
			out[i] = vec
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
