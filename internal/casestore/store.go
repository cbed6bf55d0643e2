package casestore

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/RGU-Computing/clood/internal/config"
	"github.com/RGU-Computing/clood/internal/expr"
	"github.com/RGU-Computing/clood/internal/model"
)

// Store is the backing document store of casebases. One index per project.
type Store interface {
	// EnsureIndex creates the index with mapping; created is false when it
	// already existed.
	EnsureIndex(ctx context.Context, index string, mapping map[string]any) (created bool, err error)
	IndexExists(ctx context.Context, index string) (bool, error)
	DeleteIndex(ctx context.Context, index string) error

	// Put inserts or replaces a document. An empty id asks the store for one.
	Put(ctx context.Context, index, id string, doc model.Case) (string, error)
	Get(ctx context.Context, index, id string) (model.Case, error)
	Delete(ctx context.Context, index, id string) error
	List(ctx context.Context, index string, start, size int) ([]Doc, int64, error)
	Count(ctx context.Context, index string) (int64, error)
	// FindByHash returns the ids of documents whose hash__ equals hash.
	FindByHash(ctx context.Context, index, hash string) ([]string, error)
	FieldRange(ctx context.Context, index, field string, date bool) (*Range, error)

	Search(ctx context.Context, index string, q *Query) (*Result, error)
	// Explain scores one document against q with a full explanation. The hit
	// is nil when the document does not match.
	Explain(ctx context.Context, index, id string, q *Query) (*Hit, error)
}

type Doc struct {
	ID     string
	Source model.Case
}

type Filter struct {
	Field string
	Op    string
	Value any
}

var filterOps = map[string]bool{"=": true, ">": true, ">=": true, "<": true, "<=": true}

func ValidFilterOp(op string) bool {
	return filterOps[op]
}

type Query struct {
	Scorers []*expr.Scorer
	Filters []Filter
	Size    int
	Explain bool
}

type Hit struct {
	ID          string
	Score       float64
	Source      model.Case
	Explanation *expr.Explanation
}

type Result struct {
	Hits []Hit
	Took time.Duration
}

// Range is the min and max of a numeric or date field over an index. Dates are
// in epoch milliseconds.
type Range struct {
	Count int64
	Min   float64
	Max   float64
}

type Factory func(cfg config.CasebaseStoreConfig, db *sqlx.DB) (Store, error)

var (
	registryMu sync.RWMutex
	registry   = map[string]Factory{}
)

func Register(name string, factory Factory) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" || factory == nil {
		return
	}
	registryMu.Lock()
	registry[key] = factory
	registryMu.Unlock()
}

func New(cfg config.CasebaseStoreConfig, db *sqlx.DB) (Store, error) {
	key := strings.ToLower(strings.TrimSpace(cfg.Type))
	if key == "" {
		return nil, fmt.Errorf("casebase_store.type is required")
	}
	registryMu.RLock()
	factory := registry[key]
	registryMu.RUnlock()
	if factory == nil {
		return nil, fmt.Errorf("unsupported casebase store type: %s", cfg.Type)
	}
	return factory(cfg, db)
}

func newDocID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}
