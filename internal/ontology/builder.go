package ontology

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"runtime"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/RGU-Computing/clood/internal/lock"
	"github.com/RGU-Computing/clood/internal/model"
	appErr "github.com/RGU-Computing/clood/internal/pkg/errors"
)

// GridStore persists grids row by row.
type GridStore interface {
	Replace(ctx context.Context, gridID string, rows map[string]map[string]float64) error
	PutRow(ctx context.Context, gridID, concept string, row map[string]float64) error
	GetRow(ctx context.Context, gridID, concept string) (map[string]float64, error)
	Count(ctx context.Context, gridID string) (int, error)
	Delete(ctx context.Context, gridID string) (int64, error)
	DeleteByPrefix(ctx context.Context, prefix string) (int64, error)
}

const (
	graphCacheSize = 16
	graphCacheTTL  = 10 * time.Minute
	lockKeyPrefix  = "clood:ontology:build:"
)

var ErrNoSources = errors.New("ontology descriptor has no sources")

// Builder computes grids in process. Builds of one grid are single-flight
// within the process and guarded by the locker across processes.
type Builder struct {
	grids   GridStore
	sources *SourceLoader
	locker  lock.Locker
	lockTTL time.Duration

	graphs *expirable.LRU[string, *Graph]
	group  singleflight.Group
}

type BuilderOption func(*Builder)

func WithLocker(l lock.Locker, ttl time.Duration) BuilderOption {
	return func(b *Builder) {
		if l != nil {
			b.locker = l
		}
		if ttl > 0 {
			b.lockTTL = ttl
		}
	}
}

func NewBuilder(grids GridStore, sources *SourceLoader, opts ...BuilderOption) *Builder {
	b := &Builder{
		grids:   grids,
		sources: sources,
		locker:  lock.Noop{},
		lockTTL: 10 * time.Minute,
		graphs:  expirable.NewLRU[string, *Graph](graphCacheSize, nil, graphCacheTTL),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func graphKey(d model.OntologyDescriptor) string {
	raw, _ := json.Marshal(struct {
		Sources  []model.OntologySource
		Relation string
	}{d.Sources, d.RelationType})
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}

// Graph loads every source of d into one graph. Loaded graphs are cached
// briefly so lazy row builds do not refetch sources.
func (b *Builder) Graph(ctx context.Context, d model.OntologyDescriptor) (*Graph, error) {
	if len(d.Sources) == 0 {
		return nil, ErrNoSources
	}
	key := graphKey(d)
	if g, ok := b.graphs.Get(key); ok {
		return g, nil
	}
	relation, err := ExpandRelation(d.RelationType)
	if err != nil {
		return nil, err
	}
	g := NewGraph()
	for _, src := range d.Sources {
		format, err := ParseFormat(src.Format)
		if err != nil {
			return nil, err
		}
		rc, err := b.sources.Open(ctx, src.Source)
		if err != nil {
			return nil, fmt.Errorf("open ontology source %s: %w", src.Source, err)
		}
		err = g.Decode(rc, format, relation)
		_ = rc.Close()
		if err != nil {
			return nil, fmt.Errorf("load ontology source %s: %w", src.Source, err)
		}
	}
	g.Seal()
	b.graphs.Add(key, g)
	return g, nil
}

// Row computes the similarity of key to every concept of the grid.
func Row(g *Graph, d model.OntologyDescriptor, concepts []string, key string) map[string]float64 {
	row := make(map[string]float64, len(concepts))
	for _, c := range concepts {
		if d.Method == model.OntologyMethodSAN {
			row[c] = g.Sanchez(key, c)
		} else {
			row[c] = g.WuPalmer(key, c, d.Root)
		}
	}
	row[key] = 1
	return row
}

// Grid computes every row in parallel.
func Grid(ctx context.Context, g *Graph, d model.OntologyDescriptor) (map[string]map[string]float64, error) {
	concepts := g.Concepts(d.Root)
	rows := make([]map[string]float64, len(concepts))
	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(runtime.NumCPU())
	for i, c := range concepts {
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			rows[i] = Row(g, d, concepts, c)
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	grid := make(map[string]map[string]float64, len(concepts))
	for i, c := range concepts {
		grid[c] = rows[i]
	}
	return grid, nil
}

func (b *Builder) Preload(ctx context.Context, d model.OntologyDescriptor) (int, error) {
	if d.ID == "" {
		return 0, fmt.Errorf("ontology id is required")
	}
	v, shared, err := b.shared(ctx, "full\x00"+d.ID, func(ctx context.Context) (any, error) {
		return b.build(ctx, d)
	})
	if err != nil {
		return 0, err
	}
	if shared {
		logutil.GetLogger(ctx).Debug("joined running ontology build", zap.String("ontology_id", d.ID))
	}
	return v.(int), nil
}

// shared runs fn once per key across concurrent callers. fn runs detached
// from any single caller, bounded by the lock TTL; a caller that gives up
// returns its own ctx error while the others keep waiting.
func (b *Builder) shared(ctx context.Context, key string, fn func(context.Context) (any, error)) (any, bool, error) {
	ch := b.group.DoChan(key, func() (interface{}, error) {
		runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), b.lockTTL)
		defer cancel()
		return fn(runCtx)
	})
	select {
	case <-ctx.Done():
		return nil, false, ctx.Err()
	case res := <-ch:
		return res.Val, res.Shared, res.Err
	}
}

// build recomputes the whole grid from freshly loaded sources.
func (b *Builder) build(ctx context.Context, d model.OntologyDescriptor) (int, error) {
	release, err := b.locker.Acquire(ctx, lockKeyPrefix+d.ID, b.lockTTL)
	if err != nil {
		return 0, fmt.Errorf("acquire ontology build lock: %w", err)
	}
	defer release()

	b.graphs.Remove(graphKey(d))

	start := time.Now()
	g, err := b.Graph(ctx, d)
	if err != nil {
		return 0, err
	}
	grid, err := Grid(ctx, g, d)
	if err != nil {
		return 0, err
	}
	if err := b.grids.Replace(ctx, d.ID, grid); err != nil {
		return 0, fmt.Errorf("store ontology grid: %w", err)
	}
	logutil.GetLogger(ctx).Info("ontology grid built",
		zap.String("ontology_id", d.ID),
		zap.String("method", d.Method),
		zap.Int("concepts", len(grid)),
		zap.Duration("cost", time.Since(start)))
	return len(grid), nil
}

func (b *Builder) Query(ctx context.Context, gridID, key string) (map[string]float64, error) {
	return b.grids.GetRow(ctx, gridID, key)
}

func (b *Builder) QueryOrBuild(ctx context.Context, d model.OntologyDescriptor, key string) (map[string]float64, error) {
	row, err := b.grids.GetRow(ctx, d.ID, key)
	if err == nil {
		return row, nil
	}
	if !errors.Is(err, appErr.ErrNotFound) {
		return nil, err
	}
	v, _, err := b.shared(ctx, "row\x00"+d.ID+"\x00"+key, func(ctx context.Context) (any, error) {
		return b.buildRow(ctx, d, key)
	})
	if err != nil {
		return nil, err
	}
	return v.(map[string]float64), nil
}

// buildRow computes one row. A key outside the ontology yields an empty row
// that is not stored.
func (b *Builder) buildRow(ctx context.Context, d model.OntologyDescriptor, key string) (map[string]float64, error) {
	g, err := b.Graph(ctx, d)
	if err != nil {
		return nil, err
	}
	concepts := g.Concepts(d.Root)
	if !contains(concepts, key) {
		logutil.GetLogger(ctx).Debug("concept not in ontology", zap.String("ontology_id", d.ID), zap.String("key", key))
		return map[string]float64{}, nil
	}
	row := Row(g, d, concepts, key)
	if err := b.grids.PutRow(ctx, d.ID, key, row); err != nil {
		return nil, fmt.Errorf("store ontology row: %w", err)
	}
	return row, nil
}

func contains(sorted []string, key string) bool {
	lo, hi := 0, len(sorted)
	for lo < hi {
		mid := (lo + hi) / 2
		if sorted[mid] < key {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo < len(sorted) && sorted[lo] == key
}

func (b *Builder) Status(ctx context.Context, gridID string) (model.GridStatus, error) {
	count, err := b.grids.Count(ctx, gridID)
	if err != nil {
		return model.GridStatus{}, err
	}
	return model.GridStatus{Exists: count > 0, Count: count}, nil
}

func (b *Builder) Delete(ctx context.Context, gridID string) error {
	n, err := b.grids.Delete(ctx, gridID)
	if err != nil {
		return err
	}
	if n == 0 {
		return appErr.ErrNotFound
	}
	return nil
}

func (b *Builder) DeleteByPrefix(ctx context.Context, prefix string) error {
	if prefix == "" {
		return fmt.Errorf("grid prefix is required")
	}
	_, err := b.grids.DeleteByPrefix(ctx, prefix)
	return err
}
