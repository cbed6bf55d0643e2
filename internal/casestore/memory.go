package casestore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/RGU-Computing/clood/internal/config"
	"github.com/RGU-Computing/clood/internal/model"
	appErr "github.com/RGU-Computing/clood/internal/pkg/errors"
)

func init() {
	Register("memory", func(config.CasebaseStoreConfig, *sqlx.DB) (Store, error) {
		return NewMemoryStore(), nil
	})
}

type memEntry struct {
	seq int64
	doc model.Case
}

type memIndex struct {
	mapping map[string]any
	docs    map[string]*memEntry
}

// MemoryStore keeps casebases in process. Contents are lost on restart.
type MemoryStore struct {
	mu      sync.RWMutex
	seq     int64
	indexes map[string]*memIndex
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{indexes: make(map[string]*memIndex)}
}

func (s *MemoryStore) EnsureIndex(_ context.Context, index string, mapping map[string]any) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.indexes[index]; ok {
		return false, nil
	}
	s.indexes[index] = &memIndex{mapping: mapping, docs: make(map[string]*memEntry)}
	return true, nil
}

func (s *MemoryStore) IndexExists(_ context.Context, index string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.indexes[index]
	return ok, nil
}

func (s *MemoryStore) DeleteIndex(_ context.Context, index string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.indexes[index]; !ok {
		return appErr.ErrNotFound
	}
	delete(s.indexes, index)
	return nil
}

func (s *MemoryStore) Put(_ context.Context, index, id string, doc model.Case) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx, ok := s.indexes[index]
	if !ok {
		return "", appErr.ErrNotFound
	}
	if id == "" {
		id = newDocID()
	}
	if cur, ok := idx.docs[id]; ok {
		cur.doc = doc.Clone()
		return id, nil
	}
	s.seq++
	idx.docs[id] = &memEntry{seq: s.seq, doc: doc.Clone()}
	return id, nil
}

func (s *MemoryStore) Get(_ context.Context, index, id string) (model.Case, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idx, ok := s.indexes[index]
	if !ok {
		return nil, appErr.ErrNotFound
	}
	e, ok := idx.docs[id]
	if !ok {
		return nil, appErr.ErrNotFound
	}
	return e.doc.Clone(), nil
}

func (s *MemoryStore) Delete(_ context.Context, index, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx, ok := s.indexes[index]
	if !ok {
		return appErr.ErrNotFound
	}
	if _, ok := idx.docs[id]; !ok {
		return appErr.ErrNotFound
	}
	delete(idx.docs, id)
	return nil
}

// ordered returns the docs of index by insertion sequence.
func (s *MemoryStore) ordered(index string) ([]Doc, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idx, ok := s.indexes[index]
	if !ok {
		return nil, appErr.ErrNotFound
	}
	type seqDoc struct {
		seq int64
		doc Doc
	}
	items := make([]seqDoc, 0, len(idx.docs))
	for id, e := range idx.docs {
		items = append(items, seqDoc{seq: e.seq, doc: Doc{ID: id, Source: e.doc.Clone()}})
	}
	sort.Slice(items, func(i, j int) bool { return items[i].seq < items[j].seq })
	out := make([]Doc, len(items))
	for i, item := range items {
		out[i] = item.doc
	}
	return out, nil
}

func (s *MemoryStore) List(_ context.Context, index string, start, size int) ([]Doc, int64, error) {
	docs, err := s.ordered(index)
	if err != nil {
		return nil, 0, err
	}
	return page(docs, start, size), int64(len(docs)), nil
}

func page(docs []Doc, start, size int) []Doc {
	if start < 0 {
		start = 0
	}
	if start >= len(docs) {
		return []Doc{}
	}
	end := len(docs)
	if size > 0 && start+size < end {
		end = start + size
	}
	return docs[start:end]
}

func (s *MemoryStore) Count(_ context.Context, index string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idx, ok := s.indexes[index]
	if !ok {
		return 0, appErr.ErrNotFound
	}
	return int64(len(idx.docs)), nil
}

func (s *MemoryStore) FindByHash(_ context.Context, index, hash string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idx, ok := s.indexes[index]
	if !ok {
		return nil, appErr.ErrNotFound
	}
	var ids []string
	for id, e := range idx.docs {
		if h, _ := e.doc[model.HashField].(string); h == hash {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *MemoryStore) FieldRange(_ context.Context, index, field string, date bool) (*Range, error) {
	docs, err := s.ordered(index)
	if err != nil {
		return nil, err
	}
	return fieldRange(docs, field, date), nil
}

func (s *MemoryStore) Search(_ context.Context, index string, q *Query) (*Result, error) {
	start := time.Now()
	docs, err := s.ordered(index)
	if err != nil {
		return nil, err
	}
	hits := Execute(docs, q)
	return &Result{Hits: hits, Took: time.Since(start)}, nil
}

func (s *MemoryStore) Explain(_ context.Context, index, id string, q *Query) (*Hit, error) {
	docs, err := s.ordered(index)
	if err != nil {
		return nil, err
	}
	hit, found := ExplainDoc(docs, id, q)
	if !found {
		return nil, appErr.ErrNotFound
	}
	return hit, nil
}
