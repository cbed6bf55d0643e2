package expr

import (
	"math"
	"strings"
	"sync"
	"unicode"
)

const (
	bm25K1 = 1.2
	bm25B  = 0.75
)

// Tokenize lowercases and splits on anything that is not a letter or digit.
func Tokenize(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func fieldText(doc map[string]any, path string) (string, bool) {
	v, ok := Lookup(doc, path)
	if !ok {
		return "", false
	}
	parts := make([]string, 0, 1)
	for _, item := range Values(v) {
		if s, ok := ToString(item); ok {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, " "), len(parts) > 0
}

type fieldStats struct {
	docs     int
	totalLen int
	df       map[string]int
}

// Stats holds corpus statistics for text scoring. Per-field figures are
// computed on first use.
type Stats struct {
	docs []map[string]any

	mu     sync.Mutex
	fields map[string]*fieldStats
}

func NewStats(docs []map[string]any) *Stats {
	return &Stats{docs: docs, fields: make(map[string]*fieldStats)}
}

func (s *Stats) field(path string) *fieldStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	if fs, ok := s.fields[path]; ok {
		return fs
	}
	fs := &fieldStats{df: make(map[string]int)}
	for _, doc := range s.docs {
		text, ok := fieldText(doc, path)
		if !ok {
			continue
		}
		tokens := Tokenize(text)
		fs.docs++
		fs.totalLen += len(tokens)
		seen := make(map[string]struct{}, len(tokens))
		for _, tok := range tokens {
			if _, ok := seen[tok]; ok {
				continue
			}
			seen[tok] = struct{}{}
			fs.df[tok]++
		}
	}
	s.fields[path] = fs
	return fs
}

// BM25 scores query against the doc's field with Lucene's BM25 similarity.
func (s *Stats) BM25(doc map[string]any, path, query string) float64 {
	text, ok := fieldText(doc, path)
	if !ok {
		return 0
	}
	fs := s.field(path)
	if fs.docs == 0 {
		return 0
	}
	tokens := Tokenize(text)
	tf := make(map[string]int, len(tokens))
	for _, tok := range tokens {
		tf[tok]++
	}
	avg := float64(fs.totalLen) / float64(fs.docs)
	norm := 1 - bm25B
	if avg > 0 {
		norm += bm25B * float64(len(tokens)) / avg
	}
	score := 0.0
	for _, term := range Tokenize(query) {
		freq := float64(tf[term])
		if freq == 0 {
			continue
		}
		n := float64(fs.df[term])
		idf := math.Log(1 + (float64(fs.docs)-n+0.5)/(n+0.5))
		score += idf * freq / (freq + bm25K1*norm)
	}
	return score
}

// MatchesText reports whether any query token occurs in the field.
func MatchesText(doc map[string]any, path, query string) bool {
	text, ok := fieldText(doc, path)
	if !ok {
		return false
	}
	have := make(map[string]struct{})
	for _, tok := range Tokenize(text) {
		have[tok] = struct{}{}
	}
	for _, tok := range Tokenize(query) {
		if _, ok := have[tok]; ok {
			return true
		}
	}
	return false
}
