package casestore

import (
	"sort"
	"strings"

	"github.com/RGU-Computing/clood/internal/expr"
)

// Execute runs q over docs in process. docs must be in insertion order, which
// breaks score ties.
func Execute(docs []Doc, q *Query) []Hit {
	sources := make([]map[string]any, len(docs))
	for i, d := range docs {
		sources[i] = d.Source
	}
	stats := expr.NewStats(sources)

	hits := make([]Hit, 0, len(docs))
	for i, d := range docs {
		if !matchFilters(sources[i], q.Filters) {
			continue
		}
		hit, ok := scoreDoc(d, sources[i], stats, q)
		if !ok {
			continue
		}
		hits = append(hits, hit)
	}
	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Score > hits[j].Score
	})
	if q.Size > 0 && len(hits) > q.Size {
		hits = hits[:q.Size]
	}
	return hits
}

// ExplainDoc scores the document id against q, with term statistics taken
// from all of docs. found is false when no document has that id.
func ExplainDoc(docs []Doc, id string, q *Query) (hit *Hit, found bool) {
	sources := make([]map[string]any, len(docs))
	for i, d := range docs {
		sources[i] = d.Source
	}
	stats := expr.NewStats(sources)
	explained := *q
	explained.Explain = true
	for i, d := range docs {
		if d.ID != id {
			continue
		}
		if !matchFilters(sources[i], q.Filters) {
			return nil, true
		}
		h, ok := scoreDoc(d, sources[i], stats, &explained)
		if !ok {
			return nil, true
		}
		return &h, true
	}
	return nil, false
}

func scoreDoc(d Doc, source map[string]any, stats *expr.Stats, q *Query) (Hit, bool) {
	hit := Hit{ID: d.ID, Source: d.Source}
	if len(q.Scorers) == 0 {
		hit.Score = 1
		if q.Explain {
			hit.Explanation = &expr.Explanation{Value: 1, Description: "*:*"}
		}
		return hit, true
	}
	env := &expr.Env{Doc: source, Stats: stats}
	matched := 0
	var details []*expr.Explanation
	for _, s := range q.Scorers {
		v, ok, exp := s.Evaluate(env)
		if !ok {
			continue
		}
		matched++
		hit.Score += v
		details = append(details, exp)
	}
	if matched == 0 {
		return hit, false
	}
	if q.Explain {
		hit.Explanation = &expr.Explanation{Value: hit.Score, Description: "sum of:", Details: details}
	}
	return hit, true
}

func matchFilters(doc map[string]any, filters []Filter) bool {
	for _, f := range filters {
		if !matchFilter(doc, f) {
			return false
		}
	}
	return true
}

func matchFilter(doc map[string]any, f Filter) bool {
	v, ok := expr.Lookup(doc, f.Field)
	if !ok {
		return false
	}
	if f.Op == "=" {
		return expr.ValueMatches(v, f.Value)
	}
	for _, item := range expr.Values(v) {
		cmp, ok := compare(item, f.Value)
		if !ok {
			continue
		}
		switch f.Op {
		case ">":
			ok = cmp > 0
		case ">=":
			ok = cmp >= 0
		case "<":
			ok = cmp < 0
		case "<=":
			ok = cmp <= 0
		default:
			ok = false
		}
		if ok {
			return true
		}
	}
	return false
}

// compare orders numbers numerically, then dates, then strings.
func compare(a, b any) (int, bool) {
	if fa, ok := expr.ToFloat(a); ok {
		if fb, ok := expr.ToFloat(b); ok {
			return sign(fa - fb), true
		}
	}
	if da, ok := expr.ParseDate(a); ok {
		if db, ok := expr.ParseDate(b); ok {
			return sign(float64(da - db)), true
		}
	}
	sa, ok1 := expr.ToString(a)
	sb, ok2 := expr.ToString(b)
	if !ok1 || !ok2 {
		return 0, false
	}
	return strings.Compare(sa, sb), true
}

func sign(f float64) int {
	switch {
	case f > 0:
		return 1
	case f < 0:
		return -1
	}
	return 0
}

// fieldRange scans docs for the min and max of field.
func fieldRange(docs []Doc, field string, date bool) *Range {
	out := &Range{}
	for _, d := range docs {
		v, ok := expr.Lookup(d.Source, field)
		if !ok {
			continue
		}
		for _, item := range expr.Values(v) {
			var f float64
			if date {
				ms, ok := expr.ParseDate(item)
				if !ok {
					continue
				}
				f = float64(ms)
			} else {
				n, ok := expr.ToFloat(item)
				if !ok {
					continue
				}
				f = n
			}
			if out.Count == 0 || f < out.Min {
				out.Min = f
			}
			if out.Count == 0 || f > out.Max {
				out.Max = f
			}
			out.Count++
		}
	}
	return out
}
