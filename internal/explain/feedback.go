package explain

import (
	"math"

	"github.com/RGU-Computing/clood/internal/expr"
)

// DefaultThreshold is the best element similarity below which a query
// element is reported.
const DefaultThreshold = 0.7

// Element is one query-side entry of an array attribute with its embedding.
type Element struct {
	Text   string
	Vector []float32
}

// Item flags a query element that no element of the case resembles.
type Item struct {
	Field      string  `json:"field"`
	Value      string  `json:"value"`
	Similarity float64 `json:"similarity"`
	Closest    any     `json:"closest,omitempty"`
}

// Feedback compares each query element of field with the case's stored
// elements and reports those whose best cosine is under threshold.
func Feedback(field string, query []Element, stored any, threshold float64) []Item {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	names, vectors := storedElements(stored)
	var out []Item
	for _, q := range query {
		qv, ok := expr.ToVector(q.Vector)
		if !ok {
			continue
		}
		best, idx := math.Inf(-1), -1
		for i, v := range vectors {
			if v == nil {
				continue
			}
			if s := expr.CosineSimilarity(qv, v); s > best {
				best, idx = s, i
			}
		}
		if idx < 0 {
			out = append(out, Item{Field: field, Value: q.Text, Similarity: 0})
			continue
		}
		if best >= threshold {
			continue
		}
		item := Item{Field: field, Value: q.Text, Similarity: math.Round(best*1000) / 1000}
		if idx < len(names) {
			item.Closest = names[idx]
		}
		out = append(out, item)
	}
	return out
}

// storedElements reads {name: [...], rep: [{rep: [...]}, ...]}.
func storedElements(stored any) ([]any, [][]float64) {
	m, ok := stored.(map[string]any)
	if !ok {
		return nil, nil
	}
	names := expr.Values(m["name"])
	reps := expr.Values(m["rep"])
	vectors := make([][]float64, len(reps))
	for i, r := range reps {
		item, ok := r.(map[string]any)
		if !ok {
			continue
		}
		if v, ok := expr.ToVector(item["rep"]); ok {
			vectors[i] = v
		}
	}
	return names, vectors
}
