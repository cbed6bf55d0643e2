package explain

import (
	"regexp"
	"strings"

	"github.com/RGU-Computing/clood/internal/expr"
)

// attribPattern finds the field name a scorer echoes in its script params.
var attribPattern = regexp.MustCompile(`attrib=([a-zA-Z0-9_\-\s]+)`)

// FieldSimilarity is the contribution of one attribute to a hit's score.
type FieldSimilarity struct {
	Field      string  `json:"field"`
	Similarity float64 `json:"similarity"`
}

func flatten(e *expr.Explanation, b *strings.Builder) {
	b.WriteString(e.Description)
	for _, d := range e.Details {
		if d != nil {
			b.WriteByte(' ')
			flatten(d, b)
		}
	}
}

func text(e *expr.Explanation) string {
	var b strings.Builder
	flatten(e, &b)
	return b.String()
}

func field(s string) (string, bool) {
	m := attribPattern.FindStringSubmatch(s)
	if m == nil {
		return "", false
	}
	return strings.TrimSpace(m[1]), true
}

// Details walks a scoring explanation and lists the per-field similarities
// in traversal order. A node with a single detail is read as a whole; a
// detail that still names several fields is walked in turn.
func Details(e *expr.Explanation) []FieldSimilarity {
	out := []FieldSimilarity{}
	if e == nil {
		return out
	}
	if len(e.Details) <= 1 {
		if f, ok := field(text(e)); ok {
			out = append(out, FieldSimilarity{Field: f, Similarity: e.Value})
		}
		return out
	}
	for _, d := range e.Details {
		if d == nil {
			continue
		}
		t := text(d)
		if len(d.Details) > 1 && len(attribPattern.FindAllStringIndex(t, 2)) > 1 {
			out = append(out, Details(d)...)
			continue
		}
		if f, ok := field(t); ok {
			out = append(out, FieldSimilarity{Field: f, Similarity: d.Value})
		}
	}
	return out
}
