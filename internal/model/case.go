package model

const (
	HashField        = "hash__"
	IDField          = "id__"
	ScoreField       = "score__"
	ExplanationField = "match_explanation"
	FeedbackField    = "match_feedback"
	StoreIDField     = "_id"
)

// Case is one record of a casebase: attribute name to value.
type Case map[string]any

func (c Case) Clone() Case {
	out := make(Case, len(c))
	for k, v := range c {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, item := range t {
			out[k] = cloneValue(item)
		}
		return out
	case Case:
		return t.Clone()
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = cloneValue(item)
		}
		return out
	default:
		return v
	}
}

// VectorValue is the stored shape of a vectorised attribute.
type VectorValue struct {
	Name any       `json:"name"`
	Rep  []float32 `json:"rep"`
}

// NestedVector is one element of an Array SBERT attribute's rep list.
type NestedVector struct {
	Rep []float32 `json:"rep"`
}

type NestedVectorValue struct {
	Name []any         `json:"name"`
	Rep  []NestedVector `json:"rep"`
}

type CasePage struct {
	Total int64  `json:"total"`
	Cases []Case `json:"cases"`
}
