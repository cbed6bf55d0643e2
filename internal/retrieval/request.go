package retrieval

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/RGU-Computing/clood/internal/explain"
	"github.com/RGU-Computing/clood/internal/model"
)

const DefaultTopK = 5

// Feature is one attribute of a query case. Empty fields fall back to the
// project's attribute spec.
type Feature struct {
	Name        string   `json:"name"`
	Value       any      `json:"value"`
	Weight      *float64 `json:"weight,omitempty"`
	Similarity  string   `json:"similarity,omitempty"`
	Type        string   `json:"type,omitempty"`
	Strategy    string   `json:"strategy,omitempty"`
	Unknown     bool     `json:"unknown,omitempty"`
	FilterType  string   `json:"filterType,omitempty"`
	FilterValue any      `json:"filterValue,omitempty"`
}

// HasValue reports whether the feature carries a usable query value.
func (f *Feature) HasValue() bool {
	switch v := f.Value.(type) {
	case nil:
		return false
	case string:
		return v != ""
	case []any:
		return len(v) > 0
	}
	return true
}

// Count decodes from a JSON number or a numeric string.
type Count int

func (c *Count) UnmarshalJSON(b []byte) error {
	s := strings.Trim(strings.TrimSpace(string(b)), `"`)
	if s == "" || s == "null" {
		*c = 0
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("invalid count %s", string(b))
	}
	*c = Count(int(f))
	return nil
}

type Request struct {
	ProjectID         string         `json:"projectId"`
	Project           *model.Project `json:"project,omitempty"`
	Data              []Feature      `json:"data"`
	TopK              Count          `json:"topk"`
	Explanation       bool           `json:"explanation"`
	Feedback          bool           `json:"feedback"`
	FeedbackThreshold float64        `json:"feedbackThreshold,omitempty"`
	GlobalSim         string         `json:"globalSim,omitempty"`
}

func (r *Request) Size() int {
	if r.TopK <= 0 {
		return DefaultTopK
	}
	return int(r.TopK)
}

type Result struct {
	Recommended  model.Case   `json:"recommended"`
	BestK        []model.Case `json:"bestK"`
	RetrieveTime float64      `json:"retrieveTime"`
	StoreTime    int64        `json:"esTime"`
}

// ExplainRequest re-scores one stored case against a query.
type ExplainRequest struct {
	ProjectID string         `json:"projectId"`
	Project   *model.Project `json:"project,omitempty"`
	Data      []Feature      `json:"data"`
	CaseID    string         `json:"caseId"`
}

type ExplainResult struct {
	CaseID      string                    `json:"caseId"`
	Matched     bool                      `json:"matched"`
	Score       float64                   `json:"score"`
	Explanation []explain.FieldSimilarity `json:"match_explanation"`
}

// marshalKey gives a comparable key for any decoded JSON value.
func marshalKey(v any) string {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(raw)
}
