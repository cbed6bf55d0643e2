package reuse

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
)

// QueryCase is the case awaiting a solution.
type QueryCase struct {
	Intent    string
	Questions []string
}

// Neighbour is a retrieved case carrying a solution tree.
type Neighbour struct {
	ID        string
	Intent    string
	Questions []string
	Solution  map[string]any
}

// Request is the body of a reuse call. ReuseType names the registered
// strategy; custom strategies start with an underscore.
type Request struct {
	ReuseType           string           `json:"reuse_type"`
	QueryCase           map[string]any   `json:"query_case"`
	Neighbours          []map[string]any `json:"neighbours"`
	AcceptanceThreshold *float64         `json:"acceptance_threshold,omitempty"`
	Verbose             *bool            `json:"verbose,omitempty"`
}

type Result struct {
	Pairings             []Pair         `json:"pairings,omitempty"`
	Score                float64        `json:"score"`
	NeighboursConsidered int            `json:"neighbours_considered"`
	IntentOverlap        float64        `json:"intent_overlap"`
	AdaptedSolution      map[string]any `json:"adapted_solution"`
}

func (r *Request) Alpha() float64 {
	if r.AcceptanceThreshold == nil {
		return DefaultAlpha
	}
	return *r.AcceptanceThreshold
}

func (r *Request) IsVerbose() bool {
	return r.Verbose == nil || *r.Verbose
}

func textList(v any) []string {
	switch t := v.(type) {
	case string:
		return []string{t}
	case []string:
		return t
	case []any:
		out := make([]string, 0, len(t))
		for _, e := range t {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

func anyString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case json.Number:
		return t.String()
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return fmt.Sprint(t)
	}
}

func QueryCaseOf(m map[string]any) QueryCase {
	return QueryCase{Intent: anyString(m["UserIntent"]), Questions: textList(m["UserQuestion"])}
}

func NeighbourOf(m map[string]any) Neighbour {
	sol, _ := m["Solution"].(map[string]any)
	return Neighbour{
		ID:        anyString(m["id"]),
		Intent:    anyString(m["UserIntent"]),
		Questions: textList(m["UserQuestion"]),
		Solution:  sol,
	}
}

// Strategy turns a reuse request into a result. A nil result means there was
// nothing to adapt.
type Strategy func(ctx context.Context, sim TextSimilarity, req *Request) (*Result, error)

var (
	strategyMu sync.RWMutex
	strategies = map[string]Strategy{}
)

func Register(name string, s Strategy) {
	strategyMu.Lock()
	defer strategyMu.Unlock()
	strategies[name] = s
}

func init() {
	Register("_isee", questionMatchStrategy)
}

// Reuse dispatches req to its strategy. Requests without a known strategy
// yield no result.
func Reuse(ctx context.Context, sim TextSimilarity, req *Request) (*Result, error) {
	strategyMu.RLock()
	s, ok := strategies[req.ReuseType]
	strategyMu.RUnlock()
	if !ok {
		return nil, nil
	}
	return s(ctx, sim, req)
}

// questionMatchStrategy pairs the user questions of the query with those of
// the nearest neighbours and grafts the matched explanation subtrees.
func questionMatchStrategy(ctx context.Context, sim TextSimilarity, req *Request) (*Result, error) {
	if req.QueryCase == nil || len(req.Neighbours) == 0 {
		return nil, nil
	}
	query := QueryCaseOf(req.QueryCase)
	if len(query.Questions) == 0 {
		return nil, nil
	}
	neighbours := make([]Neighbour, 0, len(req.Neighbours))
	for _, n := range req.Neighbours {
		neighbours = append(neighbours, NeighbourOf(n))
	}
	m, err := Match(ctx, sim, QueryQuestions(query), neighbours, req.Alpha())
	if err != nil {
		return nil, err
	}
	res := &Result{
		Score:                m.Score,
		NeighboursConsidered: m.Considered,
		IntentOverlap:        m.IntentOverlap,
		AdaptedSolution:      Adapt(m.Pairs, neighbours),
	}
	if req.IsVerbose() {
		res.Pairings = m.Pairs
	}
	return res, nil
}
