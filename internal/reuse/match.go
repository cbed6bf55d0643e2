package reuse

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"golang.org/x/sync/errgroup"
)

// DefaultAlpha is the mean pairing score a neighbour prefix must exceed.
const DefaultAlpha = 0.8

// TextSimilarity scores a pair of texts in [0,1].
type TextSimilarity interface {
	Similarity(ctx context.Context, a, b string) (float64, error)
}

// Question is one user question of a query or neighbour case. K is the
// index of the owning neighbour, -1 on the query side.
type Question struct {
	ID       string `json:"id"`
	K        int    `json:"k"`
	Intent   string `json:"intent"`
	Question string `json:"question"`
}

type Pair struct {
	Query Question `json:"query"`
	Case  Question `json:"case"`
}

type MatchResult struct {
	Pairs         []Pair
	Score         float64
	Considered    int
	IntentOverlap float64
	Pool          []Question
}

// QueryQuestions numbers the questions of the query case from 0.
func QueryQuestions(q QueryCase) []Question {
	out := make([]Question, 0, len(q.Questions))
	for i, text := range q.Questions {
		out = append(out, Question{ID: strconv.Itoa(i), K: -1, Intent: q.Intent, Question: text})
	}
	return out
}

// pool lists the questions of the first n neighbours.
func pool(neighbours []Neighbour, n int) []Question {
	var out []Question
	for k := 0; k < n; k++ {
		nb := neighbours[k]
		caseID := nb.ID
		if caseID == "" {
			caseID = strconv.Itoa(k)
		}
		for i, text := range nb.Questions {
			out = append(out, Question{
				ID:       fmt.Sprintf("%s_%d", caseID, i),
				K:        k,
				Intent:   nb.Intent,
				Question: text,
			})
		}
	}
	return out
}

// scoreCache remembers text pair scores across prefix iterations.
type scoreCache struct {
	sim TextSimilarity
	mu  sync.Mutex
	m   map[[2]string]float64
}

func (s *scoreCache) get(ctx context.Context, a, b string) (float64, error) {
	key := [2]string{a, b}
	s.mu.Lock()
	v, ok := s.m[key]
	s.mu.Unlock()
	if ok {
		return v, nil
	}
	v, err := s.sim.Similarity(ctx, a, b)
	if err != nil {
		return 0, err
	}
	s.mu.Lock()
	s.m[key] = v
	s.mu.Unlock()
	return v, nil
}

func (s *scoreCache) matrix(ctx context.Context, query, cands []Question) ([][]float64, error) {
	out := make([][]float64, len(query))
	for i := range out {
		out[i] = make([]float64, len(cands))
	}
	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(8)
	for i := range query {
		for j := range cands {
			eg.Go(func() error {
				v, err := s.get(ctx, query[i].Question, cands[j].Question)
				if err != nil {
					return err
				}
				out[i][j] = v
				return nil
			})
		}
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// Match grows the neighbour prefix until the mean pairing score exceeds
// alpha or every neighbour is in the pool.
func Match(ctx context.Context, sim TextSimilarity, query []Question, neighbours []Neighbour, alpha float64) (*MatchResult, error) {
	if len(query) == 0 || len(neighbours) == 0 {
		return &MatchResult{}, nil
	}
	cache := &scoreCache{sim: sim, m: map[[2]string]float64{}}
	for i := 1; ; i++ {
		cands := pool(neighbours, i)
		scores, err := cache.matrix(ctx, query, cands)
		if err != nil {
			return nil, err
		}
		pairing := StableMarriage(scores)
		res := &MatchResult{Considered: i, Pool: cands}
		total, same := 0.0, 0
		for qi, ci := range pairing {
			if ci < 0 {
				continue
			}
			total += scores[qi][ci]
			res.Pairs = append(res.Pairs, Pair{Query: query[qi], Case: cands[ci]})
			if query[qi].Intent == cands[ci].Intent {
				same++
			}
		}
		res.Score = total / float64(len(query))
		res.IntentOverlap = float64(same) / float64(len(query))
		if res.Score > alpha || i == len(neighbours) {
			return res, nil
		}
	}
}
