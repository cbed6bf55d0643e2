package expr

import (
	"math"
	"strings"
	"sync"
)

type GateKind int

const (
	// GateExists admits documents that carry the field.
	GateExists GateKind = iota
	// GateMatch admits documents whose field matches Value.
	GateMatch
)

// Gate is the query clause a document must satisfy before a scorer runs on it.
// Analyzed match gates compare tokens rather than whole values.
type Gate struct {
	Kind     GateKind
	Field    string
	Value    any
	Analyzed bool
}

const floatTolerance = 1e-4

func (g Gate) Admits(doc map[string]any) bool {
	v, ok := Lookup(doc, g.Field)
	if !ok {
		return false
	}
	if g.Kind == GateExists {
		return len(Values(v)) > 0
	}
	if g.Analyzed {
		q, _ := ToString(g.Value)
		return MatchesText(doc, g.Field, q)
	}
	return ValueMatches(v, g.Value)
}

// ValueMatches compares a stored value against a term. Lists match when any
// element does; numbers compare within a small tolerance.
func ValueMatches(stored, term any) bool {
	tf, tnum := ToFloat(term)
	ts, _ := ToString(term)
	for _, item := range Values(stored) {
		if tnum {
			if f, ok := ToFloat(item); ok && math.Abs(f-tf) < floatTolerance {
				return true
			}
		}
		if s, ok := ToString(item); ok && s == ts {
			return true
		}
	}
	return false
}

// Scorer is the local similarity of one attribute.
type Scorer struct {
	Field string
	Gate  Gate
	Expr  Num

	once   sync.Once
	script Script
}

// NamedValue is one script param, kept in declaration order.
type NamedValue struct {
	Name  string
	Value any
}

type Script struct {
	Source string
	Params []NamedValue
}

func (s Script) ParamMap() map[string]any {
	out := make(map[string]any, len(s.Params))
	for _, p := range s.Params {
		out[p.Name] = p.Value
	}
	return out
}

// Describe renders the script the way the store echoes it in explanations.
func (s Script) Describe() string {
	parts := make([]string, len(s.Params))
	for i, p := range s.Params {
		parts[i] = p.Name + "=" + javaString(p.Value)
	}
	return "Script{type=inline, lang='painless', idOrCode='" + s.Source + "', options={}, params={" +
		strings.Join(parts, ", ") + "}}"
}

// Painless serialises the scorer. The attrib param always comes first.
func (s *Scorer) Painless() Script {
	s.once.Do(func() {
		w := newWriter()
		w.param(P("attrib", s.Field))
		w.b.Reset()
		s.Expr.write(w)
		s.script = w.script()
	})
	return s.script
}

// Explanation mirrors the store's scoring explanation tree.
type Explanation struct {
	Value       float64        `json:"value"`
	Description string         `json:"description"`
	Details     []*Explanation `json:"details"`
}

// Evaluate runs the scorer on env.Doc. matched is false when the gate rejects
// the document; the score is never negative.
func (s *Scorer) Evaluate(env *Env) (score float64, matched bool, exp *Explanation) {
	if !s.Gate.Admits(env.Doc) {
		return 0, false, nil
	}
	score = s.Expr.num(env)
	if math.IsNaN(score) || math.IsInf(score, 0) || score < 0 {
		score = 0
	}
	exp = &Explanation{
		Value:       score,
		Description: `script score function, computed with script:"` + s.Painless().Describe() + `"`,
		Details:     []*Explanation{s.gateExplanation()},
	}
	return score, true, exp
}

func (s *Scorer) gateExplanation() *Explanation {
	if s.Gate.Kind == GateExists {
		return &Explanation{Value: 1, Description: "_score: ", Details: []*Explanation{
			{Value: 1, Description: "FieldExistsQuery [field=" + s.Gate.Field + "]"},
		}}
	}
	q, _ := ToString(s.Gate.Value)
	return &Explanation{Value: 1, Description: "_score: ", Details: []*Explanation{
		{Value: 1, Description: s.Gate.Field + ":" + q},
	}}
}

type writer struct {
	b       strings.Builder
	params  []NamedValue
	seen    map[string]bool
	helpers []string
	defined map[string]bool
}

func newWriter() *writer {
	return &writer{seen: make(map[string]bool), defined: make(map[string]bool)}
}

func (w *writer) raw(s string) {
	w.b.WriteString(s)
}

func (w *writer) param(p *Param) {
	if !w.seen[p.Name] {
		w.seen[p.Name] = true
		w.params = append(w.params, NamedValue{Name: p.Name, Value: p.Value})
	}
	w.b.WriteString("params." + p.Name)
}

func (w *writer) helper(name, src string) {
	if w.defined[name] {
		return
	}
	w.defined[name] = true
	w.helpers = append(w.helpers, src)
}

// script wraps the expression so that non-finite and negative scores become 0,
// matching Evaluate.
func (w *writer) script() Script {
	body := "double score = " + w.b.String() + "; return " + clampSource + ";"
	if len(w.helpers) > 0 {
		body = strings.Join(w.helpers, " ") + " " + body
	}
	return Script{Source: body, Params: w.params}
}

const clampSource = "Double.isNaN(score) || Double.isInfinite(score) || score < 0 ? 0 : score"
