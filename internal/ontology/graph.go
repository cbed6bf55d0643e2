package ontology

import (
	"fmt"
	"io"
	"math"
	"sort"
	"strings"

	"github.com/knakk/rdf"
)

var prefixes = map[string]string{
	"rdf":  "http://www.w3.org/1999/02/22-rdf-syntax-ns#",
	"rdfs": "http://www.w3.org/2000/01/rdf-schema#",
	"owl":  "http://www.w3.org/2002/07/owl#",
	"skos": "http://www.w3.org/2004/02/skos/core#",
	"xsd":  "http://www.w3.org/2001/XMLSchema#",
}

// ExpandRelation turns "rdfs:subClassOf", "<iri>" or a bare IRI into an IRI.
func ExpandRelation(rel string) (string, error) {
	rel = strings.TrimSpace(rel)
	if rel == "" {
		rel = "rdfs:subClassOf"
	}
	if strings.HasPrefix(rel, "<") && strings.HasSuffix(rel, ">") {
		return rel[1 : len(rel)-1], nil
	}
	if strings.Contains(rel, "://") {
		return rel, nil
	}
	prefix, local, ok := strings.Cut(rel, ":")
	if !ok {
		return "", fmt.Errorf("relation %q is neither an IRI nor a prefixed name", rel)
	}
	ns, ok := prefixes[prefix]
	if !ok {
		return "", fmt.Errorf("unknown prefix %q in relation %q", prefix, rel)
	}
	return ns + local, nil
}

// ParseFormat maps a source format hint onto an RDF syntax. XML is the default.
func ParseFormat(hint string) (rdf.Format, error) {
	switch strings.ToLower(strings.TrimSpace(hint)) {
	case "", "xml", "rdf", "rdfxml", "rdf/xml", "application/rdf+xml", "owl":
		return rdf.RDFXML, nil
	case "turtle", "ttl", "text/turtle", "n3":
		return rdf.Turtle, nil
	case "nt", "ntriples", "n-triples", "application/n-triples":
		return rdf.NTriples, nil
	}
	return rdf.NTriples, fmt.Errorf("unsupported rdf format: %s", hint)
}

// Graph is the hierarchy induced by one relation over a set of RDF sources.
// Edges point from a concept to its parents.
type Graph struct {
	parents map[string][]string
	nodes   map[string]struct{}

	// up[x][a] is the shortest number of edges from x to its ancestor a; up[x][x] is 0.
	up map[string]map[string]int
	// height[x] is the longest upward path from x to a top concept.
	height map[string]int
}

// Decode reads triples from r and keeps those using relation between IRIs.
func (g *Graph) Decode(r io.Reader, format rdf.Format, relation string) error {
	dec := rdf.NewTripleDecoder(r, format)
	for {
		t, err := dec.Decode()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("decode rdf: %w", err)
		}
		if t.Pred.String() != relation {
			continue
		}
		if t.Subj.Type() != rdf.TermIRI || t.Obj.Type() != rdf.TermIRI {
			continue
		}
		g.AddEdge(t.Subj.String(), t.Obj.String())
	}
}

func NewGraph() *Graph {
	return &Graph{parents: map[string][]string{}, nodes: map[string]struct{}{}}
}

// AddEdge records that child relates to parent. The graph must be sealed
// again before it is measured.
func (g *Graph) AddEdge(child, parent string) {
	g.nodes[child] = struct{}{}
	g.nodes[parent] = struct{}{}
	for _, p := range g.parents[child] {
		if p == parent {
			return
		}
	}
	g.parents[child] = append(g.parents[child], parent)
	g.up = nil
	g.height = nil
}

// Seal precomputes ancestor distances and heights so the graph can be
// measured concurrently.
func (g *Graph) Seal() {
	g.up = make(map[string]map[string]int, len(g.nodes))
	g.height = make(map[string]int, len(g.nodes))
	for n := range g.nodes {
		g.up[n] = g.ancestors(n)
	}
	for n := range g.nodes {
		g.longest(n, map[string]bool{})
	}
}

func (g *Graph) ancestors(n string) map[string]int {
	dist := map[string]int{n: 0}
	queue := []string{n}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, p := range g.parents[cur] {
			if _, seen := dist[p]; seen {
				continue
			}
			dist[p] = dist[cur] + 1
			queue = append(queue, p)
		}
	}
	return dist
}

func (g *Graph) longest(n string, visiting map[string]bool) int {
	if h, ok := g.height[n]; ok {
		return h
	}
	if visiting[n] {
		return 0
	}
	visiting[n] = true
	best := 0
	for _, p := range g.parents[n] {
		if h := g.longest(p, visiting) + 1; h > best {
			best = h
		}
	}
	delete(visiting, n)
	g.height[n] = best
	return best
}

func (g *Graph) Has(concept string) bool {
	_, ok := g.nodes[concept]
	return ok
}

// Concepts lists the concepts under root (inclusive), or every concept taking
// part in the relation when root is empty. The result is sorted.
func (g *Graph) Concepts(root string) []string {
	out := make([]string, 0, len(g.nodes))
	for n := range g.nodes {
		if root != "" {
			if _, ok := g.up[n][root]; !ok {
				continue
			}
		}
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// lcs returns the most specific common subsumer of x and y. When several
// exist the deepest wins, then the lexically smallest.
func (g *Graph) lcs(x, y string) (string, bool) {
	ux, uy := g.up[x], g.up[y]
	common := make([]string, 0)
	for a := range ux {
		if _, ok := uy[a]; ok {
			common = append(common, a)
		}
	}
	best, bestDepth := "", -1
	for _, c := range common {
		specific := true
		for _, other := range common {
			if other == c {
				continue
			}
			if _, below := g.up[other][c]; below {
				specific = false
				break
			}
		}
		if !specific {
			continue
		}
		d := g.height[c]
		if d > bestDepth || (d == bestDepth && c < best) {
			best, bestDepth = c, d
		}
	}
	return best, bestDepth >= 0
}

func (g *Graph) depth(c, root string) int {
	if root != "" {
		if d, ok := g.up[c][root]; ok {
			return d
		}
	}
	return g.height[c]
}

// WuPalmer is 2·c3 / (2·c3 + c1 + c2) where c1 and c2 are the distances of x
// and y to their common subsumer and c3 is the subsumer's depth plus one.
func (g *Graph) WuPalmer(x, y, root string) float64 {
	if x == y {
		return 1
	}
	lcs, ok := g.lcs(x, y)
	if !ok {
		return 0
	}
	c1 := float64(g.up[x][lcs])
	c2 := float64(g.up[y][lcs])
	c3 := float64(g.depth(lcs, root) + 1)
	return round3(2 * c3 / (2*c3 + c1 + c2))
}

// Sanchez compares ancestor sets (self included): 1 - log2(1 + |A△B| / |A∪B|).
func (g *Graph) Sanchez(x, y string) float64 {
	if x == y {
		return 1
	}
	a, b := g.up[x], g.up[y]
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	shared := 0
	for n := range a {
		if _, ok := b[n]; ok {
			shared++
		}
	}
	union := len(a) + len(b) - shared
	symDiff := union - shared
	return round3(1 - math.Log2(1+float64(symDiff)/float64(union)))
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
