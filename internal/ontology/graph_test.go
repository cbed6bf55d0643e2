package ontology_test

import (
	"strings"
	"testing"

	"github.com/knakk/rdf"
	"github.com/stretchr/testify/require"

	"github.com/RGU-Computing/clood/internal/ontology"
)

const ex = "http://example.org/"

const chainNT = `<http://example.org/X> <http://www.w3.org/2000/01/rdf-schema#subClassOf> <http://example.org/R> .
<http://example.org/Y> <http://www.w3.org/2000/01/rdf-schema#subClassOf> <http://example.org/X> .
<http://example.org/Z> <http://www.w3.org/2000/01/rdf-schema#subClassOf> <http://example.org/Y> .
<http://example.org/Z> <http://www.w3.org/2000/01/rdf-schema#label> "zed" .
`

func chainGraph(t *testing.T) *ontology.Graph {
	t.Helper()
	g := ontology.NewGraph()
	rel, err := ontology.ExpandRelation("")
	require.NoError(t, err)
	require.NoError(t, g.Decode(strings.NewReader(chainNT), rdf.NTriples, rel))
	g.Seal()
	return g
}

func TestExpandRelation(t *testing.T) {
	cases := []struct {
		in   string
		want string
		err  bool
	}{
		{in: "", want: "http://www.w3.org/2000/01/rdf-schema#subClassOf"},
		{in: "skos:broader", want: "http://www.w3.org/2004/02/skos/core#broader"},
		{in: "<http://example.org/partOf>", want: "http://example.org/partOf"},
		{in: "http://example.org/partOf", want: "http://example.org/partOf"},
		{in: "foo:bar", err: true},
		{in: "plain", err: true},
	}
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			got, err := ontology.ExpandRelation(tc.in)
			if tc.err {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.want, got)
		})
	}
}

func TestParseFormat(t *testing.T) {
	f, err := ontology.ParseFormat("")
	require.NoError(t, err)
	require.Equal(t, rdf.RDFXML, f)
	f, err = ontology.ParseFormat("ttl")
	require.NoError(t, err)
	require.Equal(t, rdf.Turtle, f)
	f, err = ontology.ParseFormat("nt")
	require.NoError(t, err)
	require.Equal(t, rdf.NTriples, f)
	_, err = ontology.ParseFormat("jsonld")
	require.Error(t, err)
}

func TestConcepts(t *testing.T) {
	g := chainGraph(t)
	require.Equal(t, []string{ex + "R", ex + "X", ex + "Y", ex + "Z"}, g.Concepts(""))
	require.Equal(t, []string{ex + "X", ex + "Y", ex + "Z"}, g.Concepts(ex+"X"))
	require.True(t, g.Has(ex+"Z"))
	require.False(t, g.Has(ex+"zed"))
}

func TestWuPalmerChain(t *testing.T) {
	g := chainGraph(t)
	require.Equal(t, 0.857, g.WuPalmer(ex+"Y", ex+"Z", ex+"R"))
	require.Equal(t, 0.667, g.WuPalmer(ex+"X", ex+"Z", ex+"R"))
	require.Equal(t, 1.0, g.WuPalmer(ex+"Z", ex+"Z", ex+"R"))

	concepts := g.Concepts("")
	for _, x := range concepts {
		for _, y := range concepts {
			v := g.WuPalmer(x, y, ex+"R")
			require.Equal(t, v, g.WuPalmer(y, x, ex+"R"))
			require.GreaterOrEqual(t, v, 0.0)
			require.LessOrEqual(t, v, 1.0)
		}
	}
}

func TestWuPalmerSiblingsAndDisjoint(t *testing.T) {
	g := ontology.NewGraph()
	g.AddEdge(ex+"A", ex+"R")
	g.AddEdge(ex+"B", ex+"R")
	g.AddEdge(ex+"Q", ex+"S")
	g.Seal()
	require.Equal(t, 0.5, g.WuPalmer(ex+"A", ex+"B", ex+"R"))
	require.Equal(t, 0.0, g.WuPalmer(ex+"A", ex+"Q", ""))
}

func TestSanchez(t *testing.T) {
	g := chainGraph(t)
	require.Equal(t, 0.678, g.Sanchez(ex+"Y", ex+"Z"))
	require.Equal(t, g.Sanchez(ex+"Z", ex+"Y"), g.Sanchez(ex+"Y", ex+"Z"))
	require.Equal(t, 1.0, g.Sanchez(ex+"X", ex+"X"))
}

func TestDecodeTurtle(t *testing.T) {
	src := `@prefix rdfs: <http://www.w3.org/2000/01/rdf-schema#> .
@prefix ex: <http://example.org/> .
ex:X rdfs:subClassOf ex:R .
ex:Y rdfs:subClassOf ex:X .
`
	g := ontology.NewGraph()
	rel, err := ontology.ExpandRelation("rdfs:subClassOf")
	require.NoError(t, err)
	require.NoError(t, g.Decode(strings.NewReader(src), rdf.Turtle, rel))
	g.Seal()
	require.Equal(t, []string{ex + "R", ex + "X", ex + "Y"}, g.Concepts(""))
	require.Equal(t, 0.8, g.WuPalmer(ex+"X", ex+"Y", ex+"R"))
}

func TestMeasuresSymmetricAndBounded(t *testing.T) {
	cases := []struct {
		name  string
		edges [][2]string
		root  string
	}{
		{name: "chain", edges: [][2]string{{"X", "R"}, {"Y", "X"}, {"Z", "Y"}}, root: "R"},
		{name: "diamond", edges: [][2]string{{"A", "R"}, {"B", "R"}, {"C", "A"}, {"C", "B"}, {"D", "C"}}, root: "R"},
		{name: "forest", edges: [][2]string{{"A", "R"}, {"B", "A"}, {"Q", "S"}, {"T", "Q"}}},
		{name: "wide", edges: [][2]string{{"A", "R"}, {"B", "R"}, {"C", "R"}, {"D", "A"}, {"E", "B"}, {"F", "E"}}, root: "R"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			g := ontology.NewGraph()
			for _, e := range tc.edges {
				g.AddEdge(ex+e[0], ex+e[1])
			}
			g.Seal()
			root := ""
			if tc.root != "" {
				root = ex + tc.root
			}
			concepts := g.Concepts(root)
			require.NotEmpty(t, concepts)
			for _, x := range concepts {
				require.Equal(t, 1.0, g.WuPalmer(x, x, root))
				require.Equal(t, 1.0, g.Sanchez(x, x))
				for _, y := range concepts {
					wup := g.WuPalmer(x, y, root)
					san := g.Sanchez(x, y)
					require.Equal(t, wup, g.WuPalmer(y, x, root), "wup %s %s", x, y)
					require.Equal(t, san, g.Sanchez(y, x), "san %s %s", x, y)
					for _, v := range []float64{wup, san} {
						require.GreaterOrEqual(t, v, 0.0)
						require.LessOrEqual(t, v, 1.0)
					}
				}
			}
		})
	}
}
