package similarity

import (
	"testing"

	"github.com/RGU-Computing/clood/internal/model"
	"github.com/stretchr/testify/require"
)

type fakeCaps map[model.EmbeddingModel]bool

func (f fakeCaps) Supports(m model.EmbeddingModel) bool { return f[m] }

func TestParseLabels(t *testing.T) {
	tests := []struct {
		label string
		want  Kind
	}{
		{"Equal", KindEqual},
		{"equalignorecase", KindEqualIgnoreCase},
		{"BM25", KindMostSimilar},
		{"MostSimilar", KindMostSimilar},
		{"McSherry Less", KindMcSherryLess},
		{"INRECA More", KindInrecaMore},
		{"Nearest Date", KindNearestDate},
		{"Array", KindJaccard},
		{"Jaccard", KindJaccard},
		{"Path-based", KindPathBased},
		{"Semantic AnglE-retrieval", KindSemanticAnglERetrieval},
		{"None", KindNone},
		{"something new", KindMostSimilar},
	}
	for _, tt := range tests {
		t.Run(tt.label, func(t *testing.T) {
			require.Equal(t, tt.want, Parse(tt.label))
		})
	}
}

func TestResolveDefaults(t *testing.T) {
	attr := &model.AttributeSpec{Name: "price", Type: model.TypeFloat, Similarity: "INRECA Less"}
	m, err := Resolve(nil, attr, "")
	require.NoError(t, err)
	require.Equal(t, Inreca{More: false, Jump: 1, Min: 0, Max: 100}, m)

	m, err = Resolve(nil, attr, "McSherry More")
	require.NoError(t, err)
	require.Equal(t, McSherry{More: true, Min: 0, Max: 100}, m)

	m, err = Resolve(nil, attr, "Equal")
	require.NoError(t, err)
	require.Equal(t, Equal{Float: true}, m)
}

func TestResolveOptions(t *testing.T) {
	attr := &model.AttributeSpec{
		Name:       "price",
		Type:       model.TypeFloat,
		Similarity: "INRECA Less",
		Options:    &model.AttributeOptions{Jump: model.Float(0.5), Max: model.Float(80)},
	}
	m, err := Resolve(nil, attr, "")
	require.NoError(t, err)
	require.Equal(t, Inreca{Jump: 0.5, Min: 0, Max: 80}, m)
}

func TestResolveNearest(t *testing.T) {
	attr := &model.AttributeSpec{Name: "when", Type: model.TypeDate, Similarity: "Nearest Date"}
	m, err := Resolve(nil, attr, "")
	require.NoError(t, err)
	n := m.(Nearest)
	require.Equal(t, NearestDate, n.Target)
	require.InDelta(t, 365*24*3600*1000.0, n.Scale, 1e-6)
	require.Equal(t, 0.999, n.Decay)

	attr = &model.AttributeSpec{Name: "where", Type: model.TypeLocation, Similarity: "Nearest Location",
		Options: &model.AttributeOptions{LScale: model.String("2mi"), LDecay: model.Float(0.5)}}
	m, err = Resolve(nil, attr, "")
	require.NoError(t, err)
	n = m.(Nearest)
	require.InDelta(t, 3218.688, n.Scale, 1e-6)
	require.Equal(t, 0.5, n.Decay)

	attr.Options.LScale = model.String("far")
	_, err = Resolve(nil, attr, "")
	require.Error(t, err)
}

func TestResolveOntology(t *testing.T) {
	p := &model.Project{ID: "p1"}
	attr := &model.AttributeSpec{Name: "kind", Type: model.TypeOntologyConcept, Similarity: "Feature-based",
		Options: &model.AttributeOptions{Name: "animals"}}
	m, err := Resolve(p, attr, "")
	require.NoError(t, err)
	o := m.(Ontology)
	require.True(t, o.FeatureBased)
	require.Equal(t, "p1_ontology_animals", o.Descriptor.ID)
	require.Equal(t, model.OntologyMethodSAN, o.Descriptor.Method)

	m, err = Resolve(p, attr, "Path-based")
	require.NoError(t, err)
	o = m.(Ontology)
	require.False(t, o.FeatureBased)
	require.Equal(t, "p1_ontology_animals_wup", o.Descriptor.ID)
	require.Equal(t, model.OntologyMethodWUP, o.Descriptor.Method)

	path := &model.AttributeSpec{Name: "kind", Type: model.TypeOntologyConcept, Similarity: "Path-based",
		Options: &model.AttributeOptions{Name: "animals"}}
	m, err = Resolve(p, path, "")
	require.NoError(t, err)
	require.Equal(t, "p1_ontology_animals", m.(Ontology).Descriptor.ID)
	m, err = Resolve(p, path, "Feature-based")
	require.NoError(t, err)
	require.Equal(t, "p1_ontology_animals_san", m.(Ontology).Descriptor.ID)
}

func TestDegrade(t *testing.T) {
	sem := Semantic{Model: model.ModelSBERT, Dimension: 768}
	require.Equal(t, Measure(MostSimilar{}), Degrade(sem, fakeCaps{}))
	require.Equal(t, Measure(sem), Degrade(sem, fakeCaps{model.ModelSBERT: true}))
	require.Equal(t, Measure(MostSimilar{}), Degrade(ArraySemantic{Model: model.ModelSBERT}, nil))
	require.Equal(t, Measure(Jaccard{}), Degrade(Jaccard{}, nil))
}

func TestParseScales(t *testing.T) {
	ms, err := ParseTimeScale("10d")
	require.NoError(t, err)
	require.Equal(t, 10*24*3600*1000.0, ms)
	ms, err = ParseTimeScale("2M")
	require.NoError(t, err)
	require.Equal(t, 60*24*3600*1000.0, ms)
	ms, err = ParseTimeScale("90m")
	require.NoError(t, err)
	require.Equal(t, 90*60*1000.0, ms)

	m, err := ParseDistanceScale("10km")
	require.NoError(t, err)
	require.Equal(t, 10000.0, m)
	m, err = ParseDistanceScale("5")
	require.NoError(t, err)
	require.Equal(t, 5.0, m)
	_, err = ParseDistanceScale("km")
	require.Error(t, err)
}
