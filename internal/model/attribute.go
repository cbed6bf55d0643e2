package model

import "strings"

type ValueType string

const (
	TypeString          ValueType = "String"
	TypeText            ValueType = "Text"
	TypeKeyword         ValueType = "Keyword"
	TypeInteger         ValueType = "Integer"
	TypeFloat           ValueType = "Float"
	TypeBoolean         ValueType = "Boolean"
	TypeDate            ValueType = "Date"
	TypeLocation        ValueType = "Location"
	TypeCategorical     ValueType = "Categorical"
	TypeOntologyConcept ValueType = "Ontology Concept"
	TypeObject          ValueType = "Object"
	TypeArray           ValueType = "Array"
)

// Normalize maps legacy spellings onto the canonical labels.
func (t ValueType) Normalize() ValueType {
	switch strings.ToLower(strings.ReplaceAll(string(t), " ", "")) {
	case "ontologyconcept":
		return TypeOntologyConcept
	case "enum":
		return TypeCategorical
	}
	return t
}

func (t ValueType) IsNumeric() bool {
	return t == TypeInteger || t == TypeFloat
}

type AttributeSpec struct {
	Name       string            `json:"name"`
	Type       ValueType         `json:"type"`
	Similarity string            `json:"similarity"`
	Weight     float64           `json:"weight"`
	Strategy   string            `json:"strategy,omitempty"`
	Options    *AttributeOptions `json:"options,omitempty"`
}

// AttributeOptions is the union of per-measure settings. Pointer fields keep
// track of which keys a client actually supplied.
type AttributeOptions struct {
	Min          *float64                      `json:"min,omitempty"`
	Max          *float64                      `json:"max,omitempty"`
	Interval     *float64                      `json:"interval,omitempty"`
	Jump         *float64                      `json:"jump,omitempty"`
	NScale       *float64                      `json:"nscale,omitempty"`
	NDecay       *float64                      `json:"ndecay,omitempty"`
	DScale       *string                       `json:"dscale,omitempty"`
	DDecay       *float64                      `json:"ddecay,omitempty"`
	LScale       *string                       `json:"lscale,omitempty"`
	LDecay       *float64                      `json:"ldecay,omitempty"`
	Values       []string                      `json:"values,omitempty"`
	SimGrid      map[string]map[string]float64 `json:"sim_grid,omitempty"`
	Dimension    int                           `json:"dimension,omitempty"`
	Name         string                        `json:"name,omitempty"`
	Sources      []OntologySource              `json:"sources,omitempty"`
	Root         string                        `json:"root,omitempty"`
	RelationType string                        `json:"relation_type,omitempty"`
}

func Float(v float64) *float64 {
	return &v
}

func String(v string) *string {
	return &v
}
