package similarity

import (
	"strings"

	"github.com/RGU-Computing/clood/internal/model"
)

// Kind is the closed set of local similarity measures.
type Kind int

const (
	KindNone Kind = iota
	KindEqual
	KindEqualIgnoreCase
	KindMostSimilar
	KindMcSherryMore
	KindMcSherryLess
	KindInrecaMore
	KindInrecaLess
	KindInterval
	KindNearestNumber
	KindNearestDate
	KindNearestLocation
	KindEnumDistance
	KindQueryIntersection
	KindTable
	KindPathBased
	KindFeatureBased
	KindSemanticUSE
	KindSemanticSBERT
	KindSemanticAnglEMatching
	KindSemanticAnglERetrieval
	KindArraySBERT
	KindCosine
	KindJaccard
)

var labels = map[Kind]string{
	KindNone:                   "None",
	KindEqual:                  "Equal",
	KindEqualIgnoreCase:        "EqualIgnoreCase",
	KindMostSimilar:            "BM25",
	KindMcSherryMore:           "McSherry More",
	KindMcSherryLess:           "McSherry Less",
	KindInrecaMore:             "INRECA More",
	KindInrecaLess:             "INRECA Less",
	KindInterval:               "Interval",
	KindNearestNumber:          "Nearest Number",
	KindNearestDate:            "Nearest Date",
	KindNearestLocation:        "Nearest Location",
	KindEnumDistance:           "EnumDistance",
	KindQueryIntersection:      "Query Intersection",
	KindTable:                  "Table",
	KindPathBased:              "Path-based",
	KindFeatureBased:           "Feature-based",
	KindSemanticUSE:            "Semantic USE",
	KindSemanticSBERT:          "Semantic SBERT",
	KindSemanticAnglEMatching:  "Semantic AnglE-matching",
	KindSemanticAnglERetrieval: "Semantic AnglE-retrieval",
	KindArraySBERT:             "Array SBERT",
	KindCosine:                 "Cosine",
	KindJaccard:                "Jaccard",
}

var byLabel = func() map[string]Kind {
	out := make(map[string]Kind, len(labels)+8)
	for k, label := range labels {
		out[normalizeLabel(label)] = k
	}
	out[normalizeLabel("MostSimilar")] = KindMostSimilar
	out[normalizeLabel("Array")] = KindJaccard
	out[normalizeLabel("ClosestDate")] = KindNearestDate
	out[normalizeLabel("ClosestNumber")] = KindNearestNumber
	out[normalizeLabel("ClosestLocation")] = KindNearestLocation
	return out
}()

func normalizeLabel(label string) string {
	return strings.ToLower(strings.Join(strings.Fields(label), ""))
}

// Parse maps a wire label onto a Kind. Labels the engine does not know
// resolve to KindMostSimilar.
func Parse(label string) Kind {
	if k, ok := byLabel[normalizeLabel(label)]; ok {
		return k
	}
	return KindMostSimilar
}

func (k Kind) String() string {
	if label, ok := labels[k]; ok {
		return label
	}
	return "Unknown"
}

// EmbeddingModel reports the vectoriser a measure depends on.
func (k Kind) EmbeddingModel() (model.EmbeddingModel, bool) {
	switch k {
	case KindSemanticUSE:
		return model.ModelUSE, true
	case KindSemanticSBERT, KindArraySBERT:
		return model.ModelSBERT, true
	case KindSemanticAnglEMatching:
		return model.ModelAnglEMatching, true
	case KindSemanticAnglERetrieval:
		return model.ModelAnglERetrieval, true
	}
	return "", false
}

// Vectorised reports whether stored values take the {name, rep} shape.
func (k Kind) Vectorised() bool {
	switch k {
	case KindSemanticUSE, KindSemanticSBERT, KindSemanticAnglEMatching, KindSemanticAnglERetrieval, KindArraySBERT:
		return true
	}
	return false
}

func (k Kind) Ontology() bool {
	return k == KindPathBased || k == KindFeatureBased
}
