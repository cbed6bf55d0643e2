package model

type TypeOptions struct {
	Type            ValueType `json:"type"`
	SimilarityTypes []string  `json:"similarityTypes"`
	ReuseStrategy   []string  `json:"reuseStrategy"`
}

// GlobalConfig lists the measures and reuse strategies a client may offer per
// attribute type. Retrieval does not consult it.
type GlobalConfig struct {
	AttributeOptions []TypeOptions `json:"attributeOptions"`
}

func DefaultGlobalConfig() *GlobalConfig {
	return &GlobalConfig{AttributeOptions: []TypeOptions{
		{
			Type: TypeString,
			SimilarityTypes: []string{"Equal", "EqualIgnoreCase", "BM25", "Semantic USE", "Semantic SBERT",
				"Semantic AnglE-matching", "Semantic AnglE-retrieval", "Array", "Array SBERT", "None"},
			ReuseStrategy: []string{"Best Match"},
		},
		{
			Type: TypeInteger,
			SimilarityTypes: []string{"Equal", "Nearest Number", "McSherry More", "McSherry Less",
				"INRECA More", "INRECA Less", "Interval", "Array", "None"},
			ReuseStrategy: []string{"Best Match", "Maximum", "Minimum", "Mean", "Median", "Mode"},
		},
		{
			Type: TypeFloat,
			SimilarityTypes: []string{"Equal", "Nearest Number", "McSherry More", "McSherry Less",
				"INRECA More", "INRECA Less", "Interval", "Array", "None"},
			ReuseStrategy: []string{"Best Match", "Maximum", "Minimum", "Mean", "Median"},
		},
		{
			Type:            TypeCategorical,
			SimilarityTypes: []string{"Equal", "EqualIgnoreCase", "Table", "EnumDistance", "Query Intersection", "None"},
			ReuseStrategy:   []string{"Best Match", "Mode", "Minority"},
		},
		{
			Type:            TypeBoolean,
			SimilarityTypes: []string{"Equal", "None"},
			ReuseStrategy:   []string{"Best Match", "Maximum", "Minimum", "Mean", "Median"},
		},
		{Type: TypeDate, SimilarityTypes: []string{"Nearest Date", "None"}, ReuseStrategy: []string{"Best Match"}},
		{Type: TypeLocation, SimilarityTypes: []string{"Nearest Location", "None"}, ReuseStrategy: []string{"Best Match"}},
		{Type: TypeOntologyConcept, SimilarityTypes: []string{"Path-based", "Feature-based", "None"}, ReuseStrategy: []string{"Best Match"}},
		{
			Type:            TypeArray,
			SimilarityTypes: []string{"Jaccard", "Query Intersection", "Array SBERT", "Cosine", "None"},
			ReuseStrategy:   []string{"Best Match"},
		},
		{Type: TypeObject, SimilarityTypes: []string{"None"}, ReuseStrategy: []string{"Best Match"}},
	}}
}
