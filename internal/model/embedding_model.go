package model

// EmbeddingModel names a text vectoriser the engine can call.
type EmbeddingModel string

const (
	ModelUSE            EmbeddingModel = "USE"
	ModelSBERT          EmbeddingModel = "SBERT"
	ModelAnglEMatching  EmbeddingModel = "AnglE-matching"
	ModelAnglERetrieval EmbeddingModel = "AnglE-retrieval"
)

func (m EmbeddingModel) DefaultDimension() int {
	switch m {
	case ModelUSE:
		return 512
	case ModelSBERT:
		return 768
	case ModelAnglEMatching, ModelAnglERetrieval:
		return 1024
	}
	return 0
}

func EmbeddingModels() []EmbeddingModel {
	return []EmbeddingModel{ModelUSE, ModelSBERT, ModelAnglEMatching, ModelAnglERetrieval}
}
