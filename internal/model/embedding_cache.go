package model

// EmbeddingCache is a persisted vector for one (model, task, text) triple.
type EmbeddingCache struct {
	ModelName   string    `json:"model_name"`
	TaskType    string    `json:"task_type"`
	ContentHash string    `json:"content_hash"`
	Dimension   int       `json:"dimension"`
	Embedding   []float32 `json:"embedding"`
	Ctime       int64     `json:"ctime"`
}
