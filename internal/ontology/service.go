package ontology

import (
	"context"

	"github.com/RGU-Computing/clood/internal/model"
)

// Service is the grid store seen by the rest of the engine: built in process
// by a Builder or reached through a RemoteService.
type Service interface {
	// Preload builds the full grid of d, replacing any previous one, and
	// returns its row count.
	Preload(ctx context.Context, d model.OntologyDescriptor) (int, error)
	// Query returns the stored row of key. ErrNotFound when absent.
	Query(ctx context.Context, gridID, key string) (map[string]float64, error)
	// QueryOrBuild returns the row of key, computing and storing it first when
	// it is missing.
	QueryOrBuild(ctx context.Context, d model.OntologyDescriptor, key string) (map[string]float64, error)
	Status(ctx context.Context, gridID string) (model.GridStatus, error)
	Delete(ctx context.Context, gridID string) error
	DeleteByPrefix(ctx context.Context, prefix string) error
}
