package records

import (
	"context"

	"github.com/google/uuid"

	"github.com/JaimeStill/sdgindex/internal/labels"
	"github.com/JaimeStill/sdgindex/pkg/pagination"
)

// System defines the public contract for record domain operations.
type System interface {
	Handler() *Handler

	// Ingest routes the candidates, checks for a duplicate, and stores the record
	// with its mappings in one transaction. A duplicate without Force yields a
	// result carrying Conflict and no error.
	Ingest(ctx context.Context, in Ingestion, privileged bool) (*IngestResult, error)

	List(
		ctx context.Context,
		page pagination.PageRequest,
		filters Filters,
	) (*pagination.PageResult[Record], error)

	Find(ctx context.Context, id uuid.UUID) (*Record, error)

	// Search returns approved records carrying every label in set, newest first
	// then by title. An empty set returns every approved record.
	Search(ctx context.Context, set labels.Set) ([]Record, error)

	// LabelCounts returns the number of approved records per label, one entry
	// for each label 1..16 in ascending order.
	LabelCounts(ctx context.Context) ([]LabelCount, error)

	Dashboard(ctx context.Context) (*Dashboard, error)
}
