package classifications

import (
	"context"

	"github.com/google/uuid"

	"github.com/wardenhq/warden/internal/learning"
	"github.com/wardenhq/warden/pkg/pagination"
)

// System defines the public contract for classification result operations.
// It also implements learning.ReviewSink so reviewer feedback recorded by
// the learning subsystem settles the corresponding result row.
type System interface {
	learning.ReviewSink

	Handler() *Handler

	List(
		ctx context.Context,
		page pagination.PageRequest,
		filters Filters,
	) (*pagination.PageResult[Classification], error)

	Find(ctx context.Context, id uuid.UUID) (*Classification, error)
	FindByDocument(ctx context.Context, documentID uuid.UUID) (*Classification, error)

	// Classify runs the pipeline synchronously and returns the stored
	// result. Progress is streamed through the session opened for the
	// document.
	Classify(ctx context.Context, cmd ClassifyCommand) (*Classification, error)

	// ClassifyBatch classifies documents concurrently. One item is
	// returned per requested document, in request order.
	ClassifyBatch(ctx context.Context, cmd BatchCommand) ([]BatchItem, error)

	// Delete removes a result row. The learning ledger is never touched.
	Delete(ctx context.Context, id uuid.UUID) error
}
