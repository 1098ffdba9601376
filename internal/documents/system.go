package documents

import (
	"context"
	"io"

	"github.com/google/uuid"

	"github.com/wardenhq/warden/pkg/pagination"
)

// System defines the public contract for document intake operations.
type System interface {
	Handler(maxUploadSize int64) *Handler

	List(
		ctx context.Context,
		page pagination.PageRequest,
		filters Filters,
	) (*pagination.PageResult[Document], error)

	Find(ctx context.Context, id uuid.UUID) (*Document, error)
	Create(ctx context.Context, cmd CreateCommand) (*Document, error)

	// Download streams the original uploaded bytes.
	Download(ctx context.Context, id uuid.UUID) (io.ReadCloser, *Document, error)

	// Content extracts the document into pipeline-ready blocks. Returns
	// ErrUnsupportedFormat when no registered extractor handles the format.
	Content(ctx context.Context, id uuid.UUID) (*Content, error)

	Delete(ctx context.Context, id uuid.UUID) error
}
