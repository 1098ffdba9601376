package learning

import (
	"errors"
	"net/http"
)

var (
	// ErrNotFound indicates no ledger entry exists for the document.
	ErrNotFound = errors.New("learning entry not found")
	// ErrDuplicate indicates a unique constraint violation on the ledger.
	ErrDuplicate = errors.New("learning entry already exists")
	// ErrInvalidFeedback indicates a feedback submission that cannot be
	// recorded, such as a correction without a corrected classification.
	ErrInvalidFeedback = errors.New("invalid feedback")
	// ErrNoSink indicates feedback arrived before the review sink was bound.
	ErrNoSink = errors.New("review sink not bound")
)

// MapHTTPStatus maps learning errors to HTTP status codes.
func MapHTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrDuplicate):
		return http.StatusConflict
	case errors.Is(err, ErrInvalidFeedback):
		return http.StatusBadRequest
	case errors.Is(err, ErrNoSink):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
