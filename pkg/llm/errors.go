package llm

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
)

// StatusError is a non-200 provider response.
type StatusError struct {
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("llm provider error (status %d): %s", e.Status, e.Body)
}

// Retryable reports whether an error is worth retrying: rate limits,
// provider 5xx, and network failures. Request construction and 4xx errors
// are not.
func Retryable(err error) bool {
	if err == nil {
		return false
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Status == http.StatusTooManyRequests ||
			statusErr.Status >= http.StatusInternalServerError
	}

	var urlErr *url.Error
	return errors.As(err, &urlErr)
}
