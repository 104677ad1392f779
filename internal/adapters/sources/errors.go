package sources

import (
	"errors"
	"fmt"
)

// Sentinel kinds for source errors.
var (
	// ErrRateLimited means the client's request window is exhausted and
	// waiting it out is not feasible.
	ErrRateLimited = errors.New("rate limited")

	// ErrUnavailable means every unit attempted against a source failed.
	ErrUnavailable = errors.New("data source unavailable")

	// ErrMalformedPayload means the provider response did not match the
	// expected shape.
	ErrMalformedPayload = errors.New("malformed payload")

	// ErrMissingAPIKey is a configuration error raised before any fetch.
	ErrMissingAPIKey = errors.New("missing API key")
)

// SourceError wraps a provider failure with the unit identity and, when
// available, the HTTP status the provider returned.
type SourceError struct {
	Source     string
	Unit       string
	StatusCode int
	Err        error
}

func (e *SourceError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s %s: http %d: %v", e.Source, e.Unit, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Source, e.Unit, e.Err)
}

func (e *SourceError) Unwrap() error { return e.Err }
