package catalog

import (
	"errors"
	"fmt"
)

// APIError is a non-2xx response from the storefront API.
type APIError struct {
	Op     string
	Status int
	Body   string
}

func (e *APIError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("catalog %s: status %d: %s", e.Op, e.Status, e.Body)
	}
	return fmt.Sprintf("catalog %s: status %d", e.Op, e.Status)
}

// Retryable reports whether the failure is a transient upstream condition.
// Only gateway/unavailable classes qualify; auth and not-found never do.
func (e *APIError) Retryable() bool {
	switch e.Status {
	case 502, 503, 504:
		return true
	}
	return false
}

// transportError wraps a failure to complete the HTTP exchange at all
// (connection refused, timeout). Always retryable.
type transportError struct{ err error }

func (e *transportError) Error() string { return "catalog transport: " + e.err.Error() }
func (e *transportError) Unwrap() error { return e.err }

// Retryable classifies an error from any catalog operation. Transport
// failures and 502/503/504 responses are transient; everything else is
// permanent for this run.
func Retryable(err error) bool {
	var te *transportError
	if errors.As(err, &te) {
		return true
	}
	var ae *APIError
	if errors.As(err, &ae) {
		return ae.Retryable()
	}
	return false
}
