// Package errs holds the sentinel errors shared by services and handlers.
package errs

import "errors"

var (
	// ErrInvalidInput is returned for malformed requests or missing fields.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnauthenticated is returned when the caller has no valid credentials.
	ErrUnauthenticated = errors.New("unauthenticated")

	// ErrNotFound is returned when a requested resource does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned when a resource already exists.
	ErrConflict = errors.New("already exists")

	// ErrMisconfigured is returned when a required key or setting is missing.
	ErrMisconfigured = errors.New("service misconfigured")

	// ErrUpstream is returned when a third-party API call fails.
	ErrUpstream = errors.New("upstream failure")

	// ErrQuotaExceeded is returned when the YouTube API quota threshold is reached.
	ErrQuotaExceeded = errors.New("quota exceeded")

	// ErrRateLimited is returned when a caller exceeds the request rate.
	ErrRateLimited = errors.New("rate limited")
)

// Code returns the short machine-readable code used in JSON error bodies.
func Code(err error) string {
	switch {
	case errors.Is(err, ErrInvalidInput):
		return "invalid_request"
	case errors.Is(err, ErrUnauthenticated):
		return "unauthorized"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrQuotaExceeded):
		return "quota_exceeded"
	case errors.Is(err, ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, ErrMisconfigured):
		return "misconfigured"
	case errors.Is(err, ErrUpstream):
		return "upstream_error"
	default:
		return "internal_error"
	}
}

// FromCode returns the sentinel for a code produced by Code. Unknown codes
// map to ErrUpstream.
func FromCode(code string) error {
	switch code {
	case "invalid_request":
		return ErrInvalidInput
	case "unauthorized":
		return ErrUnauthenticated
	case "not_found":
		return ErrNotFound
	case "conflict":
		return ErrConflict
	case "quota_exceeded":
		return ErrQuotaExceeded
	case "rate_limited":
		return ErrRateLimited
	case "misconfigured":
		return ErrMisconfigured
	default:
		return ErrUpstream
	}
}
