package domain

import "errors"

var (
	// ErrSourceUnavailable is returned when a source adapter fails or times out
	ErrSourceUnavailable = errors.New("source unavailable")

	// ErrUnknownSource is returned when a source identifier is not registered
	ErrUnknownSource = errors.New("unknown source")

	// ErrNoCandidates signals a legitimate empty result
	ErrNoCandidates = errors.New("no matching candidates")

	// ErrMalformedConstraint is returned for caller constraints that cannot be applied
	ErrMalformedConstraint = errors.New("malformed constraint")

	// ErrPipelineFailure wraps unexpected faults caught at the selection boundary
	ErrPipelineFailure = errors.New("selection pipeline failure")

	// ErrInvalidRequest is returned when request parameters are invalid
	ErrInvalidRequest = errors.New("invalid request parameters")

	// ErrRateLimited is returned when a vendor API rate limit is exceeded
	ErrRateLimited = errors.New("rate limit exceeded")

	// ErrCacheMiss is returned when data is not found in cache
	ErrCacheMiss = errors.New("cache miss")
)
