// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "errors"

// Error taxonomy shared by the orchestrator, the waterfall manager and the
// source adapters. Adapters wrap these with context; callers test with errors.Is.
var (
	// ErrInvalidQuery is returned by search when the query has no usable term.
	ErrInvalidQuery = errors.New("invalid query")

	// ErrInvalidRequest is returned by resolve when the request has no document id.
	ErrInvalidRequest = errors.New("invalid full-text request")

	// ErrSourceUnavailable marks a source that failed (network, 5xx, bad payload).
	ErrSourceUnavailable = errors.New("source unavailable")

	// ErrSourceEmpty marks a source that answered but had nothing for the query.
	ErrSourceEmpty = errors.New("source returned no records")

	// ErrSourceTimeout marks a source call that exceeded its deadline.
	ErrSourceTimeout = errors.New("source timed out")

	// ErrRateLimited marks a source that refused the call due to rate limits (HTTP 429).
	ErrRateLimited = errors.New("rate limited")

	// ErrNotFound marks a definitive "this source does not have it".
	ErrNotFound = errors.New("not found")
)
