package models

import "errors"

// Error kinds surfaced by the cache. Wrapped with context at call sites;
// callers match with errors.Is.
var (
	// ErrNotFound is returned by direct lookups and mutations addressing
	// an unknown key. A full resolver miss is not an error, only a Miss
	// result.
	ErrNotFound = errors.New("not found")

	// ErrQuotaExceeded is returned when a bounded store cannot accept a
	// write. The persistent adapter reacts with one eviction pass and a
	// single retry before surfacing it.
	ErrQuotaExceeded = errors.New("quota exceeded")

	// ErrStaleMetadata is returned when the metadata index references an
	// artifact whose backing blob is gone, e.g. after external deletion.
	ErrStaleMetadata = errors.New("stale metadata")

	// ErrTimeout is returned when a computation misses its deadline.
	// Distinct from ErrProvider so callers can tell "try again later"
	// from "this input is unsupported".
	ErrTimeout = errors.New("computation timed out")

	// ErrProvider is returned when the external translation collaborator
	// reports a failure after the retry budget is spent.
	ErrProvider = errors.New("provider failure")

	// ErrClosed is returned by components that have been shut down.
	ErrClosed = errors.New("cache closed")
)
