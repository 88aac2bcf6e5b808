package types

import "errors"

// Sentinel errors shared across packages. Callers match with errors.Is.
var (
	// ErrNotFound signals an unknown record ID. Read paths generally
	// translate this into an empty result rather than a hard failure.
	ErrNotFound = errors.New("record not found")

	// ErrValidation signals malformed input: bad filters, out-of-range
	// importance, an unknown tier. The mutation is rejected with no
	// partial effect.
	ErrValidation = errors.New("validation failed")

	// ErrProviderUnavailable signals that an external provider call
	// failed or timed out. The store recovers locally via the fallback
	// embedder and never surfaces this from add or search.
	ErrProviderUnavailable = errors.New("provider unavailable")

	// ErrClosed signals an operation against a store that has been shut
	// down.
	ErrClosed = errors.New("store is closed")
)
