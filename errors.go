package engram

import "errors"

// Error kinds per the store/engine contract. Use errors.Is to test for these.
var (
	// ErrInvalidInput marks a caller error: empty content, unknown type,
	// negative importance, or a negative consolidation time step.
	ErrInvalidInput = errors.New("engram: invalid input")

	// ErrNotFound marks a missing entry: GetEntry, UpdateEntry and
	// DeleteEntry return it for an unknown id. Hebbian lookups (GetAssoc)
	// report a missing pair as nil instead.
	ErrNotFound = errors.New("engram: not found")

	// ErrStoreError wraps an underlying persistence failure.
	ErrStoreError = errors.New("engram: store error")

	// ErrConsistencyViolation marks a detected invariant break (e.g. a
	// one-way associative edge). Each Consolidate pass self-heals by deleting
	// the half-edge and logging this error; it is not returned to callers.
	ErrConsistencyViolation = errors.New("engram: consistency violation")
)
