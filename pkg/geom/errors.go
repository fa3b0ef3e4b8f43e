package geom

import "errors"

// Sentinel errors shared by the geometry, transform and scene layers.
var (
	// ErrInvalidGeometry is returned when a face or brep is constructed from
	// fewer than three vertices or from out-of-range vertex indices.
	ErrInvalidGeometry = errors.New("invalid geometry")

	// ErrVertexNotFound is returned by tolerance lookups that miss. Callers in
	// the transform path downgrade it to a warning and substitute a fallback.
	ErrVertexNotFound = errors.New("vertex not found")

	// ErrKernelOperationFailed wraps any failure reported by the solid-modeling
	// kernel. An orchestration that sees it leaves the scene untouched.
	ErrKernelOperationFailed = errors.New("kernel operation failed")
)
