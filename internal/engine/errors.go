package engine

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrConcurrentInference is returned when Infer is called while another
// inference on the same engine is in progress. It is not fatal: the caller
// drops or defers the request.
var ErrConcurrentInference = errors.New("engine: inference already in progress")

// ShapeMismatchError reports parameter or input dimensions that do not chain.
// It is detected before any computation runs; the engine stays usable.
type ShapeMismatchError struct {
	Layer int    // Layer index, or -1 for the chain as a whole
	Kind  string // Which dimension disagrees (e.g. "input", "bias rows")
	Want  int
	Got   int
}

// Error implements the error interface.
func (e *ShapeMismatchError) Error() string {
	if e.Layer < 0 {
		return fmt.Sprintf("engine: shape mismatch: %s: want %d, got %d", e.Kind, e.Want, e.Got)
	}
	return fmt.Sprintf("engine: shape mismatch at layer %d: %s: want %d, got %d", e.Layer, e.Kind, e.Want, e.Got)
}

// BackendError wraps a failure raised inside a compute backend, either a
// panic from a kernel or a failed readback.
type BackendError struct {
	Backend string
	Err     error
}

// Error implements the error interface.
func (e *BackendError) Error() string {
	return fmt.Sprintf("engine: backend %s failed: %v", e.Backend, e.Err)
}

// Unwrap returns the underlying cause.
func (e *BackendError) Unwrap() error {
	return e.Err
}
