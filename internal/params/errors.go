package params

import "fmt"

// LoadError reports that parameters could not be obtained: the transport was
// unreachable, returned an error status, or delivered malformed content.
// It is fatal to initialization.
type LoadError struct {
	Source string // Where the parameters came from (path, URL, or "parameters")
	Err    error  // Underlying cause
}

// Error implements the error interface.
func (e *LoadError) Error() string {
	return fmt.Sprintf("loading parameters from %s: %v", e.Source, e.Err)
}

// Unwrap returns the underlying cause.
func (e *LoadError) Unwrap() error {
	return e.Err
}
