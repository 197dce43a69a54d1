package tensor

import "sync"

// Scope tracks tensors allocated while computing something so they can all be
// released together.
//
//	s := tensor.NewScope()
//	defer s.Close()
//	x := s.Track(backend.MatMul(w, a))
type Scope struct {
	mu      sync.Mutex
	tensors []*Tensor
	closed  bool
}

// NewScope creates an empty scope.
func NewScope() *Scope {
	return &Scope{}
}

// Track records t so it is released by Close, and returns t.
// Tracking into a closed scope releases t immediately.
func (s *Scope) Track(t *Tensor) *Tensor {
	if t == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		t.Release()
		return t
	}
	s.tensors = append(s.tensors, t)
	return t
}

// Len returns the number of tensors tracked so far.
func (s *Scope) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tensors)
}

// Close releases every tracked tensor, most recent first, and returns how
// many were released. Calling Close more than once is a no-op.
func (s *Scope) Close() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0
	}
	s.closed = true
	n := len(s.tensors)
	for i := n - 1; i >= 0; i-- {
		s.tensors[i].Release()
	}
	s.tensors = nil
	return n
}
