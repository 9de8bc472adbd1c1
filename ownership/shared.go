package ownership

import (
	"sync/atomic"

	scriptbridge "github.com/wippyai/script-bridge"
)

// SharedHandle is the mode-agnostic view of an externally reference-counted
// value. The boundary holds exactly one share per bound cell; release is
// not destruction until the count reaches zero.
type SharedHandle interface {
	// Acquire increments the external use count.
	Acquire()

	// Release decrements the external use count and reports whether this
	// release destroyed the underlying value.
	Release() bool

	// UseCount returns the current external use count. Counts observed
	// through the external handle and through the boundary agree at any
	// quiescent point; there is no shadow count.
	UseCount() int64

	// Unwrap returns a pointer to the underlying value.
	Unwrap() any
}

// SharedOf wraps a host value under an external reference count. The zero
// value is not usable; construct with NewShared.
type SharedOf[T any] struct {
	value *T
	count atomic.Int64
}

// NewShared creates a shared-ownership handle holding v with a use count
// of one (the caller's share).
func NewShared[T any](v T) *SharedOf[T] {
	s := &SharedOf[T]{value: &v}
	s.count.Store(1)
	return s
}

// Acquire increments the use count.
func (s *SharedOf[T]) Acquire() {
	s.count.Add(1)
}

// Release decrements the use count. At zero the underlying value is
// destroyed: its Finalize method runs if it has one, exactly once.
func (s *SharedOf[T]) Release() bool {
	n := s.count.Add(-1)
	if n > 0 {
		return false
	}
	if n < 0 {
		panic("ownership: shared handle over-released")
	}
	v := s.value
	s.value = nil
	if f, ok := any(v).(scriptbridge.Finalizable); ok {
		f.Finalize()
	}
	return true
}

// UseCount returns the current use count.
func (s *SharedOf[T]) UseCount() int64 {
	return s.count.Load()
}

// Unwrap returns a pointer to the underlying value, or nil after
// destruction.
func (s *SharedOf[T]) Unwrap() any {
	if s.value == nil {
		return (*T)(nil)
	}
	return s.value
}

// Value returns the typed pointer to the underlying value.
func (s *SharedOf[T]) Value() *T {
	return s.value
}
