// Package ownership classifies host values offered at the script boundary.
//
// # Ownership Modes
//
// The bridge recognizes four ways a value can cross the boundary:
//
//	Copied             plain value; the boundary owns a copy and the
//	                   collector finalizes it
//	BorrowedPointer    *T; the script side holds a non-owning alias
//	BorrowedReference  Ref(&v); explicit borrow marker, never finalized
//	                   even though the call site looks value-like
//	Shared             *SharedOf[T]; ownership split via an external
//	                   reference count, release on collection
//
// Classification happens exactly once, when the value is offered, and is
// immutable for the handle's lifetime:
//
//	cl, err := ownership.Classify(myValue)      // Copied
//	cl, err := ownership.Classify(&myValue)     // BorrowedPointer
//	cl, err := ownership.Classify(ownership.Ref(&myValue))
//	cl, err := ownership.Classify(ownership.NewShared(myValue))
//
// # Shared Ownership
//
// SharedOf is the external reference-counting adapter. Boundary-side
// acquisition increments the count; collector-driven release decrements it.
// The underlying value is destroyed only when the count reaches zero, which
// may happen on either side of the boundary:
//
//	sh := ownership.NewShared(Conn{})   // count 1
//	env.Set("conn", sh)                 // count 2: boundary holds a share
//	env.Close()                         // count 1: released, not destroyed
//	sh.Release()                        // count 0: Finalize runs
//
// # Instrumentation
//
// Hooks carries optional observability callbacks invoked by the boundary:
// one OnCopy per copied value, one OnFinalize per owned instance. The nil
// Hooks is valid and disables all instrumentation.
package ownership
