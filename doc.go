// Package scriptbridge bridges Go host values into an embedded scripting
// runtime while keeping ownership of every value explicit.
//
// Each value offered at the boundary is classified exactly once: the script
// runtime either takes ownership of a boundary-held copy (and finalizes it
// when it becomes unreachable), borrows a non-owning alias (and never
// finalizes it), or shares ownership through an external reference count
// (and releases, rather than destroys, on collection).
//
// # Architecture Overview
//
// The library is organized into several packages with distinct responsibilities:
//
//	scriptbridge/        Root package with the host-value contracts
//	├── env/             Environment lifecycle: bind, offer, collect, teardown
//	├── ownership/       Ownership classification and shared-handle adapter
//	├── cell/            Boundary cell table and finalizer registry
//	└── errors/          Structured error types for debugging
//
// # Quick Start
//
// Offer values to a scripting environment and let collection handle the rest:
//
//	e, err := env.New(ctx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer e.Close()
//
//	e.Set("config", Config{Workers: 4})    // boundary-owned copy
//	e.Set("registry", &hostRegistry)       // borrowed, never finalized
//
//	if _, err := e.Eval(`config.Workers`); err != nil {
//	    log.Fatal(err)
//	}
//	e.Collect(true)
//
// # Ownership Modes
//
// The four modes form a closed set (see the ownership package):
//
//	Copied             plain value offered; environment owns the copy
//	BorrowedPointer    *T offered; host keeps exclusive ownership
//	BorrowedReference  ownership.Ref(&v) offered; explicit borrow marker
//	Shared             *ownership.SharedOf[T] offered; external refcount
//
// Classification is immutable for the lifetime of a handle. Finalizers run
// exactly once per owned instance, never for borrowed values, and always
// before Environment teardown completes.
package scriptbridge
