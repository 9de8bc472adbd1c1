// Package cell provides the boundary cell table and finalizer registry.
//
// A cell is the storage block behind a script-visible handle. For owned
// (copied) values the cell holds a fresh boundary-allocated copy; for
// borrowed values it holds only the host address; for shared values it
// holds the external reference-count control block. Destruction and
// deallocation are a single collector-driven event.
//
// # Cell Table
//
// The Table maps integer handles to cells:
//
//	table := cell.NewTable(hooks)
//
//	// Allocate a cell for a classified value
//	h, err := table.Allocate(desc, classified)
//
//	// Alias the storage behind a handle
//	ptr, ok := table.Ptr(h)
//
//	// Finalize everything a sweep proved unreachable
//	n := table.Sweep(reachable)
//
// Handle 0 is reserved and always invalid.
//
// # Finalizer Registry
//
// The Registry holds one Descriptor per distinct host type per environment
// incarnation. A descriptor's finalizer entry is resolved at registration
// time from the concrete type and invoked through the value's own method
// set, so destruction dispatch is dynamic: a derived type registered with
// a declared base still runs its own Finalize. Finalizer entries capture
// everything they need when the cell is allocated; they never reach back
// into environment state, so a collector that runs after the registering
// environment was torn down and rebuilt cannot touch stale state.
//
// # Observers
//
// Register observers to track cell lifecycle events:
//
//	table.Subscribe(obs) // EventCreated, EventFinalized, EventReleased
package cell
