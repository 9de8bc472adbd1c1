// Package env manages the lifecycle of an embedded scripting environment
// and the host values bound into it.
//
// An Env owns one script runtime instance, one cell table, and one type
// registry. The three are created together and torn down together; a fresh
// Env never references descriptors or finalizer state from a previous
// incarnation, even one reconstructed immediately at the same types.
//
// # Lifecycle
//
// An Env moves through three states: it is unusable before New, Active
// after New, and TornDown after Close. While Active:
//
//	e, _ := env.New(ctx)
//	e.BindType("Point", Point{}, cell.WithConstructor())
//	e.Set("origin", Point{})                  // owned copy
//	e.Eval(`var p = Point(); p.X = origin.X`) // script-side construction
//	e.Collect(true)                           // complete reclamation
//	e.Close()                                 // finalize everything owned
//
// Close finalizes every still-live owned cell exactly once, releases every
// shared holding, and never touches borrowed aliases. It is synchronous,
// unconditional, and idempotent.
//
// # Collection
//
// The bridge performs the reclamation the script runtime cannot: it marks
// every cell reachable from the runtime's global object graph (plus cells
// pinned by an active call), then finalizes the rest. Collect(true)
// guarantees complete reclamation of all currently-unreachable owned
// values before returning; Collect(false) performs a single incremental
// pass. Allocation pressure triggers an incremental pass automatically at
// the next safe point.
//
// Values that escape into closure captures without being reachable from a
// global survive only while the enclosing call is active; hosts that need
// them longer must keep them reachable from a global or hold them
// host-side.
//
// All boundary operations and collection follow a single-threaded
// cooperative model: one logical thread of control drives the Env.
package env
