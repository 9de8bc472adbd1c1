package ownership

import "sync/atomic"

// Hooks carries optional instrumentation callbacks invoked by the boundary.
// All fields may be nil, and a nil *Hooks disables instrumentation
// entirely. The boundary guarantees exactly one Copy per copied value and
// exactly one Finalize per owned instance.
type Hooks struct {
	// OnCopy is invoked once per value copied into boundary-owned storage.
	// ptr is the address of the fresh copy.
	OnCopy func(ptr any)

	// OnFinalize is invoked once per owned instance when the collector or
	// teardown destroys it. ptr is the storage address being finalized.
	OnFinalize func(ptr any)

	// OnAcquire is invoked when the boundary takes a share of an
	// externally reference-counted value; count is the count after.
	OnAcquire func(count int64)

	// OnRelease is invoked when the boundary releases its share; count is
	// the count after.
	OnRelease func(count int64)
}

// Copy invokes OnCopy if set. Safe on a nil receiver.
func (h *Hooks) Copy(ptr any) {
	if h != nil && h.OnCopy != nil {
		h.OnCopy(ptr)
	}
}

// Finalize invokes OnFinalize if set. Safe on a nil receiver.
func (h *Hooks) Finalize(ptr any) {
	if h != nil && h.OnFinalize != nil {
		h.OnFinalize(ptr)
	}
}

// Acquire invokes OnAcquire if set. Safe on a nil receiver.
func (h *Hooks) Acquire(count int64) {
	if h != nil && h.OnAcquire != nil {
		h.OnAcquire(count)
	}
}

// Release invokes OnRelease if set. Safe on a nil receiver.
func (h *Hooks) Release(count int64) {
	if h != nil && h.OnRelease != nil {
		h.OnRelease(count)
	}
}

// Counters tallies boundary constructions and finalizations. Use Hooks()
// to install it on an environment.
type Counters struct {
	Copies        atomic.Int64
	Finalizations atomic.Int64
}

// Hooks returns instrumentation hooks that feed the counters.
func (c *Counters) Hooks() *Hooks {
	return &Hooks{
		OnCopy:     func(any) { c.Copies.Add(1) },
		OnFinalize: func(any) { c.Finalizations.Add(1) },
	}
}
