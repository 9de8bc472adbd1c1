package cell

import (
	"reflect"
	"sync"

	"github.com/wippyai/script-bridge/errors"
	"github.com/wippyai/script-bridge/ownership"
)

// Handle is an opaque reference to a cell in a table.
// Handle 0 is reserved and always invalid.
type Handle uint32

// EventType for cell lifecycle notifications.
type EventType uint8

const (
	// EventCreated fires when a cell is allocated.
	EventCreated EventType = iota
	// EventFinalized fires when an owned cell's destructor ran.
	EventFinalized
	// EventReleased fires when a cell is dropped without direct
	// destruction: a borrowed alias removed or a shared holding released.
	EventReleased
)

// Event represents a cell lifecycle event.
type Event struct {
	Ptr    any
	Handle Handle
	Mode   ownership.Mode
	Type   EventType
}

// Observer receives notifications about cell lifecycle events.
type Observer interface {
	OnCellEvent(Event)
}

type entry struct {
	finalize func()
	ptr      any
	shared   ownership.SharedHandle
	desc     *Descriptor
	mode     ownership.Mode
	valid    bool
}

// Table is the boundary cell table: slice storage with a free list, so
// handles stay dense across the allocate/finalize churn of a collector.
type Table struct {
	entries   []entry
	freeList  []Handle
	observers []Observer
	hooks     *ownership.Hooks
	obsMu     sync.RWMutex
	mu        sync.Mutex
	closed    bool
}

// NewTable creates an empty cell table. hooks may be nil.
func NewTable(hooks *ownership.Hooks) *Table {
	return &Table{
		entries:  make([]entry, 0, 64),
		freeList: make([]Handle, 0, 16),
		hooks:    hooks,
	}
}

// Allocate creates the cell for a classified value. For Copied mode it
// allocates fresh storage sized to the descriptor's type and copies the
// value exactly once; for the Borrowed modes it records only the address;
// for Shared mode it takes one share of the external count. The finalizer
// entry captures everything it needs here and never consults the
// environment again.
func (t *Table) Allocate(desc *Descriptor, cl ownership.Classified) (Handle, error) {
	var e entry
	e.mode = cl.Mode
	e.desc = desc
	e.valid = true

	switch cl.Mode {
	case ownership.Copied:
		rv := reflect.ValueOf(cl.Value)
		if desc == nil || desc.Type != rv.Type() {
			return 0, errors.New(errors.PhaseOffer, errors.KindTypeMismatch).
				GoType(rv.Type().String()).
				Detail("descriptor does not match offered value").
				Build()
		}
		storage := reflect.New(desc.Type)
		storage.Elem().Set(rv)
		ptr := storage.Interface()
		t.hooks.Copy(ptr)
		e.ptr = ptr
		e.finalize = ownedFinalizer(desc.Finalizer(), ptr, t.hooks)

	case ownership.BorrowedPointer, ownership.BorrowedReference:
		e.ptr = cl.Value

	case ownership.Shared:
		sh := cl.Shared
		sh.Acquire()
		t.hooks.Acquire(sh.UseCount())
		e.ptr = sh.Unwrap()
		e.shared = sh
		hooks := t.hooks
		e.finalize = func() {
			sh.Release()
			hooks.Release(sh.UseCount())
		}

	default:
		return 0, errors.InvalidInput(errors.PhaseOffer, "invalid ownership mode")
	}

	h, err := t.insert(e)
	if err != nil {
		return 0, err
	}
	t.notify(Event{Type: EventCreated, Handle: h, Mode: e.mode, Ptr: e.ptr})
	return h, nil
}

// AllocateNew creates an owned cell holding a zero value of the
// descriptor's type. This is the storage path behind script-callable
// constructors; it counts as one construction.
func (t *Table) AllocateNew(desc *Descriptor) (Handle, error) {
	storage := reflect.New(desc.Type)
	ptr := storage.Interface()
	t.hooks.Copy(ptr)

	e := entry{
		mode:     ownership.Copied,
		desc:     desc,
		ptr:      ptr,
		finalize: ownedFinalizer(desc.Finalizer(), ptr, t.hooks),
		valid:    true,
	}
	h, err := t.insert(e)
	if err != nil {
		return 0, err
	}
	t.notify(Event{Type: EventCreated, Handle: h, Mode: ownership.Copied, Ptr: ptr})
	return h, nil
}

// ownedFinalizer builds the self-contained destruction routine for an
// owned cell: destructor entry point, storage address, and hooks are all
// captured now, because the registering environment may be gone when the
// collector runs.
func ownedFinalizer(fin func(any), ptr any, hooks *ownership.Hooks) func() {
	return func() {
		fin(ptr)
		hooks.Finalize(ptr)
	}
}

// Ptr returns the storage address behind a handle: the boundary-owned
// copy for owned cells (aliasing the live object, not a further copy),
// the original host address for borrowed cells, the shared value for
// shared cells.
func (t *Table) Ptr(h Handle) (any, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.lookup(h)
	if !ok {
		return nil, false
	}
	return e.ptr, true
}

// Mode returns the immutable ownership mode of a handle.
func (t *Table) Mode(h Handle) (ownership.Mode, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.lookup(h)
	if !ok {
		return 0, false
	}
	return e.mode, true
}

// Descriptor returns the type descriptor of a handle.
func (t *Table) Descriptor(h Handle) (*Descriptor, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.lookup(h)
	if !ok {
		return nil, false
	}
	return e.desc, true
}

// Shared returns the external control block of a Shared cell.
func (t *Table) Shared(h Handle) (ownership.SharedHandle, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.lookup(h)
	if !ok || e.mode != ownership.Shared {
		return nil, false
	}
	return e.shared, true
}

// Sweep finalizes every cell the reachable predicate does not cover.
// Entries are invalidated before any finalizer runs, so a re-entrant
// collection pass started from inside a finalizer cannot finalize the
// same instance twice. Returns the number of cells dropped.
func (t *Table) Sweep(reachable func(Handle) bool) int {
	victims := t.reap(func(h Handle, e *entry) bool {
		return reachable == nil || !reachable(h)
	})
	t.run(victims)
	return len(victims)
}

// Close finalizes every remaining owned cell exactly once, releases every
// shared holding, drops borrowed aliases untouched, and stops accepting
// operations. It is synchronous and unconditional.
func (t *Table) Close() error {
	victims := t.reap(func(Handle, *entry) bool { return true })

	t.mu.Lock()
	t.closed = true
	t.entries = nil
	t.freeList = nil
	t.mu.Unlock()

	t.run(victims)
	return nil
}

// Len returns the number of live cells.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := 0
	for i := range t.entries {
		if t.entries[i].valid {
			n++
		}
	}
	return n
}

// Each iterates over live cells.
func (t *Table) Each(fn func(h Handle, desc *Descriptor, mode ownership.Mode, ptr any) bool) {
	type item struct {
		h Handle
		e entry
	}
	t.mu.Lock()
	snapshot := make([]item, 0, len(t.entries))
	for i := range t.entries {
		if t.entries[i].valid {
			snapshot = append(snapshot, item{Handle(i + 1), t.entries[i]})
		}
	}
	t.mu.Unlock()

	for _, s := range snapshot {
		if !fn(s.h, s.e.desc, s.e.mode, s.e.ptr) {
			break
		}
	}
}

// Subscribe adds an observer for lifecycle events.
func (t *Table) Subscribe(o Observer) {
	t.obsMu.Lock()
	defer t.obsMu.Unlock()
	t.observers = append(t.observers, o)
}

// Unsubscribe removes an observer.
func (t *Table) Unsubscribe(o Observer) {
	t.obsMu.Lock()
	defer t.obsMu.Unlock()
	for i, obs := range t.observers {
		if obs == o {
			t.observers = append(t.observers[:i], t.observers[i+1:]...)
			return
		}
	}
}

type victim struct {
	finalize func()
	ptr      any
	handle   Handle
	mode     ownership.Mode
}

// reap invalidates matching entries under the lock and returns their
// captured finalizers to run outside it.
func (t *Table) reap(match func(Handle, *entry) bool) []victim {
	t.mu.Lock()
	defer t.mu.Unlock()

	var victims []victim
	for i := range t.entries {
		e := &t.entries[i]
		if !e.valid {
			continue
		}
		h := Handle(i + 1)
		if !match(h, e) {
			continue
		}
		if e.mode == ownership.Copied && e.finalize == nil {
			// Bound-type setup bug, not a recoverable condition.
			panic("cell: finalizer entry missing for owned cell")
		}
		victims = append(victims, victim{
			finalize: e.finalize,
			ptr:      e.ptr,
			handle:   h,
			mode:     e.mode,
		})
		e.valid = false
		e.finalize = nil
		e.ptr = nil
		e.shared = nil
		e.desc = nil
		t.freeList = append(t.freeList, h)
	}
	return victims
}

// run executes captured finalizers after the table mutation is complete.
// Borrowed aliases have no finalizer and are merely dropped.
func (t *Table) run(victims []victim) {
	for _, v := range victims {
		evt := EventReleased
		if v.finalize != nil {
			v.finalize()
			if v.mode == ownership.Copied {
				evt = EventFinalized
			}
		}
		t.notify(Event{Type: evt, Handle: v.handle, Mode: v.mode, Ptr: v.ptr})
	}
}

func (t *Table) insert(e entry) (Handle, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return 0, errors.Closed(errors.PhaseOffer)
	}
	if len(t.freeList) > 0 {
		h := t.freeList[len(t.freeList)-1]
		t.freeList = t.freeList[:len(t.freeList)-1]
		t.entries[h-1] = e
		return h, nil
	}
	t.entries = append(t.entries, e)
	return Handle(len(t.entries)), nil
}

func (t *Table) lookup(h Handle) (*entry, bool) {
	if h == 0 || int(h) > len(t.entries) {
		return nil, false
	}
	e := &t.entries[h-1]
	if !e.valid {
		return nil, false
	}
	return e, true
}

func (t *Table) notify(e Event) {
	t.obsMu.RLock()
	defer t.obsMu.RUnlock()
	for _, o := range t.observers {
		o.OnCellEvent(e)
	}
}
