package cell

import (
	"reflect"
	"sync"

	scriptbridge "github.com/wippyai/script-bridge"
	"github.com/wippyai/script-bridge/errors"
)

var finalizableType = reflect.TypeOf((*scriptbridge.Finalizable)(nil)).Elem()

// Descriptor holds the per-type metadata needed to allocate and finalize
// bound values: size, alignment, the destruction entry point, and an
// optional declared base for method lookup through a base-qualified
// binding. Descriptors belong to exactly one Registry; a fresh environment
// incarnation never sees descriptors of a previous one.
type Descriptor struct {
	// Type is the concrete host type (never a pointer type).
	Type reflect.Type
	// Name is the script-visible name, or the Go type string for
	// descriptors created implicitly on first offer.
	Name string
	// Size and Align describe the storage block for owned cells. They are
	// informational: allocation goes through reflect.New, which lays the
	// block out itself.
	Size  uintptr
	Align int

	finalize      func(ptr any)
	base          *Descriptor
	baseFieldIdx  []int
	constructible bool
	implicit      bool
}

// Base returns the declared base descriptor, or nil.
func (d *Descriptor) Base() *Descriptor {
	return d.base
}

// Constructible reports whether a zero-argument constructor is exposed to
// scripts for this type.
func (d *Descriptor) Constructible() bool {
	return d.constructible
}

// Implicit reports whether the descriptor was created on first offer
// rather than by an explicit registration.
func (d *Descriptor) Implicit() bool {
	return d.implicit
}

// Finalizer returns the destruction entry point for this type. It was
// resolved at registration time from the concrete type: invocation goes
// through the value's own method set, so the most-derived Finalize runs
// even when the cell was declared through a base-qualified descriptor.
func (d *Descriptor) Finalizer() func(ptr any) {
	return d.finalize
}

// BaseField returns the field index path of the embedded declared base
// within Type, or nil.
func (d *Descriptor) BaseField() []int {
	return d.baseFieldIdx
}

func newDescriptor(name string, t reflect.Type, implicit bool) *Descriptor {
	d := &Descriptor{
		Type:     t,
		Name:     name,
		Size:     t.Size(),
		Align:    t.Align(),
		implicit: implicit,
	}
	if reflect.PointerTo(t).Implements(finalizableType) {
		d.finalize = func(ptr any) {
			ptr.(scriptbridge.Finalizable).Finalize()
		}
	} else {
		d.finalize = func(any) {}
	}
	return d
}

// RegisterOption configures a type registration.
type RegisterOption func(*registerConfig)

type registerConfig struct {
	base          any
	constructible bool
}

// WithBase declares a base type for the registered type. The base must
// already be registered in the same environment and must be embedded in
// the derived struct. Method and field lookup on bound values falls back
// through the base chain.
func WithBase(prototype any) RegisterOption {
	return func(c *registerConfig) {
		c.base = prototype
	}
}

// WithConstructor exposes a zero-argument constructor for the type as a
// script-callable. Each call allocates a fresh boundary-owned instance.
func WithConstructor() RegisterOption {
	return func(c *registerConfig) {
		c.constructible = true
	}
}

// Registry is the per-environment descriptor registry. It is created
// empty for every environment incarnation and discarded with it.
type Registry struct {
	byType map[reflect.Type]*Descriptor
	byName map[string]*Descriptor
	mu     sync.RWMutex
	closed bool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byType: make(map[reflect.Type]*Descriptor),
		byName: make(map[string]*Descriptor),
	}
}

// Register creates the descriptor for a host type. It is idempotent per
// environment: registering the same name and type again returns the
// existing descriptor. Conflicting registrations fail with a setup error
// and leave previously bound types untouched.
func (r *Registry) Register(name string, prototype any, opts ...RegisterOption) (*Descriptor, error) {
	var cfg registerConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	t, err := concreteType(prototype)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, errors.Closed(errors.PhaseBind)
	}

	if existing, ok := r.byName[name]; ok {
		if existing.Type != t {
			return nil, errors.Duplicate(name, t.String())
		}
		return existing, nil
	}
	if existing, ok := r.byType[t]; ok && !existing.implicit {
		return nil, errors.Registration(name, "host type "+t.String()+" already bound as "+existing.Name)
	}

	d := newDescriptor(name, t, false)
	d.constructible = cfg.constructible

	if cfg.base != nil {
		bt, err := concreteType(cfg.base)
		if err != nil {
			return nil, err
		}
		bd, ok := r.byType[bt]
		if !ok || bd.implicit {
			return nil, errors.UnknownType(errors.PhaseBind, bt.String())
		}
		idx, ok := embeddedField(t, bt)
		if !ok {
			return nil, errors.Registration(name, "declared base "+bt.String()+" is not embedded in "+t.String())
		}
		d.base = bd
		d.baseFieldIdx = idx
	}

	r.byName[name] = d
	r.byType[t] = d
	return d, nil
}

// Lookup returns the descriptor explicitly or implicitly registered for a
// concrete type.
func (r *Registry) Lookup(t reflect.Type) (*Descriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.byType[t]
	return d, ok
}

// LookupName returns the descriptor registered under a script-visible name.
func (r *Registry) LookupName(name string) (*Descriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.byName[name]
	return d, ok
}

// Descriptor returns the descriptor for a concrete type, creating an
// implicit one on first offer. Unbound host types still cross the
// boundary; they simply expose no script-visible name or constructor.
func (r *Registry) Descriptor(t reflect.Type) (*Descriptor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, errors.Closed(errors.PhaseOffer)
	}
	if d, ok := r.byType[t]; ok {
		return d, nil
	}
	d := newDescriptor(t.String(), t, true)
	r.byType[t] = d
	return d, nil
}

// Len returns the number of registered descriptors, implicit included.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byType)
}

// Close discards the registry. Subsequent registrations and offers fail.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	r.byType = nil
	r.byName = nil
}

func concreteType(prototype any) (reflect.Type, error) {
	if prototype == nil {
		return nil, errors.InvalidInput(errors.PhaseBind, "nil prototype")
	}
	t := reflect.TypeOf(prototype)
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t, nil
}

func embeddedField(t, base reflect.Type) ([]int, bool) {
	if t.Kind() != reflect.Struct {
		return nil, false
	}
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if f.Anonymous && f.Type == base {
			return f.Index, true
		}
	}
	return nil, false
}
