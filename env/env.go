package env

import (
	"context"

	"github.com/dop251/goja"
	"github.com/dop251/goja_nodejs/console"
	"github.com/dop251/goja_nodejs/require"
	"go.uber.org/zap"

	"github.com/wippyai/script-bridge/cell"
	"github.com/wippyai/script-bridge/errors"
	"github.com/wippyai/script-bridge/ownership"
)

const defaultGCThreshold = 128

// Env is one incarnation of the embedded scripting environment. It owns
// the runtime instance, the cell table, and the type registry, and it is
// the only party allowed to drive collection.
type Env struct {
	vm       *goja.Runtime
	table    *cell.Table
	registry *cell.Registry
	log      *zap.Logger

	// wrapper identity maps: script object <-> cell handle
	wrappers map[*goja.Object]cell.Handle
	objs     map[cell.Handle]*goja.Object

	// cells allocated inside an active call stay pinned until the
	// outermost call returns
	callPins  map[cell.Handle]struct{}
	callDepth int

	allocs      int
	gcThreshold int

	done   chan struct{}
	closed bool
}

// Option configures a new environment.
type Option func(*config)

type config struct {
	log         *zap.Logger
	hooks       *ownership.Hooks
	gcThreshold int
	console     bool
}

// WithLogger sets the environment's logger. Defaults to a no-op logger.
func WithLogger(log *zap.Logger) Option {
	return func(c *config) { c.log = log }
}

// WithHooks installs instrumentation hooks on the boundary.
func WithHooks(h *ownership.Hooks) Option {
	return func(c *config) { c.hooks = h }
}

// WithGCThreshold sets the number of cell allocations that triggers an
// implicit collection pass at the next safe point.
func WithGCThreshold(n int) Option {
	return func(c *config) { c.gcThreshold = n }
}

// WithConsole enables the console and require modules in the runtime.
func WithConsole() Option {
	return func(c *config) { c.console = true }
}

// New constructs an Active environment: a fresh runtime, a fresh cell
// table, and a fresh registry, sharing nothing with any previous
// incarnation. ctx cancellation interrupts running scripts.
func New(ctx context.Context, opts ...Option) (*Env, error) {
	cfg := config{
		log:         zap.NewNop(),
		gcThreshold: defaultGCThreshold,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.gcThreshold <= 0 {
		cfg.gcThreshold = defaultGCThreshold
	}

	e := &Env{
		vm:          goja.New(),
		table:       cell.NewTable(cfg.hooks),
		registry:    cell.NewRegistry(),
		log:         cfg.log,
		wrappers:    make(map[*goja.Object]cell.Handle),
		objs:        make(map[cell.Handle]*goja.Object),
		callPins:    make(map[cell.Handle]struct{}),
		gcThreshold: cfg.gcThreshold,
		done:        make(chan struct{}),
	}
	e.table.Subscribe(e)

	if cfg.console {
		registry := new(require.Registry)
		registry.Enable(e.vm)
		console.Enable(e.vm)
	}

	if ctx != nil && ctx.Done() != nil {
		go func() {
			select {
			case <-ctx.Done():
				e.vm.Interrupt(ctx.Err())
			case <-e.done:
			}
		}()
	}

	e.log.Debug("environment active")
	return e, nil
}

// Close tears the environment down: every still-live owned cell is
// finalized exactly once, every shared holding is released, borrowed
// aliases are left untouched. Synchronous and unconditional; safe to call
// more than once.
func (e *Env) Close() error {
	if e.closed {
		return nil
	}
	e.closed = true
	close(e.done)

	live := e.table.Len()
	err := e.table.Close()
	e.registry.Close()
	e.wrappers = nil
	e.objs = nil
	e.callPins = nil

	e.log.Debug("environment torn down", zap.Int("finalized", live))
	return err
}

// Closed reports whether the environment has been torn down.
func (e *Env) Closed() bool {
	return e.closed
}

// BindType registers a host type under a script-visible name. Idempotent
// per environment instance; conflicting registrations fail with a setup
// error and leave prior bindings intact. With cell.WithConstructor the
// name is also bound as a zero-argument script callable that allocates a
// fresh boundary-owned instance per call.
func (e *Env) BindType(name string, prototype any, opts ...cell.RegisterOption) (*cell.Descriptor, error) {
	if e.closed {
		return nil, errors.Closed(errors.PhaseBind)
	}
	desc, err := e.registry.Register(name, prototype, opts...)
	if err != nil {
		return nil, err
	}

	if desc.Constructible() {
		ctor := func(goja.FunctionCall) goja.Value {
			h, err := e.table.AllocateNew(desc)
			if err != nil {
				panic(e.vm.NewGoError(err))
			}
			e.noteAlloc(h)
			return e.wrapHandle(h)
		}
		if err := e.vm.Set(name, ctor); err != nil {
			return nil, errors.New(errors.PhaseBind, errors.KindScript).
				Name(name).Cause(err).Build()
		}
	}
	return desc, nil
}

// Eval runs a script chunk in the environment.
func (e *Env) Eval(src string) (goja.Value, error) {
	if e.closed {
		return nil, errors.Closed(errors.PhaseCall)
	}
	e.enterCall()
	defer e.leaveCall()

	v, err := e.vm.RunString(src)
	if err != nil {
		return nil, errors.Script("<eval>", err)
	}
	return v, nil
}

// Call invokes a script function bound under a global name. Arguments
// cross the boundary through the usual classification: plain values are
// copied into cells owned by the environment, pointers and Ref-wrapped
// values are borrowed.
func (e *Env) Call(name string, args ...any) (goja.Value, error) {
	if e.closed {
		return nil, errors.Closed(errors.PhaseCall)
	}
	fn, ok := goja.AssertFunction(e.vm.Get(name))
	if !ok {
		return nil, errors.UnknownName(errors.PhaseCall, name)
	}

	e.enterCall()
	defer e.leaveCall()

	gargs := make([]goja.Value, len(args))
	for i, a := range args {
		gv, err := e.offerValue(a)
		if err != nil {
			return nil, err
		}
		gargs[i] = gv
	}

	v, err := fn(goja.Undefined(), gargs...)
	if err != nil {
		return nil, errors.Script(name, err)
	}
	return v, nil
}

// OnCellEvent keeps the wrapper identity maps in sync with the table.
func (e *Env) OnCellEvent(evt cell.Event) {
	switch evt.Type {
	case cell.EventFinalized, cell.EventReleased:
		if e.objs == nil {
			return
		}
		if obj, ok := e.objs[evt.Handle]; ok {
			delete(e.wrappers, obj)
			delete(e.objs, evt.Handle)
		}
		delete(e.callPins, evt.Handle)
	}
}

// Stats describes the live state of the environment.
type Stats struct {
	LiveCells   int
	Descriptors int
}

// Stats returns live cell and descriptor counts.
func (e *Env) Stats() Stats {
	if e.closed {
		return Stats{}
	}
	return Stats{
		LiveCells:   e.table.Len(),
		Descriptors: e.registry.Len(),
	}
}

func (e *Env) enterCall() {
	e.callDepth++
}

func (e *Env) leaveCall() {
	e.callDepth--
	if e.callDepth == 0 {
		clear(e.callPins)
		e.maybeCollect()
	}
}

func (e *Env) maybeCollect() {
	if e.closed || e.callDepth > 0 {
		return
	}
	if e.allocs >= e.gcThreshold {
		e.allocs = 0
		e.Collect(false)
	}
}
