package env

import (
	"reflect"

	"github.com/dop251/goja"

	scriptbridge "github.com/wippyai/script-bridge"
	"github.com/wippyai/script-bridge/cell"
	"github.com/wippyai/script-bridge/errors"
	"github.com/wippyai/script-bridge/ownership"
)

// Set offers a host value to the boundary and binds the result under a
// global name. Plain scalars pass through unwrapped; everything else is
// classified once and allocated a cell.
func (e *Env) Set(name string, v any) error {
	if e.closed {
		return errors.Closed(errors.PhaseOffer)
	}
	gv, err := e.offerValue(v)
	if err != nil {
		return err
	}
	if err := e.vm.Set(name, gv); err != nil {
		return errors.New(errors.PhaseOffer, errors.KindScript).
			Name(name).Cause(err).Build()
	}
	e.maybeCollect()
	return nil
}

// SetFunc binds a host callable under a global name. A plain function, or
// a value convertible to one, passes through with zero copies and no
// finalizer. A stateful Invoker offered by value is copied into its own
// cell and invoked on the copy; wrapped in ownership.Ref, the live host
// instance is invoked and never finalized.
func (e *Env) SetFunc(name string, fn any) error {
	if e.closed {
		return errors.Closed(errors.PhaseOffer)
	}
	if fn == nil {
		return errors.InvalidInput(errors.PhaseOffer, "nil callable")
	}

	if rv := reflect.ValueOf(fn); rv.Kind() == reflect.Func {
		return e.setCallable(name, e.hostFunc(rv), 0)
	}
	if fc, ok := fn.(scriptbridge.FuncConvertible); ok {
		g := reflect.ValueOf(fc.Func())
		if g.Kind() != reflect.Func {
			return errors.New(errors.PhaseOffer, errors.KindInvalidInput).
				Name(name).
				GoType(reflect.TypeOf(fn).String()).
				Detail("Func() did not return a function").
				Build()
		}
		return e.setCallable(name, e.hostFunc(g), 0)
	}

	cl, err := ownership.Classify(fn)
	if err != nil {
		return err
	}

	// Reject before allocating: a failed bind must not leave a stray
	// cell in the table.
	var pt reflect.Type
	switch cl.Mode {
	case ownership.Copied:
		pt = reflect.PointerTo(reflect.TypeOf(cl.Value))
	case ownership.BorrowedPointer, ownership.BorrowedReference:
		pt = reflect.TypeOf(cl.Value)
	case ownership.Shared:
		pt = reflect.TypeOf(cl.Shared.Unwrap())
	default:
		return errors.InvalidInput(errors.PhaseOffer, "invalid ownership mode")
	}
	if !pt.Implements(invokerType) {
		return errors.New(errors.PhaseOffer, errors.KindInvalidInput).
			Name(name).
			GoType(reflect.TypeOf(fn).String()).
			Detail("bound callable must implement Invoker").
			Build()
	}

	h, err := e.allocate(cl)
	if err != nil {
		return err
	}
	ptr, ok := e.table.Ptr(h)
	if !ok {
		panic("env: freshly allocated cell vanished")
	}
	return e.setCallable(name, e.invokerFunc(ptr.(scriptbridge.Invoker)), h)
}

// setCallable installs a script function and, when the callable owns a
// cell, roots the cell through the function object so collection treats
// the binding as reachable.
func (e *Env) setCallable(name string, fn func(goja.FunctionCall) goja.Value, h cell.Handle) error {
	gv := e.vm.ToValue(fn)
	if h != 0 {
		if obj, ok := gv.(*goja.Object); ok {
			e.wrappers[obj] = h
			e.objs[h] = obj
		}
	}
	if err := e.vm.Set(name, gv); err != nil {
		return errors.New(errors.PhaseOffer, errors.KindScript).
			Name(name).Cause(err).Build()
	}
	return nil
}

// offerValue classifies a host value and produces its script-visible
// representation. The classification is immutable for the handle's
// lifetime.
func (e *Env) offerValue(v any) (goja.Value, error) {
	if v == nil {
		return goja.Null(), nil
	}
	if gv, ok := v.(goja.Value); ok {
		return gv, nil
	}

	switch reflect.ValueOf(v).Kind() {
	case reflect.Bool, reflect.String,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		// Plain value types have no ownership ambiguity.
		return e.vm.ToValue(v), nil
	case reflect.Func:
		return e.vm.ToValue(v), nil
	}

	if fc, ok := v.(scriptbridge.FuncConvertible); ok {
		return e.vm.ToValue(fc.Func()), nil
	}

	cl, err := ownership.Classify(v)
	if err != nil {
		return nil, err
	}
	h, err := e.allocate(cl)
	if err != nil {
		return nil, err
	}
	return e.wrapHandle(h), nil
}

// allocate resolves the type descriptor for a classified value and
// creates its cell.
func (e *Env) allocate(cl ownership.Classified) (cell.Handle, error) {
	var t reflect.Type
	switch cl.Mode {
	case ownership.Copied:
		t = reflect.TypeOf(cl.Value)
	case ownership.BorrowedPointer, ownership.BorrowedReference:
		t = reflect.TypeOf(cl.Value).Elem()
	case ownership.Shared:
		t = reflect.TypeOf(cl.Shared.Unwrap()).Elem()
	default:
		return 0, errors.InvalidInput(errors.PhaseOffer, "invalid ownership mode")
	}

	desc, err := e.registry.Descriptor(t)
	if err != nil {
		return 0, err
	}
	h, err := e.table.Allocate(desc, cl)
	if err != nil {
		return 0, err
	}
	e.noteAlloc(h)
	return h, nil
}

// invokerFunc adapts a bound Invoker to a script function.
func (e *Env) invokerFunc(inv scriptbridge.Invoker) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		args := make([]any, len(call.Arguments))
		for i, a := range call.Arguments {
			args[i] = e.exportArg(a)
		}
		ret := inv.Invoke(args...)
		if ret == nil {
			return goja.Undefined()
		}
		gv, err := e.offerValue(ret)
		if err != nil {
			panic(e.vm.NewGoError(err))
		}
		return gv
	}
}

// hostFunc adapts a plain Go function to a script function, routing
// arguments and results through the boundary.
func (e *Env) hostFunc(fn reflect.Value) func(goja.FunctionCall) goja.Value {
	ft := fn.Type()
	return func(call goja.FunctionCall) goja.Value {
		in, err := e.convertArgs(ft, call.Arguments)
		if err != nil {
			panic(e.vm.NewGoError(err))
		}
		out := fn.Call(in)

		// Trailing error results become script exceptions.
		if n := len(out); n > 0 {
			if last := out[n-1]; last.Type() == errType {
				if !last.IsNil() {
					panic(e.vm.NewGoError(last.Interface().(error)))
				}
				out = out[:n-1]
			}
		}

		switch len(out) {
		case 0:
			return goja.Undefined()
		case 1:
			gv, err := e.offerValue(out[0].Interface())
			if err != nil {
				panic(e.vm.NewGoError(err))
			}
			return gv
		default:
			panic(e.vm.NewGoError(errors.InvalidInput(errors.PhaseCall,
				"host functions may return at most one value and an error")))
		}
	}
}

var (
	errType     = reflect.TypeOf((*error)(nil)).Elem()
	invokerType = reflect.TypeOf((*scriptbridge.Invoker)(nil)).Elem()
)

// convertArgs maps script arguments onto a host function signature. Bound
// cells arrive as the storage pointer for pointer parameters, or as a
// host-side copy for value parameters.
func (e *Env) convertArgs(ft reflect.Type, args []goja.Value) ([]reflect.Value, error) {
	numIn := ft.NumIn()
	if ft.IsVariadic() {
		if len(args) < numIn-1 {
			return nil, errors.InvalidInput(errors.PhaseCall, "not enough arguments")
		}
	} else if len(args) != numIn {
		return nil, errors.New(errors.PhaseCall, errors.KindInvalidInput).
			Detail("got %d arguments, want %d", len(args), numIn).
			Build()
	}

	in := make([]reflect.Value, len(args))
	for i, a := range args {
		var pt reflect.Type
		if ft.IsVariadic() && i >= numIn-1 {
			pt = ft.In(numIn - 1).Elem()
		} else {
			pt = ft.In(i)
		}
		rv, err := e.convertArg(pt, a)
		if err != nil {
			return nil, err
		}
		in[i] = rv
	}
	return in, nil
}

func (e *Env) convertArg(pt reflect.Type, a goja.Value) (reflect.Value, error) {
	if obj, ok := a.(*goja.Object); ok {
		if h, ok := e.wrappers[obj]; ok {
			ptr, ok := e.table.Ptr(h)
			if !ok {
				return reflect.Value{}, errors.InvalidInput(errors.PhaseCall, "argument cell is dead")
			}
			pv := reflect.ValueOf(ptr)
			switch {
			case pv.Type() == pt:
				return pv, nil
			case pv.Type().Elem() == pt:
				// Value parameter: host-side copy, not a boundary copy.
				return pv.Elem(), nil
			}
			return reflect.Value{}, errors.TypeMismatch(errors.PhaseCall, "",
				pv.Type().String(), pt.String())
		}
	}

	exported := a.Export()
	if exported == nil {
		return reflect.Zero(pt), nil
	}
	ev := reflect.ValueOf(exported)
	if ev.Type() == pt {
		return ev, nil
	}
	if ev.Type().ConvertibleTo(pt) {
		return ev.Convert(pt), nil
	}
	return reflect.Value{}, errors.TypeMismatch(errors.PhaseCall, "",
		ev.Type().String(), pt.String())
}

// exportArg converts a script argument to a host value for Invoker
// dispatch. Bound cells arrive as their storage pointer.
func (e *Env) exportArg(a goja.Value) any {
	if obj, ok := a.(*goja.Object); ok {
		if h, ok := e.wrappers[obj]; ok {
			if ptr, ok := e.table.Ptr(h); ok {
				return ptr
			}
		}
	}
	return a.Export()
}
