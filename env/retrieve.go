package env

import (
	"reflect"

	"github.com/dop251/goja"

	"github.com/wippyai/script-bridge/cell"
	"github.com/wippyai/script-bridge/errors"
	"github.com/wippyai/script-bridge/ownership"
)

// Get reads a script global back into the host. Bound cells come back as
// a copy of their current storage; plain script values export through
// the runtime's native conversion.
func (e *Env) Get(name string) (any, error) {
	if e.closed {
		return nil, errors.Closed(errors.PhaseRetrieve)
	}
	v := e.vm.Get(name)
	if v == nil || goja.IsUndefined(v) {
		return nil, errors.UnknownName(errors.PhaseRetrieve, name)
	}
	if goja.IsNull(v) {
		return nil, nil
	}

	if h, ok := e.handleFor(v); ok {
		ptr, ok := e.table.Ptr(h)
		if !ok {
			return nil, errors.UnknownName(errors.PhaseRetrieve, name)
		}
		return reflect.ValueOf(ptr).Elem().Interface(), nil
	}
	return v.Export(), nil
}

// GetRef returns the storage pointer behind a bound global. The pointer
// aliases the cell: for copied cells it addresses the boundary-owned
// copy, for borrowed and shared cells the original host object.
func (e *Env) GetRef(name string) (any, error) {
	if e.closed {
		return nil, errors.Closed(errors.PhaseRetrieve)
	}
	h, err := e.handleForName(name)
	if err != nil {
		return nil, err
	}
	ptr, ok := e.table.Ptr(h)
	if !ok {
		return nil, errors.UnknownName(errors.PhaseRetrieve, name)
	}
	return ptr, nil
}

// GetShared returns the reference-count control block behind a shared
// global. The same block the host offered comes back, so host-side and
// boundary-side use counts always agree.
func (e *Env) GetShared(name string) (ownership.SharedHandle, error) {
	if e.closed {
		return nil, errors.Closed(errors.PhaseRetrieve)
	}
	h, err := e.handleForName(name)
	if err != nil {
		return nil, err
	}
	sh, ok := e.table.Shared(h)
	if !ok {
		m, _ := e.table.Mode(h)
		return nil, errors.TypeMismatch(errors.PhaseRetrieve, name, m.String(), ownership.Shared.String())
	}
	return sh, nil
}

// Mode reports the ownership mode of a bound global.
func (e *Env) Mode(name string) (ownership.Mode, error) {
	if e.closed {
		return 0, errors.Closed(errors.PhaseRetrieve)
	}
	h, err := e.handleForName(name)
	if err != nil {
		return 0, err
	}
	m, ok := e.table.Mode(h)
	if !ok {
		return 0, errors.UnknownName(errors.PhaseRetrieve, name)
	}
	return m, nil
}

func (e *Env) handleForName(name string) (cell.Handle, error) {
	v := e.vm.Get(name)
	if v == nil || goja.IsUndefined(v) {
		return 0, errors.UnknownName(errors.PhaseRetrieve, name)
	}
	h, ok := e.handleFor(v)
	if !ok {
		return 0, errors.TypeMismatch(errors.PhaseRetrieve, name, "script value", "bound cell")
	}
	return h, nil
}

func (e *Env) handleFor(v goja.Value) (cell.Handle, bool) {
	obj, ok := v.(*goja.Object)
	if !ok {
		return 0, false
	}
	h, ok := e.wrappers[obj]
	return h, ok
}
