package env

import (
	"reflect"

	"github.com/dop251/goja"

	"github.com/wippyai/script-bridge/cell"
)

// cellObject is the script-visible face of a bound cell. Property access
// reads and writes the cell's storage directly; methods dispatch through
// the storage pointer, so a derived type bound through a base-qualified
// descriptor still resolves its own methods.
type cellObject struct {
	env    *Env
	handle cell.Handle

	// method wrappers, created on first access; scripts can rely on
	// obj.Method having a stable identity
	fns map[string]goja.Value
}

// wrapHandle creates the script object for a cell and records the
// wrapper identity so the collector can mark it from the root table.
func (e *Env) wrapHandle(h cell.Handle) goja.Value {
	co := &cellObject{env: e, handle: h}
	obj := e.vm.NewDynamicObject(co)
	e.wrappers[obj] = h
	e.objs[h] = obj
	return obj
}

func (e *Env) noteAlloc(h cell.Handle) {
	e.allocs++
	if e.callDepth > 0 {
		e.callPins[h] = struct{}{}
	}
}

func (c *cellObject) storage() (reflect.Value, bool) {
	ptr, ok := c.env.table.Ptr(c.handle)
	if !ok {
		return reflect.Value{}, false
	}
	return reflect.ValueOf(ptr), true
}

func (c *cellObject) Get(key string) goja.Value {
	pv, ok := c.storage()
	if !ok {
		return goja.Undefined()
	}

	if elem := pv.Elem(); elem.Kind() == reflect.Struct {
		// Embedded bases promote their fields through FieldByName.
		if f := elem.FieldByName(key); f.IsValid() && f.CanInterface() {
			gv, err := c.env.offerFieldValue(f)
			if err != nil {
				panic(c.env.vm.NewGoError(err))
			}
			return gv
		}
	}

	if fv, ok := c.fns[key]; ok {
		return fv
	}
	if m := pv.MethodByName(key); m.IsValid() {
		fv := c.env.vm.ToValue(c.env.hostFunc(m))
		if c.fns == nil {
			c.fns = make(map[string]goja.Value)
		}
		c.fns[key] = fv
		return fv
	}

	return goja.Undefined()
}

func (c *cellObject) Set(key string, val goja.Value) bool {
	pv, ok := c.storage()
	if !ok {
		return false
	}
	elem := pv.Elem()
	if elem.Kind() != reflect.Struct {
		return false
	}
	f := elem.FieldByName(key)
	if !f.IsValid() || !f.CanSet() {
		return false
	}

	rv, err := c.env.convertArg(f.Type(), val)
	if err != nil {
		return false
	}
	f.Set(rv)
	return true
}

func (c *cellObject) Has(key string) bool {
	pv, ok := c.storage()
	if !ok {
		return false
	}
	if elem := pv.Elem(); elem.Kind() == reflect.Struct {
		if f := elem.FieldByName(key); f.IsValid() && f.CanInterface() {
			return true
		}
	}
	return pv.MethodByName(key).IsValid()
}

func (c *cellObject) Delete(key string) bool {
	// Host storage has a fixed shape.
	return false
}

func (c *cellObject) Keys() []string {
	pv, ok := c.storage()
	if !ok {
		return nil
	}

	var keys []string
	if elem := pv.Elem(); elem.Kind() == reflect.Struct {
		t := elem.Type()
		for i := 0; i < t.NumField(); i++ {
			f := t.Field(i)
			if f.IsExported() && !f.Anonymous {
				keys = append(keys, f.Name)
			}
		}
	}
	pt := pv.Type()
	for i := 0; i < pt.NumMethod(); i++ {
		keys = append(keys, pt.Method(i).Name)
	}
	return keys
}

// offerFieldValue produces the script view of a struct field. Scalars
// pass through; composite fields cross the boundary as a copy of their
// current value.
func (e *Env) offerFieldValue(f reflect.Value) (goja.Value, error) {
	switch f.Kind() {
	case reflect.Bool, reflect.String,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return e.vm.ToValue(f.Interface()), nil
	}
	return e.offerValue(f.Interface())
}
