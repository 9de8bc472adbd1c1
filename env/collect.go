package env

import (
	"github.com/dop251/goja"
	"go.uber.org/zap"

	"github.com/wippyai/script-bridge/cell"
)

// Collect reclaims cells whose script wrappers are no longer reachable
// from the global scope. With full set, passes repeat until a pass frees
// nothing, so chains where one finalizer was the only thing keeping
// another cell alive are fully drained. A single pass is the cheaper
// form used for allocation-pressure collection.
func (e *Env) Collect(full bool) int {
	if e.closed {
		return 0
	}
	total := e.sweepOnce()
	if full {
		for {
			n := e.sweepOnce()
			if n == 0 {
				break
			}
			total += n
		}
	}
	return total
}

func (e *Env) sweepOnce() int {
	marked := e.markRoots()
	n := e.table.Sweep(func(h cell.Handle) bool {
		_, ok := marked[h]
		return ok
	})
	if n > 0 {
		e.log.Debug("collected cells", zap.Int("count", n), zap.Int("live", e.table.Len()))
	}
	return n
}

// markRoots walks the script-visible object graph from the global scope
// and returns the set of handles still reachable, plus any cells pinned
// by an active host call.
func (e *Env) markRoots() map[cell.Handle]struct{} {
	marked := make(map[cell.Handle]struct{}, len(e.callPins))
	for h := range e.callPins {
		marked[h] = struct{}{}
	}
	visited := make(map[*goja.Object]struct{})
	e.markObject(e.vm.GlobalObject(), marked, visited)
	return marked
}

func (e *Env) markObject(obj *goja.Object, marked map[cell.Handle]struct{}, visited map[*goja.Object]struct{}) {
	if obj == nil {
		return
	}
	if _, seen := visited[obj]; seen {
		return
	}
	visited[obj] = struct{}{}

	if h, ok := e.wrappers[obj]; ok {
		marked[h] = struct{}{}
		// Wrapper properties live in host storage, not the script heap.
		return
	}

	// Map and Set entries are internal slots, not enumerable properties.
	switch obj.ClassName() {
	case "Map", "Set":
		e.markEntries(obj, marked, visited)
	}

	for _, key := range obj.Keys() {
		v := e.getProperty(obj, key)
		if v == nil {
			continue
		}
		if child, ok := v.(*goja.Object); ok {
			e.markObject(child, marked, visited)
		}
	}
}

// markEntries walks the keys and values of a Map or Set through its own
// forEach. The callback's trailing argument is the container itself,
// already in the visited set, so the recursion terminates.
func (e *Env) markEntries(obj *goja.Object, marked map[cell.Handle]struct{}, visited map[*goja.Object]struct{}) {
	v := e.getProperty(obj, "forEach")
	if v == nil {
		return
	}
	forEach, ok := goja.AssertFunction(v)
	if !ok {
		return
	}
	cb := e.vm.ToValue(func(call goja.FunctionCall) goja.Value {
		for _, a := range call.Arguments {
			if child, ok := a.(*goja.Object); ok {
				e.markObject(child, marked, visited)
			}
		}
		return goja.Undefined()
	})
	_, _ = forEach(obj, cb)
}

// getProperty reads a property defensively. Accessor properties can run
// script code that throws; a throwing getter must not abort collection.
func (e *Env) getProperty(obj *goja.Object, key string) (v goja.Value) {
	defer func() {
		if r := recover(); r != nil {
			v = nil
		}
	}()
	return obj.Get(key)
}
