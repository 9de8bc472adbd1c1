package ownership

import (
	"reflect"

	"github.com/wippyai/script-bridge/errors"
)

// RefWrapper marks a value as passed by reference. The boundary stores the
// wrapped address and never finalizes it, even though the call site looks
// like a value was supplied.
type RefWrapper struct {
	ptr any
}

// Ref wraps a pointer as an explicit borrow marker.
func Ref(ptr any) RefWrapper {
	return RefWrapper{ptr: ptr}
}

// Pointer returns the wrapped address.
func (r RefWrapper) Pointer() any {
	return r.ptr
}

// Classified is the immutable result of offer-time classification.
type Classified struct {
	// Value holds the value to copy for Copied mode, or the pointer to
	// alias for the Borrowed modes. Nil for Shared mode.
	Value any
	// Shared holds the external control block for Shared mode.
	Shared SharedHandle
	// Mode is the ownership classification.
	Mode Mode
}

// Classify determines the ownership mode of a value offered at the
// boundary. The decision is made once; no later code path reclassifies a
// handle.
func Classify(v any) (Classified, error) {
	switch x := v.(type) {
	case nil:
		return Classified{}, errors.InvalidInput(errors.PhaseOffer, "cannot classify untyped nil")
	case RefWrapper:
		p := x.Pointer()
		if p == nil {
			return Classified{}, errors.InvalidInput(errors.PhaseOffer, "Ref wraps nil")
		}
		rp := reflect.ValueOf(p)
		if rp.Kind() != reflect.Pointer || rp.IsNil() {
			return Classified{}, errors.New(errors.PhaseOffer, errors.KindInvalidInput).
				GoType(rp.Type().String()).
				Detail("Ref requires a non-nil pointer").
				Build()
		}
		return Classified{Mode: BorrowedReference, Value: p}, nil
	case SharedHandle:
		return Classified{Mode: Shared, Shared: x}, nil
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return Classified{}, errors.New(errors.PhaseOffer, errors.KindInvalidInput).
				GoType(rv.Type().String()).
				Detail("cannot borrow a nil pointer").
				Build()
		}
		return Classified{Mode: BorrowedPointer, Value: v}, nil
	}

	return Classified{Mode: Copied, Value: v}, nil
}
