package arc

import (
	"reflect"
	"unsafe"
)

// Finalizer is implemented by values that own resources. When the reference
// count of a typed object reaches zero, Finalize runs on the stored value
// before its block is freed.
type Finalizer interface {
	Finalize()
}

// handleMarker is implemented by Shared. Handles must not be registry-managed
// themselves.
type handleMarker interface {
	sharedHandle()
}

// New allocates a block sized for v, stores v under it, and returns the block
// with a reference count of one. A Shared handle cannot be allocated this way.
func New[T any](r *Registry, v T) (Ptr, error) {
	if _, ok := any(v).(handleMarker); ok {
		return Nil, errorf(ErrKindState, nil, "%s cannot be allocated through the registry", typeName[T]())
	}

	vp := new(T)
	*vp = v
	b := &block{
		value: vp,
		typ:   typeName[T](),
		destroy: func() {
			if f, ok := any(vp).(Finalizer); ok {
				f.Finalize()
			}
			var zero T
			*vp = zero
		},
	}
	return r.allocate(int(unsafe.Sizeof(v)), b)
}

// Load returns the value stored under p by New.
func Load[T any](r *Registry, p Ptr) (*T, error) {
	if p == Nil {
		return nil, errorf(ErrKindNullDereference, nil, "load of nil pointer")
	}
	r.mu.Lock()
	b, e := r.lookup("load", p)
	r.mu.Unlock()
	if e != nil {
		return nil, r.fail(e)
	}
	vp, ok := b.value.(*T)
	if !ok {
		held := b.typ
		if held == "" {
			held = "raw bytes"
		}
		return nil, errorf(ErrKindType, nil, "%s holds %s, not %s", p, held, typeName[T]())
	}
	return vp, nil
}

func typeName[T any]() string {
	return reflect.TypeFor[T]().String()
}
