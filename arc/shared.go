package arc

// HandleState is the lifecycle state of a Shared handle.
type HandleState uint8

const (
	StateEmpty    HandleState = iota // holds no pointer
	StateOwning                      // holds a reference to a live block
	StateReleased                    // gave up ownership; terminal
)

func (s HandleState) String() string {
	switch s {
	case StateEmpty:
		return "empty"
	case StateOwning:
		return "owning"
	case StateReleased:
		return "released"
	default:
		return "unknown"
	}
}

// Shared is a shared-ownership handle over a typed registry object.
//
// The zero value is an empty handle. A plain struct copy does not take a
// reference; use Clone or Assign for copies that own one.
type Shared[T any] struct {
	reg   *Registry
	data  Ptr
	local uint64 // this handle's contribution as tracked by the handle itself
	state HandleState
}

func (Shared[T]) sharedHandle() {}

// Empty returns an empty handle bound to r.
func Empty[T any](r *Registry) Shared[T] {
	return Shared[T]{reg: r}
}

// NewShared wraps p, retaining it. The caller keeps its own reference.
// NewShared(r, Nil) returns an empty handle.
func NewShared[T any](r *Registry, p Ptr) (Shared[T], error) {
	if p == Nil {
		return Empty[T](r), nil
	}
	if _, err := Load[T](r, p); err != nil {
		return Empty[T](r), err
	}
	if _, err := r.Retain(p); err != nil {
		return Empty[T](r), err
	}
	return Shared[T]{reg: r, data: p, local: 1, state: StateOwning}, nil
}

// Adopt wraps p, taking over the caller's reference instead of retaining.
// Under PolicyFaithful it behaves like NewShared, whose extra release on the
// last local drop consumes the caller's reference.
func Adopt[T any](r *Registry, p Ptr) (Shared[T], error) {
	if r.Policy() == PolicyFaithful {
		return NewShared[T](r, p)
	}
	if p == Nil {
		return Empty[T](r), nil
	}
	if _, err := Load[T](r, p); err != nil {
		return Empty[T](r), err
	}
	return Shared[T]{reg: r, data: p, local: 1, state: StateOwning}, nil
}

// MakeShared allocates v through the registry and returns the sole owner.
func MakeShared[T any](r *Registry, v T) (Shared[T], error) {
	p, err := New(r, v)
	if err != nil {
		return Empty[T](r), err
	}
	h, err := Adopt[T](r, p)
	if err != nil {
		_ = r.Release(p)
		return Empty[T](r), err
	}
	return h, nil
}

// Clone returns a new handle to the same object, retaining it.
// Cloning an empty or released handle yields an empty handle.
func (h Shared[T]) Clone() (Shared[T], error) {
	if h.data == Nil {
		return Empty[T](h.reg), nil
	}
	if _, err := h.reg.Retain(h.data); err != nil {
		return Empty[T](h.reg), err
	}
	return Shared[T]{reg: h.reg, data: h.data, local: h.local + 1, state: StateOwning}, nil
}

// Assign makes h refer to other's object. Assigning a handle to itself, or to a
// handle with the same object, is a no-op. Under PolicySingle the previous
// object is released. Assigning into a released handle is an error.
func (h *Shared[T]) Assign(other *Shared[T]) error {
	if h.state == StateReleased {
		return errorf(ErrKindState, nil, "assignment to a released handle")
	}
	if h == other || h.data == other.data {
		return nil
	}
	if other.data != Nil {
		if _, err := other.reg.Retain(other.data); err != nil {
			return err
		}
	}

	old := *h
	h.reg, h.data, h.local = other.reg, other.data, other.local
	if h.data != Nil {
		h.local++
		h.state = StateOwning
	} else {
		h.local = 0
		h.state = StateEmpty
	}

	if old.state == StateOwning && old.reg.Policy() == PolicySingle {
		return old.reg.Release(old.data)
	}
	return nil
}

// Release gives up h's ownership. The handle becomes Released, and further
// Release calls are no-ops. Under PolicyFaithful a second registry release is
// issued when the local count reaches zero.
func (h *Shared[T]) Release() error {
	if h.state != StateOwning {
		h.state = StateReleased
		return nil
	}
	reg, p := h.reg, h.data
	h.local--
	local := h.local
	h.data, h.local, h.state = Nil, 0, StateReleased

	if err := reg.Release(p); err != nil {
		return err
	}
	if reg.Policy() == PolicyFaithful && local == 0 {
		return reg.Release(p)
	}
	return nil
}

// Value returns the managed value. An empty or released handle yields an
// ErrKindNullDereference error.
func (h Shared[T]) Value() (*T, error) {
	if h.data == Nil {
		return nil, errorf(ErrKindNullDereference, nil, "shared: null pointer dereference")
	}
	return Load[T](h.reg, h.data)
}

// MustValue is Value that panics on error.
func (h Shared[T]) MustValue() *T {
	v, err := h.Value()
	if err != nil {
		panic(err)
	}
	return v
}

// Ptr returns the wrapped pointer, or Nil.
func (h Shared[T]) Ptr() Ptr { return h.data }

// LocalCount returns the handle's local contribution count.
func (h Shared[T]) LocalCount() uint64 { return h.local }

// RefCount returns the registry reference count of the wrapped pointer.
func (h Shared[T]) RefCount() uint64 {
	if h.reg == nil || h.data == Nil {
		return 0
	}
	return h.reg.RefCount(h.data)
}

// IsEmpty reports whether h holds no pointer.
func (h Shared[T]) IsEmpty() bool { return h.data == Nil }

// State returns the handle's lifecycle state.
func (h Shared[T]) State() HandleState { return h.state }
