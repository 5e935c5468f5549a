package arc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestShared_WrapOnceFreesOnce tests that wrapping a fresh object and letting
// the handle go frees it exactly once, under both policies.
func TestShared_WrapOnceFreesOnce(t *testing.T) {
	for _, policy := range []Policy{PolicySingle, PolicyFaithful} {
		t.Run(policy.String(), func(t *testing.T) {
			r, rep := newTestRegistry(t, policy)
			finalized := 0

			h, err := MakeShared(r, counter{Value: 7, finalized: &finalized})
			require.NoError(t, err)
			assert.Equal(t, uint64(1), h.LocalCount())

			require.NoError(t, h.Release())
			assert.Equal(t, 1, finalized, "value must be finalized exactly once")
			assert.Equal(t, int64(1), r.Stats().Frees, "block must be freed exactly once")
			assert.Zero(t, rep.Count())
		})
	}
}

// TestShared_FaithfulRawWrap tests the faithful construction path: a raw
// allocation wrapped with NewShared and dropped once is freed, because the
// double release on the last local drop consumes the creator's reference.
func TestShared_FaithfulRawWrap(t *testing.T) {
	r, rep := newTestRegistry(t, PolicyFaithful)

	p, err := New(r, 42)
	require.NoError(t, err)
	h, err := NewShared[int](r, p)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), r.RefCount(p))

	require.NoError(t, h.Release())
	assert.Zero(t, r.RefCount(p))
	assert.Equal(t, int64(1), r.Stats().Frees)
	assert.Zero(t, rep.Count())
}

// TestShared_CopyChainFaithful walks the copy-chain scenario with faithful
// bookkeeping: 1 -> 2 -> 3 -> 2 -> 0.
func TestShared_CopyChainFaithful(t *testing.T) {
	r, rep := newTestRegistry(t, PolicyFaithful)
	finalized := 0

	a, err := New(r, counter{Value: 1, finalized: &finalized})
	require.NoError(t, err)
	assert.Equal(t, uint64(1), r.RefCount(a))

	h1, err := NewShared[counter](r, a)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), r.RefCount(a))
	assert.Equal(t, uint64(1), h1.LocalCount())

	h2, err := h1.Clone()
	require.NoError(t, err)
	assert.Equal(t, uint64(3), r.RefCount(a))
	assert.Equal(t, uint64(1), h1.LocalCount())
	assert.Equal(t, uint64(2), h2.LocalCount(), "a clone copies the local count and adds its own")

	require.NoError(t, h2.Release())
	assert.Equal(t, uint64(2), r.RefCount(a))
	assert.Zero(t, finalized)

	require.NoError(t, h1.Release())
	assert.Zero(t, r.RefCount(a))
	assert.Equal(t, 1, finalized)
	assert.Zero(t, rep.Count())
}

// TestShared_CopyChainSingle walks the same scenario with single
// retain/release; the creator's reference is released by the creator.
func TestShared_CopyChainSingle(t *testing.T) {
	r, rep := newTestRegistry(t, PolicySingle)
	finalized := 0

	a, err := New(r, counter{Value: 1, finalized: &finalized})
	require.NoError(t, err)

	h1, err := NewShared[counter](r, a)
	require.NoError(t, err)
	h2, err := h1.Clone()
	require.NoError(t, err)
	assert.Equal(t, uint64(3), r.RefCount(a))

	require.NoError(t, h2.Release())
	require.NoError(t, h1.Release())
	assert.Equal(t, uint64(1), r.RefCount(a), "creator still owns its reference")
	assert.Zero(t, finalized)

	require.NoError(t, r.Release(a))
	assert.Equal(t, 1, finalized)
	assert.Zero(t, rep.Count())
}

// TestShared_CloneOutlivesOriginal tests that a clone stays valid after the
// handle it was copied from is released.
func TestShared_CloneOutlivesOriginal(t *testing.T) {
	for _, policy := range []Policy{PolicySingle, PolicyFaithful} {
		t.Run(policy.String(), func(t *testing.T) {
			r, rep := newTestRegistry(t, policy)

			h1, err := MakeShared(r, "original")
			require.NoError(t, err)
			h2, err := h1.Clone()
			require.NoError(t, err)

			require.NoError(t, h1.Release())
			v, err := h2.Value()
			require.NoError(t, err)
			assert.Equal(t, "original", *v)

			require.NoError(t, h2.Release())
			assert.Zero(t, r.Stats().LiveBlocks)
			assert.Zero(t, rep.Count())
		})
	}
}

// TestShared_SelfAssign tests that h.Assign(&h) changes nothing.
func TestShared_SelfAssign(t *testing.T) {
	for _, policy := range []Policy{PolicySingle, PolicyFaithful} {
		t.Run(policy.String(), func(t *testing.T) {
			r, _ := newTestRegistry(t, policy)

			h, err := MakeShared(r, 3)
			require.NoError(t, err)
			before, local := h.RefCount(), h.LocalCount()

			require.NoError(t, h.Assign(&h))
			assert.Equal(t, before, h.RefCount())
			assert.Equal(t, local, h.LocalCount())

			same := h // plain copy, no reference taken
			require.NoError(t, h.Assign(&same), "same target is a no-op")
			assert.Equal(t, before, h.RefCount())

			require.NoError(t, h.Release())
		})
	}
}

// TestShared_AssignSingleReleasesPrevious tests that reassignment hands the
// old object back under PolicySingle.
func TestShared_AssignSingleReleasesPrevious(t *testing.T) {
	r, rep := newTestRegistry(t, PolicySingle)
	finalizedA, finalizedB := 0, 0

	a, err := MakeShared(r, counter{Value: 1, finalized: &finalizedA})
	require.NoError(t, err)
	b, err := MakeShared(r, counter{Value: 2, finalized: &finalizedB})
	require.NoError(t, err)

	require.NoError(t, a.Assign(&b))
	assert.Equal(t, 1, finalizedA, "previous target should be released")
	assert.Equal(t, uint64(2), b.RefCount())
	assert.Equal(t, b.Ptr(), a.Ptr())
	assert.Equal(t, uint64(2), a.LocalCount())

	v, err := a.Value()
	require.NoError(t, err)
	assert.Equal(t, 2, v.Value)

	require.NoError(t, a.Release())
	require.NoError(t, b.Release())
	assert.Equal(t, 1, finalizedB)
	assert.Zero(t, rep.Count())
}

// TestShared_AssignFaithfulKeepsPrevious tests that faithful assignment
// leaves the old target retained.
func TestShared_AssignFaithfulKeepsPrevious(t *testing.T) {
	r, _ := newTestRegistry(t, PolicyFaithful)

	a, err := MakeShared(r, 1)
	require.NoError(t, err)
	oldPtr := a.Ptr()
	b, err := MakeShared(r, 2)
	require.NoError(t, err)

	require.NoError(t, a.Assign(&b))
	assert.Equal(t, uint64(2), r.RefCount(oldPtr), "faithful assignment does not release")

	// Hand the stranded references back so the registry closes clean.
	require.NoError(t, r.Release(oldPtr))
	require.NoError(t, r.Release(oldPtr))
	require.NoError(t, b.Release())
	require.NoError(t, a.Release())
	assert.Zero(t, r.Stats().LiveBlocks)
}

// TestShared_AssignEmpty tests assigning an empty handle over an owning one.
func TestShared_AssignEmpty(t *testing.T) {
	r, _ := newTestRegistry(t, PolicySingle)

	h, err := MakeShared(r, 9)
	require.NoError(t, err)
	empty := Empty[int](r)

	require.NoError(t, h.Assign(&empty))
	assert.True(t, h.IsEmpty())
	assert.Equal(t, StateEmpty, h.State())
	assert.Zero(t, r.Stats().LiveBlocks)
}

// TestShared_EmptyDereference tests that empty handles never yield a value.
func TestShared_EmptyDereference(t *testing.T) {
	r, _ := newTestRegistry(t, PolicySingle)

	var zero Shared[int]
	_, err := zero.Value()
	require.ErrorIs(t, err, ErrNullDereference)

	h := Empty[int](r)
	v, err := h.Value()
	require.ErrorIs(t, err, ErrNullDereference)
	assert.Nil(t, v)
	assert.Panics(t, func() { h.MustValue() })

	nilWrapped, err := NewShared[int](r, Nil)
	require.NoError(t, err)
	assert.True(t, nilWrapped.IsEmpty())
	assert.Zero(t, nilWrapped.RefCount())
}

// TestShared_StateMachine tests Empty -> Owning -> Released and that Released
// is terminal.
func TestShared_StateMachine(t *testing.T) {
	r, _ := newTestRegistry(t, PolicySingle)

	var h Shared[int]
	assert.Equal(t, StateEmpty, h.State())

	other, err := MakeShared(r, 5)
	require.NoError(t, err)
	require.NoError(t, h.Assign(&other))
	assert.Equal(t, StateOwning, h.State())

	require.NoError(t, h.Release())
	assert.Equal(t, StateReleased, h.State())
	assert.True(t, h.IsEmpty())
	assert.Zero(t, h.LocalCount())

	require.NoError(t, h.Release(), "releasing twice is a no-op")
	_, err = h.Value()
	require.ErrorIs(t, err, ErrNullDereference)
	require.ErrorIs(t, h.Assign(&other), ErrState)

	c, err := h.Clone()
	require.NoError(t, err)
	assert.Equal(t, StateEmpty, c.State())

	require.NoError(t, other.Release())
	assert.Equal(t, "released", StateReleased.String())
}

// TestShared_FaithfulDoubleWrapHazard tests that two handles built from the
// same raw pointer over-release under faithful bookkeeping, and that the
// over-release is caught as a memory error.
func TestShared_FaithfulDoubleWrapHazard(t *testing.T) {
	r, rep := newTestRegistry(t, PolicyFaithful)

	p, err := New(r, 1)
	require.NoError(t, err)
	h1, err := NewShared[int](r, p)
	require.NoError(t, err)
	h2, err := NewShared[int](r, p)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), r.RefCount(p))

	require.NoError(t, h1.Release())
	assert.Equal(t, uint64(1), r.RefCount(p))

	err = h2.Release()
	require.ErrorIs(t, err, ErrMemory, "second release hits a freed block")
	assert.Equal(t, 1, rep.Count())
}

// TestShared_SingleDoubleWrapIsSafe tests the same sequence under
// PolicySingle.
func TestShared_SingleDoubleWrapIsSafe(t *testing.T) {
	r, rep := newTestRegistry(t, PolicySingle)

	p, err := New(r, 1)
	require.NoError(t, err)
	h1, err := NewShared[int](r, p)
	require.NoError(t, err)
	h2, err := NewShared[int](r, p)
	require.NoError(t, err)

	require.NoError(t, h1.Release())
	require.NoError(t, h2.Release())
	assert.Equal(t, uint64(1), r.RefCount(p))
	require.NoError(t, r.Release(p))
	assert.Zero(t, rep.Count())
}

// TestShared_TypeChecked tests that a handle cannot wrap a value of another type.
func TestShared_TypeChecked(t *testing.T) {
	r, _ := newTestRegistry(t, PolicySingle)

	p, err := New(r, "text")
	require.NoError(t, err)
	_, err = NewShared[int](r, p)
	require.ErrorIs(t, err, ErrTypeMismatch)
	assert.Equal(t, uint64(1), r.RefCount(p), "failed construction must not retain")

	raw, err := r.Allocate(8)
	require.NoError(t, err)
	_, err = Adopt[int](r, raw)
	require.ErrorIs(t, err, ErrTypeMismatch)

	require.NoError(t, r.Release(p))
	require.NoError(t, r.Release(raw))
}

// TestShared_HandleNotAllocatable tests that handles cannot live in registry blocks.
func TestShared_HandleNotAllocatable(t *testing.T) {
	r, _ := newTestRegistry(t, PolicySingle)

	h, err := MakeShared(r, 1)
	require.NoError(t, err)

	_, err = New(r, h)
	require.ErrorIs(t, err, ErrState)
	_, err = MakeShared(r, &h)
	require.ErrorIs(t, err, ErrState)
	assert.Equal(t, int64(1), r.Stats().LiveBlocks)

	require.NoError(t, h.Release())
}

// TestShared_NestedOwnership tests that finalizers can release the handles
// their value owns, freeing a whole list from its head.
func TestShared_NestedOwnership(t *testing.T) {
	for _, policy := range []Policy{PolicySingle, PolicyFaithful} {
		t.Run(policy.String(), func(t *testing.T) {
			r, rep := newTestRegistry(t, policy)
			var destroyed []string

			var next Shared[node]
			for _, name := range []string{"c", "b", "a"} {
				h, err := MakeShared(r, node{Name: name, Next: next, log: &destroyed})
				require.NoError(t, err)
				next = h
			}
			assert.Equal(t, int64(3), r.Stats().LiveBlocks)

			head := next
			require.NoError(t, head.Release())
			assert.Equal(t, []string{"a", "b", "c"}, destroyed)
			assert.Zero(t, r.Stats().LiveBlocks)
			assert.Zero(t, rep.Count())
		})
	}
}
