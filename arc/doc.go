// Package arc implements an intrusive reference-counting memory registry and a
// shared-ownership handle on top of it.
//
// # Overview
//
// Every block handed out by a Registry carries a hidden 16-byte header placed
// immediately before the user-visible payload:
//
//	Offset  Size  Description
//	-0x10   8     Reference count (1 at allocation)
//	-0x08   8     Payload size
//	 0x00   ...   Payload; the Ptr addresses this byte
//
// The count is mutated only by Retain (+1) and Release (-1). A block is freed
// exactly when Release drives its count to zero, and Deallocate refuses to
// free a block that is still referenced.
//
// # Registry
//
// A Registry is an explicit allocator. Only code that participates in shared
// ownership goes through it; everything else keeps using the Go heap. The
// underlying memory comes from an alloc.Backend (Go heap, off-heap malloc, or
// an mmap arena).
//
//	r := arc.NewRegistry(nil)
//	defer r.Close()
//
//	p, err := r.Allocate(64)
//	if err != nil {
//	    return err
//	}
//	payload, _ := r.Bytes(p)
//	copy(payload, "hello")
//	_ = r.Release(p) // count 1 -> 0, block freed
//
// # Typed Objects
//
// New places a Go value under a registry block. When the count reaches zero the
// value's Finalize method (if it has one) runs before the block is freed, which
// lets a value release the handles it owns:
//
//	type Node struct {
//	    Next arc.Shared[Node]
//	}
//
//	func (n *Node) Finalize() { _ = n.Next.Release() }
//
// # Shared Handles
//
// Shared[T] is a copyable value wrapping a Ptr. Go has no copy constructors, so
// copies that own a reference are made with Clone and Assign; a plain struct
// copy does not retain. Release gives up the handle's ownership.
//
//	h, err := arc.MakeShared(r, Node{})
//	if err != nil {
//	    return err
//	}
//	h2, _ := h.Clone()
//	_ = h.Release()
//	n, _ := h2.Value() // still valid
//	_ = h2.Release()    // last owner, node finalized and freed
//
// # Release Policies
//
// PolicySingle (the default) retains once when a handle acquires a pointer and
// releases exactly once when it gives it up. PolicyFaithful keeps the legacy
// two-count bookkeeping: a handle releases a second time when its local
// contribution count reaches zero and assignment never releases the previous
// target. Faithful mode exists for compatibility testing; its over-releases are
// reported as memory errors rather than corrupting memory.
//
// # Errors
//
// All failures are *Error values with a Kind. errors.Is(err, ErrMemory) and
// friends match on Kind. Memory errors are also passed to the configured
// Reporter before they are returned.
//
// # Thread Safety
//
// Registry methods are safe for concurrent use. Finalizers run outside the
// registry lock. A single Shared value must not be mutated from several
// goroutines without external synchronization.
package arc
