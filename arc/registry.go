package arc

import (
	"cmp"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"sync"
	"unsafe"

	"github.com/joshuapare/arckit/arc/alloc"
	"github.com/joshuapare/arckit/internal/buf"
	"github.com/joshuapare/arckit/internal/format"
)

// HeaderSize is the size of the hidden header preceding every payload.
const HeaderSize = format.HeaderSize

// Ptr is the address of the first payload byte of a registry block.
// The block's header starts at Ptr - HeaderSize.
type Ptr uintptr

// Nil is the empty Ptr.
const Nil Ptr = 0

func (p Ptr) String() string {
	return fmt.Sprintf("0x%x", uintptr(p))
}

// Registry hands out header-prefixed blocks and tracks their reference counts.
type Registry struct {
	mu sync.Mutex

	backend  alloc.Backend
	policy   Policy
	reporter Reporter
	log      *slog.Logger
	trace    bool

	// blocks is the side table from user pointer to block. The header inside
	// raw is the authority for the count; the table is the authority for
	// membership.
	blocks map[Ptr]*block
	seq    uint64

	stats  registryStats
	closed bool
}

// block is one registry allocation.
type block struct {
	raw []byte // header + payload exactly as returned by the backend
	seq uint64 // allocation order, for leak reports

	// Typed objects only (see New).
	value   any
	typ     string
	destroy func()
}

// registryStats holds internal counters.
type registryStats struct {
	Allocs        int64
	AllocFailures int64
	Frees         int64
	Retains       int64
	Releases      int64
	Violations    int64
	LiveBytes     int64 // payload bytes of live blocks
}

// NewRegistry creates a registry. A nil opts selects the defaults.
func NewRegistry(opts *Options) *Registry {
	o := opts.withDefaults()
	return &Registry{
		backend:  o.Backend,
		policy:   o.Policy,
		reporter: o.Reporter,
		log:      o.Logger,
		trace:    o.TraceAllocs,
		blocks:   make(map[Ptr]*block),
	}
}

// Policy returns the release policy Shared handles use with this registry.
func (r *Registry) Policy() Policy {
	return r.policy
}

// Allocate reserves a block with a payload of size bytes and a reference count
// of one. On failure it returns Nil and an ErrKindAllocation error.
func (r *Registry) Allocate(size int) (Ptr, error) {
	return r.allocate(size, nil)
}

// TryAllocate is Allocate without the error: it returns Nil on failure.
func (r *Registry) TryAllocate(size int) Ptr {
	p, err := r.allocate(size, nil)
	if err != nil {
		return Nil
	}
	return p
}

func (r *Registry) allocate(size int, obj *block) (Ptr, error) {
	if size < 0 {
		return Nil, errorf(ErrKindAllocation, nil, "invalid allocation size %d", size)
	}
	if _, ok := buf.AddOverflowSafe(size, format.HeaderSize+format.BlockAlignment); !ok {
		return Nil, errorf(ErrKindAllocation, nil, "allocation size %d overflows", size)
	}
	total := format.BlockSize(size)

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return Nil, errorf(ErrKindState, nil, "allocate on closed registry")
	}

	raw, err := r.backend.Malloc(total)
	if err != nil {
		r.stats.AllocFailures++
		return Nil, errorf(ErrKindAllocation, err, "allocating %d bytes", size)
	}
	if err := format.PutHeader(raw, format.Header{RefCount: 1, PayloadSize: uint64(size)}); err != nil {
		_ = r.backend.Free(raw)
		r.stats.AllocFailures++
		return Nil, errorf(ErrKindAllocation, err, "backend returned a short block")
	}

	b := obj
	if b == nil {
		b = &block{}
	}
	b.raw = raw
	r.seq++
	b.seq = r.seq

	p := Ptr(uintptr(unsafe.Pointer(unsafe.SliceData(raw))) + format.HeaderSize)
	r.blocks[p] = b
	r.stats.Allocs++
	r.stats.LiveBytes += int64(size)

	if r.trace {
		r.log.Debug("arc: allocate", "ptr", p, "size", size, "block", total, "type", b.typ)
	}
	return p, nil
}

// lookup resolves p to its block. The caller holds r.mu.
func (r *Registry) lookup(op string, p Ptr) (*block, *Error) {
	if r.closed {
		return nil, errorf(ErrKindState, nil, "%s on closed registry", op)
	}
	b, ok := r.blocks[p]
	if !ok {
		r.stats.Violations++
		return nil, errorf(ErrKindMemory, nil, "%s of unmanaged pointer %s", op, p)
	}
	return b, nil
}

// fail forwards memory errors to the reporter and returns err as an error.
// Must be called without r.mu held.
func (r *Registry) fail(err *Error) error {
	if err == nil {
		return nil
	}
	if err.Kind == ErrKindMemory {
		r.reporter.Report(err)
	}
	return err
}

// Deallocate frees the block at p, which must have a reference count of zero.
// Deallocating a block that is still referenced is an ErrKindMemory error and
// leaves the block untouched. Deallocate(Nil) is a no-op.
//
// Counts only reach zero inside Release, which detaches the block, finalizes
// it, and then deallocates it through the same path.
func (r *Registry) Deallocate(p Ptr) error {
	if p == Nil {
		return nil
	}
	r.mu.Lock()
	b, e := r.lookup("deallocate", p)
	if e == nil {
		e = r.deallocateLocked(p, b)
	}
	r.mu.Unlock()
	return r.fail(e)
}

// deallocateLocked removes b from the side table and frees it if its count is
// zero. The caller holds r.mu.
func (r *Registry) deallocateLocked(p Ptr, b *block) *Error {
	if n := format.RefCount(b.raw); n > 0 {
		r.stats.Violations++
		return errorf(ErrKindMemory, nil, "deallocating an object with a reference count of %d", n)
	}
	delete(r.blocks, p)
	return r.freeLocked(p, b)
}

// freeLocked returns b to the backend. The caller holds r.mu and has already
// removed b from the side table.
func (r *Registry) freeLocked(p Ptr, b *block) *Error {
	size := int64(format.PayloadSize(b.raw))
	if err := r.backend.Free(b.raw); err != nil {
		r.stats.Violations++
		return errorf(ErrKindMemory, err, "freeing %s", p)
	}
	r.stats.Frees++
	r.stats.LiveBytes -= size
	if r.trace {
		r.log.Debug("arc: free", "ptr", p, "size", size, "type", b.typ)
	}
	return nil
}

// Retain increments the reference count of p and returns p, so construction
// can be chained. Retain(Nil) returns Nil.
func (r *Registry) Retain(p Ptr) (Ptr, error) {
	if p == Nil {
		return Nil, nil
	}
	r.mu.Lock()
	b, e := r.lookup("retain", p)
	if e == nil {
		if _, err := format.IncRef(b.raw); err != nil {
			r.stats.Violations++
			e = errorf(ErrKindMemory, err, "retain of %s", p)
		} else {
			r.stats.Retains++
		}
	}
	r.mu.Unlock()
	if e != nil {
		return Nil, r.fail(e)
	}
	return p, nil
}

// Release decrements the reference count of p. When the count reaches zero the
// block is detached, its value is finalized, and the memory is freed. Releasing
// an unmanaged or already-freed pointer is an ErrKindMemory error.
// Release(Nil) is a no-op.
func (r *Registry) Release(p Ptr) error {
	if p == Nil {
		return nil
	}
	r.mu.Lock()
	b, e := r.lookup("release", p)
	if e != nil {
		r.mu.Unlock()
		return r.fail(e)
	}
	n, err := format.DecRef(b.raw)
	if err != nil {
		r.stats.Violations++
		r.mu.Unlock()
		return r.fail(errorf(ErrKindMemory, err, "release of %s", p))
	}
	r.stats.Releases++
	if n > 0 {
		r.mu.Unlock()
		return nil
	}
	// Detach first so the finalizer can release other blocks (or observe this
	// one as gone) without holding the lock.
	delete(r.blocks, p)
	r.mu.Unlock()

	return r.finalize(p, b)
}

// finalize runs b's destroy hook outside the lock and then deallocates b. The
// block goes back to the backend even when the hook panics.
func (r *Registry) finalize(p Ptr, b *block) (err error) {
	defer func() {
		var e *Error
		r.mu.Lock()
		if !r.closed { // Close already tore the backend down.
			e = r.deallocateLocked(p, b)
		}
		r.mu.Unlock()
		if ferr := r.fail(e); ferr != nil && err == nil {
			err = ferr
		}
	}()

	if b.destroy != nil {
		b.destroy()
	}
	return nil
}

// RefCount returns the reference count of p, or 0 for Nil and unmanaged pointers.
func (r *Registry) RefCount(p Ptr) uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.blocks[p]
	if !ok {
		return 0
	}
	return format.RefCount(b.raw)
}

// Size returns the payload size recorded in p's header.
func (r *Registry) Size(p Ptr) (int, error) {
	r.mu.Lock()
	b, e := r.lookup("size", p)
	r.mu.Unlock()
	if e != nil {
		return 0, r.fail(e)
	}
	n := format.PayloadSize(b.raw)
	if n > math.MaxInt {
		return 0, r.fail(errorf(ErrKindMemory, nil, "corrupt payload size %d at %s", n, p))
	}
	return int(n), nil
}

// Bytes returns the payload of p. The slice aliases registry memory and is
// only valid while p holds a reference.
func (r *Registry) Bytes(p Ptr) ([]byte, error) {
	r.mu.Lock()
	b, e := r.lookup("bytes", p)
	r.mu.Unlock()
	if e != nil {
		return nil, r.fail(e)
	}
	payload, err := format.Payload(b.raw)
	if err != nil {
		return nil, r.fail(errorf(ErrKindMemory, err, "payload of %s", p))
	}
	return payload, nil
}

// Allocation describes one live block.
type Allocation struct {
	Ptr      Ptr
	RefCount uint64
	Size     int
	Type     string // empty for raw allocations
	Seq      uint64 // allocation order, starting at 1
}

// Outstanding returns every live block in allocation order.
func (r *Registry) Outstanding() []Allocation {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.outstandingLocked()
}

func (r *Registry) outstandingLocked() []Allocation {
	out := make([]Allocation, 0, len(r.blocks))
	for p, b := range r.blocks {
		out = append(out, Allocation{
			Ptr:      p,
			RefCount: format.RefCount(b.raw),
			Size:     int(format.PayloadSize(b.raw)),
			Type:     b.typ,
			Seq:      b.seq,
		})
	}
	slices.SortFunc(out, func(a, b Allocation) int {
		return cmp.Compare(a.Seq, b.Seq)
	})
	return out
}

// Close logs every outstanding block, releases the backend, and returns an
// ErrKindLeak error describing what was still live. Values of leaked typed
// objects are not finalized. Close is idempotent.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true

	leaks := r.outstandingLocked()
	for _, a := range leaks {
		r.log.Warn("arc: outstanding allocation",
			"ptr", a.Ptr, "refs", a.RefCount, "size", a.Size, "type", a.Type, "seq", a.Seq)
	}
	clear(r.blocks)

	var cause error
	if err := r.backend.Close(); err != nil {
		cause = err
	}
	if len(leaks) > 0 {
		return &Error{Kind: ErrKindLeak, Msg: LeakSummary(leaks), Err: cause}
	}
	if cause != nil {
		return errorf(ErrKindState, cause, "closing backend")
	}
	return nil
}
