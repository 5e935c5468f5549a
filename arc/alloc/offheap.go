package alloc

import (
	"fmt"
	"sync"

	"modernc.org/memory"
)

// Offheap allocates blocks outside the Go heap using modernc.org/memory.
type Offheap struct {
	mu     sync.Mutex
	a      memory.Allocator
	live   map[uintptr]int // block address -> size
	stats  Stats
	closed bool
}

// NewOffheap creates an off-heap backend.
func NewOffheap() *Offheap {
	return &Offheap{live: make(map[uintptr]int)}
}

// Malloc returns a zeroed block of size bytes.
func (o *Offheap) Malloc(size int) ([]byte, error) {
	if size <= 0 {
		return nil, ErrInvalidSize
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return nil, ErrClosed
	}
	block, err := o.a.Calloc(size)
	if err != nil {
		return nil, fmt.Errorf("offheap: calloc %d: %w", size, err)
	}
	block = block[:size:size]
	o.live[addr(block)] = size
	o.stats.Mallocs++
	o.stats.InUse += int64(size)
	return block, nil
}

// Free returns block to the underlying allocator.
func (o *Offheap) Free(block []byte) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return ErrClosed
	}
	a := addr(block)
	size, ok := o.live[a]
	if !ok || size != len(block) {
		return ErrForeignBlock
	}
	if err := o.a.Free(block); err != nil {
		return fmt.Errorf("offheap: free: %w", err)
	}
	delete(o.live, a)
	o.stats.Frees++
	o.stats.InUse -= int64(size)
	return nil
}

// Stats returns a snapshot of the backend counters.
func (o *Offheap) Stats() Stats {
	o.mu.Lock()
	defer o.mu.Unlock()
	s := o.stats
	// Only counted when built with the memory.counters tag.
	s.Reserved = int64(o.a.Bytes)
	return s
}

// Close unmaps every page the allocator obtained.
func (o *Offheap) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return nil
	}
	o.closed = true
	clear(o.live)
	return o.a.Close()
}

// Compile-time interface check
var _ Backend = (*Offheap)(nil)
