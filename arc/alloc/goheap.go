package alloc

import "sync"

// GoHeap allocates blocks from the Go heap.
type GoHeap struct {
	mu     sync.Mutex
	live   map[uintptr]int // block address -> size
	stats  Stats
	closed bool
}

// NewGoHeap creates a Go heap backend.
func NewGoHeap() *GoHeap {
	return &GoHeap{live: make(map[uintptr]int)}
}

// Malloc returns a zeroed block of size bytes.
func (g *GoHeap) Malloc(size int) ([]byte, error) {
	if size <= 0 {
		return nil, ErrInvalidSize
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return nil, ErrClosed
	}
	block := make([]byte, size)
	g.live[addr(block)] = size
	g.stats.Mallocs++
	g.stats.InUse += int64(size)
	return block, nil
}

// Free forgets block. The garbage collector reclaims it once unreferenced.
func (g *GoHeap) Free(block []byte) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return ErrClosed
	}
	a := addr(block)
	size, ok := g.live[a]
	if !ok || size != len(block) {
		return ErrForeignBlock
	}
	delete(g.live, a)
	g.stats.Frees++
	g.stats.InUse -= int64(size)
	return nil
}

// Stats returns a snapshot of the backend counters.
func (g *GoHeap) Stats() Stats {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.stats
}

// Close drops all bookkeeping.
func (g *GoHeap) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.closed = true
	clear(g.live)
	return nil
}

// Compile-time interface check
var _ Backend = (*GoHeap)(nil)
