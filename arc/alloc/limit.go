package alloc

import (
	"fmt"
	"sync"
)

// Limit wraps a Backend and refuses Malloc once the bytes in use would exceed max.
type Limit struct {
	Backend

	mu    sync.Mutex
	max   int64
	inUse int64
}

// NewLimit wraps b with a budget of max bytes.
func NewLimit(b Backend, max int64) *Limit {
	return &Limit{Backend: b, max: max}
}

// Malloc forwards to the wrapped backend if the budget allows it.
func (l *Limit) Malloc(size int) ([]byte, error) {
	l.mu.Lock()
	if l.inUse+int64(size) > l.max {
		l.mu.Unlock()
		return nil, fmt.Errorf("%w: %d in use + %d requested > %d", ErrLimit, l.inUse, size, l.max)
	}
	l.inUse += int64(size)
	l.mu.Unlock()

	block, err := l.Backend.Malloc(size)
	if err != nil {
		l.mu.Lock()
		l.inUse -= int64(size)
		l.mu.Unlock()
		return nil, err
	}
	return block, nil
}

// Free forwards to the wrapped backend and returns the bytes to the budget.
func (l *Limit) Free(block []byte) error {
	if err := l.Backend.Free(block); err != nil {
		return err
	}
	l.mu.Lock()
	l.inUse -= int64(len(block))
	l.mu.Unlock()
	return nil
}

// Remaining returns the bytes still available under the budget.
func (l *Limit) Remaining() int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.max - l.inUse
}

// Compile-time interface check
var _ Backend = (*Limit)(nil)
