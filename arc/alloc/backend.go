package alloc

import (
	"fmt"
	"unsafe"
)

// Backend is the underlying system allocator of a registry.
type Backend interface {
	// Malloc returns a zeroed block of exactly size bytes.
	Malloc(size int) ([]byte, error)

	// Free returns a block obtained from Malloc. The slice must be the one
	// Malloc returned (same start, same length).
	Free(block []byte) error

	// Stats returns a snapshot of the backend counters.
	Stats() Stats

	// Close releases everything the backend reserved. Blocks still in use
	// become invalid.
	Close() error
}

// Stats holds backend counters.
type Stats struct {
	Mallocs  int64 // Successful Malloc calls
	Frees    int64 // Successful Free calls
	InUse    int64 // Bytes currently handed out
	Reserved int64 // Bytes currently obtained from the OS (0 when not tracked)
}

// Backend names understood by ByName.
const (
	NameGoHeap  = "go"
	NameOffheap = "offheap"
	NameArena   = "arena"
)

// Names lists the backends ByName can construct.
func Names() []string {
	return []string{NameGoHeap, NameOffheap, NameArena}
}

// ByName constructs a backend with default settings.
func ByName(name string) (Backend, error) {
	switch name {
	case NameGoHeap, "":
		return NewGoHeap(), nil
	case NameOffheap:
		return NewOffheap(), nil
	case NameArena:
		return NewArena(nil)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, name)
	}
}

// addr returns the address of the first byte of block, including zero-length
// blocks with spare capacity.
func addr(block []byte) uintptr {
	return uintptr(unsafe.Pointer(unsafe.SliceData(block)))
}
