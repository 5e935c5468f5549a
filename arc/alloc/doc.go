// Package alloc provides the system allocators a registry reserves blocks from.
//
// # Overview
//
// A registry never talks to the operating system directly. Every block it hands
// out (header plus payload) is obtained from a Backend and returned to the same
// Backend once its reference count reaches zero. Backends only move bytes; they
// know nothing about headers or reference counts.
//
// # Backend Interface
//
//   - Malloc(size): return a zeroed block of exactly size bytes
//   - Free(block): return a block obtained from Malloc
//   - Stats(): counters for tests and instrumentation
//   - Close(): release everything the backend reserved
//
// # Implementations
//
// GoHeap: blocks come from make([]byte). Free only drops bookkeeping and the
// garbage collector reclaims the memory. Used by default and in tests.
//
// Offheap: blocks come from modernc.org/memory, a malloc/free allocator backed
// by mmap outside the Go heap. Block addresses never move and are invisible to
// the garbage collector, so payload addresses can be handed to foreign code.
//
// Arena: blocks are carved from anonymous page mappings using segregated size
// classes. Freed blocks go to a per-class free list and are reused before the
// bump pointer advances. Requests above the largest class get their own mapping.
//
// Limit: wraps any Backend and fails Malloc once the bytes in use would exceed
// a fixed budget. Useful for exercising allocation failure paths.
//
// # Usage Example
//
//	b, err := alloc.ByName("arena")
//	if err != nil {
//	    return err
//	}
//	defer b.Close()
//
//	block, err := b.Malloc(64)
//	if err != nil {
//	    return err
//	}
//	// ... use block ...
//	err = b.Free(block)
//
// # Thread Safety
//
// All backends in this package are safe for concurrent use.
package alloc
