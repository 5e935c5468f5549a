package alloc

import (
	"fmt"
	"sync"

	"github.com/joshuapare/arckit/internal/mmap"
)

// DefaultChunkSize is the size of each page mapping an Arena carves blocks from.
const DefaultChunkSize = 256 << 10

// ArenaConfig configures an Arena. The zero value selects the defaults.
type ArenaConfig struct {
	ChunkSize   int              // Bytes per mapping; rounded up to whole pages
	SizeClasses *SizeClassConfig // nil for DefaultSizeClasses
}

// Arena carves blocks out of anonymous page mappings using segregated size
// classes. A freed block goes onto its class free list and is handed out again
// before the bump pointer moves. Blocks larger than the biggest class get a
// dedicated mapping that is unmapped on Free.
type Arena struct {
	mu sync.Mutex

	sizeTable *sizeClassTable
	chunkSize int

	// Free lists per size class (LIFO stacks of block start addresses).
	freeLists [][][]byte

	// Current chunk and its bump offset.
	cur    []byte
	curOff int

	// chunks keeps every mapping alive until Close.
	chunks []arenaChunk

	// live maps block address -> class index, or -1 for a large block.
	live  map[uintptr]int
	large map[uintptr]arenaChunk

	stats  Stats
	closed bool
}

type arenaChunk struct {
	data    []byte
	cleanup func() error
}

// NewArena creates an arena backend. A nil config selects the defaults.
func NewArena(config *ArenaConfig) (*Arena, error) {
	if config == nil {
		config = &ArenaConfig{}
	}
	classes := DefaultSizeClasses
	if config.SizeClasses != nil {
		classes = *config.SizeClasses
	}
	table := newSizeClassTable(classes)
	if table.NumClasses() == 0 {
		return nil, fmt.Errorf("arena: size class config %q yields no classes", classes.Name)
	}

	chunkSize := config.ChunkSize
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	chunkSize = mmap.RoundToPage(max(chunkSize, table.MaxClassSize()))

	return &Arena{
		sizeTable: table,
		chunkSize: chunkSize,
		freeLists: make([][][]byte, table.NumClasses()),
		live:      make(map[uintptr]int),
		large:     make(map[uintptr]arenaChunk),
	}, nil
}

// Malloc returns a zeroed block of size bytes.
func (a *Arena) Malloc(size int) ([]byte, error) {
	if size <= 0 {
		return nil, ErrInvalidSize
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return nil, ErrClosed
	}

	cls := a.sizeTable.classFor(size)
	if cls == a.sizeTable.NumClasses() {
		return a.mallocLarge(size)
	}

	var block []byte
	if fl := a.freeLists[cls]; len(fl) > 0 {
		block = fl[len(fl)-1]
		a.freeLists[cls] = fl[:len(fl)-1]
		clear(block)
	} else {
		var err error
		block, err = a.bump(a.sizeTable.sizes[cls])
		if err != nil {
			return nil, err
		}
	}

	// Cap at the class size so Free can hand the full block back.
	block = block[:size:len(block)]
	a.live[addr(block)] = cls
	a.stats.Mallocs++
	a.stats.InUse += int64(size)
	return block, nil
}

// bump carves n bytes from the current chunk, mapping a new one when needed.
// The tail of an exhausted chunk is abandoned.
func (a *Arena) bump(n int) ([]byte, error) {
	if a.cur == nil || a.curOff+n > len(a.cur) {
		data, cleanup, err := mmap.Anon(a.chunkSize)
		if err != nil {
			return nil, fmt.Errorf("arena: grow: %w", err)
		}
		a.chunks = append(a.chunks, arenaChunk{data: data, cleanup: cleanup})
		a.cur, a.curOff = data, 0
		a.stats.Reserved += int64(len(data))
	}
	block := a.cur[a.curOff : a.curOff+n : a.curOff+n]
	a.curOff += n
	return block, nil
}

func (a *Arena) mallocLarge(size int) ([]byte, error) {
	data, cleanup, err := mmap.Anon(size)
	if err != nil {
		return nil, fmt.Errorf("arena: large block of %d bytes: %w", size, err)
	}
	block := data[:size:size]
	a.large[addr(block)] = arenaChunk{data: data, cleanup: cleanup}
	a.live[addr(block)] = -1
	a.stats.Mallocs++
	a.stats.InUse += int64(size)
	a.stats.Reserved += int64(len(data))
	return block, nil
}

// Free returns block to its class free list, or unmaps it if it was large.
func (a *Arena) Free(block []byte) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return ErrClosed
	}
	p := addr(block)
	cls, ok := a.live[p]
	if !ok {
		return ErrForeignBlock
	}

	if cls < 0 {
		chunk := a.large[p]
		if err := chunk.cleanup(); err != nil {
			return fmt.Errorf("arena: unmap large block: %w", err)
		}
		delete(a.large, p)
		a.stats.Reserved -= int64(len(chunk.data))
	} else {
		if cap(block) != a.sizeTable.sizes[cls] {
			return ErrForeignBlock
		}
		a.freeLists[cls] = append(a.freeLists[cls], block[:cap(block)])
	}

	delete(a.live, p)
	a.stats.Frees++
	a.stats.InUse -= int64(len(block))
	return nil
}

// Stats returns a snapshot of the backend counters.
func (a *Arena) Stats() Stats {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.stats
}

// FreeBlocks returns the number of blocks waiting on free lists.
func (a *Arena) FreeBlocks() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	n := 0
	for _, fl := range a.freeLists {
		n += len(fl)
	}
	return n
}

// Close unmaps every chunk and every large block.
func (a *Arena) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return nil
	}
	a.closed = true

	var firstErr error
	for _, c := range a.chunks {
		if err := c.cleanup(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	for _, c := range a.large {
		if err := c.cleanup(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	a.chunks, a.cur = nil, nil
	clear(a.large)
	clear(a.live)
	clear(a.freeLists)
	a.stats.Reserved = 0
	return firstErr
}

// Compile-time interface check
var _ Backend = (*Arena)(nil)
