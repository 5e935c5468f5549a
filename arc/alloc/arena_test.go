package alloc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestArena(t testing.TB, config *ArenaConfig) *Arena {
	t.Helper()
	a, err := NewArena(config)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	return a
}

// TestArena_ReusesFreedBlock tests that a freed block is handed out again for
// a request in the same size class.
func TestArena_ReusesFreedBlock(t *testing.T) {
	a := newTestArena(t, nil)

	first, err := a.Malloc(48)
	require.NoError(t, err)
	first[0] = 0xFF
	firstAddr := addr(first)
	require.NoError(t, a.Free(first))
	assert.Equal(t, 1, a.FreeBlocks())

	second, err := a.Malloc(40) // same 48-byte class
	require.NoError(t, err)
	assert.Equal(t, firstAddr, addr(second), "freed block should be reused")
	assert.Zero(t, second[0], "reused block must be zeroed")
	assert.Zero(t, a.FreeBlocks())
}

// TestArena_Alignment tests that every block starts on a 16-byte boundary.
func TestArena_Alignment(t *testing.T) {
	a := newTestArena(t, nil)

	for _, size := range []int{1, 7, 17, 33, 100, 257, 1000, 5000} {
		block, err := a.Malloc(size)
		require.NoError(t, err, "Malloc(%d)", size)
		assert.Zero(t, addr(block)%16, "block of %d bytes misaligned", size)
		assert.Len(t, block, size)
		assert.Zero(t, cap(block)%16, "class size for %d not a multiple of 16", size)
	}
}

// TestArena_LargeBlock tests blocks above the largest class.
func TestArena_LargeBlock(t *testing.T) {
	a := newTestArena(t, nil)
	before := a.Stats().Reserved

	block, err := a.Malloc(64 << 10)
	require.NoError(t, err)
	require.Len(t, block, 64<<10)
	block[len(block)-1] = 1
	assert.Greater(t, a.Stats().Reserved, before)

	require.NoError(t, a.Free(block))
	assert.Equal(t, before, a.Stats().Reserved, "large block mapping should be released")
	assert.Zero(t, a.FreeBlocks(), "large blocks never go on free lists")
}

// TestArena_GrowsChunks tests that exhausting a chunk maps another one.
func TestArena_GrowsChunks(t *testing.T) {
	a := newTestArena(t, &ArenaConfig{ChunkSize: 1, SizeClasses: &ConfigCoarse})
	chunk := a.chunkSize

	n := chunk/1024 + 1
	for i := range n {
		_, err := a.Malloc(1024)
		require.NoError(t, err, "Malloc %d", i)
	}
	assert.GreaterOrEqual(t, a.Stats().Reserved, int64(2*chunk))
}

// TestArena_TrimmedSliceRejected tests that Free refuses a re-sliced block.
func TestArena_TrimmedSliceRejected(t *testing.T) {
	a := newTestArena(t, nil)

	block, err := a.Malloc(64)
	require.NoError(t, err)
	require.ErrorIs(t, a.Free(block[:32:32]), ErrForeignBlock)
	require.NoError(t, a.Free(block))
}

func TestSizeClassTable(t *testing.T) {
	table := newSizeClassTable(ConfigCoarse)
	require.Equal(t, 21, table.NumClasses())
	assert.Equal(t, 32, table.sizes[0])
	assert.Equal(t, 16384, table.MaxClassSize())
	assert.Equal(t, "Coarse", table.String())

	assert.Equal(t, 0, table.classFor(1))
	assert.Equal(t, 0, table.classFor(32))
	assert.Equal(t, 1, table.classFor(33))
	assert.Equal(t, table.NumClasses(), table.classFor(16385))

	for i := 1; i < table.NumClasses(); i++ {
		assert.Greater(t, table.sizes[i], table.sizes[i-1], "classes must ascend")
		assert.Zero(t, table.sizes[i]%16)
	}
}

func TestNewArena_EmptyConfig(t *testing.T) {
	_, err := NewArena(&ArenaConfig{SizeClasses: &SizeClassConfig{Name: "empty"}})
	require.Error(t, err)
}
