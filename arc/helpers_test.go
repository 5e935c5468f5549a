package arc

import (
	"sync"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/require"

	"github.com/joshuapare/arckit/arc/alloc"
)

// ============================================================================
// Registry Construction
// ============================================================================

// recordingReporter collects every reported violation.
type recordingReporter struct {
	mu   sync.Mutex
	errs []*Error
}

func (rr *recordingReporter) Report(err *Error) {
	rr.mu.Lock()
	defer rr.mu.Unlock()
	rr.errs = append(rr.errs, err)
}

func (rr *recordingReporter) Count() int {
	rr.mu.Lock()
	defer rr.mu.Unlock()
	return len(rr.errs)
}

// newTestRegistry creates a registry with the given policy on the Go heap and
// fails the test if anything is still outstanding at cleanup.
func newTestRegistry(t testing.TB, policy Policy) (*Registry, *recordingReporter) {
	t.Helper()
	return newTestRegistryOn(t, policy, alloc.NewGoHeap())
}

// newTestRegistryOn is newTestRegistry with an explicit backend.
func newTestRegistryOn(t testing.TB, policy Policy, b alloc.Backend) (*Registry, *recordingReporter) {
	t.Helper()

	rep := &recordingReporter{}
	r := NewRegistry(&Options{Backend: b, Policy: policy, Reporter: rep})
	t.Cleanup(func() {
		require.NoError(t, r.Close(), "registry should have no outstanding allocations")
	})
	return r, rep
}

// forEachBackend runs fn once per backend in a subtest.
func forEachBackend(t *testing.T, fn func(t *testing.T, b alloc.Backend)) {
	t.Helper()
	for _, name := range alloc.Names() {
		t.Run(name, func(t *testing.T) {
			b, err := alloc.ByName(name)
			require.NoError(t, err)
			fn(t, b)
		})
	}
}

// addrOf returns the address of the first byte of b.
func addrOf(b []byte) uintptr {
	return uintptr(unsafe.Pointer(unsafe.SliceData(b)))
}

// ============================================================================
// Test Values
// ============================================================================

// counter is a finalizable value that records how often it was finalized.
type counter struct {
	Value     int
	finalized *int
}

func (c *counter) Finalize() {
	if c.finalized != nil {
		*c.finalized++
	}
}

// node is a finalizable list element that owns the next element.
type node struct {
	Name string
	Next Shared[node]
	log  *[]string
}

func (n *node) Finalize() {
	if n.log != nil {
		*n.log = append(*n.log, n.Name)
	}
	_ = n.Next.Release()
}
