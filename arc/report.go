package arc

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Stats is a snapshot of registry activity.
type Stats struct {
	Allocs        int64 // Successful Allocate/New calls
	AllocFailures int64 // Allocate/New calls the backend refused
	Frees         int64 // Blocks returned to the backend
	Retains       int64 // Successful Retain calls
	Releases      int64 // Successful Release calls
	Violations    int64 // Memory errors detected
	LiveBlocks    int64 // Blocks currently allocated
	LiveBytes     int64 // Payload bytes currently allocated

	Backend BackendStats
}

// BackendStats mirrors the backend's own counters (headers and padding included).
type BackendStats struct {
	InUse    int64
	Reserved int64
}

// Stats returns a snapshot of the registry counters.
func (r *Registry) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := Stats{
		Allocs:        r.stats.Allocs,
		AllocFailures: r.stats.AllocFailures,
		Frees:         r.stats.Frees,
		Retains:       r.stats.Retains,
		Releases:      r.stats.Releases,
		Violations:    r.stats.Violations,
		LiveBlocks:    int64(len(r.blocks)),
		LiveBytes:     r.stats.LiveBytes,
	}
	if !r.closed {
		bs := r.backend.Stats()
		s.Backend = BackendStats{InUse: bs.InUse, Reserved: bs.Reserved}
	}
	return s
}

var printer = message.NewPrinter(language.English)

// LeakSummary renders a one-line description of outstanding allocations,
// e.g. "3 allocations (1,040 bytes, 4 references) outstanding".
func LeakSummary(leaks []Allocation) string {
	var bytes, refs uint64
	for _, a := range leaks {
		bytes += uint64(a.Size)
		refs += a.RefCount
	}
	noun := "allocations"
	if len(leaks) == 1 {
		noun = "allocation"
	}
	return printer.Sprintf("%d %s (%d bytes, %d references) outstanding", len(leaks), noun, bytes, refs)
}
