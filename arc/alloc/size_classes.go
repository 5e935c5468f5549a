package alloc

import "math"

// SizeClassConfig defines the block size classes of an Arena.
type SizeClassConfig struct {
	// Name for this configuration (for benchmarking)
	Name string

	// Small allocation settings (linear increments)
	SmallMin       int // Smallest class size
	SmallMax       int // Max for linear increments
	SmallIncrement int // Increment between small classes

	// Medium allocation settings (logarithmic growth)
	MediumMax    int     // Largest class; bigger blocks get a dedicated mapping
	GrowthFactor float64 // Exponential growth factor between medium classes
}

// Predefined configurations.
var (
	// ConfigFineGrained: many small classes, least internal fragmentation
	// 16-256 step 16 (16 classes) + 256-16K at 1.5x (~11 classes).
	ConfigFineGrained = SizeClassConfig{
		Name:           "FineGrained",
		SmallMin:       16,
		SmallMax:       256,
		SmallIncrement: 16,
		MediumMax:      16384,
		GrowthFactor:   1.5,
	}

	// ConfigCoarse: power-of-two classes, fewer free lists
	// 32-512 step 32 (16 classes) + 512-16K at 2x (5 classes).
	ConfigCoarse = SizeClassConfig{
		Name:           "Coarse",
		SmallMin:       32,
		SmallMax:       512,
		SmallIncrement: 32,
		MediumMax:      16384,
		GrowthFactor:   2.0,
	}

	// DefaultSizeClasses is used when none is specified.
	DefaultSizeClasses = ConfigFineGrained
)

// sizeClassTable holds the computed block size of each class, ascending.
// Every size is a multiple of 16 so blocks stay 16-byte aligned.
type sizeClassTable struct {
	config SizeClassConfig
	sizes  []int
}

// newSizeClassTable computes class sizes from config.
func newSizeClassTable(config SizeClassConfig) *sizeClassTable {
	table := &sizeClassTable{
		config: config,
		sizes:  make([]int, 0, 32),
	}
	add := func(n int) {
		n = align16(n)
		if len(table.sizes) == 0 || n > table.sizes[len(table.sizes)-1] {
			table.sizes = append(table.sizes, n)
		}
	}

	// Phase 1: Small allocations (linear increments)
	if config.SmallIncrement > 0 {
		for size := config.SmallMin; size <= config.SmallMax; size += config.SmallIncrement {
			add(size)
		}
	}

	// Phase 2: Medium allocations (logarithmic growth)
	size := max(config.SmallMax, 16)
	for size < config.MediumMax {
		next := int(math.Ceil(float64(size) * config.GrowthFactor))
		if next <= size {
			next = size + 1 // Ensure progress
		}
		size = min(next, config.MediumMax)
		add(size)
	}
	return table
}

// classFor returns the smallest class whose size fits n.
// Returns NumClasses() when n is larger than every class.
func (t *sizeClassTable) classFor(n int) int {
	lo, hi := 0, len(t.sizes)
	for lo < hi {
		mid := (lo + hi) / 2
		if t.sizes[mid] >= n {
			hi = mid
		} else {
			lo = mid + 1
		}
	}
	return lo
}

// NumClasses returns the number of size classes.
func (t *sizeClassTable) NumClasses() int {
	return len(t.sizes)
}

// MaxClassSize returns the largest class size.
func (t *sizeClassTable) MaxClassSize() int {
	if len(t.sizes) == 0 {
		return 0
	}
	return t.sizes[len(t.sizes)-1]
}

// String returns the configuration name.
func (t *sizeClassTable) String() string {
	return t.config.Name
}

func align16(n int) int {
	return (n + 15) &^ 15
}
