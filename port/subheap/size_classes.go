package subheap

import "math"

// SizeClassConfig defines how free cells are bucketed.
type SizeClassConfig struct {
	Name string

	// Linear classes from SmallMin to SmallMax in SmallIncrement steps.
	SmallMin       uint64
	SmallMax       uint64
	SmallIncrement uint64

	// Geometric classes from SmallMax to MediumMax. Anything larger lands in
	// a single trailing class.
	MediumMax    uint64
	GrowthFactor float64
}

var (
	// ConfigBalanced suits the mixed small allocations of a runtime.
	ConfigBalanced = SizeClassConfig{
		Name:           "Balanced",
		SmallMin:       16,
		SmallMax:       512,
		SmallIncrement: 16,
		MediumMax:      64 * 1024,
		GrowthFactor:   1.5,
	}

	// ConfigCoarse has fewer classes and wastes more on internal fragmentation.
	ConfigCoarse = SizeClassConfig{
		Name:           "Coarse",
		SmallMin:       16,
		SmallMax:       512,
		SmallIncrement: 64,
		MediumMax:      64 * 1024,
		GrowthFactor:   2.0,
	}

	DefaultConfig = ConfigBalanced
)

// sizeClassTable holds the upper bound of every class.
type sizeClassTable struct {
	config     SizeClassConfig
	boundaries []uint64
}

func newSizeClassTable(config SizeClassConfig) *sizeClassTable {
	t := &sizeClassTable{config: config, boundaries: make([]uint64, 0, 64)}

	for size := config.SmallMin; size < config.SmallMax; size += config.SmallIncrement {
		t.boundaries = append(t.boundaries, size+config.SmallIncrement-1)
	}

	size := config.SmallMax
	for size < config.MediumMax {
		next := uint64(math.Ceil(float64(size) * config.GrowthFactor))
		if next <= size {
			next = size + 1
		}
		t.boundaries = append(t.boundaries, next-1)
		size = next
	}
	return t
}

// class returns the class index for size. Sizes above every boundary map to
// the trailing class, numClasses()-1.
func (t *sizeClassTable) class(size uint64) int {
	lo, hi := 0, len(t.boundaries)-1
	for lo <= hi {
		mid := (lo + hi) / 2
		if size <= t.boundaries[mid] {
			if mid == 0 || size > t.boundaries[mid-1] {
				return mid
			}
			hi = mid - 1
		} else {
			lo = mid + 1
		}
	}
	return len(t.boundaries)
}

// numClasses includes the trailing class for oversized cells.
func (t *sizeClassTable) numClasses() int {
	return len(t.boundaries) + 1
}
