package sub4g

import (
	"fmt"

	"github.com/eclipse-openj9/openj9-omr-sub008/internal/format"
	"github.com/eclipse-openj9/openj9-omr-sub008/port/subheap"
	"github.com/eclipse-openj9/openj9-omr-sub008/port/vmem"
)

const (
	// DefaultHeapSize is the size of a suballocating heap and the threshold
	// at which requests get a dedicated region.
	DefaultHeapSize = 8 << 20

	// DefaultCommitIncrement is how much of the sub-commit reservation each
	// growth step commits.
	DefaultCommitIncrement = 1 << 20

	// DefaultSearchStep is how far the locator moves down after a failed
	// reservation that did not report the colliding region.
	DefaultSearchStep = 1 << 20
)

// Window is an inclusive address range [Low, High] the locator may reserve
// from. High must be below 4GB.
type Window struct {
	Low  vmem.Addr
	High vmem.Addr
}

func (w Window) String() string {
	return fmt.Sprintf("[%v, %v]", w.Low, w.High)
}

// DefaultWindows covers everything above the first 64KB and below 4GB.
func DefaultWindows() []Window {
	return []Window{{Low: 0x0001_0000, High: 0xFFFF_FFFF}}
}

// Options configures an Allocator.
type Options struct {
	HeapSize        uint64
	CommitIncrement uint64
	SearchStep      uint64
	Windows         []Window

	// Unconstrained drops the below-4GB requirement: regions are reserved
	// anywhere and EnsureCapacity reports CapacityNotRequired.
	Unconstrained bool

	// Heap configures every suballocating heap.
	Heap subheap.Options
}

func (o Options) withDefaults() Options {
	if o.HeapSize == 0 {
		o.HeapSize = DefaultHeapSize
	}
	if o.CommitIncrement == 0 {
		o.CommitIncrement = DefaultCommitIncrement
	}
	if o.SearchStep == 0 {
		o.SearchStep = DefaultSearchStep
	}
	if len(o.Windows) == 0 {
		o.Windows = DefaultWindows()
	}
	return o
}

// Validate reports options that no allocator can work with.
func (o Options) Validate() error {
	if o.HeapSize < 4096 || !format.IsAligned(o.HeapSize, format.Granule) {
		return fmt.Errorf("%w: heap size %d", ErrBadOptions, o.HeapSize)
	}
	if o.CommitIncrement == 0 || o.CommitIncrement > o.HeapSize {
		return fmt.Errorf("%w: commit increment %d with heap size %d", ErrBadOptions, o.CommitIncrement, o.HeapSize)
	}
	for _, w := range o.Windows {
		if w.High < w.Low {
			return fmt.Errorf("%w: inverted window %v", ErrBadOptions, w)
		}
		if w.High >= vmem.Below4G {
			return fmt.Errorf("%w: window %v reaches past 4GB", ErrBadOptions, w)
		}
	}
	return nil
}
