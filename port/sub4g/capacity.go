package sub4g

import (
	"fmt"

	"github.com/eclipse-openj9/openj9-omr-sub008/internal/format"
	"github.com/eclipse-openj9/openj9-omr-sub008/internal/logger"
	"github.com/eclipse-openj9/openj9-omr-sub008/port/category"
	"github.com/eclipse-openj9/openj9-omr-sub008/port/subheap"
	"github.com/eclipse-openj9/openj9-omr-sub008/port/vmem"
)

// Capacity is the outcome of EnsureCapacity.
type Capacity uint8

const (
	CapacitySuccess Capacity = iota
	CapacityNotRequired
	CapacityFailed
)

func (c Capacity) String() string {
	switch c {
	case CapacitySuccess:
		return "success"
	case CapacityNotRequired:
		return "not required"
	case CapacityFailed:
		return "failed"
	default:
		return fmt.Sprintf("Capacity(%d)", uint8(c))
	}
}

// EnsureCapacity primes the allocator with a reservation of at least n bytes
// below 4GB. Only the first commit increment is committed; later requests
// grow the heap over it in place.
//
// Priming happens once. Calling it on an allocator that already holds memory
// reports success without doing anything.
func (a *Allocator) EnsureCapacity(n uint64) Capacity {
	if a.opts.Unconstrained {
		return CapacityNotRequired
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return CapacityFailed
	}
	if a.totalSize != 0 {
		return CapacitySuccess
	}

	if err := a.reserveAndCommitLocked(n); err != nil {
		logger.Warn("sub4g: ensure capacity failed", "request", n, "err", err)
		return CapacityFailed
	}
	return CapacitySuccess
}

// reserveAndCommitLocked reserves the sub-commit region, commits its first
// increment and formats a heap over it.
func (a *Allocator) reserveAndCommitLocked(n uint64) error {
	page := a.vm.PageSize()
	size := format.AlignUp(max(n, a.opts.HeapSize), page)

	r, err := a.locator.Locate(size, vmem.ModeReserve, uint32(category.UnusedSub4G))
	if err != nil {
		return err
	}

	commit := min(format.AlignUp(a.opts.CommitIncrement, page), r.Size)
	if err := a.vm.Commit(r, r.Base, commit); err != nil {
		_ = a.vm.Release(r)
		return fmt.Errorf("sub4g: commit initial %d bytes: %w", commit, err)
	}
	h, err := subheap.New(a.vm, r.Base, commit, a.opts.Heap)
	if err != nil {
		_ = a.vm.Release(r)
		return err
	}

	a.cats.IncrementBytes(category.UnusedSub4G, commit)
	a.subCommit = a.pushLocked(wrapper{heap: h, size: r.Size, region: r, charged: commit})
	a.subCommitCommitted = commit
	a.subCommitGrowable = true
	a.stats.heapCreates++

	logger.Info("sub4g: primed sub-commit heap", "base", r.Base, "reserved", r.Size, "committed", commit)
	return nil
}
