package sub4g

import "github.com/eclipse-openj9/openj9-omr-sub008/port/vmem"

type counters struct {
	allocs        int
	frees         int
	unknownFrees  int
	failures      int
	heapCreates   int
	regionCreates int
	rawFallbacks  int
	grows         int
	growFailures  int
}

// Stats is a snapshot of an allocator.
type Stats struct {
	Wrappers      int    `json:"wrappers"`
	Heaps         int    `json:"heaps"`
	Regions       int    `json:"regions"`
	TotalReserved uint64 `json:"total_reserved"`

	SubCommitReserved  uint64 `json:"sub_commit_reserved"`
	SubCommitCommitted uint64 `json:"sub_commit_committed"`
	SubCommitGrowable  bool   `json:"sub_commit_growable"`

	Allocs        int `json:"allocs"`
	Frees         int `json:"frees"`
	UnknownFrees  int `json:"unknown_frees"`
	Failures      int `json:"failures"`
	HeapCreates   int `json:"heap_creates"`
	RegionCreates int `json:"region_creates"`
	RawFallbacks  int `json:"raw_fallbacks"`
	Grows         int `json:"grows"`
	GrowFailures  int `json:"grow_failures"`

	LocatorAttempts int `json:"locator_attempts"`
	LocatorFailures int `json:"locator_failures"`
}

// Stats returns a snapshot of the allocator.
func (a *Allocator) Stats() Stats {
	a.mu.Lock()
	defer a.mu.Unlock()

	st := Stats{
		Wrappers:           a.chain.count,
		TotalReserved:      a.totalSize,
		SubCommitCommitted: a.subCommitCommitted,
		SubCommitGrowable:  a.subCommitGrowable,
		Allocs:             a.stats.allocs,
		Frees:              a.stats.frees,
		UnknownFrees:       a.stats.unknownFrees,
		Failures:           a.stats.failures,
		HeapCreates:        a.stats.heapCreates,
		RegionCreates:      a.stats.regionCreates,
		RawFallbacks:       a.stats.rawFallbacks,
		Grows:              a.stats.grows,
		GrowFailures:       a.stats.growFailures,
		LocatorAttempts:    a.locator.Attempts(),
		LocatorFailures:    a.locator.Failures(),
	}
	if a.subCommit != NoHandle {
		st.SubCommitReserved = a.chain.get(a.subCommit).size
	}
	a.chain.each(func(_ Handle, w *wrapper) bool {
		if w.heap != nil {
			st.Heaps++
		} else {
			st.Regions++
		}
		return true
	})
	return st
}

// WrapperInfo describes one wrapper.
type WrapperInfo struct {
	Handle    Handle    `json:"handle"`
	Base      vmem.Addr `json:"base"`
	Size      uint64    `json:"size"`
	HasHeap   bool      `json:"has_heap"`
	SubCommit bool      `json:"sub_commit"`
	HeapSize  uint64    `json:"heap_size,omitempty"` // committed heap span
	Live      int       `json:"live,omitempty"`
	FreeBytes uint64    `json:"free_bytes,omitempty"`
	Unused    uint64    `json:"unused"` // bytes charged to UnusedSub4G
}

// Wrappers lists the chain from head to tail.
func (a *Allocator) Wrappers() []WrapperInfo {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make([]WrapperInfo, 0, a.chain.count)
	a.chain.each(func(h Handle, w *wrapper) bool {
		info := WrapperInfo{
			Handle:    h,
			Base:      w.region.Base,
			Size:      w.size,
			HasHeap:   w.heap != nil,
			SubCommit: h == a.subCommit,
			Unused:    w.charged,
		}
		if w.heap != nil {
			info.HeapSize = w.heap.Size()
			info.Live = w.heap.Live()
			info.FreeBytes = w.heap.FreeBytes()
		}
		out = append(out, info)
		return true
	})
	return out
}

// CheckHeaps verifies the metadata of every heap.
func (a *Allocator) CheckHeaps() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	var err error
	a.chain.each(func(_ Handle, w *wrapper) bool {
		if w.heap != nil {
			err = w.heap.Check()
		}
		return err == nil
	})
	return err
}
