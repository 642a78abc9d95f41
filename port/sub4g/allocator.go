package sub4g

import (
	"errors"
	"fmt"

	"github.com/eclipse-openj9/openj9-omr-sub008/internal/format"
	"github.com/eclipse-openj9/openj9-omr-sub008/internal/lock"
	"github.com/eclipse-openj9/openj9-omr-sub008/internal/logger"
	"github.com/eclipse-openj9/openj9-omr-sub008/port/category"
	"github.com/eclipse-openj9/openj9-omr-sub008/port/subheap"
	"github.com/eclipse-openj9/openj9-omr-sub008/port/vmem"
)

// Allocator is the sub-4GB allocation context. One is created per runtime
// and shared by every caller; all methods are safe for concurrent use.
type Allocator struct {
	mu lock.Mutex

	vm      vmem.Provider
	cats    *category.Registry
	opts    Options
	locator *Locator

	chain     chain
	totalSize uint64 // bytes reserved across all wrappers

	// Sub-commit state. The sub-commit wrapper is reserved larger than it is
	// committed and grows in place.
	subCommit          Handle
	subCommitCommitted uint64
	subCommitGrowable  bool

	stats  counters
	closed bool
}

// New creates an allocator. Zero fields of opts take their defaults.
func New(vm vmem.Provider, cats *category.Registry, opts Options) (*Allocator, error) {
	opts = opts.withDefaults()
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if !format.IsAligned(opts.HeapSize, vm.PageSize()) {
		return nil, fmt.Errorf("%w: heap size %d is not a multiple of the page size %d",
			ErrBadOptions, opts.HeapSize, vm.PageSize())
	}

	loc := NewLocator(vm, opts.Windows, opts.SearchStep)
	loc.unconstrained = opts.Unconstrained

	return &Allocator{
		vm:        vm,
		cats:      cats,
		opts:      opts,
		locator:   loc,
		chain:     newChain(),
		subCommit: NoHandle,
	}, nil
}

// Options returns the effective options.
func (a *Allocator) Options() Options {
	return a.opts
}

// Allocate returns n bytes below 4GB.
func (a *Allocator) Allocate(n uint64) (vmem.Addr, error) {
	if n == 0 {
		return 0, ErrBadSize
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return 0, ErrClosed
	}
	a.stats.allocs++

	if n >= a.opts.HeapSize {
		return a.allocateRegionLocked(n)
	}

	if addr, ok := a.allocateFromChainLocked(n); ok {
		return addr, nil
	}

	if addr, ok := a.allocateFromGrowthLocked(n); ok {
		return addr, nil
	}

	return a.allocateNewHeapLocked(n)
}

// allocateFromChainLocked tries every live heap, most recent first.
func (a *Allocator) allocateFromChainLocked(n uint64) (vmem.Addr, bool) {
	var (
		addr  vmem.Addr
		found bool
	)
	a.chain.each(func(_ Handle, w *wrapper) bool {
		if w.heap == nil {
			return true
		}
		p, err := w.heap.Allocate(n)
		if err != nil {
			return true
		}
		a.moveFromUnused(w, n)
		addr, found = p, true
		return false
	})
	return addr, found
}

// allocateFromGrowthLocked grows the sub-commit heap until it can serve n
// or can grow no further.
func (a *Allocator) allocateFromGrowthLocked(n uint64) (vmem.Addr, bool) {
	if a.subCommit == NoHandle || !a.subCommitGrowable {
		return 0, false
	}
	w := a.chain.get(a.subCommit)
	if subheap.CellSize(n) > w.size-format.HeapHeaderSize {
		// Not even the whole reservation could hold it.
		return 0, false
	}

	for {
		if err := a.growSubCommitLocked(n); err != nil {
			return 0, false
		}
		if p, err := w.heap.Allocate(n); err == nil {
			a.moveFromUnused(w, n)
			return p, true
		}
	}
}

// growSubCommitLocked commits the next increment of the sub-commit
// reservation and grows its heap over it. Any failure, including running out
// of reservation, disables growth for good.
func (a *Allocator) growSubCommitLocked(n uint64) error {
	if a.subCommit == NoHandle || !a.subCommitGrowable {
		return ErrGrowthDisabled
	}
	w := a.chain.get(a.subCommit)

	remaining := w.size - a.subCommitCommitted
	if remaining == 0 {
		a.disableGrowthLocked("reservation exhausted")
		return ErrGrowthDisabled
	}

	want := max(a.opts.CommitIncrement, format.AlignUp(subheap.CellSize(n), a.vm.PageSize()))
	grow := min(want, remaining)

	at := w.region.Base + vmem.Addr(a.subCommitCommitted)
	if err := a.vm.Commit(w.region, at, grow); err != nil {
		a.stats.growFailures++
		a.disableGrowthLocked(err.Error())
		return fmt.Errorf("%w: %w", ErrGrowthDisabled, err)
	}
	if err := w.heap.Grow(grow); err != nil {
		a.stats.growFailures++
		_ = a.vm.Decommit(w.region, at, grow)
		a.disableGrowthLocked(err.Error())
		return fmt.Errorf("%w: %w", ErrGrowthDisabled, err)
	}

	a.subCommitCommitted += grow
	a.stats.grows++
	w.charged += grow
	a.cats.IncrementBytes(category.UnusedSub4G, grow)

	logger.Debug("sub4g: grew sub-commit heap", "base", w.region.Base, "by", grow, "committed", a.subCommitCommitted, "reserved", w.size)
	return nil
}

func (a *Allocator) disableGrowthLocked(reason string) {
	a.subCommitGrowable = false
	logger.Info("sub4g: sub-commit growth disabled", "reason", reason, "committed", a.subCommitCommitted)
}

// allocateRegionLocked serves a large request with a dedicated region.
func (a *Allocator) allocateRegionLocked(n uint64) (vmem.Addr, error) {
	r, err := a.locator.Locate(n, vmem.ModeCommit, uint32(category.UnusedSub4G))
	if err != nil {
		return 0, a.notFound(n, err)
	}

	a.cats.IncrementBytes(category.UnusedSub4G, r.Size)
	w := wrapper{size: r.Size, region: r, charged: r.Size}
	a.moveFromUnused(&w, n)
	a.pushLocked(w)
	a.stats.regionCreates++

	logger.Debug("sub4g: created large region", "base", r.Base, "size", r.Size, "request", n)
	return r.Base, nil
}

// allocateNewHeapLocked creates a heap of the default size and serves n from
// it. If the heap cannot hold n the raw region serves it instead.
func (a *Allocator) allocateNewHeapLocked(n uint64) (vmem.Addr, error) {
	size := a.opts.HeapSize
	r, err := a.locator.Locate(size, vmem.ModeCommit, uint32(category.UnusedSub4G))
	if err != nil {
		return 0, a.notFound(n, err)
	}
	h, err := subheap.New(a.vm, r.Base, r.Size, a.opts.Heap)
	if err != nil {
		a.stats.failures++
		if rerr := a.vm.Release(r); rerr != nil {
			err = errors.Join(err, rerr)
		}
		logger.Warn("sub4g: cannot format heap", "base", r.Base, "size", r.Size, "err", err)
		return 0, fmt.Errorf("sub4g: format heap at %v: %w", r.Base, err)
	}

	a.cats.IncrementBytes(category.UnusedSub4G, r.Size)
	w := wrapper{size: r.Size, region: r, charged: r.Size}
	if p, err := h.Allocate(n); err == nil {
		w.heap = h
		a.moveFromUnused(&w, n)
		a.pushLocked(w)
		a.stats.heapCreates++
		logger.Debug("sub4g: created heap", "base", r.Base, "size", r.Size)
		return p, nil
	}

	// Too close to the heap size to pay the heap's overhead.
	a.moveFromUnused(&w, n)
	a.pushLocked(w)
	a.stats.rawFallbacks++
	logger.Debug("sub4g: request served by raw heap region", "base", r.Base, "size", r.Size, "request", n)
	return r.Base, nil
}

func (a *Allocator) pushLocked(w wrapper) Handle {
	a.totalSize += w.size
	a.cats.IncrementCounters(category.PortLibrary, wrapperMetaSize)
	return a.chain.push(w)
}

func (a *Allocator) notFound(n uint64, err error) error {
	a.stats.failures++
	logger.Warn("sub4g: allocation failed", "request", n, "err", err)
	if errors.Is(err, ErrNotFound) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrNotFound, err)
}

// moveFromUnused hands n bytes of w to the caller.
func (a *Allocator) moveFromUnused(w *wrapper, n uint64) {
	n = min(n, w.charged)
	w.charged -= n
	a.cats.DecrementBytes(category.UnusedSub4G, n)
}

// returnToUnused takes n bytes of w back from the caller.
func (a *Allocator) returnToUnused(w *wrapper, n uint64) {
	w.charged += n
	a.cats.IncrementBytes(category.UnusedSub4G, n)
}

// Free returns the n-byte block at addr. A block inside a heap goes back to
// the heap; a dedicated region is released. An address owned by no wrapper
// is logged and reported as ErrUnknownAddress.
func (a *Allocator) Free(addr vmem.Addr, n uint64) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return ErrClosed
	}

	h := a.chain.find(addr)
	if h == NoHandle {
		a.stats.unknownFrees++
		logger.Warn("sub4g: free of unknown address", "addr", addr)
		return fmt.Errorf("%w: %v", ErrUnknownAddress, addr)
	}
	w := a.chain.get(h)

	if w.heap == nil {
		if addr != w.region.Base {
			a.stats.unknownFrees++
			logger.Warn("sub4g: free of address inside a dedicated region", "addr", addr, "region", w.region.Base)
			return fmt.Errorf("%w: %v is inside region %v", ErrUnknownAddress, addr, w.region.Base)
		}
		a.stats.frees++
		return a.destroyLocked(h)
	}

	a.stats.frees++

	if err := w.heap.Free(addr); err != nil {
		return fmt.Errorf("sub4g: free %v: %w", addr, err)
	}
	a.returnToUnused(w, n)
	return nil
}

// destroyLocked releases the region of h and removes it from the chain.
func (a *Allocator) destroyLocked(h Handle) error {
	w := a.chain.get(h)
	if err := a.vm.Release(w.region); err != nil {
		return fmt.Errorf("sub4g: release %v: %w", w.region.Base, err)
	}
	a.cats.DecrementBytes(category.UnusedSub4G, w.charged)
	a.cats.DecrementCounters(category.PortLibrary, wrapperMetaSize)
	a.totalSize -= w.size

	if h == a.subCommit {
		a.subCommit = NoHandle
		a.subCommitCommitted = 0
		a.subCommitGrowable = false
	}
	a.chain.remove(h)
	return nil
}

// Owns reports whether addr lies inside any wrapper's region.
func (a *Allocator) Owns(addr vmem.Addr) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.chain.find(addr) != NoHandle
}

// Shutdown releases every region. Blocks still held by callers become
// invalid. Release failures are joined into the returned error.
func (a *Allocator) Shutdown() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return nil
	}

	var errs []error
	released := 0
	a.chain.each(func(h Handle, _ *wrapper) bool {
		if err := a.destroyLocked(h); err != nil {
			errs = append(errs, err)
			return true
		}
		released++
		return true
	})
	a.closed = true

	logger.Info("sub4g: shut down", "released", released, "failed", len(errs))
	return errors.Join(errs...)
}
