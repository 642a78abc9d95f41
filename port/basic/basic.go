// Package basic is the unconstrained allocator: each block is its own
// committed region, placed wherever the provider likes.
package basic

import (
	"errors"
	"fmt"

	"github.com/eclipse-openj9/openj9-omr-sub008/internal/lock"
	"github.com/eclipse-openj9/openj9-omr-sub008/internal/logger"
	"github.com/eclipse-openj9/openj9-omr-sub008/port/category"
	"github.com/eclipse-openj9/openj9-omr-sub008/port/vmem"
)

var (
	// ErrUnknownAddress indicates a free of a block this allocator did not return.
	ErrUnknownAddress = errors.New("basic: address not allocated here")

	// ErrBadSize indicates a zero-byte request.
	ErrBadSize = errors.New("basic: bad request size")

	// ErrClosed indicates use after Shutdown.
	ErrClosed = errors.New("basic: allocator shut down")
)

// Allocator hands out page-granular blocks with no address constraint.
type Allocator struct {
	mu      lock.Mutex
	vm      vmem.Provider
	regions map[vmem.Addr]vmem.Region
	closed  bool
}

// New creates an allocator over vm.
func New(vm vmem.Provider) *Allocator {
	return &Allocator{vm: vm, regions: make(map[vmem.Addr]vmem.Region)}
}

// Allocate returns a committed block of at least n bytes.
func (a *Allocator) Allocate(n uint64) (vmem.Addr, error) {
	if n == 0 {
		return 0, ErrBadSize
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return 0, ErrClosed
	}
	r, err := a.vm.Reserve(vmem.ReserveParams{Size: n, Mode: vmem.ModeCommit, Category: uint32(category.PortLibrary)})
	if err != nil {
		return 0, fmt.Errorf("basic: allocate %d bytes: %w", n, err)
	}
	a.regions[r.Base] = r
	if logger.AllocTrace {
		logger.Debug("basic: allocate", "addr", r.Base, "request", n, "size", r.Size)
	}
	return r.Base, nil
}

// Free releases the block at addr.
func (a *Allocator) Free(addr vmem.Addr) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	r, ok := a.regions[addr]
	if !ok {
		return fmt.Errorf("%w: %v", ErrUnknownAddress, addr)
	}
	if err := a.vm.Release(r); err != nil {
		return fmt.Errorf("basic: free %v: %w", addr, err)
	}
	delete(a.regions, addr)
	return nil
}

// Owns reports whether addr is the start of a live block.
func (a *Allocator) Owns(addr vmem.Addr) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, ok := a.regions[addr]
	return ok
}

// Live returns the number of live blocks.
func (a *Allocator) Live() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.regions)
}

// Shutdown releases every live block.
func (a *Allocator) Shutdown() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	var errs []error
	for addr, r := range a.regions {
		if err := a.vm.Release(r); err != nil {
			errs = append(errs, fmt.Errorf("basic: release %v: %w", addr, err))
			continue
		}
		delete(a.regions, addr)
	}
	a.closed = true
	return errors.Join(errs...)
}
