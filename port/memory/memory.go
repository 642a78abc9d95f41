// Package memory is the allocation front door of the port library. Every
// block it returns, from either the basic allocator or the sub-4GB
// allocator, carries the same tags, so one unwrap validates both.
package memory

import (
	"errors"
	"fmt"
	"math"

	"github.com/eclipse-openj9/openj9-omr-sub008/config"
	"github.com/eclipse-openj9/openj9-omr-sub008/internal/format"
	"github.com/eclipse-openj9/openj9-omr-sub008/internal/logger"
	"github.com/eclipse-openj9/openj9-omr-sub008/port/basic"
	"github.com/eclipse-openj9/openj9-omr-sub008/port/category"
	"github.com/eclipse-openj9/openj9-omr-sub008/port/memtag"
	"github.com/eclipse-openj9/openj9-omr-sub008/port/sub4g"
	"github.com/eclipse-openj9/openj9-omr-sub008/port/vmem"
)

// ErrTooLarge indicates a request whose wrapped size overflows.
var ErrTooLarge = errors.New("memory: request too large")

// maxRequest is the largest n whose AllocationSize fits in a uint64.
const maxRequest = math.MaxUint64 - memtag.Overhead - format.Granule

// Options configures Startup.
type Options struct {
	// Fatal handles corrupted blocks found on free. Nil panics.
	Fatal memtag.FatalFunc
}

// Port is the memory half of a port library instance. It is created by
// Startup and torn down by Shutdown.
type Port struct {
	vm    vmem.Provider
	cats  *category.Registry
	tags  *memtag.Wrapper
	basic *basic.Allocator
	sub4g *sub4g.Allocator
}

// Startup builds a Port over vm. A nil cats builds the registry from cfg.
// When cfg asks for initial capacity the sub-4GB allocator is primed; a
// priming failure is logged and later requests fall back to on-demand heaps.
func Startup(cfg config.Config, vm vmem.Provider, cats *category.Registry, opts Options) (*Port, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cats == nil {
		var err error
		if cats, err = cfg.Registry(); err != nil {
			return nil, err
		}
	}

	s4, err := sub4g.New(vm, cats, cfg.Memory32.Options())
	if err != nil {
		return nil, err
	}

	p := &Port{
		vm:    vm,
		cats:  cats,
		tags:  memtag.New(vm, cats, memtag.Options{Fatal: opts.Fatal}),
		basic: basic.New(vm),
		sub4g: s4,
	}

	if n := uint64(cfg.Memory32.InitialCapacity); n > 0 {
		if res := p.EnsureCapacity32(n); res == sub4g.CapacityFailed {
			logger.Warn("memory: initial sub-4GB capacity not available", "request", n)
		}
	}
	return p, nil
}

// Allocate returns n bytes from the basic allocator charged to code.
func (p *Port) Allocate(n uint64, callSite string, code category.Code) (vmem.Addr, error) {
	if n > maxRequest {
		return 0, fmt.Errorf("%w: %d bytes", ErrTooLarge, n)
	}
	total := memtag.AllocationSize(n)

	raw, err := p.basic.Allocate(total)
	if err != nil {
		return 0, err
	}
	user, err := p.tags.Wrap(raw, n, callSite, code)
	if err != nil {
		_ = p.basic.Free(raw)
		return 0, err
	}
	return user, nil
}

// Free releases a block returned by Allocate. Zero is ignored. A block the
// basic allocator does not own is logged and left untouched.
func (p *Port) Free(user vmem.Addr) error {
	if user == 0 {
		return nil
	}
	if !p.basic.Owns(memtag.BlockAddress(user)) {
		logger.Warn("memory: free of block not owned by the basic allocator", "addr", user)
		return fmt.Errorf("%w: %v", basic.ErrUnknownAddress, user)
	}
	raw, _, err := p.tags.Unwrap(user)
	if err != nil {
		return err
	}
	return p.basic.Free(raw)
}

// Reallocate resizes the block at user, keeping the leading bytes. A zero
// user allocates; a zero n frees and returns zero. The block stays on the
// allocator that produced it.
func (p *Port) Reallocate(user vmem.Addr, n uint64, callSite string, code category.Code) (vmem.Addr, error) {
	if user == 0 {
		return p.Allocate(n, callSite, code)
	}
	low := p.sub4g.Owns(memtag.BlockAddress(user))
	if n == 0 {
		if low {
			return 0, p.Free32(user)
		}
		return 0, p.Free(user)
	}

	info, err := p.tags.Info(user)
	if err != nil {
		// Same treatment as a corrupted free.
		if _, _, uerr := p.tags.Unwrap(user); uerr != nil {
			return 0, uerr
		}
		return 0, err
	}

	var next vmem.Addr
	if low {
		next, err = p.Allocate32(n, callSite, code)
	} else {
		next, err = p.Allocate(n, callSite, code)
	}
	if err != nil {
		return 0, err
	}

	keep := min(n, info.Size)
	if keep > 0 {
		src, err := p.vm.Bytes(user, keep)
		if err != nil {
			return 0, err
		}
		dst, err := p.vm.Bytes(next, keep)
		if err != nil {
			return 0, err
		}
		copy(dst, src)
	}

	if low {
		err = p.Free32(user)
	} else {
		err = p.Free(user)
	}
	if err != nil {
		return 0, err
	}
	return next, nil
}

// Allocate32 returns n bytes below 4GB charged to code.
func (p *Port) Allocate32(n uint64, callSite string, code category.Code) (vmem.Addr, error) {
	if n > maxRequest {
		return 0, fmt.Errorf("%w: %d bytes", ErrTooLarge, n)
	}
	total := memtag.AllocationSize(n)

	raw, err := p.sub4g.Allocate(total)
	if err != nil {
		return 0, err
	}
	user, err := p.tags.Wrap(raw, n, callSite, code)
	if err != nil {
		_ = p.sub4g.Free(raw, total)
		return 0, err
	}
	return user, nil
}

// Free32 releases a block returned by Allocate32. Zero is ignored. A block
// outside every sub-4GB region is logged and left untouched.
func (p *Port) Free32(user vmem.Addr) error {
	if user == 0 {
		return nil
	}
	if !p.sub4g.Owns(memtag.BlockAddress(user)) {
		logger.Warn("memory: free of block outside the sub-4GB regions", "addr", user)
		return fmt.Errorf("%w: %v", sub4g.ErrUnknownAddress, user)
	}
	raw, total, err := p.tags.Unwrap(user)
	if err != nil {
		return err
	}
	return p.sub4g.Free(raw, total)
}

// EnsureCapacity32 primes the sub-4GB allocator with n bytes of reservation.
func (p *Port) EnsureCapacity32(n uint64) sub4g.Capacity {
	return p.sub4g.EnsureCapacity(n)
}

// Bytes returns the payload of the live block at user.
func (p *Port) Bytes(user vmem.Addr) ([]byte, error) {
	info, err := p.tags.Info(user)
	if err != nil {
		return nil, err
	}
	if info.Size == 0 {
		return []byte{}, nil
	}
	return p.vm.Bytes(user, info.Size)
}

// Check validates the tags of the live block at user without freeing it.
func (p *Port) Check(user vmem.Addr) error {
	return p.tags.Check(user)
}

// Info decodes the tags of the live block at user.
func (p *Port) Info(user vmem.Addr) (memtag.Info, error) {
	return p.tags.Info(user)
}

// Categories returns the accounting registry.
func (p *Port) Categories() *category.Registry { return p.cats }

// Diagnostics returns the corruption record.
func (p *Port) Diagnostics() *memtag.Diagnostics { return p.tags.Diagnostics() }

// Sub4G returns the sub-4GB allocator for inspection.
func (p *Port) Sub4G() *sub4g.Allocator { return p.sub4g }

// Shutdown releases all memory held by both allocators.
func (p *Port) Shutdown() error {
	return errors.Join(p.sub4g.Shutdown(), p.basic.Shutdown())
}
