//go:build linux

package vmem

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/eclipse-openj9/openj9-omr-sub008/internal/buf"
	"github.com/eclipse-openj9/openj9-omr-sub008/internal/format"
)

// Mmap is a Provider backed by anonymous mappings of the calling process.
//
// Reservations are PROT_NONE mappings with MAP_NORESERVE; strict reservations
// add MAP_FIXED_NOREPLACE so the kernel refuses rather than relocates. Kernels
// older than 4.17 treat the flag as a hint, which is detected by comparing the
// returned address.
type Mmap struct {
	mu       sync.Mutex
	pageSize uint64
	regions  []*mmapRegion // sorted by base
	handle   uintptr
}

type mmapRegion struct {
	Region
	ptr       unsafe.Pointer
	committed rangeSet
}

// NewMmap creates the platform provider.
func NewMmap() (Provider, error) {
	return &Mmap{pageSize: uint64(unix.Getpagesize()), handle: 1}, nil
}

// PageSize implements Provider.
func (m *Mmap) PageSize() uint64 {
	return m.pageSize
}

// Capabilities implements Provider.
func (m *Mmap) Capabilities() Capability {
	return CapStrictAddress
}

// Reserve implements Provider.
func (m *Mmap) Reserve(p ReserveParams) (Region, error) {
	if p.Size == 0 {
		return Region{}, ErrBadSize
	}
	size := format.AlignUp(p.Size, m.pageSize)
	if !format.IsAligned(uint64(p.Address), m.pageSize) {
		return Region{}, fmt.Errorf("%w: address %v not page aligned", ErrBadSize, p.Address)
	}

	flags := unix.MAP_PRIVATE | unix.MAP_ANONYMOUS | unix.MAP_NORESERVE
	if p.Strict {
		if p.Address == 0 {
			return Region{}, fmt.Errorf("%w: strict reservation needs an address", ErrBadSize)
		}
		flags |= unix.MAP_FIXED_NOREPLACE
	}
	prot := unix.PROT_NONE
	if p.Mode == ModeCommit {
		prot = unix.PROT_READ | unix.PROT_WRITE
	}

	var hint unsafe.Pointer
	if p.Address != 0 {
		hint = unsafe.Pointer(uintptr(p.Address)) //nolint:govet // address hint, never dereferenced
	}

	ptr, err := unix.MmapPtr(-1, 0, hint, uintptr(size), prot, flags)
	if err != nil {
		if errors.Is(err, unix.EEXIST) {
			return Region{}, fmt.Errorf("%w: %v", ErrAddressUnavailable, p.Address)
		}
		if errors.Is(err, unix.ENOMEM) {
			return Region{}, fmt.Errorf("%w: %v", ErrNoAddressSpace, err)
		}
		return Region{}, fmt.Errorf("vmem: mmap: %w", err)
	}
	if p.Strict && uintptr(ptr) != uintptr(p.Address) {
		_ = unix.MunmapPtr(ptr, uintptr(size))
		return Region{}, fmt.Errorf("%w: kernel placed mapping at 0x%x", ErrAddressUnavailable, uintptr(ptr))
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	mr := &mmapRegion{
		Region: Region{
			Base:     Addr(uintptr(ptr)),
			Size:     size,
			PageSize: m.pageSize,
			Mode:     p.Mode,
			Category: p.Category,
			Handle:   m.handle,
		},
		ptr: ptr,
	}
	m.handle++
	if p.Mode == ModeCommit {
		mr.committed.add(0, size)
	}

	i := sort.Search(len(m.regions), func(i int) bool { return m.regions[i].Base > mr.Base })
	m.regions = append(m.regions, nil)
	copy(m.regions[i+1:], m.regions[i:])
	m.regions[i] = mr
	return mr.Region, nil
}

func (m *Mmap) lookupLocked(r Region) (*mmapRegion, int, error) {
	i := sort.Search(len(m.regions), func(i int) bool { return m.regions[i].Base >= r.Base })
	if i == len(m.regions) || m.regions[i].Base != r.Base || m.regions[i].Handle != r.Handle {
		return nil, -1, fmt.Errorf("%w: %v", ErrBadRegion, r.Base)
	}
	return m.regions[i], i, nil
}

// slice returns the page-aligned view of [addr, addr+n) of mr and its offset.
func (m *Mmap) slice(mr *mmapRegion, addr Addr, n uint64) ([]byte, uint64, error) {
	off, err := buf.CheckRange(uint64(mr.Base), mr.Size, uint64(addr), n)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrBadSize, err)
	}
	start := format.AlignDown(off, m.pageSize)
	end := format.AlignUp(off+n, m.pageSize)
	b := unsafe.Slice((*byte)(unsafe.Add(mr.ptr, start)), end-start)
	return b, start, nil
}

// Commit implements Provider.
func (m *Mmap) Commit(r Region, addr Addr, n uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	mr, _, err := m.lookupLocked(r)
	if err != nil {
		return err
	}
	b, off, err := m.slice(mr, addr, n)
	if err != nil {
		return err
	}
	if err := unix.Mprotect(b, unix.PROT_READ|unix.PROT_WRITE); err != nil {
		return fmt.Errorf("vmem: mprotect: %w", err)
	}
	mr.committed.add(off, uint64(len(b)))
	return nil
}

// Decommit implements Provider.
func (m *Mmap) Decommit(r Region, addr Addr, n uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	mr, _, err := m.lookupLocked(r)
	if err != nil {
		return err
	}
	b, off, err := m.slice(mr, addr, n)
	if err != nil {
		return err
	}
	if err := unix.Madvise(b, unix.MADV_DONTNEED); err != nil {
		return fmt.Errorf("vmem: madvise: %w", err)
	}
	if err := unix.Mprotect(b, unix.PROT_NONE); err != nil {
		return fmt.Errorf("vmem: mprotect: %w", err)
	}
	mr.committed.remove(off, uint64(len(b)))
	return nil
}

// Release implements Provider.
func (m *Mmap) Release(r Region) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	mr, i, err := m.lookupLocked(r)
	if err != nil {
		return err
	}
	if err := unix.MunmapPtr(mr.ptr, uintptr(mr.Size)); err != nil {
		return fmt.Errorf("vmem: munmap: %w", err)
	}
	m.regions = append(m.regions[:i], m.regions[i+1:]...)
	return nil
}

// Bytes implements Memory.
func (m *Mmap) Bytes(addr Addr, n uint64) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	i := sort.Search(len(m.regions), func(i int) bool { return m.regions[i].End() > addr })
	if i == len(m.regions) || !m.regions[i].Contains(addr) {
		return nil, fmt.Errorf("%w: %v not in any region", ErrBadRegion, addr)
	}
	mr := m.regions[i]
	off, err := buf.CheckRange(uint64(mr.Base), mr.Size, uint64(addr), n)
	if err != nil {
		return nil, fmt.Errorf("vmem: %w", err)
	}
	if !mr.committed.covers(off, n) {
		return nil, fmt.Errorf("%w: [%v, +%d)", ErrNotCommitted, addr, n)
	}
	return unsafe.Slice((*byte)(unsafe.Add(mr.ptr, off)), n), nil
}
