package vmem

import (
	"fmt"
	"sort"
	"sync"

	"github.com/eclipse-openj9/openj9-omr-sub008/internal/buf"
	"github.com/eclipse-openj9/openj9-omr-sub008/internal/format"
)

const (
	defaultSimPageSize = 4096

	// defaultUnconstrainedTop is where non-strict reservations are placed
	// from, top-down. It sits well above the 4GB line so an allocator that
	// forgets to ask for a strict reservation gets memory it cannot compress.
	defaultUnconstrainedTop Addr = 0x7F00_0000_0000

	// defaultMinAddress keeps page zero and the low 64KB unreservable.
	defaultMinAddress Addr = 0x1_0000
)

// SimConfig configures a simulated provider.
type SimConfig struct {
	// PageSize is the page granularity. Zero selects 4KB.
	PageSize uint64

	// NoStrictAddress makes the provider report no strict-address support,
	// modelling platforms where a sub-4GB search is impossible.
	NoStrictAddress bool

	// UnconstrainedTop is the address non-strict reservations grow down from.
	UnconstrainedTop Addr

	// MinAddress is the lowest reservable address.
	MinAddress Addr

	// CommitLimit caps the total committed bytes. Zero means unlimited.
	CommitLimit uint64
}

// Sim is an in-process Provider. Each region gets a backing buffer on first
// commit; on linux the buffer is a lazily populated anonymous mapping, so
// only touched pages consume memory. Slices returned by Bytes are invalid
// once their region is released.
type Sim struct {
	mu         sync.Mutex
	cfg        SimConfig
	regions    []*simRegion // sorted by base
	nextHandle uintptr
	committed  uint64

	// Statistics
	reserveCalls int
	reserveFails int
}

type simRegion struct {
	Region
	mem       []byte
	committed rangeSet
}

// SimStats is a snapshot of a simulated provider.
type SimStats struct {
	Regions        int
	ReservedBytes  uint64
	CommittedBytes uint64
	ReserveCalls   int
	ReserveFails   int
}

// NewSim creates a simulated provider.
func NewSim(cfg SimConfig) *Sim {
	if cfg.PageSize == 0 {
		cfg.PageSize = defaultSimPageSize
	}
	if cfg.UnconstrainedTop == 0 {
		cfg.UnconstrainedTop = defaultUnconstrainedTop
	}
	if cfg.MinAddress == 0 {
		cfg.MinAddress = defaultMinAddress
	}
	return &Sim{cfg: cfg, nextHandle: 1}
}

// PageSize implements Provider.
func (s *Sim) PageSize() uint64 {
	return s.cfg.PageSize
}

// Capabilities implements Provider.
func (s *Sim) Capabilities() Capability {
	if s.cfg.NoStrictAddress {
		return 0
	}
	return CapStrictAddress
}

// Reserve implements Provider.
func (s *Sim) Reserve(p ReserveParams) (Region, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.reserveCalls++
	r, err := s.reserveLocked(p)
	if err != nil {
		s.reserveFails++
		return Region{}, err
	}
	return r, nil
}

func (s *Sim) reserveLocked(p ReserveParams) (Region, error) {
	if p.Size == 0 {
		return Region{}, ErrBadSize
	}
	size := format.AlignUp(p.Size, s.cfg.PageSize)
	if !format.IsAligned(uint64(p.Address), s.cfg.PageSize) {
		return Region{}, fmt.Errorf("%w: address %v not page aligned", ErrBadSize, p.Address)
	}
	if p.Strict && s.cfg.NoStrictAddress {
		return Region{}, ErrUnsupported
	}

	var base Addr
	switch {
	case p.Address != 0:
		if err := s.checkFreeLocked(p.Address, size); err != nil {
			if p.Strict {
				return Region{}, err
			}
			b, ok := s.findTopDownLocked(size)
			if !ok {
				return Region{}, ErrNoAddressSpace
			}
			base = b
		} else {
			base = p.Address
		}
	case p.Strict:
		return Region{}, fmt.Errorf("%w: strict reservation needs an address", ErrBadSize)
	default:
		b, ok := s.findTopDownLocked(size)
		if !ok {
			return Region{}, ErrNoAddressSpace
		}
		base = b
	}

	sr := &simRegion{Region: Region{
		Base:     base,
		Size:     size,
		PageSize: s.cfg.PageSize,
		Mode:     p.Mode,
		Category: p.Category,
		Handle:   s.nextHandle,
	}}

	if p.Mode == ModeCommit {
		if s.cfg.CommitLimit != 0 && s.committed+size > s.cfg.CommitLimit {
			return Region{}, ErrCommitLimit
		}
		mem, err := newBacking(size)
		if err != nil {
			return Region{}, fmt.Errorf("%w: backing %d bytes: %v", ErrNoAddressSpace, size, err)
		}
		sr.mem = mem
		s.committed += sr.committed.add(0, size)
	}

	s.nextHandle++
	s.insertLocked(sr)
	return sr.Region, nil
}

// checkFreeLocked verifies that [addr, addr+size) is reservable.
func (s *Sim) checkFreeLocked(addr Addr, size uint64) error {
	if addr < s.cfg.MinAddress {
		return fmt.Errorf("%w: %v below minimum %v", ErrAddressUnavailable, addr, s.cfg.MinAddress)
	}
	end, ok := buf.AddOverflowSafe(uint64(addr), size)
	if !ok {
		return fmt.Errorf("%w: %v + %d overflows", ErrAddressUnavailable, addr, size)
	}
	// Regions are sorted, so the first overlap found is the lowest one.
	for _, r := range s.regions {
		if uint64(r.Base) < end && r.End() > addr {
			return &OverlapError{Requested: addr, Base: r.Base, Size: r.Size}
		}
	}
	return nil
}

// findTopDownLocked finds the highest free span below UnconstrainedTop.
func (s *Sim) findTopDownLocked(size uint64) (Addr, bool) {
	top := uint64(s.cfg.UnconstrainedTop)
	for i := len(s.regions) - 1; i >= -1; i-- {
		if top < size {
			return 0, false
		}
		candidate := Addr(format.AlignDown(top-size, s.cfg.PageSize))
		if candidate < s.cfg.MinAddress {
			return 0, false
		}
		if i < 0 || s.regions[i].End() <= candidate {
			// Nothing at or above candidate below top, or the gap above
			// regions[i] is large enough.
			if s.checkFreeLocked(candidate, size) == nil {
				return candidate, true
			}
		}
		if i >= 0 && uint64(s.regions[i].Base) < top {
			top = uint64(s.regions[i].Base)
		}
	}
	return 0, false
}

func (s *Sim) insertLocked(sr *simRegion) {
	i := sort.Search(len(s.regions), func(i int) bool { return s.regions[i].Base > sr.Base })
	s.regions = append(s.regions, nil)
	copy(s.regions[i+1:], s.regions[i:])
	s.regions[i] = sr
}

// lookupLocked returns the region whose base is r.Base.
func (s *Sim) lookupLocked(r Region) (*simRegion, int, error) {
	i := sort.Search(len(s.regions), func(i int) bool { return s.regions[i].Base >= r.Base })
	if i == len(s.regions) || s.regions[i].Base != r.Base || s.regions[i].Handle != r.Handle {
		return nil, -1, fmt.Errorf("%w: %v", ErrBadRegion, r.Base)
	}
	return s.regions[i], i, nil
}

// containingLocked returns the region containing addr.
func (s *Sim) containingLocked(addr Addr) *simRegion {
	i := sort.Search(len(s.regions), func(i int) bool { return s.regions[i].End() > addr })
	if i == len(s.regions) || !s.regions[i].Contains(addr) {
		return nil
	}
	return s.regions[i]
}

// pageSpan widens [addr, addr+n) to page boundaries relative to the region base.
func (s *Sim) pageSpan(sr *simRegion, addr Addr, n uint64) (uint64, uint64, error) {
	off, err := buf.CheckRange(uint64(sr.Base), sr.Size, uint64(addr), n)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %v", ErrBadSize, err)
	}
	start := format.AlignDown(off, s.cfg.PageSize)
	end := format.AlignUp(off+n, s.cfg.PageSize)
	return start, end - start, nil
}

// Commit implements Provider.
func (s *Sim) Commit(r Region, addr Addr, n uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sr, _, err := s.lookupLocked(r)
	if err != nil {
		return err
	}
	off, length, err := s.pageSpan(sr, addr, n)
	if err != nil {
		return err
	}

	var probe rangeSet
	probe.spans = append(probe.spans, sr.committed.spans...)
	added := probe.add(off, length)
	if s.cfg.CommitLimit != 0 && s.committed+added > s.cfg.CommitLimit {
		return ErrCommitLimit
	}

	if sr.mem == nil {
		mem, err := newBacking(sr.Size)
		if err != nil {
			return fmt.Errorf("%w: backing %d bytes: %v", ErrNoAddressSpace, sr.Size, err)
		}
		sr.mem = mem
	}
	sr.committed = probe
	s.committed += added
	return nil
}

// Decommit implements Provider.
func (s *Sim) Decommit(r Region, addr Addr, n uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sr, _, err := s.lookupLocked(r)
	if err != nil {
		return err
	}
	off, length, err := s.pageSpan(sr, addr, n)
	if err != nil {
		return err
	}
	s.committed -= sr.committed.remove(off, length)
	if sr.mem != nil {
		discardBacking(sr.mem[off : off+length])
	}
	return nil
}

// Release implements Provider.
func (s *Sim) Release(r Region) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sr, i, err := s.lookupLocked(r)
	if err != nil {
		return err
	}
	s.committed -= sr.committed.total()
	s.regions = append(s.regions[:i], s.regions[i+1:]...)
	if sr.mem != nil {
		freeBacking(sr.mem)
	}
	return nil
}

// Bytes implements Memory.
func (s *Sim) Bytes(addr Addr, n uint64) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sr := s.containingLocked(addr)
	if sr == nil {
		return nil, fmt.Errorf("%w: %v not in any region", ErrBadRegion, addr)
	}
	off, err := buf.CheckRange(uint64(sr.Base), sr.Size, uint64(addr), n)
	if err != nil {
		return nil, fmt.Errorf("vmem: %w", err)
	}
	if !sr.committed.covers(off, n) {
		return nil, fmt.Errorf("%w: [%v, +%d)", ErrNotCommitted, addr, n)
	}
	return sr.mem[off : off+n : off+n], nil
}

// Stats returns a snapshot of the provider.
func (s *Sim) Stats() SimStats {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := SimStats{
		Regions:        len(s.regions),
		CommittedBytes: s.committed,
		ReserveCalls:   s.reserveCalls,
		ReserveFails:   s.reserveFails,
	}
	for _, r := range s.regions {
		st.ReservedBytes += r.Size
	}
	return st
}

// Regions returns a copy of the live region descriptors, lowest base first.
func (s *Sim) Regions() []Region {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Region, len(s.regions))
	for i, r := range s.regions {
		out[i] = r.Region
	}
	return out
}
