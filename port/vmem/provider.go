package vmem

import "fmt"

// Addr is a virtual address.
type Addr uint64

// Below4G is the first address a 32-bit compressed reference cannot express.
const Below4G Addr = 1 << 32

func (a Addr) String() string {
	return fmt.Sprintf("0x%x", uint64(a))
}

// Mode selects the state a reservation is left in.
type Mode uint8

const (
	// ModeReserve leaves the region reserved but not committed.
	ModeReserve Mode = iota
	// ModeCommit commits the whole region as part of the reservation.
	ModeCommit
)

func (m Mode) String() string {
	switch m {
	case ModeReserve:
		return "reserve"
	case ModeCommit:
		return "commit"
	default:
		return fmt.Sprintf("Mode(%d)", uint8(m))
	}
}

// Capability is a bit set describing what a provider supports.
type Capability uint32

const (
	// CapStrictAddress means Reserve honours ReserveParams.Strict.
	CapStrictAddress Capability = 1 << iota
)

// Has reports whether all bits of c2 are set in c.
func (c Capability) Has(c2 Capability) bool {
	return c&c2 == c2
}

// Region describes a reserved span of address space. A Region is owned by
// exactly one holder; the provider identifies it by Base.
type Region struct {
	Base     Addr
	Size     uint64
	PageSize uint64
	Mode     Mode
	Category uint32  // accounting category the region was reserved for
	Handle   uintptr // provider-specific handle
}

// End returns the first address past the region.
func (r Region) End() Addr {
	return r.Base + Addr(r.Size)
}

// Contains reports whether addr lies inside the region.
func (r Region) Contains(addr Addr) bool {
	return addr >= r.Base && addr < r.End()
}

// ReserveParams describes a reservation request.
type ReserveParams struct {
	Size     uint64
	Address  Addr // requested base, 0 for anywhere
	Strict   bool // fail rather than relocate when Address is unavailable
	Mode     Mode
	Category uint32
}

// Memory gives bounds-checked access to committed memory.
type Memory interface {
	// Bytes returns a view of n bytes at addr. The whole range must be
	// committed and inside a single region.
	Bytes(addr Addr, n uint64) ([]byte, error)
}

// Provider is the virtual memory collaborator of the allocators.
type Provider interface {
	Memory

	// PageSize returns the page size regions are reserved and committed in.
	PageSize() uint64

	// Capabilities reports optional features.
	Capabilities() Capability

	// Reserve sets aside address space. Sizes are rounded up to the page size.
	Reserve(p ReserveParams) (Region, error)

	// Commit backs [addr, addr+n) of r with memory. The range is widened to
	// page boundaries.
	Commit(r Region, addr Addr, n uint64) error

	// Decommit returns the pages of [addr, addr+n) of r. Contents are lost.
	Decommit(r Region, addr Addr, n uint64) error

	// Release returns the whole region.
	Release(r Region) error
}
