// Package format holds the in-memory layout of allocator metadata: the
// header/footer tags that wrap every user allocation and the cell and heap
// headers of the suballocating heap. Keeping the layout here lets the tag
// wrapper, the heap and the diagnostic tooling agree on every offset.
package format

const (
	// Granule is the allocation granularity. User payloads, cells and tags
	// are all 8-byte aligned.
	Granule     = 8
	GranuleMask = Granule - 1

	// Below4G is the first address that a compressed 32-bit reference cannot
	// express.
	Below4G = uint64(1) << 32
)

// Tag layout. A tag is eight little-endian 32-bit words:
//
//	0x00  eyecatcher
//	0x04  sumCheck
//	0x08  allocSize (low word)
//	0x0C  allocSize (high word)
//	0x10  callSite id (low word)
//	0x14  callSite id (high word)
//	0x18  category code
//	0x1C  reserved (zero)
//
// Header and footer share the layout; only the eyecatcher differs.
const (
	TagSize  = 32
	TagWords = TagSize / 4

	TagEyecatcherOffset = 0x00
	TagSumCheckOffset   = 0x04
	TagAllocSizeOffset  = 0x08
	TagCallSiteOffset   = 0x10
	TagCategoryOffset   = 0x18
	TagReservedOffset   = 0x1C
)

// Tag eyecatchers.
const (
	EyecatcherAllocHeader uint32 = 0xB1234567
	EyecatcherAllocFooter uint32 = 0xB7654321
	EyecatcherFreedHeader uint32 = 0xBADBAD67
	EyecatcherFreedFooter uint32 = 0xBADBAD21

	// PaddingByte fills the gap between the end of the user payload and the
	// footer tag.
	PaddingByte byte = 0xDD
)

// Suballocating heap layout.
//
// The heap header sits at the start of the heap span:
//
//	0x00  magic
//	0x04  version
//	0x08  heap size (bytes, including this header)
//	0x10  live allocation count
//	0x18  reserved
//
// Cells follow the header back to back. Each cell starts with an 8-byte
// signed size: negative for an allocated cell, positive for a free one. The
// size includes the cell header.
const (
	HeapHeaderSize        = 32
	HeapMagic      uint32 = 0x4F4D5248 // "OMRH"
	HeapVersion    uint32 = 1

	HeapMagicOffset   = 0x00
	HeapVersionOffset = 0x04
	HeapSizeOffset    = 0x08
	HeapLiveOffset    = 0x10

	CellHeaderSize = 8

	// MinCellSize is the smallest cell a split may leave behind: a header and
	// one granule of payload.
	MinCellSize = CellHeaderSize + Granule
)
