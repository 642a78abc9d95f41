package memtag

import (
	"github.com/eclipse-openj9/openj9-omr-sub008/internal/format"
	"github.com/eclipse-openj9/openj9-omr-sub008/port/vmem"
)

const (
	// HeaderSize is the size of the header tag.
	HeaderSize = format.TagSize
	// FooterSize is the size of the footer tag.
	FooterSize = format.TagSize
	// Overhead is the minimum number of bytes a tag pair adds to a payload.
	Overhead = HeaderSize + FooterSize
)

// RoundedFooterOffset returns the offset of the footer from the block start
// for a payload of n bytes.
func RoundedFooterOffset(n uint64) uint64 {
	return format.Align8(HeaderSize + n)
}

// AllocationSize returns the total block size needed to wrap n payload bytes.
func AllocationSize(n uint64) uint64 {
	return RoundedFooterOffset(n) + FooterSize
}

// PaddingSize returns the number of sentinel bytes between the payload and the footer.
func PaddingSize(n uint64) uint64 {
	return RoundedFooterOffset(n) - HeaderSize - n
}

// UserAddress returns the payload address for a block.
func UserAddress(block vmem.Addr) vmem.Addr {
	return block + HeaderSize
}

// BlockAddress returns the block address for a payload.
func BlockAddress(user vmem.Addr) vmem.Addr {
	return user - HeaderSize
}

// Checksum returns the XOR of every word of tag and both halves of the tag's
// address. For a valid tag the result is zero.
func Checksum(tag []byte, tagAddr vmem.Addr) uint32 {
	sum := uint32(uint64(tagAddr)) ^ uint32(uint64(tagAddr)>>32)
	for i := 0; i < format.TagSize; i += 4 {
		sum ^= format.ReadU32(tag, i)
	}
	return sum
}

// tagFields are the decoded contents of one tag.
type tagFields struct {
	eyecatcher uint32
	sumCheck   uint32
	allocSize  uint64
	callSite   uint64
	category   uint32
	reserved   uint32
}

func readTag(tag []byte) tagFields {
	return tagFields{
		eyecatcher: format.ReadU32(tag, format.TagEyecatcherOffset),
		sumCheck:   format.ReadU32(tag, format.TagSumCheckOffset),
		allocSize:  format.ReadU64(tag, format.TagAllocSizeOffset),
		callSite:   format.ReadU64(tag, format.TagCallSiteOffset),
		category:   format.ReadU32(tag, format.TagCategoryOffset),
		reserved:   format.ReadU32(tag, format.TagReservedOffset),
	}
}

// writeTag stamps a tag and sets its sumCheck so the tag checksums to zero.
func writeTag(tag []byte, tagAddr vmem.Addr, eyecatcher uint32, allocSize, callSite uint64, code uint32) {
	format.PutU32(tag, format.TagEyecatcherOffset, eyecatcher)
	format.PutU32(tag, format.TagSumCheckOffset, 0)
	format.PutU64(tag, format.TagAllocSizeOffset, allocSize)
	format.PutU64(tag, format.TagCallSiteOffset, callSite)
	format.PutU32(tag, format.TagCategoryOffset, code)
	format.PutU32(tag, format.TagReservedOffset, 0)
	format.PutU32(tag, format.TagSumCheckOffset, Checksum(tag, tagAddr))
}

// flipEyecatcher switches a tag between its live and freed eyecatchers
// without recomputing the checksum.
func flipEyecatcher(tag []byte, from, to uint32) {
	delta := from ^ to
	format.PutU32(tag, format.TagEyecatcherOffset, format.ReadU32(tag, format.TagEyecatcherOffset)^delta)
	format.PutU32(tag, format.TagSumCheckOffset, format.ReadU32(tag, format.TagSumCheckOffset)^delta)
}
