// Package memtag wraps every user allocation in a checksummed header and
// footer tag.
//
// # Layout
//
// A wrapped block looks like this:
//
//	block                                          block+RoundedFooterOffset(n)
//	|<- header (32) ->|<- payload (n) ->|<- 0xDD.. ->|<- footer (32) ->|
//	                  ^ user address
//
// The footer starts at the first 8-byte boundary at or after the end of the
// payload; the gap is filled with PaddingByte. AllocationSize(n) is the total
// block size an allocator must provide.
//
// # Checksums
//
// Each tag carries a sumCheck word chosen so that the XOR of all eight tag
// words and both halves of the tag's own address is zero. A tag copied to a
// different address, or partially overwritten, no longer sums to zero.
//
// # Lifecycle
//
// Wrap stamps live eyecatchers and charges the block to its category. Unwrap
// validates both tags and the padding, then flips the eyecatchers to their
// freed values by XORing the eyecatcher delta into the eyecatcher and the
// sumCheck, so the tags stay self-consistent but no longer validate as live.
//
// Corruption found by Unwrap is fatal: the block is recorded in Diagnostics
// and the wrapper's fatal handler is invoked, which panics by default.
package memtag
