// Package subheap implements the suballocating heap that carves small
// blocks out of one committed span of address space.
//
// The span starts with a 32-byte heap header followed by cells laid out back
// to back. Every cell begins with an 8-byte signed size that includes the
// header: negative while the cell is allocated, positive while it is free.
// Payloads are 8-byte aligned.
//
// # Free lists
//
// Free cells are indexed by segregated size classes. Each class is a min-heap
// keyed on cell size, so the smallest cell that fits is found in O(log n).
// Two maps (start offset and end offset) let Free merge with both neighbours
// in O(1) before the merged cell goes back on its list.
//
// # Growth
//
// A heap may be grown in place when the memory after it has been committed:
// Grow appends the new bytes as a free cell and merges it with a free tail.
//
// A Heap is not safe for concurrent use. The owning allocator serialises
// access.
package subheap
