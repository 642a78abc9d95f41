// Package sub4g allocates memory whose every address lies below 4GB, so a
// managed runtime can store references to it as 32-bit compressed pointers.
//
// An Allocator owns a chain of wrappers. A wrapper either fronts a
// suballocating heap (many small blocks carved out of one region) or a
// single large region that is itself the allocation. Regions are found by
// the Locator, which walks configured address windows top-down with
// strict-address reservations.
//
// Allocation order:
//
//  1. Requests of at least Options.HeapSize bytes get a dedicated region.
//  2. Existing heaps are tried, most recently created first.
//  3. The sub-commit heap, when one was primed by EnsureCapacity, is grown
//     in place by committing more of its reservation.
//  4. A new heap of Options.HeapSize bytes is created. A request the fresh
//     heap cannot hold is served by the raw region instead.
//
// Heaps are never released before Shutdown; large regions are released as
// soon as they are freed.
//
// Memory that is committed but not handed out is charged to
// category.UnusedSub4G. Allocate moves bytes out of that category and Free
// moves them back, so a caller that charges its own category for the same
// bytes never double counts.
//
// All state is guarded by one mutex.
package sub4g
