// Package vmem defines the virtual memory provider consumed by the port
// library's allocators.
//
// # Overview
//
// A Provider hands out page-granular regions of address space and moves them
// through the usual states:
//
//	Reserve   address space set aside, not readable
//	Commit    pages backed and readable/writable
//	Decommit  pages returned, address space still reserved
//	Release   address space returned
//
// Reservations may be strict: the region lands exactly at the requested
// address or the call fails. The sub-4GB allocator relies on strict
// reservations so a region is never silently relocated above the 4GB line.
//
// # Addressing
//
// Memory is addressed by Addr. Callers never dereference an Addr directly;
// they obtain a bounds-checked view with Bytes, which fails for addresses that
// are not inside a committed range of a live region.
//
// # Implementations
//
//   - Sim: an in-process provider modelling a 64-bit address space. It is
//     deterministic, supports failure injection, and backs tests and the
//     omrmemctl workloads.
//   - Mmap (linux): real reservations using mmap with MAP_FIXED_NOREPLACE.
//
// # Thread Safety
//
// Both implementations are safe for concurrent use.
package vmem
