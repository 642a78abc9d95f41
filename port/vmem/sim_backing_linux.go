//go:build linux

package vmem

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

// newBacking maps size bytes of private anonymous memory without reserving
// swap. The kernel supplies zero pages on first touch, so a large simulated
// reservation costs only the pages a test actually writes.
func newBacking(size uint64) ([]byte, error) {
	return unix.Mmap(-1, 0, int(size), unix.PROT_READ|unix.PROT_WRITE,
		unix.MAP_PRIVATE|unix.MAP_ANONYMOUS|unix.MAP_NORESERVE)
}

func freeBacking(b []byte) {
	_ = unix.Munmap(b)
}

// discardBacking zeroes b. Whole host pages are handed back to the kernel;
// a span that does not cover whole host pages is cleared in place.
func discardBacking(b []byte) {
	page := uintptr(unix.Getpagesize())
	if len(b) == 0 || uintptr(unsafe.Pointer(&b[0]))%page != 0 || uintptr(len(b))%page != 0 {
		clear(b)
		return
	}
	if err := unix.Madvise(b, unix.MADV_DONTNEED); err != nil {
		clear(b)
	}
}
