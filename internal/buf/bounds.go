// Package buf provides overflow-safe range arithmetic for address and offset
// calculations. Every accessor that turns an address into a view of region
// memory validates the range here first.
package buf

import (
	"fmt"
	"math"
)

// AddOverflowSafe adds a and b, returning ok = false when the result would overflow uint64.
func AddOverflowSafe(a, b uint64) (uint64, bool) {
	if a > math.MaxUint64-b {
		return 0, false
	}
	return a + b, true
}

// MulOverflowSafe multiplies a and b, returning ok = false when the result would overflow uint64.
func MulOverflowSafe(a, b uint64) (uint64, bool) {
	if a == 0 || b == 0 {
		return 0, true
	}
	if a > math.MaxUint64/b {
		return 0, false
	}
	return a * b, true
}

// Within reports whether [addr, addr+n) lies entirely inside [base, base+size).
func Within(base, size, addr, n uint64) bool {
	if addr < base {
		return false
	}
	end, ok := AddOverflowSafe(addr, n)
	if !ok {
		return false
	}
	limit, ok := AddOverflowSafe(base, size)
	if !ok {
		return false
	}
	return end <= limit
}

// CheckRange validates that n bytes at addr fit in [base, base+size) and returns
// the offset of addr relative to base. The error names the specific failure.
//
//	off, err := buf.CheckRange(r.Base, r.Size, addr, n)
//	if err != nil {
//	    return nil, fmt.Errorf("vmem: %w", err)
//	}
func CheckRange(base, size, addr, n uint64) (uint64, error) {
	if addr < base {
		return 0, fmt.Errorf("address 0x%x below base 0x%x", addr, base)
	}
	end, ok := AddOverflowSafe(addr, n)
	if !ok {
		return 0, fmt.Errorf("overflow: addr=0x%x + n=%d", addr, n)
	}
	limit, ok := AddOverflowSafe(base, size)
	if !ok {
		return 0, fmt.Errorf("overflow: base=0x%x + size=%d", base, size)
	}
	if end > limit {
		return 0, fmt.Errorf("bounds: end=0x%x > limit=0x%x", end, limit)
	}
	return addr - base, nil
}

// Slice returns the sub-slice [off:off+n] if it fits within len(b).
func Slice(b []byte, off, n int) ([]byte, bool) {
	if off < 0 || n < 0 || off > len(b) {
		return nil, false
	}
	if n > math.MaxInt-off {
		return nil, false
	}
	end := off + n
	if end > len(b) {
		return nil, false
	}
	return b[off:end], true
}

// Has reports whether b[off:off+n] is within bounds.
func Has(b []byte, off, n int) bool {
	_, ok := Slice(b, off, n)
	return ok
}
