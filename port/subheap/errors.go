package subheap

import "errors"

var (
	// ErrNoSpace indicates no free cell can hold the request.
	ErrNoSpace = errors.New("subheap: no free cell large enough")

	// ErrTooSmall indicates the span cannot hold a heap header and one cell.
	ErrTooSmall = errors.New("subheap: span too small for a heap")

	// ErrMisaligned indicates a base, size or address that is not 8-byte aligned.
	ErrMisaligned = errors.New("subheap: misaligned address or size")

	// ErrOutOfRange indicates an address outside the heap's cells.
	ErrOutOfRange = errors.New("subheap: address outside heap")

	// ErrNotAllocated indicates a free of a cell that is not allocated.
	ErrNotAllocated = errors.New("subheap: cell not allocated")

	// ErrBadHeader indicates the heap header or a cell header is inconsistent.
	ErrBadHeader = errors.New("subheap: corrupt heap metadata")
)
