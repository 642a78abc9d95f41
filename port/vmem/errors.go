package vmem

import (
	"errors"
	"fmt"
)

var (
	// ErrUnsupported indicates the provider cannot serve the request on this platform.
	ErrUnsupported = errors.New("vmem: operation not supported")

	// ErrAddressUnavailable indicates a strict reservation could not be placed at the requested address.
	ErrAddressUnavailable = errors.New("vmem: requested address unavailable")

	// ErrNoAddressSpace indicates no free span of the requested size exists.
	ErrNoAddressSpace = errors.New("vmem: address space exhausted")

	// ErrCommitLimit indicates committing would exceed the configured commit limit.
	ErrCommitLimit = errors.New("vmem: commit limit exceeded")

	// ErrBadRegion indicates the region is not known to the provider.
	ErrBadRegion = errors.New("vmem: unknown region")

	// ErrNotCommitted indicates an access to memory that is not committed.
	ErrNotCommitted = errors.New("vmem: memory not committed")

	// ErrBadSize indicates a zero or misaligned size or address.
	ErrBadSize = errors.New("vmem: bad size or alignment")
)

// OverlapError is returned by a strict reservation that collides with an
// existing region. Base and Size describe the lowest colliding region so a
// caller searching downwards can skip past it.
type OverlapError struct {
	Requested Addr
	Base      Addr
	Size      uint64
}

func (e *OverlapError) Error() string {
	return fmt.Sprintf("vmem: reservation at %v overlaps region [%v, %v)",
		e.Requested, e.Base, e.Base+Addr(e.Size))
}

// Unwrap lets errors.Is match ErrAddressUnavailable.
func (e *OverlapError) Unwrap() error {
	return ErrAddressUnavailable
}
