package sub4g

import "errors"

var (
	// ErrNotFound indicates no region below 4GB could hold the request.
	ErrNotFound = errors.New("sub4g: no memory below 4GB for request")

	// ErrNoWindow indicates every configured window was searched without
	// finding a reservable span.
	ErrNoWindow = errors.New("sub4g: no address window has room")

	// ErrUnsupported indicates the provider cannot make strict-address
	// reservations, so no sub-4GB search is possible.
	ErrUnsupported = errors.New("sub4g: strict-address reservation not supported")

	// ErrGrowthDisabled indicates the sub-commit heap can no longer grow.
	ErrGrowthDisabled = errors.New("sub4g: sub-commit growth disabled")

	// ErrUnknownAddress indicates a free of an address no wrapper owns.
	ErrUnknownAddress = errors.New("sub4g: address not owned by any wrapper")

	// ErrBadSize indicates a zero-byte request.
	ErrBadSize = errors.New("sub4g: bad request size")

	// ErrBadOptions indicates invalid allocator options.
	ErrBadOptions = errors.New("sub4g: invalid options")

	// ErrClosed indicates use after Shutdown.
	ErrClosed = errors.New("sub4g: allocator shut down")
)
