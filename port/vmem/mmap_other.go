//go:build !linux

package vmem

// NewMmap reports that no native provider is available on this platform.
func NewMmap() (Provider, error) {
	return nil, ErrUnsupported
}
