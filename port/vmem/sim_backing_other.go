//go:build !linux

package vmem

func newBacking(size uint64) ([]byte, error) {
	return make([]byte, size), nil
}

func freeBacking([]byte) {}

func discardBacking(b []byte) {
	clear(b)
}
