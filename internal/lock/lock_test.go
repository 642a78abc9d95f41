package lock

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMutex_SerializesCriticalSection(t *testing.T) {
	var (
		mu    Mutex
		wg    sync.WaitGroup
		count int
	)
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 1000 {
				mu.Lock()
				count++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	require.Equal(t, 8000, count)
}
