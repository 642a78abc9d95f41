//go:build deadlock

package lock

import "github.com/sasha-s/go-deadlock"

// Mutex is the coarse lock around allocator state, instrumented to report
// lock-order inversions and long waits.
type Mutex = deadlock.Mutex
