//go:build !deadlock

// Package lock provides the mutex type guarding allocator state. Building with
// the deadlock tag swaps in a lock-order checking implementation.
package lock

import "sync"

// Mutex is the coarse lock around allocator state.
type Mutex = sync.Mutex
