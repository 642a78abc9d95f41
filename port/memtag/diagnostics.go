package memtag

import (
	"sync"

	"github.com/eclipse-openj9/openj9-omr-sub008/port/vmem"
)

// Diagnostics records corrupted blocks found by Unwrap so they can be
// inspected after the fatal handler runs (from a core dump, a recover in a
// test, or a crash handler).
type Diagnostics struct {
	mu          sync.Mutex
	corruptions int
	last        CorruptionError
	blocks      []vmem.Addr
}

const maxRecordedBlocks = 16

func (d *Diagnostics) record(e *CorruptionError) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.corruptions++
	d.last = *e
	if len(d.blocks) < maxRecordedBlocks {
		d.blocks = append(d.blocks, e.Block)
	}
}

// Corruptions returns how many corrupted blocks were found.
func (d *Diagnostics) Corruptions() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.corruptions
}

// LastCorruption returns the most recent corruption, if any.
func (d *Diagnostics) LastCorruption() (CorruptionError, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.last, d.corruptions > 0
}

// CorruptedBlocks returns the first corrupted block addresses recorded.
func (d *Diagnostics) CorruptedBlocks() []vmem.Addr {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]vmem.Addr(nil), d.blocks...)
}
