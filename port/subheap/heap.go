package subheap

import (
	"fmt"

	"github.com/eclipse-openj9/openj9-omr-sub008/internal/format"
	"github.com/eclipse-openj9/openj9-omr-sub008/internal/logger"
	"github.com/eclipse-openj9/openj9-omr-sub008/port/vmem"
)

// Stats counts heap operations.
type Stats struct {
	AllocCalls       int
	AllocFailures    int
	FreeCalls        int
	Splits           int
	CoalesceForward  int
	CoalesceBackward int
	GrowCalls        int
	GrowBytes        uint64
}

// Heap is a suballocating heap over one committed span.
type Heap struct {
	mem  vmem.Memory
	base vmem.Addr
	size uint64 // span size, header included

	free  *freeIndex
	live  int
	stats Stats
}

// CellSize returns the cell size that serves a request of n payload bytes.
func CellSize(n uint64) uint64 {
	return max(format.Align8(n)+format.CellHeaderSize, format.MinCellSize)
}

// Capacity returns how many requests of n bytes a fresh heap of heapSize
// bytes can serve.
func Capacity(heapSize, n uint64) uint64 {
	if heapSize <= format.HeapHeaderSize {
		return 0
	}
	return (heapSize - format.HeapHeaderSize) / CellSize(n)
}

// Options configures a heap.
type Options struct {
	// SizeClasses selects the free-list bucketing. Nil means DefaultConfig.
	SizeClasses *SizeClassConfig
}

// New formats a heap over [base, base+size). The whole span must be
// committed.
func New(mem vmem.Memory, base vmem.Addr, size uint64, opts Options) (*Heap, error) {
	if !format.IsAligned(uint64(base), format.Granule) || !format.IsAligned(size, format.Granule) {
		return nil, fmt.Errorf("%w: base %v size %d", ErrMisaligned, base, size)
	}
	if size < format.HeapHeaderSize+format.MinCellSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrTooSmall, size)
	}

	cfg := DefaultConfig
	if opts.SizeClasses != nil {
		cfg = *opts.SizeClasses
	}

	h := &Heap{
		mem:  mem,
		base: base,
		size: size,
		free: newFreeIndex(newSizeClassTable(cfg)),
	}

	hdr, err := mem.Bytes(base, format.HeapHeaderSize)
	if err != nil {
		return nil, fmt.Errorf("subheap: header: %w", err)
	}
	clear(hdr)
	format.PutU32(hdr, format.HeapMagicOffset, format.HeapMagic)
	format.PutU32(hdr, format.HeapVersionOffset, format.HeapVersion)
	format.PutU64(hdr, format.HeapSizeOffset, size)
	format.PutU64(hdr, format.HeapLiveOffset, 0)

	first := uint64(format.HeapHeaderSize)
	if err := h.putCell(first, int64(size-first)); err != nil {
		return nil, err
	}
	h.free.insert(first, size-first)
	return h, nil
}

// Base returns the heap's first address.
func (h *Heap) Base() vmem.Addr { return h.base }

// Size returns the span size, header included.
func (h *Heap) Size() uint64 { return h.size }

// End returns the first address past the heap.
func (h *Heap) End() vmem.Addr { return h.base + vmem.Addr(h.size) }

// Live returns the number of allocated cells.
func (h *Heap) Live() int { return h.live }

// FreeBytes returns the total size of free cells, cell headers included.
func (h *Heap) FreeBytes() uint64 { return h.free.bytes }

// LargestFree returns the largest payload a single Allocate could return
// without growing.
func (h *Heap) LargestFree() uint64 {
	if l := h.free.largest(); l > format.CellHeaderSize {
		return l - format.CellHeaderSize
	}
	return 0
}

// Stats returns the operation counters.
func (h *Heap) Stats() Stats { return h.stats }

// Contains reports whether addr lies in the heap's cell area.
func (h *Heap) Contains(addr vmem.Addr) bool {
	return addr >= h.base+format.HeapHeaderSize && addr < h.End()
}

// Allocate returns the address of a payload of at least n bytes.
func (h *Heap) Allocate(n uint64) (vmem.Addr, error) {
	h.stats.AllocCalls++

	if n == 0 {
		n = 1
	}
	if n > h.size {
		h.stats.AllocFailures++
		return 0, ErrNoSpace
	}
	need := CellSize(n)

	cell := h.free.take(need)
	if cell == nil {
		h.stats.AllocFailures++
		return 0, ErrNoSpace
	}

	size := cell.size
	if rem := size - need; rem >= format.MinCellSize {
		h.stats.Splits++
		if err := h.putCell(cell.off+need, int64(rem)); err != nil {
			h.free.insert(cell.off, size)
			return 0, err
		}
		h.free.insert(cell.off+need, rem)
		size = need
	}
	if err := h.putCell(cell.off, -int64(size)); err != nil {
		return 0, err
	}

	h.live++
	h.syncLive()

	addr := h.base + vmem.Addr(cell.off+format.CellHeaderSize)
	if logger.AllocTrace {
		logger.Debug("subheap: allocate", "heap", h.base, "addr", addr, "request", n, "cell", size)
	}
	return addr, nil
}

// Free returns the cell at addr to the heap and merges it with free
// neighbours.
func (h *Heap) Free(addr vmem.Addr) error {
	h.stats.FreeCalls++

	off, size, err := h.allocatedCell(addr)
	if err != nil {
		return err
	}

	if next, ok := h.free.byOff[off+size]; ok {
		h.stats.CoalesceForward++
		h.free.remove(next)
		size += next.size
	}
	if prev, ok := h.free.byEnd[off]; ok {
		h.stats.CoalesceBackward++
		h.free.remove(prev)
		off = prev.off
		size += prev.size
	}
	if err := h.putCell(off, int64(size)); err != nil {
		return err
	}
	h.free.insert(off, size)

	h.live--
	h.syncLive()

	if logger.AllocTrace {
		logger.Debug("subheap: free", "heap", h.base, "addr", addr, "cell", size)
	}
	return nil
}

// QuerySize returns the usable payload size of the allocated cell at addr.
func (h *Heap) QuerySize(addr vmem.Addr) (uint64, error) {
	_, size, err := h.allocatedCell(addr)
	if err != nil {
		return 0, err
	}
	return size - format.CellHeaderSize, nil
}

// Grow extends the heap by n bytes. [End(), End()+n) must already be
// committed and belong to the same region.
func (h *Heap) Grow(n uint64) error {
	if !format.IsAligned(n, format.Granule) {
		return fmt.Errorf("%w: grow by %d", ErrMisaligned, n)
	}
	if n < format.MinCellSize {
		return fmt.Errorf("%w: grow by %d", ErrTooSmall, n)
	}
	h.stats.GrowCalls++
	h.stats.GrowBytes += n

	off, size := h.size, n
	if tail, ok := h.free.byEnd[off]; ok {
		h.free.remove(tail)
		off = tail.off
		size += tail.size
	}
	if err := h.putCell(off, int64(size)); err != nil {
		return err
	}
	h.free.insert(off, size)
	h.size += n

	hdr, err := h.mem.Bytes(h.base, format.HeapHeaderSize)
	if err != nil {
		return fmt.Errorf("subheap: header: %w", err)
	}
	format.PutU64(hdr, format.HeapSizeOffset, h.size)
	return nil
}

// Check walks every cell and verifies the header and the free index.
func (h *Heap) Check() error {
	hdr, err := h.mem.Bytes(h.base, format.HeapHeaderSize)
	if err != nil {
		return fmt.Errorf("subheap: header: %w", err)
	}
	if format.ReadU32(hdr, format.HeapMagicOffset) != format.HeapMagic {
		return fmt.Errorf("%w: bad magic", ErrBadHeader)
	}
	if got := format.ReadU64(hdr, format.HeapSizeOffset); got != h.size {
		return fmt.Errorf("%w: header size %d, heap size %d", ErrBadHeader, got, h.size)
	}
	if got := format.ReadU64(hdr, format.HeapLiveOffset); got != uint64(h.live) {
		return fmt.Errorf("%w: header live %d, heap live %d", ErrBadHeader, got, h.live)
	}

	live, free := 0, 0
	for off := uint64(format.HeapHeaderSize); off < h.size; {
		raw, err := h.readCell(off)
		if err != nil {
			return err
		}
		size := uint64(raw)
		if raw < 0 {
			size = uint64(-raw)
			live++
		} else {
			free++
			if c, ok := h.free.byOff[off]; !ok || c.size != size {
				return fmt.Errorf("%w: free cell at +%d not indexed", ErrBadHeader, off)
			}
		}
		if size < format.MinCellSize || !format.IsAligned(size, format.Granule) || off+size > h.size {
			return fmt.Errorf("%w: cell at +%d has size %d", ErrBadHeader, off, raw)
		}
		off += size
	}
	if live != h.live || free != h.free.count() {
		return fmt.Errorf("%w: walked %d live %d free, tracked %d live %d free",
			ErrBadHeader, live, free, h.live, h.free.count())
	}
	return nil
}

// allocatedCell returns the offset and size of the allocated cell whose
// payload starts at addr.
func (h *Heap) allocatedCell(addr vmem.Addr) (uint64, uint64, error) {
	if !h.Contains(addr) || addr < h.base+format.HeapHeaderSize+format.CellHeaderSize {
		return 0, 0, fmt.Errorf("%w: %v", ErrOutOfRange, addr)
	}
	if !format.IsAligned(uint64(addr), format.Granule) {
		return 0, 0, fmt.Errorf("%w: %v", ErrMisaligned, addr)
	}
	off := uint64(addr-h.base) - format.CellHeaderSize
	raw, err := h.readCell(off)
	if err != nil {
		return 0, 0, err
	}
	if raw >= 0 {
		return 0, 0, fmt.Errorf("%w: %v", ErrNotAllocated, addr)
	}
	size := uint64(-raw)
	if off+size > h.size {
		return 0, 0, fmt.Errorf("%w: cell at %v overruns heap", ErrBadHeader, addr)
	}
	return off, size, nil
}

func (h *Heap) readCell(off uint64) (int64, error) {
	b, err := h.mem.Bytes(h.base+vmem.Addr(off), format.CellHeaderSize)
	if err != nil {
		return 0, fmt.Errorf("subheap: cell at +%d: %w", off, err)
	}
	return format.ReadI64(b, 0), nil
}

func (h *Heap) putCell(off uint64, size int64) error {
	b, err := h.mem.Bytes(h.base+vmem.Addr(off), format.CellHeaderSize)
	if err != nil {
		return fmt.Errorf("subheap: cell at +%d: %w", off, err)
	}
	format.PutI64(b, 0, size)
	return nil
}

func (h *Heap) syncLive() {
	if hdr, err := h.mem.Bytes(h.base, format.HeapHeaderSize); err == nil {
		format.PutU64(hdr, format.HeapLiveOffset, uint64(h.live))
	}
}
