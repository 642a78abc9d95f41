package subheap

import "container/heap"

// freeCell is one entry of a size-class min-heap.
type freeCell struct {
	off       uint64 // offset of the cell header from the heap base
	size      uint64 // cell size including the header
	class     int
	heapIndex int
}

// freeCellHeap is a min-heap on cell size; the top is the best fit.
type freeCellHeap []*freeCell

func (h *freeCellHeap) Len() int { return len(*h) }

func (h *freeCellHeap) Less(i, j int) bool {
	if (*h)[i].size != (*h)[j].size {
		return (*h)[i].size < (*h)[j].size
	}
	// Prefer lower addresses among equal sizes so placement is deterministic.
	return (*h)[i].off < (*h)[j].off
}

func (h *freeCellHeap) Swap(i, j int) {
	(*h)[i], (*h)[j] = (*h)[j], (*h)[i]
	(*h)[i].heapIndex = i
	(*h)[j].heapIndex = j
}

func (h *freeCellHeap) Push(x any) {
	cell := x.(*freeCell) //nolint:errcheck // heap.Interface contract guarantees type
	cell.heapIndex = len(*h)
	*h = append(*h, cell)
}

func (h *freeCellHeap) Pop() any {
	old := *h
	n := len(old)
	cell := old[n-1]
	old[n-1] = nil
	cell.heapIndex = -1
	*h = old[:n-1]
	return cell
}

// freeIndex tracks every free cell of a heap.
type freeIndex struct {
	table *sizeClassTable
	lists []freeCellHeap
	byOff map[uint64]*freeCell // start offset -> cell
	byEnd map[uint64]*freeCell // end offset -> cell
	bytes uint64
}

func newFreeIndex(table *sizeClassTable) *freeIndex {
	return &freeIndex{
		table: table,
		lists: make([]freeCellHeap, table.numClasses()),
		byOff: make(map[uint64]*freeCell),
		byEnd: make(map[uint64]*freeCell),
	}
}

func (fi *freeIndex) insert(off, size uint64) {
	c := &freeCell{off: off, size: size, class: fi.table.class(size)}
	heap.Push(&fi.lists[c.class], c)
	fi.byOff[off] = c
	fi.byEnd[off+size] = c
	fi.bytes += size
}

func (fi *freeIndex) remove(c *freeCell) {
	heap.Remove(&fi.lists[c.class], c.heapIndex)
	delete(fi.byOff, c.off)
	delete(fi.byEnd, c.off+c.size)
	fi.bytes -= c.size
}

// take removes and returns the smallest free cell of at least need bytes.
func (fi *freeIndex) take(need uint64) *freeCell {
	const maxScan = 32

	for class := fi.table.class(need); class < len(fi.lists); class++ {
		list := fi.lists[class]
		if len(list) == 0 {
			continue
		}
		if list[0].size >= need {
			c := list[0]
			fi.remove(c)
			return c
		}

		// The top of this class is too small but a larger member may fit.
		// Scan a bounded prefix of the heap array for the best candidate.
		var best *freeCell
		for i := 1; i < len(list) && i < maxScan; i++ {
			if c := list[i]; c.size >= need && (best == nil || c.size < best.size) {
				best = c
			}
		}
		if best == nil && len(list) > maxScan {
			for _, c := range list[maxScan:] {
				if c.size >= need && (best == nil || c.size < best.size) {
					best = c
				}
			}
		}
		if best != nil {
			fi.remove(best)
			return best
		}
	}
	return nil
}

// largest returns the size of the largest free cell.
func (fi *freeIndex) largest() uint64 {
	for class := len(fi.lists) - 1; class >= 0; class-- {
		var top uint64
		for _, c := range fi.lists[class] {
			if c.size > top {
				top = c.size
			}
		}
		if top != 0 {
			return top
		}
	}
	return 0
}

func (fi *freeIndex) count() int {
	return len(fi.byOff)
}
