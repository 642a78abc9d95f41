package vmem

import "sort"

// span is a half-open range of offsets within a region.
type span struct {
	off uint64
	len uint64
}

func (s span) end() uint64 { return s.off + s.len }

// rangeSet tracks the committed parts of a region as sorted, non-overlapping,
// non-adjacent spans.
type rangeSet struct {
	spans []span
}

// add inserts [off, off+n) and returns how many bytes were not already present.
func (rs *rangeSet) add(off, n uint64) uint64 {
	if n == 0 {
		return 0
	}
	before := rs.total()

	merged := make([]span, 0, len(rs.spans)+1)
	current := span{off: off, len: n}
	inserted := false
	for _, s := range rs.spans {
		switch {
		case s.end() < current.off:
			merged = append(merged, s)
		case s.off > current.end():
			if !inserted {
				merged = append(merged, current)
				inserted = true
			}
			merged = append(merged, s)
		default:
			// Overlapping or adjacent: extend current to cover both.
			start := min(s.off, current.off)
			end := max(s.end(), current.end())
			current = span{off: start, len: end - start}
		}
	}
	if !inserted {
		merged = append(merged, current)
	}
	sort.Slice(merged, func(i, j int) bool { return merged[i].off < merged[j].off })
	rs.spans = merged

	return rs.total() - before
}

// remove deletes [off, off+n) and returns how many bytes were present.
func (rs *rangeSet) remove(off, n uint64) uint64 {
	if n == 0 {
		return 0
	}
	before := rs.total()
	end := off + n

	kept := make([]span, 0, len(rs.spans)+1)
	for _, s := range rs.spans {
		if s.end() <= off || s.off >= end {
			kept = append(kept, s)
			continue
		}
		if s.off < off {
			kept = append(kept, span{off: s.off, len: off - s.off})
		}
		if s.end() > end {
			kept = append(kept, span{off: end, len: s.end() - end})
		}
	}
	rs.spans = kept

	return before - rs.total()
}

// covers reports whether [off, off+n) is entirely present.
func (rs *rangeSet) covers(off, n uint64) bool {
	if n == 0 {
		return true
	}
	i := sort.Search(len(rs.spans), func(i int) bool { return rs.spans[i].end() > off })
	if i == len(rs.spans) {
		return false
	}
	s := rs.spans[i]
	return s.off <= off && s.end() >= off+n
}

func (rs *rangeSet) total() uint64 {
	var t uint64
	for _, s := range rs.spans {
		t += s.len
	}
	return t
}
