// Package category implements the memory category registry: a tree of
// accounting buckets, each holding the live bytes and live allocation count
// charged to it.
//
// Allocators charge every byte they hand out to exactly one category. When a
// block moves between owners (a region first charged to UnusedSub4G and later
// handed to a consumer) the allocator decrements one category and increments
// the other, so the sum over the tree never double counts.
package category

import (
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
)

// Code identifies a category.
type Code uint32

// Built-in categories.
const (
	// Unknown receives charges for codes that are not registered.
	Unknown Code = 0x80000000
	// PortLibrary holds the port library's own bookkeeping.
	PortLibrary Code = 0x80000001
	// UnusedSub4G holds sub-4GB memory that is reserved and committed but
	// not handed out to any consumer.
	UnusedSub4G Code = 0x80000002
)

// NoParent marks a root category in a Definition.
const NoParent Code = 0

// Definition describes a category to register.
type Definition struct {
	Code   Code
	Name   string
	Parent Code
}

// Category is one accounting bucket.
type Category struct {
	Code     Code
	Name     string
	Parent   Code
	children []Code

	liveBytes  atomic.Int64
	liveAllocs atomic.Int64
}

// Children returns the codes of the direct children, in registration order.
func (c *Category) Children() []Code {
	out := make([]Code, len(c.children))
	copy(out, c.children)
	return out
}

// Totals is a snapshot of a category's counters.
type Totals struct {
	Bytes  int64
	Allocs int64
}

// Registry maps codes to categories. Counter updates are lock-free; the
// tree shape is fixed after construction.
type Registry struct {
	mu     sync.RWMutex
	byCode map[Code]*Category
	roots  []Code
}

// Builtins returns the definitions every registry starts with.
func Builtins() []Definition {
	return []Definition{
		{Code: Unknown, Name: "Unknown"},
		{Code: PortLibrary, Name: "Port Library"},
		{Code: UnusedSub4G, Name: "Unused <32bit region memory", Parent: PortLibrary},
	}
}

// NewRegistry builds a registry from the built-in categories plus defs.
// Parents must be registered before their children.
func NewRegistry(defs ...Definition) (*Registry, error) {
	r := &Registry{byCode: make(map[Code]*Category)}
	for _, d := range append(Builtins(), defs...) {
		if err := r.add(d); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (r *Registry) add(d Definition) error {
	if d.Code == NoParent {
		return fmt.Errorf("category: code 0 is reserved")
	}
	if _, dup := r.byCode[d.Code]; dup {
		return fmt.Errorf("category: duplicate code 0x%x", uint32(d.Code))
	}
	c := &Category{Code: d.Code, Name: d.Name, Parent: d.Parent}
	if d.Parent == NoParent {
		r.roots = append(r.roots, d.Code)
	} else {
		parent, ok := r.byCode[d.Parent]
		if !ok {
			return fmt.Errorf("category: 0x%x (%s) has unknown parent 0x%x", uint32(d.Code), d.Name, uint32(d.Parent))
		}
		parent.children = append(parent.children, d.Code)
	}
	r.byCode[d.Code] = c
	return nil
}

// Lookup returns the category for code, falling back to Unknown.
func (r *Registry) Lookup(code Code) *Category {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if c, ok := r.byCode[code]; ok {
		return c
	}
	return r.byCode[Unknown]
}

// Known reports whether code is registered.
func (r *Registry) Known(code Code) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.byCode[code]
	return ok
}

// IncrementCounters charges bytes and one allocation to code.
func (r *Registry) IncrementCounters(code Code, bytes uint64) {
	c := r.Lookup(code)
	c.liveBytes.Add(int64(bytes))
	c.liveAllocs.Add(1)
}

// DecrementCounters removes bytes and one allocation from code.
func (r *Registry) DecrementCounters(code Code, bytes uint64) {
	c := r.Lookup(code)
	c.liveBytes.Add(-int64(bytes))
	c.liveAllocs.Add(-1)
}

// IncrementBytes charges bytes to code without changing the allocation count.
func (r *Registry) IncrementBytes(code Code, bytes uint64) {
	r.Lookup(code).liveBytes.Add(int64(bytes))
}

// DecrementBytes removes bytes from code without changing the allocation count.
func (r *Registry) DecrementBytes(code Code, bytes uint64) {
	r.Lookup(code).liveBytes.Add(-int64(bytes))
}

// Totals returns the counters charged directly to code.
func (r *Registry) Totals(code Code) Totals {
	c := r.Lookup(code)
	return Totals{Bytes: c.liveBytes.Load(), Allocs: c.liveAllocs.Load()}
}

// SubtreeTotals returns the counters of code and all of its descendants.
func (r *Registry) SubtreeTotals(code Code) Totals {
	var t Totals
	r.walk(r.Lookup(code), 0, func(c *Category, _ int) {
		t.Bytes += c.liveBytes.Load()
		t.Allocs += c.liveAllocs.Load()
	})
	return t
}

// GrandTotals returns the counters summed over every category.
func (r *Registry) GrandTotals() Totals {
	var t Totals
	r.Walk(func(c *Category, _ int) {
		t.Bytes += c.liveBytes.Load()
		t.Allocs += c.liveAllocs.Load()
	})
	return t
}

// Walk visits every category depth first, roots in registration order.
func (r *Registry) Walk(fn func(c *Category, depth int)) {
	r.mu.RLock()
	roots := append([]Code(nil), r.roots...)
	r.mu.RUnlock()

	for _, code := range roots {
		r.walk(r.Lookup(code), 0, fn)
	}
}

func (r *Registry) walk(c *Category, depth int, fn func(*Category, int)) {
	fn(c, depth)
	for _, child := range c.children {
		r.walk(r.Lookup(child), depth+1, fn)
	}
}

// Codes returns every registered code in ascending order.
func (r *Registry) Codes() []Code {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Code, 0, len(r.byCode))
	for code := range r.byCode {
		out = append(out, code)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
