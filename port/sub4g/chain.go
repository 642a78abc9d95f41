package sub4g

import (
	"github.com/eclipse-openj9/openj9-omr-sub008/port/subheap"
	"github.com/eclipse-openj9/openj9-omr-sub008/port/vmem"
)

// Handle names a wrapper slot. Handles are reused after a wrapper is
// destroyed.
type Handle int32

// NoHandle terminates the chain.
const NoHandle Handle = -1

// wrapperMetaSize is what one wrapper's bookkeeping is charged to
// category.PortLibrary.
const wrapperMetaSize = 128

// wrapper fronts one region. A nil heap means the region is a single
// allocation.
type wrapper struct {
	heap    *subheap.Heap
	size    uint64 // bytes reserved for this unit
	region  vmem.Region
	next    Handle
	charged uint64 // bytes currently charged to UnusedSub4G
	inUse   bool
}

// chain is a singly linked list of wrappers stored in a slab. New wrappers
// are prepended, so a walk from head visits the most recent first.
type chain struct {
	slots []wrapper
	free  []Handle
	head  Handle
	count int
}

func newChain() chain {
	return chain{head: NoHandle}
}

func (c *chain) get(h Handle) *wrapper {
	return &c.slots[h]
}

// push stores w at the head and returns its handle.
func (c *chain) push(w wrapper) Handle {
	var h Handle
	if n := len(c.free); n > 0 {
		h = c.free[n-1]
		c.free = c.free[:n-1]
	} else {
		h = Handle(len(c.slots))
		c.slots = append(c.slots, wrapper{})
	}
	w.next = c.head
	w.inUse = true
	c.slots[h] = w
	c.head = h
	c.count++
	return h
}

// remove unlinks h and returns its slot to the free list.
func (c *chain) remove(h Handle) {
	if c.head == h {
		c.head = c.slots[h].next
	} else {
		for p := c.head; p != NoHandle; p = c.slots[p].next {
			if c.slots[p].next == h {
				c.slots[p].next = c.slots[h].next
				break
			}
		}
	}
	c.slots[h] = wrapper{next: NoHandle}
	c.free = append(c.free, h)
	c.count--
}

// find returns the wrapper whose region contains addr.
func (c *chain) find(addr vmem.Addr) Handle {
	for h := c.head; h != NoHandle; h = c.slots[h].next {
		if c.slots[h].region.Contains(addr) {
			return h
		}
	}
	return NoHandle
}

// each calls fn for every wrapper from head to tail until fn returns false.
func (c *chain) each(fn func(Handle, *wrapper) bool) {
	for h := c.head; h != NoHandle; {
		next := c.slots[h].next
		if !fn(h, &c.slots[h]) {
			return
		}
		h = next
	}
}
