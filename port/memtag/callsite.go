package memtag

import "sync"

// CallSites interns the diagnostic call-site strings stored in tags. A tag
// holds the id; id 0 is the empty call site.
type CallSites struct {
	mu    sync.RWMutex
	ids   map[string]uint64
	names []string
}

func newCallSites() *CallSites {
	return &CallSites{
		ids:   map[string]uint64{"": 0},
		names: []string{""},
	}
}

// Intern returns the id for s, registering it on first use.
func (c *CallSites) Intern(s string) uint64 {
	c.mu.RLock()
	id, ok := c.ids[s]
	c.mu.RUnlock()
	if ok {
		return id
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if id, ok := c.ids[s]; ok {
		return id
	}
	id = uint64(len(c.names))
	c.ids[s] = id
	c.names = append(c.names, s)
	return id
}

// Name returns the call site for id, or "<unknown>" for an id never issued.
func (c *CallSites) Name(id uint64) string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if id >= uint64(len(c.names)) {
		return "<unknown>"
	}
	return c.names[id]
}
