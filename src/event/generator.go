package event

import "sync"

// Generator produces globally unique Event IDs for a single node by pairing the
// node id with a local monotonic counter.
type Generator struct {
	sync.Mutex
	node    uint32
	counter uint64
}

// NewGenerator ...
func NewGenerator(node uint32) *Generator {
	return &Generator{node: node}
}

// Next returns a new ID. The first ID has Counter 1.
func (g *Generator) Next() ID {
	g.Lock()
	defer g.Unlock()

	g.counter++

	return ID{Node: g.node, Counter: g.counter}
}

// Observe moves the counter past id if id was generated by this node. It is
// used to resume numbering after events are reloaded from disk.
func (g *Generator) Observe(id ID) {
	g.Lock()
	defer g.Unlock()

	if id.Node == g.node && id.Counter > g.counter {
		g.counter = id.Counter
	}
}
