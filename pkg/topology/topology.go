package topology

import (
	"sync"
)

// Topology is the node's view of the cluster: full membership learned from
// the init handshake, plus the sparse adjacency map the harness may push
// later. Read-mostly after setup, so an RWMutex.
type Topology struct {
	mu        sync.RWMutex
	self      string
	nodes     []string
	adjacency map[string][]string
}

func New() *Topology {
	return &Topology{}
}

// Init records this node's id and the full cluster membership. Called once,
// from the init handshake.
func (t *Topology) Init(self string, nodes []string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.self = self
	t.nodes = append([]string(nil), nodes...)
}

func (t *Topology) Self() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.self
}

// Nodes returns the full cluster membership, including this node.
func (t *Topology) Nodes() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return append([]string(nil), t.nodes...)
}

// Replace swaps in a new adjacency map wholesale. A repeated topology
// message overwrites the previous one; entries are never merged.
func (t *Topology) Replace(adjacency map[string][]string) {
	cp := make(map[string][]string, len(adjacency))
	for id, peers := range adjacency {
		cp[id] = append([]string(nil), peers...)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.adjacency = cp
}

// Neighbors returns the peers this node gossips with: its adjacency entry
// once a topology has been received, otherwise every other cluster node.
func (t *Topology) Neighbors() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.adjacency != nil {
		return append([]string(nil), t.adjacency[t.self]...)
	}
	out := make([]string, 0, len(t.nodes))
	for _, id := range t.nodes {
		if id != t.self {
			out = append(out, id)
		}
	}
	return out
}
