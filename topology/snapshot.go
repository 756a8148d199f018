package topology

import "sort"

// Snapshot is a point-in-time copy of the graph for multi-step algorithms.
// Nodes are indexed in sorted-ID order, so comparing index sequences
// lexicographically is the same as comparing node-ID sequences. The adjacency
// matrix holds routing weights, -1 meaning no link (the convention the path
// algorithms expect).
type Snapshot struct {
	IDs   []string
	Index map[string]int
	Nodes []Node
	Adj   [][]int
	stats map[LinkKey]LinkStats
}

// Snapshot copies the graph under the read lock. The result is immutable by
// convention; mutating the store afterwards does not affect it.
func (s *Store) Snapshot() *Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.nodes))
	for id := range s.nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	snap := &Snapshot{
		IDs:   ids,
		Index: make(map[string]int, len(ids)),
		Nodes: make([]Node, len(ids)),
		Adj:   make([][]int, len(ids)),
		stats: make(map[LinkKey]LinkStats, len(s.stats)),
	}
	for i, id := range ids {
		snap.Index[id] = i
		snap.Nodes[i] = s.nodes[id]
	}
	for i := range snap.Adj {
		snap.Adj[i] = make([]int, len(ids))
		for j := range snap.Adj[i] {
			snap.Adj[i][j] = -1
		}
	}
	for a, peers := range s.links {
		for b, w := range peers {
			snap.Adj[snap.Index[a]][snap.Index[b]] = w
		}
	}
	for k, st := range s.stats {
		snap.stats[k] = st
	}
	return snap
}

// HasLink reports whether the snapshot contains the undirected link.
func (sn *Snapshot) HasLink(a, b string) bool {
	i, ok := sn.Index[a]
	if !ok {
		return false
	}
	j, ok := sn.Index[b]
	if !ok {
		return false
	}
	return sn.Adj[i][j] >= 0
}

// Stats returns the counter snapshot recorded for the pair at snapshot time.
func (sn *Snapshot) Stats(a, b string) (LinkStats, bool) {
	st, ok := sn.stats[MakeLinkKey(a, b)]
	return st, ok
}

// Kind returns the node kind for an ID known to the snapshot.
func (sn *Snapshot) Kind(id string) (NodeKind, bool) {
	i, ok := sn.Index[id]
	if !ok {
		return "", false
	}
	return sn.Nodes[i].Kind, true
}

// AdjCopy returns a mutable copy of the adjacency matrix for algorithms that
// mask edges while they search.
func (sn *Snapshot) AdjCopy() [][]int {
	adj := make([][]int, len(sn.Adj))
	for i := range sn.Adj {
		adj[i] = make([]int, len(sn.Adj[i]))
		copy(adj[i], sn.Adj[i])
	}
	return adj
}
