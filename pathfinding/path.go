package pathfinding

import "github.com/mpinel6/SDNController-CSC4501/topology"

// Path is an ordered node sequence with its total routing cost. Paths are
// plain values: the registry and the resilience manager copy them freely, so
// topology mutation can never corrupt an already-installed descriptor.
type Path struct {
	Nodes []string
	Cost  int
}

// Clone returns an independent copy of the path.
func (p Path) Clone() Path {
	nodes := make([]string, len(p.Nodes))
	copy(nodes, p.Nodes)
	return Path{Nodes: nodes, Cost: p.Cost}
}

// Equal reports whether two paths visit the same node sequence.
func (p Path) Equal(o Path) bool {
	if len(p.Nodes) != len(o.Nodes) {
		return false
	}
	for i := range p.Nodes {
		if p.Nodes[i] != o.Nodes[i] {
			return false
		}
	}
	return true
}

// UsesLink reports whether the unordered link (a,b) appears between any two
// consecutive nodes of the path.
func (p Path) UsesLink(a, b string) bool {
	for i := 0; i < len(p.Nodes)-1; i++ {
		if (p.Nodes[i] == a && p.Nodes[i+1] == b) ||
			(p.Nodes[i] == b && p.Nodes[i+1] == a) {
			return true
		}
	}
	return false
}

// Metrics summarizes a path for operator-facing output.
type Metrics struct {
	HopCount int
	Switches []string
	Hosts    []string
}

// PathMetrics splits a path into its switch and host hops.
func PathMetrics(snap *topology.Snapshot, p Path) Metrics {
	m := Metrics{HopCount: len(p.Nodes) - 1}
	if len(p.Nodes) < 2 {
		m.HopCount = 0
	}
	for _, id := range p.Nodes {
		kind, ok := snap.Kind(id)
		if !ok {
			continue
		}
		switch kind {
		case topology.KindSwitch:
			m.Switches = append(m.Switches, id)
		case topology.KindHost:
			m.Hosts = append(m.Hosts, id)
		}
	}
	return m
}
