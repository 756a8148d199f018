package pathfinding

import "github.com/mpinel6/SDNController-CSC4501/topology"

// ipath is an index-based path used internally by the algorithms; exported
// Paths carry node IDs instead.
type ipath struct {
	nodes []int
	cost  int
}

// dijkstraFrom computes, for every node, all shortest paths from source over
// the adjacency matrix (-1 = no link). Equal-cost predecessors are kept so a
// deterministic representative can be chosen afterwards.
func dijkstraFrom(adj [][]int, source int) [][]ipath {
	n := len(adj)
	results := make([][]ipath, n)
	results[source] = []ipath{{nodes: []int{source}, cost: 0}}

	costs := make([]int, n) // cost from source to every node, -1 unreachable
	for i := 0; i < n; i++ {
		costs[i] = adj[source][i]
	}

	visited := make([]bool, n)
	visited[source] = true

	predecessors := make([][]int, n)
	for i := 0; i < n; i++ {
		predecessors[i] = []int{source}
	}
	predecessors[source] = []int{-1}

	for count := 0; count < n-1; count++ {
		minNode := -1
		for i := 0; i < n; i++ {
			if visited[i] || costs[i] < 0 {
				continue
			}
			if minNode < 0 || costs[i] < costs[minNode] {
				minNode = i
			}
		}
		if minNode == -1 { // the rest of the graph is unreachable
			break
		}

		visited[minNode] = true
		results[minNode] = collectPaths(minNode, source, predecessors, costs[minNode])

		for i := 0; i < n; i++ {
			if visited[i] || adj[minNode][i] < 0 {
				continue
			}
			if costs[i] < 0 || costs[i] > costs[minNode]+adj[minNode][i] {
				costs[i] = costs[minNode] + adj[minNode][i]
				predecessors[i] = []int{minNode}
			} else if costs[i] == costs[minNode]+adj[minNode][i] {
				predecessors[i] = append(predecessors[i], minNode)
			}
		}
	}

	return results
}

// collectPaths walks the predecessor sets backwards from node to source and
// materializes every shortest path.
func collectPaths(node, source int, predecessors [][]int, cost int) []ipath {
	var paths []ipath

	stack := []int{node}

	var walk func()
	walk = func() {
		if stack[len(stack)-1] == source {
			nodes := make([]int, 0, len(stack))
			for i := len(stack) - 1; i >= 0; i-- {
				nodes = append(nodes, stack[i])
			}
			paths = append(paths, ipath{nodes: nodes, cost: cost})
			return
		}
		for _, predecessor := range predecessors[stack[len(stack)-1]] {
			stack = append(stack, predecessor)
			walk()
			stack = stack[:len(stack)-1]
		}
	}
	walk()

	return paths
}

// pathLess orders paths by total cost, then hop count, then lexicographically
// by node sequence. Snapshots index nodes in sorted-ID order, so the index
// comparison doubles as an ID comparison; the overall order is total and the
// chosen representative is stable regardless of iteration order.
func pathLess(p1, p2 ipath) bool {
	if p1.cost != p2.cost {
		return p1.cost < p2.cost
	}
	if len(p1.nodes) != len(p2.nodes) {
		return len(p1.nodes) < len(p2.nodes)
	}
	for i := range p1.nodes {
		if p1.nodes[i] != p2.nodes[i] {
			return p1.nodes[i] < p2.nodes[i]
		}
	}
	return false
}

// bestPath returns the minimal path of a slice under pathLess.
func bestPath(paths []ipath) (ipath, bool) {
	if len(paths) == 0 {
		return ipath{}, false
	}
	min := paths[0]
	for i := 1; i < len(paths); i++ {
		if pathLess(paths[i], min) {
			min = paths[i]
		}
	}
	return min, true
}

func shortestBetween(adj [][]int, src, dst int) (ipath, bool) {
	return bestPath(dijkstraFrom(adj, src)[dst])
}

func toPath(snap *topology.Snapshot, p ipath) Path {
	nodes := make([]string, len(p.nodes))
	for i, idx := range p.nodes {
		nodes[i] = snap.IDs[idx]
	}
	return Path{Nodes: nodes, Cost: p.cost}
}

// ShortestPath computes the minimum-weight path between two nodes of the
// snapshot. The ok result is false when either endpoint is unknown or the
// graph is partitioned between them.
func ShortestPath(snap *topology.Snapshot, src, dst string) (Path, bool) {
	s, ok := snap.Index[src]
	if !ok {
		return Path{}, false
	}
	d, ok := snap.Index[dst]
	if !ok {
		return Path{}, false
	}
	if s == d {
		return Path{Nodes: []string{src}}, true
	}
	p, ok := shortestBetween(snap.Adj, s, d)
	if !ok {
		return Path{}, false
	}
	return toPath(snap, p), true
}

// ShortestPathExcludingLink computes the shortest path with one link masked
// out, the cheap equivalent of rerunning k-shortest after a failure.
func ShortestPathExcludingLink(snap *topology.Snapshot, src, dst, linkA, linkB string) (Path, bool) {
	s, ok := snap.Index[src]
	if !ok {
		return Path{}, false
	}
	d, ok := snap.Index[dst]
	if !ok {
		return Path{}, false
	}

	adj := snap.AdjCopy()
	if i, ok := snap.Index[linkA]; ok {
		if j, ok := snap.Index[linkB]; ok {
			adj[i][j] = -1
			adj[j][i] = -1
		}
	}

	p, ok := shortestBetween(adj, s, d)
	if !ok {
		return Path{}, false
	}
	return toPath(snap, p), true
}
