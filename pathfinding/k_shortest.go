package pathfinding

import "github.com/mpinel6/SDNController-CSC4501/topology"

// KShortestPaths returns up to k simple (loopless) paths between src and dst
// in non-decreasing weight order, computed with Yen's algorithm over the
// snapshot. Fewer than k paths are returned when fewer exist; an empty slice
// means the pair is disconnected.
func KShortestPaths(snap *topology.Snapshot, src, dst string, k int) []Path {
	var out []Path
	if k <= 0 {
		return out
	}

	s, ok := snap.Index[src]
	if !ok {
		return out
	}
	d, ok := snap.Index[dst]
	if !ok {
		return out
	}

	adj := snap.AdjCopy()

	var found []ipath
	var candidates pathHeap

	shortest, ok := shortestBetween(adj, s, d)
	if !ok {
		return out
	}
	found = append(found, shortest)

	for len(found) < k {
		prevPath := found[len(found)-1].nodes
		// The spur node ranges from the first node to the next-to-last node of
		// the previous path.
		for i := 0; i < len(prevPath)-1; i++ {
			spurNode := prevPath[i]
			rootPath := prevPath[:i+1]
			deletedLinks := make(map[[2]int]int)

			// Mask the outgoing edges of earlier results that share this root,
			// so the spur search is forced onto a new branch.
			for j := 0; j < len(found); j++ {
				if len(found[j].nodes) > i && sliceEqual(found[j].nodes[:i+1], rootPath) {
					tail, head := found[j].nodes[i], found[j].nodes[i+1]
					if _, exist := deletedLinks[[2]int{tail, head}]; !exist {
						deletedLinks[[2]int{tail, head}] = adj[tail][head]
						adj[tail][head] = -1
					}
				}
			}
			// Make the root-path nodes (except the spur node) unreachable to
			// keep the spur path loopless.
			for j := 0; j < len(rootPath)-1; j++ {
				for head := 0; head < len(adj); head++ {
					if _, exist := deletedLinks[[2]int{head, rootPath[j]}]; !exist {
						deletedLinks[[2]int{head, rootPath[j]}] = adj[head][rootPath[j]]
						adj[head][rootPath[j]] = -1
					}
				}
			}

			spurPath, spurOK := shortestBetween(adj, spurNode, d)

			for headTail, weight := range deletedLinks {
				adj[headTail[0]][headTail[1]] = weight
			}

			if !spurOK {
				continue
			}

			rootCopy := make([]int, len(rootPath))
			copy(rootCopy, rootPath)
			totalNodes := append(rootCopy[:len(rootCopy)-1], spurPath.nodes...)
			total := ipath{nodes: totalNodes}
			for j := 0; j < len(totalNodes)-1; j++ {
				total.cost += adj[totalNodes[j]][totalNodes[j+1]]
			}

			if !candidates.contain(total) {
				candidates.insert(total)
			}
		}

		if len(candidates) == 0 {
			break
		}
		found = append(found, candidates[0])
		candidates.pop()
	}

	out = make([]Path, 0, len(found))
	for _, p := range found {
		out = append(out, toPath(snap, p))
	}
	return out
}

func sliceEqual(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := 0; i < len(a); i++ {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// min-heap of candidate paths ordered by pathLess
type pathHeap []ipath

func (h pathHeap) shiftDown(start, end int) {
	dad := start
	son := dad*2 + 1

	for son <= end {
		if son+1 <= end && pathLess(h[son+1], h[son]) {
			son++
		}
		if !pathLess(h[son], h[dad]) {
			break
		}
		h[dad], h[son] = h[son], h[dad]
		dad = son
		son = dad*2 + 1
	}
}

func (h pathHeap) shiftUp(start int) {
	son := start
	dad := (son - 1) / 2
	for dad >= 0 {
		if !pathLess(h[son], h[dad]) {
			break
		}
		h[dad], h[son] = h[son], h[dad]
		son = dad
		dad = (son - 1) / 2
	}
}

func (h *pathHeap) insert(p ipath) {
	*h = append(*h, p)
	h.shiftUp(len(*h) - 1)
}

func (h *pathHeap) pop() {
	(*h)[0] = (*h)[len(*h)-1]
	*h = (*h)[:len(*h)-1]
	if len(*h) > 0 {
		h.shiftDown(0, len(*h)-1)
	}
}

func (h pathHeap) contain(p ipath) bool {
	for i := 0; i < len(h); i++ {
		if sliceEqual(h[i].nodes, p.nodes) {
			return true
		}
	}
	return false
}
