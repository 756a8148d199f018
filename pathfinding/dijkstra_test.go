package pathfinding

import (
	"math/rand"
	"testing"

	"github.com/mpinel6/SDNController-CSC4501/topology"
)

type link struct {
	a, b   string
	weight int
}

func buildSnapshot(t *testing.T, switches []string, hosts map[string]string, links []link) *topology.Snapshot {
	t.Helper()
	s := topology.NewStore()
	for _, id := range switches {
		if err := s.AddNode(id, topology.KindSwitch, ""); err != nil {
			t.Fatalf("AddNode %s: %v", id, err)
		}
	}
	for id, mac := range hosts {
		if err := s.AddNode(id, topology.KindHost, mac); err != nil {
			t.Fatalf("AddNode %s: %v", id, err)
		}
	}
	for _, l := range links {
		if err := s.AddLink(l.a, l.b, l.weight); err != nil {
			t.Fatalf("AddLink %s-%s: %v", l.a, l.b, err)
		}
	}
	return s.Snapshot()
}

func TestShortestPathLinear(t *testing.T) {
	store := topology.NewStore()
	store.AddNode("h1", topology.KindHost, "00:00:00:00:00:01")
	store.AddNode("h2", topology.KindHost, "00:00:00:00:00:02")
	store.AddNode("s1", topology.KindSwitch, "")
	store.AddNode("s2", topology.KindSwitch, "")
	store.AddLink("h1", "s1", 1)
	store.AddLink("s1", "s2", 1)
	store.AddLink("s2", "h2", 1)

	path, ok := ShortestPath(store.Snapshot(), "h1", "h2")
	if !ok {
		t.Fatalf("expected a path")
	}
	want := []string{"h1", "s1", "s2", "h2"}
	if len(path.Nodes) != len(want) {
		t.Fatalf("expected %v, got %v", want, path.Nodes)
	}
	for i := range want {
		if path.Nodes[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, path.Nodes)
		}
	}
	if path.Cost != 3 {
		t.Errorf("expected cost 3, got %d", path.Cost)
	}

	store.RemoveLink("s1", "s2")
	if _, ok := ShortestPath(store.Snapshot(), "h1", "h2"); ok {
		t.Errorf("expected no path after removing s1-s2")
	}
}

func TestShortestPathUnknownEndpoint(t *testing.T) {
	snap := buildSnapshot(t, []string{"s1"}, nil, nil)
	if _, ok := ShortestPath(snap, "s1", "nope"); ok {
		t.Errorf("unknown destination must yield no path")
	}
	if _, ok := ShortestPath(snap, "nope", "s1"); ok {
		t.Errorf("unknown source must yield no path")
	}
}

func TestShortestPathDeterministicTieBreak(t *testing.T) {
	// diamond: two equal-cost routes s1->s2->s4 and s1->s3->s4;
	// the lexicographically smaller sequence must win every time
	snap := buildSnapshot(t, []string{"s1", "s2", "s3", "s4"}, nil, []link{
		{"s1", "s2", 1}, {"s2", "s4", 1},
		{"s1", "s3", 1}, {"s3", "s4", 1},
	})

	for i := 0; i < 10; i++ {
		path, ok := ShortestPath(snap, "s1", "s4")
		if !ok {
			t.Fatalf("expected a path")
		}
		if path.Nodes[1] != "s2" {
			t.Fatalf("tie-break must pick s2 branch, got %v", path.Nodes)
		}
	}
}

// enumerate every simple path by DFS for brute-force comparison
func allSimplePaths(snap *topology.Snapshot, src, dst string) []ipathInfo {
	s, d := snap.Index[src], snap.Index[dst]
	var out []ipathInfo
	visited := make([]bool, len(snap.IDs))
	var walk func(node, cost int, trail []int)
	walk = func(node, cost int, trail []int) {
		if node == d {
			nodes := make([]int, len(trail))
			copy(nodes, trail)
			out = append(out, ipathInfo{nodes: nodes, cost: cost})
			return
		}
		for next := 0; next < len(snap.IDs); next++ {
			if visited[next] || snap.Adj[node][next] < 0 {
				continue
			}
			visited[next] = true
			walk(next, cost+snap.Adj[node][next], append(trail, next))
			visited[next] = false
		}
	}
	visited[s] = true
	walk(s, 0, []int{s})
	return out
}

type ipathInfo struct {
	nodes []int
	cost  int
}

func TestShortestPathAgainstBruteForce(t *testing.T) {
	const seed int64 = 42
	rng := rand.New(rand.NewSource(seed))

	for trial := 0; trial < 20; trial++ {
		store := topology.NewStore()
		const n = 8
		ids := make([]string, n)
		for i := 0; i < n; i++ {
			ids[i] = string(rune('a' + i))
			store.AddNode(ids[i], topology.KindSwitch, "")
		}
		for i := 0; i < n; i++ {
			for j := i + 1; j < n; j++ {
				if rng.Float64() < 0.4 {
					store.AddLink(ids[i], ids[j], 1+rng.Intn(9))
				}
			}
		}
		snap := store.Snapshot()

		src, dst := ids[0], ids[n-1]
		path, ok := ShortestPath(snap, src, dst)
		brute := allSimplePaths(snap, src, dst)

		if !ok {
			if len(brute) != 0 {
				t.Fatalf("trial %d: ShortestPath found nothing but %d paths exist", trial, len(brute))
			}
			continue
		}
		if len(brute) == 0 {
			t.Fatalf("trial %d: ShortestPath returned %v on a disconnected pair", trial, path.Nodes)
		}

		// every consecutive pair must be an edge
		for i := 0; i < len(path.Nodes)-1; i++ {
			if !snap.HasLink(path.Nodes[i], path.Nodes[i+1]) {
				t.Fatalf("trial %d: hop %s-%s is not an edge", trial, path.Nodes[i], path.Nodes[i+1])
			}
		}

		best := brute[0].cost
		for _, p := range brute {
			if p.cost < best {
				best = p.cost
			}
		}
		if path.Cost != best {
			t.Fatalf("trial %d: got cost %d, brute force says %d", trial, path.Cost, best)
		}
	}
}

func TestShortestPathExcludingLink(t *testing.T) {
	snap := buildSnapshot(t, []string{"s1", "s2", "s3"}, nil, []link{
		{"s1", "s2", 1},
		{"s1", "s3", 1}, {"s3", "s2", 1},
	})

	direct, ok := ShortestPath(snap, "s1", "s2")
	if !ok || len(direct.Nodes) != 2 {
		t.Fatalf("expected direct path, got %v", direct.Nodes)
	}

	detour, ok := ShortestPathExcludingLink(snap, "s1", "s2", "s1", "s2")
	if !ok {
		t.Fatalf("expected detour path")
	}
	if len(detour.Nodes) != 3 || detour.Nodes[1] != "s3" {
		t.Errorf("expected detour via s3, got %v", detour.Nodes)
	}
	if detour.UsesLink("s1", "s2") {
		t.Errorf("detour must not use the excluded link")
	}

	// excluding the only remaining route as well leaves nothing
	bridgeSnap := buildSnapshot(t, []string{"s1", "s2"}, nil, []link{{"s1", "s2", 1}})
	if _, ok := ShortestPathExcludingLink(bridgeSnap, "s1", "s2", "s1", "s2"); ok {
		t.Errorf("expected no path when the bridge is excluded")
	}
}

func TestPathUsesLink(t *testing.T) {
	p := Path{Nodes: []string{"h1", "s1", "s2", "h2"}}

	if !p.UsesLink("s1", "s2") || !p.UsesLink("s2", "s1") {
		t.Errorf("UsesLink must be order-insensitive")
	}
	if p.UsesLink("s1", "h2") {
		t.Errorf("non-consecutive nodes are not a traversed link")
	}
	if p.UsesLink("s9", "s1") {
		t.Errorf("absent node is not a traversed link")
	}
}

func TestPathMetrics(t *testing.T) {
	snap := buildSnapshot(t,
		[]string{"s1", "s2"},
		map[string]string{"h1": "00:00:00:00:00:01", "h2": "00:00:00:00:00:02"},
		[]link{{"h1", "s1", 1}, {"s1", "s2", 1}, {"s2", "h2", 1}},
	)

	m := PathMetrics(snap, Path{Nodes: []string{"h1", "s1", "s2", "h2"}})
	if m.HopCount != 3 {
		t.Errorf("expected 3 hops, got %d", m.HopCount)
	}
	if len(m.Switches) != 2 || len(m.Hosts) != 2 {
		t.Errorf("expected 2 switches and 2 hosts, got %v / %v", m.Switches, m.Hosts)
	}
}
