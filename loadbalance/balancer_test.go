package loadbalance

import (
	"context"
	"math"
	"sync"
	"testing"

	"github.com/mpinel6/SDNController-CSC4501/flows"
	"github.com/mpinel6/SDNController-CSC4501/pathfinding"
	"github.com/mpinel6/SDNController-CSC4501/topology"
)

type fakeProvisioner struct {
	mu      sync.Mutex
	weights []float64
}

func (f *fakeProvisioner) InstallPath(_ context.Context, _ []string, _, _ string, _ int, weight float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.weights = append(f.weights, weight)
	return nil
}

func (f *fakeProvisioner) RequestLinkStats(context.Context, string, uint32) error { return nil }

var (
	mac1 = "00:00:00:00:00:01"
	mac2 = "00:00:00:00:00:02"
	key  = flows.Key{SrcMAC: mac1, DstMAC: mac2}
)

// h1-s1-{s2|s3}-s4-h2, two disjoint equal-cost branches
func twoBranchTopology(t *testing.T) *topology.Store {
	t.Helper()
	s := topology.NewStore()
	s.AddNode("h1", topology.KindHost, mac1)
	s.AddNode("h2", topology.KindHost, mac2)
	for _, id := range []string{"s1", "s2", "s3", "s4"} {
		s.AddNode(id, topology.KindSwitch, "")
	}
	s.AddLink("h1", "s1", 1)
	s.AddLink("s1", "s2", 1)
	s.AddLink("s2", "s4", 1)
	s.AddLink("s1", "s3", 1)
	s.AddLink("s3", "s4", 1)
	s.AddLink("s4", "h2", 1)
	return s
}

func TestApplyEqualSplit(t *testing.T) {
	store := twoBranchTopology(t)
	registry := flows.NewRegistry()
	prov := &fakeProvisioner{}
	b := NewBalancer(store, registry, prov, 100)

	paths, weights, ok := b.Apply(context.Background(), key, 2)
	if !ok {
		t.Fatalf("expected load balancing to succeed")
	}
	if len(paths) != 2 || len(weights) != 2 {
		t.Fatalf("expected 2 paths with 2 weights, got %d/%d", len(paths), len(weights))
	}

	// idle links: both branches weigh the same
	for i, w := range weights {
		if math.Abs(w-0.5) > 1e-9 {
			t.Errorf("weight %d: expected 0.5, got %v", i, w)
		}
	}
	if sum := weights[0] + weights[1]; math.Abs(sum-1) > 1e-9 {
		t.Errorf("weights must sum to 1, got %v", sum)
	}

	f, _ := registry.Get(key)
	if len(f.Paths) != 2 || len(f.Weights) != 2 {
		t.Errorf("registry must hold the full balanced set, got %d paths", len(f.Paths))
	}
	if len(prov.weights) != 2 {
		t.Errorf("every balanced path must be installed, got %d installs", len(prov.weights))
	}
}

func TestApplySkewsAwayFromLoadedLink(t *testing.T) {
	store := twoBranchTopology(t)
	registry := flows.NewRegistry()
	b := NewBalancer(store, registry, &fakeProvisioner{}, 100)

	// 4 MiB on the s2 branch
	store.UpdateLinkStats("s1", "s2", topology.LinkStats{RxBytes: 2 * bytesPerMiB, TxBytes: 2 * bytesPerMiB})

	paths, weights, ok := b.Apply(context.Background(), key, 2)
	if !ok {
		t.Fatalf("expected load balancing to succeed")
	}

	var loaded, idle float64
	for i, p := range paths {
		if p.UsesLink("s1", "s2") {
			loaded = weights[i]
		} else {
			idle = weights[i]
		}
	}
	if loaded >= idle {
		t.Errorf("loaded branch must carry the smaller share, got loaded=%v idle=%v", loaded, idle)
	}
	if sum := loaded + idle; math.Abs(sum-1) > 1e-9 {
		t.Errorf("weights must sum to 1, got %v", sum)
	}
}

func TestApplyNoPaths(t *testing.T) {
	store := twoBranchTopology(t)
	registry := flows.NewRegistry()
	b := NewBalancer(store, registry, &fakeProvisioner{}, 100)

	registry.RecordPath(key, pathfinding.Path{Nodes: []string{"h1", "s1", "s2", "s4", "h2"}, Cost: 4}, 100)

	// disconnect h2 entirely
	store.RemoveLink("s4", "h2")

	if _, _, ok := b.Apply(context.Background(), key, 2); ok {
		t.Fatalf("expected failure on a disconnected pair")
	}
	f, _ := registry.Get(key)
	if len(f.Paths) != 0 {
		t.Errorf("failed balancing must leave the installed set empty, got %d paths", len(f.Paths))
	}
}

func TestApplyUnknownHost(t *testing.T) {
	store := twoBranchTopology(t)
	b := NewBalancer(store, flows.NewRegistry(), &fakeProvisioner{}, 100)

	unknown := flows.Key{SrcMAC: "ff:ff:ff:ff:ff:ff", DstMAC: mac2}
	if _, _, ok := b.Apply(context.Background(), unknown, 2); ok {
		t.Errorf("unknown source MAC must fail")
	}
}

func TestPathScoreIgnoresHostLinks(t *testing.T) {
	store := twoBranchTopology(t)

	// load on the host attachment must not affect the score
	store.UpdateLinkStats("h1", "s1", topology.LinkStats{RxBytes: 50 * bytesPerMiB})
	snap := store.Snapshot()

	p := pathfinding.Path{Nodes: []string{"h1", "s1", "s2", "s4", "h2"}}
	if score := PathScore(snap, p); math.Abs(score-1) > 1e-9 {
		t.Errorf("host edges must not count toward utilization, got score %v", score)
	}
}
