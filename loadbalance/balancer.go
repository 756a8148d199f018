// Package loadbalance spreads a flow across several paths, weighting each by
// the inverse utilization of the links it crosses.
package loadbalance

import (
	"context"

	log "github.com/sirupsen/logrus"

	"github.com/mpinel6/SDNController-CSC4501/adapter"
	"github.com/mpinel6/SDNController-CSC4501/flows"
	"github.com/mpinel6/SDNController-CSC4501/pathfinding"
	"github.com/mpinel6/SDNController-CSC4501/topology"
)

const bytesPerMiB = 1024 * 1024

// Balancer computes split ratios over the current topology and records them
// as the flow's installed path set. Like the resilience manager it runs only
// on the engine's event loop.
type Balancer struct {
	store           *topology.Store
	registry        *flows.Registry
	prov            adapter.Provisioner
	defaultPriority int
}

func NewBalancer(store *topology.Store, registry *flows.Registry, prov adapter.Provisioner, defaultPriority int) *Balancer {
	if defaultPriority <= 0 {
		defaultPriority = 100
	}
	return &Balancer{
		store:           store,
		registry:        registry,
		prov:            prov,
		defaultPriority: defaultPriority,
	}
}

// PathScore is the inverse-utilization weight of a path: for every
// switch-to-switch hop the score is multiplied by 1/(1+util) where util is
// the link's byte counters in MiB. Links without statistics count as idle.
// Paths over loaded links score lower.
func PathScore(snap *topology.Snapshot, p pathfinding.Path) float64 {
	score := 1.0
	for i := 0; i < len(p.Nodes)-1; i++ {
		aKind, _ := snap.Kind(p.Nodes[i])
		bKind, _ := snap.Kind(p.Nodes[i+1])
		if aKind != topology.KindSwitch || bKind != topology.KindSwitch {
			continue
		}
		stats, ok := snap.Stats(p.Nodes[i], p.Nodes[i+1])
		if !ok {
			continue
		}
		utilization := float64(stats.RxBytes+stats.TxBytes) / bytesPerMiB
		score *= 1.0 / (1.0 + utilization)
	}
	return score
}

// Apply selects up to n paths for the flow, normalizes their scores into
// split ratios, records the set, and installs every path. The ratios sum to
// one; they describe the intended traffic split, the realization of the split
// belongs to the provisioning layer. When no path exists the installed set is
// left empty, never partially filled.
func (b *Balancer) Apply(ctx context.Context, key flows.Key, n int) ([]pathfinding.Path, []float64, bool) {
	src, ok := b.store.FindHostByMAC(key.SrcMAC)
	if !ok {
		log.Warnf("load balancing %s->%s: source host unknown", key.SrcMAC, key.DstMAC)
		return nil, nil, false
	}
	dst, ok := b.store.FindHostByMAC(key.DstMAC)
	if !ok {
		log.Warnf("load balancing %s->%s: destination host unknown", key.SrcMAC, key.DstMAC)
		return nil, nil, false
	}

	snap := b.store.Snapshot()
	paths := pathfinding.KShortestPaths(snap, src.ID, dst.ID, n)
	if len(paths) == 0 {
		log.Warnf("load balancing %s->%s: no paths exist", key.SrcMAC, key.DstMAC)
		b.registry.ClearPaths(key)
		return nil, nil, false
	}

	weights := make([]float64, len(paths))
	total := 0.0
	for i, p := range paths {
		weights[i] = PathScore(snap, p)
		total += weights[i]
	}
	for i := range weights {
		weights[i] /= total
	}

	priority := b.defaultPriority
	if f, ok := b.registry.Get(key); ok && f.Priority != 0 {
		priority = f.Priority
	}

	b.registry.RecordPaths(key, paths, weights, priority)
	for i, p := range paths {
		if err := b.prov.InstallPath(ctx, p.Nodes, key.SrcMAC, key.DstMAC, priority, weights[i]); err != nil {
			log.Errorf("installing balanced path %d for %s->%s failed: %v", i, key.SrcMAC, key.DstMAC, err)
		}
	}

	log.Infof("load balancing %s->%s across %d path(s)", key.SrcMAC, key.DstMAC, len(paths))
	return paths, weights, true
}
