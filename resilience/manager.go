// Package resilience reacts to link failure, recovery, and degradation:
// it re-homes affected flows, restores optimal paths after recovery, and keeps
// pre-staged backups warm for critical flows.
package resilience

import (
	"context"

	log "github.com/sirupsen/logrus"

	"github.com/mpinel6/SDNController-CSC4501/adapter"
	"github.com/mpinel6/SDNController-CSC4501/flows"
	"github.com/mpinel6/SDNController-CSC4501/pathfinding"
	"github.com/mpinel6/SDNController-CSC4501/topology"
)

// LinkState is the tracked condition of one link.
type LinkState int

const (
	StateUp LinkState = iota
	StateFailed
	StateDegraded
)

func (s LinkState) String() string {
	switch s {
	case StateFailed:
		return "failed"
	case StateDegraded:
		return "degraded"
	default:
		return "up"
	}
}

// Options tune the manager; zero values select the defaults.
type Options struct {
	BackupCount         int     // k for ensureBackups, primary included (default 3)
	BackupPriorityDelta int     // backups install at flow priority minus this (default 10)
	DegradedErrorRatio  float64 // error ratio above which a link is degraded (default 0.01)
	DefaultPriority     int     // priority for flows that never had one set (default 100)
}

func (o Options) withDefaults() Options {
	if o.BackupCount <= 0 {
		o.BackupCount = 3
	}
	if o.BackupPriorityDelta <= 0 {
		o.BackupPriorityDelta = 10
	}
	if o.DegradedErrorRatio <= 0 {
		o.DegradedErrorRatio = 0.01
	}
	if o.DefaultPriority <= 0 {
		o.DefaultPriority = 100
	}
	return o
}

// Manager tracks per-link state and drives recomputation. Its methods are
// called from the engine's event loop only, so each event's full
// read-compute-install unit runs without interleaving.
type Manager struct {
	store    *topology.Store
	registry *flows.Registry
	prov     adapter.Provisioner
	opts     Options

	linkStates map[topology.LinkKey]LinkState
}

func NewManager(store *topology.Store, registry *flows.Registry, prov adapter.Provisioner, opts Options) *Manager {
	return &Manager{
		store:      store,
		registry:   registry,
		prov:       prov,
		opts:       opts.withDefaults(),
		linkStates: make(map[topology.LinkKey]LinkState),
	}
}

// LinkState returns the tracked state of the pair, StateUp when untracked.
func (m *Manager) LinkState(a, b string) LinkState {
	return m.linkStates[topology.MakeLinkKey(a, b)]
}

func (m *Manager) flowPriority(f flows.Flow) int {
	if f.Priority != 0 {
		return f.Priority
	}
	return m.opts.DefaultPriority
}

func (m *Manager) endpoints(key flows.Key) (string, string, bool) {
	src, ok := m.store.FindHostByMAC(key.SrcMAC)
	if !ok {
		return "", "", false
	}
	dst, ok := m.store.FindHostByMAC(key.DstMAC)
	if !ok {
		return "", "", false
	}
	return src.ID, dst.ID, true
}

// HandleLinkDown removes the failed edge and re-homes every flow whose
// installed path traversed it. Re-running it for the same link converges to
// the same state: the edge stays gone and no installed path still uses it.
func (m *Manager) HandleLinkDown(ctx context.Context, a, b string) {
	key := topology.MakeLinkKey(a, b)
	m.linkStates[key] = StateFailed
	m.store.RemoveLink(a, b)

	affected := m.registry.FlowsUsingLink(a, b)
	if len(affected) == 0 {
		log.Infof("link %s<->%s failed, no installed flows affected", a, b)
		return
	}
	log.Warnf("link %s<->%s failed, re-homing %d flow(s)", a, b, len(affected))

	snap := m.store.Snapshot()
	for _, f := range affected {
		m.rehomeFlow(ctx, snap, f, a, b)
	}
}

// rehomeFlow moves one flow off a failed link, or flags it unroutable. Flows
// are handled independently; a dead end here never blocks the others.
func (m *Manager) rehomeFlow(ctx context.Context, snap *topology.Snapshot, f flows.Flow, linkA, linkB string) {
	src, dst, ok := m.endpoints(f.Key)
	if !ok {
		log.Warnf("flow %s->%s endpoints missing from topology, marking unroutable", f.Key.SrcMAC, f.Key.DstMAC)
		m.registry.SetUnroutable(f.Key, true)
		return
	}

	alt, ok := pathfinding.ShortestPathExcludingLink(snap, src, dst, linkA, linkB)
	if !ok {
		log.Warnf("no alternative path for flow %s->%s, leaving unroutable", f.Key.SrcMAC, f.Key.DstMAC)
		m.registry.SetUnroutable(f.Key, true)
		return
	}

	priority := m.flowPriority(f)
	if err := m.prov.InstallPath(ctx, alt.Nodes, f.Key.SrcMAC, f.Key.DstMAC, priority, 1); err != nil {
		log.Errorf("install of re-homed path for %s->%s failed: %v", f.Key.SrcMAC, f.Key.DstMAC, err)
	}
	m.registry.RecordPath(f.Key, alt, priority)
	log.Infof("re-homed flow %s->%s onto %v", f.Key.SrcMAC, f.Key.DstMAC, alt.Nodes)
}

// HandleLinkRecovery re-adds the edge and moves flows sitting on backup paths
// back to the unconstrained optimum. Staying on a backup merely because it
// still works would leave the network permanently detuned.
func (m *Manager) HandleLinkRecovery(ctx context.Context, a, b string, weight int) {
	if weight <= 0 {
		weight = 1
	}
	if err := m.store.AddLink(a, b, weight); err != nil && err != topology.ErrDuplicateLink {
		log.Warnf("cannot restore link %s<->%s: %v", a, b, err)
		return
	}
	m.linkStates[topology.MakeLinkKey(a, b)] = StateUp
	log.Infof("link %s<->%s recovered", a, b)

	snap := m.store.Snapshot()
	for _, f := range m.registry.All() {
		if len(f.Paths) == 0 || !m.registry.IsBackupPath(f.Paths[0]) {
			continue
		}
		src, dst, ok := m.endpoints(f.Key)
		if !ok {
			continue
		}
		best, ok := pathfinding.ShortestPath(snap, src, dst)
		if !ok || best.Equal(f.Paths[0]) {
			continue
		}
		priority := m.flowPriority(f)
		if err := m.prov.InstallPath(ctx, best.Nodes, f.Key.SrcMAC, f.Key.DstMAC, priority, 1); err != nil {
			log.Errorf("restoring optimal path for %s->%s failed: %v", f.Key.SrcMAC, f.Key.DstMAC, err)
		}
		m.registry.RecordPath(f.Key, best, priority)
		log.Infof("restored optimal path for flow %s->%s: %v", f.Key.SrcMAC, f.Key.DstMAC, best.Nodes)
	}
}

// HandleStatsUpdate re-evaluates a link's error ratio after a fresh sample.
// Crossing the threshold upward degrades the link and pre-stages backups for
// every flow riding it; falling back under clears the condition. The edge is
// never removed, the link still forwards.
func (m *Manager) HandleStatsUpdate(ctx context.Context, a, b string) {
	stats, ok := m.store.Stats(a, b)
	if !ok {
		return
	}

	rxPkts, txPkts := stats.RxPackets, stats.TxPackets
	if rxPkts == 0 {
		rxPkts = 1
	}
	if txPkts == 0 {
		txPkts = 1
	}
	ratio := float64(stats.RxErrors+stats.TxErrors) / float64(rxPkts+txPkts)

	key := topology.MakeLinkKey(a, b)
	state := m.linkStates[key]

	switch {
	case ratio > m.opts.DegradedErrorRatio && state == StateUp:
		m.linkStates[key] = StateDegraded
		log.Warnf("link %s<->%s degraded, error ratio %.4f", a, b, ratio)
		for _, f := range m.registry.FlowsUsingLink(a, b) {
			m.EnsureBackups(ctx, f.Key)
		}
	case ratio <= m.opts.DegradedErrorRatio && state == StateDegraded:
		m.linkStates[key] = StateUp
		log.Infof("link %s<->%s error ratio %.4f back under threshold", a, b, ratio)
	}
}

// EnsureBackups computes up to k shortest paths for the flow, keeps the first
// as the primary, records the rest as backups, and pre-installs them at
// reduced priority so failover is only a priority flip at the adapter. A flow
// whose topology admits no second path ends up with zero backups; that is
// observable state, not an error.
func (m *Manager) EnsureBackups(ctx context.Context, key flows.Key) {
	src, dst, ok := m.endpoints(key)
	if !ok {
		log.Warnf("ensureBackups: endpoints for %s->%s not in topology", key.SrcMAC, key.DstMAC)
		return
	}

	snap := m.store.Snapshot()
	paths := pathfinding.KShortestPaths(snap, src, dst, m.opts.BackupCount)
	if len(paths) < 2 {
		m.registry.RecordBackups(key, nil)
		log.Warnf("no backup available for flow %s->%s, only %d path(s) exist", key.SrcMAC, key.DstMAC, len(paths))
		return
	}

	backups := paths[1:]
	m.registry.RecordBackups(key, backups)

	f, _ := m.registry.Get(key)
	backupPriority := m.flowPriority(f) - m.opts.BackupPriorityDelta
	for _, p := range backups {
		if err := m.prov.InstallPath(ctx, p.Nodes, key.SrcMAC, key.DstMAC, backupPriority, 1); err != nil {
			log.Errorf("pre-installing backup for %s->%s failed: %v", key.SrcMAC, key.DstMAC, err)
		}
	}
	log.Infof("stored %d backup path(s) for flow %s->%s", len(backups), key.SrcMAC, key.DstMAC)
}

// MarkCritical sets or clears the critical flag. Setting it triggers backup
// computation; clearing it keeps existing backups, they are cheap to hold.
func (m *Manager) MarkCritical(ctx context.Context, key flows.Key, critical bool) {
	m.registry.SetCritical(key, critical)
	if critical {
		m.EnsureBackups(ctx, key)
	}
}
