// Package engine serializes topology events and operator requests into
// atomic event -> recompute -> install units over the shared stores.
package engine

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	log "github.com/sirupsen/logrus"

	"github.com/mpinel6/SDNController-CSC4501/adapter"
	"github.com/mpinel6/SDNController-CSC4501/config"
	"github.com/mpinel6/SDNController-CSC4501/flows"
	"github.com/mpinel6/SDNController-CSC4501/loadbalance"
	"github.com/mpinel6/SDNController-CSC4501/pathfinding"
	"github.com/mpinel6/SDNController-CSC4501/resilience"
	"github.com/mpinel6/SDNController-CSC4501/statesync"
	"github.com/mpinel6/SDNController-CSC4501/sysinfo"
	"github.com/mpinel6/SDNController-CSC4501/topology"
)

type portPeer struct {
	Device string
	Port   uint32
}

// Engine owns the event loop. A single mutex covers every mutation of the
// topology, the registry, and the per-link states, so a link-down and a
// concurrent load-balancing request can never interleave mid-recomputation.
// Long path searches run on snapshots and never hold the store lock itself.
type Engine struct {
	store     *topology.Store
	registry  *flows.Registry
	res       *resilience.Manager
	balancer  *loadbalance.Balancer
	prov      adapter.Provisioner
	publisher *statesync.Publisher // nil when state sync is disabled
	cfg       config.ControllerConfig

	mu          sync.Mutex
	events      chan adapter.Event
	switchPorts map[string]map[uint32]portPeer
	pool        *ants.Pool
}

func New(store *topology.Store, registry *flows.Registry, res *resilience.Manager,
	balancer *loadbalance.Balancer, prov adapter.Provisioner,
	publisher *statesync.Publisher, cfg config.ControllerConfig) (*Engine, error) {

	pool, err := ants.NewPool(32)
	if err != nil {
		return nil, err
	}

	return &Engine{
		store:       store,
		registry:    registry,
		res:         res,
		balancer:    balancer,
		prov:        prov,
		publisher:   publisher,
		cfg:         cfg,
		events:      make(chan adapter.Event, 256),
		switchPorts: make(map[string]map[uint32]portPeer),
		pool:        pool,
	}, nil
}

// Submit queues an event for processing in arrival order. Once accepted an
// event runs to completion; there is no cancellation concept.
func (e *Engine) Submit(ev adapter.Event) {
	e.events <- ev
}

// Run processes events and periodic work until the context is cancelled.
func (e *Engine) Run(ctx context.Context) {
	statsTicker := time.NewTicker(time.Duration(e.cfg.StatsPollSeconds) * time.Second)
	publishTicker := time.NewTicker(time.Duration(e.cfg.PublishSeconds) * time.Second)
	sysTicker := time.NewTicker(time.Duration(e.cfg.SysReportSeconds) * time.Second)
	defer statsTicker.Stop()
	defer publishTicker.Stop()
	defer sysTicker.Stop()

	log.Infof("engine started, stats poll every %ds", e.cfg.StatsPollSeconds)

	for {
		select {
		case ev := <-e.events:
			e.handleEvent(ctx, ev)
		case <-statsTicker.C:
			e.pollLinkStats(ctx)
		case <-publishTicker.C:
			if e.publisher != nil {
				e.publisher.PublishFlows(ctx, e.registry.All())
			}
		case <-sysTicker.C:
			sysinfo.LogReport()
		case <-ctx.Done():
			log.Infof("engine stopping")
			e.pool.Release()
			return
		}
	}
}

func (e *Engine) handleEvent(ctx context.Context, ev adapter.Event) {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch ev := ev.(type) {
	case adapter.SwitchJoined:
		e.handleSwitchJoined(ev)
	case adapter.SwitchLeft:
		e.handleSwitchLeft(ctx, ev)
	case adapter.LinkUp:
		e.handleLinkUp(ctx, ev)
	case adapter.LinkDown:
		e.handleLinkDown(ctx, ev)
	case adapter.HostObserved:
		e.handleHostObserved(ev)
	case adapter.LinkStatsSample:
		e.store.UpdateLinkStats(ev.DeviceA, ev.DeviceB, ev.Counters)
		e.res.HandleStatsUpdate(ctx, ev.DeviceA, ev.DeviceB)
	default:
		log.Warnf("unhandled event type %T", ev)
	}
}

func (e *Engine) handleSwitchJoined(ev adapter.SwitchJoined) {
	if err := e.store.AddNode(ev.DeviceID, topology.KindSwitch, ""); err != nil {
		log.Errorf("switch %s join rejected: %v", ev.DeviceID, err)
		return
	}
	if _, ok := e.switchPorts[ev.DeviceID]; !ok {
		e.switchPorts[ev.DeviceID] = make(map[uint32]portPeer)
	}
	log.Infof("switch %s connected", ev.DeviceID)
}

// handleSwitchLeft fails every incident link first so flows re-home around
// the dead switch, then drops the node.
func (e *Engine) handleSwitchLeft(ctx context.Context, ev adapter.SwitchLeft) {
	for _, peer := range e.store.Neighbors(ev.DeviceID) {
		e.res.HandleLinkDown(ctx, ev.DeviceID, peer)
	}
	e.store.RemoveNode(ev.DeviceID)
	delete(e.switchPorts, ev.DeviceID)
	for _, ports := range e.switchPorts {
		for port, peer := range ports {
			if peer.Device == ev.DeviceID {
				delete(ports, port)
			}
		}
	}
	log.Infof("switch %s disconnected", ev.DeviceID)
}

func (e *Engine) handleLinkUp(ctx context.Context, ev adapter.LinkUp) {
	weight := ev.Weight
	if weight <= 0 {
		weight = 1
	}

	e.trackPort(ev.DeviceA, ev.PortA, ev.DeviceB, ev.PortB)
	e.trackPort(ev.DeviceB, ev.PortB, ev.DeviceA, ev.PortA)

	if e.res.LinkState(ev.DeviceA, ev.DeviceB) == resilience.StateFailed {
		e.res.HandleLinkRecovery(ctx, ev.DeviceA, ev.DeviceB, weight)
		return
	}

	switch err := e.store.AddLink(ev.DeviceA, ev.DeviceB, weight); err {
	case nil:
		log.Infof("link %s<->%s up, weight %d", ev.DeviceA, ev.DeviceB, weight)
	case topology.ErrDuplicateLink:
		// duplicate observation, nothing to do
	default:
		log.Warnf("link %s<->%s rejected: %v", ev.DeviceA, ev.DeviceB, err)
	}
}

func (e *Engine) handleLinkDown(ctx context.Context, ev adapter.LinkDown) {
	ports, ok := e.switchPorts[ev.DeviceA]
	if !ok {
		log.Debugf("link down on unknown device %s", ev.DeviceA)
		return
	}
	peer, ok := ports[ev.PortA]
	if !ok {
		log.Debugf("link down on untracked port %s/%d", ev.DeviceA, ev.PortA)
		return
	}

	delete(ports, ev.PortA)
	if peerPorts, ok := e.switchPorts[peer.Device]; ok {
		delete(peerPorts, peer.Port)
	}

	e.res.HandleLinkDown(ctx, ev.DeviceA, peer.Device)
}

func (e *Engine) trackPort(device string, port uint32, peerDevice string, peerPort uint32) {
	if _, ok := e.switchPorts[device]; !ok {
		e.switchPorts[device] = make(map[uint32]portPeer)
	}
	e.switchPorts[device][port] = portPeer{Device: peerDevice, Port: peerPort}
}

// HostNodeID derives the topology node ID for a host MAC.
func HostNodeID(mac string) string {
	return "host-" + strings.ReplaceAll(mac, ":", "")
}

// handleHostObserved upserts the host and its attachment link; the first
// frame creates the node, later observations are no-ops.
func (e *Engine) handleHostObserved(ev adapter.HostObserved) {
	if _, ok := e.store.FindHostByMAC(ev.MAC); ok {
		return
	}

	hostID := HostNodeID(ev.MAC)
	if err := e.store.AddNode(hostID, topology.KindHost, ev.MAC); err != nil {
		log.Errorf("host %s rejected: %v", ev.MAC, err)
		return
	}
	switch err := e.store.AddLink(ev.DeviceID, hostID, 1); err {
	case nil, topology.ErrDuplicateLink:
	case topology.ErrUnknownNode:
		log.Warnf("host %s observed on unknown switch %s", ev.MAC, ev.DeviceID)
		e.store.RemoveNode(hostID)
		return
	default:
		log.Warnf("attaching host %s to %s: %v", ev.MAC, ev.DeviceID, err)
		return
	}

	e.trackPort(ev.DeviceID, ev.Port, hostID, 0)
	log.Infof("new host %s connected to switch %s port %d", ev.MAC, ev.DeviceID, ev.Port)
}

// pollLinkStats fans RequestLinkStats out over the worker pool. The requests
// are read-only, so they run outside the event lock; the answers come back as
// LinkStatsSample events and rejoin the serialized stream.
func (e *Engine) pollLinkStats(ctx context.Context) {
	e.mu.Lock()
	type target struct {
		device string
		port   uint32
	}
	var targets []target
	for device, ports := range e.switchPorts {
		for port := range ports {
			targets = append(targets, target{device: device, port: port})
		}
	}
	e.mu.Unlock()

	for _, t := range targets {
		t := t
		err := e.pool.Submit(func() {
			reqCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
			defer cancel()
			if err := e.prov.RequestLinkStats(reqCtx, t.device, t.port); err != nil {
				log.Debugf("stats request %s/%d failed: %v", t.device, t.port, err)
			}
		})
		if err != nil {
			log.Warnf("stats poll submit failed: %v", err)
		}
	}
}

// ComputeAndInstallPath computes the shortest path for the host pair,
// installs it, and records it. The ok result is false when either host is
// unknown or no path exists.
func (e *Engine) ComputeAndInstallPath(ctx context.Context, srcMAC, dstMAC string, priority int) (pathfinding.Path, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	src, ok := e.store.FindHostByMAC(srcMAC)
	if !ok {
		log.Warnf("compute path: source host %s unknown", srcMAC)
		return pathfinding.Path{}, false
	}
	dst, ok := e.store.FindHostByMAC(dstMAC)
	if !ok {
		log.Warnf("compute path: destination host %s unknown", dstMAC)
		return pathfinding.Path{}, false
	}

	snap := e.store.Snapshot()
	path, ok := pathfinding.ShortestPath(snap, src.ID, dst.ID)
	if !ok {
		log.Warnf("no path found between %s and %s", srcMAC, dstMAC)
		return pathfinding.Path{}, false
	}

	if priority <= 0 {
		priority = e.cfg.DefaultPriority
	}
	if err := e.prov.InstallPath(ctx, path.Nodes, srcMAC, dstMAC, priority, 1); err != nil {
		log.Errorf("installing path for %s->%s failed: %v", srcMAC, dstMAC, err)
	}
	e.registry.RecordPath(flows.Key{SrcMAC: srcMAC, DstMAC: dstMAC}, path, priority)
	log.Infof("installed path %v for %s->%s", path.Nodes, srcMAC, dstMAC)
	return path, true
}

// ApplyLoadBalancing splits the flow over up to n paths.
func (e *Engine) ApplyLoadBalancing(ctx context.Context, srcMAC, dstMAC string, n int) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if n <= 0 {
		n = e.cfg.LoadBalancePaths
	}
	_, _, ok := e.balancer.Apply(ctx, flows.Key{SrcMAC: srcMAC, DstMAC: dstMAC}, n)
	return ok
}

// MarkCritical flags the flow and, when setting, computes its backups.
func (e *Engine) MarkCritical(ctx context.Context, srcMAC, dstMAC string, critical bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.res.MarkCritical(ctx, flows.Key{SrcMAC: srcMAC, DstMAC: dstMAC}, critical)
}

// SetPriority records the flow's arbitration priority.
func (e *Engine) SetPriority(srcMAC, dstMAC string, priority int) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.registry.SetPriority(flows.Key{SrcMAC: srcMAC, DstMAC: dstMAC}, priority)
}

// QueryRoute returns the current shortest path for the pair without
// installing anything.
func (e *Engine) QueryRoute(srcMAC, dstMAC string) (pathfinding.Path, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	src, ok := e.store.FindHostByMAC(srcMAC)
	if !ok {
		return pathfinding.Path{}, false
	}
	dst, ok := e.store.FindHostByMAC(dstMAC)
	if !ok {
		return pathfinding.Path{}, false
	}
	return pathfinding.ShortestPath(e.store.Snapshot(), src.ID, dst.ID)
}
