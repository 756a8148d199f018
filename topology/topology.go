package topology

import (
	"errors"
	"sort"
	"sync"

	log "github.com/sirupsen/logrus"
)

// API misuse is rejected synchronously with these sentinels. Unreachable
// destinations are never an error here; callers branch on lookups instead.
var (
	ErrUnknownNode   = errors.New("unknown node")
	ErrDuplicateNode = errors.New("duplicate node")
	ErrDuplicateLink = errors.New("duplicate link")
)

type NodeKind string

const (
	KindSwitch NodeKind = "switch"
	KindHost   NodeKind = "host"
)

// Node is a switch or a host in the network graph. For switches the ID is the
// device identifier used by the provisioning layer; hosts carry their MAC.
type Node struct {
	ID   string
	Kind NodeKind
	MAC  string
}

// LinkStats is the rolling counter snapshot for one link. Samples overwrite
// the previous snapshot wholesale; counters are never reset by the store.
type LinkStats struct {
	RxPackets uint64
	TxPackets uint64
	RxBytes   uint64
	TxBytes   uint64
	RxErrors  uint64
	TxErrors  uint64
}

// LinkKey identifies an undirected link by its canonically ordered endpoints.
type LinkKey struct {
	A string
	B string
}

// MakeLinkKey canonicalizes an endpoint pair so that (a,b) and (b,a) map to
// the same key.
func MakeLinkKey(a, b string) LinkKey {
	if b < a {
		a, b = b, a
	}
	return LinkKey{A: a, B: b}
}

// Store owns the network graph and the per-link statistics. All mutation goes
// through its methods under a single writer lock; long-running algorithms work
// on a Snapshot instead of holding the lock.
type Store struct {
	mu    sync.RWMutex
	nodes map[string]Node
	links map[string]map[string]int // symmetric adjacency, weight per direction
	stats map[LinkKey]LinkStats
	byMAC map[string]string // host MAC -> node ID
}

func NewStore() *Store {
	return &Store{
		nodes: make(map[string]Node),
		links: make(map[string]map[string]int),
		stats: make(map[LinkKey]LinkStats),
		byMAC: make(map[string]string),
	}
}

// AddNode inserts a node. Re-adding an identical node is a no-op; re-adding an
// ID with a different kind or MAC fails with ErrDuplicateNode.
func (s *Store) AddNode(id string, kind NodeKind, mac string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.nodes[id]; ok {
		if existing.Kind == kind && existing.MAC == mac {
			return nil
		}
		return ErrDuplicateNode
	}

	if mac != "" {
		if other, ok := s.byMAC[mac]; ok && other != id {
			// MAC uniqueness is an invariant, not a recoverable condition.
			log.Errorf("MAC %s already bound to node %s, refusing node %s", mac, other, id)
			return ErrDuplicateNode
		}
	}

	s.nodes[id] = Node{ID: id, Kind: kind, MAC: mac}
	s.links[id] = make(map[string]int)
	if mac != "" {
		s.byMAC[mac] = id
	}
	return nil
}

// RemoveNode deletes the node and every incident link. Removing an absent
// node is a no-op.
func (s *Store) RemoveNode(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	node, ok := s.nodes[id]
	if !ok {
		return
	}

	for peer := range s.links[id] {
		delete(s.links[peer], id)
	}
	delete(s.links, id)
	delete(s.nodes, id)
	if node.MAC != "" {
		delete(s.byMAC, node.MAC)
	}
}

// AddLink connects two existing nodes with the given routing weight.
func (s *Store) AddLink(a, b string, weight int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.nodes[a]; !ok {
		return ErrUnknownNode
	}
	if _, ok := s.nodes[b]; !ok {
		return ErrUnknownNode
	}
	if _, ok := s.links[a][b]; ok {
		return ErrDuplicateLink
	}

	s.links[a][b] = weight
	s.links[b][a] = weight
	return nil
}

// RemoveLink disconnects the pair. Absent link is a no-op. The statistics
// snapshot for the pair is kept; a later recovery resumes from it.
func (s *Store) RemoveLink(a, b string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if peers, ok := s.links[a]; ok {
		delete(peers, b)
	}
	if peers, ok := s.links[b]; ok {
		delete(peers, a)
	}
}

// HasLink reports whether the pair is currently connected.
func (s *Store) HasLink(a, b string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.links[a][b]
	return ok
}

// LinkWeight returns the routing weight of the link, if present.
func (s *Store) LinkWeight(a, b string) (int, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	w, ok := s.links[a][b]
	return w, ok
}

// GetNode returns a node by ID.
func (s *Store) GetNode(id string) (Node, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n, ok := s.nodes[id]
	return n, ok
}

// FindHostByMAC resolves a host node by MAC address. The MAC index is kept
// unique by AddNode, so at most one node can match.
func (s *Store) FindHostByMAC(mac string) (Node, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byMAC[mac]
	if !ok {
		return Node{}, false
	}
	return s.nodes[id], true
}

// UpdateLinkStats overwrites the stored counter snapshot for the pair.
// Samples for links the store does not know about are discarded, not buffered.
func (s *Store) UpdateLinkStats(a, b string, counters LinkStats) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.links[a][b]; !ok {
		log.Debugf("discarding stats sample for unknown link %s<->%s", a, b)
		return
	}
	s.stats[MakeLinkKey(a, b)] = counters
}

// Stats returns the last counter snapshot recorded for the pair.
func (s *Store) Stats(a, b string) (LinkStats, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st, ok := s.stats[MakeLinkKey(a, b)]
	return st, ok
}

func (s *Store) NodeCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.nodes)
}

func (s *Store) LinkCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, peers := range s.links {
		count += len(peers)
	}
	return count / 2
}

// Nodes returns all nodes sorted by ID.
func (s *Store) Nodes() []Node {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.nodes))
	for id := range s.nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	nodes := make([]Node, 0, len(ids))
	for _, id := range ids {
		nodes = append(nodes, s.nodes[id])
	}
	return nodes
}

// Neighbors returns the IDs linked to a node, sorted.
func (s *Store) Neighbors(id string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	peers := make([]string, 0, len(s.links[id]))
	for peer := range s.links[id] {
		peers = append(peers, peer)
	}
	sort.Strings(peers)
	return peers
}

// Switches returns all switch nodes sorted by ID.
func (s *Store) Switches() []Node {
	all := s.Nodes()
	switches := make([]Node, 0, len(all))
	for _, n := range all {
		if n.Kind == KindSwitch {
			switches = append(switches, n)
		}
	}
	return switches
}
