package flows

import (
	"sync"

	"github.com/mpinel6/SDNController-CSC4501/pathfinding"
)

// Key identifies a flow by its host MAC pair.
type Key struct {
	SrcMAC string
	DstMAC string
}

// Flow is the registry's view of one host-pair traffic relationship: the
// installed path set (one path normally, several when load-balanced), the
// precomputed backups, and the flags the resilience manager acts on.
type Flow struct {
	Key        Key
	Paths      []pathfinding.Path
	Weights    []float64 // traffic-split ratios aligned with Paths, nil when single-path
	Backups    []pathfinding.Path
	Priority   int
	Critical   bool
	Unroutable bool
}

func cloneFlow(f *Flow) Flow {
	out := Flow{
		Key:        f.Key,
		Priority:   f.Priority,
		Critical:   f.Critical,
		Unroutable: f.Unroutable,
	}
	for _, p := range f.Paths {
		out.Paths = append(out.Paths, p.Clone())
	}
	if f.Weights != nil {
		out.Weights = make([]float64, len(f.Weights))
		copy(out.Weights, f.Weights)
	}
	for _, p := range f.Backups {
		out.Backups = append(out.Backups, p.Clone())
	}
	return out
}

// Registry is the shared flow table. Paths are stored by value: callers get
// and hand in copies, never references into the topology, so graph mutation
// cannot corrupt an installed path descriptor.
type Registry struct {
	mu    sync.RWMutex
	flows map[Key]*Flow
}

func NewRegistry() *Registry {
	return &Registry{flows: make(map[Key]*Flow)}
}

func (r *Registry) upsert(key Key) *Flow {
	f, ok := r.flows[key]
	if !ok {
		f = &Flow{Key: key}
		r.flows[key] = f
	}
	return f
}

// RecordPath replaces the flow's installed path set with the single path.
func (r *Registry) RecordPath(key Key, path pathfinding.Path, priority int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	f := r.upsert(key)
	f.Paths = []pathfinding.Path{path.Clone()}
	f.Weights = nil
	f.Priority = priority
	f.Unroutable = false
}

// RecordPaths replaces the installed set with a load-balanced path list and
// its normalized split ratios.
func (r *Registry) RecordPaths(key Key, paths []pathfinding.Path, weights []float64, priority int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	f := r.upsert(key)
	f.Paths = nil
	for _, p := range paths {
		f.Paths = append(f.Paths, p.Clone())
	}
	f.Weights = make([]float64, len(weights))
	copy(f.Weights, weights)
	f.Priority = priority
	f.Unroutable = false
}

// ClearPaths empties the installed set, leaving backups and flags alone.
func (r *Registry) ClearPaths(key Key) {
	r.mu.Lock()
	defer r.mu.Unlock()

	f := r.upsert(key)
	f.Paths = nil
	f.Weights = nil
}

// RecordBackups replaces the backup list entirely. Backups keep the
// preference order they were computed in; they are not re-ranked later.
func (r *Registry) RecordBackups(key Key, paths []pathfinding.Path) {
	r.mu.Lock()
	defer r.mu.Unlock()

	f := r.upsert(key)
	f.Backups = nil
	for _, p := range paths {
		f.Backups = append(f.Backups, p.Clone())
	}
}

// SetCritical flips the critical flag only. Backup computation on the way up
// is driven by the resilience manager; clearing the flag keeps any backups.
func (r *Registry) SetCritical(key Key, critical bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.upsert(key).Critical = critical
}

// SetPriority records the arbitration priority for the flow.
func (r *Registry) SetPriority(key Key, priority int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.upsert(key).Priority = priority
}

// SetUnroutable flags a flow that could not be re-homed. The engine keeps
// processing other flows; this is operator-visible state, not an error.
func (r *Registry) SetUnroutable(key Key, unroutable bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.upsert(key).Unroutable = unroutable
}

// Get returns a copy of the flow record.
func (r *Registry) Get(key Key) (Flow, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	f, ok := r.flows[key]
	if !ok {
		return Flow{}, false
	}
	return cloneFlow(f), true
}

// All returns copies of every flow record.
func (r *Registry) All() []Flow {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Flow, 0, len(r.flows))
	for _, f := range r.flows {
		out = append(out, cloneFlow(f))
	}
	return out
}

// IsBackupPath reports whether the path appears in any flow's backup list.
// Linear in the total number of backups, which is fine: re-routing is rare
// next to steady-state traffic.
func (r *Registry) IsBackupPath(path pathfinding.Path) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, f := range r.flows {
		for _, b := range f.Backups {
			if b.Equal(path) {
				return true
			}
		}
	}
	return false
}

// FlowsUsingLink returns copies of every flow whose installed set traverses
// the unordered link.
func (r *Registry) FlowsUsingLink(a, b string) []Flow {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Flow
	for _, f := range r.flows {
		for _, p := range f.Paths {
			if p.UsesLink(a, b) {
				out = append(out, cloneFlow(f))
				break
			}
		}
	}
	return out
}

// Remove drops a flow record entirely.
func (r *Registry) Remove(key Key) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.flows, key)
}
