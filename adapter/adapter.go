// Package adapter is the boundary between the path engine and the layer that
// programs real switches. The engine only ever asks a Provisioner to realize
// a path and accepts the events defined here; the wire protocol behind both
// is someone else's problem.
package adapter

import (
	"context"

	"github.com/mpinel6/SDNController-CSC4501/topology"
)

// Provisioner realizes computed paths as forwarding state and drives the
// statistics poll cycle. Implementations answer RequestLinkStats
// asynchronously with a LinkStatsSample event.
type Provisioner interface {
	// InstallPath translates the hop sequence into per-switch rules for the
	// host pair at the given priority. Weight is the flow's traffic-split
	// ratio for this path (1 for a single-path install); how an agent
	// realizes the split is its own concern.
	InstallPath(ctx context.Context, nodes []string, srcMAC, dstMAC string, priority int, weight float64) error

	// RequestLinkStats asks the device to report counters for one port.
	RequestLinkStats(ctx context.Context, deviceID string, port uint32) error
}

// Event is a topology or statistics observation delivered to the engine.
// Events are processed strictly in arrival order.
type Event interface {
	eventType() string
}

// SwitchJoined reports a switch connecting to the controller.
type SwitchJoined struct {
	DeviceID string
}

// SwitchLeft reports a switch disconnecting; its links go with it.
type SwitchLeft struct {
	DeviceID string
}

// LinkUp reports a switch-to-switch link observation, either a new link or a
// port coming back that matches a previously failed link's endpoints.
type LinkUp struct {
	DeviceA string
	PortA   uint32
	DeviceB string
	PortB   uint32
	Weight  int // routing cost, 0 means default
}

// LinkDown reports the loss of one end of a link; the engine resolves the
// peer through its port map.
type LinkDown struct {
	DeviceA string
	PortA   uint32
}

// HostObserved reports the first frame seen from an unknown MAC on a switch
// port. Re-observations are idempotent.
type HostObserved struct {
	DeviceID string
	Port     uint32
	MAC      string
}

// LinkStatsSample carries fresh counters for a link. Last writer wins; the
// samples are periodic readings, not a log.
type LinkStatsSample struct {
	DeviceA  string
	DeviceB  string
	Counters topology.LinkStats
}

func (SwitchJoined) eventType() string    { return "switch_joined" }
func (SwitchLeft) eventType() string      { return "switch_left" }
func (LinkUp) eventType() string          { return "link_up" }
func (LinkDown) eventType() string        { return "link_down" }
func (HostObserved) eventType() string    { return "host_observed" }
func (LinkStatsSample) eventType() string { return "link_stats_sample" }
