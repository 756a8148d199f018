package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/xtaci/smux"
)

// command is the JSON frame sent to a switch agent, one frame per stream.
type command struct {
	Type     string   `json:"type"` // "install_path" or "request_stats"
	Nodes    []string `json:"nodes,omitempty"`
	SrcMAC   string   `json:"src_mac,omitempty"`
	DstMAC   string   `json:"dst_mac,omitempty"`
	Priority int      `json:"priority,omitempty"`
	Weight   float64  `json:"weight,omitempty"`
	Port     uint32   `json:"port,omitempty"`
}

type commandAck struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

func defaultSmuxConfig() *smux.Config {
	return &smux.Config{
		Version:           1,
		KeepAliveInterval: 5 * time.Second,
		KeepAliveTimeout:  30 * time.Second,
		MaxFrameSize:      65535,
		MaxReceiveBuffer:  4194304,
		MaxStreamBuffer:   131072,
	}
}

// AgentProvisioner talks to per-switch agents over pooled smux sessions,
// opening one stream per command. It maps device identifiers to agent
// addresses from configuration.
type AgentProvisioner struct {
	agents      map[string]string // device ID -> agent address
	dialTimeout time.Duration

	mu       sync.Mutex
	sessions map[string]*smux.Session // agent address -> live session
}

func NewAgentProvisioner(agents map[string]string, dialTimeout time.Duration) *AgentProvisioner {
	if dialTimeout <= 0 {
		dialTimeout = 5 * time.Second
	}
	return &AgentProvisioner{
		agents:      agents,
		dialTimeout: dialTimeout,
		sessions:    make(map[string]*smux.Session),
	}
}

func (p *AgentProvisioner) session(addr string) (*smux.Session, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if s, ok := p.sessions[addr]; ok && !s.IsClosed() {
		return s, nil
	}

	conn, err := net.DialTimeout("tcp", addr, p.dialTimeout)
	if err != nil {
		return nil, fmt.Errorf("dial agent %s: %w", addr, err)
	}
	s, err := smux.Client(conn, defaultSmuxConfig())
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("smux handshake with %s: %w", addr, err)
	}
	p.sessions[addr] = s
	log.Infof("smux session established, agent=%s", addr)
	return s, nil
}

func (p *AgentProvisioner) send(ctx context.Context, deviceID string, cmd command) error {
	addr, ok := p.agents[deviceID]
	if !ok {
		return fmt.Errorf("no agent address for device %s", deviceID)
	}

	session, err := p.session(addr)
	if err != nil {
		return err
	}

	stream, err := session.OpenStream()
	if err != nil {
		return fmt.Errorf("open stream to %s: %w", addr, err)
	}
	defer stream.Close()

	if deadline, ok := ctx.Deadline(); ok {
		stream.SetDeadline(deadline)
	}

	if err := json.NewEncoder(stream).Encode(cmd); err != nil {
		return fmt.Errorf("send %s to %s: %w", cmd.Type, deviceID, err)
	}

	var ack commandAck
	if err := json.NewDecoder(stream).Decode(&ack); err != nil {
		return fmt.Errorf("read ack from %s: %w", deviceID, err)
	}
	if !ack.OK {
		return fmt.Errorf("agent %s rejected %s: %s", deviceID, cmd.Type, ack.Error)
	}
	return nil
}

// InstallPath sends the full hop sequence to every switch on the path; each
// agent picks out its own rules.
func (p *AgentProvisioner) InstallPath(ctx context.Context, nodes []string, srcMAC, dstMAC string, priority int, weight float64) error {
	cmd := command{
		Type:     "install_path",
		Nodes:    nodes,
		SrcMAC:   srcMAC,
		DstMAC:   dstMAC,
		Priority: priority,
		Weight:   weight,
	}
	for _, node := range nodes {
		if _, ok := p.agents[node]; !ok {
			continue // hosts and unmanaged hops
		}
		if err := p.send(ctx, node, cmd); err != nil {
			return err
		}
	}
	return nil
}

// RequestLinkStats triggers a counter report; the agent answers with a
// LinkStatsSample event on its own time.
func (p *AgentProvisioner) RequestLinkStats(ctx context.Context, deviceID string, port uint32) error {
	return p.send(ctx, deviceID, command{Type: "request_stats", Port: port})
}

// Close tears down every pooled session.
func (p *AgentProvisioner) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	for addr, s := range p.sessions {
		if err := s.Close(); err != nil {
			log.Warnf("closing smux session to %s: %v", addr, err)
		}
	}
	p.sessions = make(map[string]*smux.Session)
}
