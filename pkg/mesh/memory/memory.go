// Package memory provides an in-process mesh. Frames are delivered
// synchronously on the sender's goroutine, which makes multi-peer scenarios
// deterministic in tests and simulations.
package memory

import (
    "context"
    "errors"
    "log"
    "sort"
    "sync"
    "time"

    "github.com/amirimatin/go-meshpubsub/pkg/internal/logutil"
    "github.com/amirimatin/go-meshpubsub/pkg/mesh"
    obsmetrics "github.com/amirimatin/go-meshpubsub/pkg/observability/metrics"
    "github.com/amirimatin/go-meshpubsub/pkg/protocol"
)

var (
    ErrDuplicateID = errors.New("memory: peer id already joined")
    ErrUnknownPeer = errors.New("memory: unknown peer")
)

// Network is a set of in-process peers that can all reach each other.
type Network struct {
    mu     sync.RWMutex
    peers  map[string]*Peer
    logger *log.Logger
}

// NewNetwork creates an empty network. A nil logger uses log.Default().
func NewNetwork(logger *log.Logger) *Network {
    if logger == nil { logger = log.Default() }
    return &Network{peers: make(map[string]*Peer), logger: logger}
}

// Join adds a peer with the given id. Existing peers see a join event for the
// newcomer and the newcomer sees one for every existing peer.
func (n *Network) Join(id string) (*Peer, error) {
    n.mu.Lock()
    if _, ok := n.peers[id]; ok {
        n.mu.Unlock()
        return nil, ErrDuplicateID
    }
    p := &Peer{net: n, self: mesh.NewClient(mesh.Instance{ID: id, Addr: "mem://" + id}), events: make(chan mesh.Event, 256)}
    p.Sender = mesh.Sender{SendFrame: p.deliver}
    others := n.sortedLocked()
    n.peers[id] = p
    n.mu.Unlock()

    now := time.Now()
    for _, o := range others {
        o.emit(mesh.Event{Type: mesh.EventJoin, Member: p.self.Instance, At: now})
        p.emit(mesh.Event{Type: mesh.EventJoin, Member: o.self.Instance, At: now})
    }
    return p, nil
}

// Leave removes the peer with the given id; every remaining peer receives a
// leave event for it.
func (n *Network) Leave(id string) error {
    n.mu.Lock()
    p, ok := n.peers[id]
    if !ok {
        n.mu.Unlock()
        return ErrUnknownPeer
    }
    delete(n.peers, id)
    rest := n.sortedLocked()
    n.mu.Unlock()

    now := time.Now()
    for _, o := range rest {
        o.emit(mesh.Event{Type: mesh.EventLeave, Member: p.self.Instance, At: now})
    }
    return nil
}

// Peer returns the joined peer with the given id.
func (n *Network) Peer(id string) (*Peer, bool) {
    n.mu.RLock()
    defer n.mu.RUnlock()
    p, ok := n.peers[id]
    return p, ok
}

// Members returns the current members ordered by ID.
func (n *Network) Members() []mesh.Instance {
    n.mu.RLock()
    defer n.mu.RUnlock()
    out := make([]mesh.Instance, 0, len(n.peers))
    for _, p := range n.sortedLocked() { out = append(out, p.self.Instance) }
    return out
}

func (n *Network) clients() []mesh.Client {
    n.mu.RLock()
    defer n.mu.RUnlock()
    out := make([]mesh.Client, 0, len(n.peers))
    for _, p := range n.peers { out = append(out, p.self) }
    return out
}

func (n *Network) sortedLocked() []*Peer {
    out := make([]*Peer, 0, len(n.peers))
    for _, p := range n.peers { out = append(out, p) }
    sort.Slice(out, func(i, j int) bool { return out[i].self.Instance.ID < out[j].self.Instance.ID })
    return out
}

// Peer is one member of a Network. It implements mesh.Mesh.
type Peer struct {
    mesh.Sender

    net    *Network
    self   mesh.Client
    events chan mesh.Event

    mu      sync.RWMutex
    handler mesh.FrameHandler
    closed  bool
}

var _ mesh.Mesh = (*Peer)(nil)

// ResponsibleFor picks the member closest to key.
func (p *Peer) ResponsibleFor(key protocol.ServiceKey) mesh.Client {
    if c, ok := mesh.Closest(key, p.net.clients()); ok { return c }
    return p.self
}

func (p *Peer) SameClient(a, b mesh.Client) bool { return mesh.SameID(a, b) }
func (p *Peer) Self() mesh.Client                { return p.self }

func (p *Peer) Start(ctx context.Context) error { return nil }

// Join is a no-op: a Peer is a member from the moment Network.Join returns.
func (p *Peer) Join(seeds []string) error { return nil }

func (p *Peer) Members() []mesh.Instance { return p.net.Members() }

func (p *Peer) Events() <-chan mesh.Event { return p.events }

func (p *Peer) Handle(h mesh.FrameHandler) {
    p.mu.Lock()
    p.handler = h
    p.mu.Unlock()
}

// Leave removes the peer from its network.
func (p *Peer) Leave() error { return p.net.Leave(p.self.Instance.ID) }

// Stop leaves the network if still joined and closes the events channel.
func (p *Peer) Stop() error {
    if _, ok := p.net.Peer(p.self.Instance.ID); ok {
        _ = p.net.Leave(p.self.Instance.ID)
    }
    p.mu.Lock()
    defer p.mu.Unlock()
    if !p.closed {
        p.closed = true
        close(p.events)
    }
    return nil
}

// HealthScore is always 0 (healthy).
func (p *Peer) HealthScore() int { return 0 }

func (p *Peer) emit(ev mesh.Event) {
    p.mu.RLock()
    defer p.mu.RUnlock()
    if p.closed { return }
    select {
    case p.events <- ev:
    default:
        logutil.Warnf(p.net.logger, "peer %s: dropping %s event for %s", p.self.Instance.ID, ev.Type, ev.Member.ID)
    }
}

func (p *Peer) deliver(target mesh.Instance, frame []byte) {
    dst, ok := p.net.Peer(target.ID)
    if !ok {
        logutil.Debugf(p.net.logger, "peer %s: target %s unreachable", p.self.Instance.ID, target.ID)
        obsmetrics.Dropped.WithLabelValues("unreachable").Inc()
        return
    }
    dst.mu.RLock()
    h := dst.handler
    dst.mu.RUnlock()
    if h == nil { return }
    buf := append([]byte(nil), frame...)
    if err := h(p.self.Instance, buf); err != nil {
        logutil.Warnf(p.net.logger, "peer %s: frame to %s rejected: %v", p.self.Instance.ID, target.ID, err)
    }
}
