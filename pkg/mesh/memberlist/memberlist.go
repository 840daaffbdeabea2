// Package memberlist implements mesh.Mesh on top of HashiCorp memberlist:
// gossip membership and failure detection decide who is in the mesh, and
// pub/sub frames travel as reliable user messages.
package memberlist

import (
    "context"
    "encoding/json"
    "fmt"
    "log"
    "net"
    "strconv"
    "sync"
    "time"

    lru "github.com/hashicorp/golang-lru/v2"
    "github.com/hashicorp/memberlist"

    "github.com/amirimatin/go-meshpubsub/pkg/internal/logutil"
    "github.com/amirimatin/go-meshpubsub/pkg/mesh"
    obsmetrics "github.com/amirimatin/go-meshpubsub/pkg/observability/metrics"
    "github.com/amirimatin/go-meshpubsub/pkg/protocol"
)

const defaultKeyCacheSize = 1024

// Options configures the memberlist-based mesh.
type Options struct {
    // NodeID is the unique node identifier.
    NodeID string

    // Bind is the bind address in host:port form (e.g. ":7946" or "0.0.0.0:7946").
    Bind string

    // Advertise is the advertised address (host:port) that peers will use to reach this node.
    // If empty, memberlist derives it from Bind.
    Advertise string

    // Meta is optional metadata gossiped with the node (e.g. management address).
    Meta map[string]string

    // Logger is optional. If nil, log.Default() is used.
    Logger *log.Logger

    // KeyCacheSize bounds the member digest cache. Zero means 1024.
    KeyCacheSize int

    // Tuning parameters (optional). Zero means use defaults.
    ProbeInterval time.Duration
    ProbeTimeout  time.Duration
    SuspicionMult int
}

// Mesh implements mesh.Mesh using HashiCorp memberlist.
type Mesh struct {
    mesh.Sender

    mu      sync.RWMutex
    opts    Options
    ml      *memberlist.Memberlist
    handler mesh.FrameHandler
    keys    *lru.Cache[string, protocol.ServiceKey]

    // evMu guards evts separately: memberlist.Create emits the local join
    // while Start holds mu.
    evMu   sync.Mutex
    evts   chan mesh.Event
    closed bool
}

var _ mesh.Mesh = (*Mesh)(nil)

// New constructs a memberlist-backed mesh. Call Handle and then Start.
func New(opts Options) (*Mesh, error) {
    if opts.NodeID == "" {
        return nil, fmt.Errorf("memberlist: empty NodeID")
    }
    if opts.Bind == "" {
        return nil, fmt.Errorf("memberlist: empty Bind address")
    }
    if opts.Logger == nil {
        opts.Logger = log.Default()
    }
    if opts.KeyCacheSize <= 0 {
        opts.KeyCacheSize = defaultKeyCacheSize
    }
    keys, err := lru.New[string, protocol.ServiceKey](opts.KeyCacheSize)
    if err != nil {
        return nil, err
    }
    m := &Mesh{
        opts: opts,
        evts: make(chan mesh.Event, 64),
        keys: keys,
    }
    m.Sender = mesh.Sender{SendFrame: m.sendFrame}
    return m, nil
}

// Start creates and launches the underlying memberlist instance.
func (m *Mesh) Start(ctx context.Context) error {
    m.mu.Lock()
    defer m.mu.Unlock()
    if m.ml != nil {
        return nil
    }

    cfg := memberlist.DefaultLANConfig()
    cfg.Name = m.opts.NodeID
    host, port, err := splitHostPort(m.opts.Bind)
    if err != nil {
        return fmt.Errorf("memberlist: invalid bind address %q: %w", m.opts.Bind, err)
    }
    cfg.BindAddr = host
    cfg.BindPort = port

    if m.opts.Advertise != "" {
        ahost, aport, err := splitHostPort(m.opts.Advertise)
        if err != nil {
            return fmt.Errorf("memberlist: invalid advertise address %q: %w", m.opts.Advertise, err)
        }
        cfg.AdvertiseAddr = ahost
        cfg.AdvertisePort = aport
    }

    if m.opts.ProbeInterval > 0 {
        cfg.ProbeInterval = m.opts.ProbeInterval
    }
    if m.opts.ProbeTimeout > 0 {
        cfg.ProbeTimeout = m.opts.ProbeTimeout
    }
    if m.opts.SuspicionMult > 0 {
        cfg.SuspicionMult = m.opts.SuspicionMult
    }
    cfg.Logger = m.opts.Logger

    cfg.Events = &eventDelegate{emit: m.emit}
    metaBytes, _ := json.Marshal(m.opts.Meta)
    cfg.Delegate = &nodeDelegate{meta: metaBytes, recv: m.receive}

    ml, err := memberlist.Create(cfg)
    if err != nil {
        return err
    }
    m.ml = ml

    go func() {
        <-ctx.Done()
        _ = m.Stop()
    }()
    return nil
}

func (m *Mesh) Join(seeds []string) error {
    ml := m.list()
    if ml == nil {
        return fmt.Errorf("memberlist: not started")
    }
    if len(seeds) == 0 {
        return nil
    }
    _, err := ml.Join(seeds)
    return err
}

// Handle registers the receiver for inbound frames.
func (m *Mesh) Handle(h mesh.FrameHandler) {
    m.mu.Lock()
    m.handler = h
    m.mu.Unlock()
}

func (m *Mesh) list() *memberlist.Memberlist {
    m.mu.RLock()
    defer m.mu.RUnlock()
    return m.ml
}

// Self returns the local peer. Before Start only the ID is known.
func (m *Mesh) Self() mesh.Client {
    ml := m.list()
    if ml == nil {
        return m.client(mesh.Instance{ID: m.opts.NodeID})
    }
    return m.client(instanceOf(ml.LocalNode()))
}

// SameClient compares node names, which memberlist keeps unique.
func (m *Mesh) SameClient(a, b mesh.Client) bool { return mesh.SameID(a, b) }

// ResponsibleFor returns the live member whose digest is closest to key.
func (m *Mesh) ResponsibleFor(key protocol.ServiceKey) mesh.Client {
    ml := m.list()
    if ml == nil {
        return m.Self()
    }
    nodes := ml.Members()
    clients := make([]mesh.Client, 0, len(nodes))
    for _, n := range nodes {
        clients = append(clients, m.client(instanceOf(n)))
    }
    if c, ok := mesh.Closest(key, clients); ok {
        return c
    }
    return m.Self()
}

// client wraps inst, reusing cached digests of member IDs.
func (m *Mesh) client(inst mesh.Instance) mesh.Client {
    if k, ok := m.keys.Get(inst.ID); ok {
        return mesh.Client{Instance: inst, Key: k}
    }
    c := mesh.NewClient(inst)
    m.keys.Add(inst.ID, c.Key)
    return c
}

func (m *Mesh) Members() []mesh.Instance {
    ml := m.list()
    if ml == nil {
        return nil
    }
    nodes := ml.Members()
    out := make([]mesh.Instance, 0, len(nodes))
    for _, n := range nodes {
        out = append(out, instanceOf(n))
    }
    return out
}

// Meta returns the gossiped metadata of member id.
func (m *Mesh) Meta(id string) (map[string]string, bool) {
    ml := m.list()
    if ml == nil {
        return nil, false
    }
    for _, n := range ml.Members() {
        if n.Name != id { continue }
        meta := map[string]string{}
        if len(n.Meta) > 0 { _ = json.Unmarshal(n.Meta, &meta) }
        return meta, true
    }
    return nil, false
}

func (m *Mesh) Events() <-chan mesh.Event { return m.evts }

func (m *Mesh) Leave() error {
    ml := m.list()
    if ml == nil {
        return nil
    }
    // best-effort: leave and give some time to broadcast
    _ = ml.Leave(time.Second)
    return nil
}

func (m *Mesh) Stop() error {
    m.mu.Lock()
    ml := m.ml
    m.ml = nil
    m.mu.Unlock()
    if ml != nil {
        _ = ml.Shutdown()
    }
    m.evMu.Lock()
    defer m.evMu.Unlock()
    if !m.closed {
        m.closed = true
        close(m.evts)
    }
    return nil
}

// HealthScore exposes memberlist's awareness score, or -1 when not started.
func (m *Mesh) HealthScore() int {
    ml := m.list()
    if ml == nil {
        return -1
    }
    return ml.GetHealthScore()
}

func (m *Mesh) sendFrame(target mesh.Instance, frame []byte) {
    ml := m.list()
    if ml == nil {
        logutil.Warnf(m.opts.Logger, "memberlist: send to %s before start", target.ID)
        return
    }
    var node *memberlist.Node
    for _, n := range ml.Members() {
        if n.Name == target.ID {
            node = n
            break
        }
    }
    if node == nil {
        logutil.Warnf(m.opts.Logger, "memberlist: %s is not a member, frame dropped", target.ID)
        obsmetrics.Dropped.WithLabelValues("unreachable").Inc()
        return
    }
    if err := ml.SendReliable(node, wrap(m.opts.NodeID, frame)); err != nil {
        logutil.Warnf(m.opts.Logger, "memberlist: send to %s: %v", target, err)
        obsmetrics.Dropped.WithLabelValues("send_failed").Inc()
    }
}

// receive is called from NotifyMsg with a buffer it may retain.
func (m *Mesh) receive(buf []byte) {
    sender, frame, err := unwrap(buf)
    if err != nil {
        logutil.Warnf(m.opts.Logger, "%v", err)
        obsmetrics.FramingErrors.Inc()
        return
    }
    m.mu.RLock()
    h := m.handler
    ml := m.ml
    m.mu.RUnlock()
    if h == nil {
        return
    }
    from := mesh.Instance{ID: sender}
    if ml != nil {
        for _, n := range ml.Members() {
            if n.Name == sender {
                from = instanceOf(n)
                break
            }
        }
    }
    // memberlist invokes NotifyMsg on its packet loop; keep that loop free.
    go func() {
        if err := h(from, frame); err != nil {
            logutil.Debugf(m.opts.Logger, "memberlist: frame from %s: %v", sender, err)
        }
    }()
}

func (m *Mesh) emit(e mesh.Event) {
    m.evMu.Lock()
    defer m.evMu.Unlock()
    if m.closed {
        return
    }
    select {
    case m.evts <- e:
    default:
        // drop if channel is full to avoid blocking
        logutil.Warnf(m.opts.Logger, "memberlist: dropping event %v: channel full", e.Type)
    }
}

func instanceOf(n *memberlist.Node) mesh.Instance {
    return mesh.Instance{ID: n.Name, Addr: net.JoinHostPort(n.Addr.String(), strconv.Itoa(int(n.Port)))}
}

func splitHostPort(hp string) (string, int, error) {
    host, portStr, err := net.SplitHostPort(hp)
    if err != nil {
        return "", 0, err
    }
    p, err := strconv.Atoi(portStr)
    if err != nil || p < 0 || p > 65535 {
        return "", 0, fmt.Errorf("invalid port: %q", portStr)
    }
    return host, p, nil
}

// eventDelegate adapts memberlist events to mesh.Event.
type eventDelegate struct {
    emit func(e mesh.Event)
}

func (d *eventDelegate) NotifyJoin(n *memberlist.Node) {
    if n == nil { return }
    d.emit(mesh.Event{Type: mesh.EventJoin, Member: instanceOf(n), At: time.Now()})
}

// NotifyLeave covers both graceful leave and failure; memberlist does not
// distinguish them here.
func (d *eventDelegate) NotifyLeave(n *memberlist.Node) {
    if n == nil { return }
    d.emit(mesh.Event{Type: mesh.EventLeave, Member: instanceOf(n), At: time.Now()})
}

func (d *eventDelegate) NotifyUpdate(n *memberlist.Node) {
    if n == nil { return }
    d.emit(mesh.Event{Type: mesh.EventUpdate, Member: instanceOf(n), At: time.Now()})
}

// nodeDelegate propagates node metadata and receives user messages.
type nodeDelegate struct {
    meta []byte
    recv func([]byte)
}

// NodeMeta returns the metadata gossiped with alive messages, truncated to
// limit.
func (d *nodeDelegate) NodeMeta(limit int) []byte {
    if len(d.meta) <= limit { return d.meta }
    if limit <= 0 { return nil }
    return d.meta[:limit]
}

// NotifyMsg must not retain buf after returning.
func (d *nodeDelegate) NotifyMsg(buf []byte) {
    if d.recv == nil || len(buf) == 0 { return }
    d.recv(append([]byte(nil), buf...))
}

func (d *nodeDelegate) GetBroadcasts(int, int) [][]byte        { return nil }
func (d *nodeDelegate) LocalState(join bool) []byte            { return nil }
func (d *nodeDelegate) MergeRemoteState(buf []byte, join bool) {}
