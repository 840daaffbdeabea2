package grpc

import (
    "context"
    "sync"
    "time"

    "google.golang.org/grpc"
    "google.golang.org/grpc/connectivity"

    obsmetrics "github.com/amirimatin/go-meshpubsub/pkg/observability/metrics"
)

// ConnManager caches management connections per node address with idle
// eviction. Connections that have failed are redialed on the next Get.
type ConnManager struct {
    mu      sync.Mutex
    conns   map[string]*managedConn
    ttl     time.Duration
    dialer  func(ctx context.Context, target string) (*grpc.ClientConn, error)
    closing chan struct{}
    once    sync.Once
}

type managedConn struct {
    cc       *grpc.ClientConn
    lastUsed time.Time
    ref      int
}

// NewConnManager creates a manager with the given idle TTL and dialer.
func NewConnManager(ttl time.Duration, dialer func(ctx context.Context, target string) (*grpc.ClientConn, error)) *ConnManager {
    if ttl <= 0 { ttl = 30 * time.Second }
    m := &ConnManager{ttl: ttl, dialer: dialer, conns: make(map[string]*managedConn), closing: make(chan struct{})}
    go m.janitor()
    return m
}

func usable(cc *grpc.ClientConn) bool {
    s := cc.GetState()
    return s != connectivity.Shutdown && s != connectivity.TransientFailure
}

// Get returns a connection for target and a release func to be called when done.
func (m *ConnManager) Get(ctx context.Context, target string) (*grpc.ClientConn, func(), error) {
    release := func() { m.release(target) }
    m.mu.Lock()
    if mc, ok := m.conns[target]; ok {
        if usable(mc.cc) {
            mc.ref++
            mc.lastUsed = time.Now()
            cc := mc.cc
            m.mu.Unlock()
            obsmetrics.GRPCConnReuse.Inc()
            return cc, release, nil
        }
        if mc.ref == 0 { m.dropLocked(target, mc) }
    }
    m.mu.Unlock()

    // Dial outside lock
    cc, err := m.dialer(ctx, target)
    if err != nil { return nil, func() {}, err }

    m.mu.Lock()
    defer m.mu.Unlock()
    if existing, ok := m.conns[target]; ok && usable(existing.cc) {
        // another goroutine dialed first
        _ = cc.Close()
        existing.ref++
        existing.lastUsed = time.Now()
        obsmetrics.GRPCConnReuse.Inc()
        return existing.cc, release, nil
    }
    if stale, ok := m.conns[target]; ok { m.dropLocked(target, stale) }
    m.conns[target] = &managedConn{cc: cc, lastUsed: time.Now(), ref: 1}
    obsmetrics.GRPCConnDials.Inc()
    obsmetrics.GRPCConnActive.Inc()
    return cc, release, nil
}

func (m *ConnManager) release(target string) {
    m.mu.Lock()
    if mc, ok := m.conns[target]; ok {
        if mc.ref > 0 { mc.ref-- }
        mc.lastUsed = time.Now()
    }
    m.mu.Unlock()
}

func (m *ConnManager) dropLocked(target string, mc *managedConn) {
    _ = mc.cc.Close()
    delete(m.conns, target)
    obsmetrics.GRPCConnActive.Dec()
}

// Len returns the number of cached connections.
func (m *ConnManager) Len() int {
    m.mu.Lock()
    defer m.mu.Unlock()
    return len(m.conns)
}

// Close closes all cached connections and stops the janitor.
func (m *ConnManager) Close() {
    m.once.Do(func() { close(m.closing) })
    m.mu.Lock()
    for k, mc := range m.conns { m.dropLocked(k, mc) }
    m.mu.Unlock()
}

func (m *ConnManager) janitor() {
    ticker := time.NewTicker(m.ttl / 2)
    defer ticker.Stop()
    for {
        select {
        case <-m.closing:
            return
        case <-ticker.C:
            m.evictIdle(time.Now().Add(-m.ttl))
        }
    }
}

func (m *ConnManager) evictIdle(cutoff time.Time) {
    m.mu.Lock()
    defer m.mu.Unlock()
    for addr, mc := range m.conns {
        if mc.ref == 0 && mc.lastUsed.Before(cutoff) {
            m.dropLocked(addr, mc)
            obsmetrics.GRPCConnEvictions.Inc()
        }
    }
}
