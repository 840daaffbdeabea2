// Package node wires a mesh, the pub/sub engine and the management API into
// a runnable peer.
package node

import (
    "context"
    "encoding/json"
    "fmt"
    "strings"
    "sync"
    "time"

    "go.uber.org/multierr"
    "golang.org/x/sync/errgroup"

    "github.com/amirimatin/go-meshpubsub/pkg/internal/logutil"
    "github.com/amirimatin/go-meshpubsub/pkg/mesh"
    "github.com/amirimatin/go-meshpubsub/pkg/notify"
    obsmetrics "github.com/amirimatin/go-meshpubsub/pkg/observability/metrics"
    "github.com/amirimatin/go-meshpubsub/pkg/observability/tracing"
    "github.com/amirimatin/go-meshpubsub/pkg/pubsub"
    "github.com/amirimatin/go-meshpubsub/pkg/transport"
)

// Facade exposes the high-level API for consumers.
type Facade interface {
    Start(ctx context.Context) error
    Subscribe(ctx context.Context, service string) (bool, error)
    Unsubscribe(ctx context.Context, service string) (bool, error)
    Publish(ctx context.Context, service, message string) error
    Messages(service string) ([]string, bool)
    Status(ctx context.Context) (*Status, error)
    Events(ctx context.Context) <-chan notify.Event
    Stop(ctx context.Context) error
}

// metaSource is implemented by meshes that gossip per-member metadata.
type metaSource interface {
    Meta(id string) (map[string]string, bool)
}

// Node is the concrete Facade.
type Node struct {
    opts   Options
    mesh   mesh.Mesh
    engine *pubsub.Engine
    bus    *notify.Bus
    rpcS   transport.RPCServer

    mu  sync.Mutex
    run struct {
        started bool
        closed  bool
    }
    cancel context.CancelFunc
    loops  *errgroup.Group
}

var _ Facade = (*Node)(nil)

// New constructs a node from validated options. It performs no network
// activity; call Start to launch it.
func New(ctx context.Context, opts Options) (*Node, error) {
    if err := opts.Validate(); err != nil {
        return nil, err
    }
    if opts.ReconcileInterval == 0 {
        opts.ReconcileInterval = DefaultReconcileInterval
    }
    bus := notify.NewBus()
    sinks := notify.Multi{bus, notify.Log{Logger: opts.Logger}}
    if opts.Notifier != nil {
        sinks = append(sinks, opts.Notifier)
    }
    eng, err := pubsub.New(pubsub.Options{
        Topology:    opts.Mesh,
        Notifier:    sinks,
        Logger:      opts.Logger,
        Now:         opts.Now,
        MaxMessages: opts.MaxMessages,
    })
    if err != nil {
        return nil, err
    }
    return &Node{opts: opts, mesh: opts.Mesh, engine: eng, bus: bus, rpcS: opts.RPCServer}, nil
}

// Engine exposes the underlying pub/sub engine.
func (n *Node) Engine() *pubsub.Engine { return n.engine }

// Close is a convenience alias for Stop with a background context.
func (n *Node) Close() error {
    return n.Stop(context.Background())
}

// Start launches the mesh, joins discovery seeds, starts the management
// endpoint and the background loops, then subscribes to AutoSubscribe.
func (n *Node) Start(ctx context.Context) error {
    n.mu.Lock()
    defer n.mu.Unlock()
    if n.run.closed {
        return ErrStopped
    }
    if n.run.started {
        return nil
    }
    obsmetrics.Register()

    n.mesh.Handle(n.engine.HandleFrame)
    if err := n.mesh.Start(ctx); err != nil {
        return fmt.Errorf("node: start mesh: %w", err)
    }
    if n.opts.Discovery != nil {
        if seeds := n.opts.Discovery.Seeds(ctx); len(seeds) > 0 {
            logutil.Infof(n.opts.Logger, "joining mesh seeds: %v", seeds)
            if err := n.mesh.Join(seeds); err != nil {
                logutil.Warnf(n.opts.Logger, "join seeds failed: %v", err)
            }
        }
    }

    loopCtx, cancel := context.WithCancel(context.Background())
    g, gctx := errgroup.WithContext(loopCtx)
    g.Go(func() error { n.membershipEventsLoop(gctx); return nil })
    g.Go(func() error { n.reconcileLoop(gctx); return nil })
    n.cancel, n.loops = cancel, g

    if n.rpcS != nil {
        if err := n.rpcS.Start(ctx, n.handlers()); err != nil {
            cancel()
            _ = g.Wait()
            return multierr.Append(fmt.Errorf("node: start management: %w", err), n.mesh.Stop())
        }
        logutil.Infof(n.opts.Logger, "management endpoint listening at %s (status/metrics/healthz)", n.rpcS.Addr())
    }
    n.run.started = true

    for _, name := range n.opts.AutoSubscribe {
        if name = strings.TrimSpace(name); name != "" {
            n.engine.IssueSubscribe(ctx, name)
        }
    }
    return nil
}

func (n *Node) ready() error {
    n.mu.Lock()
    defer n.mu.Unlock()
    switch {
    case n.run.closed:
        return ErrStopped
    case !n.run.started:
        return ErrNotStarted
    }
    return nil
}

// Subscribe subscribes this node to service. It reports false when the node
// was already subscribed.
func (n *Node) Subscribe(ctx context.Context, service string) (bool, error) {
    if service == "" { return false, ErrEmptyService }
    if err := n.ready(); err != nil { return false, err }
    return n.engine.IssueSubscribe(ctx, service), nil
}

// Unsubscribe drops this node's subscription to service. It reports false
// when the node was not subscribed.
func (n *Node) Unsubscribe(ctx context.Context, service string) (bool, error) {
    if service == "" { return false, ErrEmptyService }
    if err := n.ready(); err != nil { return false, err }
    return n.engine.IssueUnsubscribe(ctx, service), nil
}

// Publish sends message to every subscriber of service.
func (n *Node) Publish(ctx context.Context, service, message string) error {
    if service == "" { return ErrEmptyService }
    if err := n.ready(); err != nil { return err }
    n.engine.IssuePublish(ctx, service, message)
    return nil
}

// Messages returns the messages received on service, newest first.
func (n *Node) Messages(service string) ([]string, bool) {
    return n.engine.Messages(service)
}

// Events returns a stream of engine events that is closed when ctx is done.
// Delivery is best-effort.
func (n *Node) Events(ctx context.Context) <-chan notify.Event {
    return n.bus.Subscribe(ctx)
}

// Status returns a snapshot of membership, subscriptions and managed
// services.
func (n *Node) Status(ctx context.Context) (*Status, error) {
    _, end := tracing.StartSpan(ctx, "node.Status")
    defer end()
    n.mu.Lock()
    running := n.run.started && !n.run.closed
    n.mu.Unlock()

    s := &Status{HealthScore: -1}
    s.Self = n.member(n.mesh.Self().Instance)
    if running {
        for _, m := range n.mesh.Members() {
            s.Members = append(s.Members, n.member(m))
        }
        obsmetrics.MeshMembers.Set(float64(len(s.Members)))
    } else {
        s.Warnings = append(s.Warnings, "node not running")
    }
    if hr, ok := n.mesh.(mesh.HealthReporter); ok && running {
        s.HealthScore = hr.HealthScore()
    }
    s.Healthy = running && len(s.Members) > 0
    for _, v := range n.engine.Subscriptions() {
        s.Subscriptions = append(s.Subscriptions, SubscriptionStatus{
            Service: v.ServiceName, Key: v.Key, Manager: v.ManagerID, Messages: len(v.Messages),
        })
    }
    for _, v := range n.engine.ServiceManagers() {
        ms := ManagerStatus{Key: v.Key, Subscribers: make([]string, 0, len(v.Subscribers))}
        for _, in := range v.Subscribers {
            ms.Subscribers = append(ms.Subscribers, in.ID)
        }
        s.Managers = append(s.Managers, ms)
    }
    return s, nil
}

func (n *Node) member(in mesh.Instance) Member {
    m := Member{ID: in.ID, Addr: in.Addr}
    if src, ok := n.mesh.(metaSource); ok {
        if meta, ok := src.Meta(in.ID); ok {
            m.Mgmt = meta["mgmt"]
        }
    }
    return m
}

// Stop leaves the mesh and shuts down the loops and the management server.
// Errors from each step are aggregated.
func (n *Node) Stop(ctx context.Context) error {
    n.mu.Lock()
    if n.run.closed || !n.run.started {
        n.run.closed = true
        n.mu.Unlock()
        return nil
    }
    n.run.closed = true
    n.mu.Unlock()

    // In-flight management calls observe closed and return ErrStopped.
    var err error
    if n.rpcS != nil {
        err = multierr.Append(err, n.rpcS.Stop(ctx))
    }
    err = multierr.Append(err, n.mesh.Leave())
    n.cancel()
    err = multierr.Append(err, n.loops.Wait())
    err = multierr.Append(err, n.mesh.Stop())
    logutil.Infof(n.opts.Logger, "node stopped")
    return err
}

func (n *Node) membershipEventsLoop(ctx context.Context) {
    evch := n.mesh.Events()
    for {
        select {
        case <-ctx.Done():
            return
        case e, ok := <-evch:
            if !ok { return }
            switch e.Type {
            case mesh.EventJoin, mesh.EventUpdate:
                logutil.Debugf(n.opts.Logger, "member %s: %s", e.Type, e.Member)
            case mesh.EventLeave:
                logutil.Infof(n.opts.Logger, "member lost: %s", e.Member)
                n.engine.OnInstanceLost(e.Member)
            default:
                continue
            }
            n.reconcile()
        }
    }
}

func (n *Node) reconcileLoop(ctx context.Context) {
    ticker := time.NewTicker(n.opts.ReconcileInterval)
    defer ticker.Stop()
    for {
        select {
        case <-ctx.Done():
            return
        case <-ticker.C:
            n.reconcile()
        }
    }
}

func (n *Node) reconcile() {
    n.engine.ReconcileManagedServices()
    n.engine.ReconcileOwnSubscriptions()
    obsmetrics.MeshMembers.Set(float64(len(n.mesh.Members())))
}

func (n *Node) statusJSON(ctx context.Context) ([]byte, error) {
    st, err := n.Status(ctx)
    if err != nil { return nil, err }
    return json.Marshal(st)
}

func (n *Node) handlers() transport.Handlers {
    return transport.Handlers{
        Status: n.statusJSON,
        Subscribe: func(ctx context.Context, req transport.SubscribeRequest) (transport.SubscribeResponse, error) {
            ok, err := n.Subscribe(ctx, req.Service)
            if err != nil { return transport.SubscribeResponse{Error: err.Error()}, nil }
            return transport.SubscribeResponse{Accepted: ok}, nil
        },
        Unsubscribe: func(ctx context.Context, req transport.UnsubscribeRequest) (transport.SubscribeResponse, error) {
            ok, err := n.Unsubscribe(ctx, req.Service)
            if err != nil { return transport.SubscribeResponse{Error: err.Error()}, nil }
            return transport.SubscribeResponse{Accepted: ok}, nil
        },
        Publish: func(ctx context.Context, req transport.PublishRequest) (transport.PublishResponse, error) {
            if err := n.Publish(ctx, req.Service, req.Message); err != nil {
                return transport.PublishResponse{Error: err.Error()}, nil
            }
            return transport.PublishResponse{Accepted: true}, nil
        },
        Messages: func(ctx context.Context, req transport.MessagesRequest) (transport.MessagesResponse, error) {
            if req.Service == "" { return transport.MessagesResponse{Error: ErrEmptyService.Error()}, nil }
            msgs, ok := n.Messages(req.Service)
            return transport.MessagesResponse{Subscribed: ok, Messages: msgs}, nil
        },
        Watch: n.Events,
    }
}
