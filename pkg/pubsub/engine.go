// Package pubsub implements the publish/subscribe engine of a mesh peer.
//
// Every named service is managed by the peer the Topology reports as
// responsible for the service key. The engine issues Subscribe, Unsubscribe
// and Publish requests on behalf of local callers, processes the same
// requests (and Info deliveries) when they arrive from peers, and
// reconciles its state whenever responsibility may have moved.
//
// All state is guarded by a single mutex. Public entry points take it
// exactly once and work through *Locked helpers; outbound frames and
// notifier callbacks are collected while the lock is held and released
// after it is dropped, so collaborators may call back into the engine.
package pubsub

import (
    "log"
    "sync"
    "time"

    "github.com/amirimatin/go-meshpubsub/pkg/mesh"
    obsmetrics "github.com/amirimatin/go-meshpubsub/pkg/observability/metrics"
    "github.com/amirimatin/go-meshpubsub/pkg/protocol"
    "github.com/amirimatin/go-meshpubsub/pkg/store"
)

// Options configures an Engine.
type Options struct {
    // Topology answers responsibility queries and sends frames (required).
    Topology mesh.Topology
    // Notifier receives UI events. Nil discards them.
    Notifier Notifier
    // Logger is used for diagnostics. If nil, log.Default() is used.
    Logger *log.Logger
    // Now returns the current time; used to stamp received messages.
    Now func() time.Time
    // MaxMessages bounds the history kept per subscription (0 = unbounded).
    MaxMessages int
}

// Validate checks required fields.
func (o Options) Validate() error {
    if o.Topology == nil { return ErrNilTopology }
    if o.MaxMessages < 0 { return ErrNegativeHistory }
    return nil
}

// Engine is one peer's pub/sub state machine.
type Engine struct {
    topo   mesh.Topology
    notify Notifier
    logger *log.Logger
    now    func() time.Time
    maxMsg int

    mu      sync.Mutex
    subs    *store.Subscriptions
    managed *store.ServiceManagers
}

// New constructs an Engine from validated options.
func New(opts Options) (*Engine, error) {
    if err := opts.Validate(); err != nil {
        return nil, err
    }
    if opts.Notifier == nil { opts.Notifier = Nop{} }
    if opts.Logger == nil { opts.Logger = log.Default() }
    if opts.Now == nil { opts.Now = time.Now }
    return &Engine{
        topo:    opts.Topology,
        notify:  opts.Notifier,
        logger:  opts.Logger,
        now:     opts.Now,
        maxMsg:  opts.MaxMessages,
        subs:    store.NewSubscriptions(),
        managed: store.NewServiceManagers(),
    }, nil
}

// outbox collects side effects produced under the lock.
type outbox struct {
    sends []outbound
    notes []func(Notifier)
}

type outbound struct {
    target mesh.Instance
    msg    protocol.Message
}

func (o *outbox) send(target mesh.Instance, m protocol.Message) {
    o.sends = append(o.sends, outbound{target: target, msg: m})
}

func (o *outbox) note(f func(Notifier)) { o.notes = append(o.notes, f) }

// run executes fn under the lock and then flushes what it queued.
func (e *Engine) run(fn func(o *outbox)) {
    var o outbox
    e.mu.Lock()
    fn(&o)
    obsmetrics.Subscriptions.Set(float64(e.subs.Len()))
    obsmetrics.ServiceManagers.Set(float64(e.managed.Len()))
    e.mu.Unlock()
    e.flush(&o)
}

func (e *Engine) flush(o *outbox) {
    for _, s := range o.sends {
        switch s.msg.Kind {
        case protocol.KindSubscribe:
            e.topo.SendSubscribe(s.msg.ServiceKey, s.target)
        case protocol.KindUnsubscribe:
            e.topo.SendUnsubscribe(s.msg.ServiceKey, s.target)
        case protocol.KindPublish:
            e.topo.SendPublish(s.msg.ServiceKey, s.target, s.msg.Text())
        case protocol.KindInfo:
            e.topo.SendInfo(s.msg.ServiceKey, s.target, s.msg.Text())
        }
    }
    for _, f := range o.notes {
        f(e.notify)
    }
}

func (e *Engine) isSelf(c mesh.Client) bool { return e.topo.SameClient(c, e.topo.Self()) }
