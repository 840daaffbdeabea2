package pubsub

import (
    "context"

    "github.com/amirimatin/go-meshpubsub/pkg/internal/logutil"
    "github.com/amirimatin/go-meshpubsub/pkg/observability/tracing"
    "github.com/amirimatin/go-meshpubsub/pkg/protocol"
    "github.com/amirimatin/go-meshpubsub/pkg/store"
)

// IssueSubscribe subscribes this peer to the named service. It returns false,
// without side effects, when a subscription for name already exists.
func (e *Engine) IssueSubscribe(ctx context.Context, name string) bool {
    _, end := tracing.StartSpan(ctx, "pubsub.IssueSubscribe", "service", name)
    defer end()
    ok := false
    e.run(func(o *outbox) {
        key := protocol.HashServiceName(name)
        manager := e.topo.ResponsibleFor(key)
        if !e.subs.Add(store.NewSubscription(name, manager)) {
            logutil.Debugf(e.logger, "already subscribed to service '%s'", name)
            return
        }
        ok = true
        o.note(Notifier.SubscriptionsChanged)
        if e.isSelf(manager) {
            logutil.Infof(e.logger, "issuing Subscribe for service '%s' to HOST instance", name)
            e.subscribeLocked(o, key, e.topo.Self().Instance, "local")
            return
        }
        logutil.Infof(e.logger, "issuing Subscribe for service '%s' to %s", name, manager)
        o.send(manager.Instance, protocol.NewSubscribe(key))
    })
    return ok
}

// IssueUnsubscribe drops this peer's subscription to the named service and
// tells the peer currently responsible for it. It returns false when no
// subscription exists.
func (e *Engine) IssueUnsubscribe(ctx context.Context, name string) bool {
    _, end := tracing.StartSpan(ctx, "pubsub.IssueUnsubscribe", "service", name)
    defer end()
    ok := false
    e.run(func(o *outbox) {
        if !e.subs.Remove(name) {
            logutil.Debugf(e.logger, "not subscribed to service '%s'", name)
            return
        }
        ok = true
        o.note(Notifier.SubscriptionsChanged)
        key := protocol.HashServiceName(name)
        manager := e.topo.ResponsibleFor(key)
        if e.isSelf(manager) {
            logutil.Infof(e.logger, "issuing Unsubscribe for service '%s' to HOST instance", name)
            e.unsubscribeLocked(o, key, e.topo.Self().Instance, "local")
            return
        }
        logutil.Infof(e.logger, "issuing Unsubscribe for service '%s' to %s", name, manager)
        o.send(manager.Instance, protocol.NewUnsubscribe(key))
    })
    return ok
}

// IssuePublish publishes text on the named service. Publishing to a service
// nobody manages is not an error; the manager side drops it.
func (e *Engine) IssuePublish(ctx context.Context, name, text string) {
    _, end := tracing.StartSpan(ctx, "pubsub.IssuePublish", "service", name)
    defer end()
    e.run(func(o *outbox) {
        key := protocol.HashServiceName(name)
        manager := e.topo.ResponsibleFor(key)
        if e.isSelf(manager) {
            logutil.Infof(e.logger, "issuing Publish for service '%s' to HOST instance", name)
            e.publishLocked(o, key, text, "local")
            return
        }
        logutil.Infof(e.logger, "issuing Publish for service '%s' to %s", name, manager)
        o.send(manager.Instance, protocol.NewPublish(key, text))
    })
}
