package pubsub

import (
    "github.com/amirimatin/go-meshpubsub/pkg/internal/logutil"
    "github.com/amirimatin/go-meshpubsub/pkg/mesh"
    obsmetrics "github.com/amirimatin/go-meshpubsub/pkg/observability/metrics"
    "github.com/amirimatin/go-meshpubsub/pkg/protocol"
)

// ReconcileManagedServices drops every managed service this peer is no longer
// responsible for. Subscribers are not migrated; they re-subscribe to the new
// manager from their own ReconcileOwnSubscriptions.
func (e *Engine) ReconcileManagedServices() {
    obsmetrics.ReconcilePasses.WithLabelValues("managed").Inc()
    e.run(func(o *outbox) {
        logutil.Debugf(e.logger, "reconciling managed services (%d services managed)", e.managed.Len())
        var drop []protocol.ServiceKey
        for _, key := range e.managed.Keys() {
            manager := e.topo.ResponsibleFor(key)
            if e.isSelf(manager) { continue }
            logutil.Infof(e.logger, "the service %s will be managed by %s; ServiceManager will be removed", key, manager)
            drop = append(drop, key)
        }
        for _, key := range drop {
            e.managed.Remove(key)
            obsmetrics.Handoffs.WithLabelValues("manager_out").Inc()
            o.note(Notifier.ServiceManagersChanged)
        }
    })
}

// ReconcileOwnSubscriptions re-subscribes every subscription whose manager
// has changed to the peer now responsible for it.
func (e *Engine) ReconcileOwnSubscriptions() {
    obsmetrics.ReconcilePasses.WithLabelValues("subscriptions").Inc()
    e.run(func(o *outbox) {
        logutil.Debugf(e.logger, "reconciling own subscriptions (%d subscriptions)", e.subs.Len())
        for _, sub := range e.subs.All() {
            manager := e.topo.ResponsibleFor(sub.ServiceKey)
            if e.topo.SameClient(manager, sub.Manager) { continue }
            logutil.Infof(e.logger, "the manager of the subscribed service '%s' has changed: %s; a new Subscribe will be issued", sub.ServiceName, manager)
            sub.Manager = manager
            obsmetrics.Handoffs.WithLabelValues("subscription_moved").Inc()
            if e.isSelf(manager) {
                e.subscribeLocked(o, sub.ServiceKey, e.topo.Self().Instance, "local")
                continue
            }
            o.send(manager.Instance, protocol.NewSubscribe(sub.ServiceKey))
        }
    })
}

// OnInstanceLost unsubscribes inst from every managed service, removing the
// services left without subscribers.
func (e *Engine) OnInstanceLost(inst mesh.Instance) {
    obsmetrics.InstancesLost.Inc()
    e.run(func(o *outbox) {
        logutil.Infof(e.logger, "removing subscriptions of lost instance %s", inst)
        for _, key := range e.managed.Keys() {
            e.unsubscribeLocked(o, key, inst, "lost")
        }
    })
}
