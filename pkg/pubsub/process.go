package pubsub

import (
    "github.com/amirimatin/go-meshpubsub/pkg/internal/logutil"
    "github.com/amirimatin/go-meshpubsub/pkg/mesh"
    obsmetrics "github.com/amirimatin/go-meshpubsub/pkg/observability/metrics"
    "github.com/amirimatin/go-meshpubsub/pkg/protocol"
    "github.com/amirimatin/go-meshpubsub/pkg/store"
)

const infoTimeLayout = "15:04"

// ProcessSubscribe registers requester as a subscriber of key if this peer is
// responsible for it.
func (e *Engine) ProcessSubscribe(key protocol.ServiceKey, requester mesh.Instance) {
    e.run(func(o *outbox) { e.subscribeLocked(o, key, requester, "remote") })
}

// ProcessUnsubscribe removes requester from the subscribers of key.
func (e *Engine) ProcessUnsubscribe(key protocol.ServiceKey, requester mesh.Instance) {
    e.run(func(o *outbox) { e.unsubscribeLocked(o, key, requester, "remote") })
}

// ProcessPublish fans text out to every subscriber of key.
func (e *Engine) ProcessPublish(key protocol.ServiceKey, text string) {
    e.run(func(o *outbox) { e.publishLocked(o, key, text, "remote") })
}

// ProcessInfo stores text delivered for key in the matching own subscription.
func (e *Engine) ProcessInfo(key protocol.ServiceKey, text string) {
    e.run(func(o *outbox) { e.infoLocked(o, key, text, "remote") })
}

func (e *Engine) subscribeLocked(o *outbox, key protocol.ServiceKey, requester mesh.Instance, origin string) {
    obsmetrics.Requests.WithLabelValues(protocol.KindSubscribe.String(), origin).Inc()
    manager := e.topo.ResponsibleFor(key)
    if !e.isSelf(manager) {
        logutil.Warnf(e.logger, "another instance should be responsible for the service %s: %s", key, manager)
        obsmetrics.Dropped.WithLabelValues("not_responsible").Inc()
        return
    }
    sm, ok := e.managed.Find(key)
    if !ok {
        logutil.Infof(e.logger, "processing Subscribe request for non-existent ServiceManager %s; ServiceManager will be created", key)
        sm = store.NewServiceManager(key, e.topo.SameClient)
        e.managed.Add(sm)
        o.note(Notifier.ServiceManagersChanged)
    }
    if !sm.Subscribers.Add(mesh.NewClient(requester)) {
        logutil.Debugf(e.logger, "instance %s already subscribed to the service %s", requester, key)
    } else {
        logutil.Infof(e.logger, "adding instance %s to the list of subscribers of the service %s", requester, key)
    }
    o.note(func(n Notifier) { n.SubscribersChanged(key) })
}

func (e *Engine) unsubscribeLocked(o *outbox, key protocol.ServiceKey, requester mesh.Instance, origin string) {
    obsmetrics.Requests.WithLabelValues(protocol.KindUnsubscribe.String(), origin).Inc()
    sm, ok := e.managed.Find(key)
    if !ok {
        logutil.Infof(e.logger, "processing Unsubscribe request for non-existent ServiceManager %s; nothing will be done", key)
        obsmetrics.Dropped.WithLabelValues("unknown_service").Inc()
        return
    }
    logutil.Infof(e.logger, "removing instance %s from the list of subscribers of the service %s", requester, key)
    sm.Subscribers.Remove(mesh.NewClient(requester))
    o.note(func(n Notifier) { n.SubscribersChanged(key) })
    if sm.Subscribers.Len() == 0 {
        e.managed.Remove(key)
        o.note(Notifier.ServiceManagersChanged)
    }
}

func (e *Engine) publishLocked(o *outbox, key protocol.ServiceKey, text string, origin string) {
    obsmetrics.Requests.WithLabelValues(protocol.KindPublish.String(), origin).Inc()
    sm, ok := e.managed.Find(key)
    if !ok {
        logutil.Infof(e.logger, "processing Publish request for non-existent ServiceManager %s; nothing will be done", key)
        obsmetrics.Dropped.WithLabelValues("unknown_service").Inc()
        return
    }
    for _, c := range sm.Subscribers.All() {
        if e.isSelf(c) {
            logutil.Debugf(e.logger, "publishing info from service %s to HOST instance", key)
            obsmetrics.InfoDeliveries.WithLabelValues("local").Inc()
            e.infoLocked(o, key, text, "local")
            continue
        }
        logutil.Debugf(e.logger, "publishing info from service %s to %s", key, c.Instance)
        obsmetrics.InfoDeliveries.WithLabelValues("remote").Inc()
        o.send(c.Instance, protocol.NewInfo(key, text))
    }
}

func (e *Engine) infoLocked(o *outbox, key protocol.ServiceKey, text string, origin string) {
    obsmetrics.Requests.WithLabelValues(protocol.KindInfo.String(), origin).Inc()
    sub, ok := e.subs.FindKey(key)
    if !ok {
        logutil.Infof(e.logger, "info received from the unsubscribed service %s: %s", key, text)
        obsmetrics.Dropped.WithLabelValues("unsubscribed").Inc()
        return
    }
    sub.Prepend(e.now().UTC().Format(infoTimeLayout)+": "+text, e.maxMsg)
    name := sub.ServiceName
    o.note(func(n Notifier) { n.Notify(name, text) })
    o.note(func(n Notifier) { n.MessagesChanged(name) })
    logutil.Infof(e.logger, "info received from the subscribed service '%s': %s", name, text)
}
