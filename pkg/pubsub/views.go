package pubsub

import (
    "github.com/amirimatin/go-meshpubsub/pkg/mesh"
    "github.com/amirimatin/go-meshpubsub/pkg/protocol"
)

// SubscriptionView is a copy of an own subscription.
type SubscriptionView struct {
    ServiceName string              `json:"service"`
    ServiceKey  protocol.ServiceKey `json:"-"`
    Key         string              `json:"key"`
    Manager     mesh.Client         `json:"-"`
    ManagerID   string              `json:"manager"`
    Messages    []string            `json:"messages,omitempty"`
}

// ManagerView is a copy of a managed service.
type ManagerView struct {
    ServiceKey  protocol.ServiceKey `json:"-"`
    Key         string              `json:"key"`
    Subscribers []mesh.Instance     `json:"subscribers"`
}

// Subscriptions returns the own subscriptions in insertion order.
func (e *Engine) Subscriptions() []SubscriptionView {
    e.mu.Lock()
    defer e.mu.Unlock()
    out := make([]SubscriptionView, 0, e.subs.Len())
    for _, s := range e.subs.All() {
        out = append(out, SubscriptionView{
            ServiceName: s.ServiceName,
            ServiceKey:  s.ServiceKey,
            Key:         s.ServiceKey.String(),
            Manager:     s.Manager,
            ManagerID:   s.Manager.Instance.ID,
            Messages:    append([]string(nil), s.Received...),
        })
    }
    return out
}

// ServiceManagers returns the managed services in insertion order.
func (e *Engine) ServiceManagers() []ManagerView {
    e.mu.Lock()
    defer e.mu.Unlock()
    out := make([]ManagerView, 0, e.managed.Len())
    for i := 0; i < e.managed.Len(); i++ {
        sm, _ := e.managed.Get(i)
        v := ManagerView{ServiceKey: sm.ServiceKey, Key: sm.ServiceKey.String()}
        for _, c := range sm.Subscribers.All() {
            v.Subscribers = append(v.Subscribers, c.Instance)
        }
        out = append(out, v)
    }
    return out
}

// Subscribers returns the subscribers of a managed service.
func (e *Engine) Subscribers(key protocol.ServiceKey) ([]mesh.Instance, bool) {
    e.mu.Lock()
    defer e.mu.Unlock()
    sm, ok := e.managed.Find(key)
    if !ok { return nil, false }
    out := make([]mesh.Instance, 0, sm.Subscribers.Len())
    for _, c := range sm.Subscribers.All() { out = append(out, c.Instance) }
    return out, true
}

// Messages returns the messages received for the named subscription, newest
// first. ok is false when this peer is not subscribed to name.
func (e *Engine) Messages(name string) (msgs []string, ok bool) {
    e.mu.Lock()
    defer e.mu.Unlock()
    s, ok := e.subs.Find(name)
    if !ok { return nil, false }
    return append([]string{}, s.Received...), true
}

// Subscribed reports whether this peer holds a subscription for name.
func (e *Engine) Subscribed(name string) bool {
    e.mu.Lock()
    defer e.mu.Unlock()
    _, ok := e.subs.Find(name)
    return ok
}
