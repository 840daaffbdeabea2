package store

import (
    "github.com/amirimatin/go-meshpubsub/pkg/mesh"
    "github.com/amirimatin/go-meshpubsub/pkg/protocol"
)

// Subscription is this peer's interest in a service.
type Subscription struct {
    ServiceName string
    ServiceKey  protocol.ServiceKey
    // Manager is the peer believed responsible for ServiceKey. It may be
    // stale until the next reconciliation pass.
    Manager mesh.Client
    // Received holds delivered messages, newest first.
    Received []string
}

// NewSubscription builds a subscription for name managed by manager.
func NewSubscription(name string, manager mesh.Client) *Subscription {
    return &Subscription{ServiceName: name, ServiceKey: protocol.HashServiceName(name), Manager: manager}
}

// Prepend inserts msg at the front of Received. When limit > 0 the oldest
// entries beyond limit are discarded.
func (s *Subscription) Prepend(msg string, limit int) {
    s.Received = append(s.Received, "")
    copy(s.Received[1:], s.Received)
    s.Received[0] = msg
    if limit > 0 && len(s.Received) > limit {
        s.Received = s.Received[:limit]
    }
}

// Subscriptions is the set of own subscriptions, unique by service name.
type Subscriptions struct {
    l list[*Subscription]
}

func NewSubscriptions() *Subscriptions {
    return &Subscriptions{l: list[*Subscription]{same: func(a, b *Subscription) bool { return a.ServiceName == b.ServiceName }}}
}

// Add stores s unless a subscription with the same name exists.
func (s *Subscriptions) Add(sub *Subscription) bool { return s.l.add(sub) }

// Remove deletes the subscription for name.
func (s *Subscriptions) Remove(name string) bool {
    return s.l.remove(func(x *Subscription) bool { return x.ServiceName == name })
}

// Find returns the subscription for name.
func (s *Subscriptions) Find(name string) (*Subscription, bool) {
    return s.l.find(func(x *Subscription) bool { return x.ServiceName == name })
}

// FindKey returns the subscription whose service hashes to key.
func (s *Subscriptions) FindKey(key protocol.ServiceKey) (*Subscription, bool) {
    return s.l.find(func(x *Subscription) bool { return x.ServiceKey == key })
}

func (s *Subscriptions) Len() int                          { return s.l.len() }
func (s *Subscriptions) Get(i int) (*Subscription, bool)   { return s.l.get(i) }
func (s *Subscriptions) Last() (*Subscription, bool)       { return s.l.last() }
func (s *Subscriptions) All() []*Subscription              { return s.l.all() }
