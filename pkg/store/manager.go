package store

import (
    "github.com/amirimatin/go-meshpubsub/pkg/mesh"
    "github.com/amirimatin/go-meshpubsub/pkg/protocol"
)

// Clients is an ordered set of peers, unique under the equality it was
// created with.
type Clients struct {
    l list[mesh.Client]
}

// NewClients creates an empty set using same as client identity.
func NewClients(same func(a, b mesh.Client) bool) *Clients {
    return &Clients{l: list[mesh.Client]{same: same}}
}

// Add inserts c; it reports false if c is already present.
func (c *Clients) Add(cl mesh.Client) bool { return c.l.add(cl) }

// Remove deletes the client equal to cl.
func (c *Clients) Remove(cl mesh.Client) bool {
    return c.l.remove(func(x mesh.Client) bool { return c.l.same(x, cl) })
}

// Contains reports whether a client equal to cl is present.
func (c *Clients) Contains(cl mesh.Client) bool {
    _, ok := c.l.find(func(x mesh.Client) bool { return c.l.same(x, cl) })
    return ok
}

func (c *Clients) Len() int                       { return c.l.len() }
func (c *Clients) Get(i int) (mesh.Client, bool)  { return c.l.get(i) }
func (c *Clients) Last() (mesh.Client, bool)      { return c.l.last() }
func (c *Clients) All() []mesh.Client             { return c.l.all() }

// ServiceManager is a service this peer administers for the mesh.
type ServiceManager struct {
    ServiceKey  protocol.ServiceKey
    Subscribers *Clients
}

// NewServiceManager creates a manager with no subscribers.
func NewServiceManager(key protocol.ServiceKey, same func(a, b mesh.Client) bool) *ServiceManager {
    return &ServiceManager{ServiceKey: key, Subscribers: NewClients(same)}
}

// ServiceManagers is the set of managed services, unique by key.
type ServiceManagers struct {
    l list[*ServiceManager]
}

func NewServiceManagers() *ServiceManagers {
    return &ServiceManagers{l: list[*ServiceManager]{same: func(a, b *ServiceManager) bool { return a.ServiceKey == b.ServiceKey }}}
}

func (s *ServiceManagers) Add(m *ServiceManager) bool { return s.l.add(m) }

func (s *ServiceManagers) Remove(key protocol.ServiceKey) bool {
    return s.l.remove(func(x *ServiceManager) bool { return x.ServiceKey == key })
}

func (s *ServiceManagers) Find(key protocol.ServiceKey) (*ServiceManager, bool) {
    return s.l.find(func(x *ServiceManager) bool { return x.ServiceKey == key })
}

func (s *ServiceManagers) Len() int                            { return s.l.len() }
func (s *ServiceManagers) Get(i int) (*ServiceManager, bool)   { return s.l.get(i) }
func (s *ServiceManagers) Last() (*ServiceManager, bool)       { return s.l.last() }

// Keys returns the managed keys in insertion order.
func (s *ServiceManagers) Keys() []protocol.ServiceKey {
    out := make([]protocol.ServiceKey, 0, s.l.len())
    for _, m := range s.l.items { out = append(out, m.ServiceKey) }
    return out
}
