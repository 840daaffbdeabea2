package store

import (
    "testing"

    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"

    "github.com/amirimatin/go-meshpubsub/pkg/mesh"
    "github.com/amirimatin/go-meshpubsub/pkg/protocol"
)

func TestSubscriptions_AddFindRemove(t *testing.T) {
    mgr := mesh.NewClient(mesh.Instance{ID: "m"})
    s := NewSubscriptions()
    require.True(t, s.Add(NewSubscription("news", mgr)))
    require.True(t, s.Add(NewSubscription("sports", mgr)))
    assert.False(t, s.Add(NewSubscription("news", mgr)), "duplicate name must be rejected")
    assert.Equal(t, 2, s.Len())

    got, ok := s.FindKey(protocol.HashServiceName("sports"))
    require.True(t, ok)
    assert.Equal(t, "sports", got.ServiceName)

    last, ok := s.Last()
    require.True(t, ok)
    assert.Equal(t, "sports", last.ServiceName)

    first, ok := s.Get(0)
    require.True(t, ok)
    assert.Equal(t, "news", first.ServiceName)
    _, ok = s.Get(5)
    assert.False(t, ok)

    assert.True(t, s.Remove("news"))
    assert.False(t, s.Remove("news"))
    _, ok = s.Find("news")
    assert.False(t, ok)
    assert.Equal(t, 1, s.Len())
}

func TestSubscription_Prepend(t *testing.T) {
    sub := NewSubscription("x", mesh.Client{})
    sub.Prepend("a", 0)
    sub.Prepend("b", 0)
    sub.Prepend("c", 2)
    assert.Equal(t, []string{"c", "b"}, sub.Received)
}

func TestClients_UniqueByIdentity(t *testing.T) {
    c := NewClients(mesh.SameID)
    a := mesh.NewClient(mesh.Instance{ID: "a", Addr: "10.0.0.1:1"})
    aMoved := mesh.NewClient(mesh.Instance{ID: "a", Addr: "10.0.0.2:1"})
    b := mesh.NewClient(mesh.Instance{ID: "b"})

    assert.True(t, c.Add(a))
    assert.False(t, c.Add(aMoved))
    assert.True(t, c.Add(b))
    assert.Equal(t, 2, c.Len())
    assert.True(t, c.Contains(aMoved))

    assert.True(t, c.Remove(aMoved))
    assert.False(t, c.Contains(a))
    only, ok := c.Get(0)
    require.True(t, ok)
    assert.Equal(t, "b", only.Instance.ID)
}

func TestServiceManagers(t *testing.T) {
    s := NewServiceManagers()
    k1 := protocol.HashServiceName("one")
    k2 := protocol.HashServiceName("two")
    require.True(t, s.Add(NewServiceManager(k1, mesh.SameID)))
    require.True(t, s.Add(NewServiceManager(k2, mesh.SameID)))
    assert.False(t, s.Add(NewServiceManager(k1, mesh.SameID)))

    last, ok := s.Last()
    require.True(t, ok)
    assert.Equal(t, k2, last.ServiceKey)
    assert.Equal(t, []protocol.ServiceKey{k1, k2}, s.Keys())

    assert.True(t, s.Remove(k1))
    _, ok = s.Find(k1)
    assert.False(t, ok)
    assert.Equal(t, 1, s.Len())
}
