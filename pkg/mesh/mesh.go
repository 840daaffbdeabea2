// Package mesh describes the peer mesh the pub/sub engine runs on: peer
// identities, membership events, and the Topology the engine consults to find
// the peer responsible for a service key and to send frames to peers.
package mesh

import (
    "context"
    "time"

    "github.com/amirimatin/go-meshpubsub/pkg/protocol"
)

// Instance is an opaque handle to a mesh peer. ID is unique within the mesh;
// Addr is informational.
type Instance struct {
    ID   string
    Addr string
}

func (i Instance) String() string {
    if i.Addr == "" { return i.ID }
    return i.ID + "@" + i.Addr
}

// Client wraps an Instance together with the digest of its ID, which places
// the peer in the same key space as service keys.
type Client struct {
    Instance Instance
    Key      protocol.ServiceKey
}

// NewClient wraps inst.
func NewClient(inst Instance) Client {
    return Client{Instance: inst, Key: protocol.HashServiceName(inst.ID)}
}

func (c Client) String() string { return c.Instance.String() + " (" + c.Key.String() + ")" }

// Topology is what the engine needs from the mesh. Implementations must be
// safe for concurrent use. Send* calls are fire-and-forget: failures are
// handled (logged) by the implementation.
type Topology interface {
    // ResponsibleFor returns the client currently responsible for key.
    ResponsibleFor(key protocol.ServiceKey) Client
    // SameClient reports whether a and b denote the same peer.
    SameClient(a, b Client) bool
    // Self returns the local peer.
    Self() Client

    SendSubscribe(key protocol.ServiceKey, target Instance)
    SendUnsubscribe(key protocol.ServiceKey, target Instance)
    SendPublish(key protocol.ServiceKey, target Instance, text string)
    SendInfo(key protocol.ServiceKey, target Instance, text string)
}

// FrameHandler receives inbound frames together with the sending peer.
type FrameHandler func(from Instance, frame []byte) error

type EventType string

const (
    // EventJoin indicates a member joined or became visible.
    EventJoin   EventType = "join"
    // EventUpdate indicates member metadata changed.
    EventUpdate EventType = "update"
    // EventLeave indicates a member left or was declared dead.
    EventLeave  EventType = "leave"
)

// Event is a membership change notification.
type Event struct {
    Type   EventType
    Member Instance
    At     time.Time
}

// Mesh is a running mesh: a Topology plus lifecycle and membership.
type Mesh interface {
    Topology
    Start(ctx context.Context) error
    Join(seeds []string) error
    Members() []Instance
    Events() <-chan Event
    // Handle registers the receiver for inbound frames. It must be called
    // before Start.
    Handle(h FrameHandler)
    Leave() error
    Stop() error
}

// HealthReporter is optionally implemented by a Mesh to expose a health
// score. Higher is worse; -1 means unavailable.
type HealthReporter interface {
    HealthScore() int
}
