package node

import (
    "log"
    "time"

    "github.com/amirimatin/go-meshpubsub/pkg/discovery"
    "github.com/amirimatin/go-meshpubsub/pkg/mesh"
    "github.com/amirimatin/go-meshpubsub/pkg/pubsub"
    "github.com/amirimatin/go-meshpubsub/pkg/transport"
)

const DefaultReconcileInterval = 2 * time.Second

// Options carries the components and runtime configuration used to assemble
// a node. Instances are typically produced from bootstrap.Config.
type Options struct {
    // Mesh is the peer mesh the engine runs on (required).
    Mesh mesh.Mesh
    // Discovery provides seed addresses to join. Optional.
    Discovery discovery.Discovery
    // Logger is used for operational messages (required).
    Logger *log.Logger

    // RPCServer serves the management API. Optional.
    RPCServer transport.RPCServer

    // ReconcileInterval is the period of the background rebalancing pass.
    // Zero means DefaultReconcileInterval.
    ReconcileInterval time.Duration
    // MaxMessages bounds the history kept per subscription (0 = unbounded).
    MaxMessages int
    // AutoSubscribe lists services subscribed to right after Start.
    AutoSubscribe []string

    // Notifier receives engine events in addition to the node's own event
    // bus and log sink. Optional.
    Notifier pubsub.Notifier
    // Now overrides the clock used to stamp received messages.
    Now func() time.Time
}

// Validate performs a minimal validation of Options. It does not start any
// network activity and is safe to call before New.
func (o Options) Validate() error {
    if o.Mesh == nil {
        return ErrNilMesh
    }
    if o.Logger == nil {
        return ErrNilLogger
    }
    if o.ReconcileInterval < 0 {
        return ErrBadInterval
    }
    if o.MaxMessages < 0 {
        return pubsub.ErrNegativeHistory
    }
    return nil
}
