package pubsub

import (
    "fmt"

    "github.com/amirimatin/go-meshpubsub/pkg/internal/logutil"
    "github.com/amirimatin/go-meshpubsub/pkg/mesh"
    obsmetrics "github.com/amirimatin/go-meshpubsub/pkg/observability/metrics"
    "github.com/amirimatin/go-meshpubsub/pkg/protocol"
)

// HandleFrame decodes a frame received from a peer and dispatches it to the
// matching processing function. Malformed frames are rejected with an error
// wrapping protocol.ErrFraming; nothing is applied.
func (e *Engine) HandleFrame(from mesh.Instance, frame []byte) error {
    m, err := protocol.Decode(frame)
    if err != nil {
        obsmetrics.FramingErrors.Inc()
        logutil.Warnf(e.logger, "dropping frame from %s: %v", from, err)
        return fmt.Errorf("frame from %s: %w", from, err)
    }
    logutil.Debugf(e.logger, "%s received from %s", m, from)
    switch m.Kind {
    case protocol.KindSubscribe:
        e.ProcessSubscribe(m.ServiceKey, from)
    case protocol.KindUnsubscribe:
        e.ProcessUnsubscribe(m.ServiceKey, from)
    case protocol.KindPublish:
        e.ProcessPublish(m.ServiceKey, m.Text())
    case protocol.KindInfo:
        e.ProcessInfo(m.ServiceKey, m.Text())
    }
    return nil
}
