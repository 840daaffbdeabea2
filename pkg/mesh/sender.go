package mesh

import "github.com/amirimatin/go-meshpubsub/pkg/protocol"

// Sender implements the Send* half of Topology on top of a raw frame sender.
// Topology implementations embed it.
type Sender struct {
    // SendFrame hands one encoded frame to the transport.
    SendFrame func(target Instance, frame []byte)
}

func (s Sender) send(target Instance, m protocol.Message) {
    if s.SendFrame == nil { return }
    s.SendFrame(target, protocol.Encode(m))
}

func (s Sender) SendSubscribe(key protocol.ServiceKey, target Instance) {
    s.send(target, protocol.NewSubscribe(key))
}

func (s Sender) SendUnsubscribe(key protocol.ServiceKey, target Instance) {
    s.send(target, protocol.NewUnsubscribe(key))
}

func (s Sender) SendPublish(key protocol.ServiceKey, target Instance, text string) {
    s.send(target, protocol.NewPublish(key, text))
}

func (s Sender) SendInfo(key protocol.ServiceKey, target Instance, text string) {
    s.send(target, protocol.NewInfo(key, text))
}
