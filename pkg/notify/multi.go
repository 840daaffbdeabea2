package notify

import (
    "github.com/amirimatin/go-meshpubsub/pkg/protocol"
    "github.com/amirimatin/go-meshpubsub/pkg/pubsub"
)

// Multi forwards every event to each notifier in order.
type Multi []pubsub.Notifier

func (m Multi) SubscriptionsChanged() {
    for _, n := range m { n.SubscriptionsChanged() }
}

func (m Multi) ServiceManagersChanged() {
    for _, n := range m { n.ServiceManagersChanged() }
}

func (m Multi) SubscribersChanged(key protocol.ServiceKey) {
    for _, n := range m { n.SubscribersChanged(key) }
}

func (m Multi) MessagesChanged(serviceName string) {
    for _, n := range m { n.MessagesChanged(serviceName) }
}

func (m Multi) Notify(title, body string) {
    for _, n := range m { n.Notify(title, body) }
}

var (
    _ pubsub.Notifier = (*Bus)(nil)
    _ pubsub.Notifier = Log{}
    _ pubsub.Notifier = Multi(nil)
)
