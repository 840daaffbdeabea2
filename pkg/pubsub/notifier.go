package pubsub

import "github.com/amirimatin/go-meshpubsub/pkg/protocol"

// Notifier receives fire-and-forget UI events from the engine. Calls are made
// outside the engine lock.
type Notifier interface {
    SubscriptionsChanged()
    ServiceManagersChanged()
    SubscribersChanged(key protocol.ServiceKey)
    MessagesChanged(serviceName string)
    // Notify requests a user-visible notification.
    Notify(title, body string)
}

// Nop discards all events.
type Nop struct{}

func (Nop) SubscriptionsChanged()                 {}
func (Nop) ServiceManagersChanged()               {}
func (Nop) SubscribersChanged(protocol.ServiceKey) {}
func (Nop) MessagesChanged(string)                {}
func (Nop) Notify(string, string)                 {}
