// Package notify carries the engine's UI events to consumers: an in-process
// event bus, a log sink, and a fan-out over several notifiers.
package notify

import (
    "context"
    "strconv"
    "sync"
    "sync/atomic"
    "time"

    "github.com/amirimatin/go-meshpubsub/pkg/protocol"
)

type EventType string

const (
    EventSubscriptionsChanged EventType = "subscriptions_changed"
    EventManagersChanged      EventType = "managers_changed"
    EventSubscribersChanged   EventType = "subscribers_changed"
    EventMessagesChanged      EventType = "messages_changed"
    EventNotification         EventType = "notification"
)

// NotificationPrefix prefixes the identifiers of user notifications.
const NotificationPrefix = "HypePubSub"

// Event is a UI event. Only fields relevant for the type are populated.
type Event struct {
    Type    EventType `json:"type"`
    At      time.Time `json:"at"`
    Key     string    `json:"key,omitempty"`
    Service string    `json:"service,omitempty"`
    Title   string    `json:"title,omitempty"`
    Body    string    `json:"body,omitempty"`
    ID      string    `json:"id,omitempty"`
}

// Bus is a Notifier that broadcasts events to subscribed channels. Delivery
// is best-effort: a subscriber whose buffer is full misses the event.
type Bus struct {
    mu   sync.Mutex
    subs map[chan Event]struct{}
    seq  atomic.Uint64
    now  func() time.Time
}

// NewBus returns an empty bus.
func NewBus() *Bus { return &Bus{now: time.Now} }

// Subscribe returns a channel of events. The returned channel is buffered and
// closed automatically when ctx is done.
func (b *Bus) Subscribe(ctx context.Context) <-chan Event {
    ch := make(chan Event, 64)
    b.mu.Lock()
    if b.subs == nil { b.subs = make(map[chan Event]struct{}) }
    b.subs[ch] = struct{}{}
    b.mu.Unlock()
    go func() {
        <-ctx.Done()
        b.mu.Lock()
        delete(b.subs, ch)
        b.mu.Unlock()
        close(ch)
    }()
    return ch
}

// Subscribers returns the number of attached channels.
func (b *Bus) Subscribers() int {
    b.mu.Lock()
    defer b.mu.Unlock()
    return len(b.subs)
}

func (b *Bus) publish(ev Event) {
    ev.At = b.now()
    b.mu.Lock()
    for ch := range b.subs {
        select {
        case ch <- ev:
        default:
            // drop if receiver is slow
        }
    }
    b.mu.Unlock()
}

func (b *Bus) SubscriptionsChanged() { b.publish(Event{Type: EventSubscriptionsChanged}) }

func (b *Bus) ServiceManagersChanged() { b.publish(Event{Type: EventManagersChanged}) }

func (b *Bus) SubscribersChanged(key protocol.ServiceKey) {
    b.publish(Event{Type: EventSubscribersChanged, Key: key.String()})
}

func (b *Bus) MessagesChanged(serviceName string) {
    b.publish(Event{Type: EventMessagesChanged, Service: serviceName})
}

// Notify publishes a user notification with a fresh identifier.
func (b *Bus) Notify(title, body string) {
    id := NotificationPrefix + strconv.FormatUint(b.seq.Add(1), 10)
    b.publish(Event{Type: EventNotification, Title: title, Body: body, ID: id})
}
