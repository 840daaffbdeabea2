package transport

import (
    "context"

    "github.com/amirimatin/go-meshpubsub/pkg/notify"
)

// StatusFunc returns a JSON-encoded status payload for management /status.
// Using []byte avoids import cycles on node types.
type StatusFunc func(ctx context.Context) ([]byte, error)

// SubscribeRequest asks the node to subscribe to a service.
type SubscribeRequest struct {
    Service string `json:"service"`
}

// UnsubscribeRequest asks the node to drop its subscription to a service.
type UnsubscribeRequest struct {
    Service string `json:"service"`
}

// SubscribeResponse reports whether the request changed the node's
// subscriptions. Accepted=false with an empty Error means the request was
// rejected as a duplicate (or, for unsubscribe, as unknown).
type SubscribeResponse struct {
    Accepted bool   `json:"accepted"`
    Error    string `json:"error,omitempty"`
}

// PublishRequest publishes Message on Service.
type PublishRequest struct {
    Service string `json:"service"`
    Message string `json:"message"`
}

type PublishResponse struct {
    Accepted bool   `json:"accepted"`
    Error    string `json:"error,omitempty"`
}

// MessagesRequest asks for the messages received on a subscribed service.
type MessagesRequest struct {
    Service string `json:"service"`
}

// MessagesResponse carries received messages, newest first.
type MessagesResponse struct {
    Subscribed bool     `json:"subscribed"`
    Messages   []string `json:"messages,omitempty"`
    Error      string   `json:"error,omitempty"`
}

type SubscribeFunc func(ctx context.Context, req SubscribeRequest) (SubscribeResponse, error)
type UnsubscribeFunc func(ctx context.Context, req UnsubscribeRequest) (SubscribeResponse, error)
type PublishFunc func(ctx context.Context, req PublishRequest) (PublishResponse, error)
type MessagesFunc func(ctx context.Context, req MessagesRequest) (MessagesResponse, error)

// WatchFunc returns a stream of node events that ends when ctx is done.
type WatchFunc func(ctx context.Context) <-chan notify.Event

// Handlers backs the management endpoints. Nil handlers answer "not
// supported".
type Handlers struct {
    Status      StatusFunc
    Subscribe   SubscribeFunc
    Unsubscribe UnsubscribeFunc
    Publish     PublishFunc
    Messages    MessagesFunc
    Watch       WatchFunc
}

// RPCServer exposes the management API of a node.
type RPCServer interface {
    Start(ctx context.Context, h Handlers) error
    Addr() string
    Stop(ctx context.Context) error
}

// RPCClient calls the management API of a node using the chosen protocol
// (HTTP/JSON or gRPC JSON codec).
type RPCClient interface {
    GetStatus(ctx context.Context, addr string) ([]byte, error)
    PostSubscribe(ctx context.Context, addr string, req SubscribeRequest) (SubscribeResponse, error)
    PostUnsubscribe(ctx context.Context, addr string, req UnsubscribeRequest) (SubscribeResponse, error)
    PostPublish(ctx context.Context, addr string, req PublishRequest) (PublishResponse, error)
    PostMessages(ctx context.Context, addr string, req MessagesRequest) (MessagesResponse, error)
}

// EventWatcher is an optional client for streaming node events (gRPC only).
type EventWatcher interface {
    // Watch invokes onEvent for each event streamed from addr. It blocks
    // until the stream ends or ctx is done.
    Watch(ctx context.Context, addr string, onEvent func(notify.Event)) error
}
