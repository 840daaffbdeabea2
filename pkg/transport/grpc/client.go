package grpc

import (
    "context"
    "crypto/tls"
    "errors"
    "sync"
    "time"

    "google.golang.org/grpc"
    "google.golang.org/grpc/backoff"
    "google.golang.org/grpc/credentials"
    "google.golang.org/grpc/credentials/insecure"
    "google.golang.org/grpc/keepalive"

    "github.com/amirimatin/go-meshpubsub/pkg/notify"
    "github.com/amirimatin/go-meshpubsub/pkg/transport"
)

type Client struct {
    timeout time.Duration
    tlsCfg  *tls.Config

    mu sync.Mutex
    cm *ConnManager
}

func NewClient(timeout time.Duration) *Client {
    if timeout <= 0 { timeout = 3 * time.Second }
    // conn manager wired lazily, after TLS is configured
    return &Client{timeout: timeout}
}

// UseTLS sets TLS config for the client.
func (c *Client) UseTLS(cfg *tls.Config) *Client { c.tlsCfg = cfg; return c }

func (c *Client) dialCtx(ctx context.Context, target string) (*grpc.ClientConn, error) {
    // Use JSON codec and set content subtype accordingly.
    opts := []grpc.DialOption{
        grpc.WithDefaultCallOptions(grpc.ForceCodec(jsonCodec{}), grpc.CallContentSubtype(codecName)),
        grpc.WithConnectParams(grpc.ConnectParams{Backoff: backoff.DefaultConfig, MinConnectTimeout: 500 * time.Millisecond}),
        grpc.WithKeepaliveParams(keepalive.ClientParameters{Time: 20 * time.Second, Timeout: 5 * time.Second, PermitWithoutStream: true}),
        grpc.WithBlock(),
    }
    if c.tlsCfg != nil {
        opts = append(opts, grpc.WithTransportCredentials(credentials.NewTLS(c.tlsCfg)))
    } else {
        opts = append(opts, grpc.WithTransportCredentials(insecure.NewCredentials()))
    }
    return grpc.DialContext(ctx, target, opts...)
}

// getConn returns a managed connection, creating a manager if absent.
func (c *Client) getConn(ctx context.Context, addr string) (*grpc.ClientConn, func(), error) {
    c.mu.Lock()
    if c.cm == nil {
        c.cm = NewConnManager(30*time.Second, c.dialCtx)
    }
    cm := c.cm
    c.mu.Unlock()
    return cm.Get(ctx, addr)
}

// Close releases cached connections.
func (c *Client) Close() {
    c.mu.Lock()
    defer c.mu.Unlock()
    if c.cm != nil {
        c.cm.Close()
        c.cm = nil
    }
}

func invoke[Req any, Resp any](ctx context.Context, c *Client, addr, method string, in *Req) (Resp, error) {
    var out Resp
    cctx, cancel := context.WithTimeout(ctx, c.timeout)
    defer cancel()
    cc, rel, err := c.getConn(cctx, addr)
    if err != nil { return out, err }
    defer rel()
    err = cc.Invoke(cctx, "/"+managementService+"/"+method, in, &out)
    return out, err
}

func (c *Client) GetStatus(ctx context.Context, addr string) ([]byte, error) {
    out, err := invoke[empty, statusBlob](ctx, c, addr, "GetStatus", &empty{})
    if err != nil { return nil, err }
    return out.Data, nil
}

func (c *Client) PostSubscribe(ctx context.Context, addr string, req transport.SubscribeRequest) (transport.SubscribeResponse, error) {
    resp, err := invoke[transport.SubscribeRequest, transport.SubscribeResponse](ctx, c, addr, "Subscribe", &req)
    if err == nil && resp.Error != "" { err = errors.New(resp.Error) }
    return resp, err
}

func (c *Client) PostUnsubscribe(ctx context.Context, addr string, req transport.UnsubscribeRequest) (transport.SubscribeResponse, error) {
    resp, err := invoke[transport.UnsubscribeRequest, transport.SubscribeResponse](ctx, c, addr, "Unsubscribe", &req)
    if err == nil && resp.Error != "" { err = errors.New(resp.Error) }
    return resp, err
}

func (c *Client) PostPublish(ctx context.Context, addr string, req transport.PublishRequest) (transport.PublishResponse, error) {
    resp, err := invoke[transport.PublishRequest, transport.PublishResponse](ctx, c, addr, "Publish", &req)
    if err == nil && resp.Error != "" { err = errors.New(resp.Error) }
    return resp, err
}

func (c *Client) PostMessages(ctx context.Context, addr string, req transport.MessagesRequest) (transport.MessagesResponse, error) {
    resp, err := invoke[transport.MessagesRequest, transport.MessagesResponse](ctx, c, addr, "Messages", &req)
    if err == nil && resp.Error != "" { err = errors.New(resp.Error) }
    return resp, err
}

// Watch establishes a server-stream to the events service and invokes
// onEvent for every received event. It blocks until the stream ends or ctx
// is done.
func (c *Client) Watch(ctx context.Context, addr string, onEvent func(notify.Event)) error {
    cctx, cancel := context.WithTimeout(ctx, c.timeout)
    cc, rel, err := c.getConn(cctx, addr)
    cancel()
    if err != nil { return err }
    defer rel()
    sd := &grpc.StreamDesc{ServerStreams: true}
    cs, err := cc.NewStream(ctx, sd, "/"+eventsService+"/Watch")
    if err != nil { return err }
    if err := cs.SendMsg(&watchReq{}); err != nil { return err }
    _ = cs.CloseSend()
    for {
        var ev notify.Event
        if err := cs.RecvMsg(&ev); err != nil {
            if ctx.Err() != nil { return ctx.Err() }
            return err
        }
        if onEvent != nil { onEvent(ev) }
    }
}

var (
    _ transport.RPCClient    = (*Client)(nil)
    _ transport.EventWatcher = (*Client)(nil)
)
