package httpjson

import (
    "bytes"
    "context"
    "crypto/tls"
    "encoding/json"
    "errors"
    "fmt"
    "io"
    "net/http"
    "time"

    "github.com/amirimatin/go-meshpubsub/pkg/transport"
)

const attempts = 3

// Client is a thin HTTP client for the management API. It supports optional
// TLS configuration and simple retry with backoff for robustness.
type Client struct {
    httpc     *http.Client
    transport *http.Transport
    isTLS     bool
}

// NewClient constructs a new Client with the given timeout.
func NewClient(timeout time.Duration) *Client {
    if timeout <= 0 { timeout = 3 * time.Second }
    tr := &http.Transport{}
    return &Client{httpc: &http.Client{Timeout: timeout, Transport: tr}, transport: tr}
}

// UseTLS sets the TLS config for the underlying HTTP client and switches the
// request scheme to https.
func (c *Client) UseTLS(cfg *tls.Config) *Client {
    if c.transport != nil { c.transport.TLSClientConfig = cfg }
    c.isTLS = cfg != nil
    return c
}

func (c *Client) url(addr, path string) string {
    scheme := "http"
    if c.isTLS { scheme = "https" }
    return fmt.Sprintf("%s://%s%s", scheme, addr, path)
}

// backoff waits before the next attempt unless ctx is done.
func backoff(ctx context.Context, attempt int) error {
    select {
    case <-ctx.Done():
        return ctx.Err()
    case <-time.After(time.Duration(100*(1<<attempt)) * time.Millisecond):
        return nil
    }
}

func (c *Client) GetStatus(ctx context.Context, addr string) ([]byte, error) {
    var lastErr error
    for attempt := 0; attempt < attempts; attempt++ {
        req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url(addr, "/status"), nil)
        if err != nil { return nil, err }
        b, err := c.do(req)
        if err == nil { return b, nil }
        lastErr = err
        if err := backoff(ctx, attempt); err != nil { return nil, err }
    }
    return nil, lastErr
}

func (c *Client) do(req *http.Request) ([]byte, error) {
    resp, err := c.httpc.Do(req)
    if err != nil { return nil, err }
    defer resp.Body.Close()
    b, err := io.ReadAll(resp.Body)
    if err != nil { return nil, err }
    if resp.StatusCode != http.StatusOK {
        return b, fmt.Errorf("status %d: %s", resp.StatusCode, bytes.TrimSpace(b))
    }
    return b, nil
}

// errorOf extracts the Error field every management response carries.
type errorOf struct {
    Error string `json:"error"`
}

func post[Req any, Resp any](ctx context.Context, c *Client, addr, path string, in Req) (Resp, error) {
    var out Resp
    body, err := json.Marshal(in)
    if err != nil { return out, err }
    var lastErr error
    for attempt := 0; attempt < attempts; attempt++ {
        req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url(addr, path), bytes.NewReader(body))
        if err != nil { return out, err }
        req.Header.Set("Content-Type", "application/json")
        b, err := c.do(req)
        if err == nil {
            return out, json.Unmarshal(b, &out)
        }
        lastErr = err
        var e errorOf
        if len(b) > 0 && json.Unmarshal(b, &e) == nil && e.Error != "" {
            // the handler ran and failed; retrying will not help
            _ = json.Unmarshal(b, &out)
            return out, errors.New(e.Error)
        }
        if err := backoff(ctx, attempt); err != nil {
            if lastErr == nil { lastErr = err }
            return out, lastErr
        }
    }
    return out, lastErr
}

func (c *Client) PostSubscribe(ctx context.Context, addr string, req transport.SubscribeRequest) (transport.SubscribeResponse, error) {
    return post[transport.SubscribeRequest, transport.SubscribeResponse](ctx, c, addr, "/subscribe", req)
}

func (c *Client) PostUnsubscribe(ctx context.Context, addr string, req transport.UnsubscribeRequest) (transport.SubscribeResponse, error) {
    return post[transport.UnsubscribeRequest, transport.SubscribeResponse](ctx, c, addr, "/unsubscribe", req)
}

func (c *Client) PostPublish(ctx context.Context, addr string, req transport.PublishRequest) (transport.PublishResponse, error) {
    return post[transport.PublishRequest, transport.PublishResponse](ctx, c, addr, "/publish", req)
}

func (c *Client) PostMessages(ctx context.Context, addr string, req transport.MessagesRequest) (transport.MessagesResponse, error) {
    return post[transport.MessagesRequest, transport.MessagesResponse](ctx, c, addr, "/messages", req)
}

var _ transport.RPCClient = (*Client)(nil)
