//go:build integration

package integration

import (
    "context"
    "strings"
    "testing"
    "time"

    "github.com/amirimatin/go-meshpubsub/pkg/transport"
    httpjson "github.com/amirimatin/go-meshpubsub/pkg/transport/httpjson"
)

func TestThreeNodes_SubscribePublishOverHTTP(t *testing.T) {
    ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
    defer cancel()
    mustStartThreeNodes(t, ctx, "http", nil)
    cli := httpjson.NewClient(3 * time.Second)

    s, err := fetchStatus(ctx, cli, mgmtAddr(1))
    if err != nil { t.Fatalf("status: %v", err) }
    for _, m := range s.Members {
        if m.Mgmt == "" { t.Fatalf("member %s has no gossiped mgmt address", m.ID) }
    }

    resp, err := cli.PostSubscribe(ctx, mgmtAddr(2), transport.SubscribeRequest{Service: "hype-news"})
    if err != nil || !resp.Accepted { t.Fatalf("subscribe: %+v %v", resp, err) }

    // The subscribe frame travels asynchronously; republish until it lands.
    waitUntil(t, 10*time.Second, func() error {
        if _, err := cli.PostPublish(ctx, mgmtAddr(3), transport.PublishRequest{Service: "hype-news", Message: "breaking"}); err != nil { return err }
        m, err := cli.PostMessages(ctx, mgmtAddr(2), transport.MessagesRequest{Service: "hype-news"})
        if err != nil { return err }
        if len(m.Messages) == 0 || !strings.HasSuffix(m.Messages[0], ": breaking") { return errNotYet }
        return nil
    })

    m, err := cli.PostMessages(ctx, mgmtAddr(3), transport.MessagesRequest{Service: "hype-news"})
    if err != nil { t.Fatalf("messages: %v", err) }
    if m.Subscribed { t.Fatalf("publisher must not be subscribed") }
}
