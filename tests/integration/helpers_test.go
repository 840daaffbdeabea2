//go:build integration

package integration

import (
    "context"
    "encoding/json"
    "errors"
    "fmt"
    "testing"
    "time"

    "github.com/amirimatin/go-meshpubsub/pkg/bootstrap"
    "github.com/amirimatin/go-meshpubsub/pkg/node"
    "github.com/amirimatin/go-meshpubsub/pkg/transport"
)

var errNotYet = errors.New("not yet")

func waitUntil(t *testing.T, d time.Duration, fn func() error) {
    t.Helper()
    deadline := time.Now().Add(d)
    var err error
    for time.Now().Before(deadline) {
        if err = fn(); err == nil { return }
        time.Sleep(200 * time.Millisecond)
    }
    t.Fatalf("condition not met within %s: %v", d, err)
}

func fetchStatus(ctx context.Context, cli transport.RPCClient, addr string) (node.Status, error) {
    var s node.Status
    b, err := cli.GetStatus(ctx, addr)
    if err != nil { return s, err }
    return s, json.Unmarshal(b, &s)
}

// nodeConfig returns the config of node i (1-based) on loopback ports.
func nodeConfig(i int, proto string) bootstrap.Config {
    cfg := bootstrap.Config{
        NodeID:            fmt.Sprintf("n%d", i),
        MemBind:           fmt.Sprintf("127.0.0.1:%d", 7945+i*1000),
        MgmtAddr:          fmt.Sprintf("127.0.0.1:%d", 16946+i*1000),
        MgmtProto:         proto,
        DiscoveryKind:     "static",
        ReconcileInterval: 200 * time.Millisecond,
        ProbeInterval:     200 * time.Millisecond,
        ProbeTimeout:      100 * time.Millisecond,
    }
    if i > 1 { cfg.SeedsCSV = "127.0.0.1:8945" }
    return cfg
}

func mgmtAddr(i int) string { return fmt.Sprintf("127.0.0.1:%d", 16946+i*1000) }

// mustStartThreeNodes starts n1..n3 and waits until n1 sees all of them.
func mustStartThreeNodes(t *testing.T, ctx context.Context, proto string, edit func(*bootstrap.Config)) []*node.Node {
    t.Helper()
    var nodes []*node.Node
    for i := 1; i <= 3; i++ {
        cfg := nodeConfig(i, proto)
        if edit != nil { edit(&cfg) }
        n, err := bootstrap.Run(ctx, cfg)
        if err != nil { t.Fatalf("n%d: %v", i, err) }
        t.Cleanup(func() { _ = n.Close() })
        nodes = append(nodes, n)
    }
    waitUntil(t, 10*time.Second, func() error {
        for _, n := range nodes {
            s, err := n.Status(ctx)
            if err != nil { return err }
            if len(s.Members) != 3 { return errNotYet }
        }
        return nil
    })
    return nodes
}
