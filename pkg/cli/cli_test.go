package cli

import (
    "bytes"
    "context"
    "encoding/json"
    "io"
    "log"
    "strings"
    "testing"

    "github.com/spf13/cobra"

    "github.com/amirimatin/go-meshpubsub/pkg/mesh/memory"
    "github.com/amirimatin/go-meshpubsub/pkg/node"
    "github.com/amirimatin/go-meshpubsub/pkg/transport"
    httpjson "github.com/amirimatin/go-meshpubsub/pkg/transport/httpjson"
)

func startNode(t *testing.T) string {
    t.Helper()
    quiet := log.New(io.Discard, "", 0)
    peer, err := memory.NewNetwork(quiet).Join("cli-node")
    if err != nil { t.Fatal(err) }
    srv := httpjson.NewServer("127.0.0.1:0", quiet)
    n, err := node.New(context.Background(), node.Options{Mesh: peer, Logger: quiet, RPCServer: srv})
    if err != nil { t.Fatal(err) }
    if err := n.Start(context.Background()); err != nil { t.Fatal(err) }
    t.Cleanup(func() { _ = n.Close() })
    return srv.Addr()
}

func execute(t *testing.T, args ...string) string {
    t.Helper()
    root := &cobra.Command{Use: "hpsctl", SilenceUsage: true, SilenceErrors: true}
    AddAll(root)
    var out bytes.Buffer
    root.SetOut(&out)
    root.SetArgs(args)
    if err := root.Execute(); err != nil { t.Fatalf("%v: %v", args, err) }
    return out.String()
}

func TestCommandsAgainstNode(t *testing.T) {
    addr := startNode(t)

    var sub transport.SubscribeResponse
    if err := json.Unmarshal([]byte(execute(t, "subscribe", "hype-news", "--addr", addr)), &sub); err != nil { t.Fatal(err) }
    if !sub.Accepted { t.Fatalf("subscribe not accepted: %+v", sub) }

    var pub transport.PublishResponse
    if err := json.Unmarshal([]byte(execute(t, "publish", "hype-news", "extra", "--addr", addr)), &pub); err != nil { t.Fatal(err) }
    if !pub.Accepted { t.Fatalf("publish not accepted: %+v", pub) }

    var msgs transport.MessagesResponse
    if err := json.Unmarshal([]byte(execute(t, "messages", "hype-news", "--addr", addr)), &msgs); err != nil { t.Fatal(err) }
    if !msgs.Subscribed || len(msgs.Messages) != 1 || !strings.HasSuffix(msgs.Messages[0], ": extra") {
        t.Fatalf("messages = %+v", msgs)
    }

    var st node.Status
    if err := json.Unmarshal([]byte(execute(t, "status", "--addr", addr)), &st); err != nil { t.Fatal(err) }
    if st.Self.ID != "cli-node" || len(st.Subscriptions) != 1 { t.Fatalf("status = %+v", st) }

    if err := json.Unmarshal([]byte(execute(t, "unsubscribe", "hype-news", "--addr", addr)), &sub); err != nil { t.Fatal(err) }
    if !sub.Accepted { t.Fatalf("unsubscribe not accepted: %+v", sub) }
}

func TestArgsValidation(t *testing.T) {
    root := &cobra.Command{Use: "hpsctl", SilenceUsage: true, SilenceErrors: true}
    AddAll(root)
    root.SetOut(io.Discard)
    root.SetErr(io.Discard)
    root.SetArgs([]string{"publish", "only-service"})
    if err := root.Execute(); err == nil { t.Fatal("expected argument error") }
}

func TestWatchRejectsHTTP(t *testing.T) {
    root := &cobra.Command{Use: "hpsctl", SilenceUsage: true, SilenceErrors: true}
    AddAll(root)
    root.SetOut(io.Discard)
    root.SetArgs([]string{"watch", "--mgmt-proto", "http"})
    err := root.Execute()
    if err == nil || !strings.Contains(err.Error(), "not supported") { t.Fatalf("err = %v", err) }
}
