// Command memdemo runs a pub/sub mesh of in-process nodes and walks through
// subscribing, publishing and losing the manager of a service.
package main

import (
    "context"
    "fmt"
    "log"
    "os"
    "time"

    "github.com/spf13/cobra"

    "github.com/amirimatin/go-meshpubsub/pkg/mesh/memory"
    "github.com/amirimatin/go-meshpubsub/pkg/node"
    "github.com/amirimatin/go-meshpubsub/pkg/notify"
)

func main() {
    if err := newRoot().Execute(); err != nil {
        log.Fatal(err)
    }
}

func newRoot() *cobra.Command {
    var (
        peers   int
        service string
        settle  time.Duration
    )
    cmd := &cobra.Command{
        Use:          "memdemo",
        Short:        "simulate a pub/sub mesh in memory",
        SilenceUsage: true,
        RunE: func(cmd *cobra.Command, args []string) error {
            if peers < 2 { return fmt.Errorf("need at least 2 peers") }
            return simulate(cmd.Context(), peers, service, settle)
        },
    }
    cmd.Flags().IntVar(&peers, "peers", 4, "number of in-process nodes")
    cmd.Flags().StringVar(&service, "service", "hype-weather", "service to exercise")
    cmd.Flags().DurationVar(&settle, "settle", 100*time.Millisecond, "time allowed for reconciliation after a peer leaves")
    return cmd
}

func simulate(ctx context.Context, count int, service string, settle time.Duration) error {
    if ctx == nil { ctx = context.Background() }
    logger := log.New(os.Stderr, "", log.LstdFlags)
    net := memory.NewNetwork(logger)
    nodes := make([]*node.Node, 0, count)
    for i := 0; i < count; i++ {
        peer, err := net.Join(fmt.Sprintf("node-%d", i+1))
        if err != nil { return err }
        n, err := node.New(ctx, node.Options{Mesh: peer, Logger: logger, ReconcileInterval: settle / 2})
        if err != nil { return err }
        if err := n.Start(ctx); err != nil { return err }
        defer n.Close()
        nodes = append(nodes, n)
    }

    sub := nodes[0]
    evctx, cancel := context.WithCancel(ctx)
    defer cancel()
    go func(ch <-chan notify.Event) {
        for e := range ch {
            if e.Type == notify.EventNotification {
                fmt.Printf("node-1 notification %s [%s] %s\n", e.ID, e.Title, e.Body)
            }
        }
    }(sub.Events(evctx))

    if _, err := sub.Subscribe(ctx, service); err != nil { return err }
    manager := sub.Engine().Subscriptions()[0].ManagerID
    fmt.Printf("node-1 subscribed to %s; manager is %s\n", service, manager)

    publisher := nodes[count-1]
    if err := publisher.Publish(ctx, service, "sunny"); err != nil { return err }

    for _, n := range nodes[1:] {
        st, _ := n.Status(ctx)
        if st.Self.ID != manager { continue }
        fmt.Printf("stopping manager %s\n", manager)
        if err := n.Stop(ctx); err != nil { return err }
        time.Sleep(settle)
        fmt.Printf("node-1 manager is now %s\n", sub.Engine().Subscriptions()[0].ManagerID)
        for _, p := range nodes[1:] {
            if p != n { publisher = p; break }
        }
        break
    }
    if err := publisher.Publish(ctx, service, "cloudy"); err != nil { return err }

    msgs, _ := sub.Messages(service)
    fmt.Printf("node-1 received on %s: %v\n", service, msgs)
    return nil
}
