package node

import (
    "context"
    "encoding/json"
    "fmt"
    "io"
    "log"
    "testing"
    "time"

    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"

    "github.com/amirimatin/go-meshpubsub/pkg/mesh/memory"
    "github.com/amirimatin/go-meshpubsub/pkg/notify"
    "github.com/amirimatin/go-meshpubsub/pkg/pubsub"
    "github.com/amirimatin/go-meshpubsub/pkg/transport"
)

var (
    quiet   = log.New(io.Discard, "", 0)
    fixedAt = time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC)
)

func startNode(t *testing.T, net *memory.Network, id string, auto ...string) *Node {
    t.Helper()
    peer, err := net.Join(id)
    require.NoError(t, err)
    n, err := New(context.Background(), Options{
        Mesh:              peer,
        Logger:            quiet,
        ReconcileInterval: 20 * time.Millisecond,
        AutoSubscribe:     auto,
        Now:               func() time.Time { return fixedAt },
    })
    require.NoError(t, err)
    require.NoError(t, n.Start(context.Background()))
    t.Cleanup(func() { _ = n.Close() })
    return n
}

func TestOptions_Validate(t *testing.T) {
    net := memory.NewNetwork(quiet)
    peer, err := net.Join("a")
    require.NoError(t, err)

    _, err = New(context.Background(), Options{Logger: quiet})
    require.ErrorIs(t, err, ErrNilMesh)
    _, err = New(context.Background(), Options{Mesh: peer})
    require.ErrorIs(t, err, ErrNilLogger)
    _, err = New(context.Background(), Options{Mesh: peer, Logger: quiet, ReconcileInterval: -time.Second})
    require.ErrorIs(t, err, ErrBadInterval)
    _, err = New(context.Background(), Options{Mesh: peer, Logger: quiet, MaxMessages: -1})
    require.ErrorIs(t, err, pubsub.ErrNegativeHistory)
}

func TestLifecycleErrors(t *testing.T) {
    net := memory.NewNetwork(quiet)
    peer, err := net.Join("a")
    require.NoError(t, err)
    n, err := New(context.Background(), Options{Mesh: peer, Logger: quiet})
    require.NoError(t, err)
    ctx := context.Background()

    _, err = n.Subscribe(ctx, "news")
    require.ErrorIs(t, err, ErrNotStarted)
    require.NoError(t, n.Start(ctx))
    require.NoError(t, n.Start(ctx))

    _, err = n.Subscribe(ctx, "")
    require.ErrorIs(t, err, ErrEmptyService)
    require.ErrorIs(t, n.Publish(ctx, "", "x"), ErrEmptyService)

    require.NoError(t, n.Stop(ctx))
    require.NoError(t, n.Stop(ctx))
    require.ErrorIs(t, n.Publish(ctx, "news", "x"), ErrStopped)
    require.ErrorIs(t, n.Start(ctx), ErrStopped)
}

func TestPublishReachesSubscriber(t *testing.T) {
    net := memory.NewNetwork(quiet)
    a := startNode(t, net, "alpha")
    b := startNode(t, net, "beta")
    ctx := context.Background()

    ok, err := a.Subscribe(ctx, "hype-news")
    require.NoError(t, err)
    require.True(t, ok)
    ok, err = a.Subscribe(ctx, "hype-news")
    require.NoError(t, err)
    require.False(t, ok)

    require.NoError(t, b.Publish(ctx, "hype-news", "hello"))
    msgs, ok := a.Messages("hype-news")
    require.True(t, ok)
    assert.Equal(t, []string{"09:30: hello"}, msgs)

    _, ok = b.Messages("hype-news")
    assert.False(t, ok)

    ok, err = a.Unsubscribe(ctx, "hype-news")
    require.NoError(t, err)
    require.True(t, ok)
    require.NoError(t, b.Publish(ctx, "hype-news", "again"))
    _, ok = a.Messages("hype-news")
    assert.False(t, ok)
}

func TestAutoSubscribeAndStatus(t *testing.T) {
    net := memory.NewNetwork(quiet)
    a := startNode(t, net, "alpha", "hype-jobs", " ", "hype-music")
    startNode(t, net, "beta")

    st, err := a.Status(context.Background())
    require.NoError(t, err)
    assert.True(t, st.Healthy)
    assert.Equal(t, "alpha", st.Self.ID)
    assert.Len(t, st.Members, 2)
    assert.Equal(t, 0, st.HealthScore)
    require.Len(t, st.Subscriptions, 2)
    assert.Equal(t, "hype-jobs", st.Subscriptions[0].Service)
    assert.Equal(t, "hype-music", st.Subscriptions[1].Service)

    raw, err := a.statusJSON(context.Background())
    require.NoError(t, err)
    var decoded Status
    require.NoError(t, json.Unmarshal(raw, &decoded))
    assert.Equal(t, st.Subscriptions, decoded.Subscriptions)
}

func TestEventsStream(t *testing.T) {
    net := memory.NewNetwork(quiet)
    a := startNode(t, net, "alpha")
    ctx, cancel := context.WithCancel(context.Background())
    defer cancel()
    ch := a.Events(ctx)

    _, err := a.Subscribe(ctx, "hype-weather")
    require.NoError(t, err)
    require.NoError(t, a.Publish(ctx, "hype-weather", "sunny"))

    var seen []notify.EventType
    var note notify.Event
    timeout := time.After(time.Second)
    for note.Type != notify.EventNotification {
        select {
        case ev := <-ch:
            seen = append(seen, ev.Type)
            if ev.Type == notify.EventNotification { note = ev }
        case <-timeout:
            t.Fatalf("no notification; saw %v", seen)
        }
    }
    assert.Contains(t, seen, notify.EventSubscriptionsChanged)
    assert.Equal(t, "hype-weather", note.Title)
    assert.Equal(t, "sunny", note.Body)
}

// managedElsewhere returns a service name whose manager is not sub.
func managedElsewhere(t *testing.T, sub *Node) string {
    t.Helper()
    ctx := context.Background()
    for i := 0; i < 64; i++ {
        name := fmt.Sprintf("svc-%d", i)
        _, err := sub.Subscribe(ctx, name)
        require.NoError(t, err)
        subs := sub.Engine().Subscriptions()
        if subs[len(subs)-1].ManagerID != "sub" {
            return name
        }
        _, err = sub.Unsubscribe(ctx, name)
        require.NoError(t, err)
    }
    t.Fatal("no remotely managed service found")
    return ""
}

func TestManagerLossRecovers(t *testing.T) {
    net := memory.NewNetwork(quiet)
    nodes := map[string]*Node{}
    for _, id := range []string{"sub", "n1", "n2", "n3"} {
        nodes[id] = startNode(t, net, id)
    }
    sub := nodes["sub"]
    name := managedElsewhere(t, sub)
    manager := sub.Engine().Subscriptions()[0].ManagerID
    require.NoError(t, nodes[manager].Stop(context.Background()))
    delete(nodes, manager)

    require.Eventually(t, func() bool {
        s := sub.Engine().Subscriptions()
        return len(s) == 1 && s[0].ManagerID != manager
    }, 2*time.Second, 10*time.Millisecond)

    var publisher *Node
    for id, n := range nodes {
        if id != "sub" { publisher = n; break }
    }
    require.Eventually(t, func() bool {
        _ = publisher.Publish(context.Background(), name, "after")
        msgs, _ := sub.Messages(name)
        return len(msgs) > 0 && msgs[0] == "09:30: after"
    }, 2*time.Second, 20*time.Millisecond)
}

func TestHandlers(t *testing.T) {
    net := memory.NewNetwork(quiet)
    a := startNode(t, net, "alpha")
    h := a.handlers()
    ctx := context.Background()

    sr, err := h.Subscribe(ctx, transport.SubscribeRequest{Service: "hype-sports"})
    require.NoError(t, err)
    assert.True(t, sr.Accepted)
    sr, _ = h.Subscribe(ctx, transport.SubscribeRequest{Service: "hype-sports"})
    assert.False(t, sr.Accepted)
    assert.Empty(t, sr.Error)
    sr, _ = h.Subscribe(ctx, transport.SubscribeRequest{})
    assert.Equal(t, ErrEmptyService.Error(), sr.Error)

    pr, err := h.Publish(ctx, transport.PublishRequest{Service: "hype-sports", Message: "goal"})
    require.NoError(t, err)
    assert.True(t, pr.Accepted)

    mr, err := h.Messages(ctx, transport.MessagesRequest{Service: "hype-sports"})
    require.NoError(t, err)
    assert.True(t, mr.Subscribed)
    assert.Equal(t, []string{"09:30: goal"}, mr.Messages)

    ur, _ := h.Unsubscribe(ctx, transport.UnsubscribeRequest{Service: "hype-sports"})
    assert.True(t, ur.Accepted)
    mr, _ = h.Messages(ctx, transport.MessagesRequest{Service: "hype-sports"})
    assert.False(t, mr.Subscribed)
}
