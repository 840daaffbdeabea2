package memberlist

import (
    "context"
    "io"
    "log"
    "net"
    "strconv"
    "testing"
    "time"

    "github.com/amirimatin/go-meshpubsub/pkg/mesh"
    "github.com/amirimatin/go-meshpubsub/pkg/protocol"
    "github.com/amirimatin/go-meshpubsub/pkg/pubsub"
)

var quiet = log.New(io.Discard, "", 0)

func freePort(t *testing.T) int {
    t.Helper()
    a, err := net.ListenPacket("udp", "127.0.0.1:0")
    if err != nil { t.Fatalf("freePort: %v", err) }
    defer a.Close()
    return a.LocalAddr().(*net.UDPAddr).Port
}

func TestMesh_StartLocal(t *testing.T) {
    addr := net.JoinHostPort("127.0.0.1", strconv.Itoa(freePort(t)))
    m, err := New(Options{NodeID: "t1", Bind: addr, Advertise: addr, Logger: quiet, ProbeInterval: 100 * time.Millisecond})
    if err != nil { t.Fatalf("new: %v", err) }
    if s := m.HealthScore(); s != -1 { t.Fatalf("health before start = %d, want -1", s) }
    ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
    defer cancel()
    if err := m.Start(ctx); err != nil { t.Fatalf("start: %v", err) }
    defer m.Stop()

    if got := m.Self().Instance.ID; got != "t1" { t.Fatalf("self id = %q, want t1", got) }
    if got := m.Self().Instance.Addr; got != addr { t.Fatalf("self addr = %q, want %q", got, addr) }
    if s := m.HealthScore(); s < 0 { t.Fatalf("unexpected health score: %d", s) }

    // alone in the mesh: responsible for everything
    key := protocol.HashServiceName("hype-news")
    if !m.SameClient(m.ResponsibleFor(key), m.Self()) { t.Fatalf("single node is not responsible") }

    var _ mesh.HealthReporter = m
}

func TestNew_Validation(t *testing.T) {
    if _, err := New(Options{Bind: ":0"}); err == nil { t.Fatalf("expected error for empty NodeID") }
    if _, err := New(Options{NodeID: "x"}); err == nil { t.Fatalf("expected error for empty Bind") }
}

type peer struct {
    m *Mesh
    e *pubsub.Engine
}

func startPeer(t *testing.T, ctx context.Context, id string) (*peer, string) {
    t.Helper()
    m, err := New(Options{NodeID: id, Bind: "127.0.0.1:0", Logger: quiet, ProbeInterval: 100 * time.Millisecond, SuspicionMult: 2})
    if err != nil { t.Fatalf("new %s: %v", id, err) }
    e, err := pubsub.New(pubsub.Options{Topology: m, Logger: quiet})
    if err != nil { t.Fatalf("engine %s: %v", id, err) }
    m.Handle(e.HandleFrame)
    if err := m.Start(ctx); err != nil { t.Fatalf("start %s: %v", id, err) }
    la := m.Self().Instance.Addr
    if la == "" { t.Fatalf("local addr empty for %s", id) }
    return &peer{m: m, e: e}, la
}

func awaitMembers(t *testing.T, m *Mesh, want int, timeout time.Duration) {
    t.Helper()
    deadline := time.Now().Add(timeout)
    for {
        got := m.Members()
        if len(got) == want { return }
        if time.Now().After(deadline) {
            t.Fatalf("members timeout: got=%d want=%d list=%v", len(got), want, got)
        }
        time.Sleep(100 * time.Millisecond)
    }
}

func awaitMessages(t *testing.T, e *pubsub.Engine, name string, want int, timeout time.Duration) {
    t.Helper()
    deadline := time.Now().Add(timeout)
    for {
        msgs, _ := e.Messages(name)
        if len(msgs) >= want { return }
        if time.Now().After(deadline) {
            t.Fatalf("messages timeout for %s: got=%d want=%d", name, len(msgs), want)
        }
        time.Sleep(50 * time.Millisecond)
    }
}

func TestMesh_PubSubAcrossNodes(t *testing.T) {
    ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
    defer cancel()

    p1, addr1 := startPeer(t, ctx, "n1")
    defer p1.m.Stop()
    p2, _ := startPeer(t, ctx, "n2")
    defer p2.m.Stop()
    if err := p2.m.Join([]string{addr1}); err != nil { t.Fatalf("n2 join: %v", err) }
    p3, _ := startPeer(t, ctx, "n3")
    defer p3.m.Stop()
    if err := p3.m.Join([]string{addr1}); err != nil { t.Fatalf("n3 join: %v", err) }

    peers := []*peer{p1, p2, p3}
    for _, p := range peers { awaitMembers(t, p.m, 3, 5*time.Second) }

    key := protocol.HashServiceName("hype-weather")
    want := p1.m.ResponsibleFor(key)
    for _, p := range peers[1:] {
        if !p.m.SameClient(want, p.m.ResponsibleFor(key)) { t.Fatalf("peers disagree on responsibility") }
    }

    for _, p := range peers {
        if !p.e.IssueSubscribe(ctx, "hype-weather") { t.Fatalf("subscribe failed") }
    }
    var mgr *peer
    for _, p := range peers {
        if p.m.SameClient(p.m.Self(), want) { mgr = p }
    }
    deadline := time.Now().Add(5 * time.Second)
    for {
        subs, _ := mgr.e.Subscribers(key)
        if len(subs) == 3 { break }
        if time.Now().After(deadline) { t.Fatalf("manager has %d subscribers, want 3", len(subs)) }
        time.Sleep(50 * time.Millisecond)
    }

    p2.e.IssuePublish(ctx, "hype-weather", "sunny")
    for _, p := range peers { awaitMessages(t, p.e, "hype-weather", 1, 5*time.Second) }
}
