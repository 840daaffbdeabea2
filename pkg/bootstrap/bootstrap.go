// Package bootstrap assembles a node from a flat Config: memberlist mesh,
// seed discovery, management server and optional mTLS.
package bootstrap

import (
    "context"
    "crypto/tls"
    "errors"
    "fmt"
    "log"
    "time"

    "github.com/google/uuid"

    "github.com/amirimatin/go-meshpubsub/pkg/discovery"
    dDNS "github.com/amirimatin/go-meshpubsub/pkg/discovery/dns"
    dFile "github.com/amirimatin/go-meshpubsub/pkg/discovery/file"
    dStatic "github.com/amirimatin/go-meshpubsub/pkg/discovery/static"
    ml "github.com/amirimatin/go-meshpubsub/pkg/mesh/memberlist"
    "github.com/amirimatin/go-meshpubsub/pkg/node"
    "github.com/amirimatin/go-meshpubsub/pkg/pubsub"
    tlsx "github.com/amirimatin/go-meshpubsub/pkg/security/tlsconfig"
    "github.com/amirimatin/go-meshpubsub/pkg/transport"
    mgmtgrpc "github.com/amirimatin/go-meshpubsub/pkg/transport/grpc"
    httpjson "github.com/amirimatin/go-meshpubsub/pkg/transport/httpjson"
)

var ErrUnknownProto = errors.New("bootstrap: unknown management protocol")

// StandardServices is the preset offered by `run --subscribe-standard`.
var StandardServices = []string{"hype-jobs", "hype-sports", "hype-news", "hype-weather", "hype-music", "hype-movies"}

// TLS holds the management mTLS settings shared by servers and clients.
type TLS struct {
    Enable     bool
    CA         string
    Cert       string
    Key        string
    ServerName string
    SkipVerify bool
}

func (t TLS) options() tlsx.Options {
    return tlsx.Options{Enable: t.Enable, CAFile: t.CA, CertFile: t.Cert, KeyFile: t.Key, InsecureSkipVerify: t.SkipVerify, ServerName: t.ServerName}
}

// Config defines high-level inputs to assemble a node with sensible
// defaults. Applications embed a node by providing this structure and
// calling Build/Run.
type Config struct {
    // Identity and addresses. An empty NodeID gets a random UUID.
    NodeID  string
    MemBind string // mesh bind host:port
    MemAdv  string // optional advertise host:port

    // Management API (status/pubsub/metrics)
    MgmtAddr  string // host:port for management API (HTTP or gRPC); empty disables it
    MgmtProto string // "http" (default) or "grpc"

    // Discovery settings
    DiscoveryKind string        // "static" (default), "dns", or "file"
    SeedsCSV      string        // static seeds; also added to dns/file results
    DNSNamesCSV   string        // used when kind=dns
    DNSPort       int           // used when kind=dns (A/AAAA)
    DiscRefresh   time.Duration // cache/refresh duration for discovery
    FilePath      string        // used when kind=file
    FileEnv       string        // used when kind=file

    TLS TLS

    // Engine tuning
    ReconcileInterval time.Duration
    MaxMessages       int
    AutoSubscribe     []string

    // Mesh failure detector tuning (zero keeps memberlist defaults)
    ProbeInterval time.Duration
    ProbeTimeout  time.Duration

    // Logger (optional). If nil, log.Default() is used.
    Logger *log.Logger

    // Notifier receives engine events in addition to the node's bus. Optional.
    Notifier pubsub.Notifier
}

func (cfg Config) discovery() discovery.Discovery {
    static := dStatic.New(dStatic.Parse(cfg.SeedsCSV)...)
    var disc discovery.Discovery
    switch cfg.DiscoveryKind {
    case "dns":
        opts := dDNS.Options{Names: dStatic.Parse(cfg.DNSNamesCSV), Port: cfg.DNSPort, Logger: cfg.Logger}
        if cfg.DiscRefresh > 0 { opts.Refresh = cfg.DiscRefresh }
        disc = discovery.Combine(dDNS.New(opts), static)
    case "file":
        opts := dFile.Options{Path: cfg.FilePath, Env: cfg.FileEnv}
        if cfg.DiscRefresh > 0 { opts.Refresh = cfg.DiscRefresh }
        disc = discovery.Combine(dFile.New(opts), static)
    default:
        disc = static
    }
    // a node never seeds itself
    return discovery.Without(disc, cfg.MemBind, cfg.MemAdv)
}

func (cfg Config) server() (transport.RPCServer, error) {
    if cfg.MgmtAddr == "" { return nil, nil }
    srvTLS, err := cfg.TLS.options().ServerHotReload()
    if err != nil { return nil, fmt.Errorf("tls server config: %w", err) }
    switch cfg.MgmtProto {
    case "grpc":
        s := mgmtgrpc.NewServer(cfg.MgmtAddr)
        if srvTLS != nil { s.UseTLS(srvTLS) }
        return s, nil
    case "", "http":
        s := httpjson.NewServer(cfg.MgmtAddr, cfg.Logger)
        if srvTLS != nil { s.UseTLS(srvTLS) }
        return s, nil
    }
    return nil, fmt.Errorf("%w: %q", ErrUnknownProto, cfg.MgmtProto)
}

// Build assembles a node.Node from Config without starting it.
func Build(cfg Config) (*node.Node, error) {
    if cfg.Logger == nil { cfg.Logger = log.Default() }
    if cfg.NodeID == "" { cfg.NodeID = uuid.NewString() }
    if cfg.MemBind == "" { cfg.MemBind = fmt.Sprintf(":%d", discovery.DefaultPort) }

    srv, err := cfg.server()
    if err != nil { return nil, err }

    // Gossip the management address so tooling can reach any member.
    meta := map[string]string{}
    if cfg.MgmtAddr != "" { meta["mgmt"] = cfg.MgmtAddr }
    m, err := ml.New(ml.Options{
        NodeID:        cfg.NodeID,
        Bind:          cfg.MemBind,
        Advertise:     cfg.MemAdv,
        Logger:        cfg.Logger,
        Meta:          meta,
        ProbeInterval: cfg.ProbeInterval,
        ProbeTimeout:  cfg.ProbeTimeout,
    })
    if err != nil { return nil, err }

    return node.New(context.Background(), node.Options{
        Mesh:              m,
        Discovery:         cfg.discovery(),
        Logger:            cfg.Logger,
        RPCServer:         srv,
        ReconcileInterval: cfg.ReconcileInterval,
        MaxMessages:       cfg.MaxMessages,
        AutoSubscribe:     cfg.AutoSubscribe,
        Notifier:          cfg.Notifier,
    })
}

// Run builds and starts the node, returning the instance for lifecycle
// control. The caller is responsible for calling Close() when finished.
func Run(ctx context.Context, cfg Config) (*node.Node, error) {
    n, err := Build(cfg)
    if err != nil { return nil, err }
    if err := n.Start(ctx); err != nil { return nil, err }
    return n, nil
}

// Client is a management client; Close releases cached connections.
type Client interface {
    transport.RPCClient
    Close()
}

type httpClient struct{ *httpjson.Client }

func (httpClient) Close() {}

// NewClient returns a management client for proto ("http" or "grpc").
func NewClient(proto string, timeout time.Duration, t TLS) (Client, error) {
    var cliTLS *tls.Config
    if t.Enable {
        var err error
        cliTLS, err = t.options().ClientHotReload()
        if err != nil { return nil, fmt.Errorf("tls client config: %w", err) }
    }
    switch proto {
    case "grpc":
        c := mgmtgrpc.NewClient(timeout)
        if cliTLS != nil { c.UseTLS(cliTLS) }
        return c, nil
    case "", "http":
        c := httpjson.NewClient(timeout)
        if cliTLS != nil { c.UseTLS(cliTLS) }
        return httpClient{c}, nil
    }
    return nil, fmt.Errorf("%w: %q", ErrUnknownProto, proto)
}
