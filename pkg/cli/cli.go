// Package cli provides cobra commands to run a pub/sub node and to drive
// a running node through its management API.
package cli

import (
    "context"
    "encoding/json"
    "fmt"
    "io"
    "log"
    "os"
    "os/signal"
    "syscall"
    "time"

    "github.com/spf13/cobra"

    "github.com/amirimatin/go-meshpubsub/pkg/bootstrap"
    dStatic "github.com/amirimatin/go-meshpubsub/pkg/discovery/static"
    "github.com/amirimatin/go-meshpubsub/pkg/internal/logutil"
    "github.com/amirimatin/go-meshpubsub/pkg/notify"
    tracing "github.com/amirimatin/go-meshpubsub/pkg/observability/tracing"
    "github.com/amirimatin/go-meshpubsub/pkg/transport"
)

// AddAll attaches the node subcommands to the provided root command.
func AddAll(root *cobra.Command) {
    root.AddCommand(NewRunCmd())
    root.AddCommand(NewStatusCmd())
    root.AddCommand(NewSubscribeCmd())
    root.AddCommand(NewUnsubscribeCmd())
    root.AddCommand(NewPublishCmd())
    root.AddCommand(NewMessagesCmd())
    root.AddCommand(NewWatchCmd())
}

func bindTLS(cmd *cobra.Command, t *bootstrap.TLS, role string) {
    cmd.Flags().BoolVar(&t.Enable, "tls-enable", false, "enable mTLS for management transport")
    cmd.Flags().StringVar(&t.CA, "tls-ca", "", "path to CA cert (PEM)")
    cmd.Flags().StringVar(&t.Cert, "tls-cert", "", "path to "+role+" certificate (PEM)")
    cmd.Flags().StringVar(&t.Key, "tls-key", "", "path to "+role+" private key (PEM)")
    cmd.Flags().BoolVar(&t.SkipVerify, "tls-skip-verify", false, "skip server cert verification (DEV ONLY)")
    cmd.Flags().StringVar(&t.ServerName, "tls-server-name", "", "expected server name (for TLS validation)")
}

// NewRunCmd returns the "run" command used to start a node.
func NewRunCmd() *cobra.Command {
    var (
        cfg                   bootstrap.Config
        joinCSV, subscribeCSV string
        standard, traceEnable bool
        jsonLogs, debugLogs   bool
    )
    cmd := &cobra.Command{
        Use:   "run",
        Short: "Run a pub/sub node",
        RunE: func(cmd *cobra.Command, args []string) error {
            if jsonLogs { logutil.SetJSON(true) }
            if debugLogs { logutil.SetDebug(true) }
            ctx, cancel := signalContext()
            defer cancel()

            if traceEnable {
                shutdown, err := tracing.Setup(true)
                if err != nil {
                    log.Printf("tracing setup error: %v", err)
                } else {
                    defer func() { _ = shutdown(context.Background()) }()
                }
            }

            cfg.SeedsCSV = joinCSV
            cfg.Logger = log.Default()
            cfg.AutoSubscribe = dStatic.Parse(subscribeCSV)
            if standard {
                cfg.AutoSubscribe = append(cfg.AutoSubscribe, bootstrap.StandardServices...)
            }
            n, err := bootstrap.Run(ctx, cfg)
            if err != nil { return err }
            defer n.Close()

            st, _ := n.Status(ctx)
            fmt.Fprintf(cmd.OutOrStdout(), "node %s running. Press Ctrl+C to exit.\n", st.Self.ID)
            <-ctx.Done()
            return nil
        },
    }
    f := cmd.Flags()
    f.StringVar(&cfg.NodeID, "id", "", "node id (default: random UUID)")
    f.StringVar(&cfg.MemBind, "mem-bind", ":7946", "mesh bind addr (host:port)")
    f.StringVar(&cfg.MemAdv, "mem-adv", "", "mesh advertise addr (host:port, optional)")
    f.StringVar(&joinCSV, "join", "", "comma-separated seed nodes (host:port)")
    f.StringVar(&cfg.MgmtAddr, "mgmt-addr", ":17946", "management address (tcp), separate from mesh port")
    f.StringVar(&cfg.MgmtProto, "mgmt-proto", "http", "management RPC protocol: http|grpc")
    f.StringVar(&cfg.DiscoveryKind, "discovery", "static", "discovery backend: static|dns|file")
    f.StringVar(&cfg.DNSNamesCSV, "dns-names", "", "comma-separated DNS names or SRV records (e.g., _hps._udp.example.com)")
    f.IntVar(&cfg.DNSPort, "dns-port", 7946, "port used for A/AAAA lookups")
    f.DurationVar(&cfg.DiscRefresh, "disc-refresh", 5*time.Second, "discovery refresh/cache duration")
    f.StringVar(&cfg.FilePath, "file-path", "", "path or glob to a file with seeds (one per line or CSV)")
    f.StringVar(&cfg.FileEnv, "file-env", "", "ENV var name containing CSV seeds; overrides file when set")
    f.DurationVar(&cfg.ReconcileInterval, "reconcile-interval", 2*time.Second, "period of the rebalancing pass")
    f.IntVar(&cfg.MaxMessages, "max-messages", 0, "messages kept per subscription (0 = unbounded)")
    f.StringVar(&subscribeCSV, "subscribe", "", "comma-separated services to subscribe to at startup")
    f.BoolVar(&standard, "subscribe-standard", false, "also subscribe to the standard hype-* services")
    f.BoolVar(&traceEnable, "trace", false, "enable OpenTelemetry stdout tracing (dev)")
    f.BoolVar(&jsonLogs, "log-json", false, "emit JSON log lines")
    f.BoolVar(&debugLogs, "log-debug", false, "emit debug log lines")
    bindTLS(cmd, &cfg.TLS, "node")
    return cmd
}

// remote holds the flags shared by commands talking to a running node.
type remote struct {
    addr    string
    proto   string
    timeout time.Duration
    tls     bootstrap.TLS
}

func (r *remote) bind(cmd *cobra.Command, proto string) {
    cmd.Flags().StringVar(&r.addr, "addr", "127.0.0.1:17946", "management address of a node (host:port)")
    cmd.Flags().StringVar(&r.proto, "mgmt-proto", proto, "management RPC protocol: http|grpc")
    cmd.Flags().DurationVar(&r.timeout, "timeout", 3*time.Second, "request timeout")
    bindTLS(cmd, &r.tls, "client")
}

// call runs fn against a fresh client with the request timeout applied.
func (r *remote) call(fn func(ctx context.Context, c transport.RPCClient) error) error {
    c, err := bootstrap.NewClient(r.proto, r.timeout, r.tls)
    if err != nil { return err }
    defer c.Close()
    ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
    defer cancel()
    return fn(ctx, c)
}

func writeJSON(w io.Writer, v any) error {
    enc := json.NewEncoder(w)
    enc.SetIndent("", "  ")
    return enc.Encode(v)
}

// NewStatusCmd returns the "status" command.
func NewStatusCmd() *cobra.Command {
    var r remote
    cmd := &cobra.Command{
        Use:   "status",
        Short: "Fetch node status as JSON",
        Args:  cobra.NoArgs,
        RunE: func(cmd *cobra.Command, args []string) error {
            return r.call(func(ctx context.Context, c transport.RPCClient) error {
                data, err := c.GetStatus(ctx, r.addr)
                if err != nil { return fmt.Errorf("status error: %w", err) }
                out := cmd.OutOrStdout()
                _, _ = out.Write(data)
                if len(data) == 0 || data[len(data)-1] != '\n' { _, _ = out.Write([]byte("\n")) }
                return nil
            })
        },
    }
    r.bind(cmd, "http")
    return cmd
}

// NewSubscribeCmd returns the "subscribe SERVICE" command.
func NewSubscribeCmd() *cobra.Command {
    var r remote
    cmd := &cobra.Command{
        Use:   "subscribe SERVICE",
        Short: "Subscribe the node to a service",
        Args:  cobra.ExactArgs(1),
        RunE: func(cmd *cobra.Command, args []string) error {
            return r.call(func(ctx context.Context, c transport.RPCClient) error {
                resp, err := c.PostSubscribe(ctx, r.addr, transport.SubscribeRequest{Service: args[0]})
                if err != nil { return fmt.Errorf("subscribe error: %w", err) }
                return writeJSON(cmd.OutOrStdout(), resp)
            })
        },
    }
    r.bind(cmd, "http")
    return cmd
}

// NewUnsubscribeCmd returns the "unsubscribe SERVICE" command.
func NewUnsubscribeCmd() *cobra.Command {
    var r remote
    cmd := &cobra.Command{
        Use:   "unsubscribe SERVICE",
        Short: "Drop the node's subscription to a service",
        Args:  cobra.ExactArgs(1),
        RunE: func(cmd *cobra.Command, args []string) error {
            return r.call(func(ctx context.Context, c transport.RPCClient) error {
                resp, err := c.PostUnsubscribe(ctx, r.addr, transport.UnsubscribeRequest{Service: args[0]})
                if err != nil { return fmt.Errorf("unsubscribe error: %w", err) }
                return writeJSON(cmd.OutOrStdout(), resp)
            })
        },
    }
    r.bind(cmd, "http")
    return cmd
}

// NewPublishCmd returns the "publish SERVICE MESSAGE" command.
func NewPublishCmd() *cobra.Command {
    var r remote
    cmd := &cobra.Command{
        Use:   "publish SERVICE MESSAGE",
        Short: "Publish a message on a service",
        Args:  cobra.ExactArgs(2),
        RunE: func(cmd *cobra.Command, args []string) error {
            return r.call(func(ctx context.Context, c transport.RPCClient) error {
                resp, err := c.PostPublish(ctx, r.addr, transport.PublishRequest{Service: args[0], Message: args[1]})
                if err != nil { return fmt.Errorf("publish error: %w", err) }
                return writeJSON(cmd.OutOrStdout(), resp)
            })
        },
    }
    r.bind(cmd, "http")
    return cmd
}

// NewMessagesCmd returns the "messages SERVICE" command.
func NewMessagesCmd() *cobra.Command {
    var r remote
    cmd := &cobra.Command{
        Use:   "messages SERVICE",
        Short: "List messages the node received on a service, newest first",
        Args:  cobra.ExactArgs(1),
        RunE: func(cmd *cobra.Command, args []string) error {
            return r.call(func(ctx context.Context, c transport.RPCClient) error {
                resp, err := c.PostMessages(ctx, r.addr, transport.MessagesRequest{Service: args[0]})
                if err != nil { return fmt.Errorf("messages error: %w", err) }
                return writeJSON(cmd.OutOrStdout(), resp)
            })
        },
    }
    r.bind(cmd, "http")
    return cmd
}

// NewWatchCmd returns the "watch" command, which streams node events until
// interrupted. It needs the gRPC management protocol.
func NewWatchCmd() *cobra.Command {
    var r remote
    cmd := &cobra.Command{
        Use:   "watch",
        Short: "Stream node events (gRPC management only)",
        Args:  cobra.NoArgs,
        RunE: func(cmd *cobra.Command, args []string) error {
            c, err := bootstrap.NewClient(r.proto, r.timeout, r.tls)
            if err != nil { return err }
            defer c.Close()
            w, ok := c.(transport.EventWatcher)
            if !ok { return fmt.Errorf("watch not supported by %s transport; use --mgmt-proto grpc", r.proto) }
            ctx, cancel := signalContext()
            defer cancel()
            enc := json.NewEncoder(cmd.OutOrStdout())
            err = w.Watch(ctx, r.addr, func(ev notify.Event) { _ = enc.Encode(ev) })
            if err != nil && ctx.Err() == nil { return fmt.Errorf("watch error: %w", err) }
            return nil
        },
    }
    r.bind(cmd, "grpc")
    return cmd
}

func signalContext() (context.Context, context.CancelFunc) {
    return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
