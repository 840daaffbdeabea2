package dns

import (
    "context"
    "log"
    "net"
    "strconv"
    "strings"
    "sync"
    "time"

    "github.com/amirimatin/go-meshpubsub/pkg/discovery"
    "github.com/amirimatin/go-meshpubsub/pkg/internal/logutil"
)

// Options configures DNS-based discovery.
type Options struct {
    // Names are SRV records or hostnames to resolve.
    // Examples: "_hps._udp.example.com" (SRV) or "node1.example.com" (A/AAAA).
    // Entries already in host:port form are passed through.
    Names []string

    // Port used when resolving A/AAAA records. Zero means discovery.DefaultPort.
    Port int

    // Refresh controls cache staleness; if zero, defaults to 5s.
    Refresh time.Duration

    // Timeout bounds one resolution round; if zero, defaults to 2s.
    Timeout time.Duration

    // Resolver optionally overrides the DNS resolver used.
    Resolver *net.Resolver

    // Logger optional.
    Logger *log.Logger
}

type resolver struct {
    opts  Options
    mu    sync.Mutex
    last  time.Time
    cache []string
}

// New returns a DNS-backed discovery that resolves SRV and A/AAAA names
// and caches results for the Refresh duration.
func New(opts Options) discovery.Discovery {
    if opts.Refresh <= 0 { opts.Refresh = 5 * time.Second }
    if opts.Timeout <= 0 { opts.Timeout = 2 * time.Second }
    if opts.Port == 0 { opts.Port = discovery.DefaultPort }
    if opts.Resolver == nil { opts.Resolver = net.DefaultResolver }
    return &resolver{opts: opts}
}

func (d *resolver) Seeds(ctx context.Context) []string {
    d.mu.Lock()
    defer d.mu.Unlock()
    if time.Since(d.last) < d.opts.Refresh && len(d.cache) > 0 {
        return append([]string(nil), d.cache...)
    }
    rctx, cancel := context.WithTimeout(ctx, d.opts.Timeout)
    defer cancel()
    d.cache = d.resolveAll(rctx)
    d.last = time.Now()
    return append([]string(nil), d.cache...)
}

func (d *resolver) resolveAll(ctx context.Context) []string {
    var out []string
    for _, name := range d.opts.Names {
        name = strings.TrimSpace(name)
        switch {
        case name == "":
        case isSRV(name):
            if recs := d.lookupSRV(ctx, name); len(recs) > 0 {
                out = append(out, recs...)
            } else {
                out = append(out, d.lookupHost(ctx, name)...)
            }
        case strings.Contains(name, ":"):
            out = append(out, name)
        default:
            out = append(out, d.lookupHost(ctx, name)...)
        }
    }
    return discovery.Normalize(out)
}

func isSRV(name string) bool { return strings.HasPrefix(name, "_") && strings.Contains(name, "._") }

func (d *resolver) lookupSRV(ctx context.Context, fqdn string) []string {
    svc, proto, domain := parseSRVName(fqdn)
    if svc == "" || proto == "" || domain == "" { return nil }
    _, addrs, err := d.opts.Resolver.LookupSRV(ctx, svc, proto, domain)
    if err != nil {
        logutil.Debugf(d.opts.Logger, "dns discovery: SRV %s: %v", fqdn, err)
        return nil
    }
    out := make([]string, 0, len(addrs))
    for _, a := range addrs {
        out = append(out, net.JoinHostPort(strings.TrimSuffix(a.Target, "."), strconv.Itoa(int(a.Port))))
    }
    return out
}

func (d *resolver) lookupHost(ctx context.Context, host string) []string {
    ips, err := d.opts.Resolver.LookupHost(ctx, host)
    if err != nil {
        logutil.Debugf(d.opts.Logger, "dns discovery: host %s: %v", host, err)
        return nil
    }
    out := make([]string, 0, len(ips))
    for _, ip := range ips {
        out = append(out, net.JoinHostPort(ip, strconv.Itoa(d.opts.Port)))
    }
    return out
}

// parseSRVName splits "_service._proto.name".
func parseSRVName(fqdn string) (service, proto, name string) {
    parts := strings.SplitN(fqdn, ".", 3)
    if len(parts) < 3 { return "", "", "" }
    return strings.TrimPrefix(parts[0], "_"), strings.TrimPrefix(parts[1], "_"), parts[2]
}
