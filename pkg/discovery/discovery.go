// Package discovery provides the seed addresses a node uses to join the
// mesh. Sources are static lists, DNS names and files/environment variables.
package discovery

import (
    "context"
    "sort"
)

// DefaultPort is the mesh port assumed when a source yields bare hosts.
const DefaultPort = 7946

// Discovery yields mesh seed addresses (host:port). Implementations must be
// safe for concurrent use and should return a fresh slice.
type Discovery interface {
    Seeds(ctx context.Context) []string
}

// Func adapts a function to Discovery.
type Func func(ctx context.Context) []string

func (f Func) Seeds(ctx context.Context) []string { return f(ctx) }

// Combine merges several sources into a sorted, de-duplicated seed list.
func Combine(sources ...Discovery) Discovery {
    return Func(func(ctx context.Context) []string {
        var all []string
        for _, s := range sources {
            if s == nil { continue }
            all = append(all, s.Seeds(ctx)...)
        }
        return Normalize(all)
    })
}

// Without drops the given addresses (typically the node's own advertise
// address) from the seeds of d.
func Without(d Discovery, addrs ...string) Discovery {
    skip := make(map[string]struct{}, len(addrs))
    for _, a := range addrs { skip[a] = struct{}{} }
    return Func(func(ctx context.Context) []string {
        var out []string
        for _, s := range d.Seeds(ctx) {
            if _, ok := skip[s]; !ok { out = append(out, s) }
        }
        return out
    })
}

// Normalize returns the unique entries of seeds, sorted.
func Normalize(seeds []string) []string {
    if len(seeds) == 0 { return nil }
    set := make(map[string]struct{}, len(seeds))
    out := make([]string, 0, len(seeds))
    for _, s := range seeds {
        if s == "" { continue }
        if _, ok := set[s]; ok { continue }
        set[s] = struct{}{}
        out = append(out, s)
    }
    sort.Strings(out)
    return out
}
