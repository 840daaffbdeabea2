package static

import (
    "context"
    "strings"

    "github.com/amirimatin/go-meshpubsub/pkg/discovery"
)

type staticSeeds []string

func (s staticSeeds) Seeds(context.Context) []string { return append([]string(nil), s...) }

// New returns a Discovery that always returns the given seeds, trimmed and
// with empty entries removed.
func New(seeds ...string) discovery.Discovery {
    cleaned := make(staticSeeds, 0, len(seeds))
    for _, v := range seeds {
        if v = strings.TrimSpace(v); v != "" {
            cleaned = append(cleaned, v)
        }
    }
    return cleaned
}

// Parse converts a comma-separated list (the --seeds flag) into seeds.
func Parse(csv string) []string {
    var out []string
    for _, p := range strings.Split(csv, ",") {
        if p = strings.TrimSpace(p); p != "" {
            out = append(out, p)
        }
    }
    return out
}
