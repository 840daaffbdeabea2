package file

import (
    "bufio"
    "context"
    "io"
    "os"
    "path/filepath"
    "strings"
    "sync"
    "time"

    "github.com/amirimatin/go-meshpubsub/pkg/discovery"
)

// DefaultEnv is read when Options.Env is empty.
const DefaultEnv = "HPS_SEEDS"

// Options configures file/ENV-based discovery.
type Options struct {
    // Path to a file (or glob) with one seed per line or comma-separated lists.
    // Lines starting with '#' are comments.
    Path string
    // Env names an environment variable that overrides the file when set.
    Env string
    // Refresh controls cache staleness; if zero, defaults to 5s.
    Refresh time.Duration
}

type source struct {
    opts  Options
    mu    sync.Mutex
    last  time.Time
    mtime time.Time
    cache []string
}

func New(opts Options) discovery.Discovery {
    if opts.Refresh <= 0 { opts.Refresh = 5 * time.Second }
    if opts.Env == "" { opts.Env = DefaultEnv }
    return &source{opts: opts}
}

func (s *source) Seeds(context.Context) []string {
    s.mu.Lock()
    defer s.mu.Unlock()
    if v := strings.TrimSpace(os.Getenv(s.opts.Env)); v != "" {
        return parse(strings.NewReader(v))
    }
    if s.opts.Path == "" {
        return nil
    }
    now := time.Now()
    if stat, err := os.Stat(s.opts.Path); err == nil {
        if stat.ModTime().After(s.mtime) || now.Sub(s.last) >= s.opts.Refresh {
            s.cache = load(s.opts.Path)
            s.last = now
            s.mtime = stat.ModTime()
        }
        return append([]string(nil), s.cache...)
    }
    if matches, _ := filepath.Glob(s.opts.Path); len(matches) > 0 {
        var all []string
        for _, m := range matches { all = append(all, load(m)...) }
        s.cache = discovery.Normalize(all)
        s.last = now
    }
    return append([]string(nil), s.cache...)
}

func load(path string) []string {
    f, err := os.Open(path)
    if err != nil { return nil }
    defer f.Close()
    return parse(f)
}

func parse(r io.Reader) []string {
    var seeds []string
    sc := bufio.NewScanner(r)
    for sc.Scan() {
        line := strings.TrimSpace(sc.Text())
        if line == "" || strings.HasPrefix(line, "#") { continue }
        for _, p := range strings.Split(line, ",") {
            seeds = append(seeds, strings.TrimSpace(p))
        }
    }
    if sc.Err() != nil { return nil }
    return discovery.Normalize(seeds)
}
