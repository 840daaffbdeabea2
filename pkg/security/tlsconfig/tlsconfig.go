// Package tlsconfig builds mTLS configurations for the management API from
// PEM files, optionally re-reading certificates so they can be rotated
// without restarting the node.
package tlsconfig

import (
    "crypto/tls"
    "crypto/x509"
    "errors"
    "fmt"
    "os"
    "sync"
    "time"
)

var (
    ErrMissingKeyPair = errors.New("tls: server cert/key required when TLS enabled")
    ErrNoCACerts      = errors.New("tls: no certificates found in CA file")
)

const defaultReloadInterval = 10 * time.Second

// Options defines mTLS configuration inputs.
type Options struct {
    Enable             bool
    CAFile             string
    CertFile           string
    KeyFile            string
    InsecureSkipVerify bool
    ServerName         string
    // ReloadInterval is how long a loaded certificate is reused by the
    // hot-reload configs. Zero means 10s.
    ReloadInterval time.Duration
}

func loadPool(path string) (*x509.CertPool, error) {
    ca, err := os.ReadFile(path)
    if err != nil { return nil, err }
    pool := x509.NewCertPool()
    if !pool.AppendCertsFromPEM(ca) {
        return nil, fmt.Errorf("%w: %s", ErrNoCACerts, path)
    }
    return pool, nil
}

func (o Options) base() *tls.Config {
    return &tls.Config{MinVersion: tls.VersionTLS12}
}

func (o Options) server() (*tls.Config, error) {
    if o.CertFile == "" || o.KeyFile == "" { return nil, ErrMissingKeyPair }
    cfg := o.base()
    if o.CAFile != "" {
        pool, err := loadPool(o.CAFile)
        if err != nil { return nil, err }
        cfg.ClientCAs = pool
        cfg.ClientAuth = tls.RequireAndVerifyClientCert
    }
    return cfg, nil
}

func (o Options) client() (*tls.Config, error) {
    cfg := o.base()
    cfg.InsecureSkipVerify = o.InsecureSkipVerify //nolint:gosec
    cfg.ServerName = o.ServerName
    if o.CAFile != "" {
        pool, err := loadPool(o.CAFile)
        if err != nil { return nil, err }
        cfg.RootCAs = pool
    }
    return cfg, nil
}

// Server returns a tls.Config for servers if enabled, otherwise nil.
func (o Options) Server() (*tls.Config, error) {
    if !o.Enable { return nil, nil }
    cfg, err := o.server()
    if err != nil { return nil, err }
    cert, err := tls.LoadX509KeyPair(o.CertFile, o.KeyFile)
    if err != nil { return nil, err }
    cfg.Certificates = []tls.Certificate{cert}
    return cfg, nil
}

// Client returns a tls.Config for clients if enabled, otherwise nil.
func (o Options) Client() (*tls.Config, error) {
    if !o.Enable { return nil, nil }
    cfg, err := o.client()
    if err != nil { return nil, err }
    if o.CertFile != "" && o.KeyFile != "" {
        cert, err := tls.LoadX509KeyPair(o.CertFile, o.KeyFile)
        if err != nil { return nil, err }
        cfg.Certificates = []tls.Certificate{cert}
    }
    return cfg, nil
}

// ServerHotReload is like Server but re-reads the key pair from disk at most
// once per ReloadInterval, on handshake. The CA pool is loaded once.
func (o Options) ServerHotReload() (*tls.Config, error) {
    if !o.Enable { return nil, nil }
    cfg, err := o.server()
    if err != nil { return nil, err }
    r := o.reloader()
    if _, err := r.get(); err != nil { return nil, err }
    cfg.GetCertificate = func(*tls.ClientHelloInfo) (*tls.Certificate, error) { return r.get() }
    return cfg, nil
}

// ClientHotReload is like Client but re-reads the client key pair on demand.
func (o Options) ClientHotReload() (*tls.Config, error) {
    if !o.Enable { return nil, nil }
    cfg, err := o.client()
    if err != nil { return nil, err }
    if o.CertFile == "" || o.KeyFile == "" { return cfg, nil }
    r := o.reloader()
    cfg.GetClientCertificate = func(*tls.CertificateRequestInfo) (*tls.Certificate, error) { return r.get() }
    return cfg, nil
}

func (o Options) reloader() *certReloader {
    ttl := o.ReloadInterval
    if ttl <= 0 { ttl = defaultReloadInterval }
    return &certReloader{certFile: o.CertFile, keyFile: o.KeyFile, ttl: ttl, now: time.Now}
}

// certReloader caches a key pair for ttl.
type certReloader struct {
    certFile, keyFile string
    ttl               time.Duration
    now               func() time.Time

    mu       sync.RWMutex
    cached   *tls.Certificate
    loadedAt time.Time
}

func (r *certReloader) get() (*tls.Certificate, error) {
    r.mu.RLock()
    if r.cached != nil && r.now().Sub(r.loadedAt) < r.ttl {
        c := r.cached
        r.mu.RUnlock()
        return c, nil
    }
    r.mu.RUnlock()
    cert, err := tls.LoadX509KeyPair(r.certFile, r.keyFile)
    if err != nil { return nil, err }
    r.mu.Lock()
    r.cached = &cert
    r.loadedAt = r.now()
    r.mu.Unlock()
    return &cert, nil
}
