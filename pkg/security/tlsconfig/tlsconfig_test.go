package tlsconfig

import (
    "crypto/ecdsa"
    "crypto/elliptic"
    "crypto/rand"
    "crypto/tls"
    "crypto/x509"
    "crypto/x509/pkix"
    "encoding/pem"
    "errors"
    "math/big"
    "os"
    "path/filepath"
    "testing"
    "time"
)

// writeSelfSigned writes a self-signed CA certificate and key to dir.
func writeSelfSigned(t *testing.T, dir, name string, serial int64) (certFile, keyFile string) {
    t.Helper()
    key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
    if err != nil { t.Fatal(err) }
    tmpl := &x509.Certificate{
        SerialNumber:          big.NewInt(serial),
        Subject:               pkix.Name{CommonName: name},
        NotBefore:             time.Now().Add(-time.Hour),
        NotAfter:              time.Now().Add(time.Hour),
        IsCA:                  true,
        BasicConstraintsValid: true,
        KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageDigitalSignature,
        ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth, x509.ExtKeyUsageClientAuth},
        DNSNames:              []string{"localhost"},
    }
    der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
    if err != nil { t.Fatal(err) }
    kb, err := x509.MarshalECPrivateKey(key)
    if err != nil { t.Fatal(err) }
    certFile = filepath.Join(dir, name+".crt")
    keyFile = filepath.Join(dir, name+".key")
    if err := os.WriteFile(certFile, pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der}), 0o600); err != nil { t.Fatal(err) }
    if err := os.WriteFile(keyFile, pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: kb}), 0o600); err != nil { t.Fatal(err) }
    return certFile, keyFile
}

func TestDisabledReturnsNil(t *testing.T) {
    var o Options
    for _, f := range []func() (*tls.Config, error){o.Server, o.Client, o.ServerHotReload, o.ClientHotReload} {
        cfg, err := f()
        if cfg != nil || err != nil { t.Fatalf("disabled: got %v, %v", cfg, err) }
    }
}

func TestServerRequiresKeyPair(t *testing.T) {
    o := Options{Enable: true}
    if _, err := o.Server(); !errors.Is(err, ErrMissingKeyPair) { t.Fatalf("err = %v", err) }
    if _, err := o.ServerHotReload(); !errors.Is(err, ErrMissingKeyPair) { t.Fatalf("err = %v", err) }
}

func TestServerAndClientMTLS(t *testing.T) {
    dir := t.TempDir()
    cert, key := writeSelfSigned(t, dir, "node", 1)
    o := Options{Enable: true, CAFile: cert, CertFile: cert, KeyFile: key, ServerName: "localhost"}

    srv, err := o.Server()
    if err != nil { t.Fatalf("server: %v", err) }
    if srv.ClientAuth != tls.RequireAndVerifyClientCert || srv.ClientCAs == nil { t.Fatalf("server not mTLS") }
    if len(srv.Certificates) != 1 { t.Fatalf("server cert not loaded") }

    cli, err := o.Client()
    if err != nil { t.Fatalf("client: %v", err) }
    if cli.RootCAs == nil || cli.ServerName != "localhost" || len(cli.Certificates) != 1 { t.Fatalf("client config incomplete") }
}

func TestBadCAFile(t *testing.T) {
    dir := t.TempDir()
    bad := filepath.Join(dir, "ca.pem")
    if err := os.WriteFile(bad, []byte("not pem"), 0o600); err != nil { t.Fatal(err) }
    o := Options{Enable: true, CAFile: bad}
    if _, err := o.Client(); !errors.Is(err, ErrNoCACerts) { t.Fatalf("err = %v", err) }
}

func TestHotReloadPicksUpRotation(t *testing.T) {
    dir := t.TempDir()
    cert, key := writeSelfSigned(t, dir, "node", 1)
    o := Options{Enable: true, CertFile: cert, KeyFile: key}
    r := o.reloader()
    now := time.Now()
    r.now = func() time.Time { return now }

    c1, err := r.get()
    if err != nil { t.Fatal(err) }
    writeSelfSigned(t, dir, "node", 2)

    c2, _ := r.get()
    if c2 != c1 { t.Fatalf("certificate reloaded before ttl") }

    now = now.Add(defaultReloadInterval)
    c3, err := r.get()
    if err != nil { t.Fatal(err) }
    leaf, err := x509.ParseCertificate(c3.Certificate[0])
    if err != nil { t.Fatal(err) }
    if leaf.SerialNumber.Int64() != 2 { t.Fatalf("serial = %d, want rotated 2", leaf.SerialNumber.Int64()) }

    srv, err := o.ServerHotReload()
    if err != nil || srv.GetCertificate == nil { t.Fatalf("hot reload server: %v", err) }
    cli, err := o.ClientHotReload()
    if err != nil || cli.GetClientCertificate == nil { t.Fatalf("hot reload client: %v", err) }
}
