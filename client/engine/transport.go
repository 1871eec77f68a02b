package engine

import (
	"context"
	"crypto/sha256"
	"crypto/tls"
	"crypto/x509"
	"encoding/base64"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"golang.org/x/net/http2"
)

type transportKey struct {
	tls   TLSOptions
	proxy Proxy
}

// transports caches one *http.Transport per distinct TLS/proxy setup so
// handles sharing a setup also share connection pools.
type transports struct {
	mu    sync.Mutex
	cache map[transportKey]*http.Transport
	opts  options
}

func newTransports(opts options) *transports {
	return &transports{
		cache: make(map[transportKey]*http.Transport),
		opts:  opts,
	}
}

func (t *transports) get(tlsOpts TLSOptions, proxy Proxy) (*http.Transport, error) {
	key := transportKey{tls: tlsOpts, proxy: proxy}

	t.mu.Lock()
	defer t.mu.Unlock()

	if tr, ok := t.cache[key]; ok {
		return tr, nil
	}

	tr, err := t.build(key)
	if err != nil {
		return nil, err
	}
	t.cache[key] = tr

	return tr, nil
}

func (t *transports) build(key transportKey) (*http.Transport, error) {
	tlsCfg, err := tlsConfig(key.tls)
	if err != nil {
		return nil, fmt.Errorf("tls config: %w", err)
	}

	proxyFn := http.ProxyFromEnvironment
	if key.proxy.URL != "" {
		u, err := url.Parse(key.proxy.URL)
		if err != nil {
			return nil, fmt.Errorf("parsing proxy url: %w", err)
		}
		if key.proxy.Username != "" {
			u.User = url.UserPassword(key.proxy.Username, key.proxy.Password)
		}
		proxyFn = http.ProxyURL(u)
	}

	maxIdle := t.opts.maxIdleConns
	if maxIdle == 0 {
		maxIdle = 100
	}

	tr := &http.Transport{
		Proxy:                 proxyFn,
		DialContext:           t.dial,
		TLSClientConfig:       tlsCfg,
		MaxIdleConns:          maxIdle,
		MaxIdleConnsPerHost:   maxIdle,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   proxyHandshakeTimeout,
		ExpectContinueTimeout: time.Second,
	}

	h2, err := http2.ConfigureTransports(tr)
	if err != nil {
		return nil, fmt.Errorf("configuring http2: %w", err)
	}
	tr.DialTLSContext = t.dialTLS(tr)
	if t.opts.readIdleTimeout > 0 {
		h2.ReadIdleTimeout = t.opts.readIdleTimeout
		h2.PingTimeout = 15 * time.Second
	}

	return tr, nil
}

func (t *transports) closeIdle() {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, tr := range t.cache {
		tr.CloseIdleConnections()
	}
}

func (t *transports) netDialer() *net.Dialer {
	keepAlive := t.opts.keepAlive
	if keepAlive == 0 {
		keepAlive = 30 * time.Second
	}
	return &net.Dialer{KeepAlive: keepAlive}
}

func (t *transports) dial(ctx context.Context, network, addr string) (net.Conn, error) {
	d := t.netDialer()
	d.Timeout = connectTimeout(ctx)

	return d.DialContext(ctx, network, addr)
}

// dialTLS connects and handshakes within a single connect timeout. The
// transport only calls it for direct https connections; tunnels through a
// proxy fall back to proxyHandshakeTimeout.
func (t *transports) dialTLS(tr *http.Transport) func(context.Context, string, string) (net.Conn, error) {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		if d := connectTimeout(ctx); d > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, d)
			defer cancel()
		}

		d := tls.Dialer{
			NetDialer: t.netDialer(),
			Config:    tr.TLSClientConfig,
		}

		return d.DialContext(ctx, network, addr)
	}
}

// proxyHandshakeTimeout bounds TLS handshakes the transport runs itself,
// which only happens over a proxy tunnel.
const proxyHandshakeTimeout = 10 * time.Second

type ctxKey int

const connectTimeoutKey ctxKey = 1

func withConnectTimeout(ctx context.Context, d time.Duration) context.Context {
	if d <= 0 {
		return ctx
	}
	return context.WithValue(ctx, connectTimeoutKey, d)
}

func connectTimeout(ctx context.Context) time.Duration {
	d, _ := ctx.Value(connectTimeoutKey).(time.Duration)
	return d
}

func tlsConfig(o TLSOptions) (*tls.Config, error) {
	cfg := &tls.Config{
		MinVersion:         tls.VersionTLS12,
		InsecureSkipVerify: !o.Verify,
	}

	if o.CABundle != "" || o.CAPath != "" {
		pool, err := certPool(o.CABundle, o.CAPath)
		if err != nil {
			return nil, err
		}
		cfg.RootCAs = pool
	}

	if o.CertFile != "" {
		cert, err := tls.LoadX509KeyPair(o.CertFile, o.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("loading client certificate: %w", err)
		}
		cfg.Certificates = []tls.Certificate{cert}
	}

	if o.PinnedPublicKey != "" {
		pins, err := parsePins(o.PinnedPublicKey)
		if err != nil {
			return nil, err
		}
		cfg.VerifyConnection = func(cs tls.ConnectionState) error {
			return verifyPins(cs, pins)
		}
	}

	return cfg, nil
}

func certPool(bundle, dir string) (*x509.CertPool, error) {
	pool := x509.NewCertPool()
	var found bool

	if bundle != "" {
		pem, err := os.ReadFile(bundle)
		if err != nil {
			return nil, fmt.Errorf("reading ca bundle: %w", err)
		}
		found = pool.AppendCertsFromPEM(pem)
	}

	if dir != "" {
		entries, err := os.ReadDir(dir)
		if err != nil {
			return nil, fmt.Errorf("reading ca path: %w", err)
		}
		for _, e := range entries {
			if e.IsDir() {
				continue
			}
			pem, err := os.ReadFile(filepath.Join(dir, e.Name()))
			if err != nil {
				return nil, fmt.Errorf("reading ca file: %w", err)
			}
			if pool.AppendCertsFromPEM(pem) {
				found = true
			}
		}
	}

	if !found {
		return nil, ErrNoCertificatesRead
	}

	return pool, nil
}

const pinPrefix = "sha256//"

func parsePins(s string) ([][]byte, error) {
	var pins [][]byte
	for p := range strings.SplitSeq(s, ";") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		enc, ok := strings.CutPrefix(p, pinPrefix)
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrInvalidPinnedKey, p)
		}
		sum, err := base64.StdEncoding.DecodeString(enc)
		if err != nil || len(sum) != sha256.Size {
			return nil, fmt.Errorf("%w: %q", ErrInvalidPinnedKey, p)
		}
		pins = append(pins, sum)
	}
	if len(pins) == 0 {
		return nil, ErrInvalidPinnedKey
	}

	return pins, nil
}

func verifyPins(cs tls.ConnectionState, pins [][]byte) error {
	if len(cs.PeerCertificates) == 0 {
		return ErrPinnedKeyMismatch
	}

	sum := sha256.Sum256(cs.PeerCertificates[0].RawSubjectPublicKeyInfo)
	for _, pin := range pins {
		if string(pin) == string(sum[:]) {
			return nil
		}
	}

	return ErrPinnedKeyMismatch
}

// PublicKeyPin returns the "sha256//<base64>" pin of the certificate's
// public key, suitable for TLSOptions.PinnedPublicKey.
func PublicKeyPin(cert *x509.Certificate) string {
	sum := sha256.Sum256(cert.RawSubjectPublicKeyInfo)
	return pinPrefix + base64.StdEncoding.EncodeToString(sum[:])
}
