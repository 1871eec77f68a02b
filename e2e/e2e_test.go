//go:build integration

package e2e_test

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/pem"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/adamwoolhether/asynchttp"
	"github.com/adamwoolhether/asynchttp/client"
	"github.com/adamwoolhether/asynchttp/client/download"
	"github.com/adamwoolhether/asynchttp/config"
	"github.com/adamwoolhether/asynchttp/internal/httpbin"
)

// -------------------------------------------------------------------------
// Helpers
// -------------------------------------------------------------------------

type env struct {
	c   *client.Client
	url string
}

// newEnv starts a TLS echo server and a client configured from a YAML
// file that trusts it.
func newEnv(t *testing.T, extra string) env {
	t.Helper()

	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

	srv := httpbin.NewTLSServer(httpbin.WithLogger(log))
	t.Cleanup(srv.Close)

	dir := t.TempDir()
	bundle := filepath.Join(dir, "ca.pem")
	pemBytes := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: srv.Certificate().Raw})
	if err := os.WriteFile(bundle, pemBytes, 0o644); err != nil {
		t.Fatal(err)
	}

	yml := fmt.Sprintf("client:\n  ca_bundle: %s\n  response_timeout: 5s\n  wait_activity: 10ms\n%slogging:\n  level: error\n", bundle, extra)
	cfgFile := filepath.Join(dir, "asynchttp.yml")
	if err := os.WriteFile(cfgFile, []byte(yml), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := config.Load(config.WithConfigFile(cfgFile))
	if err != nil {
		t.Fatalf("loading config: %v", err)
	}

	c, p, err := asynchttp.Start(cfg.ClientOptions(os.Stderr)...)
	if err != nil {
		t.Fatalf("starting client: %v", err)
	}
	t.Cleanup(func() {
		_ = p.Close()
		_ = c.Close()
	})

	return env{c: c, url: srv.URL}
}

// -------------------------------------------------------------------------
// Tests
// -------------------------------------------------------------------------

func TestE2E_JSONRoundTrip(t *testing.T) {
	e := newEnv(t, "")

	type item struct {
		Name string `json:"name"`
		Qty  int    `json:"qty"`
	}

	resp, err := e.c.NewRequest(e.url + "/anything/items").
		Method(client.MethodPost).
		ContentJSON(item{Name: "widget", Qty: 3}).
		Send().
		Take()
	if err != nil {
		t.Fatalf("take: %v", err)
	}

	var echo struct {
		Method string `json:"method"`
		JSON   item   `json:"json"`
	}
	if err := resp.DecodeJSON(&echo); err != nil {
		t.Fatal(err)
	}
	if echo.Method != http.MethodPost || echo.JSON != (item{Name: "widget", Qty: 3}) {
		t.Errorf("echo = %+v", echo)
	}
}

func TestE2E_TracePropagation(t *testing.T) {
	prev := otel.GetTextMapPropagator()
	otel.SetTextMapPropagator(propagation.TraceContext{})
	t.Cleanup(func() { otel.SetTextMapPropagator(prev) })

	e := newEnv(t, "")

	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    trace.TraceID{0x0a, 0x0b, 0x0c, 0x0d, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12},
		SpanID:     trace.SpanID{1, 2, 3, 4, 5, 6, 7, 8},
		TraceFlags: trace.FlagsSampled,
	})
	ctx := trace.ContextWithSpanContext(t.Context(), sc)

	resp, err := e.c.NewRequest(e.url + "/headers").Context(ctx).Send().Take()
	if err != nil {
		t.Fatal(err)
	}

	var body struct {
		Headers map[string]string `json:"headers"`
	}
	if err := resp.DecodeJSON(&body); err != nil {
		t.Fatal(err)
	}

	tp := body.Headers["Traceparent"]
	if !strings.Contains(tp, sc.TraceID().String()) {
		t.Errorf("traceparent %q does not carry trace %s", tp, sc.TraceID())
	}
}

func TestE2E_Download(t *testing.T) {
	e := newEnv(t, "")

	const size = 1 << 20
	sum := sha256.Sum256(httpbin.Payload(size))
	dest := filepath.Join(t.TempDir(), "blob.bin")

	f, err := download.Create(dest, download.WithChecksum(sha256.New(), hex.EncodeToString(sum[:])))
	if err != nil {
		t.Fatal(err)
	}

	req := e.c.NewRequest(fmt.Sprintf("%s/bytes/%d", e.url, size)).Downloader(f).Progressor(f).Send()
	if st := req.Wait(); st != client.Done {
		_ = f.Abort()
		t.Fatalf("status = %v, err = %v", st, req.Err())
	}
	if err := f.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}

	got, err := os.ReadFile(dest)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, httpbin.Payload(size)) {
		t.Errorf("downloaded %d bytes, content mismatch", len(got))
	}
}

func TestE2E_ResumeDownload(t *testing.T) {
	e := newEnv(t, "")

	const size = 4096
	dest := filepath.Join(t.TempDir(), "resume.bin")
	if err := os.WriteFile(dest+".part", httpbin.Payload(size)[:1000], 0o644); err != nil {
		t.Fatal(err)
	}

	f, err := download.Create(dest, download.WithResume())
	if err != nil {
		t.Fatal(err)
	}

	req := e.c.NewRequest(fmt.Sprintf("%s/range/%d", e.url, size)).
		ResumeOffset(f.Offset()).
		Downloader(f).
		Progressor(f).
		Send()
	if st := req.Wait(); st != client.Done {
		t.Fatalf("status = %v, err = %v", st, req.Err())
	}
	if err := f.Commit(); err != nil {
		t.Fatal(err)
	}

	got, err := os.ReadFile(dest)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, httpbin.Payload(size)) {
		t.Errorf("resumed file mismatch: %d bytes", len(got))
	}
}

func TestE2E_MixedBatch(t *testing.T) {
	e := newEnv(t, "  max_concurrent: 4\n  throttle:\n    rps: 200\n    burst: 20\n")

	var (
		b         client.Batch
		callbacks atomic.Int32
	)
	cb := func(*client.Request) error {
		callbacks.Add(1)
		return nil
	}

	for i := range 40 {
		b.Send(e.c.NewRequest(fmt.Sprintf("%s/anything/%d", e.url, i)).Callback(cb))
	}
	slow := b.Send(e.c.NewRequest(e.url + "/delay/10").Callback(cb))
	timeout := b.Send(e.c.NewRequest(e.url + "/delay/10").ResponseTimeout(100 * time.Millisecond).Callback(cb))

	ctx, cancel := context.WithTimeout(t.Context(), 5*time.Second)
	defer cancel()
	for _, r := range b.Requests()[:40] {
		if st, err := r.WaitContext(ctx); err != nil || st != client.Done {
			t.Fatalf("request %s: status %v, err %v", r.ID(), st, err)
		}
	}

	if !slow.Cancel() {
		t.Error("slow request already finished")
	}

	err := b.Wait()
	if !errors.Is(err, client.ErrCancelled) {
		t.Errorf("batch err = %v, want ErrCancelled", err)
	}
	if st := timeout.Status(); st != client.Timeout {
		t.Errorf("timeout request status = %v", st)
	}

	for _, r := range b.Requests() {
		r.WaitCallback()
	}
	if n := callbacks.Load(); n != 42 {
		t.Errorf("callbacks = %d, want 42", n)
	}
}
