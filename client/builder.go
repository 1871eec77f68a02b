package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/adamwoolhether/asynchttp/client/stream"
)

// Callback is invoked exactly once after a request leaves Pending. Its
// error, or a recovered panic, is available from [Request.CallbackErr].
type Callback func(*Request) error

// Proxy routes a request through a proxy server.
type Proxy struct {
	URL      string `validate:"omitempty,url"`
	Username string
	Password string
}

// ClientCertificate holds PEM file paths of a TLS client certificate.
type ClientCertificate struct {
	CertFile string `validate:"required_with=KeyFile"`
	KeyFile  string `validate:"required_with=CertFile"`
}

// RequestConfig is everything a request is built from.
type RequestConfig struct {
	URL     string `validate:"required"`
	Method  Method `validate:"http_method"`
	Query   QueryParams
	Headers Headers
	Fields  Fields
	Content []byte

	Verbose      bool
	Verification bool
	CAPath       string `validate:"omitempty,dir"`
	CABundle     string `validate:"omitempty,file"`
	Redirections uint32

	RequestTimeout    time.Duration `validate:"gte=0"`
	ResponseTimeout   time.Duration `validate:"gte=0"`
	ConnectionTimeout time.Duration `validate:"gte=0"`

	Proxy             Proxy
	ClientCertificate ClientCertificate
	PinnedPublicKey   string `validate:"omitempty,startswith=sha256//"`
	ResumeOffset      int64  `validate:"gte=0"`

	// Context, when set, cancels the request once done and parents its
	// trace span.
	Context context.Context `validate:"-"`

	Callback   Callback          `validate:"-"`
	Uploader   stream.Uploader   `validate:"-"`
	Downloader stream.Downloader `validate:"-"`
	Progressor stream.Progressor `validate:"-"`
}

// Builder accumulates a RequestConfig and submits it with Send. A Builder
// is not safe for concurrent use and cannot be reused after Send.
type Builder struct {
	client *Client
	cfg    RequestConfig
	err    error
	sent   bool
}

// NewRequest starts a request to url with the client's defaults.
func (c *Client) NewRequest(url string) *Builder {
	d := c.defaults
	return &Builder{
		client: c,
		cfg: RequestConfig{
			URL:               url,
			Method:            MethodGet,
			Verification:      *d.Verification,
			CAPath:            d.CAPath,
			CABundle:          d.CABundle,
			Redirections:      *d.Redirections,
			RequestTimeout:    d.RequestTimeout,
			ResponseTimeout:   d.ResponseTimeout,
			ConnectionTimeout: d.ConnectionTimeout,
		},
	}
}

// Config returns a copy of the accumulated configuration.
func (b *Builder) Config() RequestConfig {
	cfg := b.cfg
	cfg.Query = b.cfg.Query.Clone()
	cfg.Headers = b.cfg.Headers.Clone()
	cfg.Fields = b.cfg.Fields.Clone()
	return cfg
}

func (b *Builder) URL(url string) *Builder {
	b.cfg.URL = url
	return b
}

func (b *Builder) Method(m Method) *Builder {
	b.cfg.Method = m
	return b
}

// QueryParam appends a query parameter.
func (b *Builder) QueryParam(key, value string) *Builder {
	b.cfg.Query.Add(key, value)
	return b
}

// QueryParams replaces all query parameters.
func (b *Builder) QueryParams(q QueryParams) *Builder {
	b.cfg.Query = q.Clone()
	return b
}

// Header sets a header, replacing any value under the same key.
func (b *Builder) Header(key, value string) *Builder {
	b.cfg.Headers.Set(key, value)
	return b
}

// Headers replaces all headers.
func (b *Builder) Headers(h Headers) *Builder {
	b.cfg.Headers = h.Clone()
	return b
}

// Field sets a multipart form field sent by MethodMultipartForm.
func (b *Builder) Field(key, value string) *Builder {
	b.cfg.Fields.Set(key, value)
	return b
}

// Fields replaces all multipart form fields.
func (b *Builder) Fields(f Fields) *Builder {
	b.cfg.Fields = f.Clone()
	return b
}

func (b *Builder) Verbose(v bool) *Builder {
	b.cfg.Verbose = v
	return b
}

// Verification toggles TLS peer and host verification.
func (b *Builder) Verification(v bool) *Builder {
	b.cfg.Verification = v
	return b
}

func (b *Builder) CAPath(path string) *Builder {
	b.cfg.CAPath = path
	return b
}

func (b *Builder) CABundle(path string) *Builder {
	b.cfg.CABundle = path
	return b
}

// Redirections sets the maximum redirects followed. Zero disables
// following.
func (b *Builder) Redirections(n uint32) *Builder {
	b.cfg.Redirections = n
	return b
}

// RequestTimeout bounds the whole transfer. Use NoTimeout to disable.
func (b *Builder) RequestTimeout(d time.Duration) *Builder {
	b.cfg.RequestTimeout = d
	return b
}

// ResponseTimeout fails the request after d without any I/O.
func (b *Builder) ResponseTimeout(d time.Duration) *Builder {
	b.cfg.ResponseTimeout = d
	return b
}

// ConnectionTimeout bounds connection establishment.
func (b *Builder) ConnectionTimeout(d time.Duration) *Builder {
	b.cfg.ConnectionTimeout = d
	return b
}

// Content sets the request body.
func (b *Builder) Content(body []byte) *Builder {
	b.cfg.Content = body
	return b
}

func (b *Builder) ContentString(body string) *Builder {
	b.cfg.Content = []byte(body)
	return b
}

// ContentForm sets a url-encoded form body.
func (b *Builder) ContentForm(q QueryParams) *Builder {
	b.cfg.Content = []byte(q.EncodeForm())
	if !b.cfg.Headers.Has("Content-Type") {
		b.cfg.Headers.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	return b
}

// ContentJSON sets a JSON-encoded body. An encoding failure fails the
// request when sent.
func (b *Builder) ContentJSON(v any) *Builder {
	var payload bytes.Buffer
	if err := json.NewEncoder(&payload).Encode(v); err != nil {
		b.err = fmt.Errorf("encoding request payload: %w", err)
		return b
	}
	b.cfg.Content = payload.Bytes()
	if !b.cfg.Headers.Has("Content-Type") {
		b.cfg.Headers.Set("Content-Type", "application/json")
	}
	return b
}

func (b *Builder) Proxy(p Proxy) *Builder {
	b.cfg.Proxy = p
	return b
}

func (b *Builder) ClientCertificate(certFile, keyFile string) *Builder {
	b.cfg.ClientCertificate = ClientCertificate{CertFile: certFile, KeyFile: keyFile}
	return b
}

// PinnedPublicKey pins the server key, e.g. "sha256//<base64>".
func (b *Builder) PinnedPublicKey(pin string) *Builder {
	b.cfg.PinnedPublicKey = pin
	return b
}

// ResumeOffset requests the body starting at offset.
func (b *Builder) ResumeOffset(offset int64) *Builder {
	b.cfg.ResumeOffset = offset
	return b
}

// Context ties the request to ctx: cancellation cancels the request and a
// passed deadline times it out.
func (b *Builder) Context(ctx context.Context) *Builder {
	b.cfg.Context = ctx
	return b
}

func (b *Builder) Callback(fn Callback) *Builder {
	b.cfg.Callback = fn
	return b
}

// Uploader supplies the body, taking precedence over Content.
func (b *Builder) Uploader(u stream.Uploader) *Builder {
	b.cfg.Uploader = u
	return b
}

func (b *Builder) Downloader(d stream.Downloader) *Builder {
	b.cfg.Downloader = d
	return b
}

func (b *Builder) Progressor(p stream.Progressor) *Builder {
	b.cfg.Progressor = p
	return b
}

// Send submits the request without blocking and returns its handle.
// The builder is consumed; any further Send panics.
func (b *Builder) Send() *Request {
	if b.sent {
		panic("asynchttp: builder already sent")
	}
	b.sent = true

	cfg := b.cfg
	b.cfg = RequestConfig{}

	return b.client.submit(newState(b.client, cfg, b.err))
}
