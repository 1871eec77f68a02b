package httpbin

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"mime"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"
)

// Echo is the body returned by the echo endpoints.
type Echo struct {
	Method  string              `json:"method"`
	URL     string              `json:"url"`
	Args    map[string][]string `json:"args"`
	Headers map[string]string   `json:"headers"`
	Data    string              `json:"data"`
	Form    map[string][]string `json:"form"`
	JSON    any                 `json:"json"`
}

const maxBody = 32 << 20

func routes(a *app) {
	a.handle("", "/anything", echo)
	a.handle("", "/anything/{rest...}", echo)
	a.handle(http.MethodGet, "/get", echo)
	a.handle(http.MethodPost, "/post", echo)
	a.handle(http.MethodPut, "/put", echo)
	a.handle(http.MethodPatch, "/patch", echo)
	a.handle(http.MethodDelete, "/delete", echo)
	a.handle("", "/delay/{d}", delay)
	a.handle("", "/status/{code}", status)
	a.handle(http.MethodGet, "/redirect/{n}", redirect)
	a.handle("", "/redirect-to", redirectTo)
	a.handle(http.MethodGet, "/headers", headers)
	a.handle(http.MethodGet, "/response-headers", responseHeaders)
	a.handle(http.MethodGet, "/base64/{value}", decodeBase64)
	a.handle(http.MethodGet, "/bytes/{n}", randomBytes)
	a.handle(http.MethodGet, "/stream-bytes/{n}", streamBytes)
	a.handle(http.MethodGet, "/drip", drip)
	a.handle(http.MethodGet, "/range/{n}", rangeBytes)
}

func echo(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	e, err := newEcho(r)
	if err != nil {
		return err
	}
	return respondJSON(ctx, w, http.StatusOK, e)
}

func newEcho(r *http.Request) (Echo, error) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBody))
	if err != nil {
		return Echo{}, badRequest("reading body: %v", err)
	}

	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}

	e := Echo{
		Method:  r.Method,
		URL:     fmt.Sprintf("%s://%s%s", scheme, r.Host, r.URL.RequestURI()),
		Args:    r.URL.Query(),
		Headers: flatten(r.Header),
		Form:    map[string][]string{},
	}

	mediaType, params, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "application/x-www-form-urlencoded":
		form, err := url.ParseQuery(string(body))
		if err != nil {
			return Echo{}, badRequest("parsing form: %v", err)
		}
		e.Form = form
	case "multipart/form-data":
		form, err := parseMultipart(body, params["boundary"])
		if err != nil {
			return Echo{}, badRequest("parsing multipart form: %v", err)
		}
		e.Form = form
	default:
		e.Data = string(body)
	}

	if mediaType == "application/json" && len(body) > 0 {
		if err := json.Unmarshal(body, &e.JSON); err != nil {
			return Echo{}, badRequest("parsing json: %v", err)
		}
	}

	return e, nil
}

func parseMultipart(body []byte, boundary string) (map[string][]string, error) {
	req := &http.Request{
		Method: http.MethodPost,
		Header: http.Header{"Content-Type": {"multipart/form-data; boundary=" + boundary}},
		Body:   io.NopCloser(bytes.NewReader(body)),
	}
	if err := req.ParseMultipartForm(maxBody); err != nil {
		return nil, err
	}
	return req.MultipartForm.Value, nil
}

func flatten(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for k, v := range h {
		out[k] = strings.Join(v, ", ")
	}
	return out
}

func delay(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	d, err := parseDelay(r.PathValue("d"))
	if err != nil {
		return err
	}

	select {
	case <-time.After(d):
	case <-ctx.Done():
		return nil
	}

	return echo(ctx, w, r)
}

// parseDelay accepts seconds ("2", "0.5") or a Go duration ("150ms").
func parseDelay(s string) (time.Duration, error) {
	if secs, err := strconv.ParseFloat(s, 64); err == nil {
		return time.Duration(secs * float64(time.Second)), nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, badRequest("invalid delay %q", s)
	}
	return d, nil
}

func status(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	code, err := strconv.Atoi(r.PathValue("code"))
	if err != nil || code < 100 || code > 599 {
		return badRequest("invalid status code %q", r.PathValue("code"))
	}

	setStatusCode(ctx, code)
	w.WriteHeader(code)

	return nil
}

func redirect(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	n, err := strconv.Atoi(r.PathValue("n"))
	if err != nil || n < 1 {
		return badRequest("invalid redirect count %q", r.PathValue("n"))
	}

	target := "/get"
	if n > 1 {
		target = fmt.Sprintf("/redirect/%d", n-1)
	}

	setStatusCode(ctx, http.StatusFound)
	http.Redirect(w, r, target, http.StatusFound)

	return nil
}

func redirectTo(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	target := r.URL.Query().Get("url")
	if target == "" {
		return badRequest("missing url")
	}

	code := http.StatusFound
	if s := r.URL.Query().Get("status_code"); s != "" {
		c, err := strconv.Atoi(s)
		if err != nil || c < 300 || c > 399 {
			return badRequest("invalid redirect status %q", s)
		}
		code = c
	}

	setStatusCode(ctx, code)
	http.Redirect(w, r, target, code)

	return nil
}

func headers(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	return respondJSON(ctx, w, http.StatusOK, map[string]any{"headers": flatten(r.Header)})
}

func responseHeaders(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	q := r.URL.Query()
	for _, k := range slices.Sorted(maps.Keys(q)) {
		for _, v := range q[k] {
			w.Header().Add(k, v)
		}
	}
	return respondJSON(ctx, w, http.StatusOK, q)
}

func decodeBase64(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	value := r.PathValue("value")

	b, err := base64.URLEncoding.DecodeString(value)
	if err != nil {
		if b, err = base64.StdEncoding.DecodeString(value); err != nil {
			return badRequest("invalid base64 %q", value)
		}
	}

	setStatusCode(ctx, http.StatusOK)
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, err = w.Write(b)

	return err
}

// Payload returns the deterministic body served by /bytes, /stream-bytes
// and /range.
func Payload(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(i % 251)
	}
	return b
}

func sizeParam(r *http.Request) (int, error) {
	n, err := strconv.Atoi(r.PathValue("n"))
	if err != nil || n < 0 || n > maxBody {
		return 0, badRequest("invalid size %q", r.PathValue("n"))
	}
	return n, nil
}

func randomBytes(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	n, err := sizeParam(r)
	if err != nil {
		return err
	}

	setStatusCode(ctx, http.StatusOK)
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Length", strconv.Itoa(n))
	_, err = w.Write(Payload(n))

	return err
}

func streamBytes(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	n, err := sizeParam(r)
	if err != nil {
		return err
	}

	chunk := 1024
	if s := r.URL.Query().Get("chunk_size"); s != "" {
		if chunk, err = strconv.Atoi(s); err != nil || chunk <= 0 {
			return badRequest("invalid chunk size %q", s)
		}
	}

	setStatusCode(ctx, http.StatusOK)
	w.Header().Set("Content-Type", "application/octet-stream")
	rc := http.NewResponseController(w)

	data := Payload(n)
	for len(data) > 0 {
		c := min(chunk, len(data))
		if _, err := w.Write(data[:c]); err != nil {
			return err
		}
		if err := rc.Flush(); err != nil {
			return err
		}
		data = data[c:]
	}

	return nil
}

// drip sends numbytes bytes spread evenly over duration.
func drip(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	q := r.URL.Query()

	duration := 2 * time.Second
	if s := q.Get("duration"); s != "" {
		d, err := parseDelay(s)
		if err != nil {
			return err
		}
		duration = d
	}

	numBytes := 10
	if s := q.Get("numbytes"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			return badRequest("invalid numbytes %q", s)
		}
		numBytes = n
	}

	setStatusCode(ctx, http.StatusOK)
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Length", strconv.Itoa(numBytes))
	rc := http.NewResponseController(w)

	pause := duration / time.Duration(numBytes)
	for range numBytes {
		select {
		case <-time.After(pause):
		case <-ctx.Done():
			return nil
		}
		if _, err := w.Write([]byte{'*'}); err != nil {
			return err
		}
		if err := rc.Flush(); err != nil {
			return err
		}
	}

	return nil
}

func rangeBytes(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	n, err := sizeParam(r)
	if err != nil {
		return err
	}

	setStatusCode(ctx, http.StatusOK)
	w.Header().Set("Content-Type", "application/octet-stream")
	http.ServeContent(w, r, "", time.Time{}, bytes.NewReader(Payload(n)))

	return nil
}
