package client

import (
	"iter"
	"net/http"
	"strings"
)

type header struct {
	key   string
	value string
}

// Headers is a case-insensitive, insertion-ordered set of header fields.
// Setting an existing key replaces its value in place and keeps the
// originally inserted spelling. An empty value is sent as an empty header.
type Headers struct {
	entries []header
}

// NewHeaders builds Headers from alternating key, value pairs.
func NewHeaders(kv ...string) Headers {
	var h Headers
	for i := 0; i+1 < len(kv); i += 2 {
		h.Set(kv[i], kv[i+1])
	}
	return h
}

func (h *Headers) index(key string) int {
	for i, e := range h.entries {
		if strings.EqualFold(e.key, key) {
			return i
		}
	}
	return -1
}

// Set inserts or replaces key.
func (h *Headers) Set(key, value string) {
	if i := h.index(key); i >= 0 {
		h.entries[i].value = value
		return
	}
	h.entries = append(h.entries, header{key: key, value: value})
}

// Get returns the value of key and whether it is present.
func (h Headers) Get(key string) (string, bool) {
	if i := h.index(key); i >= 0 {
		return h.entries[i].value, true
	}
	return "", false
}

// Value returns the value of key, or "" when absent.
func (h Headers) Value(key string) string {
	v, _ := h.Get(key)
	return v
}

// Has reports whether key is present.
func (h Headers) Has(key string) bool {
	return h.index(key) >= 0
}

// Del removes key.
func (h *Headers) Del(key string) {
	if i := h.index(key); i >= 0 {
		h.entries = append(h.entries[:i], h.entries[i+1:]...)
	}
}

// Len returns the number of fields.
func (h Headers) Len() int { return len(h.entries) }

// Reset removes every field.
func (h *Headers) Reset() { h.entries = h.entries[:0] }

// All iterates over the fields in insertion order.
func (h Headers) All() iter.Seq2[string, string] {
	return func(yield func(string, string) bool) {
		for _, e := range h.entries {
			if !yield(e.key, e.value) {
				return
			}
		}
	}
}

// Clone returns an independent copy.
func (h Headers) Clone() Headers {
	var c Headers
	c.entries = append(c.entries, h.entries...)
	return c
}

// Merge sets every field of other onto h.
func (h *Headers) Merge(other Headers) {
	for k, v := range other.All() {
		h.Set(k, v)
	}
}

// HTTP converts to net/http's representation.
func (h Headers) HTTP() http.Header {
	out := make(http.Header, len(h.entries))
	for _, e := range h.entries {
		out[http.CanonicalHeaderKey(e.key)] = []string{e.value}
	}
	return out
}
