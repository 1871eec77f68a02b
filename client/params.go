package client

import (
	"iter"
	"net/url"
	"strings"
)

type param struct {
	key   string
	value string
}

// QueryParams is an ordered multimap of query or form parameters.
// Duplicate keys are kept.
type QueryParams struct {
	entries []param
}

// NewQueryParams builds QueryParams from alternating key, value pairs.
func NewQueryParams(kv ...string) QueryParams {
	var q QueryParams
	for i := 0; i+1 < len(kv); i += 2 {
		q.Add(kv[i], kv[i+1])
	}
	return q
}

// Add appends a parameter.
func (q *QueryParams) Add(key, value string) {
	q.entries = append(q.entries, param{key: key, value: value})
}

// Len returns the number of parameters.
func (q QueryParams) Len() int { return len(q.entries) }

// All iterates over the parameters in insertion order.
func (q QueryParams) All() iter.Seq2[string, string] {
	return func(yield func(string, string) bool) {
		for _, p := range q.entries {
			if !yield(p.key, p.value) {
				return
			}
		}
	}
}

// Clone returns an independent copy.
func (q QueryParams) Clone() QueryParams {
	var c QueryParams
	c.entries = append(c.entries, q.entries...)
	return c
}

// Encode renders the parameters as a query string. A parameter with an
// empty key renders its value bare and one with an empty value renders
// its key bare.
func (q QueryParams) Encode() string {
	var b strings.Builder
	for _, p := range q.entries {
		if b.Len() > 0 {
			b.WriteByte('&')
		}
		switch {
		case p.key == "":
			b.WriteString(escape(p.value))
		case p.value == "":
			b.WriteString(escape(p.key))
		default:
			b.WriteString(escape(p.key))
			b.WriteByte('=')
			b.WriteString(escape(p.value))
		}
	}
	return b.String()
}

// EncodeForm renders the parameters as an
// application/x-www-form-urlencoded body. Parameters with an empty key
// are skipped.
func (q QueryParams) EncodeForm() string {
	var b strings.Builder
	for _, p := range q.entries {
		if p.key == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte('&')
		}
		b.WriteString(escape(p.key))
		b.WriteByte('=')
		b.WriteString(escape(p.value))
	}
	return b.String()
}

// AppendTo appends the encoded parameters to rawURL, using '&' when the
// URL already carries a query and '?' otherwise.
func (q QueryParams) AppendTo(rawURL string) string {
	if len(q.entries) == 0 {
		return rawURL
	}

	sep := "?"
	if strings.Contains(rawURL, "?") {
		sep = "&"
	}

	return rawURL + sep + q.Encode()
}

// escape percent-encodes everything except RFC 3986 unreserved characters.
func escape(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}

// Fields are multipart form fields: insertion ordered, a repeated key
// replaces the earlier value.
type Fields struct {
	entries []param
}

// Set inserts or replaces key.
func (f *Fields) Set(key, value string) {
	for i := range f.entries {
		if f.entries[i].key == key {
			f.entries[i].value = value
			return
		}
	}
	f.entries = append(f.entries, param{key: key, value: value})
}

// Len returns the number of fields.
func (f Fields) Len() int { return len(f.entries) }

// All iterates over the fields in insertion order.
func (f Fields) All() iter.Seq2[string, string] {
	return func(yield func(string, string) bool) {
		for _, p := range f.entries {
			if !yield(p.key, p.value) {
				return
			}
		}
	}
}

// Clone returns an independent copy.
func (f Fields) Clone() Fields {
	var c Fields
	c.entries = append(c.entries, f.entries...)
	return c
}
