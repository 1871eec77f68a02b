package client

import "net/http"

// Method is the HTTP method of a request.
type Method int

const (
	MethodGet Method = iota
	MethodHead
	MethodPost
	MethodPut
	MethodPatch
	MethodDelete
	MethodOptions
	// MethodMultipartForm posts the builder's Fields as multipart/form-data.
	MethodMultipartForm
)

// String returns the verb sent on the wire.
func (m Method) String() string {
	switch m {
	case MethodGet:
		return http.MethodGet
	case MethodHead:
		return http.MethodHead
	case MethodPost, MethodMultipartForm:
		return http.MethodPost
	case MethodPut:
		return http.MethodPut
	case MethodPatch:
		return http.MethodPatch
	case MethodDelete:
		return http.MethodDelete
	case MethodOptions:
		return http.MethodOptions
	default:
		return "UNKNOWN"
	}
}

// Valid reports whether m is one of the declared methods.
func (m Method) Valid() bool {
	return m >= MethodGet && m <= MethodMultipartForm
}

func (m Method) hasBody() bool {
	switch m {
	case MethodPost, MethodPut, MethodPatch, MethodDelete:
		return true
	default:
		return false
	}
}

func (m Method) hasResponseBody() bool {
	return m != MethodHead && m != MethodOptions
}
