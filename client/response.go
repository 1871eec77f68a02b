package client

import (
	"encoding/json"
	"fmt"

	"github.com/adamwoolhether/asynchttp/client/stream"
)

// Response is the result of a completed request.
type Response struct {
	StatusCode int

	// URL is the effective URL after redirects.
	URL string

	Headers Headers

	// Content holds the body when the default downloader was used.
	Content []byte

	Uploader   stream.Uploader
	Downloader stream.Downloader
	Progressor stream.Progressor
}

// IsHTTPError reports a 4xx or 5xx status code.
func (r *Response) IsHTTPError() bool {
	return r.StatusCode >= 400
}

// DecodeJSON unmarshals Content into dest.
func (r *Response) DecodeJSON(dest any) error {
	if err := json.Unmarshal(r.Content, dest); err != nil {
		return fmt.Errorf("decoding body: %w", err)
	}
	return nil
}
