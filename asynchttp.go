// Package asynchttp exposes the client builder.
package asynchttp

import (
	"fmt"

	"github.com/adamwoolhether/asynchttp/client"
)

// New instantiates a new *client.Client with the provided options. Nothing
// is sent until the client is driven by Perform or a Performer.
func New(opts ...client.Option) (*client.Client, error) {
	return client.Build(opts...)
}

// Start builds a client and a performer already driving it. Close the
// performer before the client.
func Start(opts ...client.Option) (*client.Client, *client.Performer, error) {
	c, err := client.Build(opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("building client: %w", err)
	}

	return c, client.NewPerformer(c, client.WithWaitActivity(c.Defaults().WaitActivity)), nil
}
