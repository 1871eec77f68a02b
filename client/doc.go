// Package client submits HTTP requests asynchronously and drives them to
// completion through a poll loop.
//
// # Building a Client
//
// Use [Build] to create a [Client] with functional options:
//
//	c, err := client.Build(
//		client.WithLogger(logger),
//		client.WithDefaults(client.Defaults{ResponseTimeout: 10 * time.Second}),
//		client.WithThrottle(50, 10),
//	)
//
// # Sending Requests
//
// [Client.NewRequest] returns a [Builder]. [Builder.Send] never blocks; it
// queues the request and returns a [Request] handle:
//
//	req := c.NewRequest("https://api.example.com/v1/items").
//		Method(client.MethodPost).
//		ContentJSON(item).
//		Send()
//
// # Driving Requests
//
// Nothing moves until somebody calls [Client.Perform]. Either run the loop
// yourself:
//
//	for req.IsPending() {
//		if err := c.Perform(); err != nil { ... }
//		c.WaitActivity(100 * time.Millisecond)
//	}
//
// or start a [Performer], which does the same on its own goroutine:
//
//	p := client.NewPerformer(c)
//	defer p.Close()
//
// Completion callbacks, uploaders, downloaders and progressors all run on
// the goroutine calling Perform, never concurrently with each other.
//
// # Collecting Results
//
// [Request.Take] blocks until the request leaves Pending and hands over the
// [Response] exactly once:
//
//	resp, err := req.Take()
//	if err != nil {
//		var reqErr *client.Error
//		if errors.As(err, &reqErr) && reqErr.Status == client.Timeout { ... }
//	}
//
// For streaming to disk see the
// [github.com/adamwoolhether/asynchttp/client/download] package.
package client
