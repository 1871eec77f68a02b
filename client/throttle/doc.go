// Package throttle provides an admission [Gate] that rate-limits how fast
// queued requests are handed to the transfer engine, using a token-bucket
// algorithm from [golang.org/x/time/rate].
//
// # Usage
//
//	g, err := throttle.New(10, 5, slog.Default()) // 10 rps, burst 5
//	if err != nil { ... }
//	for queued() && g.Allow() {
//		admit()
//	}
//
// A Gate never blocks: callers poll Allow and use Delay to decide how
// long to sleep before the next token is available.
package throttle
