// Package engine adapts net/http to a multi-handle transfer model.
//
// A [Multi] owns a set of registered [Handle] values. Each registered handle
// runs its HTTP exchange on a dedicated goroutine, but none of the handle's
// [Callbacks] are ever invoked on that goroutine. Instead the transfer posts
// an event and blocks until [Multi.Perform] executes the callback on the
// caller's goroutine. Completed transfers are reported as [Message] values
// drained with [Multi.InfoRead].
//
// A typical poll loop looks like:
//
//	m, err := engine.New()
//	if err != nil { ... }
//	h, err := m.NewHandle(opts, callbacks)
//	if err != nil { ... }
//	if err := m.Add(h); err != nil { ... }
//
//	for running := 1; running > 0; {
//		running, _ = m.Perform()
//		for msg, ok := m.InfoRead(); ok; msg, ok = m.InfoRead() {
//			// msg.Code, msg.Err
//		}
//		m.Wait(ctx, 100*time.Millisecond)
//	}
//
// Handles are not reused: once removed, a handle must be discarded.
package engine
