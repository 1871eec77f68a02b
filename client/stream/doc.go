// Package stream defines the handlers a request streams its body through:
// an [Uploader] supplying the request body, a [Downloader] consuming the
// response body and a [Progressor] observing transfer counters.
//
// Handlers run on the goroutine driving the client's poll loop, never
// concurrently with each other for the same request.
package stream
