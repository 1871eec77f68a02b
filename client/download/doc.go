// Package download streams response bodies to disk with optional checksum
// validation, progress logging and resumption.
//
// A [File] is both a [stream.Downloader] and a [stream.Progressor]: attach
// it to a request and commit it once the request is done.
//
//	f, err := download.Create("/tmp/file.bin",
//		download.WithChecksum(sha256.New(), expectedHex),
//		download.WithProgress(logger),
//	)
//	if err != nil { ... }
//
//	req := c.NewRequest(url).Downloader(f).Progressor(f).Send()
//	if req.Wait() != client.Done {
//		return f.Abort()
//	}
//	return f.Commit()
//
// Data is written to "<dest>.part" and renamed to dest on Commit.
package download
