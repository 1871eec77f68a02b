package stream

import (
	"errors"
	"io"
)

var ErrUnsupportedSeek = errors.New("unsupported seek")

// Uploader supplies the request body.
//
// Size reports the total body length, or a negative value when unknown, in
// which case the body is sent chunked. Read follows io.Reader semantics;
// returning io.EOF (or zero bytes) ends the body and any other error aborts
// the request.
type Uploader interface {
	Size() int64
	Read(p []byte) (int, error)
}

// Downloader consumes the response body. Writing fewer bytes than given,
// or returning an error, aborts the request.
type Downloader interface {
	Write(p []byte) (int, error)
}

// Progressor observes transfer progress and returns a fraction in [0, 1].
// A panic in Update aborts the request.
type Progressor interface {
	Update(dlNow, dlTotal, ulNow, ulTotal int64) float64
}

// BufferUploader serves the body from an in-memory buffer.
type BufferUploader struct {
	data []byte
	off  int
}

// NewBufferUploader returns an uploader owning data.
func NewBufferUploader(data []byte) *BufferUploader {
	return &BufferUploader{data: data}
}

func (u *BufferUploader) Size() int64 { return int64(len(u.data)) }

func (u *BufferUploader) Read(p []byte) (int, error) {
	if u.off >= len(u.data) {
		return 0, io.EOF
	}
	n := copy(p, u.data[u.off:])
	u.off += n
	return n, nil
}

// Seek supports absolute positioning only.
func (u *BufferUploader) Seek(offset int64, whence int) (int64, error) {
	if whence != io.SeekStart || offset < 0 || offset > int64(len(u.data)) {
		return 0, ErrUnsupportedSeek
	}
	u.off = int(offset)
	return offset, nil
}

// BufferDownloader accumulates the body in memory.
type BufferDownloader struct {
	data []byte
}

func NewBufferDownloader() *BufferDownloader {
	return &BufferDownloader{}
}

func (d *BufferDownloader) Write(p []byte) (int, error) {
	d.data = append(d.data, p...)
	return len(p), nil
}

// Bytes returns the accumulated body.
func (d *BufferDownloader) Bytes() []byte { return d.data }

// Take returns the accumulated body and releases it.
func (d *BufferDownloader) Take() []byte {
	b := d.data
	d.data = nil
	return b
}

// DefaultProgressor reports combined download and upload progress.
type DefaultProgressor struct{}

func (DefaultProgressor) Update(dlNow, dlTotal, ulNow, ulTotal int64) float64 {
	return Fraction(dlNow+ulNow, dlTotal+ulTotal)
}

// Fraction returns now/total clamped to [0, 1]. An unknown total yields 0.
func Fraction(now, total int64) float64 {
	if total <= 0 {
		return 0
	}
	return min(max(float64(now)/float64(total), 0), 1)
}

// ProgressFunc adapts a function to the Progressor interface.
type ProgressFunc func(dlNow, dlTotal, ulNow, ulTotal int64) float64

func (f ProgressFunc) Update(dlNow, dlTotal, ulNow, ulTotal int64) float64 {
	return f(dlNow, dlTotal, ulNow, ulTotal)
}

// ReaderUploader streams the body from r. When r is an io.Seeker the
// upload can be replayed across redirects.
type ReaderUploader struct {
	r    io.Reader
	size int64
}

// NewReaderUploader wraps r. Pass a negative size for unknown length.
func NewReaderUploader(r io.Reader, size int64) *ReaderUploader {
	return &ReaderUploader{r: r, size: size}
}

func (u *ReaderUploader) Size() int64 { return u.size }

func (u *ReaderUploader) Read(p []byte) (int, error) { return u.r.Read(p) }

func (u *ReaderUploader) Seek(offset int64, whence int) (int64, error) {
	s, ok := u.r.(io.Seeker)
	if !ok {
		return 0, ErrUnsupportedSeek
	}
	return s.Seek(offset, whence)
}

// WriterDownloader streams the body into w.
type WriterDownloader struct {
	w io.Writer
}

func NewWriterDownloader(w io.Writer) *WriterDownloader {
	return &WriterDownloader{w: w}
}

func (d *WriterDownloader) Write(p []byte) (int, error) { return d.w.Write(p) }
