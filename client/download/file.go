package download

import (
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"io"
	"os"
	"strings"
	"time"

	"github.com/adamwoolhether/asynchttp/client/stream"
)

// File writes a response body to disk.
type File struct {
	dest     string
	part     string
	file     *os.File
	w        io.Writer
	checksum *digest
	progress *progressLog
	resume   bool

	offset  int64
	written int64
	total   int64
	done    bool
}

var (
	_ stream.Downloader = (*File)(nil)
	_ stream.Progressor = (*File)(nil)
)

// Create prepares a download to dest.
func Create(dest string, optFns ...Option) (*File, error) {
	if dest == "" {
		return nil, errors.New("destination must not be empty")
	}

	var opts options
	for _, opt := range optFns {
		if err := opt(&opts); err != nil {
			return nil, fmt.Errorf("applying option: %w", err)
		}
	}

	if opts.skipExisting {
		if _, err := os.Stat(dest); err == nil {
			return nil, fmt.Errorf("%w: %s", ErrFileExists, dest)
		}
	}

	f := &File{
		dest:     dest,
		part:     dest + ".part",
		checksum: opts.checksum,
		resume:   opts.resume,
		total:    -1,
	}

	flags := os.O_CREATE | os.O_WRONLY | os.O_TRUNC
	if opts.resume {
		flags = os.O_CREATE | os.O_WRONLY | os.O_APPEND
	}

	file, err := os.OpenFile(f.part, flags, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening part file: %w", err)
	}
	f.file = file

	if opts.resume {
		if err := f.loadPartial(); err != nil {
			file.Close()
			return nil, err
		}
	}

	f.w = file
	if f.checksum != nil {
		f.w = io.MultiWriter(file, f.checksum)
	}

	if opts.logger != nil {
		f.progress = &progressLog{logger: opts.logger, path: dest, startTime: time.Now()}
	}

	return f, nil
}

// loadPartial accounts for bytes already on disk.
func (f *File) loadPartial() error {
	info, err := f.file.Stat()
	if err != nil {
		return fmt.Errorf("stat part file: %w", err)
	}
	f.offset = info.Size()

	if f.checksum == nil || f.offset == 0 {
		return nil
	}

	r, err := os.Open(f.part)
	if err != nil {
		return fmt.Errorf("reading part file: %w", err)
	}
	defer r.Close()

	if _, err := io.Copy(f.checksum, r); err != nil {
		return fmt.Errorf("hashing part file: %w", err)
	}

	return nil
}

// digest hashes everything written to the part file, including bytes
// carried over from a resumed download.
type digest struct {
	h    hash.Hash
	want string
}

func (d *digest) Write(p []byte) (int, error) { return d.h.Write(p) }

// check compares the running hash with the expected hex digest,
// ignoring case.
func (d *digest) check() error {
	if d == nil {
		return nil
	}

	got := hex.EncodeToString(d.h.Sum(nil))
	if !strings.EqualFold(got, d.want) {
		return &Error{
			Err:    ErrChecksumMismatch,
			Detail: fmt.Sprintf("want %s, have %s", d.want, got),
		}
	}

	return nil
}

// Offset is the number of bytes already on disk from a resumed download.
func (f *File) Offset() int64 { return f.offset }

// Written is the number of bytes written by this download.
func (f *File) Written() int64 { return f.written }

func (f *File) Write(p []byte) (int, error) {
	if f.done {
		return 0, ErrFinished
	}
	n, err := f.w.Write(p)
	f.written += int64(n)
	return n, err
}

// Update records the expected length and logs progress.
func (f *File) Update(dlNow, dlTotal, _, _ int64) float64 {
	if dlTotal > 0 {
		f.total = dlTotal
	}
	f.progress.update(dlNow, dlTotal)
	return stream.Fraction(dlNow, dlTotal)
}

// Commit verifies the download and moves it to its destination.
func (f *File) Commit() error {
	if f.done {
		return ErrFinished
	}
	f.done = true

	committed := false
	defer func() {
		if !committed && !f.resume {
			os.Remove(f.part)
		}
	}()

	if f.total >= 0 && f.written != f.total {
		f.file.Close()
		return &Error{
			Err:    ErrContentLengthMismatch,
			Detail: fmt.Sprintf("expected %d bytes, got %d", f.total, f.written),
		}
	}

	if err := f.checksum.check(); err != nil {
		f.file.Close()
		return err
	}

	if err := f.file.Sync(); err != nil {
		f.file.Close()
		return fmt.Errorf("syncing part file: %w", err)
	}
	if err := f.file.Close(); err != nil {
		return fmt.Errorf("closing part file: %w", err)
	}
	if err := os.Rename(f.part, f.dest); err != nil {
		return fmt.Errorf("renaming part file: %w", err)
	}

	committed = true

	return nil
}

// Abort closes the part file. It is removed unless the download is
// resumable.
func (f *File) Abort() error {
	if f.done {
		return ErrFinished
	}
	f.done = true

	if err := f.file.Close(); err != nil && !errors.Is(err, os.ErrClosed) {
		return fmt.Errorf("closing part file: %w", err)
	}
	if f.resume {
		return nil
	}
	if err := os.Remove(f.part); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("removing part file: %w", err)
	}

	return nil
}
