package stream_test

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/adamwoolhether/asynchttp/client/stream"
	"github.com/google/go-cmp/cmp"
)

func TestBufferUploader(t *testing.T) {
	u := stream.NewBufferUploader([]byte("hello world"))
	if u.Size() != 11 {
		t.Fatalf("exp size 11, got %d", u.Size())
	}

	buf := make([]byte, 4)
	var got []byte
	for {
		n, err := u.Read(buf)
		got = append(got, buf[:n]...)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatalf("read: %v", err)
		}
	}
	if diff := cmp.Diff("hello world", string(got)); diff != "" {
		t.Errorf("body mismatch (-want +got):\n%s", diff)
	}

	if _, err := u.Seek(6, io.SeekStart); err != nil {
		t.Fatalf("seek start: %v", err)
	}
	n, _ := u.Read(buf)
	if string(buf[:n]) != "worl" {
		t.Errorf("exp %q after seek, got %q", "worl", buf[:n])
	}

	for name, whence := range map[string]int{"current": io.SeekCurrent, "end": io.SeekEnd} {
		if _, err := u.Seek(0, whence); !errors.Is(err, stream.ErrUnsupportedSeek) {
			t.Errorf("%s: exp ErrUnsupportedSeek, got %v", name, err)
		}
	}
}

func TestBufferDownloader(t *testing.T) {
	d := stream.NewBufferDownloader()
	for _, s := range []string{"a", "bc", "def"} {
		n, err := d.Write([]byte(s))
		if err != nil || n != len(s) {
			t.Fatalf("write %q: n=%d err=%v", s, n, err)
		}
	}

	if got := string(d.Take()); got != "abcdef" {
		t.Errorf("exp abcdef, got %q", got)
	}
	if d.Bytes() != nil {
		t.Error("exp empty buffer after Take")
	}
}

func TestDefaultProgressor(t *testing.T) {
	tests := map[string]struct {
		dlNow, dlTotal, ulNow, ulTotal int64
		exp                            float64
	}{
		"unknown totals":  {exp: 0},
		"half download":   {dlNow: 5, dlTotal: 10, exp: 0.5},
		"combined":        {dlNow: 5, dlTotal: 10, ulNow: 10, ulTotal: 10, exp: 0.75},
		"overshoot clamp": {dlNow: 30, dlTotal: 10, exp: 1},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			got := stream.DefaultProgressor{}.Update(tc.dlNow, tc.dlTotal, tc.ulNow, tc.ulTotal)
			if got != tc.exp {
				t.Errorf("exp %v, got %v", tc.exp, got)
			}
		})
	}
}

func TestReaderUploader_Seek(t *testing.T) {
	seekable := stream.NewReaderUploader(strings.NewReader("abc"), 3)
	if _, err := io.ReadAll(seekable); err != nil {
		t.Fatal(err)
	}
	if _, err := seekable.Seek(0, io.SeekStart); err != nil {
		t.Fatalf("exp seekable reader to rewind, got %v", err)
	}

	plain := stream.NewReaderUploader(io.MultiReader(strings.NewReader("abc")), -1)
	if _, err := plain.Seek(0, io.SeekStart); !errors.Is(err, stream.ErrUnsupportedSeek) {
		t.Errorf("exp ErrUnsupportedSeek, got %v", err)
	}
}

func TestWriterDownloader(t *testing.T) {
	var buf bytes.Buffer
	d := stream.NewWriterDownloader(&buf)
	if _, err := d.Write([]byte("xyz")); err != nil {
		t.Fatal(err)
	}
	if buf.String() != "xyz" {
		t.Errorf("exp xyz, got %q", buf.String())
	}
}
