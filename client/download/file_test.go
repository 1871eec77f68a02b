package download_test

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/adamwoolhether/asynchttp/client/download"
	"github.com/google/go-cmp/cmp"
)

func sum(b []byte) string {
	s := sha256.Sum256(b)
	return hex.EncodeToString(s[:])
}

func TestFile_Commit(t *testing.T) {
	content := []byte("the quick brown fox")

	tests := map[string]struct {
		opts   []download.Option
		total  int64
		expErr error
	}{
		"plain":              {},
		"matching length":    {total: int64(len(content))},
		"length mismatch":    {total: int64(len(content)) + 1, expErr: download.ErrContentLengthMismatch},
		"matching checksum":  {opts: []download.Option{download.WithChecksum(sha256.New(), sum(content))}},
		"uppercase checksum": {opts: []download.Option{download.WithChecksum(sha256.New(), strings.ToUpper(sum(content)))}},
		"checksum mismatch":  {opts: []download.Option{download.WithChecksum(sha256.New(), sum([]byte("nope")))}, expErr: download.ErrChecksumMismatch},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			dest := filepath.Join(t.TempDir(), "out.bin")

			f, err := download.Create(dest, tc.opts...)
			if err != nil {
				t.Fatalf("create: %v", err)
			}

			if _, err := f.Write(content[:5]); err != nil {
				t.Fatal(err)
			}
			if _, err := f.Write(content[5:]); err != nil {
				t.Fatal(err)
			}
			if tc.total > 0 {
				f.Update(int64(len(content)), tc.total, 0, 0)
			}

			err = f.Commit()
			if !errors.Is(err, tc.expErr) {
				t.Fatalf("exp err %v, got %v", tc.expErr, err)
			}

			if _, err := os.Stat(dest + ".part"); !errors.Is(err, os.ErrNotExist) {
				t.Errorf("exp part file removed, stat err: %v", err)
			}

			if tc.expErr != nil {
				if _, err := os.Stat(dest); !errors.Is(err, os.ErrNotExist) {
					t.Errorf("exp no destination after failed commit, stat err: %v", err)
				}
				return
			}

			got, err := os.ReadFile(dest)
			if err != nil {
				t.Fatal(err)
			}
			if diff := cmp.Diff(content, got); diff != "" {
				t.Errorf("content mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestFile_Abort(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "out.bin")

	f, err := download.Create(dest)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.Write([]byte("partial")); err != nil {
		t.Fatal(err)
	}
	if err := f.Abort(); err != nil {
		t.Fatalf("abort: %v", err)
	}

	if _, err := os.Stat(dest + ".part"); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("exp part file removed, stat err: %v", err)
	}
	if err := f.Commit(); !errors.Is(err, download.ErrFinished) {
		t.Errorf("exp ErrFinished after abort, got %v", err)
	}
}

func TestFile_SkipExisting(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "out.bin")
	if err := os.WriteFile(dest, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := download.Create(dest, download.WithSkipExisting()); !errors.Is(err, download.ErrFileExists) {
		t.Errorf("exp ErrFileExists, got %v", err)
	}
}

func TestFile_Resume(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "out.bin")
	content := []byte("0123456789")

	first, err := download.Create(dest, download.WithResume())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := first.Write(content[:4]); err != nil {
		t.Fatal(err)
	}
	if err := first.Abort(); err != nil {
		t.Fatal(err)
	}

	second, err := download.Create(dest, download.WithResume(), download.WithChecksum(sha256.New(), sum(content)))
	if err != nil {
		t.Fatal(err)
	}
	if second.Offset() != 4 {
		t.Fatalf("exp offset 4, got %d", second.Offset())
	}
	if _, err := second.Write(content[4:]); err != nil {
		t.Fatal(err)
	}
	if err := second.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}

	got, err := os.ReadFile(dest)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(content, got) {
		t.Errorf("exp %q, got %q", content, got)
	}
}

func TestFile_ProgressLogging(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	f, err := download.Create(filepath.Join(t.TempDir(), "out.bin"), download.WithProgress(logger))
	if err != nil {
		t.Fatal(err)
	}
	defer f.Abort()

	if _, err := f.Write([]byte("abcd")); err != nil {
		t.Fatal(err)
	}
	if got := f.Update(4, 4, 0, 0); got != 1 {
		t.Errorf("exp progress 1, got %v", got)
	}

	if !bytes.Contains(buf.Bytes(), []byte("download complete")) {
		t.Errorf("exp completion log, got %q", buf.String())
	}
}
