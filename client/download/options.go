package download

import (
	"errors"
	"hash"
	"log/slog"
)

// Option defines optional settings for a [File].
type Option func(*options) error

type options struct {
	checksum     *digest
	logger       *slog.Logger
	skipExisting bool
	resume       bool
}

// WithChecksum validates the complete file against expected, the
// hex-encoded digest produced by h. Case is ignored.
func WithChecksum(h hash.Hash, expected string) Option {
	return func(opts *options) error {
		if h == nil {
			return errors.New("hash must not be nil")
		}

		if expected == "" {
			return errors.New("expected checksum must not be empty")
		}

		opts.checksum = &digest{h: h, want: expected}
		return nil
	}
}

// WithProgress logs download progress at most once per second.
func WithProgress(logger *slog.Logger) Option {
	return func(opts *options) error {
		if logger == nil {
			return errors.New("logger must not be nil")
		}
		opts.logger = logger
		return nil
	}
}

// WithSkipExisting makes Create fail with ErrFileExists when the
// destination is already present.
func WithSkipExisting() Option {
	return func(opts *options) error {
		opts.skipExisting = true
		return nil
	}
}

// WithResume continues a previous partial download. Send the request with
// the File's Offset as its resume offset.
func WithResume() Option {
	return func(opts *options) error {
		opts.resume = true
		return nil
	}
}
