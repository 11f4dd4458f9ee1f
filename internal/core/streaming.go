package core

// streaming.go provides the reader chain used to stream a CSV source:
//
//   - FingerprintReader: hashes the exact source bytes (SHA-256)
//   - BOM stripping and UTF-8 sanitization via golang.org/x/text
//   - StreamingCountingReader: tracks bytes read for progress reporting
//
// Use WrapForStreaming to apply all of them in the correct order.

import (
	"crypto/sha256"
	"encoding/hex"
	"hash"
	"io"
	"sync/atomic"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// FingerprintReader hashes every byte read through it.
type FingerprintReader struct {
	reader io.Reader
	hash   hash.Hash
}

// NewFingerprintReader wraps r with a SHA-256 hasher.
func NewFingerprintReader(r io.Reader) *FingerprintReader {
	h := sha256.New()
	return &FingerprintReader{
		reader: io.TeeReader(r, h),
		hash:   h,
	}
}

// Read implements io.Reader.
func (f *FingerprintReader) Read(p []byte) (int, error) {
	return f.reader.Read(p)
}

// Sum drains anything not yet read and returns the hex-encoded digest of the
// whole stream.
func (f *FingerprintReader) Sum() (string, error) {
	if _, err := io.Copy(io.Discard, f.reader); err != nil {
		return "", err
	}
	return hex.EncodeToString(f.hash.Sum(nil)), nil
}

// StreamingCountingReader wraps an io.Reader to track bytes read.
type StreamingCountingReader struct {
	reader    io.Reader
	bytesRead atomic.Int64
	Total     int64 // If known (0 if unknown)
}

// NewStreamingCountingReader creates a counting reader with optional total size.
func NewStreamingCountingReader(r io.Reader, total int64) *StreamingCountingReader {
	return &StreamingCountingReader{
		reader: r,
		Total:  total,
	}
}

// Read implements io.Reader.
func (r *StreamingCountingReader) Read(p []byte) (int, error) {
	n, err := r.reader.Read(p)
	r.bytesRead.Add(int64(n))
	return n, err
}

// BytesRead returns the number of bytes read so far.
func (r *StreamingCountingReader) BytesRead() int64 {
	return r.bytesRead.Load()
}

// Progress returns the read progress as a percentage (0-100).
// Returns 0 if total is unknown.
func (r *StreamingCountingReader) Progress() int {
	if r.Total <= 0 {
		return 0
	}
	return int(r.BytesRead() * 100 / r.Total)
}

// WrapForStreaming builds the reader chain for a CSV source.
//
// The order matters:
//  1. Fingerprinting sees the raw bytes, before anything is altered
//  2. Counting measures raw bytes, to compare with the file size
//  3. The decoder strips a UTF-8 BOM and replaces invalid sequences with U+FFFD
func WrapForStreaming(r io.Reader, totalSize int64) (io.Reader, *FingerprintReader, *StreamingCountingReader) {
	fp := NewFingerprintReader(r)
	counter := NewStreamingCountingReader(fp, totalSize)
	decoded := transform.NewReader(counter, unicode.BOMOverride(unicode.UTF8.NewDecoder()))
	return decoded, fp, counter
}
