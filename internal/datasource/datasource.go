// Package datasource opens run inputs and fingerprints what was read.
package datasource

import (
	"context"
	"fmt"
	"io"

	"github.com/zeebo/xxh3"
)

// Source opens one input for reading.
type Source interface {
	Open(ctx context.Context) (io.ReadCloser, error)
	// Name identifies the input in reports (usually its path).
	Name() string
}

// Fingerprint hashes everything read through it with XXH3-64. Two runs over
// byte-identical inputs report the same Sum.
type Fingerprint struct {
	r io.Reader
	h *xxh3.Hasher
	n int64
}

// NewFingerprint wraps r.
func NewFingerprint(r io.Reader) *Fingerprint {
	return &Fingerprint{r: r, h: xxh3.New()}
}

func (f *Fingerprint) Read(p []byte) (int, error) {
	n, err := f.r.Read(p)
	if n > 0 {
		_, _ = f.h.Write(p[:n])
		f.n += int64(n)
	}
	return n, err
}

// Sum returns the hash of the bytes read so far as 16 hex digits.
func (f *Fingerprint) Sum() string { return fmt.Sprintf("%016x", f.h.Sum64()) }

// Bytes returns how many bytes have been read.
func (f *Fingerprint) Bytes() int64 { return f.n }
