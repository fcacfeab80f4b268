// Package sample produces the canonical filler payload every fragment must reproduce,
// together with its fingerprint.
package sample

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	mrand "math/rand/v2"
)

// maxMaterialize bounds Bytes so a multi-gigabyte fragment is never pulled into memory.
const maxMaterialize = 256 << 20

// Sample is an immutable pseudo-random payload of Size bytes.
//
// The payload is a ChaCha8 keystream from a per-session random seed: every reader
// produces the same bytes, and nothing but the seed is kept in memory.
type Sample struct {
	Size        int64
	Digest      Digest
	Fingerprint string
	seed        [32]byte
}

// New draws a fresh seed and fingerprints the resulting payload.
func New(size int64, d Digest) (*Sample, error) {
	if size <= 0 {
		return nil, fmt.Errorf("sample size must be positive, got %d", size)
	}
	s := &Sample{Size: size, Digest: d}
	if _, err := rand.Read(s.seed[:]); err != nil {
		return nil, fmt.Errorf("seed sample: %w", err)
	}
	fp, err := Fingerprint(s.NewReader(), d)
	if err != nil {
		return nil, fmt.Errorf("fingerprint sample: %w", err)
	}
	s.Fingerprint = fp
	return s, nil
}

// NewReader returns a reader over the payload from the first byte.
func (s *Sample) NewReader() io.Reader {
	return io.LimitReader(mrand.NewChaCha8(s.seed), s.Size)
}

// Bytes materializes the payload.
func (s *Sample) Bytes() ([]byte, error) {
	if s.Size > maxMaterialize {
		return nil, errors.New("sample too large to materialize")
	}
	buf := make([]byte, s.Size)
	if _, err := io.ReadFull(s.NewReader(), buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// FragmentSize returns ceil(free / count).
func FragmentSize(free uint64, count int) int64 {
	if count <= 0 || free == 0 {
		return 0
	}
	n := uint64(count)
	return int64((free + n - 1) / n)
}
