package sample

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSampleSize(t *testing.T) {
	for _, size := range []int64{1, 7, 4096, 100_000} {
		s, err := New(size, MD5)
		require.NoError(t, err)

		b, err := s.Bytes()
		require.NoError(t, err)
		assert.Len(t, b, int(size))
	}
}

func TestSampleFingerprintDeterministic(t *testing.T) {
	for _, d := range []Digest{MD5, BLAKE3} {
		s, err := New(64*1024, d)
		require.NoError(t, err)

		b, err := s.Bytes()
		require.NoError(t, err)

		fp1, err := Fingerprint(bytes.NewReader(b), d)
		require.NoError(t, err)
		fp2, err := Fingerprint(s.NewReader(), d)
		require.NoError(t, err)

		assert.Equal(t, s.Fingerprint, fp1)
		assert.Equal(t, fp1, fp2)
	}
}

func TestMD5FingerprintIs128Bit(t *testing.T) {
	s, err := New(10, MD5)
	require.NoError(t, err)
	assert.Len(t, s.Fingerprint, 32)
}

func TestSamplesDiffer(t *testing.T) {
	a, err := New(4096, MD5)
	require.NoError(t, err)
	b, err := New(4096, MD5)
	require.NoError(t, err)
	assert.NotEqual(t, a.Fingerprint, b.Fingerprint)
}

func TestSampleRejectsZero(t *testing.T) {
	_, err := New(0, MD5)
	assert.Error(t, err)
}

func TestFragmentSize(t *testing.T) {
	assert.Equal(t, int64(100_000), FragmentSize(1_000_000, 10))
	assert.Equal(t, int64(333_334), FragmentSize(1_000_000, 3))
	assert.Equal(t, int64(0), FragmentSize(0, 10))
	assert.Equal(t, int64(0), FragmentSize(100, 0))
}

func TestParseDigest(t *testing.T) {
	d, err := ParseDigest("")
	require.NoError(t, err)
	assert.Equal(t, MD5, d)

	d, err = ParseDigest("blake3")
	require.NoError(t, err)
	assert.Equal(t, BLAKE3, d)

	_, err = ParseDigest("sha1")
	assert.Error(t, err)
}
