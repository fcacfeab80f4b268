package sample

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"hash"
	"io"

	"github.com/zeebo/blake3"
)

// Digest names the fingerprint algorithm.
type Digest string

const (
	MD5    Digest = "md5"
	BLAKE3 Digest = "blake3"
)

// ParseDigest validates a digest name. An empty name selects MD5.
func ParseDigest(name string) (Digest, error) {
	switch Digest(name) {
	case "", MD5:
		return MD5, nil
	case BLAKE3:
		return BLAKE3, nil
	}
	return "", fmt.Errorf("unknown digest %q (want md5 or blake3)", name)
}

func (d Digest) newHash() hash.Hash {
	if d == BLAKE3 {
		return blake3.New()
	}
	return md5.New()
}

// Fingerprint hashes everything r yields and returns the lowercase hex digest.
func Fingerprint(r io.Reader, d Digest) (string, error) {
	h := d.newHash()
	if _, err := io.Copy(h, r); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
