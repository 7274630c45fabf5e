// Package hashing provides the pure cryptographic primitives used by the
// custody chain and the anchoring pipeline: multi-algorithm digests, HMAC,
// and Merkle tree construction and proof verification.
//
// Everything in this package is deterministic and free of I/O. The only
// source of randomness is Nonce, which exists for auxiliary token
// generation and is never part of an integrity decision.
package hashing

import (
	"crypto/hmac"
	"crypto/md5"
	"crypto/rand"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"hash"

	"golang.org/x/crypto/sha3"
)

// Algorithm identifies a supported digest algorithm.
type Algorithm string

const (
	SHA256 Algorithm = "sha256"
	SHA512 Algorithm = "sha512"

	// MD5 is kept for interoperability with legacy evidence manifests only.
	// It must never back an integrity decision.
	MD5 Algorithm = "md5"

	// Keccak256 is the ledger-native digest, used for on-chain values,
	// ABI selectors and address checksums.
	Keccak256 Algorithm = "keccak256"
)

func newHash(algo Algorithm) (hash.Hash, error) {
	switch algo {
	case SHA256:
		return sha256.New(), nil
	case SHA512:
		return sha512.New(), nil
	case MD5:
		return md5.New(), nil
	case Keccak256:
		return sha3.NewLegacyKeccak256(), nil
	default:
		return nil, fmt.Errorf("unsupported digest algorithm %q", algo)
	}
}

// Digest returns the hex-encoded digest of data under algo.
func Digest(data []byte, algo Algorithm) (string, error) {
	h, err := newHash(algo)
	if err != nil {
		return "", err
	}
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil)), nil
}

// MustDigest is Digest for a compile-time-known algorithm. An unsupported
// algorithm is a programming error, so it panics rather than returning.
func MustDigest(data []byte, algo Algorithm) string {
	d, err := Digest(data, algo)
	if err != nil {
		panic(err)
	}
	return d
}

// HMAC returns the hex-encoded keyed digest of data under algo.
func HMAC(data, secret []byte, algo Algorithm) (string, error) {
	if _, err := newHash(algo); err != nil {
		return "", err
	}
	mac := hmac.New(func() hash.Hash {
		h, _ := newHash(algo)
		return h
	}, secret)
	mac.Write(data)
	return hex.EncodeToString(mac.Sum(nil)), nil
}

// VerifyHMAC reports whether expected is the HMAC of data under secret.
// The comparison is constant-time.
func VerifyHMAC(data, secret []byte, expected string, algo Algorithm) (bool, error) {
	computed, err := HMAC(data, secret, algo)
	if err != nil {
		return false, err
	}
	return hmac.Equal([]byte(computed), []byte(expected)), nil
}

// Nonce returns n random bytes, hex-encoded. Auxiliary use only (challenge
// tokens, request IDs); not part of any hash chain.
func Nonce(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
