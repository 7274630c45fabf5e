package hashing_test

import (
	"strings"
	"testing"

	"github.com/casetrace/casetrace/internal/hashing"
)

func TestDigest_knownVectors(t *testing.T) {
	tests := []struct {
		name string
		algo hashing.Algorithm
		in   string
		want string
	}{
		{"sha256 abc", hashing.SHA256, "abc",
			"ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"},
		{"sha512 abc", hashing.SHA512, "abc",
			"ddaf35a193617abacc417349ae20413112e6fa4e89a97ea20a9eeee64b55d39a" +
				"2192992a274fc1a836ba3c23a3feebbd454d4423643ce80e2a9ac94fa54ca49f"},
		{"md5 abc", hashing.MD5, "abc",
			"900150983cd24fb0d6963f7d28e17f72"},
		{"keccak256 empty", hashing.Keccak256, "",
			"c5d2460186f7233c927e7db2dcc703c0e500b653ca82273b7bfad8045d85a470"},
		{"keccak256 abc", hashing.Keccak256, "abc",
			"4e03657aea45a94fc7d47ba826c8d667c0d1e6e33a64a036ec44f58fa12d6c45"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := hashing.Digest([]byte(tt.in), tt.algo)
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("Digest(%q, %s) = %s, want %s", tt.in, tt.algo, got, tt.want)
			}
		})
	}
}

func TestDigest_deterministic(t *testing.T) {
	data := []byte("the same bytes, hashed twice")
	first, err := hashing.Digest(data, hashing.SHA256)
	if err != nil {
		t.Fatal(err)
	}
	second, err := hashing.Digest(data, hashing.SHA256)
	if err != nil {
		t.Fatal(err)
	}
	if first != second {
		t.Errorf("digest not stable across calls: %s != %s", first, second)
	}
}

func TestDigest_unsupportedAlgorithm(t *testing.T) {
	if _, err := hashing.Digest([]byte("x"), hashing.Algorithm("whirlpool")); err == nil {
		t.Error("expected error for unsupported algorithm")
	}
}

func TestMustDigest_panicsOnUnsupported(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("MustDigest should panic on an unsupported algorithm")
		}
	}()
	hashing.MustDigest([]byte("x"), hashing.Algorithm("crc32"))
}

func TestHMAC_verifyRoundTrip(t *testing.T) {
	data := []byte("payload under test")
	secret := []byte("shared-secret")

	mac, err := hashing.HMAC(data, secret, hashing.SHA256)
	if err != nil {
		t.Fatal(err)
	}
	if len(mac) != 64 {
		t.Errorf("sha256 hmac should be 64 hex chars, got %d", len(mac))
	}

	ok, err := hashing.VerifyHMAC(data, secret, mac, hashing.SHA256)
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Error("VerifyHMAC rejected a freshly computed HMAC")
	}

	ok, err = hashing.VerifyHMAC(data, []byte("wrong-secret"), mac, hashing.SHA256)
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Error("VerifyHMAC accepted an HMAC computed with a different secret")
	}
}

func TestNonce(t *testing.T) {
	a, err := hashing.Nonce(16)
	if err != nil {
		t.Fatal(err)
	}
	b, err := hashing.Nonce(16)
	if err != nil {
		t.Fatal(err)
	}
	if len(a) != 32 || len(b) != 32 {
		t.Errorf("expected 32 hex chars, got %d and %d", len(a), len(b))
	}
	if strings.EqualFold(a, b) {
		t.Error("two nonces should not collide")
	}
}
