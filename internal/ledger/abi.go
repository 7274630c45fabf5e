package ledger

import (
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/crypto/sha3"
)

// The two registry contract entry points this client consumes. The write
// entry point is role-gated on chain; the signer must hold the writer role
// granted out-of-band.
const (
	sigSubmitEvidence = "submitEvidence(string,bytes32,uint8)"
	sigEvidenceExists = "evidenceExists(bytes32)"
)

// selector returns the 4-byte ABI function selector for a signature.
func selector(signature string) []byte {
	h := sha3.NewLegacyKeccak256()
	h.Write([]byte(signature))
	return h.Sum(nil)[:4]
}

// FingerprintBytes parses a 64-char hex content fingerprint into its
// 32-byte on-chain form.
func FingerprintBytes(fingerprint string) ([32]byte, error) {
	var fp [32]byte
	raw, err := hex.DecodeString(strings.TrimPrefix(fingerprint, "0x"))
	if err != nil {
		return fp, fmt.Errorf("malformed fingerprint %q: %w", fingerprint, err)
	}
	if len(raw) != 32 {
		return fp, fmt.Errorf("fingerprint must be 32 bytes, got %d", len(raw))
	}
	copy(fp[:], raw)
	return fp, nil
}

func padRight(b []byte) []byte {
	if rem := len(b) % 32; rem != 0 {
		b = append(b, make([]byte, 32-rem)...)
	}
	return b
}

func uintWord(v uint64) []byte {
	word := make([]byte, 32)
	for i := 0; v > 0; i++ {
		word[31-i] = byte(v)
		v >>= 8
	}
	return word
}

// encodeSubmitEvidence ABI-encodes the registry write call
// submitEvidence(contentID, fingerprint, kind).
//
// Head layout (3 words): offset to the string tail, the fingerprint, the
// kind. Tail: string length word plus the string bytes padded to a word
// boundary.
func encodeSubmitEvidence(contentID string, fingerprint [32]byte, kind Kind) []byte {
	data := selector(sigSubmitEvidence)
	data = append(data, uintWord(3*32)...) // offset of the dynamic string
	data = append(data, fingerprint[:]...)
	data = append(data, uintWord(uint64(kind))...)
	data = append(data, uintWord(uint64(len(contentID)))...)
	data = append(data, padRight([]byte(contentID))...)
	return data
}

// encodeEvidenceExists ABI-encodes the read call evidenceExists(fingerprint).
func encodeEvidenceExists(fingerprint [32]byte) []byte {
	data := selector(sigEvidenceExists)
	data = append(data, fingerprint[:]...)
	return data
}

// decodeBool decodes a single ABI-encoded bool return value.
func decodeBool(result string) (bool, error) {
	raw, err := hex.DecodeString(strings.TrimPrefix(result, "0x"))
	if err != nil {
		return false, fmt.Errorf("malformed call result %q: %w", result, err)
	}
	if len(raw) != 32 {
		return false, fmt.Errorf("call result must be one word, got %d bytes", len(raw))
	}
	return raw[31] != 0, nil
}

func hexData(b []byte) string {
	return "0x" + hex.EncodeToString(b)
}
