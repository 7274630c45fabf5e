package ledger

import (
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/crypto/sha3"
)

// ChecksumAddress normalises a contract or account address to its
// canonical mixed-case (EIP-55) checksummed form.
//
// All-lowercase and all-uppercase inputs are treated as unchecksummed and
// converted. Mixed-case input is taken as a checksum claim and rejected if
// the casing does not match, since a silent fix would mask a corrupted
// address.
func ChecksumAddress(addr string) (string, error) {
	if !strings.HasPrefix(addr, "0x") && !strings.HasPrefix(addr, "0X") {
		return "", fmt.Errorf("address %q missing 0x prefix", addr)
	}
	body := addr[2:]
	if len(body) != 40 {
		return "", fmt.Errorf("address %q must be 20 bytes (40 hex chars)", addr)
	}
	if _, err := hex.DecodeString(body); err != nil {
		return "", fmt.Errorf("address %q is not valid hex", addr)
	}

	lower := strings.ToLower(body)
	h := sha3.NewLegacyKeccak256()
	h.Write([]byte(lower))
	sum := hex.EncodeToString(h.Sum(nil))

	out := make([]byte, 40)
	for i := 0; i < 40; i++ {
		c := lower[i]
		if c >= 'a' && c <= 'f' && nibble(sum[i]) >= 8 {
			c = c - 'a' + 'A'
		}
		out[i] = c
	}
	checksummed := "0x" + string(out)

	mixed := body != lower && body != strings.ToUpper(body)
	if mixed && addr != checksummed {
		return "", fmt.Errorf("address %q fails checksum validation", addr)
	}
	return checksummed, nil
}

func nibble(c byte) byte {
	if c >= 'a' {
		return c - 'a' + 10
	}
	return c - '0'
}
