package hashing

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// hashPair hashes the concatenation of two hex-encoded node hashes.
func hashPair(left, right string) string {
	h := sha256.New()
	h.Write([]byte(left))
	h.Write([]byte(right))
	return hex.EncodeToString(h.Sum(nil))
}

// MerkleRoot computes the Merkle root of the given leaf hashes.
//
// An empty input yields the empty string and a single leaf is its own root.
// At every level an odd trailing node is paired with itself; this
// duplication rule is load-bearing — it fixes the shape of every proof
// produced by MerkleProof, so it must not change.
func MerkleRoot(leaves []string) string {
	if len(leaves) == 0 {
		return ""
	}
	level := append([]string(nil), leaves...)
	for len(level) > 1 {
		if len(level)%2 == 1 {
			level = append(level, level[len(level)-1])
		}
		next := make([]string, 0, len(level)/2)
		for i := 0; i < len(level); i += 2 {
			next = append(next, hashPair(level[i], level[i+1]))
		}
		level = next
	}
	return level[0]
}

// MerkleProof returns the sibling hashes, leaf to root, proving that
// leaves[index] is included under MerkleRoot(leaves).
func MerkleProof(leaves []string, index int) ([]string, error) {
	if index < 0 || index >= len(leaves) {
		return nil, fmt.Errorf("merkle proof index %d out of range [0,%d)", index, len(leaves))
	}
	var proof []string
	level := append([]string(nil), leaves...)
	for len(level) > 1 {
		if len(level)%2 == 1 {
			level = append(level, level[len(level)-1])
		}
		proof = append(proof, level[index^1])
		next := make([]string, 0, len(level)/2)
		for i := 0; i < len(level); i += 2 {
			next = append(next, hashPair(level[i], level[i+1]))
		}
		level = next
		index /= 2
	}
	return proof, nil
}

// VerifyMerkleProof recombines leaf with the sibling hashes in proof and
// reports whether the result equals root. index is the leaf's position in
// the original leaf set; its bits select left/right concatenation at each
// level.
func VerifyMerkleProof(leaf string, proof []string, index int, root string) bool {
	if root == "" {
		return false
	}
	computed := leaf
	for _, sibling := range proof {
		if index%2 == 0 {
			computed = hashPair(computed, sibling)
		} else {
			computed = hashPair(sibling, computed)
		}
		index /= 2
	}
	return computed == root
}
