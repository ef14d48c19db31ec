// Package custody implements the vault custody snapshot service (C9/§4.9):
// published, Merkle-rooted sets of holdings with inclusion proofs. Grounded
// directly on the specification's own Merkle algorithm (no teacher
// implementation of this exists); leaf hashing and pair-hashing reuse
// internal/canonical's non-concatenative HashPair.
package custody

import (
	"encoding/hex"
	"fmt"

	"swapgraph/internal/canonical"
)

// Proof is an inclusion proof: the leaf's index/hash plus the sibling
// hashes needed to fold back up to the root.
type Proof struct {
	LeafIndex int             `json:"leaf_index"`
	LeafHash  string          `json:"leaf_hash"`
	Siblings  []ProofSibling  `json:"siblings"`
}

// ProofSibling is one step of the bottom-up fold.
type ProofSibling struct {
	Position string `json:"position"` // "left" or "right"
	Hash     string `json:"hash"`
}

// buildLevels returns every level of the balanced Merkle tree built over
// leafHashes (level 0), where an odd node at a level is paired with
// itself, up to and including the single-node root level.
func buildLevels(leafHashes []string) ([][]string, error) {
	if len(leafHashes) == 0 {
		return [][]string{{}}, nil
	}
	levels := [][]string{append([]string(nil), leafHashes...)}
	current := levels[0]
	for len(current) > 1 {
		next := make([]string, 0, (len(current)+1)/2)
		for i := 0; i < len(current); i += 2 {
			left := current[i]
			right := left
			if i+1 < len(current) {
				right = current[i+1]
			}
			parent, err := hashPairHex(left, right)
			if err != nil {
				return nil, err
			}
			next = append(next, parent)
		}
		levels = append(levels, next)
		current = next
	}
	return levels, nil
}

func hashPairHex(leftHex, rightHex string) (string, error) {
	left, err := decodeHash(leftHex)
	if err != nil {
		return "", err
	}
	right, err := decodeHash(rightHex)
	if err != nil {
		return "", err
	}
	sum := canonical.HashPair(left, right)
	return hex.EncodeToString(sum[:]), nil
}

func decodeHash(s string) ([32]byte, error) {
	var out [32]byte
	raw, err := hex.DecodeString(s)
	if err != nil {
		return out, fmt.Errorf("custody: decode hash: %w", err)
	}
	if len(raw) != 32 {
		return out, fmt.Errorf("custody: hash must be 32 bytes, got %d", len(raw))
	}
	copy(out[:], raw)
	return out, nil
}

// RootHash returns the Merkle root for leafHashes, "" for an empty set.
func RootHash(leafHashes []string) (string, error) {
	levels, err := buildLevels(leafHashes)
	if err != nil {
		return "", err
	}
	top := levels[len(levels)-1]
	if len(top) == 0 {
		return "", nil
	}
	return top[0], nil
}

// BuildProof constructs the inclusion proof for leafIndex over leafHashes.
func BuildProof(leafHashes []string, leafIndex int) (Proof, error) {
	if leafIndex < 0 || leafIndex >= len(leafHashes) {
		return Proof{}, fmt.Errorf("custody: leaf index out of range")
	}
	levels, err := buildLevels(leafHashes)
	if err != nil {
		return Proof{}, err
	}
	proof := Proof{LeafIndex: leafIndex, LeafHash: leafHashes[leafIndex]}

	idx := leafIndex
	for level := 0; level < len(levels)-1; level++ {
		nodes := levels[level]
		var siblingIdx int
		var position string
		if idx%2 == 0 {
			siblingIdx = idx + 1
			position = "right"
			if siblingIdx >= len(nodes) {
				siblingIdx = idx // odd node paired with itself
			}
		} else {
			siblingIdx = idx - 1
			position = "left"
		}
		proof.Siblings = append(proof.Siblings, ProofSibling{Position: position, Hash: nodes[siblingIdx]})
		idx /= 2
	}
	return proof, nil
}

// VerifyProof recomputes the root by folding proof's siblings over leafHash
// and compares it against expectedRoot.
func VerifyProof(leafHash string, proof Proof, expectedRoot string) error {
	if proof.LeafHash != leafHash {
		return fmt.Errorf("custody: leaf_hash_mismatch")
	}
	current := leafHash
	for _, sib := range proof.Siblings {
		var combined string
		var err error
		switch sib.Position {
		case "left":
			combined, err = hashPairHex(sib.Hash, current)
		case "right":
			combined, err = hashPairHex(current, sib.Hash)
		default:
			return fmt.Errorf("custody: invalid_sibling_position")
		}
		if err != nil {
			return err
		}
		current = combined
	}
	if current != expectedRoot {
		return fmt.Errorf("custody: root_mismatch")
	}
	return nil
}
