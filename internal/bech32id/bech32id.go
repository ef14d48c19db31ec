// Package bech32id encodes non-deterministic identifiers (matching-run ids,
// ad-hoc CLI tokens) as human-readable bech32 strings. Deterministic,
// spec-mandated ids (commit_<hex>, receipt ids, event ids) use their own
// literal formats and do not go through this package.
//
// Grounded on the teacher's crypto/address.go, which bech32-encodes 20-byte
// chain addresses under an "nhb"/"znhb" human-readable prefix; here the
// payload is an arbitrary-length random/hash value rather than a fixed
// 20-byte address.
package bech32id

import (
	"fmt"

	"github.com/btcsuite/btcutil/bech32"
)

// Encode renders payload as a bech32 string under the given human-readable
// prefix (e.g. "run", "vault").
func Encode(hrp string, payload []byte) (string, error) {
	conv, err := bech32.ConvertBits(payload, 8, 5, true)
	if err != nil {
		return "", fmt.Errorf("bech32id: convert bits: %w", err)
	}
	encoded, err := bech32.Encode(hrp, conv)
	if err != nil {
		return "", fmt.Errorf("bech32id: encode: %w", err)
	}
	return encoded, nil
}

// Decode recovers the human-readable prefix and payload from an encoded id.
func Decode(id string) (hrp string, payload []byte, err error) {
	hrp, data, err := bech32.Decode(id)
	if err != nil {
		return "", nil, fmt.Errorf("bech32id: decode: %w", err)
	}
	conv, err := bech32.ConvertBits(data, 5, 8, false)
	if err != nil {
		return "", nil, fmt.Errorf("bech32id: convert bits: %w", err)
	}
	return hrp, conv, nil
}
