// Package canonical implements the deterministic JSON encoding and hashing
// rules every stable id in SwapGraph is built on: object keys sorted
// lexicographically, array order preserved, numbers normalized to their
// shortest round-trip form, and NaN/Infinity rejected outright.
package canonical

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// Marshal renders v as canonical JSON. v is first encoded with the standard
// library (so struct tags, omitempty, etc. behave normally) and then
// re-encoded deterministically from the generic decoded form.
func Marshal(v interface{}) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("canonical: marshal: %w", err)
	}
	return Recanonicalize(raw)
}

// Recanonicalize takes already-serialized JSON bytes and rewrites them in
// canonical form. Useful when re-deriving the canonical form of a payload
// received over the wire.
func Recanonicalize(raw []byte) ([]byte, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var generic interface{}
	if err := dec.Decode(&generic); err != nil {
		return nil, fmt.Errorf("canonical: decode: %w", err)
	}
	var buf bytes.Buffer
	if err := encodeValue(&buf, generic); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func encodeValue(buf *bytes.Buffer, v interface{}) error {
	switch val := v.(type) {
	case nil:
		buf.WriteString("null")
	case bool:
		if val {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
	case json.Number:
		return encodeNumber(buf, val)
	case string:
		encodeString(buf, val)
	case []interface{}:
		buf.WriteByte('[')
		for i, item := range val {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := encodeValue(buf, item); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case map[string]interface{}:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			encodeString(buf, k)
			buf.WriteByte(':')
			if err := encodeValue(buf, val[k]); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	default:
		return fmt.Errorf("canonical: unsupported decoded type %T", v)
	}
	return nil
}

func encodeString(buf *bytes.Buffer, s string) {
	b, _ := json.Marshal(s)
	buf.Write(b)
}

func encodeNumber(buf *bytes.Buffer, n json.Number) error {
	s := n.String()
	if f, err := n.Float64(); err == nil {
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return fmt.Errorf("canonical: NaN/Infinity numbers are not allowed")
		}
	} else {
		return fmt.Errorf("canonical: invalid number %q: %w", s, err)
	}
	if !strings.ContainsAny(s, ".eE") {
		if i, err := n.Int64(); err == nil {
			buf.WriteString(strconv.FormatInt(i, 10))
			return nil
		}
	}
	f, err := n.Float64()
	if err != nil {
		return fmt.Errorf("canonical: invalid number %q: %w", s, err)
	}
	buf.WriteString(strconv.FormatFloat(f, 'g', -1, 64))
	return nil
}

// Hash returns the SHA-256 digest of v's canonical JSON form.
func Hash(v interface{}) ([32]byte, error) {
	b, err := Marshal(v)
	if err != nil {
		return [32]byte{}, err
	}
	return sha256.Sum256(b), nil
}

// HashBytes returns the SHA-256 digest of already-canonical bytes.
func HashBytes(b []byte) [32]byte {
	return sha256.Sum256(b)
}

// HashHex is Hash with the digest rendered as lowercase hex.
func HashHex(v interface{}) (string, error) {
	h, err := Hash(v)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(h[:]), nil
}

// HashPair implements §4.1's Merkle interior-node rule: the SHA-256 of the
// canonical JSON object {"left": hex(L), "right": hex(R)} — never the raw
// concatenation of L and R.
func HashPair(left, right [32]byte) [32]byte {
	h, err := Hash(map[string]string{
		"left":  hex.EncodeToString(left[:]),
		"right": hex.EncodeToString(right[:]),
	})
	if err != nil {
		// Marshal of a map[string]string can never fail.
		panic(fmt.Sprintf("canonical: hashPair: %v", err))
	}
	return h
}
